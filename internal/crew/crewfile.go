package crew

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/soyeahso/crewbuilder/internal/domain"
)

// CrewFile describes a session declaratively:
//
//	mode: strict
//	template: Content Team
//	model: {model: gemma-7b-it, temperature: 0.2, maxTokens: 2048}
//	agents:
//	  - {role: Revisor, goal: Revisar textos, emoji: "🧪"}
//	workflow: ["🔍 Pesquisador", "🧪 Revisor"]
//	tasks:
//	  - {position: 0, description: find sources, expectedOutput: a list}
type CrewFile struct {
	Mode     string                   `yaml:"mode,omitempty"`
	Template string                   `yaml:"template,omitempty"`
	Model    *domain.ModelConfig      `yaml:"model,omitempty"`
	Agents   []domain.AgentDefinition `yaml:"agents,omitempty"`
	Workflow []domain.AgentKey        `yaml:"workflow,omitempty"`
	Tasks    []CrewFileTask           `yaml:"tasks,omitempty"`
}

// CrewFileTask edits the task at a workflow position.
type CrewFileTask struct {
	Position       int    `yaml:"position"`
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expectedOutput,omitempty"`
}

// LoadCrewFile reads and parses a YAML crew file.
func LoadCrewFile(path string) (*CrewFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading crew file: %w", err)
	}
	return ParseCrewFile(data)
}

// ParseCrewFile parses YAML crew file content.
func ParseCrewFile(data []byte) (*CrewFile, error) {
	var f CrewFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing crew file: %w", err)
	}
	if _, err := ParseResolutionMode(f.Mode); err != nil {
		return nil, err
	}
	return &f, nil
}

// Apply replays the file against s: mode, template, custom agents,
// workflow appends, model, then task edits. Positions in Tasks refer to the
// workflow after the template and appends are applied.
func (f *CrewFile) Apply(s *Session) error {
	if f.Mode != "" {
		mode, err := ParseResolutionMode(f.Mode)
		if err != nil {
			return err
		}
		s.SetMode(mode)
	}
	if f.Template != "" {
		if _, err := s.LoadTemplate(f.Template); err != nil {
			return err
		}
	}
	for i, a := range f.Agents {
		if _, err := s.AddCustomAgent(a.Role, a.Goal, a.Backstory, a.Emoji); err != nil {
			return fmt.Errorf("agents[%d]: %w", i, err)
		}
	}
	for _, k := range f.Workflow {
		if _, err := s.Append(k); err != nil {
			return err
		}
	}
	if f.Model != nil {
		if err := s.SetModel(*f.Model); err != nil {
			return err
		}
	}
	for i, t := range f.Tasks {
		if _, err := s.EditTask(t.Position, t.Description, t.ExpectedOutput); err != nil {
			return fmt.Errorf("tasks[%d]: %w", i, err)
		}
	}
	return nil
}
