// Package crew holds the per-session builder state and the two consumers of
// it: the code generator and the execution adapter.
package crew

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/crewbuilder/internal/domain"
)

// ResolutionMode controls when workflow keys must resolve to an agent.
type ResolutionMode string

const (
	// Lenient accepts any key and leaves resolution to consumers.
	Lenient ResolutionMode = "lenient"
	// Strict rejects keys that do not resolve at append time.
	Strict ResolutionMode = "strict"
)

// ParseResolutionMode accepts "lenient", "strict" or "" (lenient).
func ParseResolutionMode(s string) (ResolutionMode, error) {
	switch ResolutionMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Lenient:
		return Lenient, nil
	case Strict:
		return Strict, nil
	}
	return "", &domain.ValidationError{Field: "resolutionMode", Message: fmt.Sprintf("unknown mode %q", s)}
}

// TemplateSource looks up templates by name.
type TemplateSource interface {
	Get(name string) (domain.Template, bool)
}

// Options configures a new Session.
type Options struct {
	ID         string // generated when empty
	Mode       ResolutionMode
	Model      domain.ModelConfig // DefaultModelConfig when zero
	Predefined *Predefined
	Templates  TemplateSource
}

// Session is one user's builder state: custom agents, workflow, tasks,
// model settings and credential. All methods are safe for concurrent use.
type Session struct {
	mu         sync.Mutex
	id         string
	mode       ResolutionMode
	catalog    *Catalog
	workflow   Workflow
	tasks      *TaskStore
	model      domain.ModelConfig
	credential string
	templates  TemplateSource
	createdAt  time.Time
	updatedAt  time.Time
}

// NewSession creates an empty session.
func NewSession(opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Mode == "" {
		opts.Mode = Lenient
	}
	if opts.Model == (domain.ModelConfig{}) {
		opts.Model = domain.DefaultModelConfig()
	}
	now := time.Now().UTC()
	return &Session{
		id:        opts.ID,
		mode:      opts.Mode,
		catalog:   NewCatalog(opts.Predefined),
		tasks:     NewTaskStore(),
		model:     opts.Model,
		templates: opts.Templates,
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Mode returns the resolution mode.
func (s *Session) Mode() ResolutionMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode changes the resolution mode. Existing steps are not re-checked.
func (s *Session) SetMode(m ResolutionMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
	s.touch()
}

// AddCustomAgent stores a custom agent under emoji + " " + role.
func (s *Session) AddCustomAgent(role, goal, backstory, emoji string) (domain.AgentKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, err := s.catalog.AddCustom(domain.AgentDefinition{
		Role:      role,
		Goal:      goal,
		Backstory: backstory,
		Emoji:     emoji,
	})
	if err != nil {
		return "", err
	}
	s.touch()
	return key, nil
}

// Resolve looks up key in the catalog.
func (s *Session) Resolve(key domain.AgentKey) (domain.AgentDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Resolve(key)
}

// Catalog lists every agent the session can use.
func (s *Session) Catalog() []domain.CatalogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Entries()
}

// Append adds a workflow step for key together with an empty task bound to
// it. In strict mode an unresolved key is rejected.
func (s *Session) Append(key domain.AgentKey) (domain.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == Strict {
		if _, err := s.catalog.Resolve(key); err != nil {
			return domain.Step{}, err
		}
	}
	step := s.workflow.Append(key)
	s.tasks.Create(step.ID, key)
	s.touch()
	return step, nil
}

// Remove deletes the step at position and the task bound to it.
func (s *Session) Remove(position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, err := s.workflow.Remove(position)
	if err != nil {
		return err
	}
	s.tasks.RemoveStep(step.ID)
	s.touch()
	return nil
}

// Move relocates a step; its bound task moves with it.
func (s *Session) Move(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.workflow.Move(from, to); err != nil {
		return err
	}
	s.touch()
	return nil
}

// Clear empties the workflow, the task store and the custom agents.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflow.Clear()
	s.tasks.Clear()
	s.catalog.ClearCustom()
	s.touch()
}

// Steps returns the workflow in order.
func (s *Session) Steps() []domain.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workflow.Steps()
}

// Unresolved lists the distinct workflow and task keys that do not resolve,
// in first-appearance order.
func (s *Session) Unresolved() []domain.AgentKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AgentKey
	for _, k := range s.agentKeys() {
		if _, ok := s.catalog.Lookup(k); !ok {
			out = append(out, k)
		}
	}
	return out
}

// LoadTemplate replaces the workflow with the template's agents and
// rebuilds the task store. Task i goes to agent i mod n and is bound to
// step i when such a step exists. Custom agents are kept.
func (s *Session) LoadTemplate(name string) (domain.Template, error) {
	if s.templates == nil {
		return domain.Template{}, &domain.NotFoundError{Kind: "template", Key: name}
	}
	t, ok := s.templates.Get(name)
	if !ok {
		return domain.Template{}, &domain.NotFoundError{Kind: "template", Key: name}
	}
	if len(t.Agents) == 0 && len(t.Tasks) > 0 {
		return domain.Template{}, &domain.ValidationError{Field: "template", Message: "template has tasks but no agents"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == Strict {
		for _, k := range t.Agents {
			if _, err := s.catalog.Resolve(k); err != nil {
				return domain.Template{}, err
			}
		}
	}

	s.workflow.Clear()
	s.tasks.Clear()
	steps := make([]domain.Step, len(t.Agents))
	for i, k := range t.Agents {
		steps[i] = s.workflow.Append(k)
	}
	for i, desc := range t.Tasks {
		key := t.Agents[i%len(t.Agents)]
		stepID := ""
		if i < len(steps) {
			stepID = steps[i].ID
		}
		rec := s.tasks.Create(stepID, key)
		rec.Description = desc
		s.tasks.Put(rec)
	}
	// steps beyond the task list still get their empty task
	for i := len(t.Tasks); i < len(steps); i++ {
		s.tasks.Create(steps[i].ID, steps[i].AgentKey)
	}
	s.touch()
	return t, nil
}

// EditTask writes the task bound to the step at position, creating it when
// the step has none. The task's agent is always the step's agent.
func (s *Session) EditTask(position int, description, expectedOutput string) (domain.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, err := s.workflow.At(position)
	if err != nil {
		return domain.TaskRecord{}, err
	}
	rec, ok := s.tasks.BoundTo(step.ID)
	if !ok {
		rec = s.tasks.Create(step.ID, step.AgentKey)
	}
	rec.Description = description
	rec.ExpectedOutput = expectedOutput
	rec.AgentKey = step.AgentKey
	s.tasks.Put(rec)
	s.touch()
	return rec, nil
}

// Tasks returns every task in emission order.
func (s *Session) Tasks() []domain.TaskRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks.Ordered(s.workflow.Steps())
}

// Model returns the session's model settings.
func (s *Session) Model() domain.ModelConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel validates and stores new model settings.
func (s *Session) SetModel(m domain.ModelConfig) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = m
	s.touch()
	return nil
}

// SetCredential stores the API key for this session only.
func (s *Session) SetCredential(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = strings.TrimSpace(key)
}

// Credential returns the session API key.
func (s *Session) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential
}

// Plan captures the state the generator and executor consume.
func (s *Session) Plan() Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.agentKeys()
	agents := make([]PlannedAgent, len(keys))
	for i, k := range keys {
		def, ok := s.catalog.Lookup(k)
		agents[i] = PlannedAgent{Key: k, Definition: def, Resolved: ok}
	}
	return Plan{
		Agents: agents,
		Tasks:  s.tasks.Ordered(s.workflow.Steps()),
		Model:  s.model,
		Mode:   s.mode,
	}
}

// Info summarizes the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:            s.id,
		Mode:          s.mode,
		Steps:         s.workflow.Len(),
		Tasks:         s.tasks.Len(),
		CustomAgents:  len(s.catalog.customOrder),
		HasCredential: s.credential != "",
		Model:         s.model,
		CreatedAt:     s.createdAt,
		UpdatedAt:     s.updatedAt,
	}
}

// Info is a summary of a session.
type Info struct {
	ID            string             `json:"id"`
	Mode          ResolutionMode     `json:"mode"`
	Steps         int                `json:"steps"`
	Tasks         int                `json:"tasks"`
	CustomAgents  int                `json:"customAgents"`
	HasCredential bool               `json:"hasCredential"`
	Model         domain.ModelConfig `json:"model"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// agentKeys returns the distinct workflow keys in first-append order,
// followed by keys only referenced by unbound tasks. Caller holds mu.
func (s *Session) agentKeys() []domain.AgentKey {
	seen := make(map[domain.AgentKey]bool)
	var out []domain.AgentKey
	add := func(k domain.AgentKey) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range s.workflow.Keys() {
		add(k)
	}
	for _, t := range s.tasks.All() {
		add(t.AgentKey)
	}
	return out
}

func (s *Session) touch() { s.updatedAt = time.Now().UTC() }
