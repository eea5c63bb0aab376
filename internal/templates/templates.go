// Package templates holds the named workflow presets: the built-in ones and
// those declared in the templates TOML file.
package templates

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/soyeahso/crewbuilder/internal/domain"
	"github.com/soyeahso/crewbuilder/internal/logging"
)

// file mirrors the templates.toml layout.
type file struct {
	Templates []fileTemplate `toml:"template"`
}

type fileTemplate struct {
	Name        string      `toml:"name"`
	Description string      `toml:"description"`
	Agents      []string    `toml:"agents"`
	Tasks       []string    `toml:"tasks"`
	Agent       []fileAgent `toml:"agent"`
}

type fileAgent struct {
	Key       string `toml:"key"`
	Role      string `toml:"role"`
	Goal      string `toml:"goal"`
	Backstory string `toml:"backstory"`
	Emoji     string `toml:"emoji"`
}

// Registry serves templates by name. File templates replace built-ins of
// the same name; new names are listed after the built-ins.
type Registry struct {
	mu     sync.RWMutex
	path   string
	order  []string
	byName map[string]domain.Template
	log    *logging.Logger
}

// NewRegistry loads the built-ins and, when path is non-empty and exists,
// the templates file.
func NewRegistry(path string, log *logging.Logger) (*Registry, error) {
	if log == nil {
		log = logging.Nop()
	}
	r := &Registry{path: path, log: log.Sub("templates")}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the templates file the registry reads, if any.
func (r *Registry) Path() string { return r.path }

// Reload re-reads the templates file. On error the previous set is kept.
func (r *Registry) Reload() error {
	builtins := Builtins()
	order := make([]string, 0, len(builtins))
	byName := make(map[string]domain.Template, len(builtins))
	for _, t := range builtins {
		order = append(order, t.Name)
		byName[t.Name] = t
	}

	fromFile, err := LoadFile(r.path)
	if err != nil {
		return err
	}
	for _, t := range fromFile {
		if _, ok := byName[t.Name]; !ok {
			order = append(order, t.Name)
		}
		byName[t.Name] = t
	}

	r.mu.Lock()
	r.order = order
	r.byName = byName
	r.mu.Unlock()

	r.log.Debug().Int("builtin", len(builtins)).Int("file", len(fromFile)).Msg("templates loaded")
	return nil
}

// Get returns the template called name.
func (r *Registry) Get(name string) (domain.Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// List returns every template in listing order.
func (r *Registry) List() []domain.Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Template, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Names returns the template names in listing order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Agents collects the agent definitions published by all templates. A key
// published twice keeps its first definition.
func (r *Registry) Agents() []domain.TemplateAgent {
	var out []domain.TemplateAgent
	seen := map[domain.AgentKey]bool{}
	for _, t := range r.List() {
		for _, a := range t.Definitions {
			if seen[a.Key] {
				continue
			}
			seen[a.Key] = true
			out = append(out, a)
		}
	}
	return out
}

// LoadFile parses a templates file. A missing file or empty path yields no
// templates.
func LoadFile(path string) ([]domain.Template, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading templates file: %w", err)
	}
	return Parse(data)
}

// Parse decodes templates.toml content. Unknown keys are rejected.
func Parse(data []byte) ([]domain.Template, error) {
	var f file
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("parsing templates file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parsing templates file: unknown keys %s", strings.Join(keys, ", "))
	}

	out := make([]domain.Template, 0, len(f.Templates))
	seen := map[string]bool{}
	for i, ft := range f.Templates {
		t, err := ft.toTemplate()
		if err != nil {
			return nil, fmt.Errorf("template[%d]: %w", i, err)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("template[%d]: %w", i, &domain.ValidationError{Field: "name", Message: fmt.Sprintf("duplicate template %q", t.Name)})
		}
		seen[t.Name] = true
		out = append(out, t)
	}
	return out, nil
}

func (ft fileTemplate) toTemplate() (domain.Template, error) {
	name := strings.TrimSpace(ft.Name)
	if name == "" {
		return domain.Template{}, &domain.ValidationError{Field: "name", Message: "name must not be blank"}
	}
	if len(ft.Agents) == 0 && len(ft.Tasks) > 0 {
		return domain.Template{}, &domain.ValidationError{Field: "agents", Message: "template has tasks but no agents"}
	}

	t := domain.Template{
		Name:        name,
		Description: ft.Description,
		Agents:      make([]domain.AgentKey, len(ft.Agents)),
		Tasks:       append([]string{}, ft.Tasks...),
	}
	for i, k := range ft.Agents {
		t.Agents[i] = domain.AgentKey(k)
	}
	for j, fa := range ft.Agent {
		def := domain.AgentDefinition{Role: fa.Role, Goal: fa.Goal, Backstory: fa.Backstory, Emoji: fa.Emoji}
		if err := def.Validate(); err != nil {
			return domain.Template{}, fmt.Errorf("agent[%d]: %w", j, err)
		}
		key := domain.AgentKey(fa.Key)
		if key == "" {
			key = def.DisplayKey()
		}
		t.Definitions = append(t.Definitions, domain.TemplateAgent{Key: key, Definition: def})
	}
	return t, nil
}
