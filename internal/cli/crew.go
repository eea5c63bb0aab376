package cli

import (
	"fmt"

	"github.com/soyeahso/crewbuilder/internal/config"
	"github.com/soyeahso/crewbuilder/internal/crew"
	"github.com/soyeahso/crewbuilder/internal/domain"
	"github.com/soyeahso/crewbuilder/internal/hooks"
	"github.com/soyeahso/crewbuilder/internal/templates"
	"github.com/spf13/cobra"
)

// crewFlags are shared by generate and run.
type crewFlags struct {
	template string
	agents   []string
	file     string
	mode     string
}

func (f *crewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.template, "template", "t", "", "load a template by name")
	cmd.Flags().StringArrayVarP(&f.agents, "agent", "a", nil, "append an agent key to the workflow (repeatable)")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "apply a YAML crew file")
	cmd.Flags().StringVar(&f.mode, "mode", "", "resolution mode (lenient, strict)")
}

// buildSession assembles a local session: the template first, then the
// --agent appends, then the crew file.
func buildSession(cfg config.Config, f crewFlags) (*crew.Session, error) {
	mode := cfg.Crew.ResolutionMode
	if f.mode != "" {
		mode = f.mode
	}
	m, err := crew.ParseResolutionMode(mode)
	if err != nil {
		return nil, err
	}

	reg, err := templates.NewRegistry(templatesPath(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	sess := crew.NewSession(crew.Options{
		Mode:       m,
		Model:      cfg.Model.Settings(),
		Predefined: crew.NewPredefined(append(crew.DefaultAgents(), reg.Agents()...)...),
		Templates:  reg,
	})

	if f.template != "" {
		if _, err := sess.LoadTemplate(f.template); err != nil {
			return nil, err
		}
	}
	for _, k := range f.agents {
		if _, err := sess.Append(domain.AgentKey(k)); err != nil {
			return nil, err
		}
	}
	if f.file != "" {
		file, err := crew.LoadCrewFile(f.file)
		if err != nil {
			return nil, err
		}
		if err := file.Apply(sess); err != nil {
			return nil, fmt.Errorf("%s: %w", f.file, err)
		}
	}
	return sess, nil
}

// newHookManager wires the config's command hooks for one CLI run.
func newHookManager(cfg config.Config) *hooks.Manager {
	m := hooks.NewManager(log)
	hooks.RegisterCommands(m, cfg.Hooks)
	return m
}
