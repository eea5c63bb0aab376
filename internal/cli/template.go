package cli

import (
	"fmt"
	"strings"

	"github.com/soyeahso/crewbuilder/internal/domain"
	"github.com/soyeahso/crewbuilder/internal/templates"
	"github.com/spf13/cobra"
)

func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Inspect crew templates",
	}

	cmd.AddCommand(newTemplateListCmd())
	cmd.AddCommand(newTemplateShowCmd())
	return cmd
}

func newTemplateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in and file templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := templates.NewRegistry(templatesPath(cfg), log)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range reg.List() {
				fmt.Fprintf(out, "%-20s agents=%d tasks=%d  %s\n", t.Name, len(t.Agents), len(t.Tasks), t.Description)
			}
			return nil
		},
	}
}

func newTemplateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a template's agents and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := templates.NewRegistry(templatesPath(cfg), log)
			if err != nil {
				return err
			}
			t, ok := reg.Get(args[0])
			if !ok {
				return &domain.NotFoundError{Kind: "template", Key: args[0]}
			}

			defs := make(map[domain.AgentKey]domain.AgentDefinition, len(t.Definitions))
			for _, d := range t.Definitions {
				defs[d.Key] = d.Definition
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, t.Name)
			if t.Description != "" {
				fmt.Fprintln(out, t.Description)
			}
			fmt.Fprintln(out, "\nAgents:")
			for i, k := range t.Agents {
				line := fmt.Sprintf("  %d. %s", i+1, k)
				if d, ok := defs[k]; ok {
					line += " (" + d.Role + ": " + d.Goal + ")"
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, "\nTasks:")
			for i, task := range t.Tasks {
				agent := t.Agents[i%len(t.Agents)]
				fmt.Fprintf(out, "  %d. %s -> %s\n", i+1, strings.TrimSpace(task), agent)
			}
			return nil
		},
	}
}
