package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/soyeahso/crewbuilder/internal/config"
	"github.com/soyeahso/crewbuilder/internal/llm"
	"github.com/soyeahso/crewbuilder/internal/templates"
	"github.com/soyeahso/crewbuilder/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show crewbuilder status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := loadConfig()
			fmt.Fprintf(out, "crewbuilder %s (commit %s)\n\n", version.Version, version.Short(version.Commit))

			fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			fmt.Fprintf(out, "Templates: %s\n", templatesPath(cfg))
			fmt.Fprintf(out, "Data:      %s\n", paths.Data)
			fmt.Fprintln(out)

			if err != nil {
				fmt.Fprintf(out, "Config:    error loading: %v\n", err)
				return nil
			}
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:    not found (using defaults)")
			}

			fmt.Fprintf(out, "Gateway:   port=%d bind=%s auth=%s execute=%d/min\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode, cfg.Gateway.ExecuteRate.PerMinute)

			registry := llm.NewRegistryFromConfig(cfg.LLM, log)
			key := "missing"
			if cfg.LLM.APIKey != "" {
				key = "set"
			}
			fmt.Fprintf(out, "LLM:       provider=%s providers=%s apiKey=%s\n",
				cfg.LLM.Provider, strings.Join(registry.List(), ","), key)

			model := cfg.Model.Settings()
			fmt.Fprintf(out, "Model:     %s temperature=%.2f maxTokens=%d\n", model.Model, model.Temperature, model.MaxTokens)
			fmt.Fprintf(out, "Crew:      mode=%s\n", cfg.Crew.ResolutionMode)

			if reg, err := templates.NewRegistry(templatesPath(cfg), log); err != nil {
				fmt.Fprintf(out, "Templates: error loading: %v\n", err)
			} else {
				fmt.Fprintf(out, "Templates: %s\n", strings.Join(reg.Names(), ", "))
			}

			fmt.Fprintf(out, "Session:   store=%s idle=%dm\n", cfg.Session.Store, cfg.Session.IdleMinutes)
			if cfg.Metrics.Enabled {
				fmt.Fprintf(out, "Metrics:   %s\n", cfg.Metrics.Path)
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
