package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/soyeahso/crewbuilder/internal/crew"
	"github.com/soyeahso/crewbuilder/internal/hooks"
	"github.com/spf13/cobra"
)

func newGenerateCmd() *cobra.Command {
	var (
		flags   crewFlags
		out     string
		verbose int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print the crewAI Python program for a crew",
		Example: `  crewbuilder generate --template "Content Team"
  crewbuilder generate -a "🔍 Pesquisador" -a "📊 Analista" -o crew.py
  crewbuilder generate --file crew.yaml --mode strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sess, err := buildSession(cfg, flags)
			if err != nil {
				return err
			}

			code, err := crew.Generate(sess.Plan(), crew.GenerateOptions{Verbose: verbose})
			if err != nil {
				return err
			}
			for _, k := range sess.Unresolved() {
				log.Warn().Str("agent", string(k)).Msg("agent is not in the catalog")
			}

			newHookManager(cfg).Emit(context.Background(), hooks.EventCodeGenerated, map[string]any{
				hooks.KeySession: sess.ID(),
				hooks.KeyMode:    string(sess.Mode()),
				"bytes":          len(code),
			})

			if out == "" {
				fmt.Fprint(cmd.OutOrStdout(), code)
				return nil
			}
			if err := os.WriteFile(out, []byte(code), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the program to a file instead of stdout")
	cmd.Flags().IntVar(&verbose, "verbose", 0, "Crew verbosity in the generated program (default 2)")
	return cmd
}
