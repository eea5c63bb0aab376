package cli

import (
	"io"

	"github.com/soyeahso/crewbuilder/internal/config"
	"github.com/soyeahso/crewbuilder/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths     config.Paths
	cfg       config.Config
	cfgErr    error
	log       *logging.Logger
	logCloser io.Closer
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crewbuilder",
		Short: "Crewbuilder: assemble multi-agent crews and generate crewAI programs",
		Long: "Crewbuilder assembles crews of LLM agents from a catalog, a workflow and a task list,\n" +
			"renders them as crewAI Python programs and can run them directly.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}

			// A broken config file must not lock out the config commands.
			cfg, cfgErr = config.Load(paths.Config)
			if cfgErr != nil {
				cfg = config.Defaults()
			}

			opts := logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				File:   cfg.Logging.File,
			}
			if logLevel != "" {
				opts.Level = logLevel
			}
			log, logCloser, err = logging.NewFromOptions(opts)
			if err != nil {
				return err
			}
			if cfgErr != nil {
				log.Debug().Err(cfgErr).Str("path", paths.Config).Msg("config not loaded, using defaults")
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.crewbuilder/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newGatewayCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newTemplateCmd())
	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newDBCmd())

	return cmd
}

// loadConfig returns the config loaded by the root command, or the load
// error when the file exists but is unusable.
func loadConfig() (config.Config, error) {
	return cfg, cfgErr
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
