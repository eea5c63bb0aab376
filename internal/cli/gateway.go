package cli

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tillberg/autorestart"

	"github.com/soyeahso/crewbuilder/internal/config"
	"github.com/soyeahso/crewbuilder/internal/gateway"
	"github.com/soyeahso/crewbuilder/internal/metrics"
	"github.com/soyeahso/crewbuilder/internal/store"
	"github.com/soyeahso/crewbuilder/internal/templates"
	"github.com/soyeahso/crewbuilder/internal/version"
)

type gatewayFlags struct {
	port             int
	bind             string
	restartOnRebuild bool
}

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Serve the builder over websocket JSON-RPC",
	}
	cmd.AddCommand(newGatewayRunCmd())
	return cmd
}

func newGatewayRunCmd() *cobra.Command {
	var f gatewayFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gateway and serve until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if f.port != 0 {
				cfg.Gateway.Port = f.port
			}
			if f.bind != "" {
				cfg.Gateway.Bind = f.bind
			}
			if err := validateForGateway(&cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, reg, closer, err := buildGateway(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			if cfg.Crew.WatchTemplates {
				if err := reg.Watch(ctx, templates.DefaultDebounce, srv.TemplatesReloaded); err != nil {
					log.Warn().Err(err).Msg("template hot reload disabled")
				}
			}
			if f.restartOnRebuild {
				log.Info().Msg("restarting when the binary is rebuilt")
				go autorestart.RestartOnChange()
			}
			return srv.Start(ctx)
		},
	}
	cmd.Flags().IntVar(&f.port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&f.bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")
	cmd.Flags().BoolVar(&f.restartOnRebuild, "restart-on-rebuild", false, "re-exec the gateway when its binary changes on disk")
	return cmd
}

// validateForGateway logs every config issue and fails if there were any.
func validateForGateway(cfg *config.Config) error {
	issues := config.Validate(cfg)
	for _, issue := range issues {
		log.Error().Str("path", issue.Path).Msg(issue.Message)
	}
	if len(issues) > 0 {
		return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return nil
}

// buildGateway wires templates, hooks, the session store and metrics into a
// gateway server. The closer releases the session store.
func buildGateway(cfg config.Config) (*gateway.Server, *templates.Registry, io.Closer, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, nil, nil, fmt.Errorf("creating data directories: %w", err)
	}
	reg, err := templates.NewRegistry(templatesPath(cfg), log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading templates: %w", err)
	}
	hookMgr := newHookManager(cfg)

	sessions, err := store.OpenSessionStore(cfg.Session, paths.Sessions, log)
	if err != nil {
		return nil, nil, nil, errors.Join(errors.New("opening session store"), err)
	}
	log.Info().Str("store", cfg.Session.Store).Msg("session store ready")

	opts := []gateway.ServerOption{
		gateway.WithTemplates(reg),
		gateway.WithSessionStore(sessions),
		gateway.WithHooks(hookMgr),
	}
	if cfg.Metrics.Enabled {
		m := metrics.New(version.Version, version.Commit)
		m.Subscribe(hookMgr)
		opts = append(opts, gateway.WithMetrics(m))
	}
	return gateway.New(cfg, log, opts...), reg, sessions, nil
}

// templatesPath is the configured templates file, or the default one.
func templatesPath(cfg config.Config) string {
	if cfg.Crew.TemplatesFile != "" {
		return cfg.Crew.TemplatesFile
	}
	return paths.Templates
}
