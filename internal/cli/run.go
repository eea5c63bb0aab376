package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/soyeahso/crewbuilder/internal/crew"
	"github.com/soyeahso/crewbuilder/internal/hooks"
	"github.com/soyeahso/crewbuilder/internal/llm"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		flags  crewFlags
		render bool
		style  string
		width  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a crew and print its final output",
		Long: "Run builds a crew the same way generate does and executes it against the configured\n" +
			"LLM provider. The API key comes from llm.apiKey or GROQ_API_KEY.",
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

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			exec := crew.NewExecutor(llm.NewRegistryFromConfig(cfg.LLM, log), log,
				crew.WithTimeout(time.Duration(cfg.Execution.TimeoutSeconds)*time.Second),
				crew.WithVerbose(cfg.Execution.Verbose))

			hookMgr := newHookManager(cfg)
			result, err := runCrew(ctx, exec, hookMgr, sess, progressPrinter(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			output := result.Output
			if render {
				if output, err = renderMarkdown(output, style, width); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(output, "\n"))
			log.Info().
				Int("tasks", len(result.Tasks)).
				Int("inputTokens", result.Usage.InputTokens).
				Int("outputTokens", result.Usage.OutputTokens).
				Dur("duration", result.Duration).
				Msg("crew finished")
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&render, "render", false, "render the output as markdown")
	cmd.Flags().StringVar(&style, "style", "auto", "glamour style for --render (auto, dark, light, notty)")
	cmd.Flags().IntVar(&width, "width", 100, "word wrap width for --render")
	return cmd
}

// runCrew executes the session plan between the before/after run hooks.
func runCrew(ctx context.Context, exec *crew.Executor, hookMgr *hooks.Manager, sess *crew.Session, observe crew.Observer) (*crew.ExecutionResult, error) {
	plan := sess.Plan()
	hookMgr.Emit(ctx, hooks.EventBeforeCrewRun, map[string]any{
		hooks.KeySession: sess.ID(),
		"agents":         len(plan.Agents),
		"tasks":          len(plan.Tasks),
	})

	start := time.Now()
	result, err := exec.Execute(ctx, plan, sess.Credential(), observe)

	data := map[string]any{
		hooks.KeySession:  sess.ID(),
		hooks.KeyState:    string(crew.StateSucceeded),
		hooks.KeyDuration: time.Since(start).Seconds(),
	}
	if err != nil {
		data[hooks.KeyState] = string(crew.StateFailed)
		data[hooks.KeyError] = err.Error()
	}
	hookMgr.Emit(context.Background(), hooks.EventAfterCrewRun, data)
	return result, err
}

// progressPrinter reports task progress on w.
func progressPrinter(w io.Writer) crew.Observer {
	return func(ev crew.ExecutionEvent) {
		if ev.State != crew.StateRunning || ev.TaskIndex < 0 {
			return
		}
		if ev.Task == nil {
			fmt.Fprintf(w, "[%d/%d] running...\n", ev.TaskIndex+1, ev.TaskTotal)
			return
		}
		fmt.Fprintf(w, "[%d/%d] %s done in %s\n", ev.TaskIndex+1, ev.TaskTotal, ev.Task.AgentRole, ev.Task.Duration.Round(time.Millisecond))
	}
}

// renderMarkdown renders text for the terminal with a glamour style.
func renderMarkdown(text, style string, width int) (string, error) {
	styleOpt := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(text)
	if err != nil {
		return "", fmt.Errorf("rendering output: %w", err)
	}
	return out, nil
}
