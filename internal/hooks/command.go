package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/soyeahso/crewbuilder/internal/config"
)

// DefaultCommandTimeout bounds a command hook with no configured timeout.
const DefaultCommandTimeout = 10 * time.Second

// configEvents maps config hook names to event names.
var configEvents = map[string]string{
	"sessionStart":   EventSessionStart,
	"sessionEnd":     EventSessionEnd,
	"templateLoaded": EventTemplateLoaded,
	"codeGenerated":  EventCodeGenerated,
	"beforeCrewRun":  EventBeforeCrewRun,
	"afterCrewRun":   EventAfterCrewRun,
	"gatewayStart":   EventGatewayStart,
	"gatewayStop":    EventGatewayStop,
}

// CommandHandler runs command through the shell with the JSON payload on
// stdin. A non-zero exit or a timeout is returned as an error that carries
// the command's trimmed stderr.
func CommandHandler(command string, timeout time.Duration) Handler {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return func(ctx context.Context, p Payload) error {
		input, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding hook payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := shellCommand(ctx, command)
		cmd.Stdin = bytes.NewReader(input)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		// children of the shell may hold stderr open past the kill
		cmd.WaitDelay = 500 * time.Millisecond

		if err := cmd.Run(); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("hook %q timed out after %s", command, timeout)
			}
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("hook %q: %w: %s", command, err, msg)
			}
			return fmt.Errorf("hook %q: %w", command, err)
		}
		return nil
	}
}

// RegisterCommands wires every configured command hook into m. It returns
// the number of hooks registered.
func RegisterCommands(m *Manager, cfg config.HooksConfig) int {
	n := 0
	for name, entries := range cfg.ByEvent() {
		event, ok := configEvents[name]
		if !ok {
			continue
		}
		for i, e := range entries {
			if strings.TrimSpace(e.Command) == "" {
				continue
			}
			timeout := time.Duration(e.Timeout) * time.Millisecond
			m.On(event, fmt.Sprintf("command:%s[%d]", name, i), CommandHandler(e.Command, timeout))
			n++
		}
	}
	return n
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}
