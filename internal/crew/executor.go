package crew

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/crewbuilder/internal/domain"
	"github.com/soyeahso/crewbuilder/internal/kickoff"
	"github.com/soyeahso/crewbuilder/internal/llm"
	"github.com/soyeahso/crewbuilder/internal/logging"
)

// ExecutionState is a step of the execution state machine:
// Idle → Building → Running → Succeeded | Failed.
type ExecutionState string

const (
	StateIdle      ExecutionState = "idle"
	StateBuilding  ExecutionState = "building"
	StateRunning   ExecutionState = "running"
	StateSucceeded ExecutionState = "succeeded"
	StateFailed    ExecutionState = "failed"
)

// Terminal reports whether no further transitions follow.
func (s ExecutionState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// ExecutionEvent is delivered to an Observer. State events carry State
// (and Err when Failed); task events carry TaskIndex and, once the task
// finishes, Task.
type ExecutionEvent struct {
	State     ExecutionState
	TaskIndex int
	TaskTotal int
	Task      *kickoff.TaskOutput
	Err       error
}

// Observer receives execution progress. It is called synchronously.
type Observer func(ExecutionEvent)

// ExecutionResult is the outcome of a successful run.
type ExecutionResult struct {
	State    ExecutionState       `json:"state"`
	Output   string               `json:"output"`
	Tasks    []kickoff.TaskOutput `json:"tasks"`
	Usage    llm.Usage            `json:"usage"`
	Duration time.Duration        `json:"duration"`
}

// Executor builds kickoff crews from plans and runs them.
type Executor struct {
	registry *llm.Registry
	log      *logging.Logger
	timeout  time.Duration
	verbose  bool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTimeout bounds every run. Zero means no limit.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// WithVerbose logs each finished task at info level.
func WithVerbose(v bool) ExecutorOption {
	return func(e *Executor) { e.verbose = v }
}

// NewExecutor creates an Executor resolving clients from registry.
func NewExecutor(registry *llm.Registry, log *logging.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{registry: registry, log: log.Sub("executor")}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs plan to completion. credential overrides the provider's
// configured key when not empty. On failure the error is a
// *domain.ValidationError (missing credential) or *domain.ExecutionError.
func (e *Executor) Execute(ctx context.Context, plan Plan, credential string, observe Observer) (*ExecutionResult, error) {
	if observe == nil {
		observe = func(ExecutionEvent) {}
	}
	start := time.Now()
	observe(ExecutionEvent{State: StateIdle})

	fail := func(err error) (*ExecutionResult, error) {
		e.log.Warn().Err(err).Int("tasks", len(plan.Tasks)).Msg("crew execution failed")
		observe(ExecutionEvent{State: StateFailed, Err: err})
		return nil, err
	}

	var client llm.Client
	if len(plan.Tasks) > 0 {
		c, err := e.registry.ResolveWithKey(string(plan.Model.Model), credential)
		switch {
		case errors.Is(err, llm.ErrMissingAPIKey):
			return fail(&domain.ValidationError{Field: "apiKey", Message: "an API key is required to execute"})
		case err != nil:
			return fail(&domain.ExecutionError{Stage: domain.StageBuild, Message: err.Error(), Err: err})
		}
		client = c
	}

	observe(ExecutionEvent{State: StateBuilding})
	crew, err := e.build(plan, client)
	if err != nil {
		return fail(err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	total := len(crew.Tasks)
	crew.OnTaskStart = func(i int, _ *kickoff.Task) {
		observe(ExecutionEvent{State: StateRunning, TaskIndex: i, TaskTotal: total})
	}
	crew.OnTaskDone = func(out kickoff.TaskOutput) {
		observe(ExecutionEvent{State: StateRunning, TaskIndex: out.Index, TaskTotal: total, Task: &out})
	}

	observe(ExecutionEvent{State: StateRunning, TaskIndex: -1, TaskTotal: total})
	e.log.Info().
		Int("agents", len(crew.Agents)).
		Int("tasks", total).
		Str("model", string(plan.Model.Model)).
		Msg("crew kickoff")

	out, err := crew.Kickoff(ctx)
	if err != nil {
		return fail(&domain.ExecutionError{Stage: domain.StageRun, Message: runMessage(err), Err: err})
	}

	res := &ExecutionResult{
		State:    StateSucceeded,
		Output:   out.Output,
		Tasks:    out.Tasks,
		Usage:    out.Usage,
		Duration: time.Since(start),
	}
	observe(ExecutionEvent{State: StateSucceeded, TaskIndex: -1, TaskTotal: total})
	e.log.Info().Int("tasks", total).Dur("duration", res.Duration).Msg("crew execution succeeded")
	return res, nil
}

// build creates one engine agent per resolved plan agent and one engine
// task per task record.
func (e *Executor) build(plan Plan, client llm.Client) (*kickoff.Crew, error) {
	temp := plan.Model.Temperature
	agents := make(map[domain.AgentKey]*kickoff.Agent, len(plan.Agents))
	crew := &kickoff.Crew{Verbose: e.verbose, Log: e.log}

	for _, pa := range plan.Agents {
		if !pa.Resolved {
			continue
		}
		a := &kickoff.Agent{
			Role:        pa.Definition.Role,
			Goal:        pa.Definition.Goal,
			Backstory:   pa.Definition.Backstory,
			Client:      client,
			Model:       string(plan.Model.Model),
			Temperature: &temp,
			MaxTokens:   plan.Model.MaxTokens,
		}
		agents[pa.Key] = a
		crew.Agents = append(crew.Agents, a)
	}

	for i, t := range plan.Tasks {
		a, ok := agents[t.AgentKey]
		if !ok {
			return nil, &domain.ExecutionError{
				Stage:   domain.StageBuild,
				Message: fmt.Sprintf("task %d: agent %q was never materialized", i, t.AgentKey),
				Err:     &domain.NotFoundError{Kind: "agent", Key: string(t.AgentKey)},
			}
		}
		crew.Tasks = append(crew.Tasks, &kickoff.Task{
			Description:    t.Description,
			ExpectedOutput: t.ExpectedOutput,
			Agent:          a,
		})
	}
	return crew, nil
}

// runMessage surfaces the provider's own message when there is one.
func runMessage(err error) string {
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	return err.Error()
}
