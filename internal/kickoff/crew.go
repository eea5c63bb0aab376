// Package kickoff runs a crew of agents over an ordered list of tasks.
//
// Tasks execute one at a time in list order. Each task sees the outputs of
// every task before it, and the crew's result is the last task's output.
package kickoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/crewbuilder/internal/llm"
	"github.com/soyeahso/crewbuilder/internal/logging"
)

// Agent is a persona bound to an LLM client and sampling settings.
type Agent struct {
	Role        string
	Goal        string
	Backstory   string
	Client      llm.Client
	Model       string
	Temperature *float64
	MaxTokens   int
}

// Task is a unit of work handled by one agent.
type Task struct {
	Description    string
	ExpectedOutput string
	Agent          *Agent
}

// TaskOutput is the result of one task.
type TaskOutput struct {
	Index       int           `json:"index"`
	Description string        `json:"description"`
	AgentRole   string        `json:"agentRole"`
	Output      string        `json:"output"`
	Usage       llm.Usage     `json:"usage"`
	Duration    time.Duration `json:"duration"`
}

// CrewOutput is the result of a full run.
type CrewOutput struct {
	Output   string        `json:"output"`
	Tasks    []TaskOutput  `json:"tasks"`
	Usage    llm.Usage     `json:"usage"`
	Duration time.Duration `json:"duration"`
}

// TaskError reports which task failed.
type TaskError struct {
	Index int
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d: %v", e.Index, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// ErrNoAgent is returned for a task without an agent.
var ErrNoAgent = errors.New("task has no agent")

// ErrNoClient is returned for an agent without an LLM client.
var ErrNoClient = errors.New("agent has no LLM client")

// Crew is a set of agents and the tasks they work through.
type Crew struct {
	Agents  []*Agent
	Tasks   []*Task
	Verbose bool
	Log     *logging.Logger

	// OnTaskStart and OnTaskDone observe progress. Either may be nil.
	OnTaskStart func(index int, task *Task)
	OnTaskDone  func(out TaskOutput)
}

// Validate checks that every task can run.
func (c *Crew) Validate() error {
	for i, t := range c.Tasks {
		if t == nil || t.Agent == nil {
			return &TaskError{Index: i, Err: ErrNoAgent}
		}
		if t.Agent.Client == nil {
			return &TaskError{Index: i, Err: ErrNoClient}
		}
	}
	return nil
}

// Kickoff validates the crew and runs its tasks sequentially. It blocks
// until every task finishes or one fails; a failure aborts the run and no
// partial output is returned.
func (c *Crew) Kickoff(ctx context.Context) (*CrewOutput, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	log := c.Log
	if log == nil {
		log = logging.Nop()
	}
	log = log.Sub("kickoff")

	start := time.Now()
	out := &CrewOutput{Tasks: make([]TaskOutput, 0, len(c.Tasks))}

	for i, t := range c.Tasks {
		if err := ctx.Err(); err != nil {
			return nil, &TaskError{Index: i, Err: err}
		}
		if c.OnTaskStart != nil {
			c.OnTaskStart(i, t)
		}

		taskStart := time.Now()
		resp, err := t.Agent.Client.Complete(ctx, llm.CompletionRequest{
			Model:       t.Agent.Model,
			System:      BuildSystemPrompt(t.Agent),
			Messages:    []llm.Message{{Role: llm.RoleUser, Content: BuildTaskPrompt(t, out.Tasks)}},
			MaxTokens:   t.Agent.MaxTokens,
			Temperature: t.Agent.Temperature,
		})
		if err != nil {
			log.Error().Err(err).Int("task", i).Str("agent", t.Agent.Role).Msg("task failed")
			return nil, &TaskError{Index: i, Err: err}
		}

		to := TaskOutput{
			Index:       i,
			Description: t.Description,
			AgentRole:   t.Agent.Role,
			Output:      resp.Content,
			Usage:       resp.Usage,
			Duration:    time.Since(taskStart),
		}
		out.Tasks = append(out.Tasks, to)
		out.Usage = out.Usage.Add(resp.Usage)

		ev := log.Debug()
		if c.Verbose {
			ev = log.Info()
		}
		ev.Int("task", i).
			Str("agent", t.Agent.Role).
			Int("outputTokens", resp.Usage.OutputTokens).
			Dur("duration", to.Duration).
			Msg("task completed")

		if c.OnTaskDone != nil {
			c.OnTaskDone(to)
		}
	}

	if n := len(out.Tasks); n > 0 {
		out.Output = out.Tasks[n-1].Output
	}
	out.Duration = time.Since(start)
	return out, nil
}
