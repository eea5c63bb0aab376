package gateway

import (
	"context"
	"math"
	"time"

	"github.com/soyeahso/crewbuilder/internal/crew"
	"github.com/soyeahso/crewbuilder/internal/hooks"
)

type generateParams struct {
	Mode    string `json:"mode"`
	Verbose int    `json:"verbose"`
}

// rpcCodeGenerate renders the session plan as a Python program. The
// optional mode overrides the session's resolution mode for this call.
func (s *Server) rpcCodeGenerate(rc *RequestContext) {
	var p generateParams
	if !rc.bind(&p) {
		return
	}
	sess := rc.Client.Session
	mode := sess.Mode()
	if p.Mode != "" {
		m, err := crew.ParseResolutionMode(p.Mode)
		if err != nil {
			rc.Fail(err)
			return
		}
		mode = m
	}

	code, err := crew.Generate(sess.Plan(), crew.GenerateOptions{Mode: mode, Verbose: p.Verbose})
	if err != nil {
		rc.Fail(err)
		return
	}
	s.emit(context.Background(), hooks.EventCodeGenerated, map[string]any{
		hooks.KeySession: sess.ID(),
		hooks.KeyMode:    string(mode),
		"bytes":          len(code),
	})
	rc.Respond(map[string]any{"code": code, "mode": mode})
}

// crewTaskEvent is pushed as each task starts and finishes.
type crewTaskEvent struct {
	Session string `json:"session"`
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Done    bool   `json:"done"`
	Role    string `json:"role,omitempty"`
	Output  string `json:"output,omitempty"`
}

// crewStateEvent is pushed on every state machine transition. Final marks
// the last state event of a run.
type crewStateEvent struct {
	Session string `json:"session"`
	State   string `json:"state"`
	Final   bool   `json:"final,omitempty"`
	Error   string `json:"error,omitempty"`
}

// rpcCrewExecute runs the session plan in the background. Progress is
// streamed as crew.state and crew.task events; the response carries the
// final result. One run per connection at a time.
func (s *Server) rpcCrewExecute(rc *RequestContext) {
	client := rc.Client
	if !client.executing.CompareAndSwap(false, true) {
		rc.RespondError(CodeExecution, "a crew is already running on this session")
		return
	}
	if res := client.executeLimiter.Reserve(); !res.OK() || res.Delay() > 0 {
		retry := res.Delay()
		res.Cancel()
		client.executing.Store(false)
		rc.RespondShape(ErrorShape{
			Code:       CodeRateLimited,
			Message:    "too many executions, slow down",
			Retryable:  true,
			RetryAfter: int(math.Ceil(float64(retry) / float64(time.Millisecond))),
		})
		return
	}

	sess := client.Session
	plan := sess.Plan()
	credential := sess.Credential()

	// The run outlives dispatch, so it answers through its own context.
	async := &RequestContext{Client: client, Frame: rc.Frame, Server: s}

	go func() {
		defer client.executing.Store(false)

		ctx := client.Context()
		s.emit(ctx, hooks.EventBeforeCrewRun, map[string]any{
			hooks.KeySession: sess.ID(),
			"agents":         len(plan.Agents),
			"tasks":          len(plan.Tasks),
		})

		start := time.Now()
		result, err := s.executor.Execute(ctx, plan, credential, func(ev crew.ExecutionEvent) {
			s.publishExecution(client, sess.ID(), ev)
		})

		state := crew.StateSucceeded
		data := map[string]any{
			hooks.KeySession:  sess.ID(),
			hooks.KeyDuration: time.Since(start).Seconds(),
		}
		if err != nil {
			state = crew.StateFailed
			data[hooks.KeyError] = err.Error()
		}
		data[hooks.KeyState] = string(state)
		s.emit(context.Background(), hooks.EventAfterCrewRun, data)

		if err != nil {
			async.Fail(err)
		} else {
			async.Respond(result)
		}
		s.metrics.ObserveRPC(async.Frame.Method, async.outcome)
	}()
}

// publishExecution forwards an execution event to the client.
func (s *Server) publishExecution(c *Client, session string, ev crew.ExecutionEvent) {
	var (
		name    string
		payload any
	)
	switch {
	case ev.State == crew.StateRunning && ev.TaskIndex >= 0:
		te := crewTaskEvent{Session: session, Index: ev.TaskIndex, Total: ev.TaskTotal}
		if ev.Task != nil {
			te.Done = true
			te.Role = ev.Task.AgentRole
			te.Output = ev.Task.Output
		}
		name, payload = EventCrewTask, te
	default:
		se := crewStateEvent{Session: session, State: string(ev.State), Final: ev.State.Terminal()}
		if ev.Err != nil {
			se.Error = ev.Err.Error()
		}
		name, payload = EventCrewState, se
	}
	if err := c.SendEvent(name, payload, s.eventSeq.Add(1)); err != nil {
		s.log.Debug().Err(err).Str("connId", c.ConnID).Str("event", name).Msg("dropping execution event")
	}
}
