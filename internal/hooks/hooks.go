// Package hooks dispatches crewbuilder lifecycle events to registered
// handlers, in process or through configured shell commands.
package hooks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/crewbuilder/internal/logging"
)

// Lifecycle events.
const (
	EventSessionStart   = "session_start"
	EventSessionEnd     = "session_end"
	EventTemplateLoaded = "template_loaded"
	EventCodeGenerated  = "code_generated"
	EventBeforeCrewRun  = "before_crew_run"
	EventAfterCrewRun   = "after_crew_run"
	EventGatewayStart   = "gateway_start"
	EventGatewayStop    = "gateway_stop"
)

// AllEvents lists every event in lifecycle order.
var AllEvents = []string{
	EventGatewayStart,
	EventSessionStart,
	EventTemplateLoaded,
	EventCodeGenerated,
	EventBeforeCrewRun,
	EventAfterCrewRun,
	EventSessionEnd,
	EventGatewayStop,
}

// Keys used in Payload.Data.
const (
	KeySession  = "session"
	KeyTemplate = "template"
	KeyMode     = "mode"
	KeyState    = "state"
	KeyDuration = "durationSeconds"
	KeyError    = "error"
)

// Payload is what a handler receives, and what command hooks read as JSON
// on stdin.
type Payload struct {
	Event string         `json:"event"`
	Time  time.Time      `json:"time"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler reacts to an event. Its error is logged and never stops dispatch.
type Handler func(ctx context.Context, p Payload) error

type subscription struct {
	name string
	fn   Handler
}

// Manager holds handler subscriptions per event.
type Manager struct {
	mu   sync.RWMutex
	subs map[string][]subscription
	log  *logging.Logger
	now  func() time.Time
}

// NewManager returns an empty Manager. A nil log discards output.
func NewManager(log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{
		subs: make(map[string][]subscription),
		log:  log.Sub("hooks"),
		now:  time.Now,
	}
}

// On subscribes fn to event under name, which appears in error logs.
func (m *Manager) On(event, name string, fn Handler) {
	m.mu.Lock()
	m.subs[event] = append(m.subs[event], subscription{name: name, fn: fn})
	m.mu.Unlock()
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Count reports how many handlers are subscribed to event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[event])
}

// Emit calls the event's handlers in subscription order and returns once
// they have all finished. A nil Manager ignores the call.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	if m == nil {
		return
	}
	m.mu.RLock()
	subs := slices.Clone(m.subs[event])
	m.mu.RUnlock()

	p := Payload{Event: event, Time: m.now().UTC(), Data: data}
	for _, s := range subs {
		m.call(ctx, s, p)
	}
}

func (m *Manager) call(ctx context.Context, s subscription, p Payload) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return s.fn(ctx, p)
	}()
	if err != nil {
		m.log.Warn().Err(err).Str("event", p.Event).Str("handler", s.name).Msg("hook handler failed")
	}
}
