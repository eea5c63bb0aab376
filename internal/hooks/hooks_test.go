package hooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/crewbuilder/internal/logging"
)

func recorder(into *[]Payload, tag string, tags *[]string) Handler {
	return func(_ context.Context, p Payload) error {
		*into = append(*into, p)
		if tags != nil {
			*tags = append(*tags, tag)
		}
		return nil
	}
}

func TestEmitDeliversPayloadInOrder(t *testing.T) {
	m := NewManager(logging.Nop())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	m.now = func() time.Time { return fixed }

	var got []Payload
	var order []string
	m.On(EventTemplateLoaded, "a", recorder(&got, "a", &order))
	m.On(EventTemplateLoaded, "b", recorder(&got, "b", &order))
	m.On(EventCodeGenerated, "other", recorder(&got, "other", &order))

	m.Emit(context.Background(), EventTemplateLoaded, map[string]any{KeyTemplate: "Content Team", KeySession: "s1"})

	assert.Equal(t, []string{"a", "b"}, order)
	require.Len(t, got, 2)
	assert.Equal(t, EventTemplateLoaded, got[0].Event)
	assert.Equal(t, "Content Team", got[0].Data[KeyTemplate])
	assert.Equal(t, fixed.UTC(), got[0].Time)
}

func TestEmitSurvivesFailingHandlers(t *testing.T) {
	m := NewManager(logging.Nop())
	var ran []string
	m.On(EventGatewayStart, "err", func(context.Context, Payload) error {
		ran = append(ran, "err")
		return errors.New("boom")
	})
	m.On(EventGatewayStart, "panic", func(context.Context, Payload) error {
		ran = append(ran, "panic")
		panic("bad hook")
	})
	m.On(EventGatewayStart, "ok", func(context.Context, Payload) error {
		ran = append(ran, "ok")
		return nil
	})

	assert.NotPanics(t, func() { m.Emit(context.Background(), EventGatewayStart, nil) })
	assert.Equal(t, []string{"err", "panic", "ok"}, ran)
}

func TestEmitWithoutSubscribers(t *testing.T) {
	var nilManager *Manager
	assert.NotPanics(t, func() {
		NewManager(nil).Emit(context.Background(), EventGatewayStop, nil)
		nilManager.Emit(context.Background(), EventGatewayStop, nil)
	})
}

func TestHandlerMaySubscribeDuringEmit(t *testing.T) {
	m := NewManager(logging.Nop())
	m.On(EventSessionStart, "subscriber", func(context.Context, Payload) error {
		m.On(EventSessionStart, "late", func(context.Context, Payload) error { return nil })
		return nil
	})

	done := make(chan struct{})
	go func() {
		m.Emit(context.Background(), EventSessionStart, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit deadlocked")
	}
	assert.Equal(t, 2, m.Count(EventSessionStart))
}

func TestCount(t *testing.T) {
	m := NewManager(logging.Nop())
	assert.Zero(t, m.Count(EventAfterCrewRun))
	for i := 1; i <= 3; i++ {
		m.On(EventAfterCrewRun, "h", func(context.Context, Payload) error { return nil })
		assert.Equal(t, i, m.Count(EventAfterCrewRun))
	}
	assert.Zero(t, m.Count(EventBeforeCrewRun))
}

func TestAllEventsMappedFromConfig(t *testing.T) {
	assert.Len(t, AllEvents, len(configEvents))
	for _, ev := range configEvents {
		assert.Contains(t, AllEvents, ev)
	}
}
