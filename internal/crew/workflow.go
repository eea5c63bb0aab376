package crew

import (
	"slices"
	"strconv"

	"github.com/soyeahso/crewbuilder/internal/domain"
	"github.com/soyeahso/crewbuilder/internal/ids"
)

// Workflow is the ordered list of steps. Keys are not checked here.
type Workflow struct {
	steps []domain.Step
}

// Append adds a step for key and returns it.
func (w *Workflow) Append(key domain.AgentKey) domain.Step {
	s := domain.Step{ID: ids.New(), AgentKey: key}
	w.steps = append(w.steps, s)
	return s
}

// At returns the step at position.
func (w *Workflow) At(position int) (domain.Step, error) {
	if position < 0 || position >= len(w.steps) {
		return domain.Step{}, positionNotFound(position)
	}
	return w.steps[position], nil
}

// Remove deletes the step at position and returns it.
func (w *Workflow) Remove(position int) (domain.Step, error) {
	s, err := w.At(position)
	if err != nil {
		return domain.Step{}, err
	}
	w.steps = slices.Delete(w.steps, position, position+1)
	return s, nil
}

// Move relocates the step at from so that it ends up at to.
func (w *Workflow) Move(from, to int) error {
	s, err := w.At(from)
	if err != nil {
		return err
	}
	if to < 0 || to >= len(w.steps) {
		return positionNotFound(to)
	}
	w.steps = slices.Delete(w.steps, from, from+1)
	w.steps = slices.Insert(w.steps, to, s)
	return nil
}

// Clear removes every step.
func (w *Workflow) Clear() { w.steps = nil }

// Steps returns a copy of the steps in order.
func (w *Workflow) Steps() []domain.Step {
	return append([]domain.Step(nil), w.steps...)
}

// Keys returns the agent key of every step in order, duplicates included.
func (w *Workflow) Keys() []domain.AgentKey {
	out := make([]domain.AgentKey, len(w.steps))
	for i, s := range w.steps {
		out[i] = s.AgentKey
	}
	return out
}

// Len returns the number of steps.
func (w *Workflow) Len() int { return len(w.steps) }

func positionNotFound(position int) error {
	return &domain.NotFoundError{Kind: "position", Key: strconv.Itoa(position)}
}
