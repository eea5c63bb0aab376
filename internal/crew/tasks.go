package crew

import (
	"slices"

	"github.com/soyeahso/crewbuilder/internal/domain"
	"github.com/soyeahso/crewbuilder/internal/ids"
)

// TaskStore holds task records keyed by id, with at most one task bound to
// each workflow step.
type TaskStore struct {
	order   []string
	records map[string]domain.TaskRecord
	byStep  map[string]string
}

// NewTaskStore returns an empty store.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		records: make(map[string]domain.TaskRecord),
		byStep:  make(map[string]string),
	}
}

// Create adds an empty task for key, bound to stepID when it is not empty.
func (s *TaskStore) Create(stepID string, key domain.AgentKey) domain.TaskRecord {
	rec := domain.TaskRecord{ID: ids.New(), StepID: stepID, AgentKey: key}
	s.Put(rec)
	return rec
}

// Put inserts or replaces rec. Replacing keeps the original insertion
// position. A bound rec displaces any other task bound to the same step.
func (s *TaskStore) Put(rec domain.TaskRecord) {
	if old, ok := s.records[rec.ID]; ok && old.StepID != rec.StepID && old.StepID != "" {
		delete(s.byStep, old.StepID)
	}
	if rec.StepID != "" {
		if prev, ok := s.byStep[rec.StepID]; ok && prev != rec.ID {
			s.delete(prev)
		}
		s.byStep[rec.StepID] = rec.ID
	}
	if _, ok := s.records[rec.ID]; !ok {
		s.order = append(s.order, rec.ID)
	}
	s.records[rec.ID] = rec
}

// BoundTo returns the task bound to stepID.
func (s *TaskStore) BoundTo(stepID string) (domain.TaskRecord, bool) {
	id, ok := s.byStep[stepID]
	if !ok {
		return domain.TaskRecord{}, false
	}
	return s.records[id], true
}

// RemoveStep deletes the task bound to stepID, if any.
func (s *TaskStore) RemoveStep(stepID string) {
	if id, ok := s.byStep[stepID]; ok {
		s.delete(id)
	}
}

func (s *TaskStore) delete(id string) {
	rec, ok := s.records[id]
	if !ok {
		return
	}
	if rec.StepID != "" && s.byStep[rec.StepID] == id {
		delete(s.byStep, rec.StepID)
	}
	delete(s.records, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
}

// Clear removes every task.
func (s *TaskStore) Clear() {
	s.order = nil
	s.records = make(map[string]domain.TaskRecord)
	s.byStep = make(map[string]string)
}

// Len returns the number of tasks.
func (s *TaskStore) Len() int { return len(s.order) }

// All returns every task in insertion order.
func (s *TaskStore) All() []domain.TaskRecord {
	out := make([]domain.TaskRecord, len(s.order))
	for i, id := range s.order {
		out[i] = s.records[id]
	}
	return out
}

// Ordered returns tasks in emission order: tasks bound to steps follow the
// step order, then unbound tasks follow insertion order.
func (s *TaskStore) Ordered(steps []domain.Step) []domain.TaskRecord {
	out := make([]domain.TaskRecord, 0, len(s.order))
	for _, st := range steps {
		if rec, ok := s.BoundTo(st.ID); ok {
			out = append(out, rec)
		}
	}
	for _, id := range s.order {
		if rec := s.records[id]; !rec.Bound() {
			out = append(out, rec)
		}
	}
	return out
}
