package crew

import (
	"context"
	"time"

	"github.com/soyeahso/crewbuilder/internal/domain"
)

// Snapshot is the persistable form of a Session. It never carries the
// credential.
type Snapshot struct {
	ID        string                 `json:"id"`
	Mode      ResolutionMode         `json:"mode"`
	Custom    []domain.TemplateAgent `json:"customAgents"`
	Steps     []domain.Step          `json:"steps"`
	Tasks     []domain.TaskRecord    `json:"tasks"`
	Model     domain.ModelConfig     `json:"model"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// SessionStore persists session snapshots.
type SessionStore interface {
	Save(ctx context.Context, snap Snapshot) error
	// Load returns a *domain.NotFoundError when id is unknown.
	Load(ctx context.Context, id string) (Snapshot, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Snapshot, error)
	Close() error
}

// Snapshot captures the session for persistence.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:        s.id,
		Mode:      s.mode,
		Custom:    s.catalog.Custom(),
		Steps:     s.workflow.Steps(),
		Tasks:     s.tasks.All(),
		Model:     s.model,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
}

// RestoreSession rebuilds a session from a snapshot. Predefined agents and
// templates come from opts; opts.ID, Mode and Model are ignored.
func RestoreSession(snap Snapshot, opts Options) (*Session, error) {
	opts.ID = snap.ID
	opts.Mode = snap.Mode
	opts.Model = snap.Model
	s := NewSession(opts)

	for _, a := range snap.Custom {
		if _, err := s.catalog.AddCustom(a.Definition); err != nil {
			return nil, err
		}
	}
	s.workflow.steps = append([]domain.Step(nil), snap.Steps...)
	for _, t := range snap.Tasks {
		s.tasks.Put(t)
	}
	if !snap.CreatedAt.IsZero() {
		s.createdAt = snap.CreatedAt
	}
	if !snap.UpdatedAt.IsZero() {
		s.updatedAt = snap.UpdatedAt
	}
	return s, nil
}
