package store

import (
	"context"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/soyeahso/crewbuilder/internal/crew"
	"github.com/soyeahso/crewbuilder/internal/domain"
)

// MemorySessionStore keeps snapshots in process memory. Sessions not saved
// within the idle window expire.
type MemorySessionStore struct {
	cache *gocache.Cache
}

// NewMemorySessionStore creates a store whose entries expire after idle.
// A zero idle keeps entries until deleted.
func NewMemorySessionStore(idle time.Duration) *MemorySessionStore {
	if idle <= 0 {
		return &MemorySessionStore{cache: gocache.New(gocache.NoExpiration, 0)}
	}
	return &MemorySessionStore{cache: gocache.New(idle, idle/2)}
}

// OnExpired registers f to run with the id of each session that expires or
// is deleted. Overwrites by Save do not trigger it.
func (m *MemorySessionStore) OnExpired(f func(id string)) {
	m.cache.OnEvicted(func(id string, _ interface{}) { f(id) })
}

// Save stores snap and restarts its idle timer.
func (m *MemorySessionStore) Save(_ context.Context, snap crew.Snapshot) error {
	m.cache.SetDefault(snap.ID, snap)
	return nil
}

// Load returns the snapshot stored under id.
func (m *MemorySessionStore) Load(_ context.Context, id string) (crew.Snapshot, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return crew.Snapshot{}, &domain.NotFoundError{Kind: "session", Key: id}
	}
	return v.(crew.Snapshot), nil
}

// Delete removes the session.
func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.cache.Delete(id)
	return nil
}

// List returns every live snapshot, most recently updated first.
func (m *MemorySessionStore) List(_ context.Context) ([]crew.Snapshot, error) {
	items := m.cache.Items()
	out := make([]crew.Snapshot, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(crew.Snapshot))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Close drops every entry.
func (m *MemorySessionStore) Close() error {
	m.cache.Flush()
	return nil
}
