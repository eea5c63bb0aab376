package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/crewbuilder/internal/config"
	"github.com/soyeahso/crewbuilder/internal/crew"
	"github.com/soyeahso/crewbuilder/internal/domain"
	"github.com/soyeahso/crewbuilder/internal/logging"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func mockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return &DB{sql: sqlDB, log: logging.Nop()}, mock
}

func snapshot(id string, updated time.Time) crew.Snapshot {
	return crew.Snapshot{
		ID:   id,
		Mode: crew.Strict,
		Custom: []domain.TemplateAgent{{
			Key:        "🧪 Revisor",
			Definition: domain.AgentDefinition{Role: "Revisor", Goal: "Revisar", Emoji: "🧪"},
		}},
		Steps:     []domain.Step{{ID: "01STEP", AgentKey: "🧪 Revisor"}},
		Tasks:     []domain.TaskRecord{{ID: "01TASK", StepID: "01STEP", Description: "review", AgentKey: "🧪 Revisor"}},
		Model:     domain.DefaultModelConfig(),
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: updated,
	}
}

func TestOpenAppliesMigrations(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	v, err := db.schemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, v)

	var name string
	require.NoError(t, db.sql.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", "crew_sessions",
	).Scan(&name))

	require.NoError(t, db.migrate(ctx), "second run is a no-op")
	var rows int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&rows))
	assert.Equal(t, len(migrations), rows)
}

func TestMigrationsAscending(t *testing.T) {
	for i := 1; i < len(migrations); i++ {
		assert.Greater(t, migrations[i].Version, migrations[i-1].Version)
	}
}

func TestMigrateFailures(t *testing.T) {
	createTable := "CREATE TABLE IF NOT EXISTS schema_migrations"
	maxVersion := regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")

	t.Run("migrations table", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectExec(createTable).WillReturnError(errors.New("disk full"))

		err := db.migrate(context.Background())
		assert.ErrorContains(t, err, "creating migrations table: disk full")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back a failed step", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectExec(createTable).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(maxVersion).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(0))
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE crew_sessions").WillReturnError(errors.New("syntax"))
		mock.ExpectRollback()

		err := db.migrate(context.Background())
		assert.ErrorContains(t, err, "migration 1 (create crew sessions): syntax")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips applied", func(t *testing.T) {
		db, mock := mockDB(t)
		mock.ExpectExec(createTable).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(maxVersion).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(len(migrations)))

		require.NoError(t, db.migrate(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// --- Version tests ---

func TestSQLiteVersion(t *testing.T) {
	v, err := SQLiteVersion(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v, "3."), v)

	db := testDB(t)
	v2, err := db.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, v, v2)
}

func TestQueryVersion_Error(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT sqlite_version()")).WillReturnError(errors.New("boom"))

	_, err := db.Version(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying sqlite version")
}

// --- SQLiteSessionStore tests ---

func TestSQLiteSessionStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteSessionStore(testDB(t))

	snap := snapshot("s1", time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC))
	require.NoError(t, s.Save(ctx, snap))

	got, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	snap.Tasks[0].Description = "review twice"
	snap.UpdatedAt = snap.UpdatedAt.Add(time.Minute)
	require.NoError(t, s.Save(ctx, snap))

	got, err = s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "review twice", got.Tasks[0].Description)

	require.NoError(t, s.Delete(ctx, "s1"))
	_, err = s.Load(ctx, "s1")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "session", nf.Kind)

	assert.NoError(t, s.Delete(ctx, "s1"))
}

func TestSQLiteSessionStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteSessionStore(testDB(t))

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, snapshot("old", base)))
	require.NoError(t, s.Save(ctx, snapshot("new", base.Add(time.Hour))))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
}

func TestSQLiteSessionStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")

	db, err := Open(path, nil)
	require.NoError(t, err)
	s := NewSQLiteSessionStore(db)
	require.NoError(t, s.Save(ctx, snapshot("keep", time.Now().UTC())))
	require.NoError(t, s.Close())

	db, err = Open(path, nil)
	require.NoError(t, err)
	s = NewSQLiteSessionStore(db)
	defer s.Close()

	got, err := s.Load(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "keep", got.ID)
}

func TestSQLiteSessionStore_RestoresSession(t *testing.T) {
	ctx := context.Background()
	st := NewSQLiteSessionStore(testDB(t))
	opts := crew.Options{Predefined: crew.NewPredefined(crew.DefaultAgents()...)}

	sess := crew.NewSession(opts)
	_, err := sess.AddCustomAgent("Revisor", "Revisar textos", "", "🧪")
	require.NoError(t, err)
	_, err = sess.Append("🔍 Pesquisador")
	require.NoError(t, err)
	_, err = sess.Append("🧪 Revisor")
	require.NoError(t, err)
	_, err = sess.EditTask(1, "revise the draft", "a clean draft")
	require.NoError(t, err)
	sess.SetCredential("gsk-secret")

	require.NoError(t, st.Save(ctx, sess.Snapshot()))

	var raw string
	require.NoError(t, st.db.sql.QueryRow("SELECT snapshot FROM crew_sessions").Scan(&raw))
	assert.NotContains(t, raw, "gsk-secret")

	snap, err := st.Load(ctx, sess.ID())
	require.NoError(t, err)
	restored, err := crew.RestoreSession(snap, opts)
	require.NoError(t, err)

	assert.Equal(t, sess.Plan(), restored.Plan())
	assert.Empty(t, restored.Credential())
}

func TestSQLiteSessionStore_SaveError(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectExec("INSERT INTO crew_sessions").
		WithArgs("s1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("database is locked"))

	err := NewSQLiteSessionStore(db).Save(context.Background(), snapshot("s1", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saving session s1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteSessionStore_LoadError(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery("SELECT snapshot FROM crew_sessions").WithArgs("s1").WillReturnError(errors.New("io"))

	_, err := NewSQLiteSessionStore(db).Load(context.Background(), "s1")
	require.Error(t, err)
	var nf *domain.NotFoundError
	assert.False(t, errors.As(err, &nf))
	assert.Contains(t, err.Error(), "loading session s1")
}

func TestSQLiteSessionStore_LoadCorrupt(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery("SELECT snapshot FROM crew_sessions").WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"snapshot"}).AddRow("{not json"))

	_, err := NewSQLiteSessionStore(db).Load(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding session s1")
}

func TestSQLiteSessionStore_ListErrors(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectQuery("SELECT id, snapshot FROM crew_sessions").WillReturnError(errors.New("gone"))

	_, err := NewSQLiteSessionStore(db).List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing sessions")

	mock.ExpectQuery("SELECT id, snapshot FROM crew_sessions").
		WillReturnRows(sqlmock.NewRows([]string{"id", "snapshot"}).AddRow("a", "[]"))
	_, err = NewSQLiteSessionStore(db).List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding session a")
}

func TestSQLiteSessionStore_DeleteError(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectExec("DELETE FROM crew_sessions").WithArgs("s1").WillReturnError(errors.New("readonly"))

	err := NewSQLiteSessionStore(db).Delete(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deleting session s1")
}

// --- MemorySessionStore tests ---

func TestMemorySessionStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySessionStore(time.Hour)

	snap := snapshot("m1", time.Now().UTC())
	require.NoError(t, m.Save(ctx, snap))

	got, err := m.Load(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	require.NoError(t, m.Delete(ctx, "m1"))
	_, err = m.Load(ctx, "m1")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestMemorySessionStore_List(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySessionStore(0)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.Save(ctx, snapshot("b", base)))
	require.NoError(t, m.Save(ctx, snapshot("a", base)))
	require.NoError(t, m.Save(ctx, snapshot("c", base.Add(time.Second))))

	list, err := m.List(ctx)
	require.NoError(t, err)
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	require.NoError(t, m.Close())
	list, err = m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemorySessionStore_IdleExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySessionStore(30 * time.Millisecond)

	expired := make(chan string, 1)
	m.OnExpired(func(id string) {
		select {
		case expired <- id:
		default:
		}
	})

	require.NoError(t, m.Save(ctx, snapshot("idle", time.Now().UTC())))

	select {
	case id := <-expired:
		assert.Equal(t, "idle", id)
	case <-time.After(5 * time.Second):
		t.Fatal("session never expired")
	}
	_, err := m.Load(ctx, "idle")
	assert.Error(t, err)
}

// --- OpenSessionStore tests ---

func TestOpenSessionStore(t *testing.T) {
	log := logging.New(nil, "silent")

	s, err := OpenSessionStore(config.SessionConfig{Store: "memory", IdleMinutes: 5}, "", log)
	require.NoError(t, err)
	assert.IsType(t, &MemorySessionStore{}, s)
	require.NoError(t, s.Close())

	path := filepath.Join(t.TempDir(), "sessions.db")
	s, err = OpenSessionStore(config.SessionConfig{Store: "sqlite"}, path, log)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteSessionStore{}, s)
	assert.FileExists(t, path)
	require.NoError(t, s.Close())

	_, err = OpenSessionStore(config.SessionConfig{Store: "redis"}, path, log)
	assert.Error(t, err)
}

func TestOpenSessionStoreLogsDroppedMemorySessions(t *testing.T) {
	var buf bytes.Buffer
	s, err := OpenSessionStore(config.SessionConfig{Store: "memory"}, "", logging.New(&buf, "debug"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, snapshot("gone", time.Now().UTC())))
	require.NoError(t, s.Delete(ctx, "gone"))

	assert.Contains(t, buf.String(), "session dropped from memory store")
	assert.Contains(t, buf.String(), `"session":"gone"`)
}
