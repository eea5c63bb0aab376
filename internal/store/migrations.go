package store

type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations must stay in ascending Version order; applied ones never change.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create crew sessions",
		SQL: `
			CREATE TABLE crew_sessions (
				id          TEXT PRIMARY KEY,
				snapshot    TEXT NOT NULL,
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL
			);
			CREATE INDEX idx_crew_sessions_updated ON crew_sessions (updated_at);
		`,
	},
}
