package store

import (
	"fmt"
	"time"

	"github.com/soyeahso/crewbuilder/internal/config"
	"github.com/soyeahso/crewbuilder/internal/crew"
	"github.com/soyeahso/crewbuilder/internal/logging"
)

// OpenSessionStore builds the session store selected by cfg. defaultPath
// is used for the sqlite store when cfg.DBPath is empty.
func OpenSessionStore(cfg config.SessionConfig, defaultPath string, log *logging.Logger) (crew.SessionStore, error) {
	switch cfg.Store {
	case "", "memory":
		m := NewMemorySessionStore(time.Duration(cfg.IdleMinutes) * time.Minute)
		m.OnExpired(func(id string) {
			log.Debug().Str("session", id).Msg("session dropped from memory store")
		})
		return m, nil
	case "sqlite":
		path := cfg.DBPath
		if path == "" {
			path = defaultPath
		}
		db, err := Open(path, log)
		if err != nil {
			return nil, err
		}
		return NewSQLiteSessionStore(db), nil
	}
	return nil, fmt.Errorf("unknown session store %q", cfg.Store)
}
