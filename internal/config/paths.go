package config

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the default ~/.crewbuilder base directory.
const HomeEnv = "CREWBUILDER_HOME"

// Paths holds resolved filesystem paths for crewbuilder data.
type Paths struct {
	Base      string // ~/.crewbuilder
	Config    string // config.yaml
	Templates string // templates.toml
	Data      string // data/
	Sessions  string // data/sessions.db
	Logs      string // logs/
}

// ResolvePaths lays out the crewbuilder tree under $CREWBUILDER_HOME or
// ~/.crewbuilder.
func ResolvePaths() (Paths, error) {
	base := os.Getenv(HomeEnv)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, ".crewbuilder")
	}
	return PathsAt(base), nil
}

// PathsAt lays out the crewbuilder tree under base.
func PathsAt(base string) Paths {
	in := func(elem ...string) string {
		return filepath.Join(append([]string{base}, elem...)...)
	}
	return Paths{
		Base:      base,
		Config:    in("config.yaml"),
		Templates: in("templates.toml"),
		Data:      in("data"),
		Sessions:  in("data", "sessions.db"),
		Logs:      in("logs"),
	}
}

// EnsureDirs creates the base, data and log directories with owner-only access.
func (p Paths) EnsureDirs() error {
	for _, d := range [...]string{p.Base, p.Data, p.Logs} {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
