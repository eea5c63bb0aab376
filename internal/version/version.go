// Package version reports build metadata.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Overridden at link time, e.g.
//
//	-ldflags "-X github.com/soyeahso/crewbuilder/internal/version.Version=1.0.0"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		fromBuildInfo(info.Settings)
	}
}

// fromBuildInfo fills Commit and Date from VCS stamps when ldflags left them unset.
func fromBuildInfo(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch {
		case s.Key == "vcs.revision" && Commit == "unknown":
			Commit = s.Value
		case s.Key == "vcs.time" && Date == "unknown":
			Date = s.Value
		}
	}
}

// Info is the one-line version banner.
func Info() string {
	return fmt.Sprintf("crewbuilder %s (commit: %s, built: %s, %s/%s)",
		Version, Short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// Short abbreviates a commit hash to seven characters.
func Short(s string) string {
	return s[:min(len(s), 7)]
}
