// Package version provides build metadata.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Name is the program name reported by String.
const Name = "mapagent"

// Set with -ldflags "-X github.com/NERVsystems/mapagent/pkg/version.BuildVersion=..."
var (
	BuildVersion = "0.1.0"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
	GoVersion    = runtime.Version()
)

func init() {
	if BuildCommit != "unknown" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			BuildCommit = s.Value
		case "vcs.time":
			if BuildDate == "unknown" {
				BuildDate = s.Value
			}
		}
	}
}

// String returns a formatted version string
func String() string {
	return fmt.Sprintf("%s version %s (%s) built on %s with %s",
		Name, BuildVersion, BuildCommit, BuildDate, GoVersion)
}

// Info returns the build metadata as a map, for health endpoints.
func Info() map[string]string {
	return map[string]string{
		"version":    BuildVersion,
		"commit":     BuildCommit,
		"build_date": BuildDate,
		"go_version": GoVersion,
	}
}
