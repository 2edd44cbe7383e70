package version

import "fmt"

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time.
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns the bare semantic version.
func Short() string {
	return Version
}

// Full returns the version with commit and build time, as printed by `pcsx2-updater version`.
func Full() string {
	return fmt.Sprintf("pcsx2-updater %s (commit %s, built %s)", Version, Commit, BuildTime)
}

// UserAgent is sent with every HTTP request made by the updater.
func UserAgent() string {
	return "pcsx2-updater/" + Version
}
