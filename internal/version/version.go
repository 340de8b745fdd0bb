// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version information
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// UserAgent identifies pantry in outgoing HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("pantry/%s", Version)
}
