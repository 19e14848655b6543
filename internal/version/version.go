// Package version exposes build metadata stamped in via ldflags.
package version

import "fmt"

//nolint:revive // Overwritten by -ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build metadata as a single field for startup logs.
func String() string {
	return fmt.Sprintf("%s (%s, built %s)", Version, Commit, Date)
}
