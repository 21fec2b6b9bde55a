// Package version holds build information stamped in with -ldflags.
package version

import "fmt"

// Set via -ldflags "-X github.com/banshee-data/pose.report/internal/version.Version=...".
var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String formats the build information for -version flags.
func String() string {
	return fmt.Sprintf("pose.report %s (%s, built %s)", Version, GitSHA, BuildTime)
}
