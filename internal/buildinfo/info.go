// Package buildinfo carries the version identity stamped into the
// bankpipe binary at build time.
package buildinfo

import "fmt"

// Set via -ldflags at build time; the defaults identify a source build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the full version line shown by --version.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
