// Package id generates the unique identifiers that keep pipeline runs
// and their workspaces from colliding.
package id

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// New returns a short globally-unique identifier (the first group of a
// random UUID, 8 hex characters).
func New() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// Run returns a run identifier like "20250103-1a2b3c4d".
func Run(now time.Time) string {
	return now.Format("20060102") + "-" + New()
}
