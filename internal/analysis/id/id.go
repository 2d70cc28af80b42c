// Package id provides unique identifier generation for analysis runs.
package id

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Generate creates a new unique run ID.
// Format: run-<timestamp>-<uuid>
// Example: run-1701432000-4b0c7a1e-3f7d-4a9e-9c2d-0e8f5b6a1c3d
//
// The ID doubles as the name of the run's storage scope, so it must be
// safe to use as a single path element.
func Generate() string {
	return fmt.Sprintf("run-%d-%s", time.Now().Unix(), uuid.NewString())
}
