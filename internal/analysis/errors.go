package analysis

import (
	"errors"
	"fmt"
)

// ErrAnalysisFailed wraps every non-validation pipeline failure.
var ErrAnalysisFailed = errors.New("analysis failed")

// CleanupError reports a scope that could not be fully released.
// It is logged and never returned to callers.
type CleanupError struct {
	RunID string
	Dir   string
	Err   error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup of run %s (%s): %v", e.RunID, e.Dir, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}
