package analysis

import (
	"errors"
	"slices"
	"sync"
	"time"
)

// Stage is the current step of an analysis run.
type Stage string

const (
	// StageValidating checks the request before any I/O.
	StageValidating Stage = "validating"
	// StageExtracting captures frames into the run's scope.
	StageExtracting Stage = "extracting"
	// StageEncoding turns frames into model parts.
	StageEncoding Stage = "encoding"
	// StageDispatching calls the model.
	StageDispatching Stage = "dispatching"
	// StageCleaningUp releases the run's scope.
	StageCleaningUp Stage = "cleaning_up"
	// StageDone indicates the run finished successfully.
	StageDone Stage = "done"
	// StageFailed indicates the run stopped on an error.
	StageFailed Stage = "failed"
)

// ErrInvalidTransition is returned when an invalid stage transition is attempted.
var ErrInvalidTransition = errors.New("invalid stage transition")

// validTransitions defines which stage transitions are allowed.
var validTransitions = map[Stage][]Stage{
	StageValidating:  {StageExtracting, StageFailed},
	StageExtracting:  {StageEncoding, StageFailed},
	StageEncoding:    {StageDispatching, StageFailed},
	StageDispatching: {StageCleaningUp, StageFailed},
	StageCleaningUp:  {StageDone, StageFailed},
	StageDone:        {},
	StageFailed:      {},
}

// canTransition checks if a transition from one stage to another is valid.
func canTransition(from, to Stage) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Run tracks one analysis request through its stages.
type Run struct {
	mu sync.RWMutex

	ID          string
	Stage       Stage
	Err         error
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// NewRun creates a run in the validating stage.
func NewRun(runID string) *Run {
	now := time.Now()
	return &Run{
		ID:        runID,
		Stage:     StageValidating,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to move the run to the given stage.
// Returns ErrInvalidTransition if the transition is not allowed.
func (r *Run) TransitionTo(stage Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !canTransition(r.Stage, stage) {
		return ErrInvalidTransition
	}

	r.Stage = stage
	r.UpdatedAt = time.Now()
	if stage == StageDone || stage == StageFailed {
		r.CompletedAt = r.UpdatedAt
	}

	return nil
}

// Fail moves the run to the failed stage and records err.
func (r *Run) Fail(err error) error {
	r.mu.Lock()
	r.Err = err
	r.mu.Unlock()
	return r.TransitionTo(StageFailed)
}

// GetStage returns the current stage (thread-safe).
func (r *Run) GetStage() Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Stage
}

// IsTerminal returns true if the run is done or failed.
func (r *Run) IsTerminal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Stage == StageDone || r.Stage == StageFailed
}
