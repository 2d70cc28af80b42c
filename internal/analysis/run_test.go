package analysis

import (
	"errors"
	"testing"
)

func TestNewRun(t *testing.T) {
	run := NewRun("run-1")

	if run.ID != "run-1" {
		t.Errorf("expected ID run-1, got %s", run.ID)
	}
	if run.Stage != StageValidating {
		t.Errorf("expected stage %s, got %s", StageValidating, run.Stage)
	}
	if run.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if !run.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be unset")
	}
}

func TestRun_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Stage
		to      Stage
		wantErr bool
	}{
		{"validating to extracting", StageValidating, StageExtracting, false},
		{"extracting to encoding", StageExtracting, StageEncoding, false},
		{"encoding to dispatching", StageEncoding, StageDispatching, false},
		{"dispatching to cleaning up", StageDispatching, StageCleaningUp, false},
		{"cleaning up to done", StageCleaningUp, StageDone, false},
		{"validating to failed", StageValidating, StageFailed, false},
		{"extracting to failed", StageExtracting, StageFailed, false},
		{"encoding to failed", StageEncoding, StageFailed, false},
		{"dispatching to failed", StageDispatching, StageFailed, false},
		{"cleaning up to failed", StageCleaningUp, StageFailed, false},
		// Invalid transitions
		{"validating to dispatching", StageValidating, StageDispatching, true},
		{"extracting to done", StageExtracting, StageDone, true},
		{"encoding to extracting", StageEncoding, StageExtracting, true},
		{"done to failed", StageDone, StageFailed, true},
		{"failed to done", StageFailed, StageDone, true},
		{"failed to extracting", StageFailed, StageExtracting, true},
		{"unknown stage", Stage("unknown"), StageDone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := NewRun("test")
			run.Stage = tt.from

			err := run.TransitionTo(tt.to)

			if tt.wantErr && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition for %s -> %s, got %v", tt.from, tt.to, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for transition %s -> %s: %v", tt.from, tt.to, err)
			}
		})
	}
}

func TestRun_FullLifecycle(t *testing.T) {
	run := NewRun("test")

	for _, stage := range []Stage{StageExtracting, StageEncoding, StageDispatching, StageCleaningUp, StageDone} {
		if err := run.TransitionTo(stage); err != nil {
			t.Fatalf("transition to %s failed: %v", stage, err)
		}
	}

	if !run.IsTerminal() {
		t.Error("expected run to be terminal")
	}
	if run.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set")
	}
}

func TestRun_Fail(t *testing.T) {
	run := NewRun("test")
	_ = run.TransitionTo(StageExtracting)

	cause := errors.New("boom")
	if err := run.Fail(cause); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}

	if run.GetStage() != StageFailed {
		t.Errorf("expected stage %s, got %s", StageFailed, run.GetStage())
	}
	if !errors.Is(run.Err, cause) {
		t.Errorf("expected Err to be recorded, got %v", run.Err)
	}
	if !run.IsTerminal() {
		t.Error("expected run to be terminal")
	}

	if err := run.Fail(cause); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("failing a terminal run should be rejected, got %v", err)
	}
}
