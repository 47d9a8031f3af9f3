package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"subgen/internal/services"
)

// RunStatus is the outcome of a recorded operation.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run records one orchestrator operation.
type Run struct {
	ID           string
	Operation    string
	Status       RunStatus
	StartedAt    time.Time
	FinishedAt   time.Time
	ErrorKind    string
	ErrorMessage string
	Artifacts    []string
}

// NewRun starts a run record for operation.
func NewRun(operation string) Run {
	return Run{
		ID:        uuid.NewString(),
		Operation: operation,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Finish marks the run complete. A non-nil err marks it failed and records
// the error kind.
func (r *Run) Finish(err error, artifacts ...string) {
	r.FinishedAt = time.Now().UTC()
	for _, a := range artifacts {
		if a != "" {
			r.Artifacts = append(r.Artifacts, a)
		}
	}
	if err == nil {
		r.Status = RunSucceeded
		return
	}
	r.Status = RunFailed
	r.ErrorMessage = err.Error()
	var classified *services.Error
	if errors.As(err, &classified) {
		r.ErrorKind = string(classified.Kind)
	}
}

// Duration is the elapsed time of a finished run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
