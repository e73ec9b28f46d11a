package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	ErrNoStems       = errors.New("no stems available")
	ErrInvalidFormat = errors.New("unsupported audio format")
	ErrJobNotFound   = errors.New("job not found")
	ErrJobFailed     = errors.New("analysis job failed")
)

// LoadError wraps a failure to bring a session into a playable state.
// Only total failure (stems and mixed audio both unavailable) surfaces
// through this type; partial stem failures are absorbed by the bank.
type LoadError struct {
	Op  string // Operation that failed
	Job string // Job ID if applicable
	Err error  // Underlying error
}

func (e *LoadError) Error() string {
	if e.Job != "" {
		return fmt.Sprintf("%s failed for job %s: %v", e.Op, e.Job, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a new LoadError
func NewLoadError(op, job string, err error) *LoadError {
	return &LoadError{Op: op, Job: job, Err: err}
}

// FetchError represents a failure retrieving one resource from the
// analysis service.
type FetchError struct {
	Resource string // e.g. "stem drums", "mixed audio"
	Status   int    // HTTP status if the server answered
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.Resource, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
