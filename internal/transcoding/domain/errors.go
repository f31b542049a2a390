package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound job does not exist
	ErrNotFound = errors.New("job not found")
	// ErrJobActive job is active and must be cancelled first
	ErrJobActive = errors.New("active jobs must be cancelled before being deleted")
	// ErrJobNotActive cancel requested for a job that is not active
	ErrJobNotActive = errors.New("only active jobs can be cancelled")
	// ErrInvalidTransition state change violates the job state machine
	ErrInvalidTransition = errors.New("invalid job state transition")
	// ErrAlreadyExists derived output path is already taken
	ErrAlreadyExists = errors.New("output already exists")
	// ErrCancelledByUser terminal cancellation, not a failure and never retried
	ErrCancelledByUser = errors.New(CancelReason)
)

// InputError invalid submission, surfaced before any queue state is touched
type InputError struct {
	Message string
	Err     error
}

func (e *InputError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// FetchError source retrieval failed
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TranscodeError subprocess exited nonzero or the session hit an internal fault
type TranscodeError struct {
	Message  string
	ExitCode int
	// Stderr tail of the subprocess output, kept as the diagnostic trace
	Stderr string
	Err    error
}

func (e *TranscodeError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// CleanupWarning staging file removal failed. Logged, never escalated.
type CleanupWarning struct {
	Path string
	Err  error
}

func (e *CleanupWarning) Error() string {
	return fmt.Sprintf("cleanup %s: %v", e.Path, e.Err)
}

func (e *CleanupWarning) Unwrap() error { return e.Err }

// IsFailure report whether err should drive a job to failed.
// Cancellation is terminal but not a failure.
func IsFailure(err error) bool {
	return err != nil && !errors.Is(err, ErrCancelledByUser)
}

// Trace returns the diagnostic trace carried by err, if any
func Trace(err error) string {
	var te *TranscodeError
	if errors.As(err, &te) {
		return te.Stderr
	}
	return ""
}
