package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := map[JobState][]JobState{
		JobQueued: {JobActive},
		JobActive: {JobCompleted, JobFailed, JobCancelled},
	}
	for _, from := range AllStates {
		for _, to := range AllStates {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	for _, s := range []JobState{JobCompleted, JobFailed, JobCancelled} {
		assert.True(t, s.IsTerminal())
		for _, to := range AllStates {
			assert.False(t, CanTransition(s, to))
		}
	}
	assert.False(t, JobQueued.IsTerminal())
	assert.False(t, JobActive.IsTerminal())
}

func TestParseState(t *testing.T) {
	for in, want := range map[string]JobState{
		"wait":      JobQueued,
		"waiting":   JobQueued,
		" Queued ":  JobQueued,
		"active":    JobActive,
		"completed": JobCompleted,
		"failed":    JobFailed,
		"canceled":  JobCancelled,
	} {
		got, ok := ParseState(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseState("delayed")
	assert.False(t, ok)
}

func TestSessionStateMachine(t *testing.T) {
	assert.True(t, SessionStarting.CanAdvance(SessionProbing))
	assert.True(t, SessionProbing.CanAdvance(SessionRunning))
	assert.True(t, SessionRunning.CanAdvance(SessionAborting))
	assert.True(t, SessionFinishing.CanAdvance(SessionTerminated))
	assert.False(t, SessionRunning.CanAdvance(SessionProbing))
	assert.False(t, SessionTerminated.CanAdvance(SessionFailed))
}

func TestErrorTaxonomy(t *testing.T) {
	fetchErr := &FetchError{URL: "http://host/a.mp4", Err: errors.New("connection refused")}
	wrapped := fmt.Errorf("session: %w", fetchErr)

	var fe *FetchError
	assert.True(t, errors.As(wrapped, &fe))
	assert.True(t, IsFailure(wrapped))
	assert.False(t, IsFailure(fmt.Errorf("abort: %w", ErrCancelledByUser)))
	assert.False(t, IsFailure(nil))

	te := &TranscodeError{Message: "ffmpeg exited", ExitCode: 1, Stderr: "Invalid data found"}
	assert.Equal(t, "Invalid data found", Trace(fmt.Errorf("x: %w", te)))
	assert.Equal(t, "", Trace(fetchErr))

	assert.Equal(t, "fetch http://host/a.mp4: unexpected status 404", (&FetchError{URL: "http://host/a.mp4", StatusCode: 404}).Error())
}
