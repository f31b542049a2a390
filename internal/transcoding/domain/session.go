package domain

import "time"

// SessionState state of one transcode session
type SessionState string

const (
	SessionStarting   SessionState = "starting"
	SessionProbing    SessionState = "probing"
	SessionRunning    SessionState = "running"
	SessionFinishing  SessionState = "finishing"
	SessionAborting   SessionState = "aborting"
	SessionFailed     SessionState = "failed"
	SessionTerminated SessionState = "terminated"
)

// CanAdvance enforces the session state machine:
// starting -> probing -> running -> {finishing | aborting | failed} -> terminated.
// probing may skip straight to finishing/aborting when the subprocess ends early,
// and any live state may fail.
func (s SessionState) CanAdvance(to SessionState) bool {
	switch s {
	case SessionStarting:
		return to == SessionProbing || to == SessionFailed || to == SessionAborting
	case SessionProbing:
		return to == SessionRunning || to == SessionFinishing || to == SessionAborting || to == SessionFailed
	case SessionRunning:
		return to == SessionFinishing || to == SessionAborting || to == SessionFailed
	case SessionFinishing, SessionAborting, SessionFailed:
		return to == SessionTerminated
	default:
		return false
	}
}

// JobEvent 工作生命週期訊息, 發布到 kafka / rabbitmq
type JobEvent struct {
	JobID  string    `json:"job_id"`
	URL    string    `json:"url"`
	State  JobState  `json:"state"`
	Output string    `json:"output,omitempty"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}
