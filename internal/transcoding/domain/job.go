package domain

import (
	"strings"
	"time"
)

// JobState definition job state
type JobState string

const (
	//JobQueued job is waiting for a worker
	JobQueued JobState = "queued"
	//JobActive job is claimed by a worker
	JobActive JobState = "active"
	//JobCompleted job finished and its output is in place
	JobCompleted JobState = "completed"
	//JobFailed job ended with an error
	JobFailed JobState = "failed"
	//JobCancelled job was cancelled by the user while active
	JobCancelled JobState = "cancelled"
)

// AllStates every job state in lifecycle order
var AllStates = []JobState{JobQueued, JobActive, JobCompleted, JobFailed, JobCancelled}

// CancelReason failure reason stored on a cancelled job
const CancelReason = "Job cancelled by user"

// IsTerminal report whether s is a terminal state
func (s JobState) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// ParseState parse a state name, accepting the queue aliases wait / waiting
func ParseState(name string) (JobState, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "queued", "wait", "waiting":
		return JobQueued, true
	case "active":
		return JobActive, true
	case "completed":
		return JobCompleted, true
	case "failed":
		return JobFailed, true
	case "cancelled", "canceled":
		return JobCancelled, true
	default:
		return "", false
	}
}

// CanTransition enforces the forward-only job state machine:
// queued -> active -> {completed | failed | cancelled}
func CanTransition(from, to JobState) bool {
	switch from {
	case JobQueued:
		return to == JobActive
	case JobActive:
		return to == JobCompleted || to == JobFailed || to == JobCancelled
	default:
		return false
	}
}

// JobData 提交的工作內容
type JobData struct {
	URL string `json:"url"`
}

// Job 轉碼工作
type Job struct {
	ID          string     `json:"id"`
	Data        JobData    `json:"data"`
	State       JobState   `json:"state"`
	Progress    float64    `json:"progress"`
	CreatedAt   time.Time  `json:"timestamp"`
	ProcessedAt *time.Time `json:"processedOn,omitempty"`
	FinishedAt  *time.Time `json:"finishedOn,omitempty"`
	// ReturnValue 完成後輸出檔的相對路徑
	ReturnValue  string `json:"returnvalue,omitempty"`
	FailedReason string `json:"failedReason,omitempty"`
	Stacktrace   string `json:"stacktrace,omitempty"`
}

// Transition payload written together with a state change
type Transition struct {
	ReturnValue  string
	FailedReason string
	Stacktrace   string
}

// JobLogs a page of job log lines plus the total line count
type JobLogs struct {
	Logs  []string `json:"logs"`
	Count int64    `json:"count"`
}

// ListQuery definition list filter
type ListQuery struct {
	States []JobState
	Start  int64
	End    int64
	Asc    bool
}
