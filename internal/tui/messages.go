package tui

import "time"

// JobState mirrors the capture job lifecycle.
type JobState string

const (
	JobPending JobState = "PENDING"
	JobRunning JobState = "RUNNING"
	JobDone    JobState = "DONE"
	JobFailed  JobState = "FAILED"
)

// JobMsg reports a viewport capture transition.
type JobMsg struct {
	Index int
	State JobState
	Error string
	At    time.Time
}

// StageEventType is the kind of stage transition.
type StageEventType string

const (
	StageStarted   StageEventType = "stage_started"
	StageCompleted StageEventType = "stage_completed"
	StageFailed    StageEventType = "stage_failed"
)

// StageMsg reports an orchestration stage transition.
type StageMsg struct {
	Type     StageEventType
	Stage    string
	Message  string
	Error    string
	Duration time.Duration
}

// DoneMsg signals that the run is over.
type DoneMsg struct {
	Success    bool
	Message    string
	ReportPath string
}
