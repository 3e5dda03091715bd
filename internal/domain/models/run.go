package models

import "time"

// Status levels shown in the status banner.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Status is a dismissable banner message.
type Status struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// RunState is the orchestrator state machine position.
type RunState string

const (
	StateIdle         RunState = "idle"
	StateValidating   RunState = "validating"
	StateRunning      RunState = "running"
	StateResultsReady RunState = "results_ready"
	StateFailed       RunState = "failed"
)

// Busy reports whether a run is in flight.
func (s RunState) Busy() bool {
	return s == StateValidating || s == StateRunning
}

// Run outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// RunSummary describes one dispatched run. Rejected runs never reach the
// backend and are not summarized.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Outcome    string    `json:"outcome"`
	Params     RunParams `json:"params"`
	Rows       int       `json:"rows"`
	Converged  int       `json:"converged"`
	Selected   string    `json:"selected,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// RunSnapshot is the orchestrator state exposed to the dashboard.
type RunSnapshot struct {
	State    RunState `json:"state"`
	Status   *Status  `json:"status,omitempty"`
	RunID    string   `json:"run_id,omitempty"`
	HasRun   bool     `json:"has_run"`
	Rows     int      `json:"rows"`
	Selected string   `json:"selected,omitempty"`
}

// Event is pushed to status stream subscribers.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Event types.
const (
	EventState          = "state"
	EventStatus         = "status"
	EventResults        = "results"
	EventSessionExpired = "session_expired"
)
