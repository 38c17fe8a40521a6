package acp

import "time"

// Task, IntentSnapshot, Decision, Progress, Artifact, and Delegation are
// auxiliary domain entities hanging off a session, used by middleware and
// tools to record structured progress. Each carries a stable public id
// (UUID v7) alongside the internal integer id used for joins, per the data
// model.

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Task is a unit of tracked work created by the create_task tool.
type Task struct {
	PublicID   string
	InternalID int64
	SessionID  int64
	Title      string
	Status     TaskStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IntentSnapshot captures the inferred user goal at a point in time.
type IntentSnapshot struct {
	PublicID   string
	InternalID int64
	SessionID  int64
	Summary    string
	CreatedAt  time.Time
}

// Decision records a structured choice the agent made during a turn.
type Decision struct {
	PublicID   string
	InternalID int64
	SessionID  int64
	Question   string
	Choice     string
	Rationale  string
	CreatedAt  time.Time
}

// Progress is one entry in a task's progress log; its public id is the
// valid fork-point target alongside a message index per the fork lineage
// contract.
type Progress struct {
	PublicID   string
	InternalID int64
	SessionID  int64
	TaskID     *int64
	Note       string
	CreatedAt  time.Time
}

// Artifact is a named output (file, URL, structured blob) produced during a
// session.
type Artifact struct {
	PublicID   string
	InternalID int64
	SessionID  int64
	Name       string
	MediaType  string
	Location   string
	CreatedAt  time.Time
}

// Delegation records a child-session spawn for a piece of sub-work.
type Delegation struct {
	PublicID        string
	InternalID      int64
	SessionID       int64
	ChildSessionID  string
	Instructions    string
	CreatedAt       time.Time
}
