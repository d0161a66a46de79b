package model

import "time"

type TaskState string

const (
	TaskStatePending TaskState = "pending"
	TaskStateRunning TaskState = "running"
	TaskStateDone    TaskState = "done"
)

// Task is one submitted query and its lifecycle until the caller fetches it.
type Task struct {
	ID    int64
	Query string
	Save  bool
	State TaskState

	// Set once the task is done.
	Result *ResultSet
	Err    error

	// Connection that executed the task; zero until dispatched.
	ConnID int

	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

func NewTask(id int64, query string, save bool, now time.Time) *Task {
	return &Task{
		ID:          id,
		Query:       query,
		Save:        save,
		State:       TaskStatePending,
		SubmittedAt: now,
	}
}

func (t *Task) IsPending() bool { return t.State == TaskStatePending }
func (t *Task) IsDone() bool    { return t.State == TaskStateDone }

// Start moves a pending task to running. It reports false if the task already left pending.
func (t *Task) Start(connID int, now time.Time) bool {
	if t.State != TaskStatePending {
		return false
	}
	t.State = TaskStateRunning
	t.ConnID = connID
	t.StartedAt = now
	return true
}

// Finish moves a running task to done with its outcome.
func (t *Task) Finish(rs *ResultSet, err error, now time.Time) bool {
	if t.State != TaskStateRunning {
		return false
	}
	t.State = TaskStateDone
	t.Result = rs
	t.Err = err
	t.FinishedAt = now
	return true
}
