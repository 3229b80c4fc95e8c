package domain

import (
	"math"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCanceled   TaskStatus = "canceled"
)

// TaskStatuses lists every status in display order.
var TaskStatuses = []TaskStatus{StatusPending, StatusInProgress, StatusCompleted, StatusCanceled}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every priority in display order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task represents a single unit of work attached to an order.
type Task struct {
	ID           int64      `json:"id"`
	TaskName     string     `json:"taskName"`
	Description  string     `json:"description,omitempty"`
	Status       TaskStatus `json:"status"`
	Priority     Priority   `json:"priority"`
	DueDate      *Timestamp `json:"dueDate"`
	AssignedAt   *Timestamp `json:"assignedAt,omitempty"`
	Order        *Ref       `json:"order"`
	AssignedUser *Ref       `json:"assignedUser"`
}

// TaskInput is the body sent when creating or updating a task.
type TaskInput struct {
	ID           int64      `json:"id,omitempty"`
	TaskName     string     `json:"taskName"`
	Description  string     `json:"description"`
	Priority     Priority   `json:"priority"`
	Status       TaskStatus `json:"status"`
	DueDate      *Timestamp `json:"dueDate"`
	Order        *Ref       `json:"order"`
	AssignedUser *Ref       `json:"assignedUser"`
}

// TaskProgress returns how much of the window between assignment and due
// date has elapsed at now, as a percentage in [0, 100].
func TaskProgress(t Task, now time.Time) int {
	if t.DueDate.IsZero() || t.AssignedAt.IsZero() {
		return 0
	}
	start := t.AssignedAt.Time
	due := t.DueDate.Time
	if now.Before(start) {
		return 0
	}
	if now.After(due) {
		return 100
	}
	total := due.Sub(start)
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(now.Sub(start)) / float64(total) * 100))
}
