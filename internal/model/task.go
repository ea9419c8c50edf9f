package model

import "time"

// Normalized status constants used by the TaskFlow API.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

// Priority constants as reported by the TaskFlow API.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// TaskSummary is the minimal task reference the timer needs to display and
// persist: which task, what it is called, and which team owns it.
type TaskSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Team  string `json:"team,omitempty"`
}

// ActiveTimer is the server's view of a running timer on a task.
type ActiveTimer struct {
	// StartTime is when the server recorded the timer start.
	StartTime time.Time `json:"startTime"`

	// User is the identifier of the user who owns the running timer.
	User string `json:"user,omitempty"`
}

// TimeEntry is a completed timer session recorded by the server.
type TimeEntry struct {
	User      string    `json:"user"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Duration  int64     `json:"duration"`
}

// Task is a TaskFlow task as returned by the REST API.
type Task struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Team        string     `json:"team,omitempty"`
	Assignee    string     `json:"assignedTo,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// ActiveTimer is set when the server believes a timer is running.
	ActiveTimer *ActiveTimer `json:"activeTimer,omitempty"`

	// TimeEntries holds completed timer sessions.
	TimeEntries []TimeEntry `json:"timeEntries,omitempty"`

	// TotalTimeSpent is the server-side sum of all time entries, in seconds.
	TotalTimeSpent int64 `json:"totalTimeSpent"`
}

// Summary returns the reference used by the timer for this task.
func (t Task) Summary() TaskSummary {
	return TaskSummary{ID: t.ID, Title: t.Title, Team: t.Team}
}

// IsOverdue reports whether the task is past its due date and not done.
func (t Task) IsOverdue() bool {
	return t.DueDate != nil && t.DueDate.Before(time.Now()) && t.Status != StatusDone
}

// Team is a TaskFlow team as returned by the REST API.
type Team struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Members     []string  `json:"members,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
