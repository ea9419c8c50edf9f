package model

import (
	"fmt"
	"time"
)

// TimerSnapshot is the persisted record of the running timer. It is a
// local reload hint only; the server stays authoritative.
type TimerSnapshot struct {
	// ActiveTask references the task being timed, with display data.
	ActiveTask *TaskSummary `json:"activeTask"`

	// IsRunning is true while a timer is active.
	IsRunning bool `json:"isRunning"`

	// StartTimestamp is the epoch-millisecond instant the current run began.
	StartTimestamp *int64 `json:"startTimestamp"`

	// ElapsedSeconds is the time accumulated before StartTimestamp.
	ElapsedSeconds int64 `json:"elapsedSeconds"`

	// LastPersistedAt is the epoch-millisecond instant of the last save.
	LastPersistedAt int64 `json:"lastPersistedAt"`
}

// Valid reports whether the snapshot satisfies its invariant: a running
// snapshot must name a task and a start timestamp.
func (s TimerSnapshot) Valid() bool {
	if !s.IsRunning {
		return true
	}
	return s.ActiveTask != nil && s.ActiveTask.ID != "" && s.StartTimestamp != nil
}

// StartTime returns StartTimestamp as a time.Time, or the zero time.
func (s TimerSnapshot) StartTime() time.Time {
	if s.StartTimestamp == nil {
		return time.Time{}
	}
	return time.UnixMilli(*s.StartTimestamp)
}

// TimerState is the in-memory view of the timer owned by the state machine.
type TimerState struct {
	ActiveTask     *TaskSummary
	IsRunning      bool
	ElapsedSeconds int64
	// Revision changes on every transition. Server data fetched at one
	// revision is only applied if the timer is still at it.
	Revision uint64
}

// TimerWidget is the read model rendered by the sidebar.
type TimerWidget struct {
	ActiveTask     *TaskSummary
	IsRunning      bool
	ElapsedSeconds int64
	FormattedTime  string
}

// Widget converts the state into its display form.
func (s TimerState) Widget() TimerWidget {
	return TimerWidget{
		ActiveTask:     s.ActiveTask,
		IsRunning:      s.IsRunning,
		ElapsedSeconds: s.ElapsedSeconds,
		FormattedTime:  FormatElapsed(s.ElapsedSeconds),
	}
}

// FormatElapsed renders seconds as HH:MM:SS. Negative input renders as zero.
func FormatElapsed(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ElapsedSince returns base plus the whole seconds between start and now,
// clamped so that a start in the future never yields a negative value.
func ElapsedSince(base int64, start, now time.Time) int64 {
	delta := int64(now.Sub(start) / time.Second)
	if delta < 0 {
		delta = 0
	}
	total := base + delta
	if total < 0 {
		return 0
	}
	return total
}
