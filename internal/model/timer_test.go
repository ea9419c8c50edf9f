package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{125, "00:02:05"},
		{3600, "01:00:00"},
		{100*3600 + 1, "100:00:01"},
		{-5, "00:00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatElapsed(tt.seconds), "FormatElapsed(%d)", tt.seconds)
	}
}

func TestElapsedSince(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(125), ElapsedSince(0, start, start.Add(125*time.Second+900*time.Millisecond)))
	assert.Equal(t, int64(165), ElapsedSince(40, start, start.Add(125*time.Second)))
	// A start in the future never goes negative.
	assert.Equal(t, int64(0), ElapsedSince(0, start, start.Add(-time.Hour)))
	assert.Equal(t, int64(40), ElapsedSince(40, start, start.Add(-time.Hour)))
}

func TestTimerSnapshot_Valid(t *testing.T) {
	ms := time.Now().UnixMilli()
	task := &TaskSummary{ID: "t1", Title: "Write report"}

	assert.True(t, TimerSnapshot{}.Valid(), "idle snapshot")
	assert.True(t, TimerSnapshot{IsRunning: true, ActiveTask: task, StartTimestamp: &ms}.Valid())
	assert.False(t, TimerSnapshot{IsRunning: true, StartTimestamp: &ms}.Valid(), "no task")
	assert.False(t, TimerSnapshot{IsRunning: true, ActiveTask: task}.Valid(), "no start")
	assert.False(t, TimerSnapshot{IsRunning: true, ActiveTask: &TaskSummary{}, StartTimestamp: &ms}.Valid(), "empty task id")
}

func TestTimerState_Widget(t *testing.T) {
	task := &TaskSummary{ID: "t1", Title: "Write report"}
	w := TimerState{ActiveTask: task, IsRunning: true, ElapsedSeconds: 3725}.Widget()

	assert.Equal(t, "01:02:05", w.FormattedTime)
	assert.True(t, w.IsRunning)
	assert.Equal(t, task, w.ActiveTask)
}

func TestNotificationType_Known(t *testing.T) {
	assert.True(t, NotificationTaskAssigned.Known())
	assert.True(t, NotificationSystem.Known())
	assert.False(t, NotificationType("billing_due").Known())
}
