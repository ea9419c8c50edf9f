package timerwidget

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/taskflow/internal/model"
)

func TestView_RunningTimer(t *testing.T) {
	m := New(28, 20)
	m.SetTimer(model.TimerState{
		ActiveTask:     &model.TaskSummary{ID: "t1", Title: "Write report"},
		IsRunning:      true,
		ElapsedSeconds: 125,
	}.Widget())
	m.SetUnread(3)
	m.SetConnection(&model.ChannelConnection{UserID: "u1", Connected: true})

	out := m.View()
	assert.Contains(t, out, "00:02:05")
	assert.Contains(t, out, "Write report")
	assert.Contains(t, out, "3")
	assert.Contains(t, out, "live")
}

func TestView_IdleAndPushOff(t *testing.T) {
	m := New(28, 20)
	m.SetConnection(nil)
	m.SetTeamFilter("T1")

	out := m.View()
	assert.Contains(t, out, "No timer running")
	assert.Contains(t, out, "live updates off")
	assert.Contains(t, out, "T1")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
