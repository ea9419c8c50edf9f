package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskflow/internal/events"
	"github.com/nhle/taskflow/internal/model"
)

// teamFilterMsg carries a TeamFilterChanged event into the runtime.
type teamFilterMsg struct {
	teamID string
}

// refreshTasksMsg carries a RefreshTaskList event into the runtime.
type refreshTasksMsg struct{}

// toastMsg carries a Toast event into the runtime.
type toastMsg struct {
	toast events.Toast
}

// timerUpdateMsg carries the latest timer state.
type timerUpdateMsg struct {
	state model.TimerState
}

// inboxUpdateMsg signals that the inbox controller changed.
type inboxUpdateMsg struct{}

// bridgeBuffer bounds how many bus events may queue before new ones are
// dropped. Bus subscribers must never block the publisher.
const bridgeBuffer = 32

// bridge forwards bus events into a channel the Bubble Tea runtime reads
// from one message at a time.
type bridge struct {
	ch          chan tea.Msg
	unsubscribe []func()
}

func newBridge(bus *events.Bus) *bridge {
	b := &bridge{ch: make(chan tea.Msg, bridgeBuffer)}
	b.unsubscribe = append(b.unsubscribe,
		bus.TeamFilterChanged.Subscribe(func(e events.TeamFilterChanged) {
			b.send(teamFilterMsg{teamID: e.TeamID})
		}),
		bus.RefreshTaskList.Subscribe(func(events.RefreshTaskList) {
			b.send(refreshTasksMsg{})
		}),
		bus.Toast.Subscribe(func(t events.Toast) {
			b.send(toastMsg{toast: t})
		}),
	)
	return b
}

func (b *bridge) send(msg tea.Msg) {
	select {
	case b.ch <- msg:
	default:
	}
}

// close detaches the bridge from the bus.
func (b *bridge) close() {
	for _, unsubscribe := range b.unsubscribe {
		unsubscribe()
	}
	b.unsubscribe = nil
}

// wait returns a command delivering the next bus event.
func (b *bridge) wait() tea.Cmd {
	ch := b.ch
	return func() tea.Msg {
		return <-ch
	}
}

// waitForTimer returns a command delivering the next timer state.
func waitForTimer(updates <-chan model.TimerState) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-updates
		if !ok {
			return nil
		}
		return timerUpdateMsg{state: st}
	}
}

// waitForInbox returns a command delivering the next inbox change.
func waitForInbox(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return inboxUpdateMsg{}
	}
}
