// Package events is a typed publish/subscribe bus for signals that cross
// view boundaries (team filter changes, task list refreshes, timer toasts).
// Every topic is broadcast: each subscriber receives every published value.
package events

import (
	"slices"
	"sync"

	"github.com/nhle/taskflow/internal/model"
)

// Topic is a broadcast channel for values of type T. The zero value is
// ready to use.
type Topic[T any] struct {
	mu   sync.RWMutex
	next int
	subs []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (t *Topic[T]) Subscribe(fn func(T)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.next
	t.next++
	t.subs = append(t.subs, subscriber[T]{id: id, fn: fn})

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.subs = slices.DeleteFunc(t.subs, func(s subscriber[T]) bool {
			return s.id == id
		})
	}
}

// Publish delivers v to every current subscriber, synchronously, in
// subscription order. Subscribers must not block.
func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	subs := slices.Clone(t.subs)
	t.mu.RUnlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Len returns the number of subscribers.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// TeamFilterChanged asks task views to filter by TeamID.
type TeamFilterChanged struct {
	TeamID string
}

// RefreshTaskList asks any mounted task list to re-fetch.
type RefreshTaskList struct{}

// TimerStarted is published after a timer starts on Task.
type TimerStarted struct {
	Task model.TaskSummary
}

// TimerStopped is published after the timer on Task stops.
type TimerStopped struct {
	Task           model.TaskSummary
	ElapsedSeconds int64
}

// ToastLevel grades a transient user-visible message.
type ToastLevel int

const (
	ToastInfo ToastLevel = iota
	ToastSuccess
	ToastWarning
	ToastError
)

// Toast is a short message for the status bar.
type Toast struct {
	ID      string
	Message string
	Level   ToastLevel
}

// Bus groups the application's topics.
type Bus struct {
	TeamFilterChanged Topic[TeamFilterChanged]
	RefreshTaskList   Topic[RefreshTaskList]
	TimerStarted      Topic[TimerStarted]
	TimerStopped      Topic[TimerStopped]
	Toast             Topic[Toast]
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}
