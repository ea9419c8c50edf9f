package sync

import (
	"context"
	"time"

	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/timer"
)

// Inbox is the part of the inbox controller the jobs refresh.
type Inbox interface {
	IsOpen() bool
	FetchRecent(ctx context.Context) error
	FetchUnreadCount(ctx context.Context) error
}

// TaskFetcher loads a task with its server-side timer.
type TaskFetcher interface {
	GetTask(ctx context.Context, taskID string) (*model.Task, error)
}

// Timer is the part of the timer machine the reconcile job drives.
type Timer interface {
	State() model.TimerState
	Reconcile(task model.Task, since uint64) timer.Result
}

// UnreadCountJob refreshes the authoritative unread counter.
type UnreadCountJob struct {
	Inbox Inbox
	Every time.Duration
}

func (j UnreadCountJob) Name() string            { return "unread" }
func (j UnreadCountJob) Interval() time.Duration { return j.Every }

func (j UnreadCountJob) Run(ctx context.Context) error {
	return j.Inbox.FetchUnreadCount(ctx)
}

// RecentJob re-fetches the notification list while the inbox is open.
type RecentJob struct {
	Inbox Inbox
	Every time.Duration
}

func (j RecentJob) Name() string            { return "inbox" }
func (j RecentJob) Interval() time.Duration { return j.Every }

func (j RecentJob) Run(ctx context.Context) error {
	if !j.Inbox.IsOpen() {
		return nil
	}
	return j.Inbox.FetchRecent(ctx)
}

// TimerJob checks the running timer against the server.
type TimerJob struct {
	Timer Timer
	Tasks TaskFetcher
	Every time.Duration
}

func (j TimerJob) Name() string            { return "timer" }
func (j TimerJob) Interval() time.Duration { return j.Every }

func (j TimerJob) Run(ctx context.Context) error {
	st := j.Timer.State()
	if !st.IsRunning || st.ActiveTask == nil {
		return nil
	}

	task, err := j.Tasks.GetTask(ctx, st.ActiveTask.ID)
	if err != nil {
		return err
	}
	j.Timer.Reconcile(*task, st.Revision)
	return nil
}
