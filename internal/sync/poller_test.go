package sync

import (
	"context"
	"errors"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskflow/internal/api"
	"github.com/nhle/taskflow/internal/events"
	"github.com/nhle/taskflow/internal/logging"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/store"
	"github.com/nhle/taskflow/internal/testutil"
	"github.com/nhle/taskflow/internal/timer"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string            { return j.name }
func (j *countingJob) Interval() time.Duration { return time.Hour }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func nextResult(t *testing.T, p *Poller) SyncResultMsg {
	t.Helper()
	done := make(chan SyncResultMsg, 1)
	go func() {
		msg, _ := p.WaitForNextResult()().(SyncResultMsg)
		done <- msg
	}()
	select {
	case msg := <-done:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no sync result")
		return SyncResultMsg{}
	}
}

func TestPoller_RunsImmediatelyAndOnRefresh(t *testing.T) {
	job := &countingJob{name: "unread"}
	p := New(logging.Discard())
	p.Register(job)

	require.NotNil(t, p.Start())
	defer p.Stop()

	assert.Equal(t, "unread", nextResult(t, p).Job)
	assert.Equal(t, int32(1), job.runs.Load())

	p.RefreshAll()
	nextResult(t, p)
	assert.Equal(t, int32(2), job.runs.Load())

	statuses := p.GetStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, SyncIdle, statuses[0].State)
	assert.False(t, statuses[0].LastSync.IsZero())
}

func TestPoller_ReportsAuthErrors(t *testing.T) {
	job := &countingJob{name: "timer", err: &api.AuthError{Message: "expired"}}
	p := New(logging.Discard())
	p.Register(job)
	p.Start()
	defer p.Stop()

	msg := nextResult(t, p)
	require.NotNil(t, msg.AuthError)
	assert.Equal(t, "timer", msg.AuthError.Job)
	assert.Equal(t, SyncError, p.GetStatuses()[0].State)
}

func TestPoller_PlainErrorHasNoAuthError(t *testing.T) {
	job := &countingJob{name: "inbox", err: errors.New("offline")}
	p := New(logging.Discard())
	p.Register(job)
	p.Start()
	defer p.Stop()

	msg := nextResult(t, p)
	assert.EqualError(t, msg.Error, "offline")
	assert.Nil(t, msg.AuthError)
}

func TestPoller_StopEndsSubscription(t *testing.T) {
	p := New(logging.Discard())
	p.Register(&countingJob{name: "unread"})
	p.Start()
	nextResult(t, p)

	p.Stop()
	assert.Nil(t, p.WaitForNextResult()())
	assert.Nil(t, p.Start(), "a stopped poller does not restart")
}

type fakeInbox struct {
	open          bool
	recent, count int
}

func (f *fakeInbox) IsOpen() bool { return f.open }

func (f *fakeInbox) FetchRecent(context.Context) error {
	f.recent++
	return nil
}

func (f *fakeInbox) FetchUnreadCount(context.Context) error {
	f.count++
	return nil
}

func TestRecentJob_OnlyWhileOpen(t *testing.T) {
	inbox := &fakeInbox{}
	job := RecentJob{Inbox: inbox}

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 0, inbox.recent)

	inbox.open = true
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, inbox.recent)

	require.NoError(t, UnreadCountJob{Inbox: inbox}.Run(context.Background()))
	assert.Equal(t, 1, inbox.count)
}

type fakeTimer struct {
	mu         gosync.Mutex
	state      model.TimerState
	reconciled []model.Task
	since      []uint64
}

func (f *fakeTimer) State() model.TimerState { return f.state }

func (f *fakeTimer) Reconcile(task model.Task, since uint64) timer.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciled = append(f.reconciled, task)
	f.since = append(f.since, since)
	return timer.Result{}
}

type fakeTasks struct {
	task *model.Task
	err  error
	gets []string
}

func (f *fakeTasks) GetTask(_ context.Context, id string) (*model.Task, error) {
	f.gets = append(f.gets, id)
	return f.task, f.err
}

func TestTimerJob(t *testing.T) {
	tm := &fakeTimer{}
	tasks := &fakeTasks{task: &model.Task{ID: "a"}}
	job := TimerJob{Timer: tm, Tasks: tasks}

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, tasks.gets, "idle timer needs no fetch")

	tm.state = model.TimerState{IsRunning: true, ActiveTask: &model.TaskSummary{ID: "a"}, Revision: 7}
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"a"}, tasks.gets)
	require.Len(t, tm.reconciled, 1)
	assert.Equal(t, "a", tm.reconciled[0].ID)
	assert.Equal(t, []uint64{7}, tm.since)

	tasks.err = errors.New("offline")
	assert.Error(t, job.Run(context.Background()))
	assert.Len(t, tm.reconciled, 1)
}

type taskFunc func(ctx context.Context, id string) (*model.Task, error)

func (f taskFunc) GetTask(ctx context.Context, id string) (*model.Task, error) { return f(ctx, id) }

type nopTimerAPI struct{}

func (nopTimerAPI) StartTimer(context.Context, string) error { return nil }
func (nopTimerAPI) StopTimer(context.Context, string) error  { return nil }

func TestTimerJob_StopDuringFetchIsKept(t *testing.T) {
	timers := store.NewTimerStore(testutil.NewTestStore(t))
	m := timer.New(timers, nopTimerAPI{}, events.NewBus(), logging.Discard(), timer.WithTickInterval(0))
	defer m.Close()

	a := model.TaskSummary{ID: "a", Title: "Draft audit plan"}
	m.Start(context.Background(), a)

	job := TimerJob{Timer: m, Tasks: taskFunc(func(ctx context.Context, id string) (*model.Task, error) {
		m.Stop(ctx)
		return &model.Task{ID: id, ActiveTimer: &model.ActiveTimer{StartTime: time.Now().Add(-time.Minute)}}, nil
	})}
	require.NoError(t, job.Run(context.Background()))

	assert.False(t, m.State().IsRunning)
	assert.Nil(t, timers.Load(context.Background()))
}

func TestTimerJob_SwitchDuringFetchIsKept(t *testing.T) {
	timers := store.NewTimerStore(testutil.NewTestStore(t))
	m := timer.New(timers, nopTimerAPI{}, events.NewBus(), logging.Discard(), timer.WithTickInterval(0))
	defer m.Close()

	a := model.TaskSummary{ID: "a", Title: "Draft audit plan"}
	b := model.TaskSummary{ID: "b", Title: "File returns"}
	m.Start(context.Background(), a)

	job := TimerJob{Timer: m, Tasks: taskFunc(func(ctx context.Context, id string) (*model.Task, error) {
		m.Start(ctx, b)
		return &model.Task{ID: id, ActiveTimer: &model.ActiveTimer{StartTime: time.Now().Add(-time.Minute)}}, nil
	})}
	require.NoError(t, job.Run(context.Background()))

	st := m.State()
	require.NotNil(t, st.ActiveTask)
	assert.Equal(t, "b", st.ActiveTask.ID)
	snap := timers.Load(context.Background())
	require.NotNil(t, snap)
	assert.Equal(t, "b", snap.ActiveTask.ID)
}
