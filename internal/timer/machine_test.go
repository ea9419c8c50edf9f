package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskflow/internal/events"
	"github.com/nhle/taskflow/internal/logging"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/store"
	"github.com/nhle/taskflow/internal/testutil"
)

type fakeAPI struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeAPI) StartTimer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "start "+id)
	return f.err
}

func (f *fakeAPI) StopTimer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stop "+id)
	return f.err
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

var (
	t0    = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	taskA = model.TaskSummary{ID: "a", Title: "Draft audit plan", Team: "T1"}
	taskB = model.TaskSummary{ID: "b", Title: "File returns"}
)

type fixture struct {
	clock  *testutil.Clock
	timers *store.TimerStore
	api    *fakeAPI
	bus    *events.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.NewClock(t0)
	return &fixture{
		clock:  clock,
		timers: store.NewTimerStore(testutil.NewTestStore(t)).WithClock(clock.Now),
		api:    &fakeAPI{},
		bus:    events.NewBus(),
	}
}

func (f *fixture) machine(opts ...Option) *Machine {
	opts = append([]Option{WithClock(f.clock.Now), WithTickInterval(0)}, opts...)
	return New(f.timers, f.api, f.bus, logging.Discard(), opts...)
}

func TestNew_ResumesPersistedTimer(t *testing.T) {
	f := newFixture(t)
	start := t0.Add(-125 * time.Second).UnixMilli()
	require.NoError(t, f.timers.Save(context.Background(), model.TimerSnapshot{
		ActiveTask:     &taskA,
		IsRunning:      true,
		StartTimestamp: &start,
	}))

	m := f.machine()
	defer m.Close()

	st := m.State()
	assert.True(t, st.IsRunning)
	assert.Equal(t, "a", st.ActiveTask.ID)
	assert.Equal(t, int64(125), st.ElapsedSeconds)

	f.clock.Advance(time.Second)
	m.Tick()
	assert.Equal(t, int64(126), m.State().ElapsedSeconds)
}

func TestNew_AddsAccumulatedElapsed(t *testing.T) {
	f := newFixture(t)
	start := t0.Add(-10 * time.Second).UnixMilli()
	require.NoError(t, f.timers.Save(context.Background(), model.TimerSnapshot{
		ActiveTask:     &taskA,
		IsRunning:      true,
		StartTimestamp: &start,
		ElapsedSeconds: 50,
	}))

	m := f.machine()
	defer m.Close()
	assert.Equal(t, int64(60), m.State().ElapsedSeconds)
}

func TestNew_IgnoresIdleSnapshot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.timers.Save(context.Background(), model.TimerSnapshot{}))

	m := f.machine()
	defer m.Close()
	assert.False(t, m.State().IsRunning)
	assert.Nil(t, m.State().ActiveTask)
}

func TestStart_PersistsAndNotifiesServer(t *testing.T) {
	f := newFixture(t)
	m := f.machine()
	defer m.Close()

	var started []events.TimerStarted
	f.bus.TimerStarted.Subscribe(func(e events.TimerStarted) { started = append(started, e) })

	res := m.Start(context.Background(), taskA)
	assert.True(t, res.Changed)
	assert.NoError(t, res.ServerErr)

	snap := f.timers.Load(context.Background())
	require.NotNil(t, snap)
	assert.Equal(t, "a", snap.ActiveTask.ID)
	assert.Equal(t, t0.UnixMilli(), *snap.StartTimestamp)
	assert.Equal(t, []string{"start a"}, f.api.Calls())
	require.Len(t, started, 1)
	assert.Equal(t, "Draft audit plan", started[0].Task.Title)
}

func TestStart_SameTaskIsIdempotent(t *testing.T) {
	f := newFixture(t)
	m := f.machine()
	defer m.Close()

	m.Start(context.Background(), taskA)
	f.clock.Advance(30 * time.Second)
	m.Tick()

	res := m.Start(context.Background(), taskA)
	assert.False(t, res.Changed)
	assert.Equal(t, int64(30), m.State().ElapsedSeconds)
	assert.Equal(t, []string{"start a"}, f.api.Calls())

	snap := f.timers.Load(context.Background())
	require.NotNil(t, snap)
	assert.Equal(t, t0.UnixMilli(), *snap.StartTimestamp)
}

func TestStart_SwitchingTasksStopsPrevious(t *testing.T) {
	f := newFixture(t)
	m := f.machine()
	defer m.Close()

	var stopped []events.TimerStopped
	f.bus.TimerStopped.Subscribe(func(e events.TimerStopped) { stopped = append(stopped, e) })

	m.Start(context.Background(), taskA)
	f.clock.Advance(42 * time.Second)
	m.Start(context.Background(), taskB)

	snap := f.timers.Load(context.Background())
	require.NotNil(t, snap)
	assert.Equal(t, "b", snap.ActiveTask.ID)
	assert.Equal(t, int64(0), snap.ElapsedSeconds)
	assert.Equal(t, f.clock.Now().UnixMilli(), *snap.StartTimestamp)

	require.Len(t, stopped, 1)
	assert.Equal(t, "a", stopped[0].Task.ID)
	assert.Equal(t, int64(42), stopped[0].ElapsedSeconds)
	assert.Equal(t, []string{"start a", "stop a", "start b"}, f.api.Calls())
	assert.Equal(t, int64(0), m.State().ElapsedSeconds)
}

func TestStop_ClearsSnapshotAndIgnoresServerFailure(t *testing.T) {
	f := newFixture(t)
	m := f.machine()
	defer m.Close()

	m.Start(context.Background(), taskA)
	f.api.err = errors.New("offline")

	res := m.Stop(context.Background())
	assert.True(t, res.Changed)
	assert.EqualError(t, res.ServerErr, "offline")

	assert.False(t, m.State().IsRunning)
	assert.Nil(t, f.timers.Load(context.Background()))
}

func TestStop_WhenIdleDoesNothing(t *testing.T) {
	f := newFixture(t)
	m := f.machine()
	defer m.Close()

	res := m.Stop(context.Background())
	assert.False(t, res.Changed)
	assert.Empty(t, f.api.Calls())
}

func TestTick_CancelledGenerationDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	m := f.machine()
	defer m.Close()

	m.Start(context.Background(), taskA)
	m.mu.Lock()
	stale := m.gen
	m.mu.Unlock()

	m.Stop(context.Background())
	f.clock.Advance(10 * time.Second)
	m.tick(stale)

	st := m.State()
	assert.False(t, st.IsRunning)
	assert.Equal(t, int64(0), st.ElapsedSeconds)
}

func TestTick_BackgroundTickerRefreshesWidget(t *testing.T) {
	f := newFixture(t)
	m := f.machine(WithTickInterval(5 * time.Millisecond))
	defer m.Close()

	m.Start(context.Background(), taskA)
	f.clock.Advance(5 * time.Second)

	assert.Eventually(t, func() bool {
		return m.Widget().FormattedTime == "00:00:05"
	}, time.Second, 5*time.Millisecond)
}

func TestSyncFromServer_FutureStartClampsToZero(t *testing.T) {
	f := newFixture(t)
	m := f.machine()
	defer m.Close()

	m.SyncFromServer(taskA, model.ActiveTimer{StartTime: t0.Add(time.Minute)})

	st := m.State()
	assert.True(t, st.IsRunning)
	assert.Equal(t, int64(0), st.ElapsedSeconds)
	assert.Empty(t, f.api.Calls())
}

func TestSyncFromServer_AdoptsServerStart(t *testing.T) {
	f := newFixture(t)
	m := f.machine()
	defer m.Close()

	res := m.SyncFromServer(taskB, model.ActiveTimer{StartTime: t0.Add(-90 * time.Second)})
	assert.True(t, res.Changed)
	assert.Equal(t, int64(90), m.State().ElapsedSeconds)

	snap := f.timers.Load(context.Background())
	require.NotNil(t, snap)
	assert.Equal(t, "b", snap.ActiveTask.ID)

	again := m.SyncFromServer(taskB, model.ActiveTimer{StartTime: t0.Add(-90 * time.Second)})
	assert.False(t, again.Changed)
}

func TestReconcile_StopsLocalTimerUnknownToServer(t *testing.T) {
	f := newFixture(t)
	m := f.machine(WithGrace(15 * time.Second))
	defer m.Close()

	m.Start(context.Background(), taskA)
	task := model.Task{ID: "a", Title: taskA.Title}

	f.clock.Advance(5 * time.Second)
	assert.False(t, m.Reconcile(task, m.State().Revision).Changed, "within grace period")
	assert.True(t, m.State().IsRunning)

	f.clock.Advance(20 * time.Second)
	assert.True(t, m.Reconcile(task, m.State().Revision).Changed)
	assert.False(t, m.State().IsRunning)
	assert.Nil(t, f.timers.Load(context.Background()))
	assert.Equal(t, []string{"start a"}, f.api.Calls())
}

func TestReconcile_IgnoresOtherTasks(t *testing.T) {
	f := newFixture(t)
	m := f.machine()
	defer m.Close()

	m.Start(context.Background(), taskA)
	f.clock.Advance(time.Hour)

	assert.False(t, m.Reconcile(model.Task{ID: "b"}, m.State().Revision).Changed)
	assert.True(t, m.State().IsRunning)
}

func TestReconcile_DropsServerStateFetchedBeforeStop(t *testing.T) {
	f := newFixture(t)
	m := f.machine()
	defer m.Close()

	m.Start(context.Background(), taskA)
	rev := m.State().Revision

	// The fetch was issued before the stop and still reports the timer.
	m.Stop(context.Background())
	res := m.Reconcile(model.Task{ID: "a", ActiveTimer: &model.ActiveTimer{StartTime: t0}}, rev)

	assert.False(t, res.Changed)
	assert.False(t, m.State().IsRunning)
	assert.Nil(t, f.timers.Load(context.Background()))
	assert.Equal(t, []string{"start a", "stop a"}, f.api.Calls())
}

func TestReconcile_DropsServerStateFetchedBeforeSwitch(t *testing.T) {
	f := newFixture(t)
	m := f.machine()
	defer m.Close()

	m.Start(context.Background(), taskA)
	rev := m.State().Revision

	m.Start(context.Background(), taskB)
	res := m.Reconcile(model.Task{ID: "a", ActiveTimer: &model.ActiveTimer{StartTime: t0}}, rev)

	assert.False(t, res.Changed)
	st := m.State()
	require.NotNil(t, st.ActiveTask)
	assert.Equal(t, "b", st.ActiveTask.ID)

	snap := f.timers.Load(context.Background())
	require.NotNil(t, snap)
	assert.Equal(t, "b", snap.ActiveTask.ID)
}

func TestReconcile_ServerTimerOnOtherTaskStopsLocalOne(t *testing.T) {
	f := newFixture(t)
	m := f.machine()
	defer m.Close()

	var stopped []events.TimerStopped
	f.bus.TimerStopped.Subscribe(func(e events.TimerStopped) { stopped = append(stopped, e) })

	m.Start(context.Background(), taskB)
	f.clock.Advance(30 * time.Second)

	task := model.Task{ID: "a", Title: taskA.Title, ActiveTimer: &model.ActiveTimer{StartTime: t0.Add(10 * time.Second)}}
	res := m.Reconcile(task, m.State().Revision)

	assert.True(t, res.Changed)
	st := m.State()
	require.NotNil(t, st.ActiveTask)
	assert.Equal(t, "a", st.ActiveTask.ID)
	assert.Equal(t, int64(20), st.ElapsedSeconds)

	require.Len(t, stopped, 1)
	assert.Equal(t, "b", stopped[0].Task.ID)
	assert.Equal(t, int64(30), stopped[0].ElapsedSeconds)
	assert.Equal(t, []string{"start b", "stop b"}, f.api.Calls())
}

func TestScenario_StartWaitStop(t *testing.T) {
	f := newFixture(t)
	m := f.machine()
	defer m.Close()

	m.Start(context.Background(), taskA)
	assert.Equal(t, int64(0), m.State().ElapsedSeconds)

	f.clock.Advance(5 * time.Second)
	m.Tick()
	w := m.Widget()
	assert.True(t, w.IsRunning)
	assert.Equal(t, "00:00:05", w.FormattedTime)

	m.Stop(context.Background())
	assert.False(t, m.Widget().IsRunning)
	assert.Nil(t, m.Widget().ActiveTask)
	assert.Nil(t, f.timers.Load(context.Background()))

	// Reopening the task: the server reports no timer.
	res := m.Reconcile(model.Task{ID: "a"}, m.State().Revision)
	assert.False(t, res.Changed)
	assert.False(t, m.State().IsRunning)
}

func TestUpdates_KeepsLatestState(t *testing.T) {
	f := newFixture(t)
	m := f.machine()
	defer m.Close()

	m.Start(context.Background(), taskA)
	f.clock.Advance(3 * time.Second)
	m.Tick()

	st := <-m.Updates()
	assert.Equal(t, int64(3), st.ElapsedSeconds)
}
