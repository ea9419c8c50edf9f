// Package timer owns the single active task timer of a session. State lives
// in memory, a snapshot is persisted locally as a reload hint, and the
// server is told about every start and stop without waiting on it.
package timer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nhle/taskflow/internal/events"
	"github.com/nhle/taskflow/internal/model"
)

// SnapshotStore persists the timer snapshot between runs.
type SnapshotStore interface {
	Save(ctx context.Context, snap model.TimerSnapshot) error
	Load(ctx context.Context) *model.TimerSnapshot
	Clear(ctx context.Context) error
}

// API mirrors timer transitions on the server.
type API interface {
	StartTimer(ctx context.Context, taskID string) error
	StopTimer(ctx context.Context, taskID string) error
}

// Result reports the outcome of a transition. The local transition is
// committed whenever Changed is true, even if ServerErr is set.
type Result struct {
	Task      model.TaskSummary
	Changed   bool
	ServerErr error
}

// Option customises a Machine.
type Option func(*Machine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithTickInterval sets the display refresh period. Zero disables the
// background ticker; Tick can still be called directly.
func WithTickInterval(d time.Duration) Option {
	return func(m *Machine) { m.tickInterval = d }
}

// WithGrace sets how long after a local start Reconcile tolerates the
// server not reporting the timer yet.
func WithGrace(d time.Duration) Option {
	return func(m *Machine) { m.grace = d }
}

// Machine is the timer state machine: Idle or Running(task, start, base).
type Machine struct {
	store  SnapshotStore
	api    API
	bus    *events.Bus
	logger *log.Logger

	now          func() time.Time
	tickInterval time.Duration
	grace        time.Duration

	mu      sync.Mutex
	running bool
	task    model.TaskSummary
	start   time.Time
	base    int64
	elapsed int64
	rev     uint64

	// gen is bumped whenever the tick is cancelled so that a tick that
	// was already in flight cannot touch the new state.
	gen      uint64
	stopTick chan struct{}
	closed   bool

	updates chan model.TimerState
}

// New builds a Machine and restores a running timer from the store, if
// one was left running.
func New(store SnapshotStore, api API, bus *events.Bus, logger *log.Logger, opts ...Option) *Machine {
	m := &Machine{
		store:        store,
		api:          api,
		bus:          bus,
		logger:       logger,
		now:          time.Now,
		tickInterval: time.Second,
		updates:      make(chan model.TimerState, 1),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.restore()
	return m
}

func (m *Machine) restore() {
	snap := m.store.Load(context.Background())
	if snap == nil || !snap.IsRunning {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.running = true
	m.task = *snap.ActiveTask
	m.start = snap.StartTime()
	m.base = snap.ElapsedSeconds
	m.elapsed = model.ElapsedSince(m.base, m.start, m.now())
	m.startTickLocked()

	m.logger.Printf("[INFO] resumed timer on %s at %s", m.task.ID, model.FormatElapsed(m.elapsed))
}

// State returns a copy of the current state.
func (m *Machine) State() model.TimerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Widget returns the sidebar read model.
func (m *Machine) Widget() model.TimerWidget {
	return m.State().Widget()
}

// Updates delivers the latest state after every change. Only the most
// recent value is kept if the reader falls behind.
func (m *Machine) Updates() <-chan model.TimerState {
	return m.updates
}

// Start runs the timer on task. Starting the task that is already running
// is a no-op. A different running task is stopped first.
func (m *Machine) Start(ctx context.Context, task model.TaskSummary) Result {
	m.mu.Lock()
	if m.running && m.task.ID == task.ID {
		m.mu.Unlock()
		return Result{Task: task}
	}

	var (
		prev        model.TaskSummary
		prevElapsed int64
		switched    = m.running
	)
	if switched {
		prev = m.task
		prevElapsed = m.commitIdleLocked()
	}

	m.running = true
	m.task = task
	m.start = m.now()
	m.base = 0
	m.elapsed = 0
	m.rev++
	m.startTickLocked()
	m.persistLocked(ctx)
	m.publish(m.stateLocked())
	m.mu.Unlock()

	if switched {
		m.bus.TimerStopped.Publish(events.TimerStopped{Task: prev, ElapsedSeconds: prevElapsed})
		if err := m.api.StopTimer(ctx, prev.ID); err != nil {
			m.logger.Printf("[WARN] stopping previous timer on %s: %v", prev.ID, err)
		}
	}

	m.bus.TimerStarted.Publish(events.TimerStarted{Task: task})

	res := Result{Task: task, Changed: true}
	if err := m.api.StartTimer(ctx, task.ID); err != nil {
		m.logger.Printf("[WARN] starting timer on %s: %v", task.ID, err)
		res.ServerErr = err
	}
	return res
}

// Stop ends the running timer. The local transition is committed before
// the server is told, and is never rolled back.
func (m *Machine) Stop(ctx context.Context) Result {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return Result{}
	}

	task := m.task
	elapsed := m.commitIdleLocked()
	m.persistLocked(ctx)
	m.publish(m.stateLocked())
	m.mu.Unlock()

	m.bus.TimerStopped.Publish(events.TimerStopped{Task: task, ElapsedSeconds: elapsed})

	res := Result{Task: task, Changed: true}
	if err := m.api.StopTimer(ctx, task.ID); err != nil {
		m.logger.Printf("[WARN] stopping timer on %s: %v", task.ID, err)
		res.ServerErr = err
	}
	return res
}

// Tick refreshes the elapsed display from the clock.
func (m *Machine) Tick() {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	m.tick(gen)
}

func (m *Machine) tick(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.running {
		m.mu.Unlock()
		return
	}
	m.elapsed = model.ElapsedSince(m.base, m.start, m.now())
	m.publish(m.stateLocked())
	m.mu.Unlock()
}

// SyncFromServer adopts a timer the server reports as running on task,
// for example one started from another client. Elapsed time is measured
// from the server's start time and never negative. A local timer on a
// different task is stopped the same way Start stops it.
func (m *Machine) SyncFromServer(task model.TaskSummary, active model.ActiveTimer) Result {
	m.mu.Lock()
	a := m.adoptLocked(task, active)
	m.mu.Unlock()
	return m.finishAdopt(task, active, a)
}

// Reconcile compares the local timer with a task fetched while the timer
// was at revision since. Nothing happens if the timer moved on in the
// meantime, so a stop or a switch made during the fetch is never undone.
// Otherwise a timer the server reports is adopted, and a local timer on
// task that the server no longer reports is stopped locally, unless it was
// started within the grace period.
func (m *Machine) Reconcile(task model.Task, since uint64) Result {
	m.mu.Lock()
	if m.rev != since {
		m.mu.Unlock()
		m.logger.Printf("[DEBUG] dropping stale server state for %s", task.ID)
		return Result{Task: task.Summary()}
	}

	if task.ActiveTimer != nil {
		summary, active := task.Summary(), *task.ActiveTimer
		a := m.adoptLocked(summary, active)
		m.mu.Unlock()
		return m.finishAdopt(summary, active, a)
	}

	if !m.running || m.task.ID != task.ID || m.now().Sub(m.start) < m.grace {
		m.mu.Unlock()
		return Result{Task: task.Summary()}
	}

	summary := m.task
	elapsed := m.commitIdleLocked()
	m.persistLocked(context.Background())
	m.publish(m.stateLocked())
	m.mu.Unlock()

	m.logger.Printf("[INFO] server has no timer on %s, stopping local timer", summary.ID)
	m.bus.TimerStopped.Publish(events.TimerStopped{Task: summary, ElapsedSeconds: elapsed})
	return Result{Task: summary, Changed: true}
}

type adoption struct {
	changed     bool
	switched    bool
	prev        model.TaskSummary
	prevElapsed int64
}

func (m *Machine) adoptLocked(task model.TaskSummary, active model.ActiveTimer) adoption {
	if m.running && m.task.ID == task.ID && m.start.Equal(active.StartTime) && m.base == 0 {
		return adoption{}
	}

	a := adoption{changed: true}
	if m.running && m.task.ID != task.ID {
		a.switched = true
		a.prev = m.task
		a.prevElapsed = m.commitIdleLocked()
	}

	m.running = true
	m.task = task
	m.start = active.StartTime
	m.base = 0
	m.elapsed = model.ElapsedSince(0, m.start, m.now())
	m.rev++
	m.startTickLocked()
	m.persistLocked(context.Background())
	m.publish(m.stateLocked())
	return a
}

// finishAdopt runs the side effects of an adoption outside the lock.
func (m *Machine) finishAdopt(task model.TaskSummary, active model.ActiveTimer, a adoption) Result {
	if !a.changed {
		return Result{Task: task}
	}

	res := Result{Task: task, Changed: true}
	if a.switched {
		m.bus.TimerStopped.Publish(events.TimerStopped{Task: a.prev, ElapsedSeconds: a.prevElapsed})
		if err := m.api.StopTimer(context.Background(), a.prev.ID); err != nil {
			m.logger.Printf("[WARN] stopping replaced timer on %s: %v", a.prev.ID, err)
			res.ServerErr = err
		}
	}

	m.logger.Printf("[INFO] adopted server timer on %s started %s", task.ID, active.StartTime.Format(time.RFC3339))
	return res
}

// Close cancels the tick. The persisted snapshot is left alone so the
// timer resumes on the next run.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelTickLocked()
	m.closed = true
}

// commitIdleLocked moves to Idle, cancels the tick and returns the final
// elapsed seconds.
func (m *Machine) commitIdleLocked() int64 {
	elapsed := model.ElapsedSince(m.base, m.start, m.now())
	m.cancelTickLocked()
	m.rev++
	m.running = false
	m.task = model.TaskSummary{}
	m.start = time.Time{}
	m.base = 0
	m.elapsed = 0
	return elapsed
}

// persistLocked writes the snapshot for a running timer and clears the
// slot otherwise. Failures are logged only.
func (m *Machine) persistLocked(ctx context.Context) {
	if !m.running {
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Printf("[ERROR] clearing timer snapshot: %v", err)
		}
		return
	}

	task := m.task
	start := m.start.UnixMilli()
	snap := model.TimerSnapshot{
		ActiveTask:     &task,
		IsRunning:      true,
		StartTimestamp: &start,
		ElapsedSeconds: m.base,
	}
	if err := m.store.Save(ctx, snap); err != nil {
		m.logger.Printf("[ERROR] saving timer snapshot: %v", err)
	}
}

func (m *Machine) startTickLocked() {
	m.cancelTickLocked()
	if m.tickInterval <= 0 || m.closed {
		return
	}

	stop := make(chan struct{})
	m.stopTick = stop
	gen := m.gen
	interval := m.tickInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.tick(gen)
			}
		}
	}()
}

func (m *Machine) cancelTickLocked() {
	m.gen++
	if m.stopTick != nil {
		close(m.stopTick)
		m.stopTick = nil
	}
}

func (m *Machine) stateLocked() model.TimerState {
	st := model.TimerState{
		IsRunning:      m.running,
		ElapsedSeconds: m.elapsed,
		Revision:       m.rev,
	}
	if m.running {
		task := m.task
		st.ActiveTask = &task
	}
	return st
}

// publish replaces any unread value in the updates channel with st. It
// never blocks and is called with mu held so values arrive in order.
func (m *Machine) publish(st model.TimerState) {
	for {
		select {
		case m.updates <- st:
			return
		default:
		}
		select {
		case <-m.updates:
		default:
		}
	}
}
