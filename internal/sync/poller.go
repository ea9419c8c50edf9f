// Package sync runs the periodic reconciliation jobs that correct local
// state for anything the push channel missed, and reports each run to the
// Bubble Tea runtime.
package sync

import (
	"context"
	"fmt"
	"log"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskflow/internal/api"
)

// SyncState represents the current state of a job.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	}
	return "unknown"
}

// Job is one periodic reconciliation task.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// SyncStatus holds the state of a single job.
type SyncStatus struct {
	Job      string
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a job run completes.
type SyncResultMsg struct {
	Job       string
	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg is a tea.Msg sent when the API rejects the token.
type AuthErrorMsg struct {
	Job     string
	Message string
}

// runTimeout is the maximum time allowed for a single job run.
const runTimeout = 30 * time.Second

type jobEntry struct {
	job     Job
	trigger chan struct{}
}

// Poller runs registered jobs on their intervals.
type Poller struct {
	logger   *log.Logger
	jobs     []jobEntry
	statuses map[string]*SyncStatus
	resultCh chan SyncResultMsg
	stopCh   chan struct{}
	wg       gosync.WaitGroup
	mu       gosync.Mutex
	running  bool
	stopped  bool
}

// New creates an idle Poller.
func New(logger *log.Logger) *Poller {
	return &Poller{
		logger:   logger,
		statuses: make(map[string]*SyncStatus),
		resultCh: make(chan SyncResultMsg, 16),
		stopCh:   make(chan struct{}),
	}
}

// Register adds a job. Jobs registered after Start are not run.
func (p *Poller) Register(job Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.jobs = append(p.jobs, jobEntry{job: job, trigger: make(chan struct{}, 1)})
	p.statuses[job.Name()] = &SyncStatus{Job: job.Name(), State: SyncIdle}
}

// Start launches one goroutine per job and returns a tea.Cmd that
// delivers the first result.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	jobs := append([]jobEntry(nil), p.jobs...)
	p.mu.Unlock()

	for _, entry := range jobs {
		p.wg.Add(1)
		go p.loop(entry)
	}

	return p.waitForResult()
}

// Stop halts all jobs and waits for in-flight runs to finish. Pending
// WaitForNextResult commands then return nil.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.stopped = true
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	close(p.resultCh)
}

// RefreshAll triggers an immediate run of every job.
func (p *Poller) RefreshAll() tea.Cmd {
	p.mu.Lock()
	jobs := append([]jobEntry(nil), p.jobs...)
	p.mu.Unlock()

	for _, entry := range jobs {
		select {
		case entry.trigger <- struct{}{}:
		default:
			// A run is already queued.
		}
	}
	return nil
}

// Refresh triggers an immediate run of the named job.
func (p *Poller) Refresh(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, entry := range p.jobs {
		if entry.job.Name() == name {
			select {
			case entry.trigger <- struct{}{}:
			default:
			}
		}
	}
}

// GetStatuses returns the status of every job in registration order.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.jobs))
	for _, entry := range p.jobs {
		statuses = append(statuses, *p.statuses[entry.job.Name()])
	}
	return statuses
}

// loop runs a single job: once immediately, then on every tick or trigger.
func (p *Poller) loop(entry jobEntry) {
	defer p.wg.Done()

	interval := entry.job.Interval()
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.run(entry.job)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.run(entry.job)
		case <-entry.trigger:
			p.run(entry.job)
		}
	}
}

// run performs one job run and reports its outcome.
func (p *Poller) run(job Job) {
	name := job.Name()
	p.setStatus(name, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	err := job.Run(ctx)
	if err == nil {
		p.setStatus(name, SyncIdle, nil)
		p.sendResult(SyncResultMsg{Job: name})
		return
	}

	p.setStatus(name, SyncError, err)
	p.logger.Printf("[WARN] sync %s: %v", name, err)

	if api.IsAuthError(err) {
		p.sendResult(SyncResultMsg{
			Job:   name,
			Error: err,
			AuthError: &AuthErrorMsg{
				Job:     name,
				Message: fmt.Sprintf("%s: session expired. Run `taskflow login` again.", name),
			},
		})
		return
	}

	p.sendResult(SyncResultMsg{Job: name, Error: err})
}

// setStatus updates the status of the named job.
func (p *Poller) setStatus(name string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[name]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if the UI is not keeping up.
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next result.
// Call it after handling a SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
