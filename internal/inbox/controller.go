// Package inbox keeps the notification list and unread counter in sync
// with pushes and server fetches. Mutations are applied locally first and
// are not rolled back when the server call fails.
package inbox

import (
	"context"
	"errors"
	"log"
	"slices"
	"sync"

	"github.com/nhle/taskflow/internal/events"
	"github.com/nhle/taskflow/internal/model"
)

// ErrConfirmationRequired is returned by DeleteAll without confirmation.
var ErrConfirmationRequired = errors.New("inbox: deleting all notifications requires confirmation")

// API is the slice of the TaskFlow API the inbox needs.
type API interface {
	ListNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
	DeleteAllNotifications(ctx context.Context) error
}

// FilterStore persists the team filter used by the task list.
type FilterStore interface {
	SaveTeamFilter(ctx context.Context, teamID string) error
}

// Phase is the state of the inbox panel.
type Phase int

const (
	PhaseClosed Phase = iota
	PhaseLoading
	PhaseLoaded
)

func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "closed"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	}
	return "unknown"
}

// Result reports a mutation. Changed is true when local state moved;
// ServerErr is the failure of the mirrored server call, if any.
type Result struct {
	Changed   bool
	ServerErr error
}

// Snapshot is a read-only copy of the inbox state.
type Snapshot struct {
	Phase  Phase
	Items  []model.Notification
	Unread int

	// FetchErr is the error of the last list fetch, cleared on success.
	FetchErr error
}

// Controller owns the notification list and unread counter.
type Controller struct {
	api     API
	filters FilterStore
	bus     *events.Bus
	logger  *log.Logger
	limit   int

	mu       sync.Mutex
	phase    Phase
	items    []model.Notification
	unread   int
	fetchErr error

	// pushSeq numbers pushes; pushedAt maps a pushed id to its number so
	// a fetch can tell which pushes arrived while it was in flight.
	pushSeq  uint64
	pushedAt map[string]uint64

	updates chan struct{}
}

// New creates a closed, empty inbox that fetches limit items at a time.
func New(api API, filters FilterStore, bus *events.Bus, logger *log.Logger, limit int) *Controller {
	if limit <= 0 {
		limit = 20
	}
	return &Controller{
		api:      api,
		filters:  filters,
		bus:      bus,
		logger:   logger,
		limit:    limit,
		pushedAt: make(map[string]uint64),
		updates:  make(chan struct{}, 1),
	}
}

// Updates signals that the snapshot changed.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Phase:    c.phase,
		Items:    slices.Clone(c.items),
		Unread:   c.unread,
		FetchErr: c.fetchErr,
	}
}

// IsOpen reports whether the panel is showing.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase != PhaseClosed
}

// Unread returns the unread counter.
func (c *Controller) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// Open shows the panel and always re-fetches the list and counter.
func (c *Controller) Open(ctx context.Context) {
	c.mu.Lock()
	c.phase = PhaseLoading
	c.mu.Unlock()
	c.notify()

	c.FetchRecent(ctx)
	c.FetchUnreadCount(ctx)

	c.mu.Lock()
	if c.phase == PhaseLoading {
		c.phase = PhaseLoaded
	}
	c.mu.Unlock()
	c.notify()
}

// Close hides the panel. The list is kept.
func (c *Controller) Close() {
	c.mu.Lock()
	c.phase = PhaseClosed
	c.mu.Unlock()
	c.notify()
}

// FetchRecent replaces the list with the server's most recent items.
// Pushes that arrived during the fetch and are missing from the batch
// stay in front; for ids present in both, the fetched copy wins.
func (c *Controller) FetchRecent(ctx context.Context) error {
	c.mu.Lock()
	since := c.pushSeq
	c.mu.Unlock()

	batch, err := c.api.ListNotifications(ctx, c.limit)
	if err != nil {
		c.logger.Printf("[WARN] fetching notifications: %v", err)
		c.mu.Lock()
		c.fetchErr = err
		c.mu.Unlock()
		c.notify()
		return err
	}

	c.mu.Lock()
	fetched := make(map[string]struct{}, len(batch))
	for _, n := range batch {
		fetched[n.ID] = struct{}{}
	}

	merged := make([]model.Notification, 0, len(batch))
	for _, n := range c.items {
		if _, ok := fetched[n.ID]; ok {
			continue
		}
		if seq, ok := c.pushedAt[n.ID]; ok && seq > since {
			merged = append(merged, n)
		}
	}
	seen := make(map[string]struct{}, len(batch))
	for _, n := range batch {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		merged = append(merged, n)
	}

	c.items = merged
	c.fetchErr = nil
	c.prunePushesLocked()
	c.mu.Unlock()

	c.notify()
	return nil
}

// prunePushesLocked forgets pushed ids that are no longer listed.
func (c *Controller) prunePushesLocked() {
	listed := make(map[string]struct{}, len(c.items))
	for _, n := range c.items {
		listed[n.ID] = struct{}{}
	}
	for id := range c.pushedAt {
		if _, ok := listed[id]; !ok {
			delete(c.pushedAt, id)
		}
	}
}

// FetchUnreadCount replaces the counter with the server's count.
func (c *Controller) FetchUnreadCount(ctx context.Context) error {
	count, err := c.api.UnreadCount(ctx)
	if err != nil {
		c.logger.Printf("[WARN] fetching unread count: %v", err)
		return err
	}

	c.mu.Lock()
	c.unread = max(count, 0)
	c.mu.Unlock()
	c.notify()
	return nil
}

// OnPush prepends a pushed notification and bumps the counter. An id that
// is already listed is ignored.
func (c *Controller) OnPush(n model.Notification) bool {
	c.mu.Lock()
	if c.indexLocked(n.ID) >= 0 {
		c.mu.Unlock()
		c.logger.Printf("[DEBUG] ignoring duplicate push %s", n.ID)
		return false
	}

	c.items = slices.Insert(c.items, 0, n)
	if !n.Read {
		c.unread++
	}
	c.pushSeq++
	c.pushedAt[n.ID] = c.pushSeq
	c.mu.Unlock()

	c.notify()
	return true
}

// MarkRead marks one notification read. Unknown or already read ids do
// nothing.
func (c *Controller) MarkRead(ctx context.Context, id string) Result {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 || c.items[i].Read {
		c.mu.Unlock()
		return Result{}
	}
	c.items[i].Read = true
	c.unread = max(c.unread-1, 0)
	c.mu.Unlock()
	c.notify()

	res := Result{Changed: true}
	if err := c.api.MarkNotificationRead(ctx, id); err != nil {
		c.logger.Printf("[WARN] marking notification %s read: %v", id, err)
		res.ServerErr = err
	}
	return res
}

// MarkAllRead marks every notification read and zeroes the counter.
func (c *Controller) MarkAllRead(ctx context.Context) Result {
	c.mu.Lock()
	for i := range c.items {
		c.items[i].Read = true
	}
	c.unread = 0
	c.mu.Unlock()
	c.notify()

	res := Result{Changed: true}
	if err := c.api.MarkAllNotificationsRead(ctx); err != nil {
		c.logger.Printf("[WARN] marking all notifications read: %v", err)
		res.ServerErr = err
	}
	return res
}

// Delete removes one notification, decrementing the counter if it was
// unread.
func (c *Controller) Delete(ctx context.Context, id string) Result {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return Result{}
	}
	if !c.items[i].Read {
		c.unread = max(c.unread-1, 0)
	}
	c.items = slices.Delete(c.items, i, i+1)
	delete(c.pushedAt, id)
	c.mu.Unlock()
	c.notify()

	res := Result{Changed: true}
	if err := c.api.DeleteNotification(ctx, id); err != nil {
		c.logger.Printf("[WARN] deleting notification %s: %v", id, err)
		res.ServerErr = err
	}
	return res
}

// DeleteAll clears the inbox. It refuses to do anything unless confirmed.
func (c *Controller) DeleteAll(ctx context.Context, confirmed bool) (Result, error) {
	if !confirmed {
		return Result{}, ErrConfirmationRequired
	}

	c.mu.Lock()
	c.items = nil
	c.unread = 0
	clear(c.pushedAt)
	c.mu.Unlock()
	c.notify()

	res := Result{Changed: true}
	if err := c.api.DeleteAllNotifications(ctx); err != nil {
		c.logger.Printf("[WARN] deleting all notifications: %v", err)
		res.ServerErr = err
	}
	return res, nil
}

// Activate handles the user choosing a notification: it is marked read
// and its route resolved. A tasks route scoped to a team also saves the
// team filter and asks task lists to refresh.
func (c *Controller) Activate(ctx context.Context, id string) (*Route, Result) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return nil, Result{}
	}
	n := c.items[i]
	c.mu.Unlock()

	res := c.MarkRead(ctx, id)

	route := ResolveTargetRoute(n)
	if route == nil || route.View != ViewTasks || route.TeamID == "" {
		return route, res
	}

	if err := c.filters.SaveTeamFilter(ctx, route.TeamID); err != nil {
		c.logger.Printf("[ERROR] saving team filter %s: %v", route.TeamID, err)
	}
	c.bus.TeamFilterChanged.Publish(events.TeamFilterChanged{TeamID: route.TeamID})
	c.bus.RefreshTaskList.Publish(events.RefreshTaskList{})
	return route, res
}

func (c *Controller) indexLocked(id string) int {
	return slices.IndexFunc(c.items, func(n model.Notification) bool {
		return n.ID == id
	})
}
