package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskflow/internal/events"
	"github.com/nhle/taskflow/internal/logging"
	"github.com/nhle/taskflow/internal/model"
)

type fakeAPI struct {
	mu      sync.Mutex
	list    []model.Notification
	count   int
	err     error
	calls   []string
	onList  func()
	release chan struct{}
}

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeAPI) ListNotifications(_ context.Context, limit int) ([]model.Notification, error) {
	if f.onList != nil {
		f.onList()
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "list")
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Notification(nil), f.list...), nil
}

func (f *fakeAPI) UnreadCount(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, f.err
}

func (f *fakeAPI) MarkNotificationRead(_ context.Context, id string) error {
	return f.record("read " + id)
}

func (f *fakeAPI) MarkAllNotificationsRead(context.Context) error {
	return f.record("read-all")
}

func (f *fakeAPI) DeleteNotification(_ context.Context, id string) error {
	return f.record("delete " + id)
}

func (f *fakeAPI) DeleteAllNotifications(context.Context) error {
	return f.record("delete-all")
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeFilters struct {
	saved []string
}

func (f *fakeFilters) SaveTeamFilter(_ context.Context, teamID string) error {
	f.saved = append(f.saved, teamID)
	return nil
}

func notification(typ model.NotificationType, read bool) model.Notification {
	return model.Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Title:     string(typ),
		Read:      read,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newController(api *fakeAPI) (*Controller, *fakeFilters, *events.Bus) {
	filters := &fakeFilters{}
	bus := events.NewBus()
	return New(api, filters, bus, logging.Discard(), 20), filters, bus
}

func ids(items []model.Notification) []string {
	out := make([]string, len(items))
	for i, n := range items {
		out[i] = n.ID
	}
	return out
}

func TestOnPush_PrependsAndCounts(t *testing.T) {
	c, _, _ := newController(&fakeAPI{})

	a := notification(model.NotificationTaskAssigned, false)
	b := notification(model.NotificationTeamInvite, false)
	assert.True(t, c.OnPush(a))
	assert.True(t, c.OnPush(b))
	assert.False(t, c.OnPush(a), "duplicate id")

	snap := c.Snapshot()
	assert.Equal(t, []string{b.ID, a.ID}, ids(snap.Items))
	assert.Equal(t, 2, snap.Unread)
}

func TestFetchRecent_FetchedCopyWins(t *testing.T) {
	x := notification(model.NotificationTaskAssigned, false)
	api := &fakeAPI{}
	c, _, _ := newController(api)

	c.OnPush(x)

	fetched := x
	fetched.Read = true
	api.list = []model.Notification{fetched}
	require.NoError(t, c.FetchRecent(context.Background()))

	snap := c.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, x.ID, snap.Items[0].ID)
	assert.True(t, snap.Items[0].Read)
}

func TestFetchRecent_ReplacesStaleItems(t *testing.T) {
	old := notification(model.NotificationTaskUpdated, false)
	fresh := notification(model.NotificationTaskCommented, false)
	api := &fakeAPI{list: []model.Notification{old}}
	c, _, _ := newController(api)

	require.NoError(t, c.FetchRecent(context.Background()))
	c.OnPush(notification(model.NotificationSystem, false))

	api.list = []model.Notification{fresh}
	require.NoError(t, c.FetchRecent(context.Background()))
	assert.Equal(t, []string{fresh.ID}, ids(c.Snapshot().Items))
}

func TestFetchRecent_KeepsPushesArrivingInFlight(t *testing.T) {
	fetched := notification(model.NotificationTaskUpdated, true)
	pushed := notification(model.NotificationTaskAssigned, false)

	api := &fakeAPI{list: []model.Notification{fetched}}
	c, _, _ := newController(api)
	api.onList = func() { c.OnPush(pushed) }

	require.NoError(t, c.FetchRecent(context.Background()))
	assert.Equal(t, []string{pushed.ID, fetched.ID}, ids(c.Snapshot().Items))
}

func TestFetchRecent_FailureKeepsList(t *testing.T) {
	api := &fakeAPI{}
	c, _, _ := newController(api)
	n := notification(model.NotificationTaskDueSoon, false)
	c.OnPush(n)

	api.err = errors.New("offline")
	assert.Error(t, c.FetchRecent(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, []string{n.ID}, ids(snap.Items))
	assert.EqualError(t, snap.FetchErr, "offline")
}

func TestMarkRead_NeverGoesBelowZero(t *testing.T) {
	api := &fakeAPI{}
	c, _, _ := newController(api)
	n := notification(model.NotificationTaskAssigned, false)
	c.OnPush(n)

	assert.True(t, c.MarkRead(context.Background(), n.ID).Changed)
	for range 3 {
		assert.False(t, c.MarkRead(context.Background(), n.ID).Changed)
	}

	assert.Equal(t, 0, c.Unread())
	assert.Equal(t, []string{"read " + n.ID}, api.Calls())
}

func TestMarkRead_FloorsServerCount(t *testing.T) {
	api := &fakeAPI{list: []model.Notification{
		notification(model.NotificationTaskAssigned, false),
		notification(model.NotificationTaskUpdated, false),
	}}
	c, _, _ := newController(api)
	require.NoError(t, c.FetchRecent(context.Background()))
	require.NoError(t, c.FetchUnreadCount(context.Background()))

	for _, n := range c.Snapshot().Items {
		c.MarkRead(context.Background(), n.ID)
	}
	assert.Equal(t, 0, c.Unread())
}

func TestMarkRead_ServerFailureIsReportedNotRolledBack(t *testing.T) {
	api := &fakeAPI{}
	c, _, _ := newController(api)
	n := notification(model.NotificationTaskAssigned, false)
	c.OnPush(n)

	api.err = errors.New("boom")
	res := c.MarkRead(context.Background(), n.ID)
	assert.True(t, res.Changed)
	assert.Error(t, res.ServerErr)
	assert.True(t, c.Snapshot().Items[0].Read)
	assert.Equal(t, 0, c.Unread())
}

func TestMarkAllRead(t *testing.T) {
	api := &fakeAPI{}
	c, _, _ := newController(api)
	c.OnPush(notification(model.NotificationTaskAssigned, false))
	c.OnPush(notification(model.NotificationTeamJoined, false))

	c.MarkAllRead(context.Background())

	snap := c.Snapshot()
	assert.Equal(t, 0, snap.Unread)
	for _, n := range snap.Items {
		assert.True(t, n.Read)
	}
	assert.Equal(t, []string{"read-all"}, api.Calls())
}

func TestDelete_DecrementsOnlyForUnread(t *testing.T) {
	api := &fakeAPI{}
	c, _, _ := newController(api)
	unread := notification(model.NotificationTaskAssigned, false)
	read := notification(model.NotificationTaskUpdated, true)
	c.OnPush(unread)
	c.OnPush(read)
	require.Equal(t, 1, c.Unread())

	c.Delete(context.Background(), read.ID)
	assert.Equal(t, 1, c.Unread())

	c.Delete(context.Background(), unread.ID)
	assert.Equal(t, 0, c.Unread())
	assert.Empty(t, c.Snapshot().Items)

	assert.False(t, c.Delete(context.Background(), "missing").Changed)
	assert.Equal(t, []string{"delete " + read.ID, "delete " + unread.ID}, api.Calls())
}

func TestDeleteAll_RequiresConfirmation(t *testing.T) {
	api := &fakeAPI{}
	c, _, _ := newController(api)
	c.OnPush(notification(model.NotificationTaskAssigned, false))

	_, err := c.DeleteAll(context.Background(), false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Len(t, c.Snapshot().Items, 1)
	assert.Empty(t, api.Calls())

	res, err := c.DeleteAll(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Empty(t, c.Snapshot().Items)
	assert.Equal(t, 0, c.Unread())
	assert.Equal(t, []string{"delete-all"}, api.Calls())
}

func TestOpen_AlwaysRefetches(t *testing.T) {
	api := &fakeAPI{count: 3}
	c, _, _ := newController(api)

	c.Open(context.Background())
	assert.Equal(t, PhaseLoaded, c.Snapshot().Phase)
	assert.Equal(t, 3, c.Unread())

	c.Close()
	assert.Equal(t, PhaseClosed, c.Snapshot().Phase)

	c.Open(context.Background())
	assert.Equal(t, []string{"list", "list"}, api.Calls())
}

func TestOpen_IsLoadingWhileFetching(t *testing.T) {
	api := &fakeAPI{release: make(chan struct{})}
	c, _, _ := newController(api)

	done := make(chan struct{})
	go func() {
		c.Open(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return c.Snapshot().Phase == PhaseLoading
	}, time.Second, 5*time.Millisecond)

	close(api.release)
	<-done
	assert.Equal(t, PhaseLoaded, c.Snapshot().Phase)
}

func TestActivate_TeamScopedTaskNotification(t *testing.T) {
	api := &fakeAPI{}
	c, filters, bus := newController(api)

	var changed []string
	refreshes := 0
	bus.TeamFilterChanged.Subscribe(func(e events.TeamFilterChanged) { changed = append(changed, e.TeamID) })
	bus.RefreshTaskList.Subscribe(func(events.RefreshTaskList) { refreshes++ })

	n := notification(model.NotificationTaskAssigned, false)
	n.RelatedTeam = "T1"
	before := c.Unread()
	c.OnPush(n)
	assert.Equal(t, before+1, c.Unread())

	route, res := c.Activate(context.Background(), n.ID)
	require.NotNil(t, route)
	assert.Equal(t, ViewTasks, route.View)
	assert.Equal(t, "T1", route.TeamID)
	assert.True(t, res.Changed)

	assert.Equal(t, []string{"T1"}, filters.saved)
	assert.Equal(t, []string{"T1"}, changed)
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, before, c.Unread())
}

func TestActivate_TeamsRouteDoesNotTouchFilter(t *testing.T) {
	c, filters, _ := newController(&fakeAPI{})

	n := notification(model.NotificationTeamInvite, false)
	n.RelatedTeam = "T2"
	c.OnPush(n)

	route, _ := c.Activate(context.Background(), n.ID)
	require.NotNil(t, route)
	assert.Equal(t, ViewTeams, route.View)
	assert.Empty(t, filters.saved)
}

func TestActivate_UnknownID(t *testing.T) {
	c, _, _ := newController(&fakeAPI{})
	route, res := c.Activate(context.Background(), "nope")
	assert.Nil(t, route)
	assert.False(t, res.Changed)
}
