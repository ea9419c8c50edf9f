package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/store"
	"github.com/nhle/taskflow/internal/testutil"
)

func runningSnapshot(start time.Time) model.TimerSnapshot {
	ms := start.UnixMilli()
	return model.TimerSnapshot{
		ActiveTask:     &model.TaskSummary{ID: "t1", Title: "Write report"},
		IsRunning:      true,
		StartTimestamp: &ms,
		ElapsedSeconds: 30,
	}
}

func TestTimerStore_SaveStampsAndLoads(t *testing.T) {
	s := testutil.NewTestStore(t)
	clock := testutil.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	ts := store.NewTimerStore(s).WithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, ts.Save(ctx, runningSnapshot(clock.Now().Add(-time.Minute))))

	got := ts.Load(ctx)
	require.NotNil(t, got)
	assert.True(t, got.IsRunning)
	assert.Equal(t, "t1", got.ActiveTask.ID)
	assert.Equal(t, int64(30), got.ElapsedSeconds)
	assert.Equal(t, clock.Now().UnixMilli(), got.LastPersistedAt)
}

func TestTimerStore_ClearMakesLoadNil(t *testing.T) {
	s := testutil.NewTestStore(t)
	ts := store.NewTimerStore(s)
	ctx := context.Background()

	require.NoError(t, ts.Save(ctx, runningSnapshot(time.Now())))
	require.NoError(t, ts.Clear(ctx))

	assert.Nil(t, ts.Load(ctx))
}

func TestTimerStore_CorruptDataIsAbsence(t *testing.T) {
	s := testutil.NewTestStore(t)
	ts := store.NewTimerStore(s)
	ctx := context.Background()

	require.NoError(t, s.SetSlot(ctx, store.SlotTimer, "{not json"))
	assert.Nil(t, ts.Load(ctx))
}

func TestTimerStore_InvariantViolationIsAbsence(t *testing.T) {
	s := testutil.NewTestStore(t)
	ts := store.NewTimerStore(s)
	ctx := context.Background()

	require.NoError(t, s.SetSlot(ctx, store.SlotTimer, `{"isRunning":true,"activeTask":null}`))
	assert.Nil(t, ts.Load(ctx))
}

func TestTimerStore_EmptySlotIsNil(t *testing.T) {
	ts := store.NewTimerStore(testutil.NewTestStore(t))
	assert.Nil(t, ts.Load(context.Background()))
}

func TestPrefs_TeamFilterRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := store.NewPrefs(s)
	ctx := context.Background()

	team, err := p.TeamFilter(ctx)
	require.NoError(t, err)
	assert.Empty(t, team)

	require.NoError(t, p.SaveTeamFilter(ctx, "T1"))
	raw, err := s.GetSlot(ctx, store.SlotSelectedTeam)
	require.NoError(t, err)
	assert.Equal(t, `"T1"`, raw)

	team, err = p.TeamFilter(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T1", team)

	require.NoError(t, p.SaveTeamFilter(ctx, ""))
	team, err = p.TeamFilter(ctx)
	require.NoError(t, err)
	assert.Empty(t, team)
}
