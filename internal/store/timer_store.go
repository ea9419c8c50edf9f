package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nhle/taskflow/internal/model"
)

// TimerStore persists the timer snapshot in a single well-known slot. It is
// a local reload hint: never shared with other clients and never read as a
// source of truth for anyone but this process.
type TimerStore struct {
	slots Store
	now   func() time.Time
}

// NewTimerStore creates a TimerStore over the given slot store.
func NewTimerStore(s Store) *TimerStore {
	return &TimerStore{slots: s, now: time.Now}
}

// WithClock overrides the clock used to stamp LastPersistedAt.
func (t *TimerStore) WithClock(now func() time.Time) *TimerStore {
	t.now = now
	return t
}

// Save overwrites the slot with snap, stamped with the current time.
func (t *TimerStore) Save(ctx context.Context, snap model.TimerSnapshot) error {
	snap.LastPersistedAt = t.now().UnixMilli()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling timer snapshot: %w", err)
	}
	return t.slots.SetSlot(ctx, SlotTimer, string(data))
}

// Load returns the stored snapshot, or nil when the slot is missing,
// unreadable, corrupt, or violates the snapshot invariant.
func (t *TimerStore) Load(ctx context.Context) *model.TimerSnapshot {
	raw, err := t.slots.GetSlot(ctx, SlotTimer)
	if err != nil {
		return nil
	}

	var snap model.TimerSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil
	}
	if !snap.Valid() {
		return nil
	}
	return &snap
}

// Clear deletes the slot so that the next Load returns nil.
func (t *TimerStore) Clear(ctx context.Context) error {
	return t.slots.DeleteSlot(ctx, SlotTimer)
}
