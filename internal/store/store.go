package store

import (
	"context"
	"errors"
)

// Well-known slot keys. Values are plain JSON strings without a schema
// version, mirroring browser local storage.
const (
	// SlotTimer holds the persisted TimerSnapshot.
	SlotTimer = "taskflow.timer"

	// SlotSelectedTeam holds the last-selected team filter.
	SlotSelectedTeam = "taskflow.selectedTeam"
)

// ErrSlotNotFound is returned by GetSlot when the key has no value.
var ErrSlotNotFound = errors.New("slot not found")

// Store defines the local persistence interface: a small set of named
// slots, each holding one JSON document.
type Store interface {
	// GetSlot returns the raw value stored under key, or ErrSlotNotFound.
	GetSlot(ctx context.Context, key string) (string, error)

	// SetSlot overwrites the value stored under key.
	SetSlot(ctx context.Context, key, value string) error

	// DeleteSlot removes key. Deleting a missing key is not an error.
	DeleteSlot(ctx context.Context, key string) error
}
