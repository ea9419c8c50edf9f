package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Prefs stores small UI preferences shared between views.
type Prefs struct {
	slots Store
}

// NewPrefs creates a Prefs over the given slot store.
func NewPrefs(s Store) *Prefs {
	return &Prefs{slots: s}
}

// SaveTeamFilter records teamID as the selected team filter. An empty
// teamID clears the filter.
func (p *Prefs) SaveTeamFilter(ctx context.Context, teamID string) error {
	if teamID == "" {
		return p.slots.DeleteSlot(ctx, SlotSelectedTeam)
	}
	data, err := json.Marshal(teamID)
	if err != nil {
		return fmt.Errorf("marshaling team filter: %w", err)
	}
	return p.slots.SetSlot(ctx, SlotSelectedTeam, string(data))
}

// TeamFilter returns the selected team, or "" when none is set or the
// stored value is unreadable.
func (p *Prefs) TeamFilter(ctx context.Context) (string, error) {
	raw, err := p.slots.GetSlot(ctx, SlotSelectedTeam)
	if errors.Is(err, ErrSlotNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var teamID string
	if err := json.Unmarshal([]byte(raw), &teamID); err != nil {
		return "", nil
	}
	return teamID, nil
}
