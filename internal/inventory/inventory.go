// Package inventory loads and stores a player's mods and roster.
package inventory

import (
	"context"
	"errors"
	"slices"

	"github.com/udisondev/modplanner/internal/model"
)

// ErrNotFound is returned by sources that have nothing stored for the player.
var ErrNotFound = errors.New("inventory not found")

// Snapshot is everything a planning pass reads. Characters are in priority
// order.
type Snapshot struct {
	AllyCode   string                 `yaml:"ally_code"`
	Pool       []model.Mod            `yaml:"mods"`
	Characters []model.CharacterState `yaml:"characters"`
}

// Source provides snapshots.
type Source interface {
	Load(ctx context.Context) (Snapshot, error)
}

// Store is a Source that can also persist a snapshot.
type Store interface {
	Source
	Save(ctx context.Context, snap Snapshot) error
}

// Clone returns a deep copy. A planning pass must own its pool, so callers
// that keep using a snapshot hand the planner a clone.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		AllyCode:   s.AllyCode,
		Pool:       make([]model.Mod, len(s.Pool)),
		Characters: make([]model.CharacterState, len(s.Characters)),
	}
	for i, m := range s.Pool {
		out.Pool[i] = m.Clone()
	}
	for i, c := range s.Characters {
		out.Characters[i] = c.Clone()
	}
	return out
}

// Character returns the character with the id.
func (s Snapshot) Character(id model.CharacterID) (model.CharacterState, bool) {
	i := slices.IndexFunc(s.Characters, func(c model.CharacterState) bool { return c.ID == id })
	if i < 0 {
		return model.CharacterState{}, false
	}
	return s.Characters[i], true
}

// WithLoadouts returns a copy whose characters wear the given loadouts.
// Characters missing from the map keep their equipped mods.
func (s Snapshot) WithLoadouts(loadouts map[model.CharacterID]model.Loadout) Snapshot {
	out := s.Clone()
	for i := range out.Characters {
		if l, ok := loadouts[out.Characters[i].ID]; ok {
			out.Characters[i].Equipped = l.IDs()
		}
	}
	return out
}
