package model

import (
	"fmt"
	"slices"
)

// ModID — уникальный идентификатор мода в инвентаре игрока.
type ModID string

// Shape is the physical slot a mod occupies. Every character wears at most
// one mod per shape.
type Shape string

const (
	ShapeSquare   Shape = "square"
	ShapeArrow    Shape = "arrow"
	ShapeDiamond  Shape = "diamond"
	ShapeTriangle Shape = "triangle"
	ShapeCircle   Shape = "circle"
	ShapeCross    Shape = "cross"
)

// NumShapes is the number of mod slots on a character.
const NumShapes = 6

// AllShapes lists shapes in canonical slot order. Loadouts, tie-breaks and
// reconciliation output all follow this order.
var AllShapes = [NumShapes]Shape{
	ShapeSquare, ShapeArrow, ShapeDiamond, ShapeTriangle, ShapeCircle, ShapeCross,
}

// Index returns the canonical slot index of the shape.
func (s Shape) Index() (int, bool) {
	for i, shape := range AllShapes {
		if shape == s {
			return i, true
		}
	}
	return -1, false
}

// Valid reports whether s is one of the six shapes.
func (s Shape) Valid() bool {
	_, ok := s.Index()
	return ok
}

// IsSpecial reports whether the target may restrict this shape's primary stat.
func (s Shape) IsSpecial() bool {
	return s == ShapeTriangle || s == ShapeCircle || s == ShapeCross
}

// SpecialShapes are the shapes with a restrictable primary stat.
var SpecialShapes = []Shape{ShapeTriangle, ShapeCircle, ShapeCross}

// SetTag is the mod set a mod belongs to.
type SetTag string

const (
	SetHealth     SetTag = "health"
	SetDefense    SetTag = "defense"
	SetCritDamage SetTag = "critdamage"
	SetCritChance SetTag = "critchance"
	SetTenacity   SetTag = "tenacity"
	SetOffense    SetTag = "offense"
	SetPotency    SetTag = "potency"
	SetSpeed      SetTag = "speed"
)

// NumSets is the number of set tags.
const NumSets = 8

// AllSets lists set tags in a stable order used for tallies.
var AllSets = [NumSets]SetTag{
	SetHealth, SetDefense, SetCritDamage, SetCritChance,
	SetTenacity, SetOffense, SetPotency, SetSpeed,
}

// Index returns the position of the tag in AllSets.
func (t SetTag) Index() (int, bool) {
	for i, tag := range AllSets {
		if tag == t {
			return i, true
		}
	}
	return -1, false
}

// Valid reports whether t is a known set tag.
func (t SetTag) Valid() bool {
	_, ok := t.Index()
	return ok
}

const (
	MinDots        = 1
	MaxDots        = 6
	MinLevel       = 1
	MaxLevel       = 15
	MaxSecondaries = 4
)

// Mod is an equippable modifier item.
//
// Mods are immutable inputs to a planning pass: the planner never changes
// them, it only decides where each one goes.
type Mod struct {
	ID          ModID           `yaml:"id" json:"id"`
	Shape       Shape           `yaml:"shape" json:"shape"`
	Set         SetTag          `yaml:"set" json:"set"`
	Dots        int             `yaml:"dots" json:"dots"`
	Level       int             `yaml:"level" json:"level"`
	Primary     Stat            `yaml:"primary" json:"primary"`
	Secondaries []SecondaryStat `yaml:"secondaries,omitempty" json:"secondaries,omitempty"`
}

// Validate checks the structural invariants of a mod. Unknown secondary stat
// types are not an error: the scoring engine gives them zero weight.
func (m Mod) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("mod has empty id")
	}
	if !m.Shape.Valid() {
		return fmt.Errorf("mod %s: unknown shape %q", m.ID, m.Shape)
	}
	if !m.Set.Valid() {
		return fmt.Errorf("mod %s: unknown set %q", m.ID, m.Set)
	}
	if m.Dots < MinDots || m.Dots > MaxDots {
		return fmt.Errorf("mod %s: dots must be in [%d, %d], got %d", m.ID, MinDots, MaxDots, m.Dots)
	}
	if m.Level < MinLevel || m.Level > MaxLevel {
		return fmt.Errorf("mod %s: level must be in [%d, %d], got %d", m.ID, MinLevel, MaxLevel, m.Level)
	}
	if len(m.Secondaries) > MaxSecondaries {
		return fmt.Errorf("mod %s: at most %d secondaries, got %d", m.ID, MaxSecondaries, len(m.Secondaries))
	}
	return nil
}

// Clone returns a deep copy of the mod.
func (m Mod) Clone() Mod {
	m.Secondaries = slices.Clone(m.Secondaries)
	return m
}

// SlotIndex returns the canonical slot index for the mod's shape, or -1.
func (m Mod) SlotIndex() int {
	i, _ := m.Shape.Index()
	return i
}
