package model

import (
	"errors"
	"fmt"
	"slices"
)

// Target list errors.
var (
	ErrTargetNotFound  = errors.New("target not found")
	ErrNoActiveTarget  = errors.New("character has no active target")
	ErrNotDeletable    = errors.New("only user-defined targets can be deleted")
	ErrTooManyTargets  = errors.New("too many targets")
	ErrNoDefaultTarget = errors.New("target has no default to reset to")
)

// MaxTargets caps the number of named targets a character keeps.
const MaxTargets = 16

// CharacterID — базовый идентификатор персонажа (например, "DARTHTRAYA").
type CharacterID string

// BaseStats are the character's unmodded stats, used to turn percentage
// stats into flat values.
type BaseStats struct {
	Health     float64 `yaml:"health" json:"health"`
	Protection float64 `yaml:"protection" json:"protection"`
	Speed      float64 `yaml:"speed" json:"speed"`
	PhysDamage float64 `yaml:"phys_damage" json:"phys_damage"`
	SpecDamage float64 `yaml:"spec_damage" json:"spec_damage"`
	Armor      float64 `yaml:"armor" json:"armor"`
	Resistance float64 `yaml:"resistance" json:"resistance"`
}

// CharacterState is a roster entry as seen by one planning pass.
//
// Equipped lists the IDs of mods currently worn, in any order.
// DefaultTargets are the presets shipped with the character; Targets holds
// the user's saved targets (which may shadow a default by name).
type CharacterState struct {
	ID             CharacterID          `yaml:"id" json:"id"`
	Equipped       []ModID              `yaml:"equipped,omitempty" json:"equipped,omitempty"`
	MinimumDots    int                  `yaml:"minimum_dots" json:"minimum_dots"`
	SliceMods      bool                 `yaml:"slice_mods" json:"slice_mods"`
	Locked         bool                 `yaml:"locked" json:"locked"`
	Selected       bool                 `yaml:"selected" json:"selected"`
	ActiveTarget   string               `yaml:"active_target" json:"active_target"`
	Targets        []OptimizationTarget `yaml:"targets,omitempty" json:"targets,omitempty"`
	DefaultTargets []OptimizationTarget `yaml:"default_targets,omitempty" json:"default_targets,omitempty"`
	BaseStats      *BaseStats           `yaml:"base_stats,omitempty" json:"base_stats,omitempty"`
}

// Active returns the character's active target. Saved targets shadow
// defaults with the same name.
func (c CharacterState) Active() (OptimizationTarget, error) {
	name := c.ActiveTarget
	if name == "" {
		switch {
		case len(c.Targets) > 0:
			return c.Targets[0], nil
		case len(c.DefaultTargets) > 0:
			return c.DefaultTargets[0], nil
		default:
			return OptimizationTarget{}, fmt.Errorf("%s: %w", c.ID, ErrNoActiveTarget)
		}
	}
	if t, ok := c.target(name); ok {
		return t, nil
	}
	return OptimizationTarget{}, fmt.Errorf("%s: %w: %q", c.ID, ErrTargetNotFound, name)
}

func (c CharacterState) target(name string) (OptimizationTarget, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	for _, t := range c.DefaultTargets {
		if t.Name == name {
			return t, true
		}
	}
	return OptimizationTarget{}, false
}

func (c CharacterState) defaultTarget(name string) (OptimizationTarget, bool) {
	for _, t := range c.DefaultTargets {
		if t.Name == name {
			return t, true
		}
	}
	return OptimizationTarget{}, false
}

// TargetKind classifies a target name for this character.
func (c CharacterState) TargetKind(name string) TargetKind {
	if name == CustomTargetName {
		return TargetCustom
	}
	if _, ok := c.defaultTarget(name); ok {
		return TargetDefault
	}
	return TargetUser
}

// MatchesDefault reports whether the saved target with this name still has
// the same content as the shipped default.
func (c CharacterState) MatchesDefault(name string) bool {
	def, ok := c.defaultTarget(name)
	if !ok {
		return false
	}
	t, ok := c.target(name)
	return ok && t.Equals(def)
}

// Clone returns a deep copy of the character state.
func (c CharacterState) Clone() CharacterState {
	c.Equipped = slices.Clone(c.Equipped)
	c.Targets = cloneTargets(c.Targets)
	c.DefaultTargets = cloneTargets(c.DefaultTargets)
	if c.BaseStats != nil {
		b := *c.BaseStats
		c.BaseStats = &b
	}
	return c
}

func cloneTargets(ts []OptimizationTarget) []OptimizationTarget {
	if ts == nil {
		return nil
	}
	out := make([]OptimizationTarget, len(ts))
	for i, t := range ts {
		out[i] = t.Clone()
	}
	return out
}

// WithTarget saves an edited target and makes it active. A target named
// "lock" is stored as the custom target. Editing a target unlocks the
// character.
func (c CharacterState) WithTarget(t OptimizationTarget) (CharacterState, error) {
	t = t.Clone()
	t.Name = normalizedName(t.Name)
	if t.Name == "" {
		return c, ErrEmptyName
	}

	out := c.Clone()
	idx := slices.IndexFunc(out.Targets, func(x OptimizationTarget) bool { return x.Name == t.Name })
	if idx >= 0 {
		out.Targets[idx] = t
	} else {
		if len(out.Targets) >= MaxTargets {
			return c, fmt.Errorf("%s: %w (max %d)", c.ID, ErrTooManyTargets, MaxTargets)
		}
		out.Targets = append(out.Targets, t)
	}
	out.ActiveTarget = t.Name
	out.Locked = false
	return out, nil
}

// ResetTargetToDefault drops the saved override for a default target.
func (c CharacterState) ResetTargetToDefault(name string) (CharacterState, error) {
	if _, ok := c.defaultTarget(name); !ok {
		return c, fmt.Errorf("%s: %w: %q", c.ID, ErrNoDefaultTarget, name)
	}
	out := c.Clone()
	out.Targets = slices.DeleteFunc(out.Targets, func(x OptimizationTarget) bool { return x.Name == name })
	out.ActiveTarget = name
	return out, nil
}

// DeleteTarget removes a user-defined target. Defaults and the custom target
// cannot be deleted. If the deleted target was active, the first remaining
// target becomes active.
func (c CharacterState) DeleteTarget(name string) (CharacterState, error) {
	if c.TargetKind(name) != TargetUser {
		return c, fmt.Errorf("%s: %w: %q", c.ID, ErrNotDeletable, name)
	}
	if !slices.ContainsFunc(c.Targets, func(x OptimizationTarget) bool { return x.Name == name }) {
		return c, fmt.Errorf("%s: %w: %q", c.ID, ErrTargetNotFound, name)
	}
	out := c.Clone()
	out.Targets = slices.DeleteFunc(out.Targets, func(x OptimizationTarget) bool { return x.Name == name })
	if out.ActiveTarget == name {
		out.ActiveTarget = ""
		if t, err := out.Active(); err == nil {
			out.ActiveTarget = t.Name
		}
	}
	return out, nil
}
