package model

import (
	"errors"
	"fmt"
)

// Target validation errors. Edit forms reject such targets before they reach
// the planner; the planner itself tolerates unknown weights.
var (
	ErrUnknownStat  = errors.New("unknown stat type")
	ErrUnknownSet   = errors.New("unknown set tag")
	ErrNotSpecial   = errors.New("shape has no restrictable primary")
	ErrEmptyName    = errors.New("target name is empty")
	ErrRestrictedTo = errors.New("restriction not offered for shape")
)

// CustomTargetName is the ephemeral target that is never saved as a preset.
const CustomTargetName = "custom"

// lockTargetName is reserved; a target saved under it becomes CustomTargetName.
const lockTargetName = "lock"

// TargetKind distinguishes where a target came from.
type TargetKind int

const (
	TargetUser TargetKind = iota
	TargetDefault
	TargetCustom
)

// String returns a human-readable target kind.
func (k TargetKind) String() string {
	switch k {
	case TargetUser:
		return "user"
	case TargetDefault:
		return "default"
	case TargetCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// OptimizationTarget describes what a character's loadout should maximize.
//
// Weights are per unit of each Dimension. PrimaryRestrictions only applies to
// special shapes; a missing entry means StatAny. IncludeSets defaults to true
// for every set that is not listed.
type OptimizationTarget struct {
	Name                string             `yaml:"name" json:"name"`
	Weights             Vector             `yaml:"weights" json:"weights"`
	UpgradeMods         bool               `yaml:"upgrade_mods" json:"upgrade_mods"`
	PrimaryRestrictions map[Shape]StatType `yaml:"primary_restrictions,omitempty" json:"primary_restrictions,omitempty"`
	IncludeSets         map[SetTag]bool    `yaml:"include_sets,omitempty" json:"include_sets,omitempty"`
}

// Restriction returns the primary stat a shape is limited to, or StatAny.
func (t OptimizationTarget) Restriction(shape Shape) StatType {
	if !shape.IsSpecial() {
		return StatAny
	}
	if r, ok := t.PrimaryRestrictions[shape]; ok && r != "" {
		return r
	}
	return StatAny
}

// Allows reports whether a mod of this shape with this primary passes the restriction.
func (t OptimizationTarget) Allows(shape Shape, primary StatType) bool {
	r := t.Restriction(shape)
	return r == StatAny || r == primary
}

// IncludesSet reports whether the target counts the set's bonus.
func (t OptimizationTarget) IncludesSet(tag SetTag) bool {
	v, ok := t.IncludeSets[tag]
	return !ok || v
}

// Equals compares every weight, flag and restriction. The name is ignored:
// a user target equals its default when only the content matters.
func (t OptimizationTarget) Equals(o OptimizationTarget) bool {
	if t.Weights != o.Weights || t.UpgradeMods != o.UpgradeMods {
		return false
	}
	for _, shape := range SpecialShapes {
		if t.Restriction(shape) != o.Restriction(shape) {
			return false
		}
	}
	for _, tag := range AllSets {
		if t.IncludesSet(tag) != o.IncludesSet(tag) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the target.
func (t OptimizationTarget) Clone() OptimizationTarget {
	if t.PrimaryRestrictions != nil {
		r := make(map[Shape]StatType, len(t.PrimaryRestrictions))
		for k, v := range t.PrimaryRestrictions {
			r[k] = v
		}
		t.PrimaryRestrictions = r
	}
	if t.IncludeSets != nil {
		s := make(map[SetTag]bool, len(t.IncludeSets))
		for k, v := range t.IncludeSets {
			s[k] = v
		}
		t.IncludeSets = s
	}
	return t
}

// Validate is used by target editors. options lists the restriction values
// offered per special shape; nil skips that check.
func (t OptimizationTarget) Validate(options map[Shape][]StatType) error {
	if t.Name == "" {
		return ErrEmptyName
	}
	for shape, stat := range t.PrimaryRestrictions {
		if !shape.IsSpecial() {
			return fmt.Errorf("%w: %s", ErrNotSpecial, shape)
		}
		if stat == StatAny || stat == "" {
			continue
		}
		if !stat.Known() {
			return fmt.Errorf("%w: %q", ErrUnknownStat, stat)
		}
		if options == nil {
			continue
		}
		allowed := false
		for _, o := range options[shape] {
			if o == stat {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: %s cannot be restricted to %q", ErrRestrictedTo, shape, stat)
		}
	}
	for tag := range t.IncludeSets {
		if !tag.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownSet, tag)
		}
	}
	return nil
}

// normalizedName maps the reserved "lock" name to the custom target.
func normalizedName(name string) string {
	if name == lockTargetName {
		return CustomTargetName
	}
	return name
}
