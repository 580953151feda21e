package model

import (
	"encoding/json"
	"fmt"
	"slices"
)

// StatType — название стата так, как оно записано на моде или в бонусе сета.
type StatType string

const (
	StatHealth           StatType = "Health"
	StatHealthPct        StatType = "Health %"
	StatProtection       StatType = "Protection"
	StatProtectionPct    StatType = "Protection %"
	StatOffense          StatType = "Offense"
	StatOffensePct       StatType = "Offense %"
	StatDefense          StatType = "Defense"
	StatDefensePct       StatType = "Defense %"
	StatSpeed            StatType = "Speed"
	StatSpeedPct         StatType = "Speed %"
	StatCritChancePct    StatType = "Critical Chance %"
	StatCritDamagePct    StatType = "Critical Damage %"
	StatPotencyPct       StatType = "Potency %"
	StatTenacityPct      StatType = "Tenacity %"
	StatAccuracyPct      StatType = "Accuracy %"
	StatCritAvoidancePct StatType = "Critical Avoidance %"

	// StatAny is the primary restriction that accepts every stat.
	StatAny StatType = "Any"
)

var knownStats = []StatType{
	StatHealth, StatHealthPct,
	StatProtection, StatProtectionPct,
	StatOffense, StatOffensePct,
	StatDefense, StatDefensePct,
	StatSpeed, StatSpeedPct,
	StatCritChancePct, StatCritDamagePct,
	StatPotencyPct, StatTenacityPct,
	StatAccuracyPct, StatCritAvoidancePct,
}

// Known reports whether the stat type is one the scoring tables understand.
// StatAny is not a stat and is not known.
func (s StatType) Known() bool {
	return slices.Contains(knownStats, s)
}

// Stat is a single (type, value) pair.
type Stat struct {
	Type  StatType `yaml:"type" json:"type"`
	Value float64  `yaml:"value" json:"value"`
}

// SecondaryStat is a secondary roll on a mod.
type SecondaryStat struct {
	Type  StatType `yaml:"type" json:"type"`
	Value float64  `yaml:"value" json:"value"`
	Rolls int      `yaml:"rolls" json:"rolls"`
}

// Stat returns the secondary as a plain Stat.
func (s SecondaryStat) Stat() Stat {
	return Stat{Type: s.Type, Value: s.Value}
}

// Dimension is one axis of a target's weight vector.
type Dimension int

const (
	DimHealth Dimension = iota
	DimProtection
	DimSpeed
	DimCritChance
	DimCritDamage
	DimPotency
	DimTenacity
	DimPhysDamage
	DimSpecDamage
	DimArmor
	DimResistance
	DimAccuracy
	DimCritAvoidance

	NumDimensions
)

var dimensionNames = [NumDimensions]string{
	DimHealth:        "health",
	DimProtection:    "protection",
	DimSpeed:         "speed",
	DimCritChance:    "critChance",
	DimCritDamage:    "critDmg",
	DimPotency:       "potency",
	DimTenacity:      "tenacity",
	DimPhysDamage:    "physDmg",
	DimSpecDamage:    "specDmg",
	DimArmor:         "armor",
	DimResistance:    "resistance",
	DimAccuracy:      "accuracy",
	DimCritAvoidance: "critAvoid",
}

// String returns the weight key used in YAML and JSON documents.
func (d Dimension) String() string {
	if d < 0 || d >= NumDimensions {
		return fmt.Sprintf("Dimension(%d)", int(d))
	}
	return dimensionNames[d]
}

// ParseDimension maps a weight key back to its Dimension.
func ParseDimension(name string) (Dimension, bool) {
	for d, n := range dimensionNames {
		if n == name {
			return Dimension(d), true
		}
	}
	return 0, false
}

// Vector holds one value per Dimension.
type Vector [NumDimensions]float64

// Dot returns the weighted sum of v by w.
func (v Vector) Dot(w Vector) float64 {
	var sum float64
	for i := range v {
		sum += v[i] * w[i]
	}
	return sum
}

// Add accumulates o into v.
func (v *Vector) Add(o Vector) {
	for i := range v {
		v[i] += o[i]
	}
}

// toMap drops zero entries so documents stay short.
func (v Vector) toMap() map[string]float64 {
	m := make(map[string]float64)
	for d, val := range v {
		if val != 0 {
			m[dimensionNames[d]] = val
		}
	}
	return m
}

// fromMap ignores unknown keys: a weight on an unknown dimension is treated as zero.
func (v *Vector) fromMap(m map[string]float64) {
	*v = Vector{}
	for name, val := range m {
		if d, ok := ParseDimension(name); ok {
			v[d] = val
		}
	}
}

// MarshalYAML encodes the vector as a name → weight map.
func (v Vector) MarshalYAML() (any, error) {
	return v.toMap(), nil
}

// UnmarshalYAML decodes a name → weight map.
func (v *Vector) UnmarshalYAML(unmarshal func(any) error) error {
	var m map[string]float64
	if err := unmarshal(&m); err != nil {
		return err
	}
	v.fromMap(m)
	return nil
}

// MarshalJSON encodes the vector as a name → weight object.
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toMap())
}

// UnmarshalJSON decodes a name → weight object.
func (v *Vector) UnmarshalJSON(b []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	v.fromMap(m)
	return nil
}
