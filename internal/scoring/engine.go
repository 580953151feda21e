// Package scoring turns mod stats into a scalar value against a target's
// weight vector.
//
// Resolution happens in two steps. Effective applies the virtual upgrades a
// character or target asks for (level 15, slice to 6E) using the catalog's
// progression tables. Resolve then maps every stat onto the target's
// dimensions, converting percentage-of-base stats through the character's
// base stats. The score is the dot product of the resolved vector and the
// weights.
package scoring

import (
	"github.com/udisondev/modplanner/internal/data"
	"github.com/udisondev/modplanner/internal/model"
)

// Profile is everything about a character and its target that affects how a
// single mod scores.
type Profile struct {
	Weights model.Vector
	Base    model.BaseStats
	Upgrade bool // virtually level every mod to 15
	Slice   bool // treat 5-dot mods as 6E
}

// Engine is the stat score engine. It is safe for concurrent use.
type Engine struct {
	cat *data.Catalog
}

// NewEngine creates an engine backed by the catalog.
func NewEngine(cat *data.Catalog) *Engine {
	return &Engine{cat: cat}
}

// Catalog returns the catalog the engine reads.
func (e *Engine) Catalog() *data.Catalog {
	return e.cat
}

// NewProfile builds the scoring profile for a character and target.
func (e *Engine) NewProfile(c model.CharacterState, t model.OptimizationTarget) Profile {
	base := e.cat.DefaultBaseStats()
	if c.BaseStats != nil {
		base = *c.BaseStats
	}
	return Profile{
		Weights: t.Weights,
		Base:    base,
		Upgrade: t.UpgradeMods,
		Slice:   c.SliceMods,
	}
}

// Effective is a mod after virtual upgrades.
type Effective struct {
	Dots  int
	Level int
	Stats []model.Stat // primary first, then secondaries in order
}

// Effective applies the profile's virtual upgrades to a mod.
//
// Slicing only applies to 5-dot mods and implies level 15, since a mod has
// to be maxed before it can be sliced. Upgrading raises the primary to the
// rarity's level 15 value and credits every secondary roll the mod has not
// gained yet (see pendingRolls) at the catalog's fixed per-rarity value.
// Slice multipliers apply after the rolls.
func (e *Engine) Effective(p Profile, m model.Mod) Effective {
	eff := Effective{
		Dots:  m.Dots,
		Level: m.Level,
		Stats: make([]model.Stat, 0, 1+len(m.Secondaries)),
	}
	primary := m.Primary

	sliced := p.Slice && m.Dots == 5
	if sliced {
		eff.Dots = 6
	}
	var gains []int
	if sliced || (p.Upgrade && m.Level < model.MaxLevel) {
		eff.Level = model.MaxLevel
		if v, ok := e.cat.PrimaryMax(eff.Dots, primary.Type); ok {
			primary.Value = v
		}
		gains = pendingRolls(m)
	}
	eff.Stats = append(eff.Stats, primary)

	for i, s := range m.Secondaries {
		st := s.Stat()
		if gains != nil && gains[i] > 0 {
			if v, ok := e.cat.SecondaryRoll(m.Dots, st.Type); ok {
				st.Value += float64(gains[i]) * v
			}
		}
		if sliced {
			st.Value *= e.cat.SliceMultiplier(st.Type)
		}
		eff.Stats = append(eff.Stats, st)
	}
	return eff
}

// rollLevels are the levels at which a mod reveals a hidden secondary or,
// once all four are revealed, adds a roll to one of them.
var rollLevels = [...]int{3, 6, 9, 12}

// maxRolls caps the rolls of one secondary: the roll it is revealed with
// plus one per roll level.
const maxRolls = 1 + len(rollLevels)

// pendingRolls returns, per secondary, how many rolls the mod gains on the
// way to level 15. Roll levels still ahead first reveal the missing
// secondaries, whose stats are unknown and score nothing. Each remaining
// roll goes to the secondary with the fewest rolls, earliest first. Returns
// nil when no roll is pending.
func pendingRolls(m model.Mod) []int {
	pending := 0
	for _, lvl := range rollLevels {
		if m.Level < lvl {
			pending++
		}
	}
	pending -= model.MaxSecondaries - len(m.Secondaries)
	if pending <= 0 {
		return nil
	}

	gains := make([]int, len(m.Secondaries))
	for ; pending > 0; pending-- {
		next := -1
		for i, s := range m.Secondaries {
			if s.Rolls+gains[i] >= maxRolls {
				continue
			}
			if next < 0 || s.Rolls+gains[i] < m.Secondaries[next].Rolls+gains[next] {
				next = i
			}
		}
		if next < 0 {
			break
		}
		gains[next]++
	}
	return gains
}

// EffectiveLevel returns the mod's level after virtual upgrades.
func (e *Engine) EffectiveLevel(p Profile, m model.Mod) int {
	if (p.Slice && m.Dots == 5) || p.Upgrade {
		return model.MaxLevel
	}
	return m.Level
}

// Resolve maps stats onto dimensions. Unknown stat types contribute nothing.
func Resolve(stats []model.Stat, base model.BaseStats) model.Vector {
	var v model.Vector
	for _, s := range stats {
		resolveInto(&v, s, base)
	}
	return v
}

func resolveInto(v *model.Vector, s model.Stat, base model.BaseStats) {
	pct := s.Value / 100
	switch s.Type {
	case model.StatHealth:
		v[model.DimHealth] += s.Value
	case model.StatHealthPct:
		v[model.DimHealth] += base.Health * pct
	case model.StatProtection:
		v[model.DimProtection] += s.Value
	case model.StatProtectionPct:
		v[model.DimProtection] += base.Protection * pct
	case model.StatOffense:
		v[model.DimPhysDamage] += s.Value
		v[model.DimSpecDamage] += s.Value
	case model.StatOffensePct:
		v[model.DimPhysDamage] += base.PhysDamage * pct
		v[model.DimSpecDamage] += base.SpecDamage * pct
	case model.StatDefense:
		v[model.DimArmor] += s.Value
		v[model.DimResistance] += s.Value
	case model.StatDefensePct:
		v[model.DimArmor] += base.Armor * pct
		v[model.DimResistance] += base.Resistance * pct
	case model.StatSpeed:
		v[model.DimSpeed] += s.Value
	case model.StatSpeedPct:
		v[model.DimSpeed] += base.Speed * pct
	case model.StatCritChancePct:
		v[model.DimCritChance] += s.Value
	case model.StatCritDamagePct:
		v[model.DimCritDamage] += s.Value
	case model.StatPotencyPct:
		v[model.DimPotency] += s.Value
	case model.StatTenacityPct:
		v[model.DimTenacity] += s.Value
	case model.StatAccuracyPct:
		v[model.DimAccuracy] += s.Value
	case model.StatCritAvoidancePct:
		v[model.DimCritAvoidance] += s.Value
	}
}

// Score is the contract of the engine: sum over every dimension the stats
// touch of value × weight.
func Score(stats []model.Stat, p Profile) float64 {
	return Resolve(stats, p.Base).Dot(p.Weights)
}

// StatScore scores a single stat, used for set bonuses.
func StatScore(s model.Stat, p Profile) float64 {
	var v model.Vector
	resolveInto(&v, s, p.Base)
	return v.Dot(p.Weights)
}

// ModScore is the standalone value of a mod for a profile.
func (e *Engine) ModScore(p Profile, m model.Mod) float64 {
	return Score(e.Effective(p, m).Stats, p)
}
