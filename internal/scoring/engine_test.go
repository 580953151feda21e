package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/modplanner/internal/data"
	"github.com/udisondev/modplanner/internal/model"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	cat, err := data.DefaultCatalog()
	require.NoError(t, err)
	return NewEngine(cat)
}

func speedMod() model.Mod {
	return model.Mod{
		ID:      "arrow-1",
		Shape:   model.ShapeArrow,
		Set:     model.SetSpeed,
		Dots:    5,
		Level:   12,
		Primary: model.Stat{Type: model.StatSpeed, Value: 20},
		Secondaries: []model.SecondaryStat{
			{Type: model.StatOffensePct, Value: 1, Rolls: 1},
			{Type: model.StatPotencyPct, Value: 2, Rolls: 1},
			{Type: "Luck", Value: 1000, Rolls: 5},
		},
	}
}

func TestScoreIsWeightedSum(t *testing.T) {
	t.Parallel()

	var w model.Vector
	w[model.DimSpeed] = 5
	w[model.DimPotency] = 1
	w[model.DimPhysDamage] = 0.1
	base := model.BaseStats{PhysDamage: 1000, SpecDamage: 2000}
	p := Profile{Weights: w, Base: base}

	e := newEngine(t)
	got := e.ModScore(p, speedMod())

	// speed 20*5 + potency 2*1 + offense 1% of 1000 phys * 0.1; unknown stats score zero
	assert.InDelta(t, 100+2+1, got, 1e-9)
}

func TestResolvePercentStats(t *testing.T) {
	t.Parallel()

	base := model.BaseStats{
		Health: 10000, Protection: 20000, Speed: 100,
		PhysDamage: 1000, SpecDamage: 500, Armor: 200, Resistance: 100,
	}

	tests := []struct {
		stat model.Stat
		want model.Vector
	}{
		{model.Stat{Type: model.StatHealthPct, Value: 10}, model.Vector{model.DimHealth: 1000}},
		{model.Stat{Type: model.StatProtectionPct, Value: 5}, model.Vector{model.DimProtection: 1000}},
		{model.Stat{Type: model.StatSpeedPct, Value: 10}, model.Vector{model.DimSpeed: 10}},
		{model.Stat{Type: model.StatOffensePct, Value: 10}, model.Vector{model.DimPhysDamage: 100, model.DimSpecDamage: 50}},
		{model.Stat{Type: model.StatDefensePct, Value: 50}, model.Vector{model.DimArmor: 100, model.DimResistance: 50}},
		{model.Stat{Type: model.StatOffense, Value: 40}, model.Vector{model.DimPhysDamage: 40, model.DimSpecDamage: 40}},
		{model.Stat{Type: model.StatDefense, Value: 8}, model.Vector{model.DimArmor: 8, model.DimResistance: 8}},
		{model.Stat{Type: model.StatCritAvoidancePct, Value: 3}, model.Vector{model.DimCritAvoidance: 3}},
	}
	for _, tt := range tests {
		t.Run(string(tt.stat.Type), func(t *testing.T) {
			t.Parallel()
			got := Resolve([]model.Stat{tt.stat}, base)
			for d := range got {
				assert.InDelta(t, tt.want[d], got[d], 1e-9, model.Dimension(d).String())
			}
		})
	}
}

func TestEffectiveUpgrade(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	m := speedMod()

	eff := e.Effective(Profile{}, m)
	assert.Equal(t, 12, eff.Level)
	assert.Equal(t, 20.0, eff.Stats[0].Value)

	eff = e.Effective(Profile{Upgrade: true}, m)
	assert.Equal(t, model.MaxLevel, eff.Level)
	assert.Equal(t, 5, eff.Dots)
	assert.Equal(t, 30.0, eff.Stats[0].Value, "5-dot speed arrow maxes at 30")
	assert.Equal(t, 1.0, eff.Stats[1].Value, "no rolls are left after level 12")
	assert.Equal(t, model.MaxLevel, e.EffectiveLevel(Profile{Upgrade: true}, m))
}

func TestEffectiveUpgradeAddsRolls(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	roll := func(dots int, stat model.StatType) float64 {
		v, ok := e.Catalog().SecondaryRoll(dots, stat)
		require.True(t, ok, stat)
		return v
	}
	sec := func(stat model.StatType, v float64, rolls int) model.SecondaryStat {
		return model.SecondaryStat{Type: stat, Value: v, Rolls: rolls}
	}
	four := []model.SecondaryStat{
		sec(model.StatSpeed, 3, 1),
		sec(model.StatOffensePct, 0.5, 1),
		sec(model.StatPotencyPct, 1.5, 2),
		sec(model.StatHealth, 300, 1),
	}

	tests := []struct {
		name    string
		profile Profile
		level   int
		secs    []model.SecondaryStat
		gains   []int
	}{
		{"level 1 spreads four rolls over the fewest-rolled", Profile{Upgrade: true}, 1, four, []int{2, 1, 0, 1}},
		{"hidden secondaries take the first roll levels", Profile{Upgrade: true}, 4, four[:2], []int{1, 0}},
		{"level 9 only reveals the last secondary", Profile{Upgrade: true}, 9, four[:3], []int{0, 0, 0}},
		{"maxed secondaries take no more rolls", Profile{Upgrade: true}, 1, []model.SecondaryStat{
			sec(model.StatSpeed, 20, 5),
			sec(model.StatHealth, 1500, 5),
			sec(model.StatPotencyPct, 8, 5),
			sec(model.StatOffensePct, 1, 4),
		}, []int{0, 0, 0, 1}},
		{"already level 15", Profile{Upgrade: true}, 15, four, []int{0, 0, 0, 0}},
		{"no upgrade requested", Profile{}, 1, four, []int{0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := model.Mod{
				ID: "sq", Shape: model.ShapeSquare, Set: model.SetSpeed, Dots: 5, Level: tt.level,
				Primary:     model.Stat{Type: model.StatOffensePct, Value: 1},
				Secondaries: tt.secs,
			}
			eff := e.Effective(tt.profile, m)
			require.Len(t, eff.Stats, 1+len(tt.secs))
			for i, s := range tt.secs {
				want := s.Value + float64(tt.gains[i])*roll(5, s.Type)
				assert.InDelta(t, want, eff.Stats[1+i].Value, 1e-9, s.Type)
			}
		})
	}
}

func TestUpgradeScoresPendingRolls(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	var w model.Vector
	w[model.DimSpeed] = 1
	p := Profile{Weights: w, Base: model.BaseStats{}}

	fresh := model.Mod{
		ID: "fresh", Shape: model.ShapeSquare, Set: model.SetSpeed, Dots: 5, Level: 1,
		Primary:     model.Stat{Type: model.StatOffensePct, Value: 1},
		Secondaries: []model.SecondaryStat{{Type: model.StatSpeed, Value: 3, Rolls: 1}},
	}
	maxed := fresh.Clone()
	maxed.ID, maxed.Level = "maxed", model.MaxLevel

	assert.InDelta(t, 3, e.ModScore(p, fresh), 1e-9)
	assert.InDelta(t, 3, e.ModScore(p, maxed), 1e-9)

	// Three roll levels reveal hidden secondaries, the fourth rolls into speed.
	p.Upgrade = true
	assert.InDelta(t, 3+4.5, e.ModScore(p, fresh), 1e-9)
	assert.InDelta(t, 3, e.ModScore(p, maxed), 1e-9)
}

func TestSliceAppliesAfterPendingRolls(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	m := model.Mod{
		ID: "sq", Shape: model.ShapeSquare, Set: model.SetOffense, Dots: 5, Level: 9,
		Primary: model.Stat{Type: model.StatOffensePct, Value: 1},
		Secondaries: []model.SecondaryStat{
			{Type: model.StatSpeed, Value: 8, Rolls: 2},
			{Type: model.StatOffensePct, Value: 0.5, Rolls: 1},
			{Type: model.StatHealth, Value: 600, Rolls: 2},
			{Type: model.StatPotencyPct, Value: 3, Rolls: 2},
		},
	}

	eff := e.Effective(Profile{Slice: true}, m)
	roll, ok := e.Catalog().SecondaryRoll(5, model.StatOffensePct)
	require.True(t, ok)
	assert.InDelta(t, (0.5+roll)*3.02, eff.Stats[2].Value, 1e-9, "level 12 roll, then the 6E multiplier")
	assert.InDelta(t, 8.0, eff.Stats[1].Value, 1e-9)
	assert.InDelta(t, 600*1.26, eff.Stats[3].Value, 1e-9)
}

func TestEffectiveSlice(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	m := speedMod()

	eff := e.Effective(Profile{Slice: true}, m)
	assert.Equal(t, 6, eff.Dots)
	assert.Equal(t, model.MaxLevel, eff.Level)
	assert.Equal(t, 32.0, eff.Stats[0].Value)
	assert.InDelta(t, 3.02, eff.Stats[1].Value, 1e-12)
	assert.InDelta(t, 2.66, eff.Stats[2].Value, 1e-12)
	assert.Equal(t, model.MaxLevel, e.EffectiveLevel(Profile{Slice: true}, m))

	six := m.Clone()
	six.Dots = 6
	eff = e.Effective(Profile{Slice: true}, six)
	assert.Equal(t, 12, eff.Level, "only 5-dot mods are sliced")
	assert.Equal(t, 20.0, eff.Stats[0].Value)

	assert.Equal(t, 1.0, m.Secondaries[0].Value, "input mod is not mutated")
}

func TestNewProfileUsesCatalogBaseStats(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	tgt := model.OptimizationTarget{Name: "x", UpgradeMods: true}

	p := e.NewProfile(model.CharacterState{ID: "A", SliceMods: true}, tgt)
	assert.Equal(t, e.Catalog().DefaultBaseStats(), p.Base)
	assert.True(t, p.Upgrade)
	assert.True(t, p.Slice)

	own := model.BaseStats{Health: 1}
	p = e.NewProfile(model.CharacterState{ID: "B", BaseStats: &own}, tgt)
	assert.Equal(t, own, p.Base)
}
