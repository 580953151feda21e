package testutil

import (
	"fmt"
	"math/rand/v2"

	"github.com/udisondev/modplanner/internal/model"
)

// Mod builds a maxed 5-dot mod.
func Mod(id model.ModID, shape model.Shape, set model.SetTag, primary model.Stat, secondaries ...model.SecondaryStat) model.Mod {
	return model.Mod{
		ID:          id,
		Shape:       shape,
		Set:         set,
		Dots:        5,
		Level:       model.MaxLevel,
		Primary:     primary,
		Secondaries: secondaries,
	}
}

// Target builds a target with the given per-dimension weights.
func Target(name string, weights map[model.Dimension]float64) model.OptimizationTarget {
	t := model.OptimizationTarget{Name: name}
	for d, w := range weights {
		t.Weights[d] = w
	}
	return t
}

// Character builds a selected character whose active target is t.
func Character(id model.CharacterID, t model.OptimizationTarget, equipped ...model.ModID) model.CharacterState {
	return model.CharacterState{
		ID:           id,
		Equipped:     equipped,
		Selected:     true,
		ActiveTarget: t.Name,
		Targets:      []model.OptimizationTarget{t},
	}
}

// Primaries offered per shape by RandomPool.
var primaries = map[model.Shape][]model.StatType{
	model.ShapeSquare:   {model.StatOffensePct},
	model.ShapeArrow:    {model.StatSpeed, model.StatOffensePct, model.StatHealthPct, model.StatAccuracyPct},
	model.ShapeDiamond:  {model.StatDefensePct},
	model.ShapeTriangle: {model.StatCritDamagePct, model.StatCritChancePct, model.StatOffensePct, model.StatHealthPct},
	model.ShapeCircle:   {model.StatHealthPct, model.StatProtectionPct},
	model.ShapeCross:    {model.StatPotencyPct, model.StatTenacityPct, model.StatOffensePct, model.StatProtectionPct},
}

var secondaryTypes = []model.StatType{
	model.StatSpeed, model.StatOffense, model.StatOffensePct, model.StatHealth,
	model.StatHealthPct, model.StatProtection, model.StatDefensePct,
	model.StatCritChancePct, model.StatPotencyPct, model.StatTenacityPct,
}

// RandomPool generates n valid mods from a seed. The same seed always gives
// the same pool.
func RandomPool(seed uint64, n int) []model.Mod {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pool := make([]model.Mod, n)
	for i := range pool {
		shape := model.AllShapes[r.IntN(model.NumShapes)]
		opts := primaries[shape]
		m := model.Mod{
			ID:      model.ModID(fmt.Sprintf("m%03d", i)),
			Shape:   shape,
			Set:     model.AllSets[r.IntN(model.NumSets)],
			Dots:    4 + r.IntN(3),
			Level:   []int{1, 9, 15, 15}[r.IntN(4)],
			Primary: model.Stat{Type: opts[r.IntN(len(opts))], Value: 1 + float64(r.IntN(30))},
		}
		for _, j := range r.Perm(len(secondaryTypes))[:r.IntN(model.MaxSecondaries+1)] {
			rolls := 1 + r.IntN(5)
			m.Secondaries = append(m.Secondaries, model.SecondaryStat{
				Type:  secondaryTypes[j],
				Value: float64(rolls) * (0.5 + r.Float64()*2),
				Rolls: rolls,
			})
		}
		pool[i] = m
	}
	return pool
}

// RandomTarget generates a target with a handful of weighted dimensions,
// some of them negative.
func RandomTarget(seed uint64) model.OptimizationTarget {
	r := rand.New(rand.NewPCG(seed, seed+1))
	t := model.OptimizationTarget{Name: fmt.Sprintf("random-%d", seed)}
	for _, d := range r.Perm(int(model.NumDimensions))[:2+r.IntN(4)] {
		t.Weights[d] = r.Float64()*2 - 0.5
	}
	t.UpgradeMods = r.IntN(2) == 0
	if r.IntN(3) == 0 {
		t.IncludeSets = map[model.SetTag]bool{model.AllSets[r.IntN(model.NumSets)]: false}
	}
	return t
}
