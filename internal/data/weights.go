package data

import "github.com/udisondev/modplanner/internal/model"

// BasicWeights are the -100..100 sliders of the basic target form. Defense
// covers armor and resistance together.
type BasicWeights struct {
	Health     float64 `yaml:"health"`
	Protection float64 `yaml:"protection"`
	Speed      float64 `yaml:"speed"`
	CritDamage float64 `yaml:"critDmg"`
	Potency    float64 `yaml:"potency"`
	Tenacity   float64 `yaml:"tenacity"`
	PhysDamage float64 `yaml:"physDmg"`
	SpecDamage float64 `yaml:"specDmg"`
	CritChance float64 `yaml:"critChance"`
	Defense    float64 `yaml:"defense"`
	Accuracy   float64 `yaml:"accuracy"`
	CritAvoid  float64 `yaml:"critAvoid"`
}

// WeightsFromBasic converts basic-form points into per-unit weights.
// Defense is split evenly between armor and resistance.
func (c *Catalog) WeightsFromBasic(b BasicWeights) model.Vector {
	points := model.Vector{
		model.DimHealth:        b.Health,
		model.DimProtection:    b.Protection,
		model.DimSpeed:         b.Speed,
		model.DimCritChance:    b.CritChance,
		model.DimCritDamage:    b.CritDamage,
		model.DimPotency:       b.Potency,
		model.DimTenacity:      b.Tenacity,
		model.DimPhysDamage:    b.PhysDamage,
		model.DimSpecDamage:    b.SpecDamage,
		model.DimArmor:         b.Defense / 2,
		model.DimResistance:    b.Defense / 2,
		model.DimAccuracy:      b.Accuracy,
		model.DimCritAvoidance: b.CritAvoid,
	}
	return c.WeightsFromPoints(points)
}

// WeightsFromPoints converts a vector of basic-form points (one per
// dimension, as the advanced form stores them) into per-unit weights.
func (c *Catalog) WeightsFromPoints(points model.Vector) model.Vector {
	var w model.Vector
	for d := range points {
		w[d] = points[d] / c.statWeights[d]
	}
	return w
}

// PointsFromWeights is the inverse of WeightsFromPoints.
func (c *Catalog) PointsFromWeights(w model.Vector) model.Vector {
	var points model.Vector
	for d := range w {
		points[d] = w[d] * c.statWeights[d]
	}
	return points
}
