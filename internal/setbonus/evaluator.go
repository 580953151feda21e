// Package setbonus evaluates mod set completion bonuses.
//
// The bonus of a loadout depends on how many mods of each set it holds, so it
// cannot be split into per-slot values. Table precomputes the score of every
// set's small and max bonus for one profile; the search then only needs a
// Tally of set counts to value any combination.
package setbonus

import (
	"github.com/udisondev/modplanner/internal/data"
	"github.com/udisondev/modplanner/internal/model"
	"github.com/udisondev/modplanner/internal/scoring"
)

// Tally counts mods per set (indexed like model.AllSets). Maxed counts the
// ones that are level 15 after virtual upgrades.
type Tally struct {
	Count [model.NumSets]uint8
	Maxed [model.NumSets]uint8
}

// Add records one mod.
func (t *Tally) Add(set int, maxed bool) {
	t.Count[set]++
	if maxed {
		t.Maxed[set]++
	}
}

// Remove undoes Add.
func (t *Tally) Remove(set int, maxed bool) {
	t.Count[set]--
	if maxed {
		t.Maxed[set]--
	}
}

// Table holds per-set bonus scores for one profile and target.
type Table struct {
	threshold [model.NumSets]int
	small     [model.NumSets]float64
	max       [model.NumSets]float64
	included  [model.NumSets]bool
}

// NewTable scores every set bonus for the profile. Sets the target excludes
// are kept in the table but never contribute.
func NewTable(cat *data.Catalog, p scoring.Profile, t model.OptimizationTarget) *Table {
	tb := &Table{}
	for i, tag := range model.AllSets {
		def := cat.SetAt(i)
		tb.threshold[i] = def.Threshold
		tb.small[i] = scoring.StatScore(def.Small, p)
		tb.max[i] = scoring.StatScore(def.Max, p)
		tb.included[i] = t.IncludesSet(tag)
	}
	return tb
}

// Completions returns how many times a set is completed and how many of
// those completions consist only of maxed mods.
func (tb *Table) Completions(set int, count, maxed int) (total, full int) {
	th := tb.threshold[set]
	total = count / th
	full = min(maxed/th, total)
	return total, full
}

// Bonus returns the set bonus score of a tally.
func (tb *Table) Bonus(t Tally) float64 {
	var sum float64
	for i := range t.Count {
		if !tb.included[i] || t.Count[i] == 0 {
			continue
		}
		total, full := tb.Completions(i, int(t.Count[i]), int(t.Maxed[i]))
		sum += float64(full)*tb.max[i] + float64(total-full)*tb.small[i]
	}
	return sum
}

// best is the most a single completion of a set can be worth.
func (tb *Table) best(set int) float64 {
	return max(tb.small[set], tb.max[set])
}

// Bound is an admissible upper bound on the final bonus when up to remaining
// more mods are added to the tally. It ignores which mods actually exist and
// assumes every completion gets its better bonus, so it never underestimates.
func (tb *Table) Bound(t Tally, remaining int) float64 {
	// f[r] = best bonus over sets processed so far using at most r extra mods.
	var f [model.NumShapes + 1]float64
	for i := range t.Count {
		var next [model.NumShapes + 1]float64
		for r := 0; r <= remaining; r++ {
			bestVal := f[r] + tb.setValue(i, int(t.Count[i]))
			for k := 1; k <= r; k++ {
				if v := f[r-k] + tb.setValue(i, int(t.Count[i])+k); v > bestVal {
					bestVal = v
				}
			}
			next[r] = bestVal
		}
		f = next
	}
	return f[remaining]
}

func (tb *Table) setValue(set, count int) float64 {
	if !tb.included[set] {
		return 0
	}
	return float64(count/tb.threshold[set]) * tb.best(set)
}

// Result is the evaluated set bonus of a concrete loadout.
type Result struct {
	Total     float64
	Completed map[model.SetTag]int // completions per set, included or not
}

// Evaluator is the stand-alone form used outside the search: given the mods
// of a loadout it returns the set bonus.
type Evaluator struct {
	cat    *data.Catalog
	engine *scoring.Engine
}

// NewEvaluator creates an evaluator.
func NewEvaluator(engine *scoring.Engine) *Evaluator {
	return &Evaluator{cat: engine.Catalog(), engine: engine}
}

// TallyOf counts the mods of a loadout. Mods with an unknown set are ignored.
func (ev *Evaluator) TallyOf(p scoring.Profile, mods []model.Mod) Tally {
	var t Tally
	for _, m := range mods {
		idx, ok := m.Set.Index()
		if !ok {
			continue
		}
		t.Add(idx, ev.engine.EffectiveLevel(p, m) == model.MaxLevel)
	}
	return t
}

// Evaluate returns the set bonus of up to six mods for a target.
func (ev *Evaluator) Evaluate(p scoring.Profile, target model.OptimizationTarget, mods []model.Mod) Result {
	tb := NewTable(ev.cat, p, target)
	t := ev.TallyOf(p, mods)

	res := Result{Total: tb.Bonus(t), Completed: make(map[model.SetTag]int)}
	for i, tag := range model.AllSets {
		if total, _ := tb.Completions(i, int(t.Count[i]), int(t.Maxed[i])); total > 0 {
			res.Completed[tag] = total
		}
	}
	return res
}
