// Package search finds the best loadout of one mod per shape for a single
// character.
//
// Set bonuses couple the slots, so the search walks joint selections with
// branch-and-bound instead of taking the best mod per slot.
//
// Candidate reduction: a mod's contribution to the set bonus depends only on
// its set and on whether it is maxed. Within one shape, a mod is therefore
// dominated by any other mod of the same (set, maxed) class with a higher
// standalone score, and only the best mod of each class can be part of an
// optimum. That leaves at most 16 candidates per shape and is exact, so no
// set-completing combination is lost. Options.CandidateCap additionally keeps
// only the top K classes by standalone score; it trades optimality for speed
// and is off by default.
//
// Bound: partial score + best standalone score of every remaining shape +
// setbonus.Table.Bound for the remaining slots. Both parts overestimate, and
// the cutoff leaves a relative 1e-9 of slack for rounding, so pruning never
// drops an optimal or tied loadout.
//
// Tie-break: totals are accumulated in canonical shape order and compared
// exactly. Among loadouts with bit-equal totals, the one whose mod IDs, read
// in canonical shape order, are lexicographically smallest wins. Totals that
// differ only by float rounding are not ties: the larger one wins whatever
// its IDs. Reduction agrees with this, since within a class it keeps the
// higher standalone score and falls back to the smaller ID only on an exact
// tie.
package search

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/modplanner/internal/model"
	"github.com/udisondev/modplanner/internal/scoring"
	"github.com/udisondev/modplanner/internal/setbonus"
)

// Options tune the search.
type Options struct {
	// Workers is the number of goroutines exploring top-level branches.
	// Values below 2 search inline.
	Workers int
	// CandidateCap keeps at most K candidates per shape after dominance
	// reduction. 0 disables the cap.
	CandidateCap int
	// Exhaustive makes Optimize enumerate every combination without
	// reduction or pruning. Only practical for small pools.
	Exhaustive bool
}

// Request is one character's search input.
type Request struct {
	Pool      []model.Mod
	Character model.CharacterState
	Target    model.OptimizationTarget
}

// Result is the best loadout found.
type Result struct {
	Loadout    model.Loadout
	Mods       []model.Mod // chosen mods in slot order
	Score      model.Score
	Shortfalls []model.Shape // shapes without any eligible mod
	Nodes      int64         // search nodes visited
}

// Optimizer is the per-character slot optimizer. It holds no per-request
// state and is safe for concurrent use.
type Optimizer struct {
	engine *scoring.Engine
	sets   *setbonus.Evaluator
	opts   Options
}

// New creates an optimizer.
func New(engine *scoring.Engine, opts Options) *Optimizer {
	return &Optimizer{
		engine: engine,
		sets:   setbonus.NewEvaluator(engine),
		opts:   opts,
	}
}

type candidate struct {
	mod   *model.Mod
	score float64
	set   int
	maxed bool
}

type prepared struct {
	profile    scoring.Profile
	table      *setbonus.Table
	levels     [][]candidate // non-empty shapes, canonical order
	slots      []int         // slot index of each level
	shortfalls []model.Shape
}

// Eligible reports whether a mod may be considered for the request at all.
func Eligible(req Request, m model.Mod) bool {
	if m.Dots < req.Character.MinimumDots {
		return false
	}
	return req.Target.Allows(m.Shape, m.Primary.Type)
}

func (o *Optimizer) prepare(req Request) prepared {
	p := prepared{
		profile: o.engine.NewProfile(req.Character, req.Target),
	}
	p.table = setbonus.NewTable(o.engine.Catalog(), p.profile, req.Target)

	var byShape [model.NumShapes][]candidate
	for i := range req.Pool {
		m := &req.Pool[i]
		slot := m.SlotIndex()
		set, ok := m.Set.Index()
		if slot < 0 || !ok || !Eligible(req, *m) {
			continue
		}
		byShape[slot] = append(byShape[slot], candidate{
			mod:   m,
			score: o.engine.ModScore(p.profile, *m),
			set:   set,
			maxed: o.engine.EffectiveLevel(p.profile, *m) == model.MaxLevel,
		})
	}

	for slot, cands := range byShape {
		if len(cands) == 0 {
			p.shortfalls = append(p.shortfalls, model.AllShapes[slot])
			continue
		}
		slices.SortFunc(cands, func(a, b candidate) int {
			if c := cmp.Compare(b.score, a.score); c != 0 {
				return c
			}
			return cmp.Compare(a.mod.ID, b.mod.ID)
		})
		p.levels = append(p.levels, cands)
		p.slots = append(p.slots, slot)
	}
	return p
}

// reduce keeps the best candidate of every (set, maxed) class. Input must be
// sorted best first.
func reduce(cands []candidate, capK int) []candidate {
	var seen [model.NumSets][2]bool
	out := make([]candidate, 0, 2*model.NumSets)
	for _, c := range cands {
		m := 0
		if c.maxed {
			m = 1
		}
		if seen[c.set][m] {
			continue
		}
		seen[c.set][m] = true
		out = append(out, c)
	}
	if capK > 0 && len(out) > capK {
		out = out[:capK]
	}
	return out
}

// Optimize returns the highest scoring legal loadout for the request.
func (o *Optimizer) Optimize(ctx context.Context, req Request) (Result, error) {
	if o.opts.Exhaustive {
		return o.BruteForce(ctx, req)
	}
	p := o.prepare(req)
	for i := range p.levels {
		p.levels[i] = reduce(p.levels[i], o.opts.CandidateCap)
	}
	return o.run(ctx, p, true, o.opts.Workers)
}

// BruteForce enumerates every combination of eligible mods. It is the
// reference the pruned search is validated against.
func (o *Optimizer) BruteForce(ctx context.Context, req Request) (Result, error) {
	return o.run(ctx, o.prepare(req), false, 1)
}

// Evaluate scores a concrete set of mods for the request, ignoring
// eligibility. Used to value a character's current loadout.
func (o *Optimizer) Evaluate(req Request, mods []model.Mod) model.Score {
	prof := o.engine.NewProfile(req.Character, req.Target)
	var score model.Score
	for _, m := range mods {
		score.Stats += o.engine.ModScore(prof, m)
	}
	score.SetBonus = o.sets.Evaluate(prof, req.Target, mods).Total
	return score
}

func (o *Optimizer) run(ctx context.Context, p prepared, prune bool, workers int) (Result, error) {
	res := Result{Shortfalls: p.shortfalls}
	if len(p.levels) == 0 {
		return res, ctx.Err()
	}

	suffix := make([]float64, len(p.levels)+1)
	for d := len(p.levels) - 1; d >= 0; d-- {
		suffix[d] = suffix[d+1] + p.levels[d][0].score
	}

	global := newAtomicMax()
	branches := make([]*searcher, len(p.levels[0]))
	newBranch := func(ctx context.Context, i int) *searcher {
		s := &searcher{
			ctx:    ctx,
			levels: p.levels,
			suffix: suffix,
			table:  p.table,
			prune:  prune,
			global: global,
			pick:   make([]int, len(p.levels)),
			memo:   make(map[uint32]float64),
		}
		c := p.levels[0][i]
		s.pick[0] = i
		s.tally.Add(c.set, c.maxed)
		return s
	}

	if workers < 2 {
		for i := range branches {
			s := newBranch(ctx, i)
			if err := s.dfs(1, p.levels[0][i].score); err != nil {
				return res, err
			}
			branches[i] = s
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := range branches {
			g.Go(func() error {
				s := newBranch(gctx, i)
				if err := s.dfs(1, p.levels[0][i].score); err != nil {
					return err
				}
				branches[i] = s
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return res, err
		}
	}

	// Merge in branch order so the winner does not depend on scheduling.
	var best *searcher
	for _, s := range branches {
		res.Nodes += s.nodes
		if !s.found {
			continue
		}
		if best == nil || best.beatenBy(s.best, s.bestPick) {
			best = s
		}
	}
	if best == nil {
		return res, nil
	}

	var tally setbonus.Tally
	for d, i := range best.bestPick {
		c := p.levels[d][i]
		res.Loadout[p.slots[d]] = c.mod.ID
		res.Mods = append(res.Mods, *c.mod)
		res.Score.Stats += c.score
		tally.Add(c.set, c.maxed)
	}
	res.Score.SetBonus = p.table.Bonus(tally)
	return res, nil
}

type searcher struct {
	ctx    context.Context
	levels [][]candidate
	suffix []float64
	table  *setbonus.Table
	prune  bool
	global *atomicMax
	memo   map[uint32]float64

	pick  []int
	tally setbonus.Tally
	nodes int64

	found    bool
	best     float64
	bestPick []int
}

func (s *searcher) dfs(depth int, partial float64) error {
	s.nodes++
	if s.nodes&0xfff == 0 {
		if err := s.ctx.Err(); err != nil {
			return err
		}
	}

	if depth == len(s.levels) {
		s.consider(partial + s.table.Bonus(s.tally))
		return nil
	}

	if s.prune {
		bound := partial + s.suffix[depth] + s.bound(len(s.levels)-depth)
		if bound < s.cutoff() {
			return nil
		}
	}

	for i, c := range s.levels[depth] {
		s.pick[depth] = i
		s.tally.Add(c.set, c.maxed)
		err := s.dfs(depth+1, partial+c.score)
		s.tally.Remove(c.set, c.maxed)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *searcher) bound(remaining int) float64 {
	key := uint32(remaining)
	for i, c := range s.tally.Count {
		key |= uint32(c) << (3 + 3*i)
	}
	if v, ok := s.memo[key]; ok {
		return v
	}
	v := s.table.Bound(s.tally, remaining)
	s.memo[key] = v
	return v
}

// cutoff is the bound below which a subtree cannot reach or tie the best
// known total.
func (s *searcher) cutoff() float64 {
	b := s.global.Load()
	if s.found && s.best > b {
		b = s.best
	}
	if math.IsInf(b, -1) {
		return b
	}
	return b - tolerance(b)
}

func (s *searcher) consider(total float64) {
	if !s.beatenBy(total, s.pick) {
		return
	}
	s.found = true
	s.best = total
	s.bestPick = append(s.bestPick[:0], s.pick...)
	s.global.Raise(total)
}

// beatenBy reports whether (total, pick) beats the searcher's best loadout.
func (s *searcher) beatenBy(total float64, pick []int) bool {
	if !s.found {
		return true
	}
	if total != s.best {
		return total > s.best
	}
	return comparePicks(s.levels, pick, s.bestPick) < 0
}

// comparePicks orders two picks by their mod IDs in level order.
func comparePicks(levels [][]candidate, a, b []int) int {
	for d := range a {
		if c := cmp.Compare(levels[d][a[d]].mod.ID, levels[d][b[d]].mod.ID); c != 0 {
			return c
		}
	}
	return 0
}

// tolerance is the pruning slack around a total.
func tolerance(v float64) float64 {
	return 1e-9 * max(1, math.Abs(v))
}

// atomicMax is a float64 that only grows, shared by branch searchers to
// tighten each other's pruning.
type atomicMax struct {
	bits atomic.Uint64
}

func newAtomicMax() *atomicMax {
	a := &atomicMax{}
	a.bits.Store(math.Float64bits(math.Inf(-1)))
	return a
}

func (a *atomicMax) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

func (a *atomicMax) Raise(v float64) {
	for {
		old := a.bits.Load()
		if v <= math.Float64frombits(old) {
			return
		}
		if a.bits.CompareAndSwap(old, math.Float64bits(v)) {
			return
		}
	}
}
