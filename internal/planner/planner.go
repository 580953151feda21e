// Package planner assigns mods to a whole roster.
//
// Characters are planned one at a time in priority order. Each run sees only
// the mods earlier characters did not take, so the result is optimal per
// character given what is left, not for the roster as a whole. Locked
// characters, unselected characters and characters without a target keep
// their equipped mods, and those mods are withheld from everyone else.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/udisondev/modplanner/internal/model"
	"github.com/udisondev/modplanner/internal/scoring"
	"github.com/udisondev/modplanner/internal/search"
)

// Options configure a planner.
type Options struct {
	Search search.Options

	// KeepEquipped reserves each planned character's equipped mods for that
	// character, so earlier characters cannot take them. This departs from
	// plain priority order: a higher-priority character no longer sees a
	// mod that a lower-priority character is wearing. Reserved mods the
	// wearer does not pick are released to the characters after it.
	KeepEquipped bool
	// ModChangeThreshold is a percentage. With KeepEquipped, a character
	// keeps its current loadout unless the optimum beats it by more than
	// this share of the current score.
	ModChangeThreshold float64
}

// Input is one planning pass. Characters are in priority order. Targets
// overrides a character's active target; characters without an entry use
// CharacterState.Active.
type Input struct {
	Pool       []model.Mod
	Characters []model.CharacterState
	Targets    map[model.CharacterID]model.OptimizationTarget
}

// Planner is the global allocation planner. A Planner keeps no state between
// passes; every call to Plan works on its own copy of the pool bookkeeping.
type Planner struct {
	opt    *search.Optimizer
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a planner. A nil logger means slog.Default().
func New(engine *scoring.Engine, opts Options, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		opt:    search.New(engine, opts.Search),
		opts:   opts,
		logger: logger,
		tracer: otel.Tracer("github.com/udisondev/modplanner/internal/planner"),
	}
}

// role is how a pass treats a character.
type role int

const (
	rolePlanned role = iota
	roleLocked
	roleSkipped
)

type entry struct {
	char   model.CharacterState
	role   role
	target model.OptimizationTarget
	hasTgt bool
}

// pass holds the bookkeeping of one Plan call.
type pass struct {
	id       string
	index    map[model.ModID]int
	claimed  map[model.ModID]bool
	reserved map[model.ModID]model.CharacterID
}

// Plan runs one planning pass.
//
// Integrity problems in the input abort the pass with an error wrapping
// ErrPoolIntegrity and no result. Cancellation is checked between
// characters: the returned result then holds the finished prefix with
// Complete set to false, together with an error wrapping ctx.Err().
func (p *Planner) Plan(ctx context.Context, in Input) (Result, error) {
	ps := &pass{
		id:       uuid.NewString(),
		claimed:  make(map[model.ModID]bool),
		reserved: make(map[model.ModID]model.CharacterID),
	}
	ctx, span := p.tracer.Start(ctx, "planner.Plan", trace.WithAttributes(
		attribute.String("pass_id", ps.id),
		attribute.Int("characters", len(in.Characters)),
		attribute.Int("pool", len(in.Pool)),
	))
	defer span.End()

	index, err := validate(in)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("planning pass rejected", "pass_id", ps.id, "error", err)
		return Result{}, err
	}
	ps.index = index

	entries := p.classify(in)
	for _, e := range entries {
		switch {
		case e.role != rolePlanned:
			for _, id := range e.char.Equipped {
				ps.claimed[id] = true
			}
		case p.opts.KeepEquipped:
			for _, id := range e.char.Equipped {
				ps.reserved[id] = e.char.ID
			}
		}
	}

	p.logger.Info("planning pass started",
		"pass_id", ps.id,
		"characters", len(entries),
		"pool", len(in.Pool),
		"withheld", len(ps.claimed),
	)

	res := Result{Assignments: make([]model.Assignment, 0, len(entries))}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return p.abort(span, ps, in, res, err)
		}

		var a model.Assignment
		switch e.role {
		case roleLocked, roleSkipped:
			a = p.keep(in, ps, e)
		default:
			var err error
			a, err = p.planCharacter(ctx, in, ps, e)
			if err != nil {
				if ctx.Err() != nil {
					return p.abort(span, ps, in, res, ctx.Err())
				}
				span.SetStatus(codes.Error, err.Error())
				return Result{}, fmt.Errorf("planning %s: %w", e.char.ID, err)
			}
		}
		res.Assignments = append(res.Assignments, a)
	}

	res.Leftover = leftover(in.Pool, res)
	res.Complete = true
	p.logger.Info("planning pass finished",
		"pass_id", ps.id,
		"assigned", len(in.Pool)-len(res.Leftover),
		"leftover", len(res.Leftover),
	)
	return res, nil
}

func (p *Planner) abort(span trace.Span, ps *pass, in Input, res Result, cause error) (Result, error) {
	res.Leftover = leftover(in.Pool, res)
	span.SetStatus(codes.Error, cause.Error())
	p.logger.Warn("planning pass aborted",
		"pass_id", ps.id,
		"completed", len(res.Assignments),
		"characters", len(in.Characters),
	)
	return res, fmt.Errorf("planning pass aborted after %d characters: %w", len(res.Assignments), cause)
}

func (p *Planner) classify(in Input) []entry {
	entries := make([]entry, 0, len(in.Characters))
	for _, c := range in.Characters {
		e := entry{char: c}
		if t, ok := in.Targets[c.ID]; ok {
			e.target, e.hasTgt = t, true
		} else if t, err := c.Active(); err == nil {
			e.target, e.hasTgt = t, true
		}

		switch {
		case c.Locked:
			e.role = roleLocked
		case !c.Selected:
			e.role = roleSkipped
		case !e.hasTgt:
			e.role = roleSkipped
			p.logger.Warn("character has no target, keeping its mods", "character", c.ID)
		default:
			e.role = rolePlanned
		}
		entries = append(entries, e)
	}
	return entries
}

// keep emits a character's current loadout unchanged.
func (p *Planner) keep(in Input, ps *pass, e entry) model.Assignment {
	a := model.Assignment{
		Character: e.char.ID,
		Status:    model.StatusSkipped,
		Loadout:   ps.loadoutOf(in.Pool, e.char.Equipped),
	}
	if e.role == roleLocked {
		a.Status = model.StatusLocked
	}
	if e.hasTgt {
		a.Target = e.target.Name
		a.Score = p.opt.Evaluate(search.Request{Character: e.char, Target: e.target}, ps.modsOf(in.Pool, e.char.Equipped))
	}
	p.logger.Debug("character kept", "pass_id", ps.id, "character", e.char.ID, "status", a.Status)
	return a
}

func (p *Planner) planCharacter(ctx context.Context, in Input, ps *pass, e entry) (model.Assignment, error) {
	ctx, span := p.tracer.Start(ctx, "planner.character", trace.WithAttributes(
		attribute.String("character", string(e.char.ID)),
		attribute.String("target", e.target.Name),
	))
	defer span.End()

	req := search.Request{
		Pool:      ps.available(in.Pool, e.char.ID),
		Character: e.char,
		Target:    e.target,
	}
	found, err := p.opt.Optimize(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.Assignment{}, err
	}

	a := model.Assignment{
		Character:  e.char.ID,
		Status:     model.StatusPlanned,
		Target:     e.target.Name,
		Loadout:    found.Loadout,
		Score:      found.Score,
		Shortfalls: found.Shortfalls,
	}

	if p.opts.KeepEquipped && len(e.char.Equipped) > 0 {
		current := p.opt.Evaluate(req, ps.modsOf(in.Pool, e.char.Equipped))
		gain := found.Score.Total() - current.Total()
		if gain <= math.Abs(current.Total())*p.opts.ModChangeThreshold/100 {
			a.Loadout = ps.loadoutOf(in.Pool, e.char.Equipped)
			a.Score = current
			a.Shortfalls = nil
			a.Kept = true
		}
	}

	for _, id := range a.Loadout.IDs() {
		ps.claimed[id] = true
	}
	for _, id := range e.char.Equipped {
		if ps.reserved[id] == e.char.ID {
			delete(ps.reserved, id)
		}
	}

	span.SetAttributes(
		attribute.Float64("score", a.Score.Total()),
		attribute.Int64("nodes", found.Nodes),
		attribute.Bool("kept", a.Kept),
	)
	p.logger.Debug("character planned",
		"pass_id", ps.id,
		"character", e.char.ID,
		"target", e.target.Name,
		"score", a.Score.Total(),
		"nodes", found.Nodes,
		"shortfalls", len(a.Shortfalls),
		"kept", a.Kept,
	)
	return a, nil
}

// available returns the unclaimed mods a character may use, in pool order.
func (ps *pass) available(pool []model.Mod, c model.CharacterID) []model.Mod {
	out := make([]model.Mod, 0, len(pool))
	for _, m := range pool {
		if ps.claimed[m.ID] {
			continue
		}
		if owner, ok := ps.reserved[m.ID]; ok && owner != c {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (ps *pass) modsOf(pool []model.Mod, ids []model.ModID) []model.Mod {
	mods := make([]model.Mod, 0, len(ids))
	for _, id := range ids {
		mods = append(mods, pool[ps.index[id]])
	}
	return mods
}

func (ps *pass) loadoutOf(pool []model.Mod, ids []model.ModID) model.Loadout {
	var l model.Loadout
	for _, id := range ids {
		l[pool[ps.index[id]].SlotIndex()] = id
	}
	return l
}

func leftover(pool []model.Mod, res Result) []model.ModID {
	owners := res.Owners()
	out := make([]model.ModID, 0, len(pool)-len(owners))
	for _, m := range pool {
		if _, ok := owners[m.ID]; !ok {
			out = append(out, m.ID)
		}
	}
	return out
}

// validate checks that no mod can end up in two places and indexes the pool.
func validate(in Input) (map[model.ModID]int, error) {
	index := make(map[model.ModID]int, len(in.Pool))
	for i, m := range in.Pool {
		if _, dup := index[m.ID]; dup {
			return nil, &PoolIntegrityError{Mod: m.ID, Reason: "duplicate mod id"}
		}
		if err := m.Validate(); err != nil {
			return nil, &PoolIntegrityError{Mod: m.ID, Reason: err.Error()}
		}
		index[m.ID] = i
	}

	wearer := make(map[model.ModID]model.CharacterID)
	seen := make(map[model.CharacterID]bool, len(in.Characters))
	for _, c := range in.Characters {
		if seen[c.ID] {
			return nil, &PoolIntegrityError{Character: c.ID, Reason: "character listed twice"}
		}
		seen[c.ID] = true

		var slots [model.NumShapes]bool
		for _, id := range c.Equipped {
			i, ok := index[id]
			if !ok {
				return nil, &PoolIntegrityError{Mod: id, Character: c.ID, Reason: "equipped mod is not in the pool"}
			}
			if other, ok := wearer[id]; ok {
				return nil, &PoolIntegrityError{Mod: id, Character: c.ID, Reason: "also equipped by " + string(other)}
			}
			wearer[id] = c.ID

			slot := in.Pool[i].SlotIndex()
			if slots[slot] {
				return nil, &PoolIntegrityError{Mod: id, Character: c.ID, Reason: "two equipped mods share a slot"}
			}
			slots[slot] = true
		}
	}
	return index, nil
}
