// Package reconcile turns a plan into the operations that apply it.
//
// A mod already in its planned slot produces no operation. Every emitted
// operation is valid against the state left by the ones before it: a slot
// holds at most one mod and a mod is worn by at most one character at every
// step. When moves form a cycle (two characters swapping mods), one mod of
// the cycle is unequipped first and equipped again at the end.
package reconcile

import (
	"errors"
	"fmt"

	"github.com/udisondev/modplanner/internal/model"
)

var (
	ErrUnknownMod  = errors.New("mod is not in the pool")
	ErrInvalidPlan = errors.New("plan is not applicable")
)

// OpKind is the kind of an operation.
type OpKind int

const (
	// OpUnequip снимает мод с персонажа, мод возвращается в инвентарь.
	OpUnequip OpKind = iota
	// OpMove переносит мод с одного персонажа на другого.
	OpMove
	// OpEquip надевает свободный мод.
	OpEquip
)

func (k OpKind) String() string {
	switch k {
	case OpUnequip:
		return "unequip"
	case OpMove:
		return "move"
	case OpEquip:
		return "equip"
	default:
		return "unknown"
	}
}

// MarshalText lets the kind appear by name in JSON documents.
func (k OpKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Operation is one step. From is empty for OpEquip, To is empty for OpUnequip.
type Operation struct {
	Kind  OpKind            `json:"kind"`
	Mod   model.ModID       `json:"mod"`
	Shape model.Shape       `json:"shape"`
	From  model.CharacterID `json:"from,omitempty"`
	To    model.CharacterID `json:"to,omitempty"`
}

func (o Operation) String() string {
	switch o.Kind {
	case OpUnequip:
		return fmt.Sprintf("unequip %s (%s) from %s", o.Mod, o.Shape, o.From)
	case OpMove:
		return fmt.Sprintf("move %s (%s) from %s to %s", o.Mod, o.Shape, o.From, o.To)
	default:
		return fmt.Sprintf("equip %s (%s) on %s", o.Mod, o.Shape, o.To)
	}
}

// Sequence is an ordered list of operations.
type Sequence []Operation

// Count returns how many operations are of the kind.
func (s Sequence) Count(kind OpKind) int {
	n := 0
	for _, op := range s {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// state is who wears what.
type state struct {
	shape  map[model.ModID]model.Shape
	wearer map[model.ModID]model.CharacterID
	slots  map[model.CharacterID]*model.Loadout
}

func newState(pool []model.Mod, previous []model.CharacterState) (*state, error) {
	st := &state{
		shape:  make(map[model.ModID]model.Shape, len(pool)),
		wearer: make(map[model.ModID]model.CharacterID),
		slots:  make(map[model.CharacterID]*model.Loadout, len(previous)),
	}
	for _, m := range pool {
		st.shape[m.ID] = m.Shape
	}
	for _, c := range previous {
		l := st.loadout(c.ID)
		for _, id := range c.Equipped {
			shape, ok := st.shape[id]
			if !ok {
				return nil, fmt.Errorf("%s wears %s: %w", c.ID, id, ErrUnknownMod)
			}
			i, _ := shape.Index()
			if l[i] != "" || st.wearer[id] != "" {
				return nil, fmt.Errorf("%s wears %s: %w: slot or mod taken twice", c.ID, id, ErrInvalidPlan)
			}
			l[i] = id
			st.wearer[id] = c.ID
		}
	}
	return st, nil
}

func (st *state) loadout(c model.CharacterID) *model.Loadout {
	l, ok := st.slots[c]
	if !ok {
		l = &model.Loadout{}
		st.slots[c] = l
	}
	return l
}

func (st *state) slot(id model.ModID) int {
	i, _ := st.shape[id].Index()
	return i
}

func (st *state) remove(id model.ModID) {
	if c, ok := st.wearer[id]; ok {
		st.slots[c][st.slot(id)] = ""
		delete(st.wearer, id)
	}
}

func (st *state) place(id model.ModID, c model.CharacterID) {
	st.loadout(c)[st.slot(id)] = id
	st.wearer[id] = c
}

type placement struct {
	mod model.ModID
	to  model.CharacterID
}

// Reconcile computes the operations that take the previous equip state to
// the plan. Characters absent from the plan keep their mods unless a planned
// character takes them.
func Reconcile(pool []model.Mod, previous []model.CharacterState, plan []model.Assignment) (Sequence, error) {
	st, err := newState(pool, previous)
	if err != nil {
		return nil, err
	}

	desired := make(map[model.ModID]model.CharacterID)
	planned := make(map[model.CharacterID]bool, len(plan))
	var pending []placement
	for _, a := range plan {
		if planned[a.Character] {
			return nil, fmt.Errorf("%s planned twice: %w", a.Character, ErrInvalidPlan)
		}
		planned[a.Character] = true
		for slot, id := range a.Loadout {
			if id == "" {
				continue
			}
			shape, ok := st.shape[id]
			if !ok {
				return nil, fmt.Errorf("%s: %s: %w", a.Character, id, ErrUnknownMod)
			}
			if shape != model.AllShapes[slot] {
				return nil, fmt.Errorf("%s: %s is a %s in the %s slot: %w", a.Character, id, shape, model.AllShapes[slot], ErrInvalidPlan)
			}
			if other, ok := desired[id]; ok {
				return nil, fmt.Errorf("%s planned for %s and %s: %w", id, other, a.Character, ErrInvalidPlan)
			}
			desired[id] = a.Character
			if st.wearer[id] != a.Character {
				pending = append(pending, placement{mod: id, to: a.Character})
			}
		}
	}

	var seq Sequence
	unequip := func(id model.ModID) {
		seq = append(seq, Operation{Kind: OpUnequip, Mod: id, Shape: st.shape[id], From: st.wearer[id]})
		st.remove(id)
	}

	// Mods leaving a planned character for nowhere go back to the inventory.
	for _, c := range previous {
		if !planned[c.ID] {
			continue
		}
		for _, id := range *st.loadout(c.ID) {
			if id == "" {
				continue
			}
			if _, ok := desired[id]; !ok {
				unequip(id)
			}
		}
	}

	for len(pending) > 0 {
		rest := pending[:0]
		for _, p := range pending {
			if st.loadout(p.to)[st.slot(p.mod)] != "" {
				rest = append(rest, p)
				continue
			}
			op := Operation{Kind: OpEquip, Mod: p.mod, Shape: st.shape[p.mod], To: p.to}
			if from, ok := st.wearer[p.mod]; ok {
				op.Kind, op.From = OpMove, from
			}
			seq = append(seq, op)
			st.remove(p.mod)
			st.place(p.mod, p.to)
		}
		if len(rest) == len(pending) {
			// Every destination is held by a mod that is itself waiting to
			// move: break the cycle at the first one.
			p := rest[0]
			unequip(st.loadout(p.to)[st.slot(p.mod)])
		}
		pending = rest
	}
	return seq, nil
}

// Simulate applies a sequence to the previous equip state and returns the
// resulting loadouts. It fails on the first operation that is not valid at
// its point in the sequence.
func Simulate(pool []model.Mod, previous []model.CharacterState, seq Sequence) (map[model.CharacterID]model.Loadout, error) {
	st, err := newState(pool, previous)
	if err != nil {
		return nil, err
	}
	for i, op := range seq {
		if _, ok := st.shape[op.Mod]; !ok {
			return nil, fmt.Errorf("step %d: %w", i, ErrUnknownMod)
		}
		wearer, worn := st.wearer[op.Mod]
		switch op.Kind {
		case OpUnequip:
			if !worn || wearer != op.From {
				return nil, fmt.Errorf("step %d: %s: %s is not worn by %s: %w", i, op, op.Mod, op.From, ErrInvalidPlan)
			}
			st.remove(op.Mod)
			continue
		case OpMove:
			if !worn || wearer != op.From {
				return nil, fmt.Errorf("step %d: %s: %s is not worn by %s: %w", i, op, op.Mod, op.From, ErrInvalidPlan)
			}
		case OpEquip:
			if worn {
				return nil, fmt.Errorf("step %d: %s: %s is worn by %s: %w", i, op, op.Mod, wearer, ErrInvalidPlan)
			}
		}
		if occupant := st.loadout(op.To)[st.slot(op.Mod)]; occupant != "" {
			return nil, fmt.Errorf("step %d: %s: slot holds %s: %w", i, op, occupant, ErrInvalidPlan)
		}
		st.remove(op.Mod)
		st.place(op.Mod, op.To)
	}

	out := make(map[model.CharacterID]model.Loadout, len(st.slots))
	for c, l := range st.slots {
		out[c] = *l
	}
	return out, nil
}
