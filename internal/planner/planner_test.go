package planner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/modplanner/internal/data"
	"github.com/udisondev/modplanner/internal/model"
	"github.com/udisondev/modplanner/internal/scoring"
	"github.com/udisondev/modplanner/internal/search"
	"github.com/udisondev/modplanner/internal/testutil"
)

func newPlanner(t *testing.T, opts Options) *Planner {
	t.Helper()
	cat, err := data.DefaultCatalog()
	require.NoError(t, err)
	return New(scoring.NewEngine(cat), opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func health(v float64) model.Stat { return model.Stat{Type: model.StatHealth, Value: v} }

var hpTarget = testutil.Target("hp", map[model.Dimension]float64{model.DimHealth: 1})

// checkInvariants asserts that no mod is assigned twice and that assignments
// plus leftover give back the pool.
func checkInvariants(t *testing.T, pool []model.Mod, res Result) {
	t.Helper()
	seen := make(map[model.ModID]int)
	for _, a := range res.Assignments {
		for _, id := range a.Loadout.IDs() {
			seen[id]++
		}
	}
	for _, id := range res.Leftover {
		seen[id]++
	}
	require.Len(t, seen, len(pool))
	for _, m := range pool {
		assert.Equal(t, 1, seen[m.ID], "mod %s", m.ID)
	}
}

func TestPlanLockedCharacterKeepsMods(t *testing.T) {
	t.Parallel()

	pool := []model.Mod{
		testutil.Mod("X", model.ShapeSquare, model.SetOffense, health(1000)),
		testutil.Mod("Y", model.ShapeArrow, model.SetOffense, health(1000)),
		testutil.Mod("Z", model.ShapeSquare, model.SetOffense, health(10)),
	}
	locked := testutil.Character("LOCKED", hpTarget, "X", "Y")
	locked.Locked = true
	hero := testutil.Character("HERO", hpTarget)

	res, err := newPlanner(t, Options{}).Plan(context.Background(), Input{
		Pool:       pool,
		Characters: []model.CharacterState{hero, locked},
	})
	require.NoError(t, err)
	require.True(t, res.Complete)
	checkInvariants(t, pool, res)

	h, ok := res.Assignment("HERO")
	require.True(t, ok)
	assert.Equal(t, model.StatusPlanned, h.Status)
	assert.Equal(t, model.ModID("Z"), h.Loadout.Get(model.ShapeSquare))
	assert.Empty(t, h.Loadout.Get(model.ShapeArrow))
	assert.Contains(t, h.Shortfalls, model.ShapeArrow)

	l, ok := res.Assignment("LOCKED")
	require.True(t, ok)
	assert.Equal(t, model.StatusLocked, l.Status)
	assert.Equal(t, []model.ModID{"X", "Y"}, l.Loadout.IDs())
	assert.InDelta(t, 2000, l.Score.Total(), 1e-9)
	assert.Empty(t, res.Leftover)
}

func TestPlanUnselectedAndTargetless(t *testing.T) {
	t.Parallel()

	pool := []model.Mod{
		testutil.Mod("A", model.ShapeSquare, model.SetOffense, health(1000)),
		testutil.Mod("B", model.ShapeCircle, model.SetOffense, model.Stat{Type: model.StatHealthPct, Value: 5}),
		testutil.Mod("C", model.ShapeSquare, model.SetOffense, health(1)),
	}
	idle := testutil.Character("IDLE", hpTarget, "A")
	idle.Selected = false
	bare := model.CharacterState{ID: "BARE", Selected: true, Equipped: []model.ModID{"B"}}
	hero := testutil.Character("HERO", hpTarget)

	res, err := newPlanner(t, Options{}).Plan(context.Background(), Input{
		Pool:       pool,
		Characters: []model.CharacterState{hero, idle, bare},
	})
	require.NoError(t, err)
	checkInvariants(t, pool, res)

	h, _ := res.Assignment("HERO")
	assert.Equal(t, []model.ModID{"C"}, h.Loadout.IDs())

	i, _ := res.Assignment("IDLE")
	assert.Equal(t, model.StatusSkipped, i.Status)
	assert.Equal(t, []model.ModID{"A"}, i.Loadout.IDs())

	b, _ := res.Assignment("BARE")
	assert.Equal(t, model.StatusSkipped, b.Status)
	assert.Empty(t, b.Target)
	assert.Equal(t, []model.ModID{"B"}, b.Loadout.IDs())
}

func TestPlanPriorityOrder(t *testing.T) {
	t.Parallel()

	pool := []model.Mod{
		testutil.Mod("best", model.ShapeSquare, model.SetOffense, health(100)),
		testutil.Mod("next", model.ShapeSquare, model.SetOffense, health(50)),
	}
	first := testutil.Character("FIRST", hpTarget)
	second := testutil.Character("SECOND", hpTarget, "best")

	p := newPlanner(t, Options{})
	res, err := p.Plan(context.Background(), Input{Pool: pool, Characters: []model.CharacterState{first, second}})
	require.NoError(t, err)
	assert.Equal(t, model.ModID("best"), res.Assignments[0].Loadout.Get(model.ShapeSquare))
	assert.Equal(t, model.ModID("next"), res.Assignments[1].Loadout.Get(model.ShapeSquare))

	res, err = p.Plan(context.Background(), Input{Pool: pool, Characters: []model.CharacterState{second, first}})
	require.NoError(t, err)
	assert.Equal(t, model.CharacterID("SECOND"), res.Assignments[0].Character)
	assert.Equal(t, model.ModID("best"), res.Assignments[0].Loadout.Get(model.ShapeSquare))
}

func TestPlanTargetOverride(t *testing.T) {
	t.Parallel()

	pool := []model.Mod{
		testutil.Mod("hp", model.ShapeSquare, model.SetOffense, health(100)),
		testutil.Mod("spd", model.ShapeSquare, model.SetOffense, model.Stat{Type: model.StatSpeed, Value: 10}),
	}
	fast := testutil.Target("fast", map[model.Dimension]float64{model.DimSpeed: 1})

	res, err := newPlanner(t, Options{}).Plan(context.Background(), Input{
		Pool:       pool,
		Characters: []model.CharacterState{testutil.Character("HERO", hpTarget)},
		Targets:    map[model.CharacterID]model.OptimizationTarget{"HERO": fast},
	})
	require.NoError(t, err)
	assert.Equal(t, "fast", res.Assignments[0].Target)
	assert.Equal(t, model.ModID("spd"), res.Assignments[0].Loadout.Get(model.ShapeSquare))
}

func TestPlanKeepEquipped(t *testing.T) {
	t.Parallel()

	pool := []model.Mod{
		testutil.Mod("worn", model.ShapeSquare, model.SetOffense, health(100)),
		testutil.Mod("spare", model.ShapeSquare, model.SetOffense, health(60)),
	}
	chars := []model.CharacterState{
		testutil.Character("FIRST", hpTarget),
		testutil.Character("SECOND", hpTarget, "worn"),
	}

	tests := []struct {
		name       string
		keep       bool
		wantFirst  model.ModID
		wantSecond model.ModID
	}{
		{"shared pool", false, "worn", "spare"},
		{"worn mods are withheld from earlier characters", true, "spare", "worn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := newPlanner(t, Options{KeepEquipped: tt.keep}).Plan(context.Background(), Input{Pool: pool, Characters: chars})
			require.NoError(t, err)
			checkInvariants(t, pool, res)
			assert.Equal(t, tt.wantFirst, res.Assignments[0].Loadout.Get(model.ShapeSquare))
			assert.Equal(t, tt.wantSecond, res.Assignments[1].Loadout.Get(model.ShapeSquare))
		})
	}
}

func TestPlanKeepEquippedReleasesUnusedMods(t *testing.T) {
	t.Parallel()

	pool := []model.Mod{
		testutil.Mod("old", model.ShapeSquare, model.SetOffense, health(10)),
		testutil.Mod("new", model.ShapeSquare, model.SetOffense, health(100)),
	}
	chars := []model.CharacterState{
		testutil.Character("FIRST", hpTarget, "old"),
		testutil.Character("SECOND", hpTarget),
	}

	res, err := newPlanner(t, Options{KeepEquipped: true}).Plan(context.Background(), Input{Pool: pool, Characters: chars})
	require.NoError(t, err)
	assert.Equal(t, model.ModID("new"), res.Assignments[0].Loadout.Get(model.ShapeSquare))
	assert.Equal(t, model.ModID("old"), res.Assignments[1].Loadout.Get(model.ShapeSquare), "released after FIRST moved on")
}

func TestPlanModChangeThreshold(t *testing.T) {
	t.Parallel()

	pool := []model.Mod{
		testutil.Mod("worn", model.ShapeSquare, model.SetOffense, health(1000)),
		testutil.Mod("better", model.ShapeSquare, model.SetOffense, health(1040)),
	}
	chars := []model.CharacterState{testutil.Character("HERO", hpTarget, "worn")}

	tests := []struct {
		name      string
		keep      bool
		threshold float64
		want      model.ModID
		wantKept  bool
	}{
		{"gain below threshold keeps mods", true, 5, "worn", true},
		{"gain above threshold moves", true, 1, "better", false},
		{"threshold needs keep mode", false, 5, "better", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newPlanner(t, Options{KeepEquipped: tt.keep, ModChangeThreshold: tt.threshold})
			res, err := p.Plan(context.Background(), Input{Pool: pool, Characters: chars})
			require.NoError(t, err)
			a := res.Assignments[0]
			assert.Equal(t, tt.want, a.Loadout.Get(model.ShapeSquare))
			assert.Equal(t, tt.wantKept, a.Kept)
		})
	}
}

func TestPlanPoolIntegrity(t *testing.T) {
	t.Parallel()

	sq := testutil.Mod("sq", model.ShapeSquare, model.SetOffense, health(1))
	sq2 := testutil.Mod("sq2", model.ShapeSquare, model.SetOffense, health(1))
	bad := testutil.Mod("bad", "hexagon", model.SetOffense, health(1))
	noSet := testutil.Mod("noset", model.ShapeArrow, "luck", health(1))

	tests := []struct {
		name    string
		pool    []model.Mod
		chars   []model.CharacterState
		wantMod model.ModID
	}{
		{"duplicate id", []model.Mod{sq, sq}, nil, "sq"},
		{"unknown shape", []model.Mod{sq, bad}, nil, "bad"},
		{"unknown set", []model.Mod{noSet}, nil, "noset"},
		{"equipped mod missing", []model.Mod{sq}, []model.CharacterState{testutil.Character("A", hpTarget, "ghost")}, "ghost"},
		{"equipped twice", []model.Mod{sq}, []model.CharacterState{
			testutil.Character("A", hpTarget, "sq"),
			testutil.Character("B", hpTarget, "sq"),
		}, "sq"},
		{"slot collision", []model.Mod{sq, sq2}, []model.CharacterState{testutil.Character("A", hpTarget, "sq", "sq2")}, "sq2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := newPlanner(t, Options{}).Plan(context.Background(), Input{Pool: tt.pool, Characters: tt.chars})
			require.ErrorIs(t, err, ErrPoolIntegrity)
			var pie *PoolIntegrityError
			require.ErrorAs(t, err, &pie)
			assert.Equal(t, tt.wantMod, pie.Mod)
			assert.Empty(t, res.Assignments)
		})
	}
}

// cancelAfter reports cancellation once Err has been asked n times.
type cancelAfter struct {
	context.Context
	calls *atomic.Int32
	n     int32
}

func (c cancelAfter) Err() error {
	if c.calls.Add(1) > c.n {
		return context.Canceled
	}
	return nil
}

func TestPlanAbortReturnsPrefix(t *testing.T) {
	t.Parallel()

	pool := []model.Mod{
		testutil.Mod("a", model.ShapeSquare, model.SetOffense, health(100)),
		testutil.Mod("b", model.ShapeSquare, model.SetOffense, health(50)),
	}
	chars := []model.CharacterState{
		testutil.Character("FIRST", hpTarget),
		testutil.Character("SECOND", hpTarget),
	}
	p := newPlanner(t, Options{})

	t.Run("before any character", func(t *testing.T) {
		t.Parallel()
		res, err := p.Plan(testutil.CanceledContext(t), Input{Pool: pool, Characters: chars})
		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, res.Complete)
		assert.Empty(t, res.Assignments)
		assert.Equal(t, []model.ModID{"a", "b"}, res.Leftover)
	})

	t.Run("after the first character", func(t *testing.T) {
		t.Parallel()
		ctx := cancelAfter{Context: context.Background(), calls: new(atomic.Int32), n: 1}
		res, err := p.Plan(ctx, Input{Pool: pool, Characters: chars})
		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, res.Complete)
		require.Len(t, res.Assignments, 1)
		assert.Equal(t, model.ModID("a"), res.Assignments[0].Loadout.Get(model.ShapeSquare))
		assert.Equal(t, []model.ModID{"b"}, res.Leftover)
		checkInvariants(t, pool, res)
	})
}

// randomRoster builds characters over a random pool. Every third character
// is locked and every fourth unselected; each wears distinct mods.
func randomRoster(seed uint64, pool []model.Mod, n int) []model.CharacterState {
	worn := make(map[model.ModID]bool)
	chars := make([]model.CharacterState, n)
	for i := range chars {
		tgt := testutil.RandomTarget(seed*100 + uint64(i))
		c := testutil.Character(model.CharacterID(rune('A'+i)), tgt)
		var slots [model.NumShapes]bool
		for _, m := range pool[(i*7)%len(pool):] {
			if len(c.Equipped) == 3 {
				break
			}
			if worn[m.ID] || slots[m.SlotIndex()] {
				continue
			}
			worn[m.ID], slots[m.SlotIndex()] = true, true
			c.Equipped = append(c.Equipped, m.ID)
		}
		c.Locked = i%3 == 2
		c.Selected = i%4 != 3
		chars[i] = c
	}
	return chars
}

func TestPlanInvariantsOnRandomRosters(t *testing.T) {
	t.Parallel()

	for seed := uint64(1); seed <= 10; seed++ {
		pool := testutil.RandomPool(seed, 90)
		chars := randomRoster(seed, pool, 8)
		for _, keep := range []bool{false, true} {
			p := newPlanner(t, Options{KeepEquipped: keep, Search: search.Options{Workers: 4}})
			res, err := p.Plan(context.Background(), Input{Pool: pool, Characters: chars})
			require.NoError(t, err, "seed %d", seed)
			require.True(t, res.Complete)
			require.Len(t, res.Assignments, len(chars))
			checkInvariants(t, pool, res)

			for i, c := range chars {
				a := res.Assignments[i]
				assert.Equal(t, c.ID, a.Character)
				if c.Locked || !c.Selected {
					assert.ElementsMatch(t, c.Equipped, a.Loadout.IDs(), "seed %d char %s", seed, c.ID)
				}
			}
		}
	}
}

func TestPlanDeterministicDigest(t *testing.T) {
	t.Parallel()

	pool := testutil.RandomPool(42, 120)
	chars := randomRoster(42, pool, 6)
	in := Input{Pool: pool, Characters: chars}

	ref, err := newPlanner(t, Options{}).Plan(context.Background(), in)
	require.NoError(t, err)
	want, err := ref.Digest()
	require.NoError(t, err)
	assert.Len(t, want, 64)

	for _, workers := range []int{1, 3, 8} {
		res, err := newPlanner(t, Options{Search: search.Options{Workers: workers}}).Plan(context.Background(), in)
		require.NoError(t, err)
		got, err := res.Digest()
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestPoolIntegrityErrorMessage(t *testing.T) {
	t.Parallel()

	err := error(&PoolIntegrityError{Mod: "m1", Character: "HERO", Reason: "two equipped mods share a slot"})
	assert.Equal(t, "pool integrity violation: character HERO: mod m1: two equipped mods share a slot", err.Error())
	assert.True(t, errors.Is(err, ErrPoolIntegrity))
}
