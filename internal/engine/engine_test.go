package engine

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/supercollider/internal/cache"
	"github.com/roach88/supercollider/internal/classify"
	"github.com/roach88/supercollider/internal/handler"
	"github.com/roach88/supercollider/internal/object"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine builds an engine that fails the test on any fatal error.
func newTestEngine(t *testing.T, arena *object.Arena, reg *classify.Registry, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithLogger(quietLogger()),
		WithFatalHandler(func(err *FatalError) {
			t.Errorf("unexpected fatal error: %v", err)
		}),
	}
	e, err := New(arena, reg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func spawn(arena *object.Arena, kind object.Kind, name string) object.Handle {
	o := object.Object{Kind: kind, Name: name, Flags: object.FlagCollides, Radius: 1, Hull: 100}
	if kind == object.KindWeapon {
		o.Weapon = &object.WeaponState{Damage: 10}
	}
	return arena.MustSpawn(o)
}

// tracker is an evaluator that records which object indices are being
// evaluated at any moment and flags any overlap between workers.
type tracker struct {
	mu         sync.Mutex
	held       map[int]int
	violations []string
	calls      int
	delay      time.Duration
	result     handler.Result
	effect     handler.Effect
}

func newTracker(delay time.Duration) *tracker {
	return &tracker{held: make(map[int]int), delay: delay, result: handler.NoCollision}
}

func (p *tracker) evaluate(a, b *object.Object) (handler.Result, handler.Effect) {
	p.enter(a, b)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.leave(a, b)
	return p.result, p.effect
}

func (p *tracker) enter(a, b *object.Object) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	for _, idx := range []int{a.Handle.Index, b.Handle.Index} {
		if p.held[idx] > 0 {
			p.violations = append(p.violations, a.String()+" & "+b.String())
		}
		p.held[idx]++
	}
}

func (p *tracker) leave(a, b *object.Object) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.held[a.Handle.Index]--
	p.held[b.Handle.Index]--
}

func (p *tracker) handler(exec handler.ExecuteFunc) handler.Handler {
	return handler.Handler{Evaluate: p.evaluate, Execute: exec}
}

// trackerRegistry binds every pair kind the tests use to the tracker.
func trackerRegistry(t *testing.T, p *tracker, exec handler.ExecuteFunc) *classify.Registry {
	t.Helper()
	h := p.handler(exec)
	reg, err := classify.NewBuilder().
		Bind(classify.ShipWeapon, object.KindShip, object.KindWeapon, h).
		Bind(classify.DebrisWeapon, object.KindDebris, object.KindWeapon, h).
		Bind(classify.DebrisShip, object.KindDebris, object.KindShip, h).
		BindOrdered(classify.ShipShip, object.KindShip, object.KindShip, h, classify.ByIndex).
		Build()
	require.NoError(t, err)
	return reg
}

func TestNew_Defaults(t *testing.T) {
	e := newTestEngine(t, object.NewArena(4), classify.Default())
	assert.GreaterOrEqual(t, e.Workers(), 1)
	assert.Equal(t, int64(0), e.Clock().Frame())
	assert.False(t, e.Halted())
}

func TestNew_ClampsWorkers(t *testing.T) {
	e := newTestEngine(t, object.NewArena(4), classify.Default(), WithWorkers(0))
	assert.Equal(t, 1, e.Workers())
}

func TestNew_StartupErrors(t *testing.T) {
	_, err := New(nil, classify.Default())
	assert.True(t, IsStartupError(err))

	_, err = New(object.NewArena(1), nil)
	assert.True(t, IsStartupError(err))

	_, err = New(object.NewArena(1), classify.Default(), WithSafetyTimeout(0))
	assert.True(t, IsStartupError(err))

	_, err = New(object.NewArena(1), classify.Default(),
		WithRecheckIntervals(map[classify.PairKind]int64{classify.ShipShip: -5}))
	assert.True(t, IsStartupError(err))
}

func TestSubmit_Rejections(t *testing.T) {
	arena := object.NewArena(8)
	e := newTestEngine(t, arena, classify.Default(), WithWorkers(2))

	ship := spawn(arena, object.KindShip, "ship")
	ghost := arena.MustSpawn(object.Object{Kind: object.KindShip})
	child := arena.MustSpawn(object.Object{
		Kind: object.KindWeapon, Flags: object.FlagCollides, Parent: ship, Weapon: &object.WeaponState{},
	})
	shed := arena.MustSpawn(object.Object{Kind: object.KindDebris, Flags: object.FlagCollides, Parent: ship})
	rock := spawn(arena, object.KindDebris, "rock")
	gone := spawn(arena, object.KindWeapon, "gone")
	arena.Kill(gone)

	e.Clear()
	assert.False(t, e.Submit(ship, ship), "same object")
	assert.False(t, e.Submit(ship, ghost), "no collides flag")
	assert.False(t, e.Submit(ship, child), "own weapon")
	assert.False(t, e.Submit(ship, gone), "stale handle")
	assert.False(t, e.Submit(rock, shed), "debris-debris is unbound")
	assert.True(t, e.Submit(shed, ship), "a ship still hits its own debris")

	st := e.Stats()
	assert.Equal(t, 6, st.Submitted)
	assert.Equal(t, 4, st.Rejected)
	assert.Equal(t, 1, st.Unbound)
	assert.Equal(t, 1, st.Admitted)
}

func TestSubmit_BeamEarlyOut(t *testing.T) {
	arena := object.NewArena(4)
	e := newTestEngine(t, arena, classify.Default())

	beam := arena.MustSpawn(object.Object{
		Kind:  object.KindBeam,
		Flags: object.FlagCollides,
		Beam:  &object.BeamState{LastStart: mgl64.Vec3{0, 0, 0}, LastShot: mgl64.Vec3{0, 0, 100}, Width: 2},
	})
	near := arena.MustSpawn(object.Object{Kind: object.KindShip, Flags: object.FlagCollides, Pos: mgl64.Vec3{5, 0, 50}, Radius: 10})
	far := arena.MustSpawn(object.Object{Kind: object.KindShip, Flags: object.FlagCollides, Pos: mgl64.Vec3{500, 0, 50}, Radius: 10})

	e.Clear()
	assert.True(t, e.Submit(near, beam))
	assert.False(t, e.Submit(far, beam))
	assert.Equal(t, 1, e.Stats().EarlyOut)
}

func TestSubmit_DuplicateIsNoOp(t *testing.T) {
	arena := object.NewArena(4)
	p := newTracker(0)
	p.result = handler.Collision
	p.effect = handler.HitEffect{Damage: 1}

	executes := 0
	reg := trackerRegistry(t, p, func(handler.Mutator, *object.Object, *object.Object, handler.Effect) { executes++ })
	e := newTestEngine(t, arena, reg, WithWorkers(2),
		WithRecheckIntervals(map[classify.PairKind]int64{classify.ShipWeapon: 500}))

	s := spawn(arena, object.KindShip, "s")
	w := spawn(arena, object.KindWeapon, "w")

	e.Clock().Advance(16)
	e.Clear()
	assert.True(t, e.Submit(s, w))
	assert.False(t, e.Submit(w, s))
	e.Run()
	assert.Equal(t, 1, executes)
	assert.Len(t, e.WorkList(), 1)
	assert.Equal(t, 1, e.Stats().Duplicates)

	// inside the throttle window the pair is skipped entirely
	e.Clock().Advance(16)
	e.Clear()
	assert.False(t, e.Submit(s, w))
	e.Run()
	assert.Equal(t, 1, executes)
	assert.Equal(t, 1, e.Stats().Throttled)

	// once due it is checked again
	e.Clock().Advance(500)
	e.Clear()
	assert.True(t, e.Submit(s, w))
	e.Run()
	assert.Equal(t, 2, executes)
}

func TestSubmit_StaleSignatureResetsEntry(t *testing.T) {
	arena := object.NewArena(4)
	p := newTracker(0)

	var executedOn []object.Handle
	reg := trackerRegistry(t, p, func(_ handler.Mutator, _, b *object.Object, _ handler.Effect) {
		executedOn = append(executedOn, b.Handle)
	})
	e := newTestEngine(t, arena, reg, WithWorkers(2),
		WithRecheckIntervals(map[classify.PairKind]int64{classify.ShipWeapon: 10_000}))

	s := spawn(arena, object.KindShip, "s")
	oldW := spawn(arena, object.KindWeapon, "old")

	e.Clock().Advance(16)
	e.Clear()
	require.True(t, e.Submit(s, oldW))
	e.Run()
	entry := e.WorkList()[0]
	require.Equal(t, handler.NoCollision, entry.Result)
	require.Equal(t, cache.NextCheck(16+10_000), entry.NextCheck)

	require.True(t, arena.Kill(oldW))
	newW := spawn(arena, object.KindWeapon, "new")
	require.Equal(t, oldW.Index, newW.Index)

	p.result = handler.Collision
	p.effect = handler.HitEffect{Damage: 3}

	e.Clock().Advance(16)
	e.Clear()
	require.True(t, e.Submit(s, newW), "reset entry is due immediately")
	e.Run()

	got := e.WorkList()[0]
	assert.Same(t, entry, got, "same key, same entry")
	assert.Equal(t, newW, got.B)
	assert.Equal(t, []object.Handle{newW}, executedOn)
}

func TestSubmit_SlotReusedWithinFrameKeepsOneEntry(t *testing.T) {
	arena := object.NewArena(4)
	p := newTracker(0)
	p.result = handler.Collision
	p.effect = handler.HitEffect{Damage: 3}

	var executedOn []object.Handle
	reg := trackerRegistry(t, p, func(_ handler.Mutator, _, b *object.Object, _ handler.Effect) {
		executedOn = append(executedOn, b.Handle)
	})
	e := newTestEngine(t, arena, reg, WithWorkers(2), WithSafetyTimeout(2*time.Second))

	s := spawn(arena, object.KindShip, "s")
	oldW := spawn(arena, object.KindWeapon, "old")

	e.Clear()
	require.True(t, e.Submit(s, oldW))

	require.True(t, arena.Kill(oldW))
	newW := spawn(arena, object.KindWeapon, "new")
	require.Equal(t, oldW.Index, newW.Index)

	assert.False(t, e.Submit(s, newW), "the key already holds a work-list slot")
	require.Len(t, e.WorkList(), 1)
	assert.Equal(t, newW, e.WorkList()[0].B)
	assert.Equal(t, 1, e.Stats().Duplicates)

	e.Run()

	assert.False(t, e.Halted())
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, []object.Handle{newW}, executedOn)
	assert.Equal(t, cache.Executed, e.WorkList()[0].State)
}

func TestRun_SkipsEntryWhoseParticipantWasReplaced(t *testing.T) {
	arena := object.NewArena(4)
	p := newTracker(0)
	p.result = handler.Collision

	var records []Record
	reg := trackerRegistry(t, p, func(handler.Mutator, *object.Object, *object.Object, handler.Effect) {
		t.Error("execute must not run for a replaced participant")
	})
	e := newTestEngine(t, arena, reg, WithWorkers(2), WithSafetyTimeout(2*time.Second),
		WithObserver(ObserverFunc(func(r Record) { records = append(records, r) })))

	s := spawn(arena, object.KindShip, "s")
	w := spawn(arena, object.KindWeapon, "w")

	e.Clear()
	require.True(t, e.Submit(s, w))
	require.True(t, arena.Kill(w))
	spawn(arena, object.KindDebris, "d")

	e.Run()

	assert.Zero(t, p.calls, "nothing evaluates the new occupant under the old binding")
	require.Len(t, records, 1)
	assert.False(t, records[0].Applied)
	assert.Equal(t, cache.Executed, e.WorkList()[0].State)
}

func TestRun_ScenarioSharedWeapon(t *testing.T) {
	arena := object.NewArena(4)
	p := newTracker(5 * time.Millisecond)
	executed := 0
	reg := trackerRegistry(t, p, nil)
	e := newTestEngine(t, arena, reg, WithWorkers(2),
		WithObserver(ObserverFunc(func(Record) { executed++ })))

	shipA := spawn(arena, object.KindShip, "A")
	weaponB := spawn(arena, object.KindWeapon, "B")
	debrisC := spawn(arena, object.KindDebris, "C")

	e.Clear()
	require.True(t, e.Submit(shipA, weaponB))
	require.True(t, e.Submit(weaponB, debrisC))
	e.Run()

	assert.Empty(t, p.violations)
	assert.Equal(t, 2, p.calls)
	assert.Equal(t, 2, executed)
	for _, en := range e.WorkList() {
		assert.Equal(t, cache.Executed, en.State)
		assert.Equal(t, cache.PathParallel, en.Path)
	}
	st := e.Stats()
	assert.GreaterOrEqual(t, st.Deferred, 1, "the second pair waits for the first")
	assert.Equal(t, 1, st.MaxWorkers)
}

func TestRun_DisjointnessUnderLoad(t *testing.T) {
	const ships, weapons = 12, 12
	arena := object.NewArena(ships + weapons)
	p := newTracker(200 * time.Microsecond)
	reg := trackerRegistry(t, p, nil)

	executions := make(map[cache.Key]int)
	var order []int
	e := newTestEngine(t, arena, reg, WithWorkers(6),
		WithObserver(ObserverFunc(func(r Record) {
			executions[r.Key]++
			order = append(order, r.Position)
		})))

	var hs []object.Handle
	for i := 0; i < ships; i++ {
		hs = append(hs, spawn(arena, object.KindShip, ""))
	}
	for i := 0; i < weapons; i++ {
		hs = append(hs, spawn(arena, object.KindWeapon, ""))
	}

	for frame := 0; frame < 3; frame++ {
		clear(executions)
		order = order[:0]

		e.Clock().Advance(16)
		e.Clear()
		admitted := 0
		for i := range hs {
			for j := i + 1; j < len(hs); j++ {
				if e.Submit(hs[i], hs[j]) {
					admitted++
				}
			}
		}
		e.Run()

		require.Empty(t, p.violations, "frame %d", frame)
		assert.Len(t, executions, admitted)
		assert.Equal(t, admitted, e.Stats().Parallel, "every entry is handed out exactly once")
		for k, n := range executions {
			assert.Equal(t, 1, n, "pair %s executed %d times", k, n)
		}
		for i, pos := range order {
			assert.Equal(t, i, pos, "execute follows work-list order")
		}
		for _, en := range e.WorkList() {
			assert.Equal(t, cache.Executed, en.State)
		}
	}
	assert.Greater(t, e.WorkersRecord(), 1)
}

func TestRun_SequentialPaths(t *testing.T) {
	arena := object.NewArena(4)
	fallbacks := 0
	serial := handler.Handler{Fallback: func(handler.Mutator, *object.Object, *object.Object) bool {
		fallbacks++
		return true
	}}
	reg, err := classify.NewBuilder().
		Bind(classify.AsteroidShip, object.KindAsteroid, object.KindShip, serial).
		Bind(classify.ShipWeapon, object.KindShip, object.KindWeapon, handler.ProjectileHit()).
		Build()
	require.NoError(t, err)

	var recs []Record
	e := newTestEngine(t, arena, reg, WithWorkers(3),
		WithObserver(ObserverFunc(func(r Record) { recs = append(recs, r) })))

	rock := spawn(arena, object.KindAsteroid, "rock")
	s := spawn(arena, object.KindShip, "s")

	e.Clear()
	require.True(t, e.Submit(s, rock))
	e.Run()

	require.Len(t, recs, 1)
	assert.Equal(t, cache.PathSequential, recs[0].Path)
	assert.Equal(t, handler.NeverAgain, recs[0].Result)
	assert.True(t, recs[0].Applied)
	assert.Equal(t, 1, fallbacks)
	assert.Equal(t, cache.Never, e.WorkList()[0].NextCheck)
	assert.Equal(t, 1, e.Stats().Sequential)
}

func TestRun_SingleWorkerIsSequential(t *testing.T) {
	arena := object.NewArena(4)
	var recs []Record
	e := newTestEngine(t, arena, classify.Default(), WithWorkers(1),
		WithObserver(ObserverFunc(func(r Record) { recs = append(recs, r) })))

	s := arena.MustSpawn(object.Object{Kind: object.KindShip, Flags: object.FlagCollides, Radius: 10, Hull: 100})
	w := arena.MustSpawn(object.Object{
		Kind: object.KindWeapon, Flags: object.FlagCollides, Radius: 1,
		LastPos: mgl64.Vec3{-30, 0, 0}, Pos: mgl64.Vec3{0, 0, 0},
		Weapon: &object.WeaponState{Damage: 20},
	})

	e.Clear()
	require.True(t, e.Submit(w, s))
	e.Run()

	require.Len(t, recs, 1)
	assert.Equal(t, cache.PathSequential, recs[0].Path)
	assert.Equal(t, handler.Collision, recs[0].Result)
	assert.Equal(t, 80.0, arena.Resolve(s).Hull)
	assert.True(t, arena.Resolve(w).Has(object.FlagShouldBeDead))
}

func TestRun_DeadParticipantNotApplied(t *testing.T) {
	arena := object.NewArena(4)
	var recs []Record
	e := newTestEngine(t, arena, classify.Default(), WithWorkers(2),
		WithObserver(ObserverFunc(func(r Record) { recs = append(recs, r) })))

	a := arena.MustSpawn(object.Object{Kind: object.KindShip, Flags: object.FlagCollides, Radius: 10, Hull: 100})
	b := arena.MustSpawn(object.Object{Kind: object.KindShip, Flags: object.FlagCollides, Pos: mgl64.Vec3{3, 0, 0}, Radius: 10, Hull: 100})
	w := arena.MustSpawn(object.Object{
		Kind: object.KindWeapon, Flags: object.FlagCollides, Radius: 1,
		LastPos: mgl64.Vec3{-30, 0, 0}, Pos: mgl64.Vec3{5, 0, 0},
		Weapon: &object.WeaponState{Damage: 20},
	})

	e.Clear()
	require.True(t, e.Submit(a, w))
	require.True(t, e.Submit(b, w))
	e.Run()

	require.Len(t, recs, 2)
	assert.True(t, recs[0].Applied)
	assert.Equal(t, handler.Collision, recs[1].Result)
	assert.False(t, recs[1].Applied, "the weapon was already spent on the first ship")
	assert.Equal(t, 80.0, arena.Resolve(a).Hull)
	assert.Equal(t, 100.0, arena.Resolve(b).Hull)
}

func TestRun_WeaponWeaponTieBreakIsReproducible(t *testing.T) {
	var firsts []object.Handle
	for run := 0; run < 10; run++ {
		arena := object.NewArena(4)
		var first object.Handle
		e := newTestEngine(t, arena, classify.Default(), WithWorkers(2),
			WithObserver(ObserverFunc(func(r Record) { first = r.A })))

		x := arena.MustSpawn(object.Object{Kind: object.KindWeapon, Flags: object.FlagCollides, Team: 1,
			Weapon: &object.WeaponState{HitPoints: 25}})
		y := arena.MustSpawn(object.Object{Kind: object.KindWeapon, Flags: object.FlagCollides, Team: 2,
			Weapon: &object.WeaponState{HitPoints: 25}})

		e.Clear()
		if run%2 == 0 {
			require.True(t, e.Submit(x, y))
		} else {
			require.True(t, e.Submit(y, x))
		}
		e.Run()
		firsts = append(firsts, first)
	}
	for _, f := range firsts {
		assert.Equal(t, firsts[0], f)
	}
	assert.Equal(t, 0, firsts[0].Index)
}

func TestStep_BroadPhaseFeedsSubmit(t *testing.T) {
	arena := object.NewArena(8)
	var pairs []classify.PairKind
	e := newTestEngine(t, arena, classify.Default(), WithWorkers(2), WithSortGrain(1),
		WithObserver(ObserverFunc(func(r Record) { pairs = append(pairs, r.Pair) })))

	arena.MustSpawn(object.Object{Kind: object.KindShip, Flags: object.FlagCollides, Radius: 10, Hull: 100})
	arena.MustSpawn(object.Object{Kind: object.KindShip, Flags: object.FlagCollides, Pos: mgl64.Vec3{15, 0, 0}, Radius: 10, Hull: 100})
	arena.MustSpawn(object.Object{Kind: object.KindShip, Flags: object.FlagCollides, Pos: mgl64.Vec3{500, 0, 0}, Radius: 10, Hull: 100})

	e.Clock().Advance(16)
	e.Step(arena.Live())

	assert.Equal(t, []classify.PairKind{classify.ShipShip}, pairs)
	assert.Equal(t, 1, e.Stats().Submitted)
}

func TestClose_Idempotent(t *testing.T) {
	e, err := New(object.NewArena(1), classify.Default(), WithWorkers(4), WithLogger(quietLogger()))
	require.NoError(t, err)
	e.Close()
	e.Close()

	e.Clear()
	e.Run()
	assert.Empty(t, e.WorkList())
}
