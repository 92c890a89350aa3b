package cache

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/supercollider/internal/classify"
	"github.com/roach88/supercollider/internal/handler"
	"github.com/roach88/supercollider/internal/object"
)

type fixture struct {
	arena *object.Arena
	reg   *classify.Registry
	cache *Cache
}

func newFixture() *fixture {
	arena := object.NewArena(8)
	return &fixture{arena: arena, reg: classify.Default(), cache: New(arena)}
}

func (f *fixture) spawn(o object.Object) *object.Object {
	o.Flags |= object.FlagCollides
	return f.arena.Resolve(f.arena.MustSpawn(o))
}

func (f *fixture) admit(t *testing.T, a, b *object.Object, pass uint64, now int64) (*Entry, Verdict) {
	t.Helper()
	first, second, bind, ok := f.reg.Canonicalize(a, b)
	require.True(t, ok)
	return f.cache.Admit(first, second, bind, pass, now)
}

func TestAdmit_FirstSightIsDueImmediately(t *testing.T) {
	f := newFixture()
	s := f.spawn(object.Object{Kind: object.KindShip, Radius: 10})
	w := f.spawn(object.Object{Kind: object.KindWeapon, Weapon: &object.WeaponState{}})

	e, v := f.admit(t, w, s, 1, 0)
	assert.Equal(t, Admitted, v)
	assert.Equal(t, Key{A: s.Handle.Index, B: w.Handle.Index}, e.Key, "key uses canonical order")
	assert.Equal(t, Immediately, e.NextCheck)
	assert.Equal(t, Unprocessed, e.State)
	assert.Equal(t, classify.ShipWeapon, e.Pair())
	assert.Equal(t, 1, f.cache.Len())
}

func TestAdmit_DuplicateInSamePass(t *testing.T) {
	f := newFixture()
	s := f.spawn(object.Object{Kind: object.KindShip})
	w := f.spawn(object.Object{Kind: object.KindWeapon, Weapon: &object.WeaponState{}})

	_, v := f.admit(t, s, w, 1, 0)
	require.Equal(t, Admitted, v)
	_, v = f.admit(t, w, s, 1, 0)
	assert.Equal(t, Duplicate, v)
	assert.Equal(t, 1, f.cache.Len())
}

func TestAdmit_ThrottleWindow(t *testing.T) {
	f := newFixture()
	s := f.spawn(object.Object{Kind: object.KindShip})
	w := f.spawn(object.Object{Kind: object.KindWeapon, Weapon: &object.WeaponState{}})

	e, v := f.admit(t, s, w, 1, 0)
	require.Equal(t, Admitted, v)
	e.Result = handler.NoCollision
	e.NextCheck = 250

	_, v = f.admit(t, s, w, 2, 100)
	assert.Equal(t, Throttled, v)
	_, v = f.admit(t, s, w, 3, 250)
	assert.Equal(t, Admitted, v)

	e.NextCheck = Never
	_, v = f.admit(t, s, w, 4, 1_000_000)
	assert.Equal(t, Throttled, v)
}

func TestAdmit_BeamsIgnoreThrottle(t *testing.T) {
	f := newFixture()
	b := f.spawn(object.Object{Kind: object.KindBeam, Beam: &object.BeamState{}})
	s := f.spawn(object.Object{Kind: object.KindShip})

	e, v := f.admit(t, s, b, 1, 0)
	require.Equal(t, Admitted, v)
	e.NextCheck = Never

	_, v = f.admit(t, s, b, 2, 10)
	assert.Equal(t, Admitted, v)
}

func TestAdmit_StaleSignatureResets(t *testing.T) {
	f := newFixture()
	s := f.spawn(object.Object{Kind: object.KindShip})
	w := f.spawn(object.Object{Kind: object.KindWeapon, Weapon: &object.WeaponState{}})
	oldHandle := w.Handle

	e, _ := f.admit(t, s, w, 1, 0)
	e.NextCheck = Never
	e.Result = handler.Collision
	e.Effect = handler.HitEffect{Damage: 99}
	e.State = Executed

	require.True(t, f.arena.Kill(oldHandle))
	w2 := f.spawn(object.Object{Kind: object.KindWeapon, Weapon: &object.WeaponState{}})
	require.Equal(t, oldHandle.Index, w2.Handle.Index)

	e2, v := f.admit(t, s, w2, 2, 0)
	assert.Equal(t, Admitted, v, "a reset entry ignores the old Never")
	assert.Same(t, e, e2)
	assert.Equal(t, w2.Handle, e2.B)
	assert.Equal(t, Immediately, e2.NextCheck)
	assert.Equal(t, handler.Unevaluated, e2.Result)
	assert.Nil(t, e2.Effect)
	assert.Equal(t, Unprocessed, e2.State)
}

func TestAdmit_SlotReusedWithinPassStaysSingle(t *testing.T) {
	f := newFixture()
	s := f.spawn(object.Object{Kind: object.KindShip})
	w := f.spawn(object.Object{Kind: object.KindWeapon, Weapon: &object.WeaponState{}})

	e, v := f.admit(t, s, w, 1, 0)
	require.Equal(t, Admitted, v)

	require.True(t, f.arena.Kill(w.Handle))
	w2 := f.spawn(object.Object{Kind: object.KindWeapon, Weapon: &object.WeaponState{}})
	require.Equal(t, w.Handle.Index, w2.Handle.Index)

	e2, v := f.admit(t, s, w2, 1, 0)
	assert.Equal(t, Duplicate, v, "the entry already holds a work-list slot this pass")
	assert.Same(t, e, e2)
	assert.Equal(t, w2.Handle, e2.B, "the slot now refers to the new occupant")
	assert.Equal(t, Unprocessed, e2.State)

	_, v = f.admit(t, s, w2, 2, 0)
	assert.Equal(t, Admitted, v)
}

func TestAdmit_FirstPassZeroIsNotDuplicate(t *testing.T) {
	f := newFixture()
	s := f.spawn(object.Object{Kind: object.KindShip})
	w := f.spawn(object.Object{Kind: object.KindWeapon, Weapon: &object.WeaponState{}})

	_, v := f.admit(t, s, w, 0, 0)
	assert.Equal(t, Admitted, v)
	_, v = f.admit(t, s, w, 0, 0)
	assert.Equal(t, Duplicate, v)
}

func TestAdmit_ThrottledEntryStateResets(t *testing.T) {
	f := newFixture()
	s := f.spawn(object.Object{Kind: object.KindShip})
	w := f.spawn(object.Object{Kind: object.KindWeapon, Weapon: &object.WeaponState{}})

	e, v := f.admit(t, s, w, 1, 0)
	require.Equal(t, Admitted, v)
	e.State = Executed
	e.NextCheck = 500

	_, v = f.admit(t, s, w, 2, 100)
	assert.Equal(t, Throttled, v)
	assert.Equal(t, Unprocessed, e.State, "every lookup in a new pass starts the entry over")
}

func TestIsDue(t *testing.T) {
	assert.True(t, IsDue(&Entry{NextCheck: Immediately}, 0))
	assert.True(t, IsDue(&Entry{NextCheck: 100}, 100))
	assert.False(t, IsDue(&Entry{NextCheck: 101}, 100))
	assert.False(t, IsDue(&Entry{NextCheck: Never}, 1<<40))
}

func TestPrune_DebrisBehindLaser(t *testing.T) {
	f := newFixture()
	d := f.spawn(object.Object{Kind: object.KindDebris, Pos: mgl64.Vec3{-50, 0, 0}, Radius: 5})
	w := f.spawn(object.Object{
		Kind:    object.KindWeapon,
		Vel:     mgl64.Vec3{100, 0, 0},
		Forward: mgl64.Vec3{1, 0, 0},
		Weapon:  &object.WeaponState{Laser: true, Lifetime: 2, LifeLeft: 2},
	})

	e, v := f.admit(t, w, d, 1, 0)
	assert.Equal(t, Pruned, v)
	assert.Equal(t, Never, e.NextCheck)

	_, v = f.admit(t, w, d, 2, 10)
	assert.Equal(t, Throttled, v)
}

func TestPrune_DebrisOutOfReach(t *testing.T) {
	f := newFixture()
	d := f.spawn(object.Object{Kind: object.KindDebris, Pos: mgl64.Vec3{1000, 0, 0}, Radius: 5})
	w := f.spawn(object.Object{
		Kind:    object.KindWeapon,
		Vel:     mgl64.Vec3{100, 0, 0},
		Forward: mgl64.Vec3{1, 0, 0},
		Weapon:  &object.WeaponState{Lifetime: 2, LifeLeft: 2},
	})

	_, v := f.admit(t, d, w, 1, 0)
	assert.Equal(t, Pruned, v)

	w.Weapon.Homing = true
	e, _ := f.cache.Get(Key{A: d.Handle.Index, B: w.Handle.Index})
	require.NotNil(t, e)
	_, v = f.admit(t, d, w, 2, 0)
	assert.Equal(t, Throttled, v, "pruning only runs on fresh entries")
}

func TestPrune_FriendlyLaserOnSmallShip(t *testing.T) {
	f := newFixture()
	shooter := f.spawn(object.Object{Kind: object.KindShip, Team: 1})
	wing := f.spawn(object.Object{Kind: object.KindShip, Team: 1, Flags: object.FlagSmallShip})
	w := f.spawn(object.Object{
		Kind:   object.KindWeapon,
		Parent: shooter.Handle,
		Weapon: &object.WeaponState{Laser: true},
	})

	_, v := f.admit(t, wing, w, 1, 0)
	assert.Equal(t, Pruned, v)

	f2 := newFixture()
	p := f2.spawn(object.Object{Kind: object.KindShip, Team: 1, Flags: object.FlagPlayerShip})
	wing2 := f2.spawn(object.Object{Kind: object.KindShip, Team: 1, Flags: object.FlagSmallShip})
	w2 := f2.spawn(object.Object{Kind: object.KindWeapon, Parent: p.Handle, Weapon: &object.WeaponState{Laser: true}})
	_, v = f2.admit(t, wing2, w2, 1, 0)
	assert.Equal(t, Admitted, v, "player fire is never pruned")
}

func TestEntry_Shares(t *testing.T) {
	e1 := &Entry{A: object.Handle{Index: 1}, B: object.Handle{Index: 2}}
	e2 := &Entry{A: object.Handle{Index: 2}, B: object.Handle{Index: 3}}
	e3 := &Entry{A: object.Handle{Index: 4}, B: object.Handle{Index: 5}}
	assert.True(t, e1.Shares(e2))
	assert.False(t, e1.Shares(e3))
}
