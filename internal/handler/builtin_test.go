package handler

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/supercollider/internal/object"
)

func ship(pos mgl64.Vec3, radius, hull float64) *object.Object {
	return &object.Object{
		Kind:    object.KindShip,
		Flags:   object.FlagCollides,
		Pos:     pos,
		LastPos: pos,
		Radius:  radius,
		Hull:    hull,
		Handle:  object.Handle{Index: 0, Signature: 1},
	}
}

func bolt(from, to mgl64.Vec3, damage float64) *object.Object {
	return &object.Object{
		Kind:    object.KindWeapon,
		Flags:   object.FlagCollides,
		LastPos: from,
		Pos:     to,
		Vel:     to.Sub(from),
		Radius:  1,
		Handle:  object.Handle{Index: 1, Signature: 2},
		Weapon:  &object.WeaponState{Damage: damage, Lifetime: 5, LifeLeft: 5},
	}
}

func TestProjectileHit_DamagesTargetAndDestroysWeapon(t *testing.T) {
	w := NewWorld(nil)
	target := ship(mgl64.Vec3{}, 10, 100)
	shot := bolt(mgl64.Vec3{-30, 0, 0}, mgl64.Vec3{0, 0, 0}, 25)

	h := ProjectileHit()
	res, eff := h.Evaluate(target, shot)
	require.Equal(t, Collision, res)
	hit, ok := eff.(HitEffect)
	require.True(t, ok)
	assert.InDelta(t, -10, hit.Point.X(), 1e-9)

	h.Execute(w, target, shot, eff)
	assert.Equal(t, 75.0, target.Hull)
	assert.True(t, shot.Has(object.FlagShouldBeDead))
	assert.Equal(t, []object.Handle{shot.Handle}, w.Destroyed())
	assert.Equal(t, 25.0, w.Score(0))
}

func TestProjectileHit_NeverWhenOutOfReach(t *testing.T) {
	target := ship(mgl64.Vec3{1000, 0, 0}, 10, 100)
	shot := bolt(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, 5)
	shot.Weapon.LifeLeft = 1

	res, _ := ProjectileHit().Evaluate(target, shot)
	assert.Equal(t, NeverAgain, res)

	shot.Weapon.Homing = true
	res, _ = ProjectileHit().Evaluate(target, shot)
	assert.Equal(t, NoCollision, res, "homing weapons are never written off")
}

func weapon(idx int, hp, damage float64, from, to mgl64.Vec3) *object.Object {
	o := bolt(from, to, damage)
	o.Handle = object.Handle{Index: idx, Signature: uint64(idx + 10)}
	o.Weapon.HitPoints = hp
	return o
}

func TestWeaponWeapon_SameParentNeverCollides(t *testing.T) {
	parent := object.Handle{Index: 9, Signature: 99}
	a := weapon(1, 10, 5, mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{5, 0, 0})
	b := weapon(2, 0, 5, mgl64.Vec3{5, 0, 0}, mgl64.Vec3{-5, 0, 0})
	a.Parent, b.Parent = parent, parent
	a.Team, b.Team = 1, 2

	res, _ := WeaponWeapon().Evaluate(a, b)
	assert.Equal(t, NeverAgain, res)
}

func TestWeaponWeapon_FriendlyFormation(t *testing.T) {
	a := weapon(1, 10, 5, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{10, 0, 0})
	b := weapon(2, 0, 5, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{10, 1, 0})
	a.Forward, b.Forward = mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0}

	res, _ := WeaponWeapon().Evaluate(a, b)
	assert.Equal(t, NeverAgain, res)
}

func TestWeaponWeapon_UnarmedBombIsIgnored(t *testing.T) {
	a := weapon(1, 10, 5, mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{5, 0, 0})
	a.Weapon.Bomb = true
	a.Weapon.ArmDelay = 1
	b := weapon(2, 0, 5, mgl64.Vec3{5, 0, 0}, mgl64.Vec3{-5, 0, 0})
	b.Team = 1

	res, _ := WeaponWeapon().Evaluate(a, b)
	assert.Equal(t, NoCollision, res)

	a.Weapon.LifeLeft = 3.5
	res, _ = WeaponWeapon().Evaluate(a, b)
	assert.Equal(t, Collision, res)
}

func TestWeaponWeapon_LaserShootsDownBomb(t *testing.T) {
	w := NewWorld(nil)
	a := weapon(1, 10, 100, mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{5, 0, 0})
	a.Weapon.Bomb = true
	b := weapon(2, 0, 4, mgl64.Vec3{5, 0, 0}, mgl64.Vec3{-5, 0, 0})
	b.Team = 1

	h := WeaponWeapon()
	res, eff := h.Evaluate(a, b)
	require.Equal(t, Collision, res)
	h.Execute(w, a, b, eff)

	assert.True(t, b.Has(object.FlagShouldBeDead))
	assert.True(t, b.Weapon.DestroyedByWeapon)
	assert.False(t, a.Has(object.FlagShouldBeDead))
	assert.Equal(t, 6.0, a.Weapon.HitPoints)
}

func TestWeaponWeapon_BulkierSurvives(t *testing.T) {
	w := NewWorld(nil)
	a := weapon(1, 50, 1, mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{5, 0, 0})
	b := weapon(2, 20, 1, mgl64.Vec3{5, 0, 0}, mgl64.Vec3{-5, 0, 0})
	b.Team = 1

	h := WeaponWeapon()
	_, eff := h.Evaluate(a, b)
	h.Execute(w, a, b, eff)

	assert.False(t, a.Has(object.FlagShouldBeDead))
	assert.True(t, b.Has(object.FlagShouldBeDead))
}

func TestWeaponWeapon_TwoBombsDetonate(t *testing.T) {
	w := NewWorld(nil)
	a := weapon(1, 50, 1, mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{5, 0, 0})
	b := weapon(2, 20, 1, mgl64.Vec3{5, 0, 0}, mgl64.Vec3{-5, 0, 0})
	a.Weapon.Bomb, b.Weapon.Bomb = true, true
	b.Team = 1

	h := WeaponWeapon()
	_, eff := h.Evaluate(a, b)
	h.Execute(w, a, b, eff)

	assert.Len(t, w.Destroyed(), 2)
}

func TestHullContact_BothSidesDamaged(t *testing.T) {
	w := NewWorld(nil)
	a := ship(mgl64.Vec3{0, 0, 0}, 5, 100)
	a.LastPos = mgl64.Vec3{-20, 0, 0}
	a.Vel = mgl64.Vec3{200, 0, 0}
	b := ship(mgl64.Vec3{8, 0, 0}, 5, 100)

	h := HullContact()
	res, eff := h.Evaluate(a, b)
	require.Equal(t, Collision, res)
	c := eff.(ContactEffect)
	assert.InDelta(t, 1, c.Normal.X(), 1e-9)
	assert.InDelta(t, 200, c.Impulse, 1e-9)

	h.Execute(w, a, b, eff)
	assert.InDelta(t, 90, a.Hull, 1e-9)
	assert.InDelta(t, 90, b.Hull, 1e-9)
}

func TestHullContactSerial_UsesFallbackPath(t *testing.T) {
	h := HullContactSerial()
	assert.False(t, h.Parallel())

	w := NewWorld(nil)
	a := ship(mgl64.Vec3{0, 0, 0}, 5, 1)
	a.Vel = mgl64.Vec3{100, 0, 0}
	b := ship(mgl64.Vec3{6, 0, 0}, 5, 100)

	assert.Equal(t, Unevaluated, h.Check(w, a, b))
	assert.True(t, a.Has(object.FlagShouldBeDead), "5 damage destroys a 1-hull ship")
}

func TestBeamHit(t *testing.T) {
	w := NewWorld(nil)
	beam := &object.Object{
		Kind: object.KindBeam,
		Team: 3,
		Beam: &object.BeamState{
			LastStart: mgl64.Vec3{0, 0, 0},
			LastShot:  mgl64.Vec3{0, 0, 100},
			Width:     4,
			Damage:    12,
		},
	}
	target := ship(mgl64.Vec3{11, 0, 50}, 10, 40)

	h := BeamHit()
	res, eff := h.Evaluate(beam, target)
	require.Equal(t, Collision, res, "width widens the target sphere")
	h.Execute(w, beam, target, eff)
	assert.Equal(t, 28.0, target.Hull)
	assert.Equal(t, 12.0, w.Score(3))

	target.Pos = mgl64.Vec3{50, 0, 50}
	res, _ = h.Evaluate(beam, target)
	assert.Equal(t, NoCollision, res, "beams miss but are never written off")
}

func TestCheck_ComposesEvaluateAndExecute(t *testing.T) {
	w := NewWorld(nil)
	target := ship(mgl64.Vec3{}, 10, 100)
	shot := bolt(mgl64.Vec3{-30, 0, 0}, mgl64.Vec3{0, 0, 0}, 40)

	assert.Equal(t, Collision, ProjectileHit().Check(w, target, shot))
	assert.Equal(t, 60.0, target.Hull)
}

func TestWorld_DestroyIsIdempotent(t *testing.T) {
	w := NewWorld(nil)
	o := ship(mgl64.Vec3{}, 1, 10)
	w.Destroy(o)
	w.Destroy(o)
	w.Damage(o, 100)
	assert.Len(t, w.Destroyed(), 1)
	assert.Equal(t, 10.0, o.Hull, "dead objects take no further damage")

	w.Reset()
	assert.Empty(t, w.Destroyed())
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "collision", Collision.String())
	assert.Equal(t, "never", NeverAgain.String())
	assert.Equal(t, "result(9)", Result(9).String())
}
