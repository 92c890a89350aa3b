package testutil

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/roach88/supercollider/internal/object"
)

// Ship returns a colliding ship at pos.
func Ship(name string, pos mgl64.Vec3, radius, hull float64) object.Object {
	return object.Object{
		Kind:    object.KindShip,
		Name:    name,
		Flags:   object.FlagCollides,
		Pos:     pos,
		LastPos: pos,
		Radius:  radius,
		Hull:    hull,
	}
}

// Debris returns a colliding debris chunk at pos.
func Debris(name string, pos mgl64.Vec3, radius, hull float64) object.Object {
	o := Ship(name, pos, radius, hull)
	o.Kind = object.KindDebris
	return o
}

// Asteroid returns a colliding asteroid at pos.
func Asteroid(name string, pos mgl64.Vec3, radius float64) object.Object {
	o := Ship(name, pos, radius, 1000)
	o.Kind = object.KindAsteroid
	return o
}

// Shot returns an unguided weapon that moved from from to to this frame,
// heading along its travel. Lifetime 0 means it never expires.
func Shot(name string, from, to mgl64.Vec3, damage float64) object.Object {
	travel := to.Sub(from)
	fwd := mgl64.Vec3{}
	if travel.Len() > 0 {
		fwd = travel.Normalize()
	}
	return object.Object{
		Kind:    object.KindWeapon,
		Name:    name,
		Flags:   object.FlagCollides,
		Pos:     to,
		LastPos: from,
		Vel:     travel,
		Forward: fwd,
		Radius:  1,
		Weapon:  &object.WeaponState{Damage: damage},
	}
}

// Beam returns a beam firing from start to end this frame.
func Beam(name string, start, end mgl64.Vec3, width, damage float64) object.Object {
	return object.Object{
		Kind:    object.KindBeam,
		Name:    name,
		Flags:   object.FlagCollides,
		Pos:     start,
		LastPos: start,
		Radius:  width / 2,
		Beam:    &object.BeamState{LastStart: start, LastShot: end, Width: width, Damage: damage},
	}
}

// Spawn places every object in arena and returns the handles in order.
func Spawn(arena *object.Arena, objs ...object.Object) []object.Handle {
	out := make([]object.Handle, len(objs))
	for i, o := range objs {
		out[i] = arena.MustSpawn(o)
	}
	return out
}
