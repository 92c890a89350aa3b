package handler

import "github.com/go-gl/mathgl/mgl64"

// Effect is the payload an evaluator hands to its executor.
//
// The set of variants is closed; each pair kind produces exactly one of them.
type Effect interface {
	// EffectType names the variant; it is also the wire tag used by the trace store.
	EffectType() string
	isEffect()
}

// HitEffect is a projectile striking a solid object.
type HitEffect struct {
	Point  mgl64.Vec3 `msgpack:"point"`
	Damage float64    `msgpack:"damage"`
}

// WeaponWeaponEffect carries the damage each weapon deals the other after armor.
type WeaponWeaponEffect struct {
	DamageToA  float64 `msgpack:"damage_to_a"`
	DamageToB  float64 `msgpack:"damage_to_b"`
	HitPointsA float64 `msgpack:"hp_a"`
	HitPointsB float64 `msgpack:"hp_b"`
	BombA      bool    `msgpack:"bomb_a"`
	BombB      bool    `msgpack:"bomb_b"`
}

// ContactEffect is two hulls touching.
type ContactEffect struct {
	Point   mgl64.Vec3 `msgpack:"point"`
	Normal  mgl64.Vec3 `msgpack:"normal"`
	Impulse float64    `msgpack:"impulse"`
}

// BeamEffect is a beam segment crossing an object.
type BeamEffect struct {
	Point  mgl64.Vec3 `msgpack:"point"`
	Damage float64    `msgpack:"damage"`
}

func (HitEffect) EffectType() string          { return "hit" }
func (WeaponWeaponEffect) EffectType() string { return "weapon_weapon" }
func (ContactEffect) EffectType() string      { return "contact" }
func (BeamEffect) EffectType() string         { return "beam" }

func (HitEffect) isEffect()          {}
func (WeaponWeaponEffect) isEffect() {}
func (ContactEffect) isEffect()      {}
func (BeamEffect) isEffect()         {}
