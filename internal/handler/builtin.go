package handler

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/roach88/supercollider/internal/geom"
	"github.com/roach88/supercollider/internal/object"
)

const (
	// sameHeadingDot is the forward-vector dot product above which two
	// friendly weapons are considered to fly in formation.
	sameHeadingDot = 0.7

	// ContactDamageScale converts closing speed into hull damage for
	// hull-on-hull contact.
	ContactDamageScale = 0.05
)

// ProjectileHit handles a weapon (B) striking a solid object (A): ship,
// debris or asteroid. The weapon's swept segment is tested against A's
// bounding sphere.
func ProjectileHit() Handler {
	return Handler{Evaluate: evalProjectile, Execute: execProjectile}
}

func evalProjectile(target, weapon *object.Object) (Result, Effect) {
	if weapon.Weapon == nil {
		return NeverAgain, nil
	}
	if p, ok := geom.SegmentSphere(weapon.LastPos, weapon.Pos, target.Pos, target.Radius); ok {
		return Collision, HitEffect{Point: p, Damage: weapon.Weapon.Damage}
	}
	if WeaponWillNeverHit(weapon, target) {
		return NeverAgain, nil
	}
	return NoCollision, nil
}

func execProjectile(m Mutator, target, weapon *object.Object, eff Effect) {
	hit, ok := eff.(HitEffect)
	if !ok {
		return
	}
	m.Destroy(weapon)
	m.Damage(target, hit.Damage)
	m.AddScore(weapon.Team, hit.Damage)
}

// WeaponWillNeverHit reports whether an unguided weapon can no longer reach
// target within its remaining life, even if both close at full speed.
// Homing weapons and weapons without a lifetime are never written off.
func WeaponWillNeverHit(weapon, target *object.Object) bool {
	ws := weapon.Weapon
	if ws == nil || ws.Homing || ws.Lifetime <= 0 {
		return false
	}
	gap := target.Pos.Sub(weapon.Pos).Len() - target.Radius - weapon.Radius
	if gap <= 0 {
		return false
	}
	reach := (weapon.Vel.Len() + target.Vel.Len()) * ws.LifeLeft
	return reach < gap
}

// WeaponWeapon handles two weapons meeting in flight. A must be the side
// with hit points; B may have none, in which case it always dies.
func WeaponWeapon() Handler {
	return Handler{Evaluate: evalWeaponWeapon, Execute: execWeaponWeapon}
}

func evalWeaponWeapon(a, b *object.Object) (Result, Effect) {
	wa, wb := a.Weapon, b.Weapon
	if wa == nil || wb == nil {
		return NeverAgain, nil
	}
	// a ship cannot shoot down its own missile
	if !a.Parent.IsZero() && a.Parent == b.Parent {
		return NeverAgain, nil
	}
	if a.Team == b.Team && a.Forward.Dot(b.Forward) > sameHeadingDot {
		return NeverAgain, nil
	}

	ra, rb := a.Radius, b.Radius
	if wa.HitPoints > 0 {
		if !wa.HardTarget {
			ra *= 2
		}
		if !armed(wa) {
			return NoCollision, nil
		}
	}
	if wb.HitPoints > 0 {
		if !wb.HardTarget {
			rb *= 2
		}
		if !armed(wb) {
			return NoCollision, nil
		}
	}

	if !geom.SweptSpheres(a.LastPos, a.Pos, ra, b.LastPos, b.Pos, rb) {
		return NoCollision, nil
	}
	return Collision, WeaponWeaponEffect{
		DamageToA:  wb.Damage,
		DamageToB:  wa.Damage,
		HitPointsA: wa.HitPoints,
		HitPointsB: wb.HitPoints,
		BombA:      wa.Bomb,
		BombB:      wb.Bomb,
	}
}

func armed(ws *object.WeaponState) bool {
	return ws.Lifetime-ws.LifeLeft >= ws.ArmDelay
}

func execWeaponWeapon(m Mutator, a, b *object.Object, eff Effect) {
	e, ok := eff.(WeaponWeaponEffect)
	if !ok {
		return
	}
	wa, wb := a.Weapon, b.Weapon

	switch {
	case e.HitPointsA > 0 && e.HitPointsB > 0 && e.BombA && e.BombB:
		m.Damage(a, wa.HitPoints)
		m.Damage(b, wb.HitPoints)
	case e.HitPointsA > 0 && e.HitPointsB > 0:
		wa.HitPoints -= e.DamageToA
		wb.HitPoints -= e.DamageToB
		// at least one must go; the bulkier one keeps flying
		if wa.HitPoints > 0 && wb.HitPoints > 0 {
			if e.HitPointsA > e.HitPointsB {
				wb.HitPoints = -1
			} else {
				wa.HitPoints = -1
			}
		}
		if wa.HitPoints <= 0 {
			wa.DestroyedByWeapon = true
			m.Destroy(a)
		}
		if wb.HitPoints <= 0 {
			wb.DestroyedByWeapon = true
			m.Destroy(b)
		}
	case e.HitPointsA <= 0 && e.HitPointsB > 0:
		wa.DestroyedByWeapon = true
		m.Destroy(a)
		m.Damage(b, e.DamageToB)
	default:
		wb.DestroyedByWeapon = true
		m.Destroy(b)
		m.Damage(a, e.DamageToA)
	}

	if e.BombA {
		m.AddScore(b.Team, e.DamageToA)
	}
	if e.BombB {
		m.AddScore(a.Team, e.DamageToB)
	}
}

// HullContact handles two solid bodies touching. Each side takes damage
// proportional to the closing speed.
func HullContact() Handler {
	return Handler{Evaluate: evalContact, Execute: execContact}
}

// HullContactSerial is HullContact as a single check-and-apply step, for
// pairs that must not be evaluated off the frame goroutine.
func HullContactSerial() Handler {
	return Handler{Fallback: func(m Mutator, a, b *object.Object) bool {
		res, eff := evalContact(a, b)
		if res == Collision {
			execContact(m, a, b, eff)
		}
		return res == NeverAgain
	}}
}

func evalContact(a, b *object.Object) (Result, Effect) {
	t, ok := geom.SweptContact(a.LastPos, a.Pos, a.Radius, b.LastPos, b.Pos, b.Radius)
	if !ok {
		return NoCollision, nil
	}
	pa := geom.Lerp(a.LastPos, a.Pos, t)
	pb := geom.Lerp(b.LastPos, b.Pos, t)
	normal := pb.Sub(pa)
	if l := normal.Len(); l > 0 {
		normal = normal.Mul(1 / l)
	} else {
		normal = mgl64.Vec3{1, 0, 0}
	}
	closing := a.Vel.Sub(b.Vel).Dot(normal)
	if closing < 0 {
		closing = 0
	}
	return Collision, ContactEffect{
		Point:   pa.Add(normal.Mul(a.Radius)),
		Normal:  normal,
		Impulse: closing,
	}
}

func execContact(m Mutator, a, b *object.Object, eff Effect) {
	c, ok := eff.(ContactEffect)
	if !ok {
		return
	}
	dmg := c.Impulse * ContactDamageScale
	m.Damage(a, dmg)
	m.Damage(b, dmg)
}

// BeamHit handles a beam (A) sweeping across any other object. Beams are
// never written off: a miss only means the beam pointed elsewhere this frame.
func BeamHit() Handler {
	return Handler{Evaluate: evalBeam, Execute: execBeam}
}

func evalBeam(beam, target *object.Object) (Result, Effect) {
	bs := beam.Beam
	if bs == nil {
		return NoCollision, nil
	}
	p, ok := geom.SegmentSphere(bs.LastStart, bs.LastShot, target.Pos, target.Radius+bs.Width/2)
	if !ok {
		return NoCollision, nil
	}
	return Collision, BeamEffect{Point: p, Damage: bs.Damage}
}

func execBeam(m Mutator, beam, target *object.Object, eff Effect) {
	e, ok := eff.(BeamEffect)
	if !ok {
		return
	}
	m.Damage(target, e.Damage)
	m.AddScore(beam.Team, e.Damage)
}
