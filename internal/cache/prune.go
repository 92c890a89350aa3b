package cache

import (
	"github.com/roach88/supercollider/internal/classify"
	"github.com/roach88/supercollider/internal/object"
)

const (
	// aiProximityFactor and aiProximityPad define the distance rule for
	// weapons fired by non-player ships against debris.
	aiProximityFactor = 4.0
	aiProximityPad    = 200.0
)

// prune applies the submission-time heuristics that mark a pair Never
// before any narrow-phase test. Participants are in canonical order.
func prune(arena *object.Arena, pair classify.PairKind, first, second *object.Object) bool {
	switch pair {
	case classify.DebrisWeapon:
		return pruneDebrisWeapon(arena, first, second)
	case classify.ShipWeapon:
		return pruneFriendlyLaser(arena, first, second)
	}
	return false
}

func pruneDebrisWeapon(arena *object.Arena, debris, weapon *object.Object) bool {
	ws := weapon.Weapon
	if ws == nil || ws.Homing {
		return false
	}

	// debris behind the weapon, and not closing, can never be hit
	var vdot float64
	if ws.Laser {
		vdot = -weapon.Vel.Sub(debris.Vel).Dot(weapon.Forward)
	} else {
		vdot = debris.Vel.Dot(weapon.Vel)
	}
	if vdot <= 0 {
		pdot := weapon.Forward.Dot(debris.Pos.Sub(weapon.Pos))
		if pdot <= -debris.Radius {
			return true
		}
	}

	// out of reach within the weapon's remaining life
	dv := weapon.Vel.Sub(debris.Vel)
	off := debris.Pos.Sub(weapon.Pos)
	if ws.Lifetime > 0 && off.Dot(off) > dv.Dot(dv)*ws.LifeLeft*ws.LifeLeft {
		return true
	}

	// Non-player weapons close to debris are dropped. The rule reads as
	// the inverse of its intent but is kept as observed.
	if parent := arena.Resolve(weapon.Parent); parent != nil && !parent.Has(object.FlagPlayerShip) {
		if off.Len() < aiProximityFactor*debris.Radius+aiProximityPad {
			return true
		}
	}
	return false
}

// pruneFriendlyLaser drops lasers fired by a non-player ship at a small
// ship on the shooter's team.
func pruneFriendlyLaser(arena *object.Arena, ship, weapon *object.Object) bool {
	ws := weapon.Weapon
	if ws == nil || !ws.Laser || !ship.Has(object.FlagSmallShip) {
		return false
	}
	parent := arena.Resolve(weapon.Parent)
	if parent == nil || parent.Has(object.FlagPlayerShip) {
		return false
	}
	return parent.Team == ship.Team
}
