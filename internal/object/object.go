package object

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Kind is the closed set of collidable object types.
type Kind uint8

const (
	KindShip Kind = iota
	KindWeapon
	KindDebris
	KindAsteroid
	KindBeam

	// NumKinds bounds every Kind value; lookup tables are sized by it.
	NumKinds
)

var kindNames = [NumKinds]string{
	KindShip:     "ship",
	KindWeapon:   "weapon",
	KindDebris:   "debris",
	KindAsteroid: "asteroid",
	KindBeam:     "beam",
}

func (k Kind) String() string {
	if k < NumKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind converts a lowercase kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown object kind %q", s)
}

// Flags is a bit set of per-object properties.
type Flags uint16

const (
	// FlagCollides marks an object that takes part in collision detection at all.
	FlagCollides Flags = 1 << iota
	// FlagPlayerShip marks a ship flown by a player.
	FlagPlayerShip
	// FlagSmallShip marks fighters and bombers.
	FlagSmallShip
	// FlagShouldBeDead is set by the execute phase; the owner reaps the object after the frame.
	FlagShouldBeDead
)

// Handle is the cache identity of an object: its arena slot plus the
// signature issued when the current occupant was spawned.
type Handle struct {
	Index     int
	Signature uint64
}

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.Index, h.Signature)
}

// IsZero reports whether h was never issued by an arena.
func (h Handle) IsZero() bool {
	return h.Signature == 0
}

// WeaponState carries the weapon-specific fields the collision rules read.
type WeaponState struct {
	Damage    float64
	HitPoints float64
	Lifetime  float64 // seconds
	LifeLeft  float64 // seconds
	ArmDelay  float64 // seconds a bomb must fly before it can be shot down

	Homing     bool
	Laser      bool
	Bomb       bool
	HardTarget bool

	DestroyedByWeapon bool
}

// BeamState carries the last fired segment of a beam.
type BeamState struct {
	LastStart mgl64.Vec3
	LastShot  mgl64.Vec3
	Width     float64
	Damage    float64
}

// Object is an arena-resident collidable entity.
type Object struct {
	Handle Handle
	Kind   Kind
	Name   string
	Flags  Flags

	Pos     mgl64.Vec3
	LastPos mgl64.Vec3
	Vel     mgl64.Vec3
	Forward mgl64.Vec3

	Radius float64
	Hull   float64
	Team   int

	// Parent is the handle of the object that created this one (zero if none).
	Parent Handle

	Weapon *WeaponState
	Beam   *BeamState
}

// Has reports whether every bit of f is set.
func (o *Object) Has(f Flags) bool {
	return o.Flags&f == f
}

func (o *Object) String() string {
	if o.Name != "" {
		return fmt.Sprintf("%s(%s %s)", o.Name, o.Kind, o.Handle)
	}
	return fmt.Sprintf("%s %s", o.Kind, o.Handle)
}
