package classify

import (
	"fmt"

	"github.com/roach88/supercollider/internal/handler"
	"github.com/roach88/supercollider/internal/object"
)

// PairKind names a bound pair of object kinds, primary side first.
type PairKind uint8

const (
	ShipWeapon PairKind = iota
	DebrisWeapon
	AsteroidWeapon
	DebrisShip
	AsteroidShip
	ShipShip
	WeaponWeapon
	BeamShip
	BeamAsteroid
	BeamDebris
	BeamWeapon

	// NumPairKinds bounds every PairKind value.
	NumPairKinds
)

var pairNames = [NumPairKinds]string{
	ShipWeapon:     "ship-weapon",
	DebrisWeapon:   "debris-weapon",
	AsteroidWeapon: "asteroid-weapon",
	DebrisShip:     "debris-ship",
	AsteroidShip:   "asteroid-ship",
	ShipShip:       "ship-ship",
	WeaponWeapon:   "weapon-weapon",
	BeamShip:       "beam-ship",
	BeamAsteroid:   "beam-asteroid",
	BeamDebris:     "beam-debris",
	BeamWeapon:     "beam-weapon",
}

func (p PairKind) String() string {
	if p < NumPairKinds {
		return pairNames[p]
	}
	return fmt.Sprintf("pair(%d)", p)
}

// ParsePairKind converts a pair name such as "ship-weapon" back to a PairKind.
func ParsePairKind(s string) (PairKind, error) {
	for p, name := range pairNames {
		if name == s {
			return PairKind(p), nil
		}
	}
	return 0, fmt.Errorf("unknown pair kind %q", s)
}

// IsBeam reports whether p has a beam as its primary side.
func (p PairKind) IsBeam() bool {
	return p >= BeamShip && p <= BeamWeapon
}

// OrderFunc orders two objects of the same kind. It returns ok=false when
// the pair must be dropped.
type OrderFunc func(a, b *object.Object) (first, second *object.Object, ok bool)

// Binding is the canonical handler binding for one pair kind.
type Binding struct {
	Pair    PairKind
	First   object.Kind
	Second  object.Kind
	Handler handler.Handler

	// Order breaks ties between two objects of the same kind. Unused when
	// First != Second.
	Order OrderFunc
}

// Classification is the result of a kind-level lookup.
type Classification struct {
	Binding *Binding
	// Swap is true when the caller must exchange its inputs so the
	// Binding.First kind comes first.
	Swap bool
}

// Registry is the immutable kind-pair to handler table.
//
// A Registry is built once by a Builder and never mutated afterwards, so it
// is safe for unsynchronized concurrent reads.
type Registry struct {
	table    [object.NumKinds][object.NumKinds]*Binding
	bindings [NumPairKinds]*Binding
}

// Classify looks up the binding for two kinds. It does not allocate.
func (r *Registry) Classify(a, b object.Kind) (Classification, bool) {
	if a >= object.NumKinds || b >= object.NumKinds {
		return Classification{}, false
	}
	bind := r.table[a][b]
	if bind == nil {
		return Classification{}, false
	}
	return Classification{Binding: bind, Swap: a != bind.First}, true
}

// Canonicalize returns a and b in the order their handler expects, together
// with the binding. ok is false when the kinds have no binding or a
// same-kind tie-break rejects the pair.
func (r *Registry) Canonicalize(a, b *object.Object) (first, second *object.Object, bind *Binding, ok bool) {
	c, ok := r.Classify(a.Kind, b.Kind)
	if !ok {
		return nil, nil, nil, false
	}
	bind = c.Binding
	if bind.First == bind.Second {
		order := bind.Order
		if order == nil {
			order = ByIndex
		}
		first, second, ok = order(a, b)
		if !ok {
			return nil, nil, nil, false
		}
		return first, second, bind, true
	}
	if c.Swap {
		return b, a, bind, true
	}
	return a, b, bind, true
}

// Binding returns the binding for p, or nil when p is unbound.
func (r *Registry) Binding(p PairKind) *Binding {
	if p >= NumPairKinds {
		return nil
	}
	return r.bindings[p]
}

// Bindings returns every bound pair kind in PairKind order.
func (r *Registry) Bindings() []*Binding {
	out := make([]*Binding, 0, NumPairKinds)
	for _, b := range r.bindings {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// ByIndex orders two objects by ascending arena index.
func ByIndex(a, b *object.Object) (*object.Object, *object.Object, bool) {
	if b.Handle.Index < a.Handle.Index {
		return b, a, true
	}
	return a, b, true
}

// ByHitPoints orders two weapons so the side with hit points is primary.
//
// Weapons without hit points cannot damage each other, so a pair where
// both are at zero is dropped. Equal positive values fall back to arena
// index so the result never depends on submission order.
func ByHitPoints(a, b *object.Object) (*object.Object, *object.Object, bool) {
	ha, hb := hitPoints(a), hitPoints(b)
	switch {
	case ha <= 0 && hb <= 0:
		return nil, nil, false
	case ha <= 0:
		return b, a, true
	case hb <= 0:
		return a, b, true
	}
	return ByIndex(a, b)
}

func hitPoints(o *object.Object) float64 {
	if o.Weapon == nil {
		return 0
	}
	return o.Weapon.HitPoints
}
