package classify

import (
	"fmt"

	"github.com/roach88/supercollider/internal/handler"
	"github.com/roach88/supercollider/internal/object"
)

// Builder assembles a Registry. It is not safe for concurrent use; call
// Build once and share the result.
type Builder struct {
	bindings [NumPairKinds]*Binding
	err      error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Bind registers h for pair p with first as the primary kind. Binding the
// same pair kind, or the same unordered kind pair, twice is an error
// reported by Build.
func (b *Builder) Bind(p PairKind, first, second object.Kind, h handler.Handler) *Builder {
	return b.BindOrdered(p, first, second, h, nil)
}

// BindOrdered is Bind with a same-kind tie-break.
func (b *Builder) BindOrdered(p PairKind, first, second object.Kind, h handler.Handler, order OrderFunc) *Builder {
	if b.err != nil {
		return b
	}
	if p >= NumPairKinds {
		b.err = fmt.Errorf("bind %s: pair kind out of range", p)
		return b
	}
	if b.bindings[p] != nil {
		b.err = fmt.Errorf("bind %s: already bound", p)
		return b
	}
	for _, other := range b.bindings {
		if other == nil {
			continue
		}
		if (other.First == first && other.Second == second) || (other.First == second && other.Second == first) {
			b.err = fmt.Errorf("bind %s: kinds %s/%s already bound to %s", p, first, second, other.Pair)
			return b
		}
	}
	b.bindings[p] = &Binding{Pair: p, First: first, Second: second, Handler: h, Order: order}
	return b
}

// Build freezes the bindings into a Registry.
func (b *Builder) Build() (*Registry, error) {
	if b.err != nil {
		return nil, b.err
	}
	r := &Registry{}
	for p, bind := range b.bindings {
		if bind == nil {
			continue
		}
		cp := *bind
		r.bindings[p] = &cp
		r.table[cp.First][cp.Second] = &cp
		r.table[cp.Second][cp.First] = &cp
	}
	return r, nil
}

// Default returns a Registry with the built-in handler for every pair kind.
// Asteroid-ship contact runs on the serial fallback path.
func Default() *Registry {
	r, err := NewBuilder().
		Bind(ShipWeapon, object.KindShip, object.KindWeapon, handler.ProjectileHit()).
		Bind(DebrisWeapon, object.KindDebris, object.KindWeapon, handler.ProjectileHit()).
		Bind(AsteroidWeapon, object.KindAsteroid, object.KindWeapon, handler.ProjectileHit()).
		Bind(DebrisShip, object.KindDebris, object.KindShip, handler.HullContact()).
		Bind(AsteroidShip, object.KindAsteroid, object.KindShip, handler.HullContactSerial()).
		BindOrdered(ShipShip, object.KindShip, object.KindShip, handler.HullContact(), ByIndex).
		BindOrdered(WeaponWeapon, object.KindWeapon, object.KindWeapon, handler.WeaponWeapon(), ByHitPoints).
		Bind(BeamShip, object.KindBeam, object.KindShip, handler.BeamHit()).
		Bind(BeamAsteroid, object.KindBeam, object.KindAsteroid, handler.BeamHit()).
		Bind(BeamDebris, object.KindBeam, object.KindDebris, handler.BeamHit()).
		Bind(BeamWeapon, object.KindBeam, object.KindWeapon, handler.BeamHit()).
		Build()
	if err != nil {
		panic(fmt.Sprintf("classify: default registry: %v", err))
	}
	return r
}
