package engine

import (
	"github.com/roach88/supercollider/internal/broadphase"
	"github.com/roach88/supercollider/internal/cache"
	"github.com/roach88/supercollider/internal/object"
)

// Submit offers a candidate pair for this frame. Pairs need not be
// pre-filtered. It returns true when the pair was added to the work list.
//
// Pairs are dropped, in order, when: either handle is stale or both name
// the same object; either object does not collide; one is the other's
// parent; the kinds have no binding; a beam cannot reach its target; or the
// cache throttles, prunes or has already admitted the pair this pass.
func (e *Engine) Submit(ha, hb object.Handle) bool {
	e.stats.Submitted++

	a, b := e.arena.Resolve(ha), e.arena.Resolve(hb)
	if a == nil || b == nil || a == b {
		e.stats.Rejected++
		return false
	}
	if !a.Has(object.FlagCollides) || !b.Has(object.FlagCollides) {
		e.stats.Rejected++
		return false
	}
	if rejectOnParent(a, b) {
		e.stats.Rejected++
		return false
	}

	first, second, bind, ok := e.registry.Canonicalize(a, b)
	if !ok {
		e.stats.Unbound++
		return false
	}
	if first.Kind == object.KindBeam && beamEarlyOut(first, second) {
		e.stats.EarlyOut++
		return false
	}

	entry, verdict := e.cache.Admit(first, second, bind, e.pass, e.clock.Now())
	switch verdict {
	case cache.Admitted:
		e.work = append(e.work, entry)
		e.stats.Admitted++
		return true
	case cache.Throttled:
		e.stats.Throttled++
	case cache.Pruned:
		e.stats.Pruned++
	case cache.Duplicate:
		e.stats.Duplicates++
	}
	return false
}

// rejectOnParent drops an object paired with its own parent or child. A
// ship still collides with debris it shed.
func rejectOnParent(a, b *object.Object) bool {
	if a.Kind == object.KindShip && b.Kind == object.KindDebris && b.Parent == a.Handle {
		return false
	}
	if b.Kind == object.KindShip && a.Kind == object.KindDebris && a.Parent == b.Handle {
		return false
	}
	return a.Parent == b.Handle || b.Parent == a.Handle
}

// beamEarlyOut reports whether target's bounding sphere is clear of the
// beam's padded box, so no narrow-phase test is needed this frame.
func beamEarlyOut(beam, target *object.Object) bool {
	if beam.Beam == nil {
		return true
	}
	box := broadphase.Project(beam)
	for axis := 0; axis < 3; axis++ {
		if target.Pos[axis]+target.Radius < box.Min[axis] || target.Pos[axis]-target.Radius > box.Max[axis] {
			return true
		}
	}
	return false
}
