package broadphase

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/roach88/supercollider/internal/object"
)

// Project returns the broad-phase box for o.
//
// Beams span their last fired segment, weapons their swept path from
// LastPos to Pos; both are padded (by half the beam width or the weapon
// radius). Everything else is a cube of side 2*Radius around Pos.
func Project(o *object.Object) Collider {
	switch {
	case o.Kind == object.KindBeam && o.Beam != nil:
		return segmentBox(o.Handle.Index, o.Beam.LastStart, o.Beam.LastShot, o.Beam.Width/2)
	case o.Kind == object.KindWeapon:
		return segmentBox(o.Handle.Index, o.LastPos, o.Pos, o.Radius)
	}
	r := mgl64.Vec3{o.Radius, o.Radius, o.Radius}
	return Collider{Index: o.Handle.Index, Min: o.Pos.Sub(r), Max: o.Pos.Add(r)}
}

func segmentBox(index int, p0, p1 mgl64.Vec3, pad float64) Collider {
	c := Collider{Index: index}
	for axis := 0; axis < 3; axis++ {
		c.Min[axis] = math.Min(p0[axis], p1[axis]) - pad
		c.Max[axis] = math.Max(p0[axis], p1[axis]) + pad
	}
	return c
}

// Pair is a candidate pair of arena indices with A < B.
type Pair struct {
	A, B int
}

// Overlaps returns every pair of colliders whose boxes overlap on all three
// axes, sorted by (A, B). colliders is reordered in place.
//
// The list is sorted on x and cut into runs of chained overlapping
// intervals; each run with more than one member is sorted on y and cut
// again, then on z. Members of the final runs are tested pairwise.
func (s *Sorter) Overlaps(colliders []Collider) []Pair {
	var out []Pair
	s.collide(colliders, AxisX, &out)
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

func (s *Sorter) collide(list []Collider, axis int, out *[]Pair) {
	if len(list) < 2 {
		return
	}
	if axis > AxisZ {
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				if boxesOverlap(list[i], list[j]) {
					*out = append(*out, makePair(list[i].Index, list[j].Index))
				}
			}
		}
		return
	}

	s.Sort(list, axis)
	start := 0
	end := list[0].Max[axis]
	for i := 1; i <= len(list); i++ {
		if i < len(list) && list[i].Min[axis] <= end {
			end = math.Max(end, list[i].Max[axis])
			continue
		}
		s.collide(list[start:i], axis+1, out)
		if i < len(list) {
			start = i
			end = list[i].Max[axis]
		}
	}
}

func boxesOverlap(a, b Collider) bool {
	for axis := 0; axis < 3; axis++ {
		if a.Max[axis] < b.Min[axis] || b.Max[axis] < a.Min[axis] {
			return false
		}
	}
	return true
}

func makePair(a, b int) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}
