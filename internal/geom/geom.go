// Package geom holds the stateless intersection primitives used by narrow-phase
// collision handlers. Every function is pure and safe for concurrent use.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ClosestOnSegment returns the parameter t in [0,1] of the point on p0→p1
// closest to q.
func ClosestOnSegment(p0, p1, q mgl64.Vec3) float64 {
	d := p1.Sub(p0)
	dd := d.Dot(d)
	if dd == 0 {
		return 0
	}
	t := q.Sub(p0).Dot(d) / dd
	return clamp01(t)
}

// SegmentSphere reports whether the segment p0→p1 touches the sphere and,
// if so, the first point along the segment inside it.
func SegmentSphere(p0, p1, center mgl64.Vec3, radius float64) (mgl64.Vec3, bool) {
	d := p1.Sub(p0)
	t := ClosestOnSegment(p0, p1, center)
	closest := p0.Add(d.Mul(t))
	off := closest.Sub(center)
	dist2 := off.Dot(off)
	r2 := radius * radius
	if dist2 > r2 {
		return mgl64.Vec3{}, false
	}

	segLen := d.Len()
	if segLen == 0 {
		return p0, true
	}
	// back up from the closest point to where the segment enters the sphere
	back := math.Sqrt(r2-dist2) / segLen
	entry := clamp01(t - back)
	return p0.Add(d.Mul(entry)), true
}

// SphereSphere reports whether two static spheres overlap (touching counts).
func SphereSphere(a mgl64.Vec3, ar float64, b mgl64.Vec3, br float64) bool {
	off := a.Sub(b)
	r := ar + br
	return off.Dot(off) <= r*r
}

// SweptSpheres reports whether two spheres moving linearly over the same
// interval (p0→p1 and q0→q1) come within touching distance.
func SweptSpheres(p0, p1 mgl64.Vec3, pr float64, q0, q1 mgl64.Vec3, qr float64) bool {
	_, ok := SweptContact(p0, p1, pr, q0, q1, qr)
	return ok
}

// SweptContact is SweptSpheres that also returns the normalized time of
// closest approach.
func SweptContact(p0, p1 mgl64.Vec3, pr float64, q0, q1 mgl64.Vec3, qr float64) (float64, bool) {
	rel0 := p0.Sub(q0)
	relv := p1.Sub(p0).Sub(q1.Sub(q0))
	vv := relv.Dot(relv)
	t := 0.0
	if vv > 0 {
		t = clamp01(-rel0.Dot(relv) / vv)
	}
	at := rel0.Add(relv.Mul(t))
	r := pr + qr
	return t, at.Dot(at) <= r*r
}

// Lerp returns a + (b-a)*t.
func Lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
