// Package classify maps pairs of object kinds to collision handlers.
//
// The Registry is a fixed [kind][kind] table built once at startup. Lookups
// are pure and allocation-free; a missing entry means the two kinds never
// collide.
//
// Canonical order: each Binding names its primary kind (First). Canonicalize
// swaps its inputs so handlers always see that kind first, regardless of
// submission order. For same-kind pairs the Binding's Order function decides:
// ship-ship orders by arena index, weapon-weapon puts the side with hit points
// first and drops pairs where neither has any.
package classify
