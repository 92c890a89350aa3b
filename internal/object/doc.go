// Package object defines the collidable entities the collision pipeline
// reads and the slot arena that owns them.
//
// Identity for caching is the pair (index, signature). Indices are reused
// when objects die and respawn; the signature distinguishes the new occupant
// from the previous one, so anything keyed by index must compare signatures
// before trusting what it remembers.
package object
