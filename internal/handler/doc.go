// Package handler defines narrow-phase collision handlers and the built-in
// rules for every supported pair kind.
//
// A Handler is a triple of functions:
//
//	Evaluate(a, b) (Result, Effect)      // read-only, runs on workers
//	Execute(m, a, b, effect)             // mutating, frame goroutine only
//	Fallback(m, a, b) (neverAgain bool)  // serial check-and-apply
//
// Evaluate must be a pure function of its two participants. The dispatcher
// in package engine guarantees no two concurrent evaluations share a
// participant, so Evaluate may read a and b without locks but must not touch
// any other object or global state.
//
// Execute receives the Effect its own Evaluate produced and applies it
// through a Mutator. All executes for a frame run serially in work-list
// order, so the Mutator needs no synchronization.
//
// Handlers whose Evaluate is nil are "fallback-only"; the engine runs them
// on the sequential path in place of the evaluate/execute split.
//
// # Participant order
//
// Handlers are always called with participants in canonical order (see
// package classify). The built-ins rely on it: ProjectileHit expects the
// solid object first and the weapon second; BeamHit expects the beam first;
// WeaponWeapon expects the side with hit points first.
package handler
