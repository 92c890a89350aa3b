// Package cache holds per-pair collision state that persists across frames.
//
// An Entry is addressed by a Key built from the canonical participant
// indices and remembers the participants' handles. Because arena slots are
// reused, every lookup compares the remembered signatures with the arena's
// current occupants; a mismatch hard-resets the entry so nothing computed
// against a dead object is ever applied to its replacement.
//
// Throttling: after a check the engine stores the next frame-clock time the
// pair is eligible again, or Never. Admit skips pairs that are not due.
// Beam pairs are exempt.
//
// Fresh and reset entries go through a few cheap heuristics instead
// (weapon behind debris, weapon out of reach, friendly lasers against small
// ships) that can mark the pair Never before any narrow-phase work.
package cache
