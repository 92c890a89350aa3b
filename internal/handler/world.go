package handler

import (
	"log/slog"

	"github.com/roach88/supercollider/internal/object"
)

// Mutator is the shared state that executors are allowed to change.
//
// Every method runs on the frame-driving goroutine only.
type Mutator interface {
	// Damage subtracts amount from a weapon's hit points or any other
	// object's hull, destroying it once the value reaches zero.
	Damage(o *object.Object, amount float64)
	// Destroy marks o for removal at the end of the frame.
	Destroy(o *object.Object)
	// AddScore credits points to team.
	AddScore(team int, points float64)
}

// World is the default Mutator. It records destructions in the order they
// happen so the frame owner can reap them, and keeps a per-team score.
type World struct {
	logger    *slog.Logger
	destroyed []object.Handle
	scores    map[int]float64
}

// NewWorld creates an empty World. A nil logger uses slog.Default().
func NewWorld(logger *slog.Logger) *World {
	if logger == nil {
		logger = slog.Default()
	}
	return &World{
		logger: logger,
		scores: make(map[int]float64),
	}
}

func (w *World) Damage(o *object.Object, amount float64) {
	if amount <= 0 || o.Has(object.FlagShouldBeDead) {
		return
	}
	if o.Weapon != nil {
		o.Weapon.HitPoints -= amount
		if o.Weapon.HitPoints <= 0 {
			o.Weapon.DestroyedByWeapon = true
			w.Destroy(o)
		}
		return
	}
	o.Hull -= amount
	if o.Hull <= 0 {
		w.Destroy(o)
	}
}

func (w *World) Destroy(o *object.Object) {
	if o.Has(object.FlagShouldBeDead) {
		return
	}
	o.Flags |= object.FlagShouldBeDead
	if o.Weapon != nil {
		// a dying weapon lingers for one tick so its impact can render
		o.Weapon.LifeLeft = 0.01
	}
	w.destroyed = append(w.destroyed, o.Handle)
	w.logger.Debug("object destroyed", "object", o.String())
}

func (w *World) AddScore(team int, points float64) {
	if points == 0 {
		return
	}
	w.scores[team] += points
}

// Destroyed returns the handles destroyed since the last Reset, in order.
func (w *World) Destroyed() []object.Handle {
	out := make([]object.Handle, len(w.destroyed))
	copy(out, w.destroyed)
	return out
}

// Score returns the accumulated score for team.
func (w *World) Score(team int) float64 {
	return w.scores[team]
}

// Reset clears the destruction queue. Scores persist.
func (w *World) Reset() {
	w.destroyed = w.destroyed[:0]
}
