package handler

import (
	"fmt"

	"github.com/roach88/supercollider/internal/object"
)

// Result classifies the outcome of evaluating one pair.
type Result uint8

const (
	// Unevaluated means no evaluator has looked at the pair this frame.
	Unevaluated Result = iota
	// NoCollision means the pair does not touch now; recheck after the pair's interval.
	NoCollision
	// Collision means the pair touches; the effect must be applied by Execute.
	Collision
	// NeverAgain means the pair can never collide; the cache stops checking it.
	NeverAgain
)

var resultNames = [...]string{
	Unevaluated: "unevaluated",
	NoCollision: "no_collision",
	Collision:   "collision",
	NeverAgain:  "never",
}

func (r Result) String() string {
	if int(r) < len(resultNames) {
		return resultNames[r]
	}
	return fmt.Sprintf("result(%d)", r)
}

// EvaluateFunc decides whether a and b collide.
//
// Evaluate runs on worker goroutines concurrently with evaluations of other
// pairs. It may read a and b and nothing else that is mutable; the dispatcher
// guarantees no other goroutine touches a or b while it runs. The returned
// effect is only consulted when the result is Collision.
type EvaluateFunc func(a, b *object.Object) (Result, Effect)

// ExecuteFunc applies the effect of a collision. It only ever runs on the
// frame-driving goroutine, in work-list order, and may mutate shared state.
type ExecuteFunc func(m Mutator, a, b *object.Object, eff Effect)

// FallbackFunc checks and applies a pair in one step. It returns true when
// the pair never needs to be checked again.
type FallbackFunc func(m Mutator, a, b *object.Object) bool

// Handler is the {evaluate, execute, fallback} triple bound to a pair kind.
//
// A handler with a nil Evaluate is fallback-only and always runs serially.
type Handler struct {
	Evaluate EvaluateFunc
	Execute  ExecuteFunc
	Fallback FallbackFunc
}

// Parallel reports whether the handler can be evaluated on a worker.
func (h Handler) Parallel() bool {
	return h.Evaluate != nil
}

// Check runs the serial check-and-apply path for h.
//
// An explicit Fallback is opaque: its result is NeverAgain or Unevaluated.
// Without one, Evaluate and Execute are composed inline and the evaluated
// result is returned.
func (h Handler) Check(m Mutator, a, b *object.Object) Result {
	if h.Fallback != nil {
		if h.Fallback(m, a, b) {
			return NeverAgain
		}
		return Unevaluated
	}
	if h.Evaluate == nil {
		return NeverAgain
	}
	res, eff := h.Evaluate(a, b)
	if res == Collision && h.Execute != nil {
		h.Execute(m, a, b, eff)
	}
	return res
}
