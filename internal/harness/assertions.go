package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/supercollider/internal/object"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, event.Line())
	}

	return buf.String()
}

// assertCollisionCount checks the number of applied collisions of one pair kind.
func assertCollisionCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventCollision && event.Pair == assertion.Pair &&
			event.Applied && event.Result == "collision" {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertCollisionCount,
			Expected: fmt.Sprintf("%d %s collisions", assertion.Count, assertion.Pair),
			Actual:   fmt.Sprintf("%d collisions", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertDestroyed checks that the object was destroyed by a collision.
func assertDestroyed(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == EventDestroyed && event.Object == assertion.Object {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertDestroyed,
		Expected: fmt.Sprintf("%s destroyed", assertion.Object),
		Actual:   "not destroyed",
		Trace:    trace,
	}
}

// assertAlive checks that the object is live after the last frame.
func assertAlive(result *Result, assertion Assertion) error {
	for _, fs := range result.Final {
		if fs.Name == assertion.Object && fs.Alive {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertAlive,
		Expected: fmt.Sprintf("%s alive after the last frame", assertion.Object),
		Actual:   "removed or never spawned",
		Trace:    result.Trace,
	}
}

// assertExecutedOnce checks that no participant pair appears twice in one frame.
func assertExecutedOnce(trace []TraceEvent) error {
	type key struct {
		frame int64
		a, b  object.Handle
	}
	seen := make(map[key]int)
	for i, event := range trace {
		if event.Type != EventCollision {
			continue
		}
		k := key{event.Frame, event.AHandle, event.BHandle}
		if first, dup := seen[k]; dup {
			return &AssertionError{
				Type:     AssertExecutedOnce,
				Expected: "every pair executed at most once per frame",
				Actual: fmt.Sprintf("%s/%s executed at trace positions %d and %d in frame %d",
					event.A, event.B, first+1, i+1, event.Frame),
				Trace: trace,
			}
		}
		seen[k] = i
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertCollisionCount:
			err = assertCollisionCount(result.Trace, assertion)
		case AssertDestroyed:
			err = assertDestroyed(result.Trace, assertion)
		case AssertAlive:
			err = assertAlive(result, assertion)
		case AssertExecutedOnce:
			err = assertExecutedOnce(result.Trace)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
