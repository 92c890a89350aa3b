package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/supercollider/internal/object"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun writes a run with minimal fields.
func createTestRun(t *testing.T, s *Store, id string) Run {
	t.Helper()
	run, err := s.WriteRun(context.Background(), Run{ID: id, Scenario: "test", Workers: 2, Frames: 3})
	if err != nil {
		t.Fatalf("WriteRun(%s) failed: %v", id, err)
	}
	return run
}

// createTestCollision builds a collision row without an effect.
func createTestCollision(runID string, frame int64, position int, pair string) Collision {
	return Collision{
		RunID:    runID,
		Frame:    frame,
		Position: position,
		Pair:     pair,
		A:        object.Handle{Index: position, Signature: 1},
		B:        object.Handle{Index: position + 1, Signature: 2},
		AName:    "alpha",
		BName:    "bolt",
		Path:     "parallel",
		Result:   "no_collision",
	}
}
