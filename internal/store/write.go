package store

import (
	"context"
	"fmt"

	"github.com/roach88/supercollider/internal/cache"
	"github.com/roach88/supercollider/internal/handler"
	"github.com/roach88/supercollider/internal/object"
)

// Run is one stored execution of a scenario.
type Run struct {
	ID       string
	Scenario string
	Workers  int
	Frames   int
	Digest   string // empty until FinishRun
	Seq      int64
}

// Collision is one executed work-list entry.
type Collision struct {
	RunID    string
	Frame    int64
	Position int
	Pair     string
	A, B     object.Handle
	AName    string
	BName    string
	Path     string
	Result   string
	Applied  bool
	Effect   handler.Effect
}

// WriteRun inserts a run and assigns its seq. Writing the same ID twice
// is an error.
func (s *Store) WriteRun(ctx context.Context, run Run) (Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return Run{}, fmt.Errorf("write run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, workers, frames, digest, seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Scenario, run.Workers, run.Frames, run.Digest, seq)
	if err != nil {
		return Run{}, fmt.Errorf("write run %s: %w", run.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write run: commit: %w", err)
	}
	run.Seq = seq
	return run, nil
}

// FinishRun records the trace digest of a completed run.
func (s *Store) FinishRun(ctx context.Context, runID, digest string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET digest = ? WHERE id = ?`, digest, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: rows affected: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// WriteCollisions inserts a batch of collisions in one transaction. Either
// every row is written or none is. A row with an unknown evaluation path
// fails the whole batch.
func (s *Store) WriteCollisions(ctx context.Context, rows []Collision) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write collisions: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO collisions
		(run_id, frame, position, pair_kind, a_index, a_signature, b_index, b_signature, a_name, b_name, path, result, applied, effect)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write collisions: prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range rows {
		if _, err := cache.ParsePath(c.Path); err != nil {
			return fmt.Errorf("write collisions: frame %d position %d: %w", c.Frame, c.Position, err)
		}
		blob, err := marshalEffect(c.Effect)
		if err != nil {
			return fmt.Errorf("write collisions: frame %d position %d: %w", c.Frame, c.Position, err)
		}
		_, err = stmt.ExecContext(ctx,
			c.RunID,
			c.Frame,
			c.Position,
			c.Pair,
			c.A.Index,
			c.A.Signature,
			c.B.Index,
			c.B.Signature,
			c.AName,
			c.BName,
			c.Path,
			c.Result,
			c.Applied,
			blob,
		)
		if err != nil {
			return fmt.Errorf("write collisions: frame %d position %d: %w", c.Frame, c.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write collisions: commit: %w", err)
	}
	return nil
}
