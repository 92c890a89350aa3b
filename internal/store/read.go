package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ReadRun returns a run by ID, or ErrNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, workers, frames, digest, seq
		FROM runs
		WHERE id = ?
	`, id)

	var r Run
	err := row.Scan(&r.ID, &r.Scenario, &r.Workers, &r.Frames, &r.Digest, &r.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns every run ordered by seq.
// Returns an empty slice (not nil) for an empty store.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, workers, frames, digest, seq
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Scenario, &r.Workers, &r.Frames, &r.Digest, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadCollisions returns the stored trace of a run in execute order.
// Returns an empty slice (not nil) if the run has no collisions.
func (s *Store) ReadCollisions(ctx context.Context, runID string) ([]Collision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, frame, position, pair_kind, a_index, a_signature, b_index, b_signature, a_name, b_name, path, result, applied, effect
		FROM collisions
		WHERE run_id = ?
		ORDER BY frame ASC, position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query collisions: %w", err)
	}
	defer rows.Close()

	out := []Collision{}
	for rows.Next() {
		c, err := scanCollision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collisions: %w", err)
	}
	return out, nil
}

// CountByPair returns how many collisions of each pair kind a run executed
// with an applied result.
func (s *Store) CountByPair(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pair_kind, COUNT(*)
		FROM collisions
		WHERE run_id = ? AND applied = 1
		GROUP BY pair_kind
		ORDER BY pair_kind
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("count collisions: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var pair string
		var n int
		if err := rows.Scan(&pair, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[pair] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

func scanCollision(rows *sql.Rows) (Collision, error) {
	var c Collision
	var blob []byte
	err := rows.Scan(
		&c.RunID,
		&c.Frame,
		&c.Position,
		&c.Pair,
		&c.A.Index,
		&c.A.Signature,
		&c.B.Index,
		&c.B.Signature,
		&c.AName,
		&c.BName,
		&c.Path,
		&c.Result,
		&c.Applied,
		&blob,
	)
	if err != nil {
		return Collision{}, fmt.Errorf("scan collision: %w", err)
	}
	c.Effect, err = unmarshalEffect(blob)
	if err != nil {
		return Collision{}, fmt.Errorf("frame %d position %d: %w", c.Frame, c.Position, err)
	}
	return c, nil
}
