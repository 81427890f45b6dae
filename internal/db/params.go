package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/dice/internal/pipeline"
)

// LoadParams returns the saved parameters. ok is false when nothing has been
// saved yet.
func (db *DB) LoadParams(ctx context.Context) (p pipeline.Params, ok bool, err error) {
	err = db.QueryRowContext(ctx,
		`SELECT threshold, noise_level, seed FROM parameters WHERE id = 1`,
	).Scan(&p.Threshold, &p.NoiseLevel, &p.Seed)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Params{}, false, nil
	}
	if err != nil {
		return pipeline.Params{}, false, fmt.Errorf("failed to load parameters: %w", err)
	}
	return p, true, nil
}

// SaveParams stores p, replacing any previous values.
func (db *DB) SaveParams(ctx context.Context, p pipeline.Params) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO parameters (id, threshold, noise_level, seed, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			threshold = excluded.threshold,
			noise_level = excluded.noise_level,
			seed = excluded.seed,
			updated_at = excluded.updated_at`,
		p.Threshold, p.NoiseLevel, p.Seed, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save parameters: %w", err)
	}
	return nil
}
