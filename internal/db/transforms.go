package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/dice/internal/grid"
	"github.com/banshee-data/dice/internal/pipeline"
)

// TransformRecord is one row of the transform history.
type TransformRecord struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	Dims       grid.Dims       `json:"dims"`
	Input      []int           `json:"input"`
	Output     []int           `json:"output"`
	Params     pipeline.Params `json:"params"`
	Active     int             `json:"active"`
	Mean       float64         `json:"mean"`
	StdDev     float64         `json:"stddev"`
	DurationMs float64         `json:"duration_ms"`
	Error      string          `json:"error,omitempty"`
}

// RecordTransform stores r and trims the history to HistoryLimit rows.
func (db *DB) RecordTransform(ctx context.Context, r pipeline.Result) error {
	input, err := json.Marshal(nonNil(r.Input))
	if err != nil {
		return fmt.Errorf("failed to encode input: %w", err)
	}
	var output sql.NullString
	if r.Err == nil && r.Error == "" {
		b, err := json.Marshal(nonNil(r.Output))
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		output = sql.NullString{String: string(b), Valid: true}
	}
	var errText sql.NullString
	if r.Error != "" {
		errText = sql.NullString{String: r.Error, Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO transforms (
			transform_id, created_at, grid_rows, grid_cols, input, output,
			threshold, noise_level, seed, active, mean, stddev, duration_ns, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Time.UnixNano(), r.Dims.Rows, r.Dims.Cols, string(input), output,
		r.Params.Threshold, r.Params.NoiseLevel, r.Params.Seed,
		r.Active, r.Mean, r.StdDev, r.Duration.Nanoseconds(), errText,
	)
	if err != nil {
		return fmt.Errorf("failed to record transform %s: %w", r.ID, err)
	}

	if db.HistoryLimit > 0 {
		if _, err := db.PruneTransforms(ctx, db.HistoryLimit); err != nil {
			return err
		}
	}
	return nil
}

// PruneTransforms deletes all but the newest keep rows and reports how many
// were removed.
func (db *DB) PruneTransforms(ctx context.Context, keep int) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM transforms WHERE transform_id NOT IN (
			SELECT transform_id FROM transforms ORDER BY created_at DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune transforms: %w", err)
	}
	return res.RowsAffected()
}

// RecentTransforms returns up to limit rows, newest first.
func (db *DB) RecentTransforms(ctx context.Context, limit int) ([]TransformRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT transform_id, created_at, grid_rows, grid_cols, input, output,
			threshold, noise_level, seed, active, mean, stddev, duration_ns, error
		FROM transforms ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []TransformRecord{}
	for rows.Next() {
		var (
			rec        TransformRecord
			createdAt  int64
			durationNs int64
			input      string
			output     sql.NullString
			errText    sql.NullString
		)
		if err := rows.Scan(
			&rec.ID, &createdAt, &rec.Dims.Rows, &rec.Dims.Cols, &input, &output,
			&rec.Params.Threshold, &rec.Params.NoiseLevel, &rec.Params.Seed,
			&rec.Active, &rec.Mean, &rec.StdDev, &durationNs, &errText,
		); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		rec.DurationMs = float64(durationNs) / float64(time.Millisecond)
		rec.Error = errText.String
		if err := json.Unmarshal([]byte(input), &rec.Input); err != nil {
			return nil, fmt.Errorf("transform %s: bad input column: %w", rec.ID, err)
		}
		if output.Valid {
			if err := json.Unmarshal([]byte(output.String), &rec.Output); err != nil {
				return nil, fmt.Errorf("transform %s: bad output column: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func nonNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
