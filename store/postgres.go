// Package store persists simulation runs and their score tables to Postgres.
// It is an optional surface for the simulation driver; the scoring core
// never depends on it.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"gosbic/internal/errors"
	"gosbic/sim"
)

const schema = `
CREATE TABLE IF NOT EXISTS sbic_runs (
	run_id     TEXT PRIMARY KEY,
	experiment TEXT NOT NULL,
	replicate  INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	sample_size INT NOT NULL,
	selected_bic INT NOT NULL,
	selected_sbic INT NOT NULL,
	score_table JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS sbic_tabulations (
	experiment TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	tabulation JSONB NOT NULL
);`

// RunRepository stores replicate results keyed by run id.
type RunRepository struct {
	db *sqlx.DB
}

// Open connects to Postgres and ensures the schema exists.
func Open(databaseURL string) (*RunRepository, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(errors.DatabaseError("failed to connect to postgres"), err.Error())
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "failed to ensure store schema")
	}
	return &RunRepository{db: db}, nil
}

// NewRunRepository wraps an existing connection (used by tests and callers
// that manage their own pool).
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Close releases the underlying pool.
func (r *RunRepository) Close() error {
	return r.db.Close()
}

// SaveResults inserts every successful replicate of an experiment.
func (r *RunRepository) SaveResults(ctx context.Context, experiment string, results []sim.ReplicateResult) error {
	query := `
		INSERT INTO sbic_runs (
			run_id, experiment, replicate, created_at,
			sample_size, selected_bic, selected_sbic, score_table
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO NOTHING`

	for _, res := range results {
		if res.Err != nil || res.Table == nil {
			continue
		}
		tableJSON, err := json.Marshal(res.Table.Normalized())
		if err != nil {
			return errors.Wrap(err, "failed to marshal score table")
		}
		_, err = r.db.ExecContext(ctx, query,
			res.RunID,
			experiment,
			res.Replicate,
			time.Now().UTC(),
			res.Table.SampleSize,
			res.Table.SelectedBIC,
			res.Table.SelectedSBIC,
			tableJSON,
		)
		if err != nil {
			return errors.Wrap(err, "failed to insert run")
		}
	}
	return nil
}

// SaveTabulation upserts the experiment's frequency table.
func (r *RunRepository) SaveTabulation(ctx context.Context, experiment string, tab sim.Tabulation) error {
	tabJSON, err := json.Marshal(tab)
	if err != nil {
		return errors.Wrap(err, "failed to marshal tabulation")
	}
	query := `
		INSERT INTO sbic_tabulations (experiment, created_at, tabulation)
		VALUES ($1, $2, $3)
		ON CONFLICT (experiment) DO UPDATE
		SET created_at = EXCLUDED.created_at, tabulation = EXCLUDED.tabulation`
	if _, err := r.db.ExecContext(ctx, query, experiment, time.Now().UTC(), tabJSON); err != nil {
		return errors.Wrap(err, "failed to upsert tabulation")
	}
	return nil
}

// CountRuns returns how many runs an experiment has stored.
func (r *RunRepository) CountRuns(ctx context.Context, experiment string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sbic_runs WHERE experiment = $1`, experiment); err != nil {
		return 0, errors.Wrap(err, "failed to count runs")
	}
	return count, nil
}
