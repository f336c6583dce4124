package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"defiBacktest/internal/broker"
)

// Store persists run results to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertNetValues writes the net-value series of one run. Re-running
// the same run id overwrites the snapshots in place.
func (s *Store) UpsertNetValues(ctx context.Context, runID string, timestamps []time.Time, values []decimal.Decimal) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if len(timestamps) != len(values) {
		return fmt.Errorf("series length mismatch: %d timestamps, %d values", len(timestamps), len(values))
	}
	if len(timestamps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, ts := range timestamps {
		batch.Queue(`
			INSERT INTO backtest_net_values (run_id, bar_ts, net_value, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
			ON CONFLICT (run_id, bar_ts)
			DO UPDATE SET net_value = EXCLUDED.net_value, updated_at = now()
		`,
			runID,
			ts.UTC(),
			values[i],
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range timestamps {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceActions rewrites the action history of one run.
func (s *Store) ReplaceActions(ctx context.Context, runID string, actions []broker.Action) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM backtest_actions WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear actions: %w", err)
	}
	if len(actions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for seq, action := range actions {
		payload, err := json.Marshal(action)
		if err != nil {
			return fmt.Errorf("marshal action %d: %w", seq, err)
		}
		batch.Queue(`
			INSERT INTO backtest_actions (run_id, seq, market, kind, bar_ts, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
		`,
			runID,
			seq,
			action.MarketName(),
			string(action.Kind()),
			action.At().UTC(),
			payload,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range actions {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
