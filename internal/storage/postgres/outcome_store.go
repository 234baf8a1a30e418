// Package postgres records monitoring outcomes in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/apify-webhook-monitor/internal/monitor"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for outcome rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// IDGenerator produces row ids.
type IDGenerator interface {
	NewID() (string, error)
}

// OutcomeStore appends one row per finished monitoring loop.
type OutcomeStore struct {
	pool  execCloser
	table string
	ids   IDGenerator
}

// NewOutcomeStore connects a pool using cfg.
func NewOutcomeStore(ctx context.Context, cfg Config, ids IDGenerator) (*OutcomeStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewOutcomeStoreWithPool(pool, cfg.Table, ids)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewOutcomeStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewOutcomeStoreWithPool(pool execCloser, table string, ids IDGenerator) (*OutcomeStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if table == "" {
		table = "run_outcomes"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &OutcomeStore{pool: pool, table: table, ids: ids}, nil
}

// EnsureSchema creates the outcome table when it does not exist yet.
func (s *OutcomeStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id              UUID PRIMARY KEY,
	run_id          TEXT NOT NULL,
	outcome         TEXT NOT NULL,
	state           TEXT NOT NULL,
	provider_status TEXT,
	attempts        INTEGER NOT NULL,
	records         INTEGER NOT NULL,
	dataset_id      TEXT,
	delivered       BOOLEAN NOT NULL,
	error_text      TEXT,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// ObserveOutcome inserts the outcome row.
func (s *OutcomeStore) ObserveOutcome(ctx context.Context, out monitor.Outcome) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("outcome store is not configured")
	}
	if out.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	id, err := s.ids.NewID()
	if err != nil {
		return fmt.Errorf("row id: %w", err)
	}
	var errText *string
	if out.Err != nil {
		msg := out.Err.Error()
		errText = &msg
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	run_id,
	outcome,
	state,
	provider_status,
	attempts,
	records,
	dataset_id,
	delivered,
	error_text,
	started_at,
	finished_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`, s.table)

	args := []any{
		id,
		out.RunID,
		out.Label(),
		string(out.State),
		out.ProviderStatus,
		out.Attempts,
		out.Records,
		out.DatasetID,
		out.Delivered,
		errText,
		out.StartedAt,
		out.FinishedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *OutcomeStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

var _ monitor.Observer = (*OutcomeStore)(nil)
