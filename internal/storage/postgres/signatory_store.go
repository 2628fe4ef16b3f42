// Package postgres provides the Postgres-backed signatory store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openletter/petitiond/internal/petition"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "signatories"

// StoreConfig controls the Postgres connection pool behind the store.
type StoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// AcquireTimeout bounds how long a request may wait for a pooled
	// connection before the query fails instead of hanging.
	AcquireTimeout time.Duration
}

// querierCloser is the slice of pgxpool.Pool the store needs; pgxmock
// satisfies it in tests.
type querierCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// SignatoryStore reads and writes signatory rows in Postgres.
type SignatoryStore struct {
	pool           querierCloser
	table          string
	acquireTimeout time.Duration
}

// NewSignatoryStore connects a pool using the provided config.
func NewSignatoryStore(ctx context.Context, cfg StoreConfig) (*SignatoryStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &SignatoryStore{
		pool:           pool,
		table:          table,
		acquireTimeout: cfg.AcquireTimeout,
	}, nil
}

// NewSignatoryStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewSignatoryStoreWithPool(pool querierCloser, table string) (*SignatoryStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SignatoryStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *SignatoryStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// queryCtx derives the context queries run under. The acquire timeout,
// when set, keeps a saturated pool from blocking a request forever.
func (s *SignatoryStore) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.acquireTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.acquireTimeout)
}

// Insert appends one signatory row. The type discriminator column is
// left to its schema default of 'sig' so new rows are visible to the
// listing queries.
func (s *SignatoryStore) Insert(ctx context.Context, rec petition.Signatory) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("signatory store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	name,
	title,
	email,
	organisation,
	url,
	comment,
	mailing_list_opt_in,
	created_on
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)`, s.table)

	optIn := 0
	if rec.MailingListOptIn {
		optIn = 1
	}
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()
	args := []any{
		rec.Name,
		rec.Title,
		rec.Email,
		rec.Organisation,
		rec.URL,
		rec.Comment,
		optIn,
		rec.CreatedOn,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert signatory: %w", err)
	}
	return nil
}

// ListSignatories returns every signature row in a fresh random order.
// The engine-side random sort is re-drawn on every call; no ordering is
// promised to callers.
func (s *SignatoryStore) ListSignatories(ctx context.Context) ([]petition.DisplaySignatory, error) {
	query := fmt.Sprintf(
		`SELECT name, title, organisation, url, comment FROM %s WHERE type = 'sig' ORDER BY random()`,
		s.table,
	)
	rows, err := s.queryDisplay(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list signatories: %w", err)
	}
	return rows, nil
}

// ListQuotes returns at most three random rows carrying a non-empty
// comment.
func (s *SignatoryStore) ListQuotes(ctx context.Context) ([]petition.DisplaySignatory, error) {
	query := fmt.Sprintf(
		`SELECT name, title, organisation, url, comment FROM %s WHERE type = 'sig' AND comment <> '' ORDER BY random() LIMIT 3`,
		s.table,
	)
	rows, err := s.queryDisplay(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	return rows, nil
}

func (s *SignatoryStore) queryDisplay(ctx context.Context, query string) ([]petition.DisplaySignatory, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("signatory store is not configured")
	}
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := []petition.DisplaySignatory{}
	for rows.Next() {
		var d petition.DisplaySignatory
		if err := rows.Scan(&d.Name, &d.Title, &d.Organisation, &d.URL, &d.Comment); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
