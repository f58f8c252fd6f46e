// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cristian081496/ontario-directory-scraper/internal/member"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// MemberStoreConfig controls the Postgres connection pool used for member rows.
type MemberStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// MemberStore writes the exported members of each run into one table, keyed
// by run ID and row position.
type MemberStore struct {
	pool  pool
	table string
}

// NewMemberStore creates a Postgres-backed MemberStore using the provided config.
func NewMemberStore(ctx context.Context, cfg MemberStoreConfig) (*MemberStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &MemberStore{pool: p, table: table}, nil
}

// NewMemberStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewMemberStoreWithPool(p pool, table string) (*MemberStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &MemberStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = "members"
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *MemberStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the member table when it does not exist.
func (s *MemberStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id       text        NOT NULL,
	position     integer     NOT NULL,
	company_name text        NOT NULL,
	contact_name text        NOT NULL DEFAULT '',
	phone        text        NOT NULL DEFAULT '',
	email        text        NOT NULL DEFAULT '',
	city         text        NOT NULL DEFAULT '',
	province     text        NOT NULL DEFAULT '',
	website      text        NOT NULL DEFAULT '',
	member_type  text        NOT NULL DEFAULT '',
	profile_url  text        NOT NULL DEFAULT '',
	scraped_at   timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, position)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create member table: %w", err)
	}
	return nil
}

// SaveMembers replaces the rows of runID with records in one transaction.
func (s *MemberStore) SaveMembers(ctx context.Context, runID string, records []member.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("member store is not configured")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := s.insert(ctx, tx, runID, records); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit members: %w", err)
	}
	return nil
}

func (s *MemberStore) insert(ctx context.Context, tx pgx.Tx, runID string, records []member.Record) error {
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE run_id = $1`, s.table), runID); err != nil {
		return fmt.Errorf("clear run rows: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	position,
	company_name,
	contact_name,
	phone,
	email,
	city,
	province,
	website,
	member_type,
	profile_url
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`, s.table)
	for i, r := range records {
		if _, err := tx.Exec(ctx, query,
			runID,
			i,
			r.Company,
			r.ContactName,
			r.Phone,
			r.Email,
			r.City,
			r.Province,
			r.Website,
			r.MemberType,
			r.ProfileURL,
		); err != nil {
			return fmt.Errorf("insert member %d: %w", i, err)
		}
	}
	return nil
}
