// Package store is the persistence layer: a pooled Postgres connection and a
// synchronous façade used by Miner and Runner workers. It owns the core
// tables (repos, mined, stats); analysis-specific tables are created by the
// analysis's own Init.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// Repo is one row of the repos table.
type Repo struct {
	ID        int64  `db:"repo_id"`
	FullName  string `db:"name"`
	CloneURL  string `db:"clone_url"`
	StarCount int    `db:"stars"`
}

// Stats is one row of the stats table, recorded after a repository finishes
// mining.
type Stats struct {
	RepoID    int64 `db:"repo_id"`
	NFiles    int   `db:"n_files"`
	NSuccess  int   `db:"n_success"`
	NError    int   `db:"n_error"`
	ElapsedMs int64 `db:"elapsed_ms"`
}

const schema = `
CREATE TABLE IF NOT EXISTS repos (
	repo_id    BIGINT PRIMARY KEY,
	name       TEXT NOT NULL,
	clone_url  TEXT NOT NULL,
	stars      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS mined (
	repo_id BIGINT PRIMARY KEY REFERENCES repos(repo_id)
);

CREATE TABLE IF NOT EXISTS stats (
	repo_id    BIGINT PRIMARY KEY REFERENCES repos(repo_id),
	n_files    INTEGER NOT NULL,
	n_success  INTEGER NOT NULL,
	n_error    INTEGER NOT NULL,
	elapsed_ms BIGINT NOT NULL
);
`

// Store is the pooled, synchronous persistence façade.
type Store struct {
	db  *sqlx.DB
	log *logrus.Logger
}

// Config is the `database` TOML section.
type Config struct {
	User     string
	Password string
	Host     string
	Database string
}

func (c Config) dsn() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", c.User, c.Password, c.Host, c.Database)
}

// Open connects to Postgres, configures the pool, and ensures the core
// tables exist.
func Open(cfg Config, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	db, err := sqlx.Connect("pgx", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create core tables: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sqlx.DB, e.g. for an analysis's Init.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// UnminedRepos returns every repo with no corresponding row in mined, per
// spec §4.6: "select … from repos where repo_id not in (select repo_id from
// mined)".
func (s *Store) UnminedRepos(ctx context.Context) ([]Repo, error) {
	var repos []Repo
	query := `
		SELECT repo_id, name, clone_url, stars
		FROM repos
		WHERE repo_id NOT IN (SELECT repo_id FROM mined)
		ORDER BY repo_id
	`
	if err := s.db.SelectContext(ctx, &repos, query); err != nil {
		return nil, fmt.Errorf("list unmined repos: %w", err)
	}
	return repos, nil
}

// SaveRepo upserts a repository discovered by the search collaborator.
func (s *Store) SaveRepo(ctx context.Context, repo Repo) error {
	query := `
		INSERT INTO repos (repo_id, name, clone_url, stars)
		VALUES (:repo_id, :name, :clone_url, :stars)
		ON CONFLICT (repo_id) DO UPDATE SET
			name       = EXCLUDED.name,
			clone_url  = EXCLUDED.clone_url,
			stars      = EXCLUDED.stars
	`
	if _, err := s.db.NamedExecContext(ctx, query, repo); err != nil {
		return fmt.Errorf("save repo: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back otherwise. Intended for an analysis's Intern call, which owns the
// transaction it's handed.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkMined records that repo_id has completed a mine run. The Runner calls
// it even when intern failed (spec §4.6: "the repository is still marked
// mined" on intern failure, giving at-most-once semantics for repeat work),
// unless MarkMinedOnInternFailure is turned off.
func (s *Store) MarkMined(ctx context.Context, repoID int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO mined (repo_id) VALUES ($1) ON CONFLICT DO NOTHING`, repoID)
	if err != nil {
		return fmt.Errorf("mark mined: %w", err)
	}
	return nil
}

// SaveStats inserts the aggregate statistics for one mine run.
func (s *Store) SaveStats(ctx context.Context, st Stats) error {
	query := `
		INSERT INTO stats (repo_id, n_files, n_success, n_error, elapsed_ms)
		VALUES (:repo_id, :n_files, :n_success, :n_error, :elapsed_ms)
		ON CONFLICT (repo_id) DO UPDATE SET
			n_files    = EXCLUDED.n_files,
			n_success  = EXCLUDED.n_success,
			n_error    = EXCLUDED.n_error,
			elapsed_ms = EXCLUDED.elapsed_ms
	`
	if _, err := s.db.NamedExecContext(ctx, query, st); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}
