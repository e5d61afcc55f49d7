// internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/brandview-ai/brandview-workflows/internal/config"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Client wraps the shared database handle.
type Client struct {
	DB *sqlx.DB
}

// NewClient connects to Postgres with the pool settings from config.
func NewClient(ctx context.Context, cfg config.DatabaseConfig) (*Client, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)

	db, err := sqlx.ConnectContext(ctx, "postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{DB: db}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// Migrate applies pending schema migrations from the given source
// directory (file://migrations in production).
func Migrate(databaseURL, sourceURL string) error {
	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Store aggregates all pipeline repositories over one database client.
type Store struct {
	db *Client

	AuditJobs *AuditJobRepo
	Companies *CompanyRepo
	Queries   *QueryRepo
	Responses *ResponseRepo
	Analyses  *AnalysisRepo
	Summaries *SummaryRepo
}

// NewStore creates a store with every repository wired to the client.
func NewStore(db *Client) *Store {
	return &Store{
		db:        db,
		AuditJobs: NewAuditJobRepo(db),
		Companies: NewCompanyRepo(db),
		Queries:   NewQueryRepo(db),
		Responses: NewResponseRepo(db),
		Analyses:  NewAnalysisRepo(db),
		Summaries: NewSummaryRepo(db),
	}
}

// BeginTx starts a database transaction.
func (s *Store) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return s.db.DB.BeginTxx(ctx, nil)
}
