// Package postgres provides PostgreSQL infrastructure components: the state
// document store, schema migrations and the transactional event outbox.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/drfirst/go-referral/internal/domain/referral"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations
func Migrate(databaseURL string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(databaseURL))
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	version, dirty, _ := m.Version()
	logger.Info("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// migrateURL rewrites a postgres URL to the pgx/v5 migrate driver scheme
func migrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

// Connect opens a pool and verifies the server answers
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// StateStore keeps the state document in one app_state row
type StateStore struct {
	pool   *pgxpool.Pool
	key    string
	logger *zap.Logger
}

// NewStateStore creates a store for the row identified by key
func NewStateStore(pool *pgxpool.Pool, key string, logger *zap.Logger) *StateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateStore{pool: pool, key: key, logger: logger}
}

// Load returns the stored document
func (s *StateStore) Load(ctx context.Context) ([]byte, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM app_state WHERE state_key = $1`, s.key,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, referral.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return doc, nil
}

// Save upserts the document
func (s *StateStore) Save(ctx context.Context, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_state (state_key, document, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (state_key) DO UPDATE
		SET document = EXCLUDED.document, updated_at = NOW()
	`, s.key, string(data))
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Delete removes the row
func (s *StateStore) Delete(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM app_state WHERE state_key = $1`, s.key); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}
