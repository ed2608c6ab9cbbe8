// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/oakmere/vaultd/internal/model"
	"github.com/oakmere/vaultd/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *model.VaultSession) error {
	return queryCreateSession(ctx, s.db, sess)
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.VaultSession, error) {
	return queryGetSession(ctx, s.db, id, false)
}

func (s *PostgresStore) GetSessionForUpdate(ctx context.Context, id string) (*model.VaultSession, error) {
	return queryGetSession(ctx, s.db, id, true)
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter model.SessionFilter) ([]*model.VaultSession, int, error) {
	return queryListSessions(ctx, s.db, filter)
}

func (s *PostgresStore) UpdateSession(ctx context.Context, sess *model.VaultSession) error {
	return queryUpdateSession(ctx, s.db, sess)
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	return queryDeleteSession(ctx, s.db, id)
}

func (s *PostgresStore) CreateGrant(ctx context.Context, g *model.DelegationGrant) error {
	return queryCreateGrant(ctx, s.db, g)
}

func (s *PostgresStore) GetGrantBySession(ctx context.Context, sessionID string) (*model.DelegationGrant, error) {
	return queryGetGrantBySession(ctx, s.db, sessionID)
}

func (s *PostgresStore) RevokeGrant(ctx context.Context, id string, at time.Time) error {
	return queryRevokeGrant(ctx, s.db, id, at)
}

func (s *PostgresStore) AppendEntry(ctx context.Context, e *model.LedgerEntry) error {
	return queryAppendEntry(ctx, s.db, e)
}

func (s *PostgresStore) ListEntries(ctx context.Context, sessionID string) ([]*model.LedgerEntry, error) {
	return queryListEntries(ctx, s.db, sessionID)
}

func (s *PostgresStore) GetAccount(ctx context.Context, wallet string) (*model.Account, error) {
	return queryGetAccount(ctx, s.db, wallet)
}

func (s *PostgresStore) CreditAccount(ctx context.Context, wallet string, amount uint64) error {
	return queryCreditAccount(ctx, s.db, wallet, amount)
}

func (s *PostgresStore) Transfer(ctx context.Context, from, to string, amount uint64) error {
	return queryTransfer(ctx, s.db, from, to, amount)
}

func (s *PostgresStore) DeleteAccount(ctx context.Context, wallet string) error {
	return queryDeleteAccount(ctx, s.db, wallet)
}

func (s *PostgresStore) UpsertMirror(ctx context.Context, m *model.SessionMirror) error {
	return queryUpsertMirror(ctx, s.db, m)
}

func (s *PostgresStore) GetMirror(ctx context.Context, sessionID string) (*model.SessionMirror, error) {
	return queryGetMirror(ctx, s.db, sessionID)
}

func (s *PostgresStore) ListMirrors(ctx context.Context, status model.MirrorStatus) ([]*model.SessionMirror, error) {
	return queryListMirrors(ctx, s.db, status)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateSession(ctx context.Context, sess *model.VaultSession) error {
	return queryCreateSession(ctx, s.tx, sess)
}

func (s *txStore) GetSession(ctx context.Context, id string) (*model.VaultSession, error) {
	return queryGetSession(ctx, s.tx, id, false)
}

func (s *txStore) GetSessionForUpdate(ctx context.Context, id string) (*model.VaultSession, error) {
	return queryGetSession(ctx, s.tx, id, true)
}

func (s *txStore) ListSessions(ctx context.Context, filter model.SessionFilter) ([]*model.VaultSession, int, error) {
	return queryListSessions(ctx, s.tx, filter)
}

func (s *txStore) UpdateSession(ctx context.Context, sess *model.VaultSession) error {
	return queryUpdateSession(ctx, s.tx, sess)
}

func (s *txStore) DeleteSession(ctx context.Context, id string) error {
	return queryDeleteSession(ctx, s.tx, id)
}

func (s *txStore) CreateGrant(ctx context.Context, g *model.DelegationGrant) error {
	return queryCreateGrant(ctx, s.tx, g)
}

func (s *txStore) GetGrantBySession(ctx context.Context, sessionID string) (*model.DelegationGrant, error) {
	return queryGetGrantBySession(ctx, s.tx, sessionID)
}

func (s *txStore) RevokeGrant(ctx context.Context, id string, at time.Time) error {
	return queryRevokeGrant(ctx, s.tx, id, at)
}

func (s *txStore) AppendEntry(ctx context.Context, e *model.LedgerEntry) error {
	return queryAppendEntry(ctx, s.tx, e)
}

func (s *txStore) ListEntries(ctx context.Context, sessionID string) ([]*model.LedgerEntry, error) {
	return queryListEntries(ctx, s.tx, sessionID)
}

func (s *txStore) GetAccount(ctx context.Context, wallet string) (*model.Account, error) {
	return queryGetAccount(ctx, s.tx, wallet)
}

func (s *txStore) CreditAccount(ctx context.Context, wallet string, amount uint64) error {
	return queryCreditAccount(ctx, s.tx, wallet, amount)
}

func (s *txStore) Transfer(ctx context.Context, from, to string, amount uint64) error {
	return queryTransfer(ctx, s.tx, from, to, amount)
}

func (s *txStore) DeleteAccount(ctx context.Context, wallet string) error {
	return queryDeleteAccount(ctx, s.tx, wallet)
}

func (s *txStore) UpsertMirror(ctx context.Context, m *model.SessionMirror) error {
	return queryUpsertMirror(ctx, s.tx, m)
}

func (s *txStore) GetMirror(ctx context.Context, sessionID string) (*model.SessionMirror, error) {
	return queryGetMirror(ctx, s.tx, sessionID)
}

func (s *txStore) ListMirrors(ctx context.Context, status model.MirrorStatus) ([]*model.SessionMirror, error) {
	return queryListMirrors(ctx, s.tx, status)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
