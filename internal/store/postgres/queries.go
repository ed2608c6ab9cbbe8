package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/oakmere/vaultd/internal/model"
	"github.com/oakmere/vaultd/internal/store"
)

// sessionColumns is the column list used for SELECT statements on the
// sessions table.
const sessionColumns = `id, owner_wallet, agent_wallet, vault_account,
	session_start, session_expiry, is_active, max_deposit, total_deposited,
	total_spent, version`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations, mapped to store.ErrDuplicate.
const uniqueViolation = "23505"

func isDuplicate(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func queryCreateSession(ctx context.Context, db executor, s *model.VaultSession) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, owner_wallet, agent_wallet, vault_account,
			session_start, session_expiry, is_active, max_deposit,
			total_deposited, total_spent, version
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11
		)`,
		s.ID,
		s.Owner,
		s.Agent,
		s.VaultAccount,
		s.SessionStart,
		s.SessionExpiry,
		s.IsActive,
		int64(s.MaxDeposit),
		int64(s.TotalDeposited),
		int64(s.TotalSpent),
		s.Version,
	)
	if isDuplicate(err) {
		return fmt.Errorf("session %s: %w", s.ID, store.ErrDuplicate)
	}
	return err
}

func queryGetSession(ctx context.Context, db executor, id string, forUpdate bool) (*model.VaultSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	s, err := scanSession(db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}
	return s, err
}

func queryListSessions(ctx context.Context, db executor, filter model.SessionFilter) ([]*model.VaultSession, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.Owner != "" {
		whereClauses = append(whereClauses, "owner_wallet = "+nextArg())
		args = append(args, filter.Owner)
	}

	if filter.Agent != "" {
		whereClauses = append(whereClauses, "agent_wallet = "+nextArg())
		args = append(args, filter.Agent)
	}

	if filter.Active != nil {
		whereClauses = append(whereClauses, "is_active = "+nextArg())
		args = append(args, *filter.Active)
	}

	if filter.ExpiredBefore != nil {
		whereClauses = append(whereClauses, "session_expiry <= "+nextArg())
		args = append(args, *filter.ExpiredBefore)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	query := "SELECT COUNT(*) OVER() AS total_count, " + sessionColumns +
		" FROM sessions" + whereSQL + " ORDER BY session_start DESC, id"

	if filter.Limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.VaultSession
	var total int
	for rows.Next() {
		s, t, err := scanSessionWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan sessions: %w", err)
		}
		total = t
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan sessions: %w", err)
	}

	return sessions, total, nil
}

// queryUpdateSession writes the session back only if the stored version still
// matches, then bumps it. A miss means another writer committed first.
func queryUpdateSession(ctx context.Context, db executor, s *model.VaultSession) error {
	err := db.QueryRowContext(ctx, `
		UPDATE sessions SET
			is_active = $3,
			max_deposit = $4,
			total_deposited = $5,
			total_spent = $6,
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version`,
		s.ID,
		s.Version,
		s.IsActive,
		int64(s.MaxDeposit),
		int64(s.TotalDeposited),
		int64(s.TotalSpent),
	).Scan(&s.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %s: %w", s.ID, store.ErrVersionConflict)
	}
	return err
}

func queryDeleteSession(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func queryCreateGrant(ctx context.Context, db executor, g *model.DelegationGrant) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO grants (id, session_id, delegate, approved_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5)`,
		g.ID,
		g.SessionID,
		g.Delegate,
		g.ApprovedAt,
		nullTimePtr(g.RevokedAt),
	)
	if isDuplicate(err) {
		return fmt.Errorf("grant for session %s: %w", g.SessionID, store.ErrDuplicate)
	}
	return err
}

func queryGetGrantBySession(ctx context.Context, db executor, sessionID string) (*model.DelegationGrant, error) {
	g, err := scanGrant(db.QueryRowContext(ctx, `
		SELECT id, session_id, delegate, approved_at, revoked_at
		FROM grants WHERE session_id = $1`,
		sessionID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("grant for session %s: %w", sessionID, store.ErrNotFound)
	}
	return g, err
}

func queryRevokeGrant(ctx context.Context, db executor, id string, at time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE grants SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL`,
		id, at,
	)
	if err != nil {
		return err
	}
	// Zero rows means already revoked or missing; revocation is idempotent
	// so neither is an error here.
	_, err = res.RowsAffected()
	return err
}

func queryAppendEntry(ctx context.Context, db executor, e *model.LedgerEntry) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO entries (session_id, kind, amount, actor, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		e.SessionID,
		string(e.Kind),
		int64(e.Amount),
		nullString(e.Actor),
		e.CreatedAt,
	).Scan(&e.ID)
}

func queryListEntries(ctx context.Context, db executor, sessionID string) ([]*model.LedgerEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, session_id, kind, amount, actor, created_at
		FROM entries
		WHERE session_id = $1
		ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func queryGetAccount(ctx context.Context, db executor, wallet string) (*model.Account, error) {
	a, err := scanAccount(db.QueryRowContext(ctx, `
		SELECT wallet, balance, updated_at
		FROM accounts WHERE wallet = $1`,
		wallet,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", wallet, store.ErrNotFound)
	}
	return a, err
}

func queryCreditAccount(ctx context.Context, db executor, wallet string, amount uint64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO accounts (wallet, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (wallet) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()`,
		wallet, int64(amount),
	)
	return err
}

// queryTransfer debits the source only if it can cover the amount, then
// credits the destination. Must run inside a transaction for atomicity.
func queryTransfer(ctx context.Context, db executor, from, to string, amount uint64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance - $2, updated_at = NOW()
		WHERE wallet = $1 AND balance >= $2`,
		from, int64(amount),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("debit %s: %w", from, store.ErrInsufficientFunds)
	}
	return queryCreditAccount(ctx, db, to, amount)
}

func queryDeleteAccount(ctx context.Context, db executor, wallet string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM accounts WHERE wallet = $1`, wallet)
	return err
}

func queryUpsertMirror(ctx context.Context, db executor, m *model.SessionMirror) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO session_mirrors (
			session_id, owner_wallet, agent_wallet, vault_account,
			status, session_expiry, last_observed
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO UPDATE SET
			owner_wallet = EXCLUDED.owner_wallet,
			agent_wallet = EXCLUDED.agent_wallet,
			vault_account = EXCLUDED.vault_account,
			status = EXCLUDED.status,
			session_expiry = EXCLUDED.session_expiry,
			last_observed = EXCLUDED.last_observed`,
		m.SessionID,
		m.Owner,
		m.Agent,
		nullString(m.VaultAccount),
		string(m.Status),
		m.SessionExpiry,
		m.LastObserved,
	)
	return err
}

func queryGetMirror(ctx context.Context, db executor, sessionID string) (*model.SessionMirror, error) {
	m, err := scanMirror(db.QueryRowContext(ctx, `
		SELECT session_id, owner_wallet, agent_wallet, vault_account,
			status, session_expiry, last_observed
		FROM session_mirrors WHERE session_id = $1`,
		sessionID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mirror %s: %w", sessionID, store.ErrNotFound)
	}
	return m, err
}

func queryListMirrors(ctx context.Context, db executor, status model.MirrorStatus) ([]*model.SessionMirror, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, owner_wallet, agent_wallet, vault_account,
			status, session_expiry, last_observed
		FROM session_mirrors
		WHERE status = $1
		ORDER BY session_expiry ASC`,
		string(status),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMirrors(rows)
}
