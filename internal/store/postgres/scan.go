package postgres

import (
	"database/sql"
	"time"

	"github.com/oakmere/vaultd/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanSession scans a single row into a model.VaultSession.
// The row must contain columns in the order defined by sessionColumns.
func scanSession(row scannable) (*model.VaultSession, error) {
	var s model.VaultSession
	var maxDeposit, totalDeposited, totalSpent int64

	err := row.Scan(
		&s.ID,
		&s.Owner,
		&s.Agent,
		&s.VaultAccount,
		&s.SessionStart,
		&s.SessionExpiry,
		&s.IsActive,
		&maxDeposit,
		&totalDeposited,
		&totalSpent,
		&s.Version,
	)
	if err != nil {
		return nil, err
	}

	s.MaxDeposit = uint64(maxDeposit)
	s.TotalDeposited = uint64(totalDeposited)
	s.TotalSpent = uint64(totalSpent)
	return &s, nil
}

// scanSessionWithTotal scans a row that has a leading total_count column
// followed by the standard session columns. Used by queryListSessions with
// COUNT(*) OVER().
func scanSessionWithTotal(row scannable) (*model.VaultSession, int, error) {
	var total int
	var s model.VaultSession
	var maxDeposit, totalDeposited, totalSpent int64

	err := row.Scan(
		&total,
		&s.ID,
		&s.Owner,
		&s.Agent,
		&s.VaultAccount,
		&s.SessionStart,
		&s.SessionExpiry,
		&s.IsActive,
		&maxDeposit,
		&totalDeposited,
		&totalSpent,
		&s.Version,
	)
	if err != nil {
		return nil, 0, err
	}

	s.MaxDeposit = uint64(maxDeposit)
	s.TotalDeposited = uint64(totalDeposited)
	s.TotalSpent = uint64(totalSpent)
	return &s, total, nil
}

// scanGrant scans a single row into a model.DelegationGrant.
func scanGrant(row scannable) (*model.DelegationGrant, error) {
	var g model.DelegationGrant
	var revokedAt sql.NullTime

	err := row.Scan(
		&g.ID,
		&g.SessionID,
		&g.Delegate,
		&g.ApprovedAt,
		&revokedAt,
	)
	if err != nil {
		return nil, err
	}

	if revokedAt.Valid {
		t := revokedAt.Time
		g.RevokedAt = &t
	}
	return &g, nil
}

// scanEntry scans a single row into a model.LedgerEntry.
func scanEntry(row scannable) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var amount int64
	var actor sql.NullString

	err := row.Scan(
		&e.ID,
		&e.SessionID,
		&e.Kind,
		&amount,
		&actor,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Amount = uint64(amount)
	e.Actor = actor.String
	return &e, nil
}

// scanEntries scans multiple rows into a slice of model.LedgerEntry pointers.
func scanEntries(rows *sql.Rows) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// scanAccount scans a single row into a model.Account.
func scanAccount(row scannable) (*model.Account, error) {
	var a model.Account
	var balance int64

	err := row.Scan(&a.Wallet, &balance, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Balance = uint64(balance)
	return &a, nil
}

// scanMirror scans a single row into a model.SessionMirror.
func scanMirror(row scannable) (*model.SessionMirror, error) {
	var m model.SessionMirror
	var vaultAccount sql.NullString

	err := row.Scan(
		&m.SessionID,
		&m.Owner,
		&m.Agent,
		&vaultAccount,
		&m.Status,
		&m.SessionExpiry,
		&m.LastObserved,
	)
	if err != nil {
		return nil, err
	}

	m.VaultAccount = vaultAccount.String
	return &m, nil
}

// scanMirrors scans multiple rows into a slice of model.SessionMirror pointers.
func scanMirrors(rows *sql.Rows) ([]*model.SessionMirror, error) {
	var mirrors []*model.SessionMirror
	for rows.Next() {
		m, err := scanMirror(rows)
		if err != nil {
			return nil, err
		}
		mirrors = append(mirrors, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mirrors, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
