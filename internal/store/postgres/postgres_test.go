package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/oakmere/vaultd/internal/model"
	"github.com/oakmere/vaultd/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

// sessionRowColumns is the column list for scanSession results.
var sessionRowColumns = []string{
	"id", "owner_wallet", "agent_wallet", "vault_account",
	"session_start", "session_expiry", "is_active", "max_deposit",
	"total_deposited", "total_spent", "version",
}

// sessionWithTotalColumns is the column list for queryListSessions results
// (total_count + session columns).
var sessionWithTotalColumns = append([]string{"total_count"}, sessionRowColumns...)

// addSessionRow adds a session row to a sqlmock.Rows.
func addSessionRow(rows *sqlmock.Rows, id string, active bool, now time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, "owner-a", "agent-b", "va-1",
		now, now.Add(time.Hour), active, int64(1000),
		int64(300), int64(50), int64(2),
	)
}

// addSessionWithTotalRow adds a session row with a leading total_count.
func addSessionWithTotalRow(rows *sqlmock.Rows, total int, id string, now time.Time) *sqlmock.Rows {
	return rows.AddRow(
		total,
		id, "owner-a", "agent-b", "va-1",
		now, now.Add(time.Hour), true, int64(1000),
		int64(300), int64(50), int64(2),
	)
}

func TestScanHelpers(t *testing.T) {
	// nullTimePtr
	if nullTimePtr(nil).Valid {
		t.Error("nullTimePtr(nil) should be invalid")
	}
	now := time.Now()
	if nt := nullTimePtr(&now); !nt.Valid || !nt.Time.Equal(now) {
		t.Errorf("nullTimePtr(now) = %v", nt)
	}

	// nullString
	if nullString("").Valid {
		t.Error("nullString(\"\") should be invalid")
	}
	if ns := nullString("hello"); !ns.Valid || ns.String != "hello" {
		t.Errorf("nullString(\"hello\") = %v", ns)
	}
}

func TestQueryCreateSession(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	s := &model.VaultSession{
		ID: "vs-test1", Owner: "owner-a", Agent: "agent-b", VaultAccount: "va-test1",
		SessionStart: now, SessionExpiry: now.Add(time.Hour), IsActive: true, MaxDeposit: 1000,
	}
	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(
			"vs-test1", "owner-a", "agent-b", "va-test1",
			now, now.Add(time.Hour), true, int64(1000),
			int64(0), int64(0), int64(0),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryCreateSession(context.Background(), db, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryCreateSession_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	s := &model.VaultSession{
		ID: "vs-dup1", Owner: "owner-a", Agent: "agent-b", VaultAccount: "va-dup1",
		SessionStart: now, SessionExpiry: now.Add(time.Hour), IsActive: true, MaxDeposit: 1000,
	}
	mock.ExpectExec("INSERT INTO sessions").
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := queryCreateSession(context.Background(), db, s)
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected store.ErrDuplicate, got %v", err)
	}
}

func TestQueryGetSession(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(sessionRowColumns)
	addSessionRow(rows, "vs-test1", true, now)
	mock.ExpectQuery("SELECT .+ FROM sessions WHERE id = \\$1").WithArgs("vs-test1").WillReturnRows(rows)

	s, err := queryGetSession(context.Background(), db, "vs-test1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != "vs-test1" || s.Owner != "owner-a" {
		t.Fatalf("got id=%q owner=%q", s.ID, s.Owner)
	}
	if s.TotalDeposited != 300 || s.TotalSpent != 50 || s.Version != 2 {
		t.Fatalf("got deposited=%d spent=%d version=%d", s.TotalDeposited, s.TotalSpent, s.Version)
	}
}

func TestQueryGetSession_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM sessions WHERE id = \\$1").WithArgs("nonexistent").WillReturnError(sql.ErrNoRows)

	_, err := queryGetSession(context.Background(), db, "nonexistent", false)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestQueryGetSession_ForUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(sessionRowColumns)
	addSessionRow(rows, "vs-test1", true, now)
	mock.ExpectQuery("SELECT .+ FROM sessions WHERE id = \\$1 FOR UPDATE").WithArgs("vs-test1").WillReturnRows(rows)

	if _, err := queryGetSession(context.Background(), db, "vs-test1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryUpdateSession(t *testing.T) {
	db, mock := newMockDB(t)
	s := &model.VaultSession{
		ID: "vs-test1", IsActive: true, MaxDeposit: 1000,
		TotalDeposited: 300, TotalSpent: 50, Version: 2,
	}
	mock.ExpectQuery("UPDATE sessions SET").
		WithArgs("vs-test1", int64(2), true, int64(1000), int64(300), int64(50)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))

	if err := queryUpdateSession(context.Background(), db, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Version != 3 {
		t.Fatalf("expected version bump to 3, got %d", s.Version)
	}
}

func TestQueryUpdateSession_VersionConflict(t *testing.T) {
	db, mock := newMockDB(t)
	s := &model.VaultSession{ID: "vs-test1", Version: 2}
	mock.ExpectQuery("UPDATE sessions SET").WillReturnError(sql.ErrNoRows)

	err := queryUpdateSession(context.Background(), db, s)
	if !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("expected store.ErrVersionConflict, got %v", err)
	}
}

func TestQueryDeleteSession(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM sessions WHERE id = \\$1").WithArgs("vs-del1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryDeleteSession(context.Background(), db, "vs-del1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryDeleteSession_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM sessions WHERE id = \\$1").WithArgs("nonexistent").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := queryDeleteSession(context.Background(), db, "nonexistent")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestQueryListSessions(t *testing.T) {
	now := time.Now().UTC()
	active := true

	for _, tc := range []struct {
		name      string
		filter    model.SessionFilter
		queryPat  string
		args      []driver.Value
		wantCount int
		wantTotal int
	}{
		{
			name:      "NoFilter",
			filter:    model.SessionFilter{},
			queryPat:  "SELECT COUNT\\(\\*\\) OVER\\(\\) AS total_count, .+ FROM sessions ORDER BY session_start DESC",
			wantCount: 2,
			wantTotal: 2,
		},
		{
			name:      "FilterByOwner",
			filter:    model.SessionFilter{Owner: "owner-a"},
			queryPat:  "SELECT .+ FROM sessions WHERE owner_wallet = \\$1 ORDER BY",
			args:      []driver.Value{"owner-a"},
			wantCount: 1,
			wantTotal: 1,
		},
		{
			name:      "FilterByAgent",
			filter:    model.SessionFilter{Agent: "agent-b"},
			queryPat:  "SELECT .+ FROM sessions WHERE agent_wallet = \\$1 ORDER BY",
			args:      []driver.Value{"agent-b"},
			wantCount: 1,
			wantTotal: 1,
		},
		{
			name:      "FilterByActive",
			filter:    model.SessionFilter{Active: &active},
			queryPat:  "SELECT .+ FROM sessions WHERE is_active = \\$1 ORDER BY",
			args:      []driver.Value{true},
			wantCount: 1,
			wantTotal: 1,
		},
		{
			name:      "FilterByExpiredBefore",
			filter:    model.SessionFilter{ExpiredBefore: &now},
			queryPat:  "SELECT .+ FROM sessions WHERE session_expiry <= \\$1 ORDER BY",
			args:      []driver.Value{now},
			wantCount: 1,
			wantTotal: 1,
		},
		{
			name:      "WithLimitAndOffset",
			filter:    model.SessionFilter{Limit: 10, Offset: 5},
			queryPat:  "SELECT .+ FROM sessions ORDER BY .+ LIMIT \\$1 OFFSET \\$2",
			args:      []driver.Value{10, 5},
			wantCount: 1,
			wantTotal: 20,
		},
		{
			name:      "CombinedFilters",
			filter:    model.SessionFilter{Owner: "owner-a", Active: &active, Limit: 5},
			queryPat:  "SELECT .+ FROM sessions WHERE owner_wallet = \\$1 AND is_active = \\$2 ORDER BY .+ LIMIT \\$3",
			args:      []driver.Value{"owner-a", true, 5},
			wantCount: 1,
			wantTotal: 3,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			eq := mock.ExpectQuery(tc.queryPat)
			if len(tc.args) > 0 {
				eq.WithArgs(tc.args...)
			}
			r := sqlmock.NewRows(sessionWithTotalColumns)
			for i := range tc.wantCount {
				addSessionWithTotalRow(r, tc.wantTotal, fmt.Sprintf("vs-%d", i+1), now)
			}
			eq.WillReturnRows(r)

			sessions, total, err := queryListSessions(context.Background(), db, tc.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(sessions) != tc.wantCount {
				t.Fatalf("expected %d sessions, got %d", tc.wantCount, len(sessions))
			}
			if total != tc.wantTotal {
				t.Fatalf("expected total=%d, got %d", tc.wantTotal, total)
			}
		})
	}
}

func TestQueryCreateGrant(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	g := &model.DelegationGrant{ID: "dg-x1", SessionID: "vs-test1", Delegate: "agent-b", ApprovedAt: now}
	mock.ExpectExec("INSERT INTO grants").
		WithArgs("dg-x1", "vs-test1", "agent-b", now, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryCreateGrant(context.Background(), db, g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryCreateGrant_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	g := &model.DelegationGrant{ID: "dg-x2", SessionID: "vs-test1", Delegate: "agent-b"}
	mock.ExpectExec("INSERT INTO grants").
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := queryCreateGrant(context.Background(), db, g)
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected store.ErrDuplicate, got %v", err)
	}
}

func TestQueryGetGrantBySession(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "session_id", "delegate", "approved_at", "revoked_at"}).
		AddRow("dg-x1", "vs-test1", "agent-b", now, nil)
	mock.ExpectQuery("SELECT .+ FROM grants WHERE session_id = \\$1").WithArgs("vs-test1").WillReturnRows(rows)

	g, err := queryGetGrantBySession(context.Background(), db, "vs-test1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.ID != "dg-x1" || g.Delegate != "agent-b" || g.Revoked() {
		t.Fatalf("got id=%q delegate=%q revoked=%v", g.ID, g.Delegate, g.Revoked())
	}
}

func TestQueryGetGrantBySession_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM grants WHERE session_id = \\$1").WithArgs("vs-none").
		WillReturnError(sql.ErrNoRows)

	_, err := queryGetGrantBySession(context.Background(), db, "vs-none")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestQueryRevokeGrant(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectExec("UPDATE grants SET revoked_at").
		WithArgs("dg-x1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryRevokeGrant(context.Background(), db, "dg-x1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryRevokeGrant_AlreadyRevoked(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectExec("UPDATE grants SET revoked_at").
		WithArgs("dg-x1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// Idempotent: zero affected rows is not an error.
	if err := queryRevokeGrant(context.Background(), db, "dg-x1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryAppendEntry(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	e := &model.LedgerEntry{SessionID: "vs-test1", Kind: model.EntryDeposit, Amount: 300, Actor: "owner-a", CreatedAt: now}
	mock.ExpectQuery("INSERT INTO entries").
		WithArgs("vs-test1", "deposit", int64(300), "owner-a", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	if err := queryAppendEntry(context.Background(), db, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID != 7 {
		t.Fatalf("expected id=7, got %d", e.ID)
	}
}

func TestQueryListEntries(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "session_id", "kind", "amount", "actor", "created_at"}).
		AddRow(int64(1), "vs-test1", "deposit", int64(300), "owner-a", now).
		AddRow(int64(2), "vs-test1", "spend", int64(50), nil, now)
	mock.ExpectQuery("SELECT .+ FROM entries WHERE session_id = \\$1").WithArgs("vs-test1").WillReturnRows(rows)

	entries, err := queryListEntries(context.Background(), db, "vs-test1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Kind != model.EntryDeposit || entries[1].Actor != "" {
		t.Fatalf("got kind=%q actor=%q", entries[0].Kind, entries[1].Actor)
	}
}

func TestQueryGetAccount(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"wallet", "balance", "updated_at"}).
		AddRow("owner-a", int64(900000), now)
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE wallet = \\$1").WithArgs("owner-a").WillReturnRows(rows)

	a, err := queryGetAccount(context.Background(), db, "owner-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Wallet != "owner-a" || a.Balance != 900000 {
		t.Fatalf("got wallet=%q balance=%d", a.Wallet, a.Balance)
	}
}

func TestQueryGetAccount_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE wallet = \\$1").WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)

	_, err := queryGetAccount(context.Background(), db, "nobody")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestQueryCreditAccount(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("owner-a", int64(500)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryCreditAccount(context.Background(), db, "owner-a", 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryTransfer(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE accounts").
		WithArgs("owner-a", int64(300)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("va-1", int64(300)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryTransfer(context.Background(), db, "owner-a", "va-1", 300); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryTransfer_InsufficientFunds(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE accounts").
		WithArgs("owner-a", int64(300)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := queryTransfer(context.Background(), db, "owner-a", "va-1", 300)
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected store.ErrInsufficientFunds, got %v", err)
	}
}

func TestQueryDeleteAccount(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM accounts WHERE wallet = \\$1").WithArgs("va-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryDeleteAccount(context.Background(), db, "va-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryUpsertMirror(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	m := &model.SessionMirror{
		SessionID: "vs-test1", Owner: "owner-a", Agent: "agent-b", VaultAccount: "va-1",
		Status: model.MirrorActive, SessionExpiry: now.Add(time.Hour), LastObserved: now,
	}
	mock.ExpectExec("INSERT INTO session_mirrors").
		WithArgs("vs-test1", "owner-a", "agent-b", sqlmock.AnyArg(), "ACTIVE", now.Add(time.Hour), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryUpsertMirror(context.Background(), db, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryGetMirror(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"session_id", "owner_wallet", "agent_wallet", "vault_account",
		"status", "session_expiry", "last_observed",
	}).AddRow("vs-test1", "owner-a", "agent-b", nil, "CREATED", now.Add(time.Hour), now)
	mock.ExpectQuery("SELECT .+ FROM session_mirrors WHERE session_id = \\$1").WithArgs("vs-test1").WillReturnRows(rows)

	m, err := queryGetMirror(context.Background(), db, "vs-test1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Status != model.MirrorCreated || m.VaultAccount != "" {
		t.Fatalf("got status=%q vault_account=%q", m.Status, m.VaultAccount)
	}
}

func TestQueryListMirrors(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"session_id", "owner_wallet", "agent_wallet", "vault_account",
		"status", "session_expiry", "last_observed",
	}).
		AddRow("vs-1", "owner-a", "agent-b", "va-1", "ACTIVE", now.Add(time.Hour), now).
		AddRow("vs-2", "owner-c", "agent-d", "va-2", "ACTIVE", now.Add(2*time.Hour), now)
	mock.ExpectQuery("SELECT .+ FROM session_mirrors WHERE status = \\$1").WithArgs("ACTIVE").WillReturnRows(rows)

	mirrors, err := queryListMirrors(context.Background(), db, model.MirrorActive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mirrors) != 2 {
		t.Fatalf("expected 2 mirrors, got %d", len(mirrors))
	}
}

func TestRunInTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}
	now := time.Now().UTC()

	mock.ExpectBegin()
	rows := sqlmock.NewRows(sessionRowColumns)
	addSessionRow(rows, "vs-test1", true, now)
	mock.ExpectQuery("SELECT .+ FROM sessions WHERE id = \\$1 FOR UPDATE").WithArgs("vs-test1").WillReturnRows(rows)
	mock.ExpectQuery("UPDATE sessions SET").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		sess, err := tx.GetSessionForUpdate(context.Background(), "vs-test1")
		if err != nil {
			return err
		}
		sess.TotalDeposited += 100
		return tx.UpdateSession(context.Background(), sess)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunInTransaction_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}

	mock.ExpectBegin()
	mock.ExpectRollback()

	wantErr := errors.New("boom")
	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fn error to propagate, got %v", err)
	}
}
