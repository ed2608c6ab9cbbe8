// Package storetest provides an in-memory store.Store for tests that need
// working persistence without a database. It is not safe to use in
// production: RunInTransaction serializes callers but does not roll back.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oakmere/vaultd/internal/model"
	"github.com/oakmere/vaultd/internal/store"
)

// MemStore implements store.Store with in-memory maps.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string]*model.VaultSession
	grants   map[string]*model.DelegationGrant // keyed by session id
	entries  []*model.LedgerEntry
	accounts map[string]*model.Account
	mirrors  map[string]*model.SessionMirror
	nextID   int64
}

var _ store.Store = (*MemStore)(nil)

// New creates an empty MemStore.
func New() *MemStore {
	return &MemStore{
		sessions: make(map[string]*model.VaultSession),
		grants:   make(map[string]*model.DelegationGrant),
		accounts: make(map[string]*model.Account),
		mirrors:  make(map[string]*model.SessionMirror),
	}
}

func (m *MemStore) CreateSession(ctx context.Context, s *model.VaultSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("session %s: %w", s.ID, store.ErrDuplicate)
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemStore) GetSession(ctx context.Context, id string) (*model.VaultSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getSessionLocked(id)
}

func (m *MemStore) GetSessionForUpdate(ctx context.Context, id string) (*model.VaultSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getSessionLocked(id)
}

func (m *MemStore) getSessionLocked(id string) (*model.VaultSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (m *MemStore) ListSessions(ctx context.Context, filter model.SessionFilter) ([]*model.VaultSession, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.VaultSession
	for _, s := range m.sessions {
		if filter.Owner != "" && s.Owner != filter.Owner {
			continue
		}
		if filter.Agent != "" && s.Agent != filter.Agent {
			continue
		}
		if filter.Active != nil && s.IsActive != *filter.Active {
			continue
		}
		if filter.ExpiredBefore != nil && s.SessionExpiry.After(*filter.ExpiredBefore) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SessionStart.Equal(out[j].SessionStart) {
			return out[i].SessionStart.After(out[j].SessionStart)
		}
		return out[i].ID < out[j].ID
	})

	total := len(out)
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			out = nil
		} else {
			out = out[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (m *MemStore) UpdateSession(ctx context.Context, s *model.VaultSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return fmt.Errorf("session %s: %w", s.ID, store.ErrNotFound)
	}
	if cur.Version != s.Version {
		return fmt.Errorf("session %s: %w", s.ID, store.ErrVersionConflict)
	}
	s.Version++
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}
	delete(m.sessions, id)
	delete(m.grants, id)
	return nil
}

func (m *MemStore) CreateGrant(ctx context.Context, g *model.DelegationGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grants[g.SessionID]; ok {
		return fmt.Errorf("grant for session %s: %w", g.SessionID, store.ErrDuplicate)
	}
	cp := *g
	m.grants[g.SessionID] = &cp
	return nil
}

func (m *MemStore) GetGrantBySession(ctx context.Context, sessionID string) (*model.DelegationGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[sessionID]
	if !ok {
		return nil, fmt.Errorf("grant for session %s: %w", sessionID, store.ErrNotFound)
	}
	cp := *g
	if g.RevokedAt != nil {
		t := *g.RevokedAt
		cp.RevokedAt = &t
	}
	return &cp, nil
}

func (m *MemStore) RevokeGrant(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.grants {
		if g.ID == id && g.RevokedAt == nil {
			t := at
			g.RevokedAt = &t
			return nil
		}
	}
	return nil
}

func (m *MemStore) AppendEntry(ctx context.Context, e *model.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *MemStore) ListEntries(ctx context.Context, sessionID string) ([]*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.LedgerEntry
	for _, e := range m.entries {
		if e.SessionID == sessionID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemStore) GetAccount(ctx context.Context, wallet string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[wallet]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", wallet, store.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (m *MemStore) CreditAccount(ctx context.Context, wallet string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creditLocked(wallet, amount)
	return nil
}

func (m *MemStore) creditLocked(wallet string, amount uint64) {
	a, ok := m.accounts[wallet]
	if !ok {
		a = &model.Account{Wallet: wallet}
		m.accounts[wallet] = a
	}
	a.Balance += amount
	a.UpdatedAt = time.Now().UTC()
}

func (m *MemStore) Transfer(ctx context.Context, from, to string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.accounts[from]
	if !ok || src.Balance < amount {
		return fmt.Errorf("debit %s: %w", from, store.ErrInsufficientFunds)
	}
	src.Balance -= amount
	src.UpdatedAt = time.Now().UTC()
	m.creditLocked(to, amount)
	return nil
}

func (m *MemStore) DeleteAccount(ctx context.Context, wallet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, wallet)
	return nil
}

func (m *MemStore) UpsertMirror(ctx context.Context, mir *model.SessionMirror) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mir
	m.mirrors[mir.SessionID] = &cp
	return nil
}

func (m *MemStore) GetMirror(ctx context.Context, sessionID string) (*model.SessionMirror, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mir, ok := m.mirrors[sessionID]
	if !ok {
		return nil, fmt.Errorf("mirror %s: %w", sessionID, store.ErrNotFound)
	}
	cp := *mir
	return &cp, nil
}

func (m *MemStore) ListMirrors(ctx context.Context, status model.MirrorStatus) ([]*model.SessionMirror, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SessionMirror
	for _, mir := range m.mirrors {
		if mir.Status == status {
			cp := *mir
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionExpiry.Before(out[j].SessionExpiry) })
	return out, nil
}

// RunInTransaction serializes callers on the store mutex indirectly by
// running fn against the same MemStore. There is no rollback; a test that
// needs failure atomicity should assert on final state explicitly.
func (m *MemStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(m)
}

// Close is a no-op.
func (m *MemStore) Close() error {
	return nil
}
