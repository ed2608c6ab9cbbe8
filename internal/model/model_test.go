package model

import (
	"strings"
	"testing"
	"time"
)

func TestSessionIDDeterministic(t *testing.T) {
	a := SessionID("alice", "bot-7")
	b := SessionID("alice", "bot-7")
	if a != b {
		t.Errorf("SessionID not deterministic: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "vs-") {
		t.Errorf("SessionID = %q, want vs- prefix", a)
	}
	if len(a) != len("vs-")+20 {
		t.Errorf("SessionID length = %d, want %d", len(a), len("vs-")+20)
	}
}

func TestVaultAccountIDMatchesSessionDigest(t *testing.T) {
	sid := SessionID("alice", "bot-7")
	vid := VaultAccountID("alice", "bot-7")
	if !strings.HasPrefix(vid, "va-") {
		t.Errorf("VaultAccountID = %q, want va- prefix", vid)
	}
	if strings.TrimPrefix(sid, "vs-") != strings.TrimPrefix(vid, "va-") {
		t.Errorf("session and vault account digests differ: %q vs %q", sid, vid)
	}
}

func TestSessionIDDistinguishesPairs(t *testing.T) {
	tests := []struct {
		name           string
		owner1, agent1 string
		owner2, agent2 string
	}{
		{"different agent", "alice", "bot-1", "alice", "bot-2"},
		{"different owner", "alice", "bot-1", "bob", "bot-1"},
		{"swapped roles", "alice", "bob", "bob", "alice"},
		{"shifted boundary", "ab", "c", "a", "bc"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := SessionID(tc.owner1, tc.agent1)
			b := SessionID(tc.owner2, tc.agent2)
			if a == b {
				t.Errorf("SessionID(%q,%q) == SessionID(%q,%q) = %q",
					tc.owner1, tc.agent1, tc.owner2, tc.agent2, a)
			}
		})
	}
}

func TestSessionExpired(t *testing.T) {
	expiry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := &VaultSession{SessionExpiry: expiry}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before expiry", expiry.Add(-time.Second), false},
		{"exactly at expiry", expiry, true},
		{"after expiry", expiry.Add(time.Second), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.Expired(tc.now); got != tc.want {
				t.Errorf("Expired(%v) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestMirrorStatusRank(t *testing.T) {
	order := []MirrorStatus{MirrorCreated, MirrorActive, MirrorRevoked, MirrorCleaned}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("Rank(%s) = %d, must exceed Rank(%s) = %d",
				order[i], order[i].Rank(), order[i-1], order[i-1].Rank())
		}
	}
	if MirrorRevoked.Rank() != MirrorExpired.Rank() {
		t.Errorf("REVOKED and EXPIRED must share a rank tier: %d vs %d",
			MirrorRevoked.Rank(), MirrorExpired.Rank())
	}
	if MirrorCleaned.Rank() <= MirrorExpired.Rank() {
		t.Error("CLEANED must outrank EXPIRED")
	}
	if MirrorStatus("bogus").Rank() != 0 {
		t.Errorf("unknown status rank = %d, want 0", MirrorStatus("bogus").Rank())
	}
}

func TestMirrorStatusIsValid(t *testing.T) {
	for _, s := range []MirrorStatus{MirrorCreated, MirrorActive, MirrorRevoked, MirrorExpired, MirrorCleaned} {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if MirrorStatus("DELETED").IsValid() {
		t.Error("DELETED should not be valid")
	}
	if MirrorStatus("").IsValid() {
		t.Error("empty status should not be valid")
	}
}

func TestEntryKindIsValid(t *testing.T) {
	for _, k := range []EntryKind{EntryDeposit, EntrySpend, EntryRefund, EntryCleanupReward} {
		if !k.IsValid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if EntryKind("withdrawal").IsValid() {
		t.Error("withdrawal should not be valid")
	}
}
