package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/oakmere/vaultd/internal/model"
	"github.com/oakmere/vaultd/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	SessionCount int       `json:"session_count"`
	EntryCount   int       `json:"entry_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes all sessions and their ledger entries from the store as
// JSONL to w. Sessions are sorted by ID; each session's entries follow it in
// append order.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	sessions, _, err := s.ListSessions(ctx, model.SessionFilter{})
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})

	entriesBySession := make(map[string][]*model.LedgerEntry, len(sessions))
	var entryCount int
	for _, sess := range sessions {
		entries, err := s.ListEntries(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("list entries for %s: %w", sess.ID, err)
		}
		entriesBySession[sess.ID] = entries
		entryCount += len(entries)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		SessionCount: len(sessions),
		EntryCount:   entryCount,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, sess := range sessions {
		if err := enc.Encode(record{Type: "session", Data: sess}); err != nil {
			return fmt.Errorf("encode session %s: %w", sess.ID, err)
		}
		for _, e := range entriesBySession[sess.ID] {
			if err := enc.Encode(record{Type: "entry", Data: e}); err != nil {
				return fmt.Errorf("encode entry %d: %w", e.ID, err)
			}
		}
	}

	return nil
}
