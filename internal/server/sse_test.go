package server

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oakmere/vaultd/internal/engine"
	"github.com/oakmere/vaultd/internal/events"
	"github.com/oakmere/vaultd/internal/ledger"
	"github.com/oakmere/vaultd/internal/projection"
	"github.com/oakmere/vaultd/internal/store/storetest"
)

func TestMatchTopicPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"vault.session.created", "vault.session.created", true},
		{"vault.session.created", "vault.session.revoked", false},
		{"vault.session.*", "vault.session.created", true},
		{"vault.session.*", "vault.session.cleaned", true},
		{"vault.*.created", "vault.session.created", true},
		{"vault.session.*", "vault.session", false},
		{"vault.>", "vault.session.created", true},
		{"vault.>", "vault.session", true},
		{"vault.>", "vault", false},
		{"*", "vault", true},
		{"*", "vault.session", false},
	} {
		if got := matchTopicPattern(tc.pattern, tc.topic); got != tc.want {
			t.Errorf("matchTopicPattern(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
		}
	}
}

func TestSSEHubBroadcast(t *testing.T) {
	hub := newSSEHub()

	all := hub.subscribe(nil)
	defer hub.unsubscribe(all)
	filtered := hub.subscribe([]string{"vault.session.cleaned"})
	defer hub.unsubscribe(filtered)

	hub.broadcast("vault.session.created", []byte(`{"a":1}`))
	hub.broadcast("vault.session.cleaned", []byte(`{"b":2}`))

	// The unfiltered client sees both.
	for i, wantTopic := range []string{"vault.session.created", "vault.session.cleaned"} {
		select {
		case evt := <-all.ch:
			if evt.Topic != wantTopic {
				t.Errorf("event %d topic = %q, want %q", i, evt.Topic, wantTopic)
			}
		default:
			t.Fatalf("missing event %d on unfiltered client", i)
		}
	}

	// The filtered client only sees the cleaned event.
	select {
	case evt := <-filtered.ch:
		if evt.Topic != "vault.session.cleaned" {
			t.Errorf("filtered topic = %q", evt.Topic)
		}
	default:
		t.Fatal("missing event on filtered client")
	}
	select {
	case evt := <-filtered.ch:
		t.Fatalf("unexpected extra event %q on filtered client", evt.Topic)
	default:
	}
}

func TestSSEHubEventsSince(t *testing.T) {
	hub := newSSEHub()

	hub.broadcast("vault.session.created", []byte(`1`))
	hub.broadcast("vault.session.deposited", []byte(`2`))
	hub.broadcast("vault.session.spent", []byte(`3`))

	replayed := hub.eventsSince(1)
	if len(replayed) != 2 {
		t.Fatalf("replayed %d events, want 2", len(replayed))
	}
	if replayed[0].Topic != "vault.session.deposited" || replayed[1].Topic != "vault.session.spent" {
		t.Errorf("replay order: %q, %q", replayed[0].Topic, replayed[1].Topic)
	}

	if got := hub.eventsSince(3); len(got) != 0 {
		t.Errorf("eventsSince(latest) returned %d events", len(got))
	}
}

func TestEventStreamDeliversMutations(t *testing.T) {
	st := storetest.New()
	clk := &fakeClock{now: baseTime}
	l := ledger.New(st, clk)
	tr := projection.NewTracker(st, clk, discardLogger())
	vs := NewVaultServer(l, tr, &events.NoopPublisher{}, true, "")
	srv := httptest.NewServer(vs.NewHTTPHandler(""))
	defer srv.Close()

	env := &testEnv{srv: srv, ledger: l, clock: clk}
	env.faucet(t, "owner-a", 2*engine.ReservedMinimum)

	// Open the stream before mutating.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/events/stream?topics=vault.session.created", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	env.createSession(t, "owner-a", "agent-b")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before event arrived")
			}
			if strings.HasPrefix(line, "event:") {
				if got := strings.TrimPrefix(line, "event:"); got != "vault.session.created" {
					t.Fatalf("event topic = %q", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for SSE event")
		}
	}
}
