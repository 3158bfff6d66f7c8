package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hivegame/botherd/internal/bot"
	"github.com/hivegame/botherd/internal/dispatch"
	"github.com/hivegame/botherd/internal/events"
	"github.com/hivegame/botherd/internal/journal"
	"github.com/hivegame/botherd/internal/queue"
	"github.com/hivegame/botherd/internal/tracker"
)

// mockBrowser implements TurnBrowser for testing
type mockBrowser struct {
	entries []journal.Entry
	err     error
}

func (m *mockBrowser) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.entries) {
		return m.entries[:limit], nil
	}
	return m.entries, nil
}

func newTestServer(t *testing.T, browser TurnBrowser) *Server {
	t.Helper()

	if browser == nil {
		browser = &mockBrowser{}
	}
	q := queue.New(10)
	tr := tracker.New(time.Minute)
	d := dispatch.New(q, tr, nil, nil, nil, nil, 1)
	bots := []*bot.Bot{
		{Name: "nokamute1", Endpoint: "/games/nokamute1", MoveBudget: "depth 1"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(Config{Listen: "127.0.0.1:0", APIKey: "test-key"}, q, tr, d, browser, bots, events.NewHub(16), logger)
}

func TestHealthzNoAuth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp HealthzResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("expected status ok, got %q", resp.Status)
	}
}

func TestStatusRequiresAuth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	router := s.setupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req2.Header.Set("Authorization", "Bearer wrong-key")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec2.Code)
	}
}

func TestStatusResponse(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("Authorization", "Bearer test-key")
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Service != "botherd" {
		t.Fatalf("unexpected service name %q", resp.Service)
	}
	if resp.Queue.Capacity != 10 {
		t.Fatalf("expected queue capacity 10, got %d", resp.Queue.Capacity)
	}
	if len(resp.Bots) != 1 || resp.Bots[0].Name != "nokamute1" {
		t.Fatalf("unexpected bot roster: %+v", resp.Bots)
	}
}

func TestTurnsEndpoint(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	browser := &mockBrowser{entries: []journal.Entry{
		{ID: "t1", Bot: "nokamute1", Status: journal.StatusSucceeded, Move: "wS1", StartedAt: now, CompletedAt: now},
		{ID: "t2", Bot: "nokamute1", Status: journal.StatusFailed, LastError: "engine exited", StartedAt: now, CompletedAt: now},
	}}

	s := newTestServer(t, browser)
	req := httptest.NewRequest(http.MethodGet, "/v1/turns", nil)
	req.Header.Set("Authorization", "Bearer test-key")
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp TurnsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(resp.Turns))
	}
	if resp.Turns[0].Move != "wS1" {
		t.Fatalf("unexpected move %q", resp.Turns[0].Move)
	}
}

func TestTurnsLimitValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	for _, limit := range []string{"0", "-1", "1001", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/turns?limit="+limit, nil)
		req.Header.Set("Authorization", "Bearer test-key")
		rec := httptest.NewRecorder()
		s.setupRoutes().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected 400, got %d", limit, rec.Code)
		}
	}
}

func TestEventsStream(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	// Buffered event visible via Last-Event-ID replay.
	s.events.Publish(events.TypeTurnEnqueued, map[string]string{"bot": "nokamute1"})

	srv := httptest.NewServer(s.setupRoutes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test-key")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	// Publish a live event after the subscription is established.
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.events.Publish(events.TypeTurnCompleted, map[string]string{"move": "wS1"})
	}()

	var sawBuffered, sawLive bool
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, events.TypeTurnEnqueued) {
			sawBuffered = true
		}
		if strings.Contains(line, events.TypeTurnCompleted) {
			sawLive = true
		}
		if sawBuffered && sawLive {
			break
		}
	}
	if !sawBuffered || !sawLive {
		t.Fatalf("missing events: buffered=%v live=%v", sawBuffered, sawLive)
	}
}
