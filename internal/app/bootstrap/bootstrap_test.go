package bootstrap

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pollchain/internal/platform/config"
)

func TestBuildAPIWithSQLiteBackend(t *testing.T) {
	app, err := BuildAPIFromConfig(context.Background(), config.Config{
		ServiceName:    "pollchain-test",
		HTTPPort:       "0",
		LedgerBackend:  config.LedgerBackendSQLite,
		SQLitePath:     filepath.Join(t.TempDir(), "ledger.db"),
		IdempotencyTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("build api failed: %v", err)
	}
	defer app.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/polls", bytes.NewReader([]byte(`{"poll_id":7,"end_time":4102444800,"question":"Stored?"}`)))
	req.Header.Set("X-User-Id", "payer-1")
	rr := httptest.NewRecorder()
	app.Server().Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	app.Server().Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/polls/7", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestMemoryBackendHonorsIdempotencyTTL(t *testing.T) {
	app, err := BuildAPIFromConfig(context.Background(), config.Config{
		HTTPPort:       "0",
		LedgerBackend:  config.LedgerBackendMemory,
		IdempotencyTTL: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("build api failed: %v", err)
	}
	defer app.Close()

	createPoll := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/polls", bytes.NewReader([]byte(`{"poll_id":3,"end_time":4102444800,"question":"Expiring?"}`)))
		req.Header.Set("X-User-Id", "payer-1")
		req.Header.Set("Idempotency-Key", "pool-3")
		rr := httptest.NewRecorder()
		app.Server().Handler().ServeHTTP(rr, req)
		return rr
	}
	if rr := createPoll(); rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	time.Sleep(20 * time.Millisecond)
	rr := createPoll()
	if rr.Code != http.StatusConflict || !strings.Contains(rr.Body.String(), `"code":"already_exists"`) {
		t.Fatalf("expected expired key to re-execute and hit already_exists, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestBuildAPIRejectsUnknownBackend(t *testing.T) {
	if _, err := BuildAPIFromConfig(context.Background(), config.Config{LedgerBackend: "etcd"}); err == nil {
		t.Fatal("expected unknown backend error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	app, err := BuildAPIFromConfig(context.Background(), config.Config{
		HTTPPort:      "127.0.0.1:0",
		LedgerBackend: config.LedgerBackendMemory,
	})
	if err != nil {
		t.Fatalf("build api failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestNormalizeAddr(t *testing.T) {
	if got := normalizeAddr("9000"); got != ":9000" {
		t.Fatalf("expected :9000, got %s", got)
	}
	if got := normalizeAddr("127.0.0.1:0"); got != "127.0.0.1:0" {
		t.Fatalf("expected host address to pass through, got %s", got)
	}
	if got := normalizeAddr(""); got != ":8080" {
		t.Fatalf("expected :8080, got %s", got)
	}
}
