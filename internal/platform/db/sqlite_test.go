package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestConnectSQLiteRequiresPath(t *testing.T) {
	if _, err := ConnectSQLite(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestConnectSQLiteOpensFile(t *testing.T) {
	conn, err := ConnectSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("connect sqlite failed: %v", err)
	}
	defer conn.Close()

	if stats := conn.DB.Stats(); stats.MaxOpenConnections != 1 {
		t.Fatalf("expected single connection, got %d", stats.MaxOpenConnections)
	}
}

func TestConnectSQLiteAppliesPragmasToEveryConnection(t *testing.T) {
	conn, err := ConnectSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("connect sqlite failed: %v", err)
	}
	defer conn.Close()

	// Force the pool to reopen so the pragma must come from the DSN.
	conn.DB.SetMaxIdleConns(0)
	conn.DB.SetMaxIdleConns(1)

	var timeout int
	if err := conn.DB.QueryRowContext(context.Background(), "PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("read busy_timeout failed: %v", err)
	}
	if timeout != 5000 {
		t.Fatalf("expected busy_timeout 5000, got %d", timeout)
	}
}

func TestSQLiteDSN(t *testing.T) {
	cases := map[string]string{
		"/tmp/ledger.db":              "file:/tmp/ledger.db?_pragma=busy_timeout(5000)&_txlock=immediate",
		"file:ledger.db?cache=shared": "file:ledger.db?cache=shared&_pragma=busy_timeout(5000)&_txlock=immediate",
	}
	for path, want := range cases {
		if got := sqliteDSN(path); got != want {
			t.Fatalf("sqliteDSN(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestConnectRequiresDSN(t *testing.T) {
	if _, err := Connect(""); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}
