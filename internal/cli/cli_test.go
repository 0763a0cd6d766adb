package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fincache/internal/core"
)

// runCLI executes the root command against the seeded in-memory gateway.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	env := map[string]string{
		"GATEWAY":           "memory",
		"CACHE_BACKEND":     "memory",
		"USER_ID":           "1",
		"AMQP_URL":          "",
		"CACHE_POLICY_FILE": "",
		"PROBE_ADDR":        "",
		"LOG_LEVEL":         "error",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cmd := NewRootCmd("test")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode output %q: %v", s, err)
	}
	return v
}

func TestTransactionsList(t *testing.T) {
	stdout, stderr, err := runCLI(t, "transactions", "list")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(stderr, "status: fresh") {
		t.Errorf("stderr = %q, want fresh status", stderr)
	}
	txs := decode[[]core.Transaction](t, stdout)
	if len(txs) != 3 {
		t.Errorf("got %d transactions, want 3", len(txs))
	}

	stdout, _, err = runCLI(t, "tx", "list", "--type", "expense", "--from", "2025-01-04")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	txs = decode[[]core.Transaction](t, stdout)
	if len(txs) != 1 || txs[0].Description != "Rent" {
		t.Errorf("filtered transactions = %+v, want only Rent", txs)
	}
}

func TestOfflineServesStaleFromSQLite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cache.db")

	if _, _, err := runCLI(t, "--cache", "sqlite", "--db", db, "categories", "list"); err != nil {
		t.Fatalf("online run error = %v", err)
	}

	stdout, stderr, err := runCLI(t, "--cache", "sqlite", "--db", db, "--offline", "categories", "list")
	if err != nil {
		t.Fatalf("offline run error = %v", err)
	}
	if !strings.Contains(stderr, "status: stale") {
		t.Errorf("stderr = %q, want stale status", stderr)
	}
	cats := decode[[]core.Category](t, stdout)
	if len(cats) != 3 || cats[0].Name != "Food" {
		t.Errorf("cached categories = %+v", cats)
	}
}

func TestOfflineWithoutCacheFails(t *testing.T) {
	_, _, err := runCLI(t, "--offline", "budgets", "list")
	if err == nil {
		t.Fatal("Execute() should fail with nothing cached")
	}
	if !strings.Contains(err.Error(), "no usable cached data") {
		t.Errorf("error = %v, want cache miss", err)
	}
}

func TestTransactionsAdd(t *testing.T) {
	stdout, _, err := runCLI(t, "transactions", "add",
		"--amount", "12,50", "--category", "1", "--date", "2025-02-01", "--description", "Lunch")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	tx := decode[core.Transaction](t, stdout)
	if tx.ID != 9 || tx.Amount.StringFixed(2) != "12.50" || tx.Type != core.Expense {
		t.Errorf("added transaction = %+v", tx)
	}
}

func TestInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad flow type", []string{"transactions", "list", "--type", "gift"}, "--type"},
		{"bad date", []string{"transactions", "list", "--from", "yesterday"}, "--from"},
		{"bad id", []string{"transactions", "get", "abc"}, "invalid id"},
		{"bad amount", []string{"transactions", "add", "--amount", "-3", "--category", "1", "--date", "2025-01-01"}, "--amount"},
		{"bad period", []string{"stats", "overview", "--period", "daily"}, "--period"},
		{"bad gateway", []string{"--gateway", "grpc", "categories", "list"}, "invalid gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Execute() error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestNotificationCommands(t *testing.T) {
	stdout, _, err := runCLI(t, "notifications", "unread")
	if err != nil {
		t.Fatalf("unread error = %v", err)
	}
	if got := strings.TrimSpace(stdout); got != "1" {
		t.Errorf("unread = %q, want 1", got)
	}

	stdout, _, err = runCLI(t, "notif", "read", "8")
	if err != nil {
		t.Fatalf("read error = %v", err)
	}
	if got := strings.TrimSpace(stdout); got != "8" {
		t.Errorf("read = %q, want 8", got)
	}
}

func TestStatsOverview(t *testing.T) {
	stdout, _, err := runCLI(t, "stats", "overview", "--from", "2025-01-01", "--to", "2025-01-31")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	res := decode[core.StatisticResult](t, stdout)
	if got := res.Amount("balance").StringFixed(2); got != "1545.80" {
		t.Errorf("balance = %s, want 1545.80", got)
	}
}

func TestStatFlagsQuery(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	q, err := statFlags{}.query(now)
	if err != nil {
		t.Fatal(err)
	}
	if q.Period != core.Monthly || q.From.String() != "2025-03-01" || q.To.String() != "2025-03-31" {
		t.Errorf("default query = %+v, want current month", q)
	}

	q, err = statFlags{from: "2025-01-01", flow: "income"}.query(now)
	if err != nil {
		t.Fatal(err)
	}
	if q.Period != "" || !q.To.IsZero() || q.Type != core.Income {
		t.Errorf("explicit query = %+v", q)
	}
}

func TestCacheCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cache.db")
	base := []string{"--cache", "sqlite", "--db", db}

	if _, _, err := runCLI(t, append(base, "cache", "warm")...); err != nil {
		t.Fatalf("warm error = %v", err)
	}

	stdout, _, err := runCLI(t, append(base, "cache", "keys", "categories")...)
	if err != nil {
		t.Fatalf("keys error = %v", err)
	}
	keys := decode[[]cacheKeyInfo](t, stdout)
	if len(keys) != 1 || keys[0].Key != "categories:1" || !keys[0].Valid || keys[0].TTL != "24h0m0s" {
		t.Errorf("keys = %+v", keys)
	}

	stdout, _, err = runCLI(t, append(base, "cache", "clear", "budgets")...)
	if err != nil {
		t.Fatalf("clear error = %v", err)
	}
	if got := decode[map[string]int](t, stdout)["removed"]; got != 1 {
		t.Errorf("removed = %d, want 1", got)
	}

	stdout, _, err = runCLI(t, append(base, "cache", "keys")...)
	if err != nil {
		t.Fatalf("keys error = %v", err)
	}
	for _, k := range decode[[]cacheKeyInfo](t, stdout) {
		if strings.HasPrefix(k.Key, "budgets") {
			t.Errorf("budgets key %s survived clear", k.Key)
		}
	}
}
