package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	internaldb "quitflow/internal/db"
)

func TestSQLStoreRoundTrip_DBIntegration(t *testing.T) {
	if os.Getenv("QUITFLOW_INTEGRATION") != "1" {
		t.Skip("set QUITFLOW_INTEGRATION=1 to run integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	path := filepath.Join(t.TempDir(), "ledger_test.db")
	dbConn, err := internaldb.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer dbConn.Close()

	if err := Migrate(ctx, dbConn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := NewSQLStore(dbConn, "itest-session")
	other := NewSQLStore(dbConn, "other-session")

	if err := store.Upsert(ctx, choiceEntry(1, 0, "first")); err != nil {
		t.Fatalf("upsert 1: %v", err)
	}
	if err := store.Upsert(ctx, choiceEntry(2, 1, "second")); err != nil {
		t.Fatalf("upsert 2: %v", err)
	}
	if err := other.Upsert(ctx, choiceEntry(9, 0, "elsewhere")); err != nil {
		t.Fatalf("upsert other session: %v", err)
	}

	// Re-answering keeps the original rank.
	if err := store.Upsert(ctx, choiceEntry(1, 0, "changed")); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	entries, err := store.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].QuestionID != 1 || entries[0].Pairs[0].Value != "changed" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].QuestionID != 2 {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}

	if err := store.RemoveByQuestionID(ctx, 2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	entries, _ = store.All(ctx)
	if len(entries) != 1 || entries[0].QuestionID != 1 {
		t.Fatalf("unexpected entries after remove: %+v", entries)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if entries, _ = store.All(ctx); len(entries) != 0 {
		t.Fatalf("expected empty session ledger, got %+v", entries)
	}

	// Clearing one session must not touch another.
	otherEntries, _ := other.All(ctx)
	if len(otherEntries) != 1 || otherEntries[0].QuestionID != 9 {
		t.Fatalf("other session ledger disturbed: %+v", otherEntries)
	}
}
