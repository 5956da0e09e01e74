package audit

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates a temporary test database
func setupTestDB(t *testing.T) *sqlx.DB {
	tmpDir := t.TempDir()
	dbPath := path.Join(tmpDir, "test_audit.db")
	db := sqlx.MustConnect("sqlite3", dbPath)
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})
	if err := DBInit(db); err != nil {
		t.Fatalf("DBInit returned error: %v", err)
	}
	return db
}

func TestDBInit(t *testing.T) {
	db := setupTestDB(t)

	// Running twice must be harmless
	if err := DBInit(db); err != nil {
		t.Fatalf("DBInit returned error: %v", err)
	}

	var tableName string
	err := db.Get(&tableName, "SELECT name FROM sqlite_master WHERE type='table' AND name='audit_events'")
	if err != nil {
		t.Fatalf("Table 'audit_events' does not exist: %v", err)
	}

	var count int
	err = db.Get(&count, "SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND tbl_name='audit_events'")
	if err != nil {
		t.Fatalf("Failed to query indexes: %v", err)
	}
	if count < 2 {
		t.Errorf("Expected at least 2 indexes, got %d", count)
	}
}

func TestRequestIDContext(t *testing.T) {
	if id := RequestID(context.Background()); id != "" {
		t.Errorf("Expected empty request id, got %q", id)
	}
	ctx := WithRequestID(context.Background(), "req-1")
	if id := RequestID(ctx); id != "req-1" {
		t.Errorf("Expected req-1, got %q", id)
	}
}

func TestRecordAndHistory(t *testing.T) {
	db := setupTestDB(t)
	logger := NewLogger(db)
	clock := time.Unix(1718438400, 0)
	logger.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	ctx := WithRequestID(context.Background(), "req-42")
	snapshot := map[string]any{"id": 7, "title": "Trail Ride"}

	tx := db.MustBegin()
	if err := logger.Record(ctx, tx, ActionEventCreated, 7, snapshot); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := logger.Record(ctx, tx, ActionEventDeleted, 7, snapshot); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := logger.Record(ctx, tx, ActionEventCreated, 8, snapshot); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	entries, err := logger.History(context.Background(), 7)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Action != string(ActionEventCreated) || entries[1].Action != string(ActionEventDeleted) {
		t.Errorf("Unexpected order: %s, %s", entries[0].Action, entries[1].Action)
	}
	if entries[0].RequestID != "req-42" {
		t.Errorf("Expected request id req-42, got %q", entries[0].RequestID)
	}
	if entries[0].ID == "" || entries[0].ID == entries[1].ID {
		t.Error("Expected unique entry ids")
	}

	var decoded map[string]any
	if err := json.Unmarshal(entries[0].Snapshot, &decoded); err != nil {
		t.Fatalf("Snapshot is not valid JSON: %v", err)
	}
	if decoded["title"] != "Trail Ride" {
		t.Errorf("Expected snapshot title Trail Ride, got %v", decoded["title"])
	}
}

func TestRecordRolledBack(t *testing.T) {
	db := setupTestDB(t)
	logger := NewLogger(db)

	tx := db.MustBegin()
	if err := logger.Record(context.Background(), tx, ActionEventUpdated, 3, nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	tx.Rollback()

	entries, err := logger.History(context.Background(), 3)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries after rollback, got %d", len(entries))
	}
}
