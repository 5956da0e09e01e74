package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rcbh/clubsite/database"
)

// Action is the kind of calendar mutation being recorded
type Action string

const (
	ActionEventCreated Action = "event_created"
	ActionEventUpdated Action = "event_updated"
	ActionEventDeleted Action = "event_deleted"
)

const schemaVersion = 1

type requestIDKey struct{}

// Entry represents an audit log entry in the database
type Entry struct {
	ID        string          `db:"id" json:"id"`
	Action    string          `db:"action" json:"action"`
	Timestamp int64           `db:"timestamp" json:"timestamp"`
	EventID   int64           `db:"event_id" json:"event_id"`
	RequestID string          `db:"request_id" json:"request_id,omitempty"`
	Snapshot  json.RawMessage `db:"snapshot" json:"snapshot"`
}

// Logger records mutations of calendar events. It never opens its own
// transactions; entries are written with the caller's so that a rolled back
// mutation leaves no trace.
type Logger struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewLogger(db *sqlx.DB) *Logger {
	return &Logger{
		db:  db,
		now: time.Now,
	}
}

// Migration creates the audit_events table and its indexes
func Migration() database.Migration {
	return database.Migration{
		Name:    "audit_events",
		Version: schemaVersion,
		Apply: func(tx *sqlx.Tx) error {
			return DBInit(tx)
		},
	}
}

// DBInit initializes the audit events database table
func DBInit(db sqlx.Execer) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		event_id INTEGER NOT NULL,
		request_id TEXT NOT NULL DEFAULT '',
		snapshot TEXT NOT NULL
	)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_events_event_id ON audit_events(event_id)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp)`)
	return err
}

// WithRequestID returns a context carrying the id of the request being served.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Record writes one entry with tx. The snapshot is stored as JSON.
func (l *Logger) Record(ctx context.Context, tx sqlx.Execer, action Action, eventID int64, snapshot any) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode audit snapshot: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO audit_events (id, action, timestamp, event_id, request_id, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(),
		string(action),
		l.now().Unix(),
		eventID,
		RequestID(ctx),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to record %s for event %d: %w", action, eventID, err)
	}
	return nil
}

// History returns all entries for an event, oldest first.
func (l *Logger) History(ctx context.Context, eventID int64) ([]Entry, error) {
	var rows []struct {
		ID        string `db:"id"`
		Action    string `db:"action"`
		Timestamp int64  `db:"timestamp"`
		EventID   int64  `db:"event_id"`
		RequestID string `db:"request_id"`
		Snapshot  string `db:"snapshot"`
	}
	err := l.db.SelectContext(ctx, &rows, `
		SELECT id, action, timestamp, event_id, request_id, snapshot
		FROM audit_events
		WHERE event_id = $1
		ORDER BY timestamp, rowid`, eventID)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			ID:        row.ID,
			Action:    row.Action,
			Timestamp: row.Timestamp,
			EventID:   row.EventID,
			RequestID: row.RequestID,
			Snapshot:  json.RawMessage(row.Snapshot),
		})
	}
	return entries, nil
}
