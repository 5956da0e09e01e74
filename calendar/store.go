package calendar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rcbh/clubsite/audit"
	"github.com/rcbh/clubsite/database"
)

const schemaVersion = 1

const eventSchema = `
CREATE TABLE IF NOT EXISTS calendar_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
	title TEXT NOT NULL CHECK (length(trim(title)) > 0),
	date TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

const eventIndex = `
CREATE INDEX IF NOT EXISTS idx_calendar_events_date ON calendar_events(date, start_time);
`

const selectEventColumns = `
SELECT id, title, date, start_time, end_time, description, created_at, updated_at
FROM calendar_events
`

const insertEventSql = `
INSERT INTO calendar_events (title, date, start_time, end_time, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id;
`

const updateEventSql = `
UPDATE calendar_events
SET title = $1, date = $2, start_time = $3, end_time = $4, description = $5, updated_at = $6
WHERE id = $7;
`

const deleteEventSql = `
DELETE FROM calendar_events WHERE id = $1;
`

// Dates are stored as YYYY-MM-DD text, so every day of a month sorts between
// day 01 and day 31 regardless of the month's length.
const queryByMonthSql = selectEventColumns + `
WHERE date BETWEEN $1 AND $2
ORDER BY date, start_time, id;
`

// Migration creates the calendar_events table.
func Migration() database.Migration {
	return database.Migration{
		Name:    "calendar_events",
		Version: schemaVersion,
		Apply: func(tx *sqlx.Tx) error {
			if _, err := tx.Exec(eventSchema); err != nil {
				return fmt.Errorf("failed to create calendar_events table: %w", err)
			}
			if _, err := tx.Exec(eventIndex); err != nil {
				return fmt.Errorf("failed to create calendar_events index: %w", err)
			}
			return nil
		},
	}
}

// Store owns all persisted calendar events. Every mutation runs in its own
// transaction together with its audit entry.
type Store struct {
	db    *database.Database
	audit *audit.Logger
	now   func() time.Time
}

func NewStore(db *database.Database, auditLog *audit.Logger) *Store {
	return &Store{
		db:    db,
		audit: auditLog,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type eventRow struct {
	title       string
	date        string
	startTime   string
	endTime     string
	description string
}

func (f EventFields) row() (eventRow, error) {
	switch {
	case f.Date.IsZero():
		return eventRow{}, errors.New("date is required")
	case f.StartTime.IsZero():
		return eventRow{}, errors.New("start_time is required")
	case f.EndTime.IsZero():
		return eventRow{}, errors.New("end_time is required")
	}
	return eventRow{
		title:       f.Title,
		date:        f.Date.Format(DateFormat),
		startTime:   f.StartTime.Format(TimeFormat),
		endTime:     f.EndTime.Format(TimeFormat),
		description: f.Description,
	}, nil
}

func getEvent(ctx context.Context, q sqlx.QueryerContext, id int64) (*Event, error) {
	var event Event
	err := sqlx.GetContext(ctx, q, &event, selectEventColumns+"WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	return &event, nil
}

func (s *Store) record(ctx context.Context, tx *sqlx.Tx, action audit.Action, event *Event) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, tx, action, event.ID, event.Response())
}

// Insert persists a new event and returns its identifier.
func (s *Store) Insert(ctx context.Context, fields EventFields) (int64, error) {
	event, err := s.Create(ctx, fields)
	if err != nil {
		return 0, err
	}
	return event.ID, nil
}

// Create persists a new event and returns the stored record.
func (s *Store) Create(ctx context.Context, fields EventFields) (*Event, error) {
	row, err := fields.row()
	if err != nil {
		return nil, &StorageError{Op: "insert", Err: err}
	}

	var event *Event
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		now := s.now()
		var id int64
		err := tx.QueryRowxContext(ctx, insertEventSql,
			row.title, row.date, row.startTime, row.endTime, row.description, now, now,
		).Scan(&id)
		if err != nil {
			return &StorageError{Op: "insert", Err: err}
		}
		event, err = getEvent(ctx, tx, id)
		if err != nil {
			return err
		}
		return s.record(ctx, tx, audit.ActionEventCreated, event)
	})
	if err != nil {
		return nil, wrapStorage("insert", err)
	}
	return event, nil
}

// Get returns the event with the given identifier or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*Event, error) {
	return getEvent(ctx, s.db.GetDB(), id)
}

// QueryByYearMonth returns the events dated within the given month, ordered by
// date, start time and id. An empty month yields an empty, non-nil slice.
func (s *Store) QueryByYearMonth(ctx context.Context, year, month int) ([]Event, error) {
	first := fmt.Sprintf("%04d-%02d-01", year, month)
	last := fmt.Sprintf("%04d-%02d-31", year, month)

	events := []Event{}
	if err := s.db.GetDB().SelectContext(ctx, &events, queryByMonthSql, first, last); err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	return events, nil
}

// Update replaces all client-controlled fields of an event and refreshes
// updated_at. The stored record is left untouched on any error.
func (s *Store) Update(ctx context.Context, id int64, fields EventFields) (*Event, error) {
	row, err := fields.row()
	if err != nil {
		return nil, &StorageError{Op: "update", Err: err}
	}

	var event *Event
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, updateEventSql,
			row.title, row.date, row.startTime, row.endTime, row.description, s.now(), id,
		)
		if err != nil {
			return &StorageError{Op: "update", Err: err}
		}
		if n, err := res.RowsAffected(); err != nil {
			return &StorageError{Op: "update", Err: err}
		} else if n == 0 {
			return ErrNotFound
		}
		event, err = getEvent(ctx, tx, id)
		if err != nil {
			return err
		}
		return s.record(ctx, tx, audit.ActionEventUpdated, event)
	})
	if err != nil {
		return nil, wrapStorage("update", err)
	}
	return event, nil
}

// Delete removes an event permanently.
func (s *Store) Delete(ctx context.Context, id int64) error {
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		event, err := getEvent(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deleteEventSql, id); err != nil {
			return &StorageError{Op: "delete", Err: err}
		}
		return s.record(ctx, tx, audit.ActionEventDeleted, event)
	})
	return wrapStorage("delete", err)
}

// Count returns the number of stored events.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetDB().GetContext(ctx, &n, "SELECT COUNT(*) FROM calendar_events"); err != nil {
		return 0, &StorageError{Op: "count", Err: err}
	}
	return n, nil
}

// wrapStorage leaves typed errors alone and wraps anything else, such as a
// failed begin or commit.
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var storageErr *StorageError
	if errors.Is(err, ErrNotFound) || errors.As(err, &storageErr) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
