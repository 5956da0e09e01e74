package calendar

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateFormat = "2006-01-02"
	TimeFormat = "15:04"

	maxTitleLength = 200
)

var (
	ErrNotFound = errors.New("event not found")
)

// Event is a calendar_events row. Date and times are kept in their wire
// formats; they are validated before they reach the store.
type Event struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Date        string    `db:"date"`
	StartTime   string    `db:"start_time"`
	EndTime     string    `db:"end_time"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// EventFields are the client-controlled attributes of an event, replaced
// wholesale on update.
type EventFields struct {
	Title       string
	Date        time.Time
	StartTime   time.Time
	EndTime     time.Time
	Description string
}

// EventResponse is the JSON shape of an event returned by the API
type EventResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description"`
}

func (e *Event) Response() EventResponse {
	return EventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Date:        e.Date,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Description: e.Description,
	}
}

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StorageError is returned when the database rejects an operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s event: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
