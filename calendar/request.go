package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// EventRequest is the body accepted by create and update. Required keys are
// pointers so that an absent key can be told apart from an empty value.
type EventRequest struct {
	Title       *string `json:"title"`
	Date        *string `json:"date"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Description *string `json:"description,omitempty"`
}

// DecodeEventRequest reads a JSON event body.
func DecodeEventRequest(r io.Reader) (*EventRequest, error) {
	var req EventRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Message: "request body is required"}
		}
		return nil, &ValidationError{Message: fmt.Sprintf("invalid JSON body: %v", err)}
	}
	return &req, nil
}

// Validate checks presence and format of every field. End time is not compared
// with start time and overlapping events are allowed.
func (req *EventRequest) Validate() (EventFields, error) {
	var fields EventFields

	if req.Title == nil {
		return fields, &ValidationError{Field: "title", Message: "is required"}
	}
	if strings.TrimSpace(*req.Title) == "" {
		return fields, &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(*req.Title) > maxTitleLength {
		return fields, &ValidationError{Field: "title", Message: fmt.Sprintf("must be at most %d characters", maxTitleLength)}
	}
	fields.Title = *req.Title

	var err error
	if fields.Date, err = parseField("date", req.Date, DateFormat, "YYYY-MM-DD"); err != nil {
		return fields, err
	}
	if fields.StartTime, err = parseField("start_time", req.StartTime, TimeFormat, "HH:MM"); err != nil {
		return fields, err
	}
	if fields.EndTime, err = parseField("end_time", req.EndTime, TimeFormat, "HH:MM"); err != nil {
		return fields, err
	}

	if req.Description != nil {
		fields.Description = *req.Description
	}
	return fields, nil
}

func parseField(name string, value *string, layout, display string) (time.Time, error) {
	if value == nil {
		return time.Time{}, &ValidationError{Field: name, Message: "is required"}
	}
	t, err := time.Parse(layout, *value)
	if err != nil {
		return time.Time{}, &ValidationError{Field: name, Message: fmt.Sprintf("%q does not match format %s", *value, display)}
	}
	return t, nil
}

// ParseYearMonth reads the year and month query parameters. Absent, zero or
// non-numeric values count as missing.
func ParseYearMonth(yearStr, monthStr string) (int, int, error) {
	year, yearErr := strconv.Atoi(yearStr)
	month, monthErr := strconv.Atoi(monthStr)
	if yearErr != nil || monthErr != nil || year == 0 || month == 0 {
		return 0, 0, &ValidationError{Message: "Year and month are required"}
	}
	return year, month, nil
}

// ParseEventID parses an event identifier from a path segment.
func ParseEventID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
