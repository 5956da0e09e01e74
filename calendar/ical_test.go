package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
)

func TestEventUIDIsStable(t *testing.T) {
	if EventUID(1) != EventUID(1) {
		t.Error("Same id should produce the same UID")
	}
	if EventUID(1) == EventUID(2) {
		t.Error("Different ids should produce different UIDs")
	}
}

func TestWriteICSRoundTrip(t *testing.T) {
	events := []Event{
		{ID: 1, Title: "Trail Ride", Date: "2024-06-15", StartTime: "09:00", EndTime: "11:00", Description: "Morning ride"},
		{ID: 2, Title: "Board Meeting", Date: "2024-06-20", StartTime: "19:30", EndTime: "21:00"},
	}
	stamp := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	if err := WriteICS(&buf, "RCBH 2024-06", events, stamp); err != nil {
		t.Fatalf("WriteICS failed: %v", err)
	}

	cal, err := ical.NewDecoder(strings.NewReader(buf.String())).Decode()
	if err != nil {
		t.Fatalf("Failed to decode export: %v", err)
	}
	vevents := cal.Events()
	if len(vevents) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(vevents))
	}

	first := vevents[0]
	if uid, _ := first.Props.Text(ical.PropUID); uid != EventUID(1) {
		t.Errorf("Unexpected UID %s", uid)
	}
	if summary, _ := first.Props.Text(ical.PropSummary); summary != "Trail Ride" {
		t.Errorf("Unexpected summary %s", summary)
	}
	if desc, _ := first.Props.Text(ical.PropDescription); desc != "Morning ride" {
		t.Errorf("Unexpected description %s", desc)
	}
	if start := first.Props.Get(ical.PropDateTimeStart); start == nil || start.Value != "20240615T090000" {
		t.Errorf("Unexpected DTSTART %+v", start)
	}
	if desc := vevents[1].Props.Get(ical.PropDescription); desc != nil {
		t.Errorf("Expected no description for second event, got %s", desc.Value)
	}
}

func TestWriteICSInvalidEvent(t *testing.T) {
	events := []Event{{ID: 3, Title: "Broken", Date: "2024-06-15", StartTime: "nine", EndTime: "10:00"}}
	var buf bytes.Buffer
	if err := WriteICS(&buf, "", events, time.Now()); err == nil {
		t.Error("Expected error for unparseable start time")
	}
}
