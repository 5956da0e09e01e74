package calendar

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

const (
	icalProductID      = "-//Riding Club of Barrington Hills//clubsite//EN"
	icalDateTimeFormat = "20060102T150405"
)

// eventNamespace seeds the UIDs of exported events so that an event keeps its
// UID across exports.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://rcbh.org/calendar/events"))

// EventUID returns the stable iCalendar UID of an event.
func EventUID(id int64) string {
	return uuid.NewSHA1(eventNamespace, []byte(strconv.FormatInt(id, 10))).String()
}

// WriteICS encodes events as a VCALENDAR. Times carry no time zone and are
// interpreted as local time by calendar clients.
func WriteICS(w io.Writer, name string, events []Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icalProductID)
	if name != "" {
		cal.Props.SetText("X-WR-CALNAME", name)
	}

	for i := range events {
		vevent, err := toICal(&events[i], stamp)
		if err != nil {
			return err
		}
		cal.Children = append(cal.Children, vevent)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func toICal(event *Event, stamp time.Time) (*ical.Component, error) {
	start, err := time.Parse(DateFormat+" "+TimeFormat, event.Date+" "+event.StartTime)
	if err != nil {
		return nil, fmt.Errorf("event %d has invalid start: %w", event.ID, err)
	}
	end, err := time.Parse(DateFormat+" "+TimeFormat, event.Date+" "+event.EndTime)
	if err != nil {
		return nil, fmt.Errorf("event %d has invalid end: %w", event.ID, err)
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, EventUID(event.ID))
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.Set(floatingDateTime(ical.PropDateTimeStart, start))
	ve.Props.Set(floatingDateTime(ical.PropDateTimeEnd, end))
	ve.Props.SetText(ical.PropSummary, event.Title)
	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	if !event.UpdatedAt.IsZero() {
		ve.Props.SetDateTime(ical.PropLastModified, event.UpdatedAt.UTC())
	}
	return ve, nil
}

func floatingDateTime(name string, t time.Time) *ical.Prop {
	prop := ical.NewProp(name)
	prop.Value = t.Format(icalDateTimeFormat)
	return prop
}
