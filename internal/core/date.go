package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Date layouts accepted from the server, most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Date is a calendar date (optionally with a time of day) as exchanged with the API.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses any of the layouts the API is known to emit.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date %q", s)
}

// String renders the date part only, which is what the API expects in queries.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	if d.Hour() == 0 && d.Minute() == 0 && d.Second() == 0 {
		return json.Marshal(d.Format("2006-01-02"))
	}
	return json.Marshal(d.Format("2006-01-02 15:04:05"))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// InRange reports whether d is inside [from, to]; zero bounds are open.
// Calendar days are compared in each value's own location.
func (d Date) InRange(from, to Date) bool {
	day := d.day()
	if !from.IsZero() && day.Before(from.day()) {
		return false
	}
	if !to.IsZero() && day.After(to.day()) {
		return false
	}
	return true
}

// day is the calendar date of d as midnight UTC.
func (d Date) day() time.Time {
	y, m, dd := d.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}
