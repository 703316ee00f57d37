package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are tried in order. Fractional seconds are accepted after
// the seconds field of any of them.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTimestamp reads the date forms the backend emits: RFC 3339, a
// datetime without a zone (taken as local time) or a bare date (UTC).
// The calendar day written in s is the day of the result in its own
// location.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		loc := time.Local
		if layout == time.DateOnly {
			loc = time.UTC
		}
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Timestamp decodes any form ParseTimestamp accepts. null and "" decode to
// the zero value.
type Timestamp time.Time

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*ts = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*ts = Timestamp{}
		return nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = Timestamp(t)
	return nil
}

// Time returns ts as a time.Time; a nil ts is the zero time
func (ts *Timestamp) Time() time.Time {
	if ts == nil {
		return time.Time{}
	}
	return time.Time(*ts)
}

// Ptr returns nil for a nil or zero ts
func (ts *Timestamp) Ptr() *time.Time {
	t := ts.Time()
	if t.IsZero() {
		return nil
	}
	return &t
}

// The decoders below shadow the time fields with Timestamp so the rest of
// each payload decodes as usual.

func (t *Task) UnmarshalJSON(b []byte) error {
	type Alias Task
	aux := struct {
		*Alias
		CreatedAt   *Timestamp `json:"createdAt"`
		DueDate     *Timestamp `json:"dueDate"`
		CompletedAt *Timestamp `json:"completedAt"`
	}{Alias: (*Alias)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	t.CreatedAt = aux.CreatedAt.Time()
	t.DueDate = aux.DueDate.Ptr()
	t.CompletedAt = aux.CompletedAt.Ptr()
	return nil
}

func (p *Project) UnmarshalJSON(b []byte) error {
	type Alias Project
	aux := struct {
		*Alias
		StartDate *Timestamp `json:"startDate"`
		EndDate   *Timestamp `json:"endDate"`
	}{Alias: (*Alias)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.StartDate = aux.StartDate.Ptr()
	p.EndDate = aux.EndDate.Ptr()
	return nil
}

func (u *User) UnmarshalJSON(b []byte) error {
	type Alias User
	aux := struct {
		*Alias
		CreatedAt *Timestamp `json:"createdAt"`
	}{Alias: (*Alias)(u)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	u.CreatedAt = aux.CreatedAt.Ptr()
	return nil
}

func (c *Comment) UnmarshalJSON(b []byte) error {
	type Alias Comment
	aux := struct {
		*Alias
		CreatedAt *Timestamp `json:"createdAt"`
	}{Alias: (*Alias)(c)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	c.CreatedAt = aux.CreatedAt.Time()
	return nil
}
