package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"gopkg.in/yaml.v3"
)

// Clock is a wall-clock time of day in minutes since midnight. Its text form
// is zero-padded 24-hour "HH:MM".
type Clock int

const minutesPerDay = 24 * 60

// NewClock returns the Clock for h:m. It does not range check.
func NewClock(h, m int) Clock { return Clock(h*60 + m) }

// ParseClock parses "HH:MM" or "H:MM".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", s)
	}
	return NewClock(h, m), nil
}

// MustClock is ParseClock for literals; it panics on bad input.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the wall-clock time of t in its own location.
func ClockOf(t time.Time) Clock { return NewClock(t.Hour(), t.Minute()) }

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// Valid reports whether c is within a single day.
func (c Clock) Valid() bool { return c >= 0 && c < minutesPerDay }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On resolves c on date d in loc. A wall time skipped by a forward DST
// transition shifts forward by the length of the gap (02:30 becomes 03:30).
// A repeated wall time resolves to whichever instant time.Date picks.
func (c Clock) On(d civil.Date, loc *time.Location) time.Time {
	t := time.Date(d.Year, d.Month, d.Day, c.Hour(), c.Minute(), 0, 0, loc)
	if t.Hour() == c.Hour() && t.Minute() == c.Minute() {
		return t
	}
	_, before := t.Add(-12 * time.Hour).Zone()
	_, after := t.Add(12 * time.Hour).Zone()
	wall := time.Date(d.Year, d.Month, d.Day, c.Hour(), c.Minute(), 0, 0, time.UTC)
	return wall.Add(-time.Duration(min(before, after)) * time.Second).In(loc)
}

func (c Clock) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid time %d minutes", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// TimeWindow is an inclusive time-of-day range. A window whose End is
// before its Start wraps past midnight.
type TimeWindow struct {
	Start Clock
	End   Clock
}

// Contains reports whether c falls inside w.
func (w TimeWindow) Contains(c Clock) bool {
	if w.End < w.Start {
		return c >= w.Start || c <= w.End
	}
	return c >= w.Start && c <= w.End
}

func (w TimeWindow) String() string {
	return w.Start.String() + "-" + w.End.String()
}

func (w TimeWindow) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{w.Start.String(), w.End.String()})
}

func (w *TimeWindow) UnmarshalJSON(b []byte) error {
	var pair []string
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	return w.fromPair(pair)
}

func (w TimeWindow) MarshalYAML() (any, error) {
	return []string{w.Start.String(), w.End.String()}, nil
}

func (w *TimeWindow) UnmarshalYAML(node *yaml.Node) error {
	var pair []string
	if err := node.Decode(&pair); err != nil {
		return err
	}
	return w.fromPair(pair)
}

func (w *TimeWindow) fromPair(pair []string) error {
	if len(pair) != 2 {
		return fmt.Errorf("time window: want [start, end], got %d values", len(pair))
	}
	start, err := ParseClock(pair[0])
	if err != nil {
		return fmt.Errorf("time window start: %w", err)
	}
	end, err := ParseClock(pair[1])
	if err != nil {
		return fmt.Errorf("time window end: %w", err)
	}
	w.Start, w.End = start, end
	return nil
}
