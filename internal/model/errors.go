package model

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Contract violations. Domain outcomes (incompatible schedules, missing
// fields) are returned as data and never use these.
var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidSpec   = errors.New("invalid goal spec")
)

// ParseDate parses an ISO "YYYY-MM-DD" value, naming field in the error.
func ParseDate(field, s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%s: %w: %q is not YYYY-MM-DD", field, ErrInvalidDate, s)
	}
	return d, nil
}

// CheckRange returns an error naming the end field if end precedes start.
func CheckRange(start, end civil.Date) error {
	if !start.IsValid() {
		return fmt.Errorf("start: %w", ErrInvalidDate)
	}
	if !end.IsValid() {
		return fmt.Errorf("end: %w", ErrInvalidDate)
	}
	if end.Before(start) {
		return fmt.Errorf("end: %w: %s is before start %s", ErrInvalidPeriod, end, start)
	}
	return nil
}

// WeekdayOf returns the weekday of d.
func WeekdayOf(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

// CompareDates orders a and b like cmp.Compare.
func CompareDates(a, b civil.Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
