package model

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// OverrideKind tags the variant of an Override.
type OverrideKind string

const (
	OverrideCancel OverrideKind = "cancel"
	OverrideRetime OverrideKind = "retime"
	OverrideAdd    OverrideKind = "add"
	OverrideMove   OverrideKind = "move"
)

// Override is a date-level exception applied after weekly rules are
// expanded. Which fields are meaningful depends on Kind:
//
//	cancel: Date
//	retime: Date, Time
//	add:    Date, Time, DurationMin
//	move:   Date (source), ToDate, ToTime
type Override struct {
	Kind        OverrideKind `json:"kind"                  yaml:"kind"                  validate:"required,oneof=cancel retime add move"`
	Date        civil.Date   `json:"date"                  yaml:"date"`
	Time        *Clock       `json:"time,omitempty"        yaml:"time,omitempty"`
	ToDate      *civil.Date  `json:"toDate,omitempty"      yaml:"toDate,omitempty"`
	ToTime      *Clock       `json:"toTime,omitempty"      yaml:"toTime,omitempty"`
	DurationMin int          `json:"durationMin,omitempty" yaml:"durationMin,omitempty" validate:"min=0"`
}

func Cancel(date civil.Date) Override {
	return Override{Kind: OverrideCancel, Date: date}
}

func Retime(date civil.Date, t Clock) Override {
	return Override{Kind: OverrideRetime, Date: date, Time: &t}
}

func Add(date civil.Date, t Clock, durationMin int) Override {
	return Override{Kind: OverrideAdd, Date: date, Time: &t, DurationMin: durationMin}
}

func Move(from, to civil.Date, t Clock) Override {
	return Override{Kind: OverrideMove, Date: from, ToDate: &to, ToTime: &t}
}

// Check verifies that the fields required by Kind are present.
func (o Override) Check() error {
	if !o.Date.IsValid() {
		return fmt.Errorf("%s override: date %w", o.Kind, ErrInvalidDate)
	}
	switch o.Kind {
	case OverrideCancel:
		return nil
	case OverrideRetime, OverrideAdd:
		if o.Time == nil || !o.Time.Valid() {
			return fmt.Errorf("%s override on %s: time is required", o.Kind, o.Date)
		}
		return nil
	case OverrideMove:
		if o.ToDate == nil || !o.ToDate.IsValid() {
			return fmt.Errorf("move override on %s: toDate is required", o.Date)
		}
		if o.ToTime == nil || !o.ToTime.Valid() {
			return fmt.Errorf("move override on %s: toTime is required", o.Date)
		}
		return nil
	default:
		return fmt.Errorf("unknown override kind %q", o.Kind)
	}
}
