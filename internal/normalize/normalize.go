// Package normalize coerces loosely typed, possibly multilingual goal drafts
// into canonical model values. Nothing in this package returns an error:
// input that cannot be understood is reported as a missing slot so the
// caller can ask a targeted follow-up question.
package normalize

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Slot names one normalizable field of a draft.
type Slot string

const (
	SlotWeekdays     Slot = "weekdays"
	SlotWeekBoundary Slot = "weekBoundary"
	SlotTime         Slot = "time"
	SlotPeriod       Slot = "period"
	SlotPerWeek      Slot = "perWeek"
	SlotVerification Slot = "verification"
	SlotMilestones   Slot = "milestones"
	SlotTimezone     Slot = "timezone"
)

// Value is the outcome of normalizing one slot. When Missing is set, Value
// is nil and Reason says what was wrong with the input.
type Value struct {
	Slot    Slot   `json:"slot"`
	Value   any    `json:"value,omitempty"`
	Missing bool   `json:"missing"`
	Reason  string `json:"reason,omitempty"`
}

// Normalize converts raw for slot. loc is the goal's time zone and is used
// to read instants as wall-clock values; nil means UTC.
func Normalize(slot Slot, raw any, loc *time.Location) Value {
	if loc == nil {
		loc = time.UTC
	}
	switch slot {
	case SlotWeekdays:
		if wds, ok := Weekdays(raw); ok {
			return found(slot, wds)
		}
		return missing(slot, "no recognizable weekday")
	case SlotWeekBoundary:
		if wd, ok := Weekday(raw); ok {
			return found(slot, wd)
		}
		return missing(slot, "no recognizable weekday")
	case SlotTime:
		if c, ok := Time(raw, loc); ok {
			return found(slot, c.String())
		}
		return missing(slot, "no recognizable time of day")
	case SlotPeriod:
		if p, ok := Period(raw, loc); ok {
			return found(slot, p)
		}
		return missing(slot, "start and end dates are required")
	case SlotPerWeek:
		if n, ok := PerWeek(raw); ok {
			return found(slot, n)
		}
		return missing(slot, "no recognizable count")
	case SlotVerification:
		return found(slot, Signals(raw))
	case SlotMilestones:
		return found(slot, Milestones(raw))
	case SlotTimezone:
		if name, ok := Timezone(raw, nil); ok {
			return found(slot, name)
		}
		return missing(slot, "unknown time zone")
	default:
		return missing(slot, "unknown slot")
	}
}

func found(slot Slot, v any) Value {
	return Value{Slot: slot, Value: v}
}

func missing(slot Slot, reason string) Value {
	return Value{Slot: slot, Missing: true, Reason: reason}
}

// fold canonicalizes free text for vocabulary lookup: NFC (so decomposed
// Hangul matches), full-width to ASCII, case folded, trimmed.
func fold(s string) string {
	s = norm.NFC.String(s)
	s = width.Fold.String(s)
	s = cases.Fold().String(s)
	return strings.TrimSpace(s)
}

// compact is fold with all whitespace removed.
func compact(s string) string {
	return strings.Join(strings.Fields(fold(s)), "")
}

// asList flattens the list shapes drafts use into []any. A bare string is
// split on common separators.
func asList(raw any) []any {
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out
	case []float64:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out
	case []time.Weekday:
		out := make([]any, len(v))
		for i, wd := range v {
			out[i] = wd
		}
		return out
	case string:
		parts := strings.FieldsFunc(fold(v), func(r rune) bool {
			switch r {
			case ',', '/', '|', ';', '·', '、', '，', ' ', '\t', '\n':
				return true
			}
			return false
		})
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out
	default:
		return []any{v}
	}
}
