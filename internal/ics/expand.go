package ics

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/civil"
	"github.com/teambition/rrule-go"

	appLog "questcal/internal/log"
	"questcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// Location is the zone calendar dates and times are read in. If nil,
	// time.UTC is used.
	Location *time.Location

	// Period bounds the expansion, both dates inclusive.
	Period model.Period

	// MaxOccurrencesPerEvent caps a single VEVENT's expansion. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds the expanded calendar entries.
type ExpandResult struct {
	Events []model.CalendarEvent
	// TruncatedEvents records UIDs that hit MaxOccurrencesPerEvent.
	TruncatedEvents []string
}

// ExpandEvents turns parsed VEVENTs into dated calendar entries inside
// cfg.Period. It handles:
//
//   - single events
//   - RRULE recurrence with EXDATE removal
//   - RECURRENCE-ID overrides, including cancelled instances
//   - all-day events, which become entries without a time
//
// Entries are sorted by date, then time, untimed first.
func ExpandEvents(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if err := model.CheckRange(cfg.Period.Start, cfg.Period.End); err != nil {
		return result, fmt.Errorf("expand: period.%w", err)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	var uids []string
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	result.Events = make([]model.CalendarEvent, 0)
	for _, uid := range uids {
		for _, ev := range baseByUID[uid] {
			entries, hitCap := expandEvent(ev, overridesByUID[uid], cfg)
			result.Events = append(result.Events, entries...)
			if hitCap && !slices.Contains(result.TruncatedEvents, uid) {
				result.TruncatedEvents = append(result.TruncatedEvents, uid)
				appLog.Error("ics: truncated occurrences for UID due to cap",
					errors.New("max occurrences reached"),
					"uid", uid,
					"cap", cfg.MaxOccurrencesPerEvent,
				)
			}
		}
	}

	slices.SortStableFunc(result.Events, func(a, b model.CalendarEvent) int {
		if c := model.CompareDates(a.Date, b.Date); c != 0 {
			return c
		}
		return clockKey(a) - clockKey(b)
	})
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	if ev.RawRRule == "" {
		if ev.Cancelled {
			return nil, false
		}
		if o, ok := findOverride(overrides, ev.Start); ok {
			ev = o
		}
		if e, ok := toCalendarEvent(ev, ev.Start, cfg); ok && !ev.Cancelled {
			return []model.CalendarEvent{e}, false
		}
		return nil, false
	}
	return expandRecurring(ev, overrides, cfg)
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	if ev.Cancelled {
		return nil, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen by a day on each side so zone differences between the event
	// and cfg.Location never drop an edge instance; toCalendarEvent filters
	// by date afterwards.
	from := time.Date(cfg.Period.Start.Year, cfg.Period.Start.Month, cfg.Period.Start.Day, 0, 0, 0, 0, cfg.Location).AddDate(0, 0, -1)
	to := time.Date(cfg.Period.End.Year, cfg.Period.End.Month, cfg.Period.End.Day, 0, 0, 0, 0, cfg.Location).AddDate(0, 0, 2)
	times := set.Between(from.In(ev.Start.Location()), to.In(ev.Start.Location()), true)

	hitCap := false
	if len(times) > cfg.MaxOccurrencesPerEvent {
		times = times[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.CalendarEvent, 0, len(times))
	for _, start := range times {
		inst := ev
		if o, ok := findOverride(overrides, start); ok {
			if o.Cancelled {
				continue
			}
			inst = o
			start = o.Start
		}
		if e, ok := toCalendarEvent(inst, start, cfg); ok {
			out = append(out, e)
		}
	}
	return out, hitCap
}

// findOverride returns the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// toCalendarEvent reads start in cfg.Location. All-day entries keep their
// own calendar date and carry no time.
func toCalendarEvent(ev ParsedEvent, start time.Time, cfg ExpandConfig) (model.CalendarEvent, bool) {
	var e model.CalendarEvent
	if ev.AllDay {
		e.Date = civil.Date{Year: start.Year(), Month: start.Month(), Day: start.Day()}
	} else {
		local := start.In(cfg.Location)
		c := model.ClockOf(local)
		e.Date = civil.DateOf(local)
		e.Time = &c
	}
	return e, cfg.Period.Contains(e.Date)
}

func clockKey(e model.CalendarEvent) int {
	if e.Time == nil {
		return -1
	}
	return int(*e.Time)
}

// ParseCalendarEvents parses body and expands it over period in loc.
func ParseCalendarEvents(src Source, body []byte, period model.Period, loc *time.Location) ([]model.CalendarEvent, error) {
	parsed, err := ParseICS(src, body)
	if err != nil {
		return nil, err
	}
	res, err := ExpandEvents(parsed, ExpandConfig{Location: loc, Period: period})
	if err != nil {
		return nil, err
	}
	return res.Events, nil
}
