package schedule

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/civil"
	"github.com/teambition/rrule-go"

	appLog "questcal/internal/log"
	"questcal/internal/model"
	"questcal/internal/tz"
)

const (
	defaultDurationMin = 60

	// maxOccurrencesPerRule is a safety cap against absurd periods; the
	// display cap (MaxOccurrences) is enforced separately and softly.
	maxOccurrencesPerRule = 5000
)

// Builder expands a GoalSpec into concrete occurrences.
type Builder struct {
	// Zones resolves GoalSpec.Timezone. If nil, tz.Default() is used.
	Zones tz.Resolver

	// DefaultDurationMin applies when neither the rule/override nor the
	// spec names a duration. If zero, 60 minutes is used.
	DefaultDurationMin int
}

// NewBuilder returns a Builder resolving zones through zones.
func NewBuilder(zones tz.Resolver, defaultDurationMin int) *Builder {
	return &Builder{Zones: zones, DefaultDurationMin: defaultDurationMin}
}

var defaultBuilder = &Builder{}

// BuildOccurrences expands spec with the default builder.
func BuildOccurrences(spec model.GoalSpec) ([]model.Occurrence, error) {
	return defaultBuilder.Build(spec)
}

// candidate is an occurrence before time-zone resolution. seq records
// insertion order so ties on the same instant stay deterministic.
type candidate struct {
	date  civil.Date
	clock model.Clock
	dur   int
	seq   int
}

// Build expands the weekly rules of spec over spec.Period and applies the
// overrides. It handles:
//
//   - one WEEKLY RRULE per weekly rule, anchored at the period start in the
//     spec's time zone
//   - cancel via EXDATE on every rule instance of that date
//   - retime of every remaining instance on a date
//   - move of the first instance on the source date to a new date/time
//   - add of extra sessions, even on days a rule already covers
//
// The result is sorted by start instant; equal instants keep rule order
// before override order. Overrides landing outside the period are dropped.
// Only a structurally invalid spec (bad period, unknown zone, malformed
// rule or override) is an error. spec is never modified.
func (b *Builder) Build(spec model.GoalSpec) ([]model.Occurrence, error) {
	if err := model.CheckRange(spec.Period.Start, spec.Period.End); err != nil {
		return nil, fmt.Errorf("period.%w", err)
	}
	zones := b.Zones
	if zones == nil {
		zones = tz.Default()
	}
	loc, err := zones.Location(spec.Timezone)
	if err != nil {
		return nil, err
	}
	for i, r := range spec.Schedule.Rules {
		if !r.Time.Valid() {
			return nil, fmt.Errorf("schedule.rules[%d].time: out of range", i)
		}
	}
	for i, o := range spec.Schedule.Overrides {
		if err := o.Check(); err != nil {
			return nil, fmt.Errorf("schedule.overrides[%d]: %w", i, err)
		}
	}

	fallback := b.durationFallback(spec)
	cancels := overridesOf(spec.Schedule.Overrides, model.OverrideCancel)

	// Base generation, then reorder to a day-by-day walk: by date, and by
	// rule index within a date.
	var cands []candidate
	for i, rule := range spec.Schedule.Rules {
		dur := rule.DurationMin
		if dur <= 0 {
			dur = fallback
		}
		for _, t := range expandRule(i, rule, spec.Period, cancels, loc) {
			cands = append(cands, candidate{date: civil.DateOf(t.In(loc)), clock: rule.Time, dur: dur})
		}
	}
	slices.SortStableFunc(cands, func(a, b candidate) int { return model.CompareDates(a.date, b.date) })
	for i := range cands {
		cands[i].seq = i
	}
	next := len(cands)

	for _, o := range overridesOf(spec.Schedule.Overrides, model.OverrideRetime) {
		for i := range cands {
			if cands[i].date == o.Date {
				cands[i].clock = *o.Time
			}
		}
	}

	for _, o := range overridesOf(spec.Schedule.Overrides, model.OverrideMove) {
		dur := fallback
		if idx := slices.IndexFunc(cands, func(c candidate) bool { return c.date == o.Date }); idx >= 0 {
			dur = cands[idx].dur
			cands = slices.Delete(cands, idx, idx+1)
		}
		if o.DurationMin > 0 {
			dur = o.DurationMin
		}
		cands = append(cands, candidate{date: *o.ToDate, clock: *o.ToTime, dur: dur, seq: next})
		next++
	}

	for _, o := range overridesOf(spec.Schedule.Overrides, model.OverrideAdd) {
		dur := o.DurationMin
		if dur <= 0 {
			dur = fallback
		}
		cands = append(cands, candidate{date: o.Date, clock: *o.Time, dur: dur, seq: next})
		next++
	}

	out := make([]model.Occurrence, 0, len(cands))
	kept := make([]candidate, 0, len(cands))
	for _, c := range cands {
		if !spec.Period.Contains(c.date) {
			appLog.Debug("schedule: dropping occurrence outside period", "date", c.date.String(), "period_start", spec.Period.Start.String(), "period_end", spec.Period.End.String())
			continue
		}
		kept = append(kept, c)
	}
	slices.SortStableFunc(kept, func(a, b candidate) int {
		if c := a.clock.On(a.date, loc).Compare(b.clock.On(b.date, loc)); c != 0 {
			return c
		}
		return a.seq - b.seq
	})
	for _, c := range kept {
		start := c.clock.On(c.date, loc)
		out = append(out, model.Occurrence{
			Start: start,
			End:   start.Add(time.Duration(c.dur) * time.Minute),
		})
	}
	return out, nil
}

func (b *Builder) durationFallback(spec model.GoalSpec) int {
	switch {
	case spec.Schedule.DefaultDurationMin > 0:
		return spec.Schedule.DefaultDurationMin
	case b.DefaultDurationMin > 0:
		return b.DefaultDurationMin
	default:
		return defaultDurationMin
	}
}

// expandRule returns the instants rule produces within period, minus the
// cancelled dates.
func expandRule(idx int, rule model.WeeklyRule, period model.Period, cancels []model.Override, loc *time.Location) []time.Time {
	if len(rule.Weekdays) == 0 {
		return nil
	}
	byDay := make([]rrule.Weekday, 0, len(rule.Weekdays))
	for _, wd := range rule.Weekdays {
		byDay = append(byDay, rruleWeekday(wd))
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   rule.Time.On(period.Start, loc),
		Until:     model.NewClock(23, 59).On(period.End, loc),
		Byweekday: byDay,
	})
	if err != nil {
		appLog.Error("schedule: failed to build RRULE", err, "rule", idx)
		return nil
	}

	var set rrule.Set
	set.RRule(r)
	for _, c := range cancels {
		set.ExDate(rule.Time.On(c.Date, loc))
	}

	times := set.All()
	if len(times) > maxOccurrencesPerRule {
		appLog.Error("schedule: truncated occurrences for rule due to cap",
			errors.New("max occurrences reached"),
			"rule", idx,
			"cap", maxOccurrencesPerRule,
		)
		times = times[:maxOccurrencesPerRule]
	}
	return times
}

func rruleWeekday(wd time.Weekday) rrule.Weekday {
	switch wd {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}

func overridesOf(all []model.Override, kind model.OverrideKind) []model.Override {
	var out []model.Override
	for _, o := range all {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}
