// Package validate reconciles user-authored calendar events with the
// weekly constraints of a GoalSpec.
package validate

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	appLog "questcal/internal/log"
	"questcal/internal/model"
	"questcal/internal/schedule"
)

// Modes reported in ValidationDetails.Mode.
const (
	ModeStrict    = "strict"
	ModeAggregate = "aggregate"
)

// ValidateGoalByCalendarEvents parses start and end as ISO dates and
// validates events against spec over that range. goalType overrides
// spec.Type when non-empty.
//
// Incompatibility is reported in the result, never as an error. An error
// means a malformed date or end before start.
func ValidateGoalByCalendarEvents(events []model.CalendarEvent, spec model.GoalSpec, start, end string, goalType model.GoalType) (model.ValidationResult, error) {
	from, err := model.ParseDate("start", start)
	if err != nil {
		return model.ValidationResult{}, err
	}
	to, err := model.ParseDate("end", end)
	if err != nil {
		return model.ValidationResult{}, err
	}
	return ValidatePeriod(events, spec, model.Period{Start: from, End: to}, goalType)
}

// ValidatePeriod is ValidateGoalByCalendarEvents over already parsed dates.
//
// In strict mode every complete week (see schedule.SliceCompleteWeeks) must
// satisfy the count rule, cover every constrained weekday and keep timed
// events inside the weekday's time windows. With spec.EnforcePartialWeeks
// the whole period is evaluated once against a prorated count instead.
func ValidatePeriod(events []model.CalendarEvent, spec model.GoalSpec, period model.Period, goalType model.GoalType) (model.ValidationResult, error) {
	if err := model.CheckRange(period.Start, period.End); err != nil {
		return model.ValidationResult{}, err
	}
	if goalType == "" {
		goalType = spec.Type
	}

	weeks, err := schedule.SliceCompleteWeeks(period.Start, period.End, &spec.WeekBoundary)
	if err != nil {
		return model.ValidationResult{}, err
	}

	c := &checker{
		spec:        spec,
		events:      eventsIn(events, period),
		constrained: uniqueWeekdays(spec.WeekdayConstraints),
	}
	details := model.ValidationDetails{
		Mode:       ModeStrict,
		GoalType:   goalType,
		Period:     period,
		EventCount: len(c.events),
		Weeks:      []model.WeekReport{},
	}

	if goalType == model.GoalFrequency && spec.CountRule == nil {
		c.add(model.IssueDetail{
			Code:    model.IssueNoCountRule,
			From:    period.Start,
			To:      period.End,
			Message: "frequency goal has no count rule",
		})
	}

	if spec.EnforcePartialWeeks {
		details.Mode = ModeAggregate
		rep := c.aggregate(period)
		details.Aggregate = &rep
	} else {
		if len(weeks) == 0 && (spec.CountRule != nil || len(c.constrained) > 0) {
			c.add(model.IssueDetail{
				Code:    model.IssueNoCompleteWeeks,
				From:    period.Start,
				To:      period.End,
				Message: fmt.Sprintf("%s~%s: no complete week to evaluate", period.Start, period.End),
			})
		}
		for _, w := range weeks {
			var tgt *target
			if cr := spec.CountRule; cr != nil {
				tgt = &target{op: cr.Operator, lo: cr.Count, hi: cr.Count}
			}
			rep := c.window(w.From, w.To, c.eventsBetween(w.From, w.To), tgt, c.constrained, "per week")
			details.Weeks = append(details.Weeks, rep)
		}
	}

	details.IssueDetail = c.details
	res := model.ValidationResult{
		IsCompatible:      len(c.issues) == 0,
		CompleteWeekCount: len(weeks),
		Issues:            c.issues,
		ValidationDetails: details,
	}
	if res.Issues == nil {
		res.Issues = []string{}
		res.ValidationDetails.IssueDetail = []model.IssueDetail{}
	}
	if !res.IsCompatible && c.repairable() {
		res.Fixes = proposeFixes(spec, c.events)
	}

	appLog.Debug("validate: calendar events evaluated",
		"mode", details.Mode,
		"weeks", len(weeks),
		"events", len(c.events),
		"compatible", res.IsCompatible,
		"issues", len(res.Issues),
	)
	return res, nil
}

// checker accumulates issues in evaluation order.
type checker struct {
	spec        model.GoalSpec
	events      []model.CalendarEvent
	constrained []time.Weekday

	issues  []string
	details []model.IssueDetail
}

func (c *checker) add(d model.IssueDetail) {
	c.issues = append(c.issues, d.Message)
	c.details = append(c.details, d)
}

// repairable reports whether a corrected weekly schedule could clear the
// recorded issues.
func (c *checker) repairable() bool {
	return slices.ContainsFunc(c.details, func(d model.IssueDetail) bool {
		switch d.Code {
		case model.IssueFrequency, model.IssueMissingWeekday, model.IssueTimeWindow:
			return true
		}
		return false
	})
}

func (c *checker) eventsBetween(from, to civil.Date) []model.CalendarEvent {
	var out []model.CalendarEvent
	for _, e := range c.events {
		if !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out
}

// aggregate evaluates the whole period once. The count rule is prorated to
// the period length and only constrained weekdays that actually occur in the
// period are required.
func (c *checker) aggregate(p model.Period) model.WeekReport {
	days := p.Days()
	var tgt *target
	if cr := c.spec.CountRule; cr != nil {
		floor := cr.Count * days / 7
		ceil := (cr.Count*days + 6) / 7
		tgt = &target{op: cr.Operator, lo: floor, hi: ceil}
		if cr.Operator == model.OpAtLeast {
			tgt.lo = max(1, floor)
		}
	}

	constrained := c.constrained
	if days < 7 {
		present := make(map[time.Weekday]bool, days)
		for d := p.Start; !d.After(p.End); d = d.AddDays(1) {
			present[model.WeekdayOf(d)] = true
		}
		constrained = slices.DeleteFunc(slices.Clone(constrained), func(wd time.Weekday) bool { return !present[wd] })
	}

	return c.window(p.Start, p.End, c.events, tgt, constrained, fmt.Sprintf("over %d days", days))
}

// window runs the frequency, weekday and time checks over one evaluation
// window and records issues in that order.
func (c *checker) window(from, to civil.Date, evs []model.CalendarEvent, tgt *target, constrained []time.Weekday, unit string) model.WeekReport {
	rep := model.WeekReport{
		From:       from,
		To:         to,
		EventCount: len(evs),
		Weekdays:   weekdaysOf(evs),
		Passed:     true,
	}

	if tgt != nil {
		rep.RequiredCount = tgt.required()
		if !tgt.ok(len(evs)) {
			rep.Passed = false
			c.add(model.IssueDetail{
				Code:     model.IssueFrequency,
				From:     from,
				To:       to,
				Operator: tgt.op,
				Required: rep.RequiredCount,
				Actual:   len(evs),
				Message:  fmt.Sprintf("%s~%s: %s, requires %s %s", from, to, sessions(len(evs)), tgt.describe(), unit),
			})
		}
	}

	for _, wd := range constrained {
		if !slices.Contains(rep.Weekdays, wd) {
			rep.MissingWeekdays = append(rep.MissingWeekdays, wd)
		}
	}
	if len(rep.MissingWeekdays) > 0 {
		rep.Passed = false
		c.add(model.IssueDetail{
			Code:     model.IssueMissingWeekday,
			From:     from,
			To:       to,
			Weekdays: rep.MissingWeekdays,
			Message:  fmt.Sprintf("%s~%s: no session on %s", from, to, weekdayNames(rep.MissingWeekdays)),
		})
	}

	for _, e := range evs {
		if !e.Timed() || !e.Time.Valid() {
			continue
		}
		wd := model.WeekdayOf(e.Date)
		windows := c.spec.TimeRules[wd]
		if len(windows) == 0 || slices.ContainsFunc(windows, func(w model.TimeWindow) bool { return w.Contains(*e.Time) }) {
			continue
		}
		rep.TimeViolations++
		rep.Passed = false
		date, clock, win := e.Date, *e.Time, windows[0]
		c.add(model.IssueDetail{
			Code:    model.IssueTimeWindow,
			From:    from,
			To:      to,
			Date:    &date,
			Time:    &clock,
			Window:  &win,
			Message: fmt.Sprintf("%s %s: %s is outside %s", e.Date, wd, clock, windowList(windows)),
		})
	}
	return rep
}

// target is the accepted event count range of one evaluation window.
type target struct {
	op     model.CountOperator
	lo, hi int
}

func (t target) ok(n int) bool {
	switch t.op {
	case model.OpAtMost:
		return n <= t.hi
	case model.OpExactly:
		return n >= t.lo && n <= t.hi
	default:
		return n >= t.lo
	}
}

func (t target) required() int {
	if t.op == model.OpAtMost {
		return t.hi
	}
	return t.lo
}

func (t target) describe() string {
	switch {
	case t.op == model.OpAtMost:
		return fmt.Sprintf("at most %d", t.hi)
	case t.op == model.OpExactly && t.lo == t.hi:
		return fmt.Sprintf("exactly %d", t.lo)
	case t.op == model.OpExactly:
		return fmt.Sprintf("between %d and %d", t.lo, t.hi)
	default:
		return fmt.Sprintf("at least %d", t.lo)
	}
}

// eventsIn returns a sorted copy of the events dated inside p. Events with
// an invalid date are skipped.
func eventsIn(events []model.CalendarEvent, p model.Period) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(events))
	for _, e := range events {
		if !e.Date.IsValid() {
			appLog.Debug("validate: skipping event with invalid date", "date", e.Date.String())
			continue
		}
		if p.Contains(e.Date) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b model.CalendarEvent) int {
		if c := model.CompareDates(a.Date, b.Date); c != 0 {
			return c
		}
		return clockKey(a) - clockKey(b)
	})
	return out
}

// clockKey orders untimed entries before timed ones on the same date.
func clockKey(e model.CalendarEvent) int {
	if e.Time == nil {
		return -1
	}
	return int(*e.Time)
}

// weekdaysOf lists the distinct weekdays of evs, Monday first.
func weekdaysOf(evs []model.CalendarEvent) []time.Weekday {
	out := []time.Weekday{}
	for _, e := range evs {
		wd := model.WeekdayOf(e.Date)
		if !slices.Contains(out, wd) {
			out = append(out, wd)
		}
	}
	sortMondayFirst(out)
	return out
}

func uniqueWeekdays(in []time.Weekday) []time.Weekday {
	var out []time.Weekday
	for _, wd := range in {
		if wd >= time.Sunday && wd <= time.Saturday && !slices.Contains(out, wd) {
			out = append(out, wd)
		}
	}
	sortMondayFirst(out)
	return out
}

func mondayIndex(wd time.Weekday) int { return (int(wd) + 6) % 7 }

func sortMondayFirst(wds []time.Weekday) {
	slices.SortFunc(wds, func(a, b time.Weekday) int { return mondayIndex(a) - mondayIndex(b) })
}

func weekdayNames(wds []time.Weekday) string {
	names := make([]string, len(wds))
	for i, wd := range wds {
		names[i] = wd.String()
	}
	return strings.Join(names, ", ")
}

func windowList(ws []model.TimeWindow) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = w.String()
	}
	return strings.Join(parts, ", ")
}

func sessions(n int) string {
	if n == 1 {
		return "1 session"
	}
	return fmt.Sprintf("%d sessions", n)
}
