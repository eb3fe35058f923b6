package validate

import (
	"slices"
	"time"

	"questcal/internal/model"
)

// proposeFixes derives a weekly schedule that satisfies the count rule,
// weekday constraints and time windows of spec while keeping as much of the
// user's own calendar as possible. It returns nil when no weekly schedule
// can satisfy the constraints.
//
// Weekdays: the user's weekdays plus the constrained ones; missing weekdays
// are added Monday first until the count is reached; for "<=" and "=" the
// non-constrained weekdays with the fewest events are dropped first.
//
// Times per weekday: the user's in-window times, else the first window
// start, else the time of a rule covering the weekday, else the user's most
// common in-window time, else none.
func proposeFixes(spec model.GoalSpec, events []model.CalendarEvent) *model.Fixes {
	constrained := uniqueWeekdays(spec.WeekdayConstraints)

	perDay := map[time.Weekday]int{}
	inWindow := map[time.Weekday][]model.Clock{}
	tally := map[model.Clock]int{}
	for _, e := range events {
		wd := model.WeekdayOf(e.Date)
		perDay[wd]++
		if !e.Timed() || !e.Time.Valid() || !fits(spec.TimeRules[wd], *e.Time) {
			continue
		}
		if !slices.Contains(inWindow[wd], *e.Time) {
			inWindow[wd] = append(inWindow[wd], *e.Time)
		}
		tally[*e.Time]++
	}

	chosen := weekdaysOf(events)
	for _, wd := range constrained {
		if !slices.Contains(chosen, wd) {
			chosen = append(chosen, wd)
		}
	}

	if cr := spec.CountRule; cr != nil {
		if cr.Operator != model.OpAtLeast && len(constrained) > cr.Count {
			return nil
		}
		if cr.Operator != model.OpAtMost {
			for i := 0; i < 7 && len(chosen) < cr.Count; i++ {
				wd := time.Weekday((i + 1) % 7)
				if !slices.Contains(chosen, wd) {
					chosen = append(chosen, wd)
				}
			}
		}
		if cr.Operator != model.OpAtLeast && len(chosen) > cr.Count {
			chosen = trim(chosen, constrained, perDay, cr.Count)
		}
	}
	if len(chosen) == 0 {
		return nil
	}

	common, hasCommon := mostCommon(tally)
	fixes := &model.Fixes{
		WeeklyWeekdays:     make([]int, 0, len(chosen)),
		WeeklyTimeSettings: make(map[int][]string, len(chosen)),
	}
	slices.Sort(chosen)
	for _, wd := range chosen {
		fixes.WeeklyWeekdays = append(fixes.WeeklyWeekdays, int(wd))

		var times []model.Clock
		switch {
		case len(inWindow[wd]) > 0:
			times = slices.Sorted(slices.Values(inWindow[wd]))
		case len(spec.TimeRules[wd]) > 0:
			times = []model.Clock{spec.TimeRules[wd][0].Start}
		default:
			if t, ok := ruleTime(spec.Schedule.Rules, wd); ok {
				times = []model.Clock{t}
			} else if hasCommon {
				times = []model.Clock{common}
			}
		}
		labels := make([]string, len(times))
		for i, t := range times {
			labels[i] = t.String()
		}
		fixes.WeeklyTimeSettings[int(wd)] = labels
	}
	return fixes
}

// trim drops non-constrained weekdays, fewest events first and later in the
// week first on ties, until n remain.
func trim(chosen, constrained []time.Weekday, perDay map[time.Weekday]int, n int) []time.Weekday {
	var optional []time.Weekday
	for _, wd := range chosen {
		if !slices.Contains(constrained, wd) {
			optional = append(optional, wd)
		}
	}
	slices.SortFunc(optional, func(a, b time.Weekday) int {
		if perDay[a] != perDay[b] {
			return perDay[a] - perDay[b]
		}
		return mondayIndex(b) - mondayIndex(a)
	})

	out := slices.Clone(chosen)
	for _, wd := range optional {
		if len(out) <= n {
			break
		}
		out = slices.DeleteFunc(out, func(x time.Weekday) bool { return x == wd })
	}
	return out
}

func fits(windows []model.TimeWindow, c model.Clock) bool {
	if len(windows) == 0 {
		return true
	}
	return slices.ContainsFunc(windows, func(w model.TimeWindow) bool { return w.Contains(c) })
}

func ruleTime(rules []model.WeeklyRule, wd time.Weekday) (model.Clock, bool) {
	for _, r := range rules {
		if r.Time.Valid() && slices.Contains(r.Weekdays, wd) {
			return r.Time, true
		}
	}
	return 0, false
}

// mostCommon returns the most frequent clock, earliest on ties.
func mostCommon(tally map[model.Clock]int) (model.Clock, bool) {
	best, bestN := model.Clock(0), 0
	for c, n := range tally {
		if n > bestN || (n == bestN && c < best) {
			best, bestN = c, n
		}
	}
	return best, bestN > 0
}
