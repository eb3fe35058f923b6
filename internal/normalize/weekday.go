package normalize

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "su": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "mo": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday, "tu": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "we": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "th": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "fr": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "sa": time.Saturday,

	"일": time.Sunday, "월": time.Monday, "화": time.Tuesday, "수": time.Wednesday,
	"목": time.Thursday, "금": time.Friday, "토": time.Saturday,
}

var weekdayGroups = map[string][]time.Weekday{
	"weekdays": {time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	"weekday":  {time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	"평일":       {time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	"weekend":  {time.Saturday, time.Sunday},
	"weekends": {time.Saturday, time.Sunday},
	"주말":       {time.Saturday, time.Sunday},
	"daily":    allWeekdays(),
	"everyday": allWeekdays(),
	"매일":       allWeekdays(),
}

func allWeekdays() []time.Weekday {
	return []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
}

// Weekdays converts a list of weekday references into a sorted, deduplicated
// slice with 0 = Sunday. Unknown entries are skipped; an empty result is
// reported as not ok.
func Weekdays(raw any) ([]time.Weekday, bool) {
	var out []time.Weekday
	for _, item := range asList(raw) {
		out = append(out, weekdaysOf(item)...)
	}
	slices.Sort(out)
	out = slices.Compact(out)
	return out, len(out) > 0
}

// Weekday converts a single weekday reference.
func Weekday(raw any) (time.Weekday, bool) {
	wds := weekdaysOf(raw)
	if len(wds) != 1 {
		return 0, false
	}
	return wds[0], true
}

func weekdaysOf(item any) []time.Weekday {
	switch v := item.(type) {
	case time.Weekday:
		if v >= time.Sunday && v <= time.Saturday {
			return []time.Weekday{v}
		}
		return nil
	case string:
		return weekdaysOfText(v)
	case bool, nil:
		return nil
	default:
		n, err := cast.ToIntE(v)
		if err != nil {
			return nil
		}
		return weekdayIndex(n)
	}
}

func weekdayIndex(n int) []time.Weekday {
	switch {
	case n == 7:
		return []time.Weekday{time.Sunday}
	case n >= 0 && n <= 6:
		return []time.Weekday{time.Weekday(n)}
	default:
		return nil
	}
}

func weekdaysOfText(s string) []time.Weekday {
	key := compact(s)
	if key == "" {
		return nil
	}
	if n, err := strconv.Atoi(key); err == nil {
		return weekdayIndex(n)
	}
	key = strings.TrimSuffix(key, ".")
	if g, ok := weekdayGroups[key]; ok {
		return g
	}
	for _, suffix := range []string{"요일", "욜"} {
		key = strings.TrimSuffix(key, suffix)
	}
	if wd, ok := weekdayNames[key]; ok {
		return []time.Weekday{wd}
	}
	// Runs of Korean day characters such as "월수금" or "화·목".
	var run []time.Weekday
	for _, r := range key {
		wd, ok := weekdayNames[string(r)]
		if !ok {
			return nil
		}
		run = append(run, wd)
	}
	return run
}
