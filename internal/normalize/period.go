package normalize

import (
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"questcal/internal/model"
)

var reLooseDate = regexp.MustCompile(`^(\d{4})[-./년\s]+(\d{1,2})[-./월\s]+(\d{1,2})일?`)

// Period reads {start, end} from a map (also accepting startDate/endDate and
// from/to), a two-element list, or a model.Period. Reversed ranges are
// swapped rather than rejected.
func Period(raw any, loc *time.Location) (model.Period, bool) {
	if loc == nil {
		loc = time.UTC
	}
	var startRaw, endRaw any
	switch v := raw.(type) {
	case model.Period:
		startRaw, endRaw = v.Start, v.End
	case map[string]any:
		startRaw = firstKey(v, "start", "startDate", "from")
		endRaw = firstKey(v, "end", "endDate", "to")
	case map[string]string:
		startRaw = firstString(v, "start", "startDate", "from")
		endRaw = firstString(v, "end", "endDate", "to")
	case []any:
		if len(v) == 2 {
			startRaw, endRaw = v[0], v[1]
		}
	case []string:
		if len(v) == 2 {
			startRaw, endRaw = v[0], v[1]
		}
	}

	start, ok := Date(startRaw, loc)
	if !ok {
		return model.Period{}, false
	}
	end, ok := Date(endRaw, loc)
	if !ok {
		return model.Period{}, false
	}
	if end.Before(start) {
		start, end = end, start
	}
	return model.Period{Start: start, End: end}, true
}

// Date reads a calendar date from an ISO string, an RFC 3339 timestamp
// (taken in loc), a loosely separated "2025.10.01" / "2025년 10월 1일", a
// time.Time, or a civil.Date.
func Date(raw any, loc *time.Location) (civil.Date, bool) {
	if loc == nil {
		loc = time.UTC
	}
	switch v := raw.(type) {
	case civil.Date:
		return v, v.IsValid()
	case time.Time:
		if v.IsZero() {
			return civil.Date{}, false
		}
		return civil.DateOf(v.In(loc)), true
	case *time.Time:
		if v == nil {
			return civil.Date{}, false
		}
		return Date(*v, loc)
	case string:
		s := strings.TrimSpace(fold(v))
		if d, err := civil.ParseDate(s); err == nil {
			return d, true
		}
		if t, err := time.Parse(time.RFC3339, strings.ToUpper(s)); err == nil {
			return civil.DateOf(t.In(loc)), true
		}
		if m := reLooseDate.FindStringSubmatch(s); m != nil {
			d := civil.Date{Year: atoi(m[1]), Month: time.Month(atoi(m[2])), Day: atoi(m[3])}
			return d, d.IsValid()
		}
		return civil.Date{}, false
	default:
		return civil.Date{}, false
	}
}

func firstKey(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(m map[string]string, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != "" {
			return v
		}
	}
	return nil
}
