package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"questcal/internal/model"
)

var (
	reColon    = regexp.MustCompile(`(\d{1,2})\s*:\s*(\d{2})`)
	reKorean   = regexp.MustCompile(`(\d{1,2})\s*시(?:\s*(\d{1,2})\s*분|\s*(반))?`)
	reHourOnly = regexp.MustCompile(`^(\d{1,2})(?:\s*(?:h|hr|o'?clock))?$`)
	reCompact  = regexp.MustCompile(`^(\d{1,2})(\d{2})$`)
)

type meridiem int

const (
	noMeridiem meridiem = iota
	am
	pm
)

var (
	amMarkers = []string{"오전", "새벽", "아침", "a.m.", "am"}
	pmMarkers = []string{"오후", "저녁", "밤", "p.m.", "pm"}
)

// Time converts a free-form time of day into a Clock. It accepts "HH:mm",
// "H:mm", "7pm", "7:30 a.m.", Korean phrasing ("오전 7시", "오후 7시 30분",
// "오후 7시 반", "19시", "정오", "자정"), a bare hour, or a time.Time read
// in loc.
func Time(raw any, loc *time.Location) (model.Clock, bool) {
	if loc == nil {
		loc = time.UTC
	}
	switch v := raw.(type) {
	case nil, bool:
		return 0, false
	case model.Clock:
		return v, v.Valid()
	case time.Time:
		if v.IsZero() {
			return 0, false
		}
		return model.ClockOf(v.In(loc)), true
	case *time.Time:
		if v == nil {
			return 0, false
		}
		return Time(*v, loc)
	case string:
		return timeOfText(v, loc)
	default:
		h, err := cast.ToIntE(v)
		if err != nil {
			return 0, false
		}
		return clockOf(h, 0, noMeridiem)
	}
}

func timeOfText(s string, loc *time.Location) (model.Clock, bool) {
	text := fold(s)
	if text == "" {
		return 0, false
	}
	// Full timestamps from upstream tools arrive as RFC 3339.
	if t, err := time.Parse(time.RFC3339, strings.ToUpper(text)); err == nil {
		return model.ClockOf(t.In(loc)), true
	}

	switch compact(text) {
	case "정오", "noon", "midday":
		return model.NewClock(12, 0), true
	case "자정", "midnight":
		return model.NewClock(0, 0), true
	}

	mer := detectMeridiem(text)
	bare := stripMeridiem(text)

	if m := reColon.FindStringSubmatch(bare); m != nil {
		return clockOf(atoi(m[1]), atoi(m[2]), mer)
	}
	if m := reKorean.FindStringSubmatch(bare); m != nil {
		minute := 0
		switch {
		case m[2] != "":
			minute = atoi(m[2])
		case m[3] != "":
			minute = 30
		}
		return clockOf(atoi(m[1]), minute, mer)
	}
	if m := reHourOnly.FindStringSubmatch(bare); m != nil {
		return clockOf(atoi(m[1]), 0, mer)
	}
	if m := reCompact.FindStringSubmatch(bare); m != nil {
		return clockOf(atoi(m[1]), atoi(m[2]), mer)
	}
	return 0, false
}

func detectMeridiem(text string) meridiem {
	for _, mk := range pmMarkers {
		if strings.Contains(text, mk) {
			return pm
		}
	}
	for _, mk := range amMarkers {
		if strings.Contains(text, mk) {
			return am
		}
	}
	return noMeridiem
}

func stripMeridiem(text string) string {
	for _, mk := range append(append([]string{}, pmMarkers...), amMarkers...) {
		text = strings.ReplaceAll(text, mk, " ")
	}
	return strings.TrimSpace(text)
}

// clockOf applies the meridiem: PM adds 12 hours except to 12 itself, and
// 12 AM is midnight.
func clockOf(h, m int, mer meridiem) (model.Clock, bool) {
	if mer != noMeridiem && h > 12 {
		// "오후 19시" and similar are already 24-hour.
		mer = noMeridiem
	}
	switch mer {
	case pm:
		if h != 12 {
			h += 12
		}
	case am:
		if h == 12 {
			h = 0
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return model.NewClock(h, m), true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
