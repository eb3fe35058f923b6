package schedule

import (
	"cloud.google.com/go/civil"

	appLog "questcal/internal/log"
	"questcal/internal/model"
	"questcal/internal/tz"
)

// MaxOccurrences is the largest occurrence list accepted for display.
const MaxOccurrences = 100

// PreviewItem is a display-oriented view of one occurrence.
type PreviewItem struct {
	Date       civil.Date `json:"date"`
	Time       string     `json:"time"`
	DayName    string     `json:"dayName"`
	WeekNumber int        `json:"weekNumber"`
}

// PreviewOccurrences projects a possibly incomplete spec into dated rows.
// Missing or unknown time zones fall back to UTC and malformed overrides
// are skipped; a spec without a usable period previews as nil.
func (b *Builder) PreviewOccurrences(spec model.GoalSpec) []PreviewItem {
	if model.CheckRange(spec.Period.Start, spec.Period.End) != nil {
		return nil
	}

	zones := b.Zones
	if zones == nil {
		zones = tz.Default()
	}
	loc, err := zones.Location(spec.Timezone)
	if err != nil {
		loc, _ = zones.Location("UTC")
		spec.Timezone = "UTC"
	}

	var rules []model.WeeklyRule
	for _, r := range spec.Schedule.Rules {
		if r.Time.Valid() && len(r.Weekdays) > 0 {
			rules = append(rules, r)
		}
	}
	var overrides []model.Override
	for _, o := range spec.Schedule.Overrides {
		if o.Check() == nil {
			overrides = append(overrides, o)
		}
	}
	spec.Schedule.Rules = rules
	spec.Schedule.Overrides = overrides

	occs, err := b.Build(spec)
	if err != nil {
		appLog.Debug("schedule: preview failed", "err", err)
		return nil
	}

	items := make([]PreviewItem, 0, len(occs))
	for _, o := range occs {
		local := o.Start.In(loc)
		d := civil.DateOf(local)
		items = append(items, PreviewItem{
			Date:       d,
			Time:       model.ClockOf(local).String(),
			DayName:    local.Weekday().String(),
			WeekNumber: d.DaysSince(spec.Period.Start)/7 + 1,
		})
	}
	return items
}

// PreviewOccurrences previews spec with the default builder.
func PreviewOccurrences(spec model.GoalSpec) []PreviewItem {
	return defaultBuilder.PreviewOccurrences(spec)
}

// OccurrenceCheck is a soft, displayable verdict on an occurrence list.
type OccurrenceCheck struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

const (
	ErrNoOccurrences      = "at least one occurrence required"
	ErrTooManyOccurrences = "too many occurrences"
)

// ValidateOccurrences rejects an empty list and lists longer than
// MaxOccurrences.
func ValidateOccurrences(occs []model.Occurrence) OccurrenceCheck {
	errs := []string{}
	switch {
	case len(occs) == 0:
		errs = append(errs, ErrNoOccurrences)
	case len(occs) > MaxOccurrences:
		errs = append(errs, ErrTooManyOccurrences)
	}
	return OccurrenceCheck{Valid: len(errs) == 0, Errors: errs}
}
