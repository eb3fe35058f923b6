package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"questcal/internal/model"
)

const productID = "-//questcal//goal schedule//EN"

// ExportOptions names the exported sessions.
type ExportOptions struct {
	// Summary is used as every VEVENT's SUMMARY. Defaults to "Session".
	Summary string
	// UIDPrefix makes UIDs unique per goal. Defaults to "questcal".
	UIDPrefix string
	// Stamp is written as DTSTAMP. Defaults to the zero-second UTC now.
	Stamp time.Time
}

// ExportOccurrences renders occurrences as a VCALENDAR with one VEVENT per
// session. Times are written in UTC; UIDs are derived from the start instant
// so re-exporting the same schedule yields the same UIDs.
func ExportOccurrences(occs []model.Occurrence, opts ExportOptions) string {
	if opts.Summary == "" {
		opts.Summary = "Session"
	}
	if opts.UIDPrefix == "" {
		opts.UIDPrefix = "questcal"
	}
	if opts.Stamp.IsZero() {
		opts.Stamp = time.Now().UTC().Truncate(time.Second)
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	seen := make(map[string]int, len(occs))
	for _, o := range occs {
		uid := fmt.Sprintf("%s-%s", opts.UIDPrefix, o.Start.UTC().Format("20060102T150405Z"))
		if n := seen[uid]; n > 0 {
			seen[uid]++
			uid = fmt.Sprintf("%s-%d", uid, n)
		} else {
			seen[uid] = 1
		}

		ev := cal.AddEvent(uid)
		ev.SetDtStampTime(opts.Stamp)
		ev.SetStartAt(o.Start.UTC())
		ev.SetEndAt(o.End.UTC())
		ev.SetSummary(opts.Summary)
	}
	return cal.Serialize()
}
