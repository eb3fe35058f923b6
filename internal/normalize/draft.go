package normalize

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cast"

	"questcal/internal/model"
	"questcal/internal/tz"
)

// Defaults fills draft fields the upstream step left out.
type Defaults struct {
	Timezone           string
	WeekBoundary       time.Weekday
	DefaultDurationMin int
	Zones              tz.Resolver
}

// DraftResult is a canonical spec plus whatever could not be resolved.
// MissingFields names draft paths the caller should ask about; when it is
// empty the spec is complete.
type DraftResult struct {
	Spec          model.GoalSpec    `json:"spec"`
	Milestones    []model.Milestone `json:"milestones,omitempty"`
	MissingFields []string          `json:"missingFields"`
}

// Complete reports whether nothing is missing.
func (r DraftResult) Complete() bool { return len(r.MissingFields) == 0 }

// Draft assembles a GoalSpec from a loosely typed draft map. It accepts the
// canonical JSON shape as well as the shorthands upstream tools emit
// (top-level weekdays/time/perWeek, verification as a bare list).
func Draft(raw map[string]any, def Defaults) DraftResult {
	if def.Zones == nil {
		def.Zones = tz.Default()
	}
	d := drafter{raw: raw, def: def}
	return d.run()
}

type drafter struct {
	raw     map[string]any
	def     Defaults
	loc     *time.Location
	missing []string
}

func (d *drafter) miss(field string) {
	if !slices.Contains(d.missing, field) {
		d.missing = append(d.missing, field)
	}
}

func (d *drafter) run() DraftResult {
	var spec model.GoalSpec

	spec.Type = d.goalType()

	spec.Timezone = d.timezone()
	d.loc = time.UTC
	if spec.Timezone != "" {
		if loc, err := d.def.Zones.Location(spec.Timezone); err == nil {
			d.loc = loc
		}
	}

	periodRaw := d.raw["period"]
	if periodRaw == nil && (d.raw["startDate"] != nil || d.raw["endDate"] != nil) {
		periodRaw = map[string]any{"start": d.raw["startDate"], "end": d.raw["endDate"]}
	}
	if p, ok := Period(periodRaw, d.loc); ok {
		spec.Period = p
	} else {
		d.miss("period")
	}

	sched, _ := d.raw["schedule"].(map[string]any)
	spec.Schedule.Rules = d.rules(sched)
	spec.Schedule.Overrides = d.overrides(sched)
	spec.Schedule.DefaultDurationMin = d.def.DefaultDurationMin
	if sched != nil {
		if n, err := cast.ToIntE(sched["defaultDurationMin"]); err == nil && n > 0 {
			spec.Schedule.DefaultDurationMin = n
		}
	}
	if len(spec.Schedule.Rules) == 0 && spec.Type != model.GoalMilestone {
		d.miss("schedule.rules")
	}

	spec.CountRule = d.countRule()
	if spec.CountRule == nil && spec.Type == model.GoalFrequency {
		d.miss("countRule")
	}

	if raw, ok := d.raw["weekdayConstraints"]; ok {
		if wds, ok := Weekdays(raw); ok {
			spec.WeekdayConstraints = wds
		} else {
			d.miss("weekdayConstraints")
		}
	}
	spec.TimeRules = d.timeRules()

	spec.WeekBoundary = d.def.WeekBoundary
	if raw, ok := d.raw["weekBoundary"]; ok {
		if wd, ok := Weekday(raw); ok {
			spec.WeekBoundary = wd
		} else {
			d.miss("weekBoundary")
		}
	}
	if b, err := cast.ToBoolE(d.raw["enforcePartialWeeks"]); err == nil {
		spec.EnforcePartialWeeks = b
	}

	spec.Verification = d.verification()

	if len(spec.Schedule.Rules) > 0 {
		if unreachable := spec.UnreachableConstraints(); len(unreachable) > 0 {
			d.miss("weekdayConstraints")
		}
	}

	return DraftResult{
		Spec:          spec,
		Milestones:    Milestones(d.raw["milestones"]),
		MissingFields: d.missing,
	}
}

func (d *drafter) goalType() model.GoalType {
	s, _ := d.raw["type"].(string)
	t := model.GoalType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		d.miss("type")
	}
	return t
}

func (d *drafter) timezone() string {
	if raw, ok := d.raw["timezone"]; ok {
		if name, ok := Timezone(raw, d.def.Zones); ok {
			return name
		}
	}
	if name, ok := Timezone(d.def.Timezone, d.def.Zones); ok {
		return name
	}
	d.miss("timezone")
	return ""
}

func (d *drafter) rules(sched map[string]any) []model.WeeklyRule {
	var rawRules []any
	if sched != nil {
		rawRules, _ = sched["rules"].([]any)
	}
	// Shorthand: {"weekdays": [...], "time": "..."} at the top level.
	if rawRules == nil && (d.raw["weekdays"] != nil || d.raw["byWeekday"] != nil) {
		rawRules = []any{map[string]any{
			"byWeekday":   firstKey(d.raw, "byWeekday", "weekdays"),
			"time":        d.raw["time"],
			"durationMin": d.raw["durationMin"],
		}}
	}

	var out []model.WeeklyRule
	for i, item := range rawRules {
		m, ok := item.(map[string]any)
		if !ok {
			d.miss(fmt.Sprintf("schedule.rules[%d]", i))
			continue
		}
		wds, ok := Weekdays(firstKey(m, "byWeekday", "weekdays", "days"))
		if !ok {
			d.miss(fmt.Sprintf("schedule.rules[%d].byWeekday", i))
			continue
		}
		clock, ok := Time(m["time"], d.loc)
		if !ok {
			d.miss(fmt.Sprintf("schedule.rules[%d].time", i))
			continue
		}
		rule := model.WeeklyRule{Weekdays: wds, Time: clock}
		if n, err := cast.ToIntE(firstKey(m, "durationMin", "duration")); err == nil && n > 0 {
			rule.DurationMin = n
		}
		out = append(out, rule)
	}
	return out
}

var overrideKinds = map[string]model.OverrideKind{
	"cancel": model.OverrideCancel, "skip": model.OverrideCancel, "취소": model.OverrideCancel,
	"retime": model.OverrideRetime, "시간변경": model.OverrideRetime,
	"add": model.OverrideAdd, "extra": model.OverrideAdd, "추가": model.OverrideAdd,
	"move": model.OverrideMove, "reschedule": model.OverrideMove, "이동": model.OverrideMove,
}

func (d *drafter) overrides(sched map[string]any) []model.Override {
	if sched == nil {
		return nil
	}
	rawList, _ := sched["overrides"].([]any)
	var out []model.Override
	for i, item := range rawList {
		field := fmt.Sprintf("schedule.overrides[%d]", i)
		m, ok := item.(map[string]any)
		if !ok {
			d.miss(field)
			continue
		}
		kindText, _ := m["kind"].(string)
		kind, ok := overrideKinds[compact(kindText)]
		if !ok {
			d.miss(field + ".kind")
			continue
		}
		date, ok := Date(firstKey(m, "date", "fromDate"), d.loc)
		if !ok {
			d.miss(field + ".date")
			continue
		}
		o := model.Override{Kind: kind, Date: date}
		if n, err := cast.ToIntE(m["durationMin"]); err == nil && n > 0 {
			o.DurationMin = n
		}
		switch kind {
		case model.OverrideRetime, model.OverrideAdd:
			c, ok := Time(m["time"], d.loc)
			if !ok {
				d.miss(field + ".time")
				continue
			}
			o.Time = &c
		case model.OverrideMove:
			to, ok := Date(m["toDate"], d.loc)
			if !ok {
				d.miss(field + ".toDate")
				continue
			}
			c, ok := Time(firstKey(m, "toTime", "time"), d.loc)
			if !ok {
				d.miss(field + ".toTime")
				continue
			}
			o.ToDate, o.ToTime = &to, &c
		}
		out = append(out, o)
	}
	return out
}

func (d *drafter) countRule() *model.CountRule {
	if m, ok := d.raw["countRule"].(map[string]any); ok {
		n, ok := PerWeek(m["count"])
		if !ok {
			d.miss("countRule.count")
			return nil
		}
		op := model.CountOperator(strings.TrimSpace(cast.ToString(m["operator"])))
		switch op {
		case model.OpAtLeast, model.OpExactly, model.OpAtMost:
		case "":
			op = model.OpAtLeast
		default:
			d.miss("countRule.operator")
			return nil
		}
		return &model.CountRule{Operator: op, Count: n, Unit: model.UnitPerWeek}
	}
	if raw, ok := d.raw["perWeek"]; ok {
		n, ok := PerWeek(raw)
		if !ok {
			d.miss("perWeek")
			return nil
		}
		return &model.CountRule{Operator: model.OpAtLeast, Count: n, Unit: model.UnitPerWeek}
	}
	return nil
}

func (d *drafter) timeRules() map[time.Weekday][]model.TimeWindow {
	m, ok := d.raw["timeRules"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[time.Weekday][]model.TimeWindow)
	for _, key := range slices.Sorted(maps.Keys(m)) {
		val := m[key]
		wd, ok := Weekday(key)
		if !ok {
			d.miss("timeRules." + key)
			continue
		}
		windows, _ := val.([]any)
		for _, w := range windows {
			pair, _ := w.([]any)
			if len(pair) != 2 {
				d.miss("timeRules." + key)
				continue
			}
			start, ok1 := Time(pair[0], d.loc)
			end, ok2 := Time(pair[1], d.loc)
			if !ok1 || !ok2 {
				d.miss("timeRules." + key)
				continue
			}
			out[wd] = append(out[wd], model.TimeWindow{Start: start, End: end})
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (d *drafter) verification() model.Verification {
	var methodsRaw, mandatoryRaw any
	switch v := d.raw["verification"].(type) {
	case map[string]any:
		methodsRaw, mandatoryRaw = v["methods"], v["mandatory"]
	default:
		methodsRaw = v
	}
	methods := Signals(methodsRaw)
	mandatory := methods
	if mandatoryRaw != nil {
		var kept []model.Signal
		for _, s := range Signals(mandatoryRaw) {
			if slices.Contains(methods, s) {
				kept = append(kept, s)
			}
		}
		if len(kept) > 0 {
			mandatory = kept
		}
	}
	return model.Verification{Methods: methods, Mandatory: slices.Clone(mandatory)}
}
