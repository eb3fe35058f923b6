package model

import (
	"time"

	"cloud.google.com/go/civil"
)

// GoalType selects which family of checks applies to a goal.
type GoalType string

const (
	GoalSchedule  GoalType = "schedule"
	GoalFrequency GoalType = "frequency"
	GoalMilestone GoalType = "milestone"
)

// Valid reports whether t is one of the known goal types.
func (t GoalType) Valid() bool {
	switch t {
	case GoalSchedule, GoalFrequency, GoalMilestone:
		return true
	default:
		return false
	}
}

// Period is an inclusive range of calendar dates with no time component.
type Period struct {
	Start civil.Date `json:"start" yaml:"start"`
	End   civil.Date `json:"end"   yaml:"end"`
}

// Days returns the number of calendar days covered by p, inclusive.
func (p Period) Days() int {
	return p.End.DaysSince(p.Start) + 1
}

// Contains reports whether d lies within p.
func (p Period) Contains(d civil.Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// WeeklyRule produces one session at Time on each of Weekdays.
type WeeklyRule struct {
	Weekdays    []time.Weekday `json:"byWeekday"             yaml:"byWeekday"             validate:"required,min=1,dive,min=0,max=6"`
	Time        Clock          `json:"time"                  yaml:"time"`
	DurationMin int            `json:"durationMin,omitempty" yaml:"durationMin,omitempty" validate:"min=0"`
}

// Schedule holds the recurrence part of a GoalSpec.
type Schedule struct {
	Rules              []WeeklyRule `json:"rules"                        yaml:"rules"                        validate:"dive"`
	Overrides          []Override   `json:"overrides,omitempty"          yaml:"overrides,omitempty"          validate:"dive"`
	DefaultDurationMin int          `json:"defaultDurationMin,omitempty" yaml:"defaultDurationMin,omitempty" validate:"min=0"`
}

// CountUnit is the unit a CountRule is measured in. Only per_week exists.
type CountUnit string

const UnitPerWeek CountUnit = "per_week"

// CountOperator compares an observed count against CountRule.Count.
type CountOperator string

const (
	OpAtLeast CountOperator = ">="
	OpExactly CountOperator = "="
	OpAtMost  CountOperator = "<="
)

// CountRule is the frequency requirement of a goal.
type CountRule struct {
	Operator CountOperator `json:"operator" yaml:"operator" validate:"countop"`
	Count    int           `json:"count"    yaml:"count"    validate:"min=1,max=7"`
	Unit     CountUnit     `json:"unit"     yaml:"unit"     validate:"eq=per_week"`
}

// Satisfied reports whether n sessions satisfy the rule.
func (r CountRule) Satisfied(n int) bool {
	return CompareCount(r.Operator, n, r.Count)
}

// CompareCount applies op to actual and required.
func CompareCount(op CountOperator, actual, required int) bool {
	switch op {
	case OpExactly:
		return actual == required
	case OpAtMost:
		return actual <= required
	default:
		return actual >= required
	}
}

// Verification lists the proof methods of a goal. Mandatory is a subset of
// the signals that must be collected for every session.
type Verification struct {
	Methods   []Signal `json:"methods"   yaml:"methods"   validate:"dive,signal"`
	Mandatory []Signal `json:"mandatory" yaml:"mandatory" validate:"dive,signal"`
}

// GoalSpec is the canonical declarative description of a goal. It is built
// once by the normalizer and consumed read-only afterwards.
type GoalSpec struct {
	Type                GoalType                      `json:"type"                         yaml:"type"                         validate:"required,goaltype"`
	Timezone            string                        `json:"timezone"                     yaml:"timezone"                     validate:"required,timezone"`
	Period              Period                        `json:"period"                       yaml:"period"`
	Schedule            Schedule                      `json:"schedule"                     yaml:"schedule"`
	CountRule           *CountRule                    `json:"countRule,omitempty"          yaml:"countRule,omitempty"`
	WeekdayConstraints  []time.Weekday                `json:"weekdayConstraints,omitempty" yaml:"weekdayConstraints,omitempty" validate:"dive,min=0,max=6"`
	TimeRules           map[time.Weekday][]TimeWindow `json:"timeRules,omitempty"          yaml:"timeRules,omitempty"`
	WeekBoundary        time.Weekday                  `json:"weekBoundary"                 yaml:"weekBoundary"                 validate:"min=0,max=6"`
	EnforcePartialWeeks bool                          `json:"enforcePartialWeeks"          yaml:"enforcePartialWeeks"`
	Verification        Verification                  `json:"verification"                 yaml:"verification"`
}

// Occurrence is one concrete, time-zone-resolved session.
type Occurrence struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WeekBlock is a complete 7-day window, From and To inclusive.
type WeekBlock struct {
	From civil.Date `json:"from"`
	To   civil.Date `json:"to"`
}

// Contains reports whether d falls inside the block.
func (w WeekBlock) Contains(d civil.Date) bool {
	return !d.Before(w.From) && !d.After(w.To)
}

// CalendarEvent is a user-authored calendar entry. A nil Time marks a
// manual entry with no time of day.
type CalendarEvent struct {
	Date civil.Date `json:"date"           yaml:"date"`
	Time *Clock     `json:"time,omitempty" yaml:"time,omitempty"`
}

// Timed reports whether the entry carries a time of day.
func (e CalendarEvent) Timed() bool { return e.Time != nil }

// Fixes is a corrective weekly schedule proposed by the validator.
type Fixes struct {
	WeeklyWeekdays     []int            `json:"weeklyWeekdays"`
	WeeklyTimeSettings map[int][]string `json:"weeklyTimeSettings"`
}

// ValidationResult is the verdict of reconciling calendar events against a
// GoalSpec.
type ValidationResult struct {
	IsCompatible      bool              `json:"isCompatible"`
	CompleteWeekCount int               `json:"completeWeekCount"`
	Issues            []string          `json:"issues"`
	ValidationDetails ValidationDetails `json:"validationDetails"`
	Fixes             *Fixes            `json:"fixes,omitempty"`
}

// ValidationDetails carries the structured facts behind Issues.
type ValidationDetails struct {
	Mode        string        `json:"mode"`
	GoalType    GoalType      `json:"goalType,omitempty"`
	Period      Period        `json:"period"`
	EventCount  int           `json:"eventCount"`
	Weeks       []WeekReport  `json:"weeks"`
	Aggregate   *WeekReport   `json:"aggregate,omitempty"`
	IssueDetail []IssueDetail `json:"issues"`
}

// WeekReport is the outcome of checking one evaluation window.
type WeekReport struct {
	From            civil.Date     `json:"from"`
	To              civil.Date     `json:"to"`
	EventCount      int            `json:"eventCount"`
	RequiredCount   int            `json:"requiredCount,omitempty"`
	Weekdays        []time.Weekday `json:"weekdays"`
	MissingWeekdays []time.Weekday `json:"missingWeekdays,omitempty"`
	TimeViolations  int            `json:"timeViolations"`
	Passed          bool           `json:"passed"`
}

// IssueCode identifies the kind of a validation issue.
type IssueCode string

const (
	IssueFrequency       IssueCode = "frequency"
	IssueMissingWeekday  IssueCode = "missing_weekday"
	IssueTimeWindow      IssueCode = "time_window"
	IssueNoCompleteWeeks IssueCode = "no_complete_weeks"
	IssueNoCountRule     IssueCode = "missing_count_rule"
)

// IssueDetail is the structured form of a single issue string.
type IssueDetail struct {
	Code     IssueCode      `json:"code"`
	From     civil.Date     `json:"from"`
	To       civil.Date     `json:"to"`
	Operator CountOperator  `json:"operator,omitempty"`
	Required int            `json:"required,omitempty"`
	Actual   int            `json:"actual,omitempty"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
	Date     *civil.Date    `json:"date,omitempty"`
	Time     *Clock         `json:"time,omitempty"`
	Window   *TimeWindow    `json:"window,omitempty"`
	Message  string         `json:"message"`
}

// Milestone is a keyed, ordered checkpoint label.
type Milestone struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}
