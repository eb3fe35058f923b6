// Package verification decides which proof signals a goal must collect and
// checks that a chosen signal set is sufficient for the goal type.
package verification

import (
	"slices"

	appLog "questcal/internal/log"
	"questcal/internal/model"
)

// Error codes reported in Plan.Errors and Check.Errors.
const (
	CodeRequiredMissing       = "required_signal_missing"
	CodeTimeAloneInsufficient = "time_alone_insufficient"
	CodeObjectiveMissing      = "objective_signal_missing"
	CodeUnknownGoalType       = "unknown_goal_type"
)

// LocationMode selects how a location signal is collected.
type LocationMode string

const (
	LocationGeofence LocationMode = "geofence"
	LocationMovement LocationMode = "movement"
)

// LocationConstraint describes where a session must happen. A geofence
// needs a place; movement (walks, runs) does not.
type LocationConstraint struct {
	Mode      LocationMode `json:"mode"`
	PlaceName string       `json:"placeName,omitempty"`
	PlaceID   string       `json:"placeId,omitempty"`
	RadiusM   int          `json:"radiusM,omitempty"`
}

// HasPlace reports whether a place is already known.
func (l LocationConstraint) HasPlace() bool {
	return l.PlaceName != "" || l.PlaceID != ""
}

// ScreenConstraint marks a goal measured on a device.
type ScreenConstraint struct {
	App        string `json:"app,omitempty"`
	MaxMinutes int    `json:"maxMinutes,omitempty"`
}

// Context is everything the planner knows about a goal.
type Context struct {
	// Text is the user's own description of the goal, scanned for cues.
	Text string `json:"text,omitempty"`

	// Methods and Mandatory seed the plan. Spec.Verification is merged in
	// when Spec is set.
	Methods   []model.Signal `json:"methods,omitempty"`
	Mandatory []model.Signal `json:"mandatory,omitempty"`

	Location *LocationConstraint `json:"location,omitempty"`
	Screen   *ScreenConstraint   `json:"screen,omitempty"`
	Spec     *model.GoalSpec     `json:"spec,omitempty"`
}

// FollowUp asks the caller for a missing field.
type FollowUp struct {
	Field string `json:"field"`
	Code  string `json:"code"`
}

// Plan is the computed verification set of a goal.
type Plan struct {
	Methods   []model.Signal `json:"methods"`
	Mandatory []model.Signal `json:"mandatory"`
	FollowUps []FollowUp     `json:"followUps"`
	Valid     bool           `json:"valid"`
	Errors    []string       `json:"errors"`
}

// Check is the verdict on a signal set.
type Check struct {
	Valid       bool           `json:"valid"`
	Errors      []string       `json:"errors"`
	Suggestions []model.Signal `json:"suggestions"`
}

// required lists the signals each goal type must always collect.
var required = map[model.GoalType][]model.Signal{
	model.GoalSchedule:  {model.SignalTime},
	model.GoalFrequency: {model.SignalManual},
	model.GoalMilestone: {model.SignalTime},
}

// ComputeVerificationPlan derives methods and mandatory signals for a goal:
//
//   - the signals the goal type requires
//   - location for a location constraint, with one follow-up when a
//     geofence has no place yet
//   - screentime for digital goals (screen constraint or text cues)
//   - time when the schedule names rule times or time windows
//   - an objective signal in both sets, promoting an existing objective
//     method before falling back to photo
//
// Mandatory is always a subset of Methods. Valid reflects the resulting
// set; pending follow-ups do not invalidate the plan.
func ComputeVerificationPlan(goalType model.GoalType, ctx Context) Plan {
	plan := Plan{FollowUps: []FollowUp{}, Errors: []string{}}
	if !goalType.Valid() {
		plan.Methods = model.SortSignals(ctx.Methods)
		plan.Mandatory = model.SortSignals(ctx.Mandatory)
		plan.Errors = append(plan.Errors, CodeUnknownGoalType)
		return plan
	}

	s := &signalSet{}
	s.methods(ctx.Methods...)
	s.mandatory(ctx.Mandatory...)
	if ctx.Spec != nil {
		s.methods(ctx.Spec.Verification.Methods...)
		s.mandatory(ctx.Spec.Verification.Mandatory...)
	}

	s.mandatory(required[goalType]...)
	if goalType == model.GoalMilestone && !s.hasMethod(model.SignalManual, model.SignalPhoto) {
		s.mandatory(model.SignalManual)
	}

	if loc := ctx.Location; loc != nil {
		s.mandatory(model.SignalLocation)
		if loc.Mode == LocationGeofence && !loc.HasPlace() {
			plan.FollowUps = append(plan.FollowUps, FollowUp{Field: "location.placeName", Code: "place_required"})
		}
	}

	if ctx.Screen != nil || HasDigitalCue(ctx.Text) {
		s.mandatory(model.SignalScreentime)
	}

	if ctx.Spec != nil && timed(*ctx.Spec) {
		s.mandatory(model.SignalTime)
	}

	if !s.sufficient() {
		promoted := false
		for _, sig := range model.SortSignals(s.m) {
			if sig.Objective() {
				s.mandatory(sig)
				promoted = true
				break
			}
		}
		if !promoted {
			s.mandatory(model.SignalPhoto)
		}
	}

	plan.Methods = model.SortSignals(s.m)
	plan.Mandatory = model.SortSignals(s.req)

	check := ValidateVerificationSignals(goalType, plan.Methods)
	plan.Errors = append(plan.Errors, check.Errors...)
	plan.Valid = len(plan.Errors) == 0

	appLog.Debug("verification: plan computed",
		"goal_type", string(goalType),
		"methods", len(plan.Methods),
		"mandatory", len(plan.Mandatory),
		"follow_ups", len(plan.FollowUps),
		"valid", plan.Valid,
	)
	return plan
}

// ValidateVerificationSignals checks signals against the rules of goalType.
//
//   - schedule: time, plus one of location, photo or manual
//   - frequency: manual; location or photo is suggested alongside other signals
//   - milestone: time, plus manual or photo
//
// Every goal also needs an objective signal (location, photo, screentime).
// Suggestions name the signals that would clear the errors.
func ValidateVerificationSignals(goalType model.GoalType, signals []model.Signal) Check {
	set := model.SortSignals(signals)
	c := Check{Errors: []string{}, Suggestions: []model.Signal{}}

	has := func(want ...model.Signal) bool {
		return slices.ContainsFunc(set, func(s model.Signal) bool { return slices.Contains(want, s) })
	}
	missing := func(s model.Signal) {
		c.Errors = append(c.Errors, CodeRequiredMissing+":"+string(s))
		c.Suggestions = append(c.Suggestions, s)
	}

	switch goalType {
	case model.GoalSchedule:
		if !has(model.SignalTime) {
			missing(model.SignalTime)
		} else if !has(model.SignalLocation, model.SignalPhoto, model.SignalManual) {
			c.Errors = append(c.Errors, CodeTimeAloneInsufficient)
			c.Suggestions = append(c.Suggestions, model.SignalLocation, model.SignalPhoto, model.SignalManual)
		}
	case model.GoalFrequency:
		if !has(model.SignalManual) {
			missing(model.SignalManual)
		}
		if len(set) > 1 && !has(model.SignalLocation, model.SignalPhoto) {
			c.Suggestions = append(c.Suggestions, model.SignalLocation, model.SignalPhoto)
		}
	case model.GoalMilestone:
		if !has(model.SignalTime) {
			missing(model.SignalTime)
		}
		if !has(model.SignalManual, model.SignalPhoto) {
			c.Errors = append(c.Errors, CodeRequiredMissing+":"+string(model.SignalManual)+"|"+string(model.SignalPhoto))
			c.Suggestions = append(c.Suggestions, model.SignalManual, model.SignalPhoto)
		}
	default:
		c.Errors = append(c.Errors, CodeUnknownGoalType)
		return c
	}

	if !model.HasObjective(set) {
		c.Errors = append(c.Errors, CodeObjectiveMissing)
		c.Suggestions = append(c.Suggestions, model.SignalPhoto)
	}

	c.Suggestions = model.SortSignals(c.Suggestions)
	c.Valid = len(c.Errors) == 0
	return c
}

// timed reports whether spec pins sessions to times of day.
func timed(spec model.GoalSpec) bool {
	for _, windows := range spec.TimeRules {
		if len(windows) > 0 {
			return true
		}
	}
	return slices.ContainsFunc(spec.Schedule.Rules, func(r model.WeeklyRule) bool {
		return len(r.Weekdays) > 0 && r.Time.Valid()
	})
}

// signalSet keeps methods and mandatory signals, mandatory always a subset.
type signalSet struct {
	m   []model.Signal
	req []model.Signal
}

func (s *signalSet) methods(sigs ...model.Signal) {
	for _, sig := range sigs {
		if _, ok := model.ParseSignal(string(sig)); ok && !slices.Contains(s.m, sig) {
			s.m = append(s.m, sig)
		}
	}
}

func (s *signalSet) mandatory(sigs ...model.Signal) {
	s.methods(sigs...)
	for _, sig := range sigs {
		if slices.Contains(s.m, sig) && !slices.Contains(s.req, sig) {
			s.req = append(s.req, sig)
		}
	}
}

func (s *signalSet) hasMethod(want ...model.Signal) bool {
	return slices.ContainsFunc(s.m, func(sig model.Signal) bool { return slices.Contains(want, sig) })
}

// sufficient reports whether an objective signal is both a method and
// mandatory.
func (s *signalSet) sufficient() bool {
	return slices.ContainsFunc(s.req, func(sig model.Signal) bool { return sig.Objective() })
}
