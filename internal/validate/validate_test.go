package validate

import (
	"slices"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questcal/internal/model"
)

func ev(date, clock string) model.CalendarEvent {
	d, err := civil.ParseDate(date)
	if err != nil {
		panic(err)
	}
	e := model.CalendarEvent{Date: d}
	if clock != "" {
		c := model.MustClock(clock)
		e.Time = &c
	}
	return e
}

func frequencySpec(op model.CountOperator, n int, constraints ...time.Weekday) model.GoalSpec {
	return model.GoalSpec{
		Type:               model.GoalFrequency,
		Timezone:           "Asia/Seoul",
		CountRule:          &model.CountRule{Operator: op, Count: n, Unit: model.UnitPerWeek},
		WeekdayConstraints: constraints,
		WeekBoundary:       time.Monday,
	}
}

func TestValidate_FridayShortfall(t *testing.T) {
	spec := frequencySpec(model.OpAtLeast, 3, time.Monday, time.Wednesday, time.Friday)
	events := []model.CalendarEvent{ev("2025-10-08", "19:00"), ev("2025-10-06", "19:00")}

	res, err := ValidateGoalByCalendarEvents(events, spec, "2025-10-06", "2025-10-12", "")
	require.NoError(t, err)

	assert.False(t, res.IsCompatible)
	assert.Equal(t, 1, res.CompleteWeekCount)
	assert.Equal(t, []string{
		"2025-10-06~2025-10-12: 2 sessions, requires at least 3 per week",
		"2025-10-06~2025-10-12: no session on Friday",
	}, res.Issues)

	details := res.ValidationDetails
	assert.Equal(t, ModeStrict, details.Mode)
	assert.Equal(t, model.GoalFrequency, details.GoalType)
	require.Len(t, details.IssueDetail, 2)
	assert.Equal(t, model.IssueFrequency, details.IssueDetail[0].Code)
	assert.Equal(t, 3, details.IssueDetail[0].Required)
	assert.Equal(t, 2, details.IssueDetail[0].Actual)
	assert.Equal(t, []time.Weekday{time.Friday}, details.IssueDetail[1].Weekdays)

	require.Len(t, details.Weeks, 1)
	assert.False(t, details.Weeks[0].Passed)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, details.Weeks[0].Weekdays)

	require.NotNil(t, res.Fixes)
	assert.Equal(t, []int{1, 3, 5}, res.Fixes.WeeklyWeekdays)
	assert.Equal(t, map[int][]string{1: {"19:00"}, 3: {"19:00"}, 5: {"19:00"}}, res.Fixes.WeeklyTimeSettings)
}

func TestValidate_CompatibleIgnoresPartialEdges(t *testing.T) {
	spec := frequencySpec(model.OpAtLeast, 3, time.Monday, time.Wednesday, time.Friday)
	events := []model.CalendarEvent{
		ev("2024-01-08", ""), ev("2024-01-10", ""), ev("2024-01-12", ""),
		ev("2024-01-15", "07:00"), ev("2024-01-17", "07:00"), ev("2024-01-19", "07:00"),
		ev("2024-01-22", ""), // trailing partial week, not credited
		ev("2023-12-31", ""), // outside the range
	}

	res, err := ValidateGoalByCalendarEvents(events, spec, "2024-01-08", "2024-01-22", model.GoalFrequency)
	require.NoError(t, err)

	assert.True(t, res.IsCompatible)
	assert.Equal(t, 2, res.CompleteWeekCount)
	assert.NotNil(t, res.Issues)
	assert.Empty(t, res.Issues)
	assert.Nil(t, res.Fixes)
	assert.Equal(t, 7, res.ValidationDetails.EventCount)
	for _, w := range res.ValidationDetails.Weeks {
		assert.True(t, w.Passed)
		assert.Equal(t, 3, w.EventCount)
	}
}

func TestValidate_IssuesOrderedByWeek(t *testing.T) {
	spec := frequencySpec(model.OpAtLeast, 2)
	events := []model.CalendarEvent{ev("2024-01-09", ""), ev("2024-01-16", "")}

	res, err := ValidateGoalByCalendarEvents(events, spec, "2024-01-08", "2024-01-21", "")
	require.NoError(t, err)
	require.Len(t, res.Issues, 2)
	assert.Contains(t, res.Issues[0], "2024-01-08~2024-01-14: 1 session")
	assert.Contains(t, res.Issues[1], "2024-01-15~2024-01-21: 1 session")
}

func TestValidate_NoCompleteWeeks(t *testing.T) {
	spec := frequencySpec(model.OpAtLeast, 1)

	res, err := ValidateGoalByCalendarEvents([]model.CalendarEvent{ev("2025-10-02", "")}, spec, "2025-10-01", "2025-10-05", "")
	require.NoError(t, err)
	assert.False(t, res.IsCompatible)
	assert.Zero(t, res.CompleteWeekCount)
	require.Len(t, res.ValidationDetails.IssueDetail, 1)
	assert.Equal(t, model.IssueNoCompleteWeeks, res.ValidationDetails.IssueDetail[0].Code)
	assert.Nil(t, res.Fixes, "a short period cannot be fixed by a schedule change")

	// Nothing to count: vacuously compatible.
	res, err = ValidateGoalByCalendarEvents(nil, model.GoalSpec{Type: model.GoalSchedule}, "2025-10-01", "2025-10-05", "")
	require.NoError(t, err)
	assert.True(t, res.IsCompatible)
}

func TestValidate_TimeWindows(t *testing.T) {
	spec := model.GoalSpec{
		Type:         model.GoalSchedule,
		WeekBoundary: time.Monday,
		TimeRules: map[time.Weekday][]model.TimeWindow{
			time.Monday: {{Start: model.MustClock("18:00"), End: model.MustClock("21:00")}},
			time.Friday: {{Start: model.MustClock("22:00"), End: model.MustClock("01:00")}},
		},
	}
	events := []model.CalendarEvent{
		ev("2025-10-06", "22:00"),
		ev("2025-10-06", ""), // untimed entries are never checked
		ev("2025-10-08", "19:00"),
		ev("2025-10-10", "00:30"), // inside the wrapping window
	}

	res, err := ValidateGoalByCalendarEvents(events, spec, "2025-10-06", "2025-10-12", "")
	require.NoError(t, err)

	assert.False(t, res.IsCompatible)
	assert.Equal(t, []string{"2025-10-06 Monday: 22:00 is outside 18:00-21:00"}, res.Issues)
	d := res.ValidationDetails.IssueDetail[0]
	assert.Equal(t, model.IssueTimeWindow, d.Code)
	assert.Equal(t, "22:00", d.Time.String())
	assert.Equal(t, "18:00-21:00", d.Window.String())
	assert.Equal(t, 1, res.ValidationDetails.Weeks[0].TimeViolations)

	require.NotNil(t, res.Fixes)
	assert.Equal(t, []int{1, 3, 5}, res.Fixes.WeeklyWeekdays)
	assert.Equal(t, []string{"18:00"}, res.Fixes.WeeklyTimeSettings[1], "out-of-window time moves to the window start")
	assert.Equal(t, []string{"19:00"}, res.Fixes.WeeklyTimeSettings[3])
	assert.Equal(t, []string{"00:30"}, res.Fixes.WeeklyTimeSettings[5])
}

func TestValidate_AtMostTrimsFewestFirst(t *testing.T) {
	spec := frequencySpec(model.OpAtMost, 2, time.Monday)
	events := []model.CalendarEvent{
		ev("2025-10-06", "07:00"),
		ev("2025-10-07", "07:00"), ev("2025-10-07", "20:00"),
		ev("2025-10-09", "07:00"),
	}

	res, err := ValidateGoalByCalendarEvents(events, spec, "2025-10-06", "2025-10-12", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-10-06~2025-10-12: 4 sessions, requires at most 2 per week"}, res.Issues)

	require.NotNil(t, res.Fixes)
	assert.Equal(t, []int{1, 2}, res.Fixes.WeeklyWeekdays)
	assert.Equal(t, []string{"07:00", "20:00"}, res.Fixes.WeeklyTimeSettings[2])
}

func TestValidate_ExactlyFillsMondayFirst(t *testing.T) {
	spec := frequencySpec(model.OpExactly, 3, time.Sunday)
	spec.Schedule.Rules = []model.WeeklyRule{{Weekdays: []time.Weekday{time.Tuesday}, Time: model.MustClock("06:30")}}

	res, err := ValidateGoalByCalendarEvents(nil, spec, "2025-10-06", "2025-10-12", "")
	require.NoError(t, err)
	assert.False(t, res.IsCompatible)

	require.NotNil(t, res.Fixes)
	assert.Equal(t, []int{0, 1, 2}, res.Fixes.WeeklyWeekdays)
	assert.Equal(t, []string{"06:30"}, res.Fixes.WeeklyTimeSettings[2], "rule time for a covered weekday")
	assert.Equal(t, []string{}, res.Fixes.WeeklyTimeSettings[1])
}

func TestValidate_UnrepairableConstraints(t *testing.T) {
	spec := frequencySpec(model.OpExactly, 1, time.Monday, time.Wednesday)

	res, err := ValidateGoalByCalendarEvents([]model.CalendarEvent{ev("2025-10-06", "")}, spec, "2025-10-06", "2025-10-12", "")
	require.NoError(t, err)
	assert.False(t, res.IsCompatible)
	assert.Nil(t, res.Fixes)
}

func TestValidate_AggregateMode(t *testing.T) {
	spec := frequencySpec(model.OpAtLeast, 3)
	spec.EnforcePartialWeeks = true
	events := []model.CalendarEvent{
		ev("2025-10-01", ""), ev("2025-10-02", ""), ev("2025-10-03", ""),
		ev("2025-10-06", ""), ev("2025-10-08", ""), ev("2025-10-13", ""),
	}

	res, err := ValidateGoalByCalendarEvents(events, spec, "2025-10-01", "2025-10-14", "")
	require.NoError(t, err)
	assert.True(t, res.IsCompatible, "six sessions over fourteen days meet a prorated 6")
	assert.Equal(t, ModeAggregate, res.ValidationDetails.Mode)
	require.NotNil(t, res.ValidationDetails.Aggregate)
	assert.Equal(t, 6, res.ValidationDetails.Aggregate.RequiredCount)
	assert.Empty(t, res.ValidationDetails.Weeks)
	assert.Equal(t, 1, res.CompleteWeekCount)

	spec.EnforcePartialWeeks = false
	res, err = ValidateGoalByCalendarEvents(events, spec, "2025-10-01", "2025-10-14", "")
	require.NoError(t, err)
	assert.False(t, res.IsCompatible, "the only complete week holds two sessions")
}

func TestValidate_AggregateProration(t *testing.T) {
	spec := frequencySpec(model.OpExactly, 3, time.Saturday)
	spec.EnforcePartialWeeks = true
	events := []model.CalendarEvent{ev("2025-10-01", ""), ev("2025-10-02", ""), ev("2025-10-03", "")}

	// 3 x 10 / 7 = 4.28: four or five sessions accepted.
	res, err := ValidateGoalByCalendarEvents(events, spec, "2025-10-01", "2025-10-10", "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2025-10-01~2025-10-10: 3 sessions, requires between 4 and 5 over 10 days",
		"2025-10-01~2025-10-10: no session on Saturday",
	}, res.Issues)

	// Saturday never occurs in a Wednesday-to-Friday period.
	spec.CountRule = &model.CountRule{Operator: model.OpAtLeast, Count: 1, Unit: model.UnitPerWeek}
	res, err = ValidateGoalByCalendarEvents(events[:1], spec, "2025-10-01", "2025-10-03", "")
	require.NoError(t, err)
	assert.True(t, res.IsCompatible)
	assert.Equal(t, 1, res.ValidationDetails.Aggregate.RequiredCount, "prorated floor never drops below one")
}

func TestValidate_FrequencyWithoutCountRule(t *testing.T) {
	spec := model.GoalSpec{Type: model.GoalSchedule, WeekBoundary: time.Monday}

	res, err := ValidateGoalByCalendarEvents(nil, spec, "2025-10-06", "2025-10-12", "")
	require.NoError(t, err)
	assert.True(t, res.IsCompatible)

	res, err = ValidateGoalByCalendarEvents(nil, spec, "2025-10-06", "2025-10-12", model.GoalFrequency)
	require.NoError(t, err)
	assert.False(t, res.IsCompatible)
	assert.Equal(t, model.IssueNoCountRule, res.ValidationDetails.IssueDetail[0].Code)
	assert.Nil(t, res.Fixes)
}

func TestValidate_MalformedInput(t *testing.T) {
	spec := frequencySpec(model.OpAtLeast, 1)

	_, err := ValidateGoalByCalendarEvents(nil, spec, "2025/10/01", "2025-10-14", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidDate)
	assert.Contains(t, err.Error(), "start")

	_, err = ValidateGoalByCalendarEvents(nil, spec, "2025-10-01", "Oct 14", "")
	assert.ErrorIs(t, err, model.ErrInvalidDate)
	assert.Contains(t, err.Error(), "end")

	_, err = ValidateGoalByCalendarEvents(nil, spec, "2025-10-14", "2025-10-01", "")
	assert.ErrorIs(t, err, model.ErrInvalidPeriod)
}

func TestValidate_DoesNotMutateInputs(t *testing.T) {
	spec := frequencySpec(model.OpAtMost, 1, time.Friday, time.Monday, time.Friday)
	events := []model.CalendarEvent{ev("2025-10-09", "09:00"), ev("2025-10-06", ""), ev("2025-10-07", "")}
	eventsBefore := slices.Clone(events)
	constraintsBefore := slices.Clone(spec.WeekdayConstraints)

	first, err := ValidateGoalByCalendarEvents(events, spec, "2025-10-06", "2025-10-12", "")
	require.NoError(t, err)
	second, err := ValidateGoalByCalendarEvents(events, spec, "2025-10-06", "2025-10-12", "")
	require.NoError(t, err)

	assert.Equal(t, eventsBefore, events)
	assert.Equal(t, constraintsBefore, spec.WeekdayConstraints)
	assert.Equal(t, first, second)
}
