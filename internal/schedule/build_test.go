package schedule

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questcal/internal/model"
	"questcal/internal/tz"
)

func d(s string) civil.Date {
	v, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return v
}

func clock(s string) model.Clock { return model.MustClock(s) }

// scenarioA is Mon/Wed/Fri at 19:00 in Seoul over two weeks.
func scenarioA() model.GoalSpec {
	return model.GoalSpec{
		Type:     model.GoalSchedule,
		Timezone: "Asia/Seoul",
		Period:   model.Period{Start: d("2025-10-01"), End: d("2025-10-14")},
		Schedule: model.Schedule{
			Rules: []model.WeeklyRule{{
				Weekdays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
				Time:     clock("19:00"),
			}},
		},
	}
}

func dates(t *testing.T, occs []model.Occurrence, zone string) []string {
	t.Helper()
	loc, err := time.LoadLocation(zone)
	require.NoError(t, err)
	out := make([]string, len(occs))
	for i, o := range occs {
		out[i] = o.Start.In(loc).Format("2006-01-02 15:04")
	}
	return out
}

func TestBuild_ScenarioA(t *testing.T) {
	occs, err := BuildOccurrences(scenarioA())
	require.NoError(t, err)

	require.Len(t, occs, 6)
	assert.True(t, occs[0].Start.Equal(time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{
		"2025-10-01 19:00", "2025-10-03 19:00", "2025-10-06 19:00",
		"2025-10-08 19:00", "2025-10-10 19:00", "2025-10-13 19:00",
	}, dates(t, occs, "Asia/Seoul"))
	assert.Equal(t, 60*time.Minute, occs[0].End.Sub(occs[0].Start))
}

func TestBuild_ScenarioB_Cancel(t *testing.T) {
	spec := scenarioA()
	spec.Schedule.Overrides = []model.Override{model.Cancel(d("2025-10-03"))}

	occs, err := BuildOccurrences(spec)
	require.NoError(t, err)
	require.Len(t, occs, 5)
	for _, got := range dates(t, occs, "Asia/Seoul") {
		assert.NotContains(t, got, "2025-10-03")
	}
}

func TestBuild_CancelRemovesEveryRuleOnDate(t *testing.T) {
	spec := scenarioA()
	spec.Schedule.Rules = append(spec.Schedule.Rules, model.WeeklyRule{
		Weekdays: []time.Weekday{time.Friday},
		Time:     clock("07:00"),
	})
	spec.Schedule.Overrides = []model.Override{model.Cancel(d("2025-10-03"))}

	occs, err := BuildOccurrences(spec)
	require.NoError(t, err)
	assert.Len(t, occs, 6, "8 generated minus both sessions on the cancelled Friday")
}

func TestBuild_RetimePreservesCount(t *testing.T) {
	spec := scenarioA()
	spec.Schedule.Overrides = []model.Override{model.Retime(d("2025-10-08"), clock("07:30"))}

	occs, err := BuildOccurrences(spec)
	require.NoError(t, err)
	require.Len(t, occs, 6)
	assert.Contains(t, dates(t, occs, "Asia/Seoul"), "2025-10-08 07:30")
	assert.NotContains(t, dates(t, occs, "Asia/Seoul"), "2025-10-08 19:00")
}

func TestBuild_MovePreservesCount(t *testing.T) {
	spec := scenarioA()
	spec.Schedule.Rules[0].DurationMin = 90
	spec.Schedule.Overrides = []model.Override{model.Move(d("2025-10-03"), d("2025-10-04"), clock("10:00"))}

	occs, err := BuildOccurrences(spec)
	require.NoError(t, err)
	require.Len(t, occs, 6)

	got := dates(t, occs, "Asia/Seoul")
	assert.NotContains(t, got, "2025-10-03 19:00")
	assert.Equal(t, "2025-10-04 10:00", got[1])
	assert.Equal(t, 90*time.Minute, occs[1].End.Sub(occs[1].Start), "moved session keeps its duration")
}

func TestBuild_MoveWithoutSourceStillInserts(t *testing.T) {
	spec := scenarioA()
	spec.Schedule.Overrides = []model.Override{model.Move(d("2025-10-04"), d("2025-10-05"), clock("10:00"))}

	occs, err := BuildOccurrences(spec)
	require.NoError(t, err)
	assert.Len(t, occs, 7)
}

func TestBuild_AddAllowsDuplicatesAndOrdersTies(t *testing.T) {
	spec := scenarioA()
	spec.Schedule.DefaultDurationMin = 30
	spec.Schedule.Overrides = []model.Override{
		model.Add(d("2025-10-01"), clock("19:00"), 45),
		model.Add(d("2025-10-02"), clock("06:00"), 0),
	}

	occs, err := BuildOccurrences(spec)
	require.NoError(t, err)
	require.Len(t, occs, 8)

	// Same instant: rule-generated first, then the added one.
	assert.True(t, occs[0].Start.Equal(occs[1].Start))
	assert.Equal(t, 30*time.Minute, occs[0].End.Sub(occs[0].Start))
	assert.Equal(t, 45*time.Minute, occs[1].End.Sub(occs[1].Start))
	assert.Equal(t, "2025-10-02 06:00", dates(t, occs, "Asia/Seoul")[2])
}

func TestBuild_OverridePrecedence(t *testing.T) {
	spec := scenarioA()
	// Listed in reverse precedence; cancel must still win over retime.
	spec.Schedule.Overrides = []model.Override{
		model.Add(d("2025-10-03"), clock("08:00"), 0),
		model.Retime(d("2025-10-03"), clock("21:00")),
		model.Cancel(d("2025-10-03")),
	}

	occs, err := BuildOccurrences(spec)
	require.NoError(t, err)
	var friday []string
	for _, s := range dates(t, occs, "Asia/Seoul") {
		if s[:10] == "2025-10-03" {
			friday = append(friday, s)
		}
	}
	assert.Equal(t, []string{"2025-10-03 08:00"}, friday, "add happens after cancel/retime and is not retimed")
}

func TestBuild_DropsOverridesOutsidePeriod(t *testing.T) {
	spec := scenarioA()
	spec.Schedule.Overrides = []model.Override{
		model.Add(d("2025-10-20"), clock("08:00"), 0),
		model.Move(d("2025-10-13"), d("2025-10-15"), clock("08:00")),
	}

	occs, err := BuildOccurrences(spec)
	require.NoError(t, err)
	assert.Len(t, occs, 5)

	loc, _ := time.LoadLocation("Asia/Seoul")
	for _, o := range occs {
		assert.True(t, spec.Period.Contains(civil.DateOf(o.Start.In(loc))))
	}
}

func TestBuild_DeterministicAndPure(t *testing.T) {
	spec := scenarioA()
	spec.Schedule.Overrides = []model.Override{
		model.Move(d("2025-10-06"), d("2025-10-07"), clock("06:00")),
		model.Add(d("2025-10-11"), clock("09:00"), 0),
	}
	before := spec.Schedule.Overrides[0]

	first, err := BuildOccurrences(spec)
	require.NoError(t, err)
	second, err := BuildOccurrences(spec)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, spec.Schedule.Overrides[0])
	assert.Len(t, spec.Schedule.Rules[0].Weekdays, 3)
}

func TestBuild_TimezoneNotLocal(t *testing.T) {
	spec := scenarioA()
	spec.Timezone = "America/New_York"

	occs, err := BuildOccurrences(spec)
	require.NoError(t, err)
	assert.True(t, occs[0].Start.Equal(time.Date(2025, 10, 1, 23, 0, 0, 0, time.UTC)))
}

func TestBuild_Errors(t *testing.T) {
	spec := scenarioA()
	spec.Period.Start, spec.Period.End = spec.Period.End, spec.Period.Start
	_, err := BuildOccurrences(spec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidPeriod))
	assert.Contains(t, err.Error(), "period.end")

	spec = scenarioA()
	spec.Timezone = "Atlantis/Capital"
	_, err = BuildOccurrences(spec)
	assert.True(t, errors.Is(err, tz.ErrUnknownZone))

	spec = scenarioA()
	spec.Schedule.Overrides = []model.Override{{Kind: model.OverrideAdd, Date: d("2025-10-02")}}
	_, err = BuildOccurrences(spec)
	assert.ErrorContains(t, err, "schedule.overrides[0]")
}

func TestBuilder_DefaultDuration(t *testing.T) {
	b := NewBuilder(tz.NewCache(4), 25)
	occs, err := b.Build(scenarioA())
	require.NoError(t, err)
	assert.Equal(t, 25*time.Minute, occs[0].End.Sub(occs[0].Start))
}

func TestPreviewOccurrences(t *testing.T) {
	spec := scenarioA()
	spec.Timezone = ""
	spec.Schedule.Overrides = []model.Override{
		{Kind: model.OverrideRetime, Date: d("2025-10-03")}, // malformed, skipped
	}

	items := PreviewOccurrences(spec)
	require.Len(t, items, 6)
	assert.Equal(t, PreviewItem{Date: d("2025-10-01"), Time: "19:00", DayName: "Wednesday", WeekNumber: 1}, items[0])
	assert.Equal(t, PreviewItem{Date: d("2025-10-08"), Time: "19:00", DayName: "Wednesday", WeekNumber: 2}, items[3])

	assert.Nil(t, PreviewOccurrences(model.GoalSpec{}))
}

func TestValidateOccurrences(t *testing.T) {
	check := ValidateOccurrences(nil)
	assert.False(t, check.Valid)
	assert.Equal(t, []string{ErrNoOccurrences}, check.Errors)

	many := make([]model.Occurrence, MaxOccurrences+1)
	check = ValidateOccurrences(many)
	assert.False(t, check.Valid)
	assert.Equal(t, []string{ErrTooManyOccurrences}, check.Errors)

	check = ValidateOccurrences(many[:MaxOccurrences])
	assert.True(t, check.Valid)
	assert.Empty(t, check.Errors)
}

func TestBuild_SpringForwardGap(t *testing.T) {
	spec := model.GoalSpec{
		Type:     model.GoalSchedule,
		Timezone: "America/New_York",
		Period:   model.Period{Start: d("2025-03-02"), End: d("2025-03-15")},
		Schedule: model.Schedule{
			Rules: []model.WeeklyRule{{Weekdays: []time.Weekday{time.Sunday}, Time: clock("02:30")}},
		},
	}

	occs, err := BuildOccurrences(spec)
	require.NoError(t, err)
	require.Len(t, occs, 2)
	assert.Equal(t, []string{"2025-03-02 02:30", "2025-03-09 03:30"}, dates(t, occs, "America/New_York"))
	assert.True(t, occs[1].Start.Equal(time.Date(2025, 3, 9, 7, 30, 0, 0, time.UTC)))
	assert.Equal(t, time.Hour, occs[1].End.Sub(occs[1].Start))
}
