package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"questcal/internal/ics"
	appLog "questcal/internal/log"
	"questcal/internal/model"
)

type staticSource struct {
	events []model.CalendarEvent
	err    error
}

func (s staticSource) Events(context.Context, model.Period, *time.Location) ([]model.CalendarEvent, error) {
	return s.events, s.err
}

// gatedSource blocks its first call until release is closed.
type gatedSource struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSource) Events(ctx context.Context, _ model.Period, _ *time.Location) ([]model.CalendarEvent, error) {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return nil, nil
}

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func goal() model.GoalSpec {
	return model.GoalSpec{
		Type:         model.GoalFrequency,
		Timezone:     "UTC",
		Period:       model.Period{Start: date("2025-10-06"), End: date("2025-10-13")},
		CountRule:    &model.CountRule{Operator: model.OpAtLeast, Count: 2, Unit: model.UnitPerWeek},
		WeekBoundary: time.Monday,
	}
}

func TestRunOnce(t *testing.T) {
	var got []Result
	fixed := time.Date(2025, 10, 13, 8, 0, 0, 0, time.UTC)
	w := New(goal(), time.UTC, staticSource{events: []model.CalendarEvent{
		{Date: date("2025-10-06")}, {Date: date("2025-10-09")},
	}}, OnResult(func(r Result) { got = append(got, r) }), WithClock(func() time.Time { return fixed }))

	_, ok := w.Latest()
	assert.False(t, ok)

	res, accepted := w.RunOnce(context.Background())
	require.True(t, accepted)
	assert.Equal(t, uint64(1), res.Generation)
	assert.Equal(t, fixed, res.At)
	assert.True(t, res.Validation.IsCompatible)
	assert.Empty(t, res.Err)

	latest, ok := w.Latest()
	require.True(t, ok)
	assert.Equal(t, res, latest)
	assert.Equal(t, []Result{res}, got)
}

func TestRunOnce_SourceError(t *testing.T) {
	w := New(goal(), time.UTC, staticSource{err: errors.New("feed down")})

	res, accepted := w.RunOnce(context.Background())
	assert.True(t, accepted)
	assert.Equal(t, "feed down", res.Err)
	assert.False(t, res.Validation.IsCompatible)
}

func TestRunOnce_LatestWins(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := appLog.SetLogger(zap.New(core))
	defer restore()

	src := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	w := New(goal(), time.UTC, src)

	type outcome struct {
		res      Result
		accepted bool
	}
	slow := make(chan outcome, 1)
	go func() {
		res, ok := w.RunOnce(context.Background())
		slow <- outcome{res, ok}
	}()
	<-src.entered

	fast, accepted := w.RunOnce(context.Background())
	require.True(t, accepted)
	assert.Equal(t, uint64(2), fast.Generation)

	close(src.release)
	stale := <-slow
	assert.False(t, stale.accepted)
	assert.Equal(t, uint64(1), stale.res.Generation)

	latest, _ := w.Latest()
	assert.Equal(t, uint64(2), latest.Generation)
	assert.Equal(t, 1, logs.FilterMessage("watch: discarding stale result").Len())
}

func TestStart(t *testing.T) {
	w := New(goal(), time.UTC, staticSource{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.Error(t, w.Start(ctx, "every tuesday"))

	require.NoError(t, w.Start(ctx, "@every 1s"))
	assert.Eventually(t, func() bool {
		_, ok := w.Latest()
		return ok
	}, 5*time.Second, 50*time.Millisecond)
}

func TestCalendarSource(t *testing.T) {
	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:a\r\nDTSTAMP:20251001T000000Z\r\nDTSTART:20251006T070000Z\r\nDTEND:20251006T080000Z\r\nRRULE:FREQ=WEEKLY;BYDAY=MO,TH\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	path := filepath.Join(t.TempDir(), "gym.ics")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	src := CalendarSource{
		Fetcher: ics.NewFetcher(t.TempDir()),
		Sources: []ics.Source{{ID: "gym", URL: path}, {ID: "missing", URL: filepath.Join(t.TempDir(), "nope.ics")}},
	}
	w := New(goal(), time.UTC, src)

	res, accepted := w.RunOnce(context.Background())
	require.True(t, accepted)
	assert.Empty(t, res.Err)
	assert.True(t, res.Validation.IsCompatible)
	assert.Equal(t, 3, res.Validation.ValidationDetails.EventCount)

	_, err := CalendarSource{Fetcher: src.Fetcher, Sources: src.Sources[1:]}.Events(context.Background(), goal().Period, time.UTC)
	assert.Error(t, err)
}
