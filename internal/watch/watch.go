// Package watch re-validates a goal against its subscribed calendars on a
// cron schedule.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"questcal/internal/ics"
	appLog "questcal/internal/log"
	"questcal/internal/model"
	"questcal/internal/validate"
)

// EventSource yields the user's calendar entries for a period.
type EventSource interface {
	Events(ctx context.Context, period model.Period, loc *time.Location) ([]model.CalendarEvent, error)
}

// CalendarSource reads events from ICS subscriptions.
type CalendarSource struct {
	Fetcher *ics.Fetcher
	Sources []ics.Source
}

// Events fetches every source and merges the expanded entries. It fails
// only when no source produced a body.
func (s CalendarSource) Events(ctx context.Context, period model.Period, loc *time.Location) ([]model.CalendarEvent, error) {
	results, errs := s.Fetcher.FetchAll(ctx, s.Sources)
	if len(results) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	var events []model.CalendarEvent
	for _, res := range results {
		evs, err := ics.ParseCalendarEvents(res.Source, res.Body, period, loc)
		if err != nil {
			appLog.Error("watch: calendar skipped", err, "id", res.Source.ID)
			continue
		}
		events = append(events, evs...)
	}
	return events, nil
}

// Result is the outcome of one run.
type Result struct {
	Generation uint64                 `json:"generation"`
	At         time.Time              `json:"at"`
	Validation model.ValidationResult `json:"validation"`
	Err        string                 `json:"error,omitempty"`
}

// Watcher runs validations and keeps the latest result. Overlapping runs
// are allowed; a run whose generation has been superseded when it finishes
// is discarded.
type Watcher struct {
	spec     model.GoalSpec
	loc      *time.Location
	source   EventSource
	onResult func(Result)
	now      func() time.Time

	gen    atomic.Uint64
	latest atomic.Pointer[Result]
}

// Option configures a Watcher.
type Option func(*Watcher)

// OnResult registers a callback for every accepted result.
func OnResult(fn func(Result)) Option {
	return func(w *Watcher) { w.onResult = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// New creates a Watcher validating spec against source in loc.
func New(spec model.GoalSpec, loc *time.Location, source EventSource, opts ...Option) *Watcher {
	w := &Watcher{spec: spec, loc: loc, source: source, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Latest returns the most recent accepted result, if any.
func (w *Watcher) Latest() (Result, bool) {
	r := w.latest.Load()
	if r == nil {
		return Result{}, false
	}
	return *r, true
}

// RunOnce performs one validation. It returns the result and whether it
// was accepted as the latest.
func (w *Watcher) RunOnce(ctx context.Context) (Result, bool) {
	gen := w.gen.Add(1)
	res := Result{Generation: gen, At: w.now()}

	events, err := w.source.Events(ctx, w.spec.Period, w.loc)
	if err == nil {
		res.Validation, err = validate.ValidatePeriod(events, w.spec, w.spec.Period, "")
	}
	if err != nil {
		res.Err = err.Error()
		appLog.Error("watch: run failed", err, "generation", gen)
	}

	if gen != w.gen.Load() {
		appLog.Debug("watch: discarding stale result", "generation", gen, "latest", w.gen.Load())
		return res, false
	}
	w.latest.Store(&res)
	if w.onResult != nil {
		w.onResult(res)
	}
	appLog.Info("watch: validation finished",
		"generation", gen,
		"compatible", res.Validation.IsCompatible,
		"issues", len(res.Validation.Issues),
	)
	return res, true
}

// Start schedules RunOnce on expr (standard 5-field cron, evaluated in the
// watcher's zone) until ctx is done. A tick that fires while the previous
// run is still going is skipped.
func (w *Watcher) Start(ctx context.Context, expr string) error {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(w.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(expr, func() { w.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	c.Start()
	appLog.Info("watch: scheduler started", "cron", expr)
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("watch: scheduler stopped")
	}()
	return nil
}

// cronLogger routes cron's logr-style calls into the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
