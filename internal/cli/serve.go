package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"questcal/internal/config"
	"questcal/internal/ics"
	appLog "questcal/internal/log"
	"questcal/internal/tz"
	"questcal/internal/watch"
	"questcal/internal/web"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the calendar watcher when a goal is configured)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			// --listen overrides the config file if provided.
			if listen != "" {
				cfg.Listen = listen
			}
			ctx := cmd.Context()

			var opts []web.Option
			if cfg.GoalSpec != "" {
				w, err := newWatcher(cfg, nil)
				if err != nil {
					return err
				}
				if err := w.Start(ctx, cfg.RefreshCron); err != nil {
					return err
				}
				go w.RunOnce(ctx)
				opts = append(opts, web.WithWatcher(w))
			}

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"week_start", cfg.WeekStart,
				"refresh", cfg.RefreshCron,
				"goal_spec", cfg.GoalSpec,
				"calendar_count", len(cfg.Calendars),
			)

			err = web.StartServer(ctx, cfg, opts...)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")

	return cmd
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-validate the configured goal against its calendars on the refresh schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if cfg.GoalSpec == "" {
				return errors.New("goal_spec is not set in the config")
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			report := func(r watch.Result) {
				_ = f.Emit(r, func(w io.Writer) {
					fmt.Fprintf(w, "[%s] generation %d: ", r.At.Format("2006-01-02 15:04:05"), r.Generation)
					if r.Err != "" {
						fmt.Fprintf(w, "error: %s\n", r.Err)
						return
					}
					writeValidation(w, r.Validation)
				})
			}

			w, err := newWatcher(cfg, report)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if once {
				if res, _ := w.RunOnce(ctx); res.Err != "" {
					return errors.New(res.Err)
				}
				return nil
			}

			if err := w.Start(ctx, cfg.RefreshCron); err != nil {
				return err
			}
			w.RunOnce(ctx)
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run one validation and exit")

	return cmd
}

func newWatcher(cfg *config.Config, onResult func(watch.Result)) (*watch.Watcher, error) {
	spec, err := config.LoadGoalSpec(cfg.GoalSpec)
	if err != nil {
		return nil, err
	}
	loc, err := tz.Load(spec.Timezone)
	if err != nil {
		return nil, err
	}

	sources := make([]ics.Source, 0, len(cfg.Calendars))
	for _, c := range cfg.Calendars {
		sources = append(sources, ics.Source{ID: c.ID, URL: c.URL})
	}
	src := watch.CalendarSource{Fetcher: ics.NewFetcher(cfg.CacheDir), Sources: sources}

	var opts []watch.Option
	if onResult != nil {
		opts = append(opts, watch.OnResult(onResult))
	}
	return watch.New(spec, loc, src, opts...), nil
}
