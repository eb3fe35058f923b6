package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"questcal/internal/config"
	"questcal/internal/ics"
	"questcal/internal/model"
	"questcal/internal/tz"
	"questcal/internal/validate"
)

// ErrIncompatible is returned after printing a failing validation so the
// process exits non-zero.
var ErrIncompatible = errors.New("calendar does not satisfy the goal")

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var eventsPath, start, end, goalType string

	cmd := &cobra.Command{
		Use:   "validate <spec.json|spec.yaml>",
		Short: "Check calendar entries against a goal spec",
		Long: `Check calendar entries against a goal spec.

--events is either a JSON list of {"date","time"} entries or an .ics file.
The range defaults to the goal's period.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := config.LoadGoalSpec(args[0])
			if err != nil {
				return err
			}
			if start == "" {
				start = spec.Period.Start.String()
			}
			if end == "" {
				end = spec.Period.End.String()
			}

			events, err := readEvents(eventsPath, spec, start, end)
			if err != nil {
				return err
			}

			res, err := validate.ValidateGoalByCalendarEvents(events, spec, start, end, model.GoalType(goalType))
			if err != nil {
				return err
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if err := f.Emit(res, func(w io.Writer) { writeValidation(w, res) }); err != nil {
				return err
			}
			if !res.IsCompatible {
				return ErrIncompatible
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&eventsPath, "events", "", "calendar entries (.json or .ics)")
	cmd.Flags().StringVar(&start, "start", "", "first date (YYYY-MM-DD), default period start")
	cmd.Flags().StringVar(&end, "end", "", "last date (YYYY-MM-DD), default period end")
	cmd.Flags().StringVar(&goalType, "type", "", "goal type override")
	_ = cmd.MarkFlagRequired("events")

	return cmd
}

func readEvents(path string, spec model.GoalSpec, start, end string) ([]model.CalendarEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.ToLower(filepath.Ext(path)) != ".ics" {
		var events []model.CalendarEvent
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("events %s: %w", path, err)
		}
		return events, nil
	}

	from, err := model.ParseDate("start", start)
	if err != nil {
		return nil, err
	}
	to, err := model.ParseDate("end", end)
	if err != nil {
		return nil, err
	}
	loc, err := tz.Load(spec.Timezone)
	if err != nil {
		return nil, err
	}
	src := ics.Source{ID: filepath.Base(path), URL: path}
	return ics.ParseCalendarEvents(src, data, model.Period{Start: from, End: to}, loc)
}

func writeValidation(w io.Writer, res model.ValidationResult) {
	verdict := "compatible"
	if !res.IsCompatible {
		verdict = "incompatible"
	}
	fmt.Fprintf(w, "%s (%d complete week(s), %d event(s), %s mode)\n",
		verdict, res.CompleteWeekCount, res.ValidationDetails.EventCount, res.ValidationDetails.Mode)
	for _, issue := range res.Issues {
		fmt.Fprintf(w, "  - %s\n", issue)
	}
	if fx := res.Fixes; fx != nil {
		fmt.Fprintln(w, "suggested schedule:")
		for _, wd := range fx.WeeklyWeekdays {
			fmt.Fprintf(w, "  %s %s\n", weekdayList([]time.Weekday{time.Weekday(wd)}), strings.Join(fx.WeeklyTimeSettings[wd], ", "))
		}
	}
}
