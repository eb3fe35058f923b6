package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"questcal/internal/model"
	"questcal/internal/normalize"
	"questcal/internal/schedule"
)

type weeksOutput struct {
	Weeks []model.WeekBlock `json:"weeks"`
	Count int               `json:"count"`
}

// NewWeeksCommand creates the weeks command.
func NewWeeksCommand(rootOpts *RootOptions) *cobra.Command {
	var start, end, boundary string

	cmd := &cobra.Command{
		Use:   "weeks",
		Short: "List the complete weeks inside a date range",
		Long: `List the 7-day blocks that fit entirely inside [start, end].

With --boundary the first block starts on that weekday; without it the
blocks are anchored on the start date.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := model.ParseDate("start", start)
			if err != nil {
				return err
			}
			to, err := model.ParseDate("end", end)
			if err != nil {
				return err
			}
			var wd *time.Weekday
			if boundary != "" {
				b, ok := normalize.Weekday(boundary)
				if !ok {
					return fmt.Errorf("boundary: unknown weekday %q", boundary)
				}
				wd = &b
			}

			weeks, err := schedule.SliceCompleteWeeks(from, to, wd)
			if err != nil {
				return err
			}
			if weeks == nil {
				weeks = []model.WeekBlock{}
			}

			out := weeksOutput{Weeks: weeks, Count: len(weeks)}
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(out, func(w io.Writer) {
				for _, b := range weeks {
					fmt.Fprintf(w, "%s ~ %s\n", b.From, b.To)
				}
				fmt.Fprintf(w, "%d complete week(s)\n", len(weeks))
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&boundary, "boundary", "", "week start weekday (e.g. monday, sunday)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}
