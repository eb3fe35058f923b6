package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"questcal/internal/config"
	"questcal/internal/ics"
	"questcal/internal/schedule"
)

type previewOutput struct {
	Items []schedule.PreviewItem   `json:"items"`
	Check schedule.OccurrenceCheck `json:"check"`
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	var icsOut, summary string

	cmd := &cobra.Command{
		Use:   "preview <spec.json|spec.yaml>",
		Short: "List the sessions a goal spec produces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configOrDefault(rootOpts)
			if err != nil {
				return err
			}
			spec, err := config.LoadGoalSpec(args[0])
			if err != nil {
				return err
			}

			b := schedule.NewBuilder(nil, cfg.DefaultDurationMin)
			occs, err := b.Build(spec)
			if err != nil {
				return err
			}
			out := previewOutput{
				Items: b.PreviewOccurrences(spec),
				Check: schedule.ValidateOccurrences(occs),
			}
			if out.Items == nil {
				out.Items = []schedule.PreviewItem{}
			}

			if icsOut != "" {
				body := ics.ExportOccurrences(occs, ics.ExportOptions{Summary: summary})
				if err := os.WriteFile(icsOut, []byte(body), 0o644); err != nil {
					return err
				}
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(out, func(w io.Writer) {
				for _, it := range out.Items {
					fmt.Fprintf(w, "%s %-9s %s  (week %d)\n", it.Date, it.DayName, it.Time, it.WeekNumber)
				}
				fmt.Fprintf(w, "%d session(s)\n", len(out.Items))
				if !out.Check.Valid {
					fmt.Fprintf(w, "warning: %s\n", strings.Join(out.Check.Errors, "; "))
				}
				if icsOut != "" {
					fmt.Fprintf(w, "wrote %s\n", icsOut)
				}
			})
		},
	}

	cmd.Flags().StringVar(&icsOut, "ics", "", "also export the sessions to this .ics file")
	cmd.Flags().StringVar(&summary, "summary", "", "event title used in the .ics export")

	return cmd
}

func weekdayList(wds []time.Weekday) string {
	names := make([]string, len(wds))
	for i, wd := range wds {
		names[i] = wd.String()[:3]
	}
	return strings.Join(names, "/")
}
