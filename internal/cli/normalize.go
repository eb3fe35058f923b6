package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"questcal/internal/config"
	"questcal/internal/normalize"
)

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "normalize <draft.json|draft.yaml>",
		Short: "Turn a loosely typed goal draft into a canonical goal spec",
		Long: `Normalize a goal draft into a canonical goal spec.

Fields that cannot be resolved are listed as missing. With --out a complete
spec is written as JSON or YAML (by extension).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configOrDefault(rootOpts)
			if err != nil {
				return err
			}
			raw, err := readDraft(args[0])
			if err != nil {
				return err
			}

			res := normalize.Draft(raw, normalize.Defaults{
				Timezone:           cfg.Timezone,
				WeekBoundary:       cfg.WeekBoundary(),
				DefaultDurationMin: cfg.DefaultDurationMin,
			})

			if out != "" {
				if !res.Complete() {
					return fmt.Errorf("draft incomplete, missing %s", strings.Join(res.MissingFields, ", "))
				}
				if err := config.SaveGoalSpec(out, res.Spec); err != nil {
					return err
				}
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(res, func(w io.Writer) {
				s := res.Spec
				fmt.Fprintf(w, "type:     %s\n", s.Type)
				fmt.Fprintf(w, "timezone: %s\n", s.Timezone)
				fmt.Fprintf(w, "period:   %s ~ %s\n", s.Period.Start, s.Period.End)
				for _, r := range s.Schedule.Rules {
					fmt.Fprintf(w, "rule:     %s at %s\n", weekdayList(r.Weekdays), r.Time)
				}
				if cr := s.CountRule; cr != nil {
					fmt.Fprintf(w, "count:    %s %d %s\n", cr.Operator, cr.Count, cr.Unit)
				}
				if res.Complete() {
					fmt.Fprintln(w, "complete")
				} else {
					fmt.Fprintf(w, "missing:  %s\n", strings.Join(res.MissingFields, ", "))
				}
				if out != "" {
					fmt.Fprintf(w, "wrote %s\n", out)
				}
			})
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "write the normalized spec to this .json/.yaml file")

	return cmd
}

func readDraft(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("draft %s: %w", path, err)
	}
	return raw, nil
}
