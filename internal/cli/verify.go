package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"questcal/internal/model"
	"questcal/internal/normalize"
	"questcal/internal/verification"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		goalType string
		signals  string
		text     string
		plan     bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a verification signal set, or plan one with --plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gt := model.GoalType(strings.ToLower(goalType))
			var set []model.Signal
			if strings.TrimSpace(signals) != "" {
				set = normalize.Signals(signals)
			}
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

			if plan {
				p := verification.ComputeVerificationPlan(gt, verification.Context{Text: text, Methods: set})
				return f.Emit(p, func(w io.Writer) {
					fmt.Fprintf(w, "methods:   %s\n", joinSignals(p.Methods))
					fmt.Fprintf(w, "mandatory: %s\n", joinSignals(p.Mandatory))
					for _, fu := range p.FollowUps {
						fmt.Fprintf(w, "follow-up: %s (%s)\n", fu.Field, fu.Code)
					}
					writeVerdict(w, p.Valid, p.Errors)
				})
			}

			check := verification.ValidateVerificationSignals(gt, set)
			return f.Emit(check, func(w io.Writer) {
				writeVerdict(w, check.Valid, check.Errors)
				if len(check.Suggestions) > 0 {
					fmt.Fprintf(w, "suggested: %s\n", joinSignals(check.Suggestions))
				}
			})
		},
	}

	cmd.Flags().StringVar(&goalType, "type", "", "goal type (schedule|frequency|milestone)")
	cmd.Flags().StringVar(&signals, "signals", "", "comma-separated signals (time,location,photo,screentime,manual)")
	cmd.Flags().StringVar(&text, "text", "", "goal description scanned for digital cues (with --plan)")
	cmd.Flags().BoolVar(&plan, "plan", false, "compute a verification plan instead of checking")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func joinSignals(set []model.Signal) string {
	if len(set) == 0 {
		return "-"
	}
	names := make([]string, len(set))
	for i, s := range set {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func writeVerdict(w io.Writer, valid bool, errs []string) {
	if valid {
		fmt.Fprintln(w, "valid")
		return
	}
	fmt.Fprintln(w, "invalid")
	for _, e := range errs {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}
