package cli

import (
	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan.yaml>",
		Short: "Validate a plan fragment against the schema",
		Long: `Check that a plan document conforms to the embedded CUE schema.

Validation covers document shape only; whether the fragment is
expressible in PQL is decided by compile.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, planPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if err := ValidatePlanFile(planPath); err != nil {
		return WrapExitError(ExitCommandError, "validate plan", err)
	}

	if opts.Format == "json" {
		return formatter.PrintJSON(map[string]any{"valid": true, "plan": planPath})
	}
	formatter.Printf("%s: OK\n", planPath)
	return nil
}
