package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/laserline/engraver/internal/job"
	"github.com/laserline/engraver/internal/orders"
)

// NewResetCommand creates the reset command: the manual recovery path for
// a failed or exhausted side.
func NewResetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <order-id> <side>",
		Short: "Reset a side to pending for manual retry",
		Long: "Clears the side's error message, zeroes its attempt count and sets it\n" +
			"back to pending, bypassing the retry ceiling. Rejected while the side\n" +
			"is processing.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := orders.ParseSide(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid arguments", err)
			}

			app, err := openApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

			if err := app.processor().ResetSide(cmd.Context(), args[0], side); err != nil {
				var pe *job.ProcessError
				if errors.As(err, &pe) {
					out.Failure(string(pe.Code), pe.Message)
					return WrapExitError(ExitFailure, "reset refused", err)
				}
				return WrapExitError(ExitCommandError, "reset failed", err)
			}

			if opts.Format == "json" {
				return out.Success(map[string]string{
					"order_id": args[0],
					"side":     string(side),
					"status":   string(orders.StatusPending),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s %s to pending\n", args[0], side)
			return nil
		},
	}
}
