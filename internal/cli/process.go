package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/laserline/engraver/internal/job"
	"github.com/laserline/engraver/internal/orders"
)

// NewProcessCommand creates the process command: run one production job
// for one side of one order.
func NewProcessCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process <order-id> <side>",
		Short: "Produce one side of an order",
		Long: "Generates the artifact for the given order side, invokes the external\n" +
			"renderer and verifies the output. Side is \"front\" or \"retro\".",
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

			result, err := app.processor().ProcessSide(cmd.Context(), args[0], side)
			if err != nil {
				var pe *job.ProcessError
				if errors.As(err, &pe) {
					out.Failure(string(pe.Code), pe.Message)
					return WrapExitError(ExitFailure, "processing failed", err)
				}
				return WrapExitError(ExitCommandError, "processing failed", err)
			}

			if opts.Format == "json" {
				return out.Success(result)
			}
			if result.AlreadyPrinted {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s %s was already printed; re-sent\n",
					result.OrderID, result.Side)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "printed %s %s (artifact %s, %d render attempt(s))\n",
				result.OrderID, result.Side, result.Artifact, result.RenderAttempts)
			return nil
		},
	}
}
