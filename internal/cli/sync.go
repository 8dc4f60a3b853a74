package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/laserline/engraver/internal/syncer"
)

// NewSyncCommand creates the sync command: one full reconciling pass of
// the order store against the external feed.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the order store against the feed",
		Long: "Reads the full feed, inserts new orders, removes orders absent from\n" +
			"the feed snapshot, and marks the retro side required where a retro\n" +
			"template exists for the SKU.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

			report, err := app.syncer().Sync(cmd.Context())
			if err != nil {
				var ie *syncer.IntegrityError
				if errors.As(err, &ie) {
					out.Failure("SYNC_INTEGRITY", ie.Error())
					return WrapExitError(ExitFailure, "sync aborted", err)
				}
				return WrapExitError(ExitCommandError, "sync failed", err)
			}

			if opts.Format == "json" {
				return out.Success(report)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"sync %s: parsed=%d added=%d duplicates=%d deleted=%d skipped=%d retro_promoted=%d\n",
				report.RunID, report.TotalParsed, report.Added, report.Duplicates,
				report.Deleted, report.Skipped, report.RetroPromoted)
			return nil
		},
	}
}
