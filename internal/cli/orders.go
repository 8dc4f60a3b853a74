package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/laserline/engraver/internal/orders"
)

// NewOrdersCommand creates the orders command: list persisted orders and
// their side states.
func NewOrdersCommand(opts *RootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List persisted orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch orders.OverallStatus(status) {
			case "", orders.OverallPending, orders.OverallProcessing, orders.OverallPrinted, orders.OverallError:
			default:
				return WrapExitError(ExitCommandError, "invalid arguments",
					fmt.Errorf("invalid status %q", status))
			}

			app, err := openApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			list, err := app.store.ListOrders(cmd.Context(), orders.OverallStatus(status))
			if err != nil {
				return WrapExitError(ExitCommandError, "list orders", err)
			}

			if opts.Format == "json" {
				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(ordersJSON(list))
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER\tSKU\tOVERALL\tFRONT\tRETRO\tATTEMPTS")
			for _, o := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d/%d\n",
					o.OrderID, o.SKU, o.Overall,
					o.Front.Status, o.Retro.Status,
					o.Front.AttemptCount, o.Retro.AttemptCount)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by overall status (pending|processing|printed|error)")
	return cmd
}

// orderJSON is the list entry shape for --format json.
type orderJSON struct {
	OrderID string        `json:"order_id"`
	SKU     string        `json:"sku"`
	Overall string        `json:"overall_status"`
	Front   sideStateJSON `json:"front"`
	Retro   sideStateJSON `json:"retro"`
}

type sideStateJSON struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	AttemptCount int    `json:"attempt_count"`
	ProcessedAt  string `json:"processed_at,omitempty"`
}

func ordersJSON(list []orders.Order) []orderJSON {
	out := make([]orderJSON, 0, len(list))
	for _, o := range list {
		out = append(out, orderJSON{
			OrderID: o.OrderID,
			SKU:     o.SKU,
			Overall: string(o.Overall),
			Front:   sideJSON(o.Front),
			Retro:   sideJSON(o.Retro),
		})
	}
	return out
}

func sideJSON(s orders.SideState) sideStateJSON {
	out := sideStateJSON{
		Status:       string(s.Status),
		ErrorMessage: s.ErrorMessage,
		AttemptCount: s.AttemptCount,
	}
	if s.ProcessedAt != nil {
		out.ProcessedAt = s.ProcessedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return out
}
