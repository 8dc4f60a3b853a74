package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/laserline/engraver/internal/rules"
)

// NewRulesCommand creates the rules command group.
func NewRulesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage production rules",
	}
	cmd.AddCommand(newRulesLoadCommand(opts))
	return cmd
}

// newRulesLoadCommand creates rules load: validate the CUE rule files in a
// directory and replace the store's rule tables with them.
func newRulesLoadCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <dir>",
		Short: "Load CUE rule files into the store",
		Long: "Compiles and validates every .cue file in the directory, then replaces\n" +
			"the template and asset rule tables atomically. Nothing is written if\n" +
			"any file fails validation.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := rules.Load(args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "load rules", err)
			}

			app, err := openApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.store.ReplaceRules(cmd.Context(), set); err != nil {
				return WrapExitError(ExitCommandError, "store rules", err)
			}

			if opts.Format == "json" {
				out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return out.Success(map[string]int{
					"files":          set.FileCount,
					"template_rules": len(set.Templates),
					"asset_rules":    len(set.Assets),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d template rule(s) and %d asset rule(s) from %d file(s)\n",
				len(set.Templates), len(set.Assets), set.FileCount)
			return nil
		},
	}
}
