package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dispatch-cms/dispatch/internal/ui"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Control a running server's admin plane",
}

var adminHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, detail := api.Health(cmd.Context())
		if jsonOutput {
			return ui.WriteJSON(cmd.OutOrStdout(), map[string]any{"ok": ok, "detail": detail})
		}
		if !ok {
			return errors.New(detail)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Accent.Render("healthy"), ui.Muted.Render(api.BaseURL()))
		return nil
	},
}

var adminResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the server's seed data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := api.Reset(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), body)
		return nil
	},
}

var adminSeedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Load a JSON state snapshot into the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := api.Seed(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), body)
		return nil
	},
}

func init() {
	adminCmd.AddCommand(adminHealthCmd, adminResetCmd, adminSeedCmd)
	rootCmd.AddCommand(adminCmd)
}
