package cli

import (
	"flag"
	"fmt"

	"github.com/spf13/cobra"

	apiserver "github.com/dispatch-cms/dispatch/internal/api"
	"github.com/dispatch-cms/dispatch/pkg/apicore"
)

var serveConfig = &apicore.Config{Name: "dispatch-api"}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the content API server",
	Long: `Run the in-memory Dispatch content API.

Seed data is read from --seed-file. The admin plane under /admin/ can reset
state, inject faults and advance the simulated clock.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		serveConfig.ApplyEnv()
		app, err := apiserver.NewApp(serveConfig)
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		defer app.Close()
		return app.Server.Serve(cmd.Context())
	},
}

func init() {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	serveConfig.RegisterFlags(fs)
	serveCmd.Flags().AddGoFlagSet(fs)
	rootCmd.AddCommand(serveCmd)
}
