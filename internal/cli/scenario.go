package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dispatch-cms/dispatch/internal/scenario"
	"github.com/dispatch-cms/dispatch/internal/ui"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario <file-or-dir>",
	Short: "Run YAML or JSON request scenarios against the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scenarios, err := scenario.Load(args[0])
		if err != nil {
			return err
		}

		runner := scenario.NewRunner(api)
		out := cmd.OutOrStdout()
		results := make([]*scenario.Result, 0, len(scenarios))
		failed := 0
		for _, s := range scenarios {
			res, err := runner.Run(cmd.Context(), s)
			if err != nil {
				return fmt.Errorf("scenario %q: %w", s.Name, err)
			}
			results = append(results, res)
			if !res.Passed {
				failed++
			}
			if jsonOutput {
				continue
			}

			status := ui.Accent.Render("PASS")
			if !res.Passed {
				status = ui.Error.Render("FAIL")
			}
			fmt.Fprintf(out, "%s %s %s\n", status, ui.Bold.Render(res.ScenarioName), ui.Muted.Render(res.Duration.String()))
			for _, step := range res.Steps {
				if step.Passed {
					fmt.Fprintf(out, "  ok   %s\n", step.Name)
				} else {
					fmt.Fprintf(out, "  fail %s: %s\n", step.Name, step.Error)
				}
			}
		}

		if jsonOutput {
			if err := ui.WriteJSON(out, results); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d scenarios failed", failed, len(scenarios))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scenarioCmd)
}
