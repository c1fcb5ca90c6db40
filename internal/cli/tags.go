package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dispatch-cms/dispatch/internal/client"
	"github.com/dispatch-cms/dispatch/internal/selectinput"
	"github.com/dispatch-cms/dispatch/internal/session"
	"github.com/dispatch-cms/dispatch/internal/ui"
	"github.com/dispatch-cms/dispatch/pkg/entity"
)

var (
	tagsSelected []string
	tagsToggle   []string
	tagsCreate   string
)

type tagOption struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

var tagsCmd = &cobra.Command{
	Use:   "tags [query]",
	Short: "Search, create and select tags",
	Long: `Run the tag picker non-interactively: optionally create a tag, search
tags by query, and print the options with the current selection marked.`,
	Example: `  dispatch tags spo --selected 1,2
  dispatch tags --create weather --toggle 3`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := requireToken()
		if err != nil {
			return err
		}
		s := session.New(token, nil)
		defer s.Close()

		var value []string
		control := selectinput.NewTagSelect(s, client.NewFetcher(api), tagsSelected, func(v []string) {
			value = v
		})
		value = tagsSelected

		if tagsCreate != "" {
			var createErr error
			control.CreateRequested(cmd.Context(), tagsCreate, func(e entity.Entity, err error) {
				createErr = err
				if err == nil && !jsonOutput {
					fmt.Fprintf(cmd.ErrOrStderr(), "Created tag %s (%s)\n", e.String("name"), e.ID)
				}
			})
			if createErr != nil {
				return explainAuth(createErr)
			}
		}
		for _, id := range tagsToggle {
			control.Toggle(id)
		}

		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		if err := control.QueryChanged(cmd.Context(), query); err != nil {
			return explainAuth(err)
		}

		props := control.Props()
		options := make([]tagOption, 0, len(props.Results))
		for _, o := range props.Options() {
			options = append(options, tagOption{ID: o.ID, Label: o.Label, Selected: props.IsSelected(o.ID)})
		}

		if jsonOutput {
			return ui.WriteJSON(cmd.OutOrStdout(), map[string]any{
				"edit_message": props.EditMessage,
				"value":        value,
				"options":      options,
			})
		}

		out := cmd.OutOrStdout()
		if ui.IsTerminal(out) {
			fmt.Fprintln(out, ui.Bold.Render(props.EditMessage))
		}
		tbl := &ui.Table{Headers: []string{"ID", "TAG", ""}}
		for _, o := range options {
			mark := ""
			if o.Selected {
				mark = "selected"
			}
			tbl.AddRow(o.ID, o.Label, mark)
		}
		return tbl.Write(out)
	},
}

func init() {
	tagsCmd.Flags().StringSliceVar(&tagsSelected, "selected", nil, "Currently selected tag ids")
	tagsCmd.Flags().StringSliceVar(&tagsToggle, "toggle", nil, "Tag ids to add to or remove from the selection")
	tagsCmd.Flags().StringVar(&tagsCreate, "create", "", "Create a tag with this name first")
	rootCmd.AddCommand(tagsCmd)
}
