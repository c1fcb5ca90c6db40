package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dispatch-cms/dispatch/internal/client"
	"github.com/dispatch-cms/dispatch/internal/session"
	"github.com/dispatch-cms/dispatch/internal/ui"
	"github.com/dispatch-cms/dispatch/pkg/entity"
	"github.com/dispatch-cms/dispatch/pkg/fields"
)

var (
	listQuery  string
	listLimit  int
	listOffset int
	dataJSON   string
)

var listCmd = &cobra.Command{
	Use:   "list <type>",
	Short: "List or search entities of a type",
	Example: `  dispatch list tags
  dispatch list articles -q election --limit 20`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: entity.Types(),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := requireToken()
		if err != nil {
			return err
		}
		entityType := args[0]
		s := session.New(token, nil)
		defer s.Close()

		res, err := client.NewFetcher(api).ListInto(cmd.Context(), s, entityType, client.Query{
			Q:      listQuery,
			Limit:  listLimit,
			Offset: listOffset,
		})
		if err != nil {
			return explainAuth(err)
		}

		records := s.Snapshot().Resolve(entityType)
		if jsonOutput {
			return ui.WriteJSON(cmd.OutOrStdout(), map[string]any{
				"count":   res.Count,
				"next":    res.Next,
				"results": records,
			})
		}

		attr := displayAttribute(entityType)
		tbl := &ui.Table{Headers: []string{"ID", strings.ToUpper(attr)}}
		for _, e := range records {
			tbl.AddRow(e.ID, e.String(attr))
		}
		if err := tbl.Write(cmd.OutOrStdout()); err != nil {
			return err
		}
		if ui.IsTerminal(cmd.OutOrStdout()) {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render(fmt.Sprintf("%d of %d", len(records), res.Count)))
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <type> <id>",
	Short: "Show one entity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := requireToken()
		if err != nil {
			return err
		}
		e, err := api.Get(cmd.Context(), token, args[0], args[1])
		if err != nil {
			return explainAuth(err)
		}
		return writeEntity(cmd, e)
	},
}

var createCmd = &cobra.Command{
	Use:   "create <type> [field=value...]",
	Short: "Create an entity",
	Long: `Create an entity from field=value pairs or --data JSON.

Values that parse as JSON (numbers, booleans, lists) are sent as such;
anything else is sent as a string.`,
	Example: `  dispatch create tags name=weather
  dispatch create articles headline="Budget passes" section=1 tags=[1,2]`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := requireToken()
		if err != nil {
			return err
		}
		data, err := parseFieldArgs(args[1:], dataJSON)
		if err != nil {
			return err
		}
		s := session.New(token, nil)
		defer s.Close()
		e, err := client.NewFetcher(api).CreateInto(cmd.Context(), s, args[0], data)
		if err != nil {
			return explainAuth(err)
		}
		return writeEntity(cmd, e)
	},
}

var updateCmd = &cobra.Command{
	Use:     "update <type> <id> [field=value...]",
	Short:   "Update fields of an entity",
	Example: `  dispatch update tags 3 name=climate`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := requireToken()
		if err != nil {
			return err
		}
		data, err := parseFieldArgs(args[2:], dataJSON)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return fmt.Errorf("nothing to update")
		}
		s := session.New(token, nil)
		defer s.Close()
		e, err := client.NewFetcher(api).UpdateInto(cmd.Context(), s, args[0], args[1], data)
		if err != nil {
			return explainAuth(err)
		}
		return writeEntity(cmd, e)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <type> <id>",
	Short: "Delete an entity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := requireToken()
		if err != nil {
			return err
		}
		if err := api.Delete(cmd.Context(), token, args[0], args[1]); err != nil {
			return explainAuth(err)
		}
		if !jsonOutput {
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", args[0], args[1])
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Search query")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of results")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Number of results to skip")
	for _, c := range []*cobra.Command{createCmd, updateCmd} {
		c.Flags().StringVar(&dataJSON, "data", "", "Fields as a JSON object")
	}
	rootCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd)
}

// displayAttribute picks the field used to label records of entityType.
func displayAttribute(entityType string) string {
	if schema, ok := fields.For(entityType); ok {
		if sf := schema.SearchFields(); len(sf) > 0 {
			return sf[0]
		}
	}
	return "name"
}

// parseFieldArgs merges --data JSON with field=value arguments. Arguments win.
func parseFieldArgs(args []string, raw string) (map[string]any, error) {
	data := make(map[string]any)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, fmt.Errorf("--data: %w", err)
		}
	}
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		data[name] = v
	}
	return data, nil
}

func writeEntity(cmd *cobra.Command, e entity.Entity) error {
	if jsonOutput {
		return ui.WriteJSON(cmd.OutOrStdout(), e)
	}
	tbl := &ui.Table{Headers: []string{"FIELD", "VALUE"}}
	tbl.AddRow("id", e.ID)
	for _, name := range e.Keys() {
		tbl.AddRow(name, e.String(name))
	}
	return tbl.Write(cmd.OutOrStdout())
}
