package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cloudscape-labs/cloudscape/internal/config"
	"github.com/cloudscape-labs/cloudscape/internal/tree"
)

// newResourcesCommand creates the resources command.
func newResourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List resources across all tenants as a flat view",
		Long: `Run one incremental discovery pass over every tenant of the configured
account and print the discovered resources grouped by provider.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if app.Account.Key == "" {
				return fmt.Errorf("no account configured; set account.key in %s", "cloudscape.yaml")
			}

			if app.Config.Verbose {
				app.Loader.OnResourcesChanged(func() {
					fmt.Fprintln(cmd.ErrOrStderr(), "resources updated")
				})
			}

			if err := app.Loader.Start(cmd.Context(), app.Account); err != nil {
				return err
			}
			app.Loader.Wait()

			return renderResources(cmd, app, app.Loader.Children())
		},
	}
}

type resourceRow struct {
	Provider     string `json:"provider"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Server       string `json:"server,omitempty"`
	Subscription string `json:"subscription"`
}

func renderResources(cmd *cobra.Command, app *App, nodes []*tree.Node) error {
	var rows []resourceRow
	var messages []string
	for _, n := range nodes {
		if n.Kind == tree.KindMessage {
			messages = append(messages, n.Label())
			continue
		}
		for _, child := range n.ChildNodes() {
			rows = append(rows, flattenResource(n.Provider, child)...)
		}
	}

	out := cmd.OutOrStdout()
	switch app.Config.Output {
	case config.OutputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case config.OutputPlain:
		for _, r := range rows {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", r.Provider, r.Kind, r.Name, r.Subscription)
		}
		for _, m := range messages {
			fmt.Fprintln(out, m)
		}
		return nil
	default:
		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Provider", "Kind", "Name", "Server", "Subscription"})
		for _, r := range rows {
			t.AppendRow(table.Row{r.Provider, r.Kind, r.Name, r.Server, r.Subscription})
		}
		t.Render()
		fmt.Fprintf(out, "(%d resources)\n", len(rows))
		for _, m := range messages {
			fmt.Fprintln(out, m)
		}
		return nil
	}
}

// flattenResource emits the resource node and its attached databases.
func flattenResource(providerID string, node *tree.Node) []resourceRow {
	if node.Kind != tree.KindResource {
		return nil
	}
	res := node.Resource
	rows := []resourceRow{{
		Provider:     providerID,
		Name:         res.Name,
		Kind:         res.Kind.String(),
		Server:       res.ServerName,
		Subscription: res.Subscription.ID,
	}}
	for _, child := range node.ChildNodes() {
		rows = append(rows, flattenResource(child.Resource.Provider, child)...)
	}
	return rows
}
