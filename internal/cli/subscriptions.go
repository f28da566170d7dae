package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cloudscape-labs/cloudscape/internal/config"
)

// newSubscriptionsCommand creates the subscriptions command.
func newSubscriptionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "subscriptions",
		Short: "List subscriptions across all tenants of the account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if app.Account.Key == "" {
				return fmt.Errorf("no account configured; set account.key in %s", "cloudscape.yaml")
			}

			subs, err := app.Tree.AllSubscriptions(cmd.Context(), app.Account)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch app.Config.Output {
			case config.OutputJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(subs)
			case config.OutputPlain:
				for _, s := range subs {
					fmt.Fprintf(out, "%s\t%s\t%s\n", s.ID, s.Name, s.TenantID)
				}
				return nil
			default:
				t := table.NewWriter()
				t.SetOutputMirror(out)
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"Subscription", "Name", "Tenant"})
				for _, s := range subs {
					t.AppendRow(table.Row{s.ID, s.Name, s.TenantID})
				}
				t.Render()
				fmt.Fprintf(out, "(%d subscriptions)\n", len(subs))
				return nil
			}
		},
	}
}
