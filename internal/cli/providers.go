package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cloudscape-labs/cloudscape/internal/config"
)

// newProvidersCommand creates the providers command.
func newProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered resource providers",
		Long: `List the resource providers the discovery engine queries, with the
graph resource types each one handles.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			type providerInfo struct {
				ID    string   `json:"id"`
				Types []string `json:"resourceTypes"`
			}
			var providers []providerInfo
			for _, id := range app.Registry.List() {
				d, err := app.Registry.Get(id)
				if err != nil {
					return err
				}
				info := providerInfo{ID: id}
				for _, m := range d.Matches {
					t := m.ResourceType
					if m.Kind != "" {
						t += " (kind " + m.Kind + ")"
					}
					info.Types = append(info.Types, t)
				}
				providers = append(providers, info)
			}

			out := cmd.OutOrStdout()
			switch app.Config.Output {
			case config.OutputJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(providers)
			case config.OutputPlain:
				for _, p := range providers {
					for _, t := range p.Types {
						fmt.Fprintf(out, "%s\t%s\n", p.ID, t)
					}
				}
				return nil
			default:
				t := table.NewWriter()
				t.SetOutputMirror(out)
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"Provider", "Resource Types"})
				for _, p := range providers {
					for i, rt := range p.Types {
						id := p.ID
						if i > 0 {
							id = ""
						}
						t.AppendRow(table.Row{id, rt})
					}
				}
				t.Render()
				fmt.Fprintf(out, "(%d providers)\n", len(providers))
				return nil
			}
		},
	}
}
