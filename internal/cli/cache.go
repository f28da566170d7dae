package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCacheCommand creates the cache command group.
func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local resource cache",
	}
	cmd.AddCommand(newCacheClearCommand())
	return cmd
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached entry",
		Long: `Delete all cached subscriptions, resources and selection filters. The
next discovery command fetches everything fresh.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			clearer, ok := app.Cache.(interface{ Clear() error })
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Cache is in-memory; nothing to clear")
				return nil
			}
			if err := clearer.Clear(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared (%s)\n", app.Config.CachePath)
			return nil
		},
	}
}
