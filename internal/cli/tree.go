package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudscape-labs/cloudscape/internal/tree"
)

// maxTreeDepth bounds the recursive walk; the hierarchy is
// account > tenant > subscription > server > database.
const maxTreeDepth = 6

// newTreeCommand creates the tree command.
func newTreeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Walk and print the resource tree for the configured account",
		Long: `Walk the account's tenants, subscriptions and resources and print them
as an indented tree. Results are cached; use --refresh to discard the
cached branches and query the cloud again.`,
		Example: `  # Print the cached resource tree
  cloudscape tree

  # Force a fresh discovery pass
  cloudscape tree --refresh`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			refresh, _ := cmd.Flags().GetBool("refresh")

			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if app.Account.Key == "" {
				return fmt.Errorf("no account configured; set account.key in %s", "cloudscape.yaml")
			}

			root := tree.NewAccountNode(app.Account)
			printNode(cmd.OutOrStdout(), app, root, 0, refresh)
			return nil
		},
	}
	cmd.Flags().Bool("refresh", false, "Discard cached branches and refetch")
	return cmd
}

// printNode prints the node and recurses into its children. Fresh nodes
// always fetch; without refresh every container is flipped to serve from
// the persistent cache, so repeated invocations reuse earlier discovery.
func printNode(w io.Writer, app *App, node *tree.Node, depth int, refresh bool) {
	if !refresh {
		node.UseCachedChildren()
	}
	fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), app.Tree.TreeItem(node).Label)
	if depth >= maxTreeDepth || !node.IsContainer() {
		return
	}
	for _, child := range app.Tree.Children(context.Background(), node) {
		printNode(w, app, child, depth+1, refresh)
	}
}
