// Package main provides the cloudscape CLI.
package main

import (
	"os"

	"github.com/cloudscape-labs/cloudscape/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
