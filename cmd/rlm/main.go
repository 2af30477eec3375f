// Command rlm is the CLI entry point: it loads Config, reads a query
// from arguments or stdin, and runs it through the engine to a terminal
// value.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "recurse:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rlm",
		Short:         "Recursive Language Model engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to a YAML config override file")
	root.PersistentFlags().String("log-dir", "./logs", "directory to write the JSONL run log into")
	root.AddCommand(newRunCmd())
	return root
}
