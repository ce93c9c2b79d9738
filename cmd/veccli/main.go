// Command veccli is a debug console around an embedded veccore database:
// create a collection, insert a vector given as comma-separated values
// (with optional JSON metadata), run a k-NN query, list collections, and
// print collection stats.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dataDir string
	backend string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "veccli",
		Short: "Debug console for an embedded veccore database",
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "database storage directory")
	root.PersistentFlags().StringVar(&backend, "backend", "lsm", "storage backend: lsm or badger")

	root.AddCommand(
		createCmd(),
		insertCmd(),
		searchCmd(),
		statsCmd(),
		listCmd(),
	)
	return root
}
