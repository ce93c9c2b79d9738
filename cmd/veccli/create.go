package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vectorkit/veccore/veccore"
)

func createCmd() *cobra.Command {
	var (
		dimension int
		metricStr string
		indexStr  string
	)
	cmd := &cobra.Command{
		Use:   "create <collection>",
		Short: "Create a new collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			dm, err := parseMetric(metricStr)
			if err != nil {
				return err
			}
			it, err := parseIndexType(indexStr)
			if err != nil {
				return err
			}

			db, err := openDatabase()
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			opts := []veccore.CollectionOption{
				veccore.WithDimension(dimension),
				veccore.WithMetric(dm),
			}
			if it == veccore.Flat {
				opts = append(opts, veccore.WithFlatIndex())
			}

			if _, err := db.CreateCollection(context.Background(), name, opts...); err != nil {
				return fmt.Errorf("creating collection %s: %w", name, err)
			}
			fmt.Printf("created collection %q (dimension=%d, metric=%s, index=%s)\n", name, dimension, metricStr, indexStr)
			return nil
		},
	}
	cmd.Flags().IntVar(&dimension, "dim", 768, "vector dimension")
	cmd.Flags().StringVar(&metricStr, "metric", "cosine", "distance metric: cosine, l2, dot, manhattan, hamming, jaccard")
	cmd.Flags().StringVar(&indexStr, "index", "hnsw", "index type: hnsw or flat")
	return cmd
}
