package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func searchCmd() *cobra.Command {
	var (
		vectorStr string
		filterStr string
		k         int
		ef        int
	)
	cmd := &cobra.Command{
		Use:   "search <collection>",
		Short: "Run a k-NN query against a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionName := args[0]
			vector, err := parseVector(vectorStr)
			if err != nil {
				return err
			}

			db, err := openDatabase()
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			coll, err := db.GetCollection(collectionName)
			if err != nil {
				return fmt.Errorf("getting collection %s: %w", collectionName, err)
			}

			qb := coll.Query(context.Background()).WithVector(vector).Limit(k)
			if ef > 0 {
				qb = qb.WithEfSearch(ef)
			}
			if filterStr != "" {
				var tree map[string]interface{}
				if err := json.Unmarshal([]byte(filterStr), &tree); err != nil {
					return fmt.Errorf("invalid filter JSON: %w", err)
				}
				qb = qb.WithFilter(tree)
			}

			results, err := qb.Execute()
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			for _, r := range results.Results {
				fmt.Printf("%s\tdistance=%.6f\tscore=%.6f\n", r.ID, r.Distance, r.Score)
			}
			fmt.Printf("%d result(s) in %s\n", results.Total, results.Took)
			return nil
		},
	}
	cmd.Flags().StringVar(&vectorStr, "vector", "", "comma-separated query vector (required)")
	cmd.Flags().StringVar(&filterStr, "filter", "", "JSON metadata filter tree")
	cmd.Flags().IntVar(&k, "k", 10, "number of results")
	cmd.Flags().IntVar(&ef, "ef", 0, "override the collection's efSearch (0 = use default)")
	cmd.MarkFlagRequired("vector")
	return cmd
}
