package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <collection>",
		Short: "Print collection statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			coll, err := db.GetCollection(args[0])
			if err != nil {
				return fmt.Errorf("getting collection %s: %w", args[0], err)
			}

			s := coll.Stats()
			fmt.Printf("name:       %s\n", s.Name)
			fmt.Printf("vectors:    %d\n", s.VectorCount)
			fmt.Printf("dimension:  %d\n", s.Dimension)
			fmt.Printf("index:      %s\n", s.IndexType)
			fmt.Printf("quantized:  %t\n", s.HasQuantization)
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every collection in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			for _, name := range db.ListCollections() {
				fmt.Println(name)
			}
			return nil
		},
	}
}
