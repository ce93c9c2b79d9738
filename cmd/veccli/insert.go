package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func insertCmd() *cobra.Command {
	var (
		id          string
		vectorStr   string
		metadataStr string
	)
	cmd := &cobra.Command{
		Use:   "insert <collection>",
		Short: "Insert a vector record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionName := args[0]
			vector, err := parseVector(vectorStr)
			if err != nil {
				return err
			}
			metadata, err := parseMetadata(metadataStr)
			if err != nil {
				return err
			}
			if id == "" {
				id = uuid.New().String()
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

			if err := coll.Insert(context.Background(), id, vector, metadata); err != nil {
				return fmt.Errorf("inserting %s: %w", id, err)
			}
			fmt.Printf("inserted %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "record id (generated if omitted)")
	cmd.Flags().StringVar(&vectorStr, "vector", "", "comma-separated vector components (required)")
	cmd.Flags().StringVar(&metadataStr, "metadata", "", "JSON object of metadata fields")
	cmd.MarkFlagRequired("vector")
	return cmd
}

func parseVector(s string) ([]float32, error) {
	if s == "" {
		return nil, fmt.Errorf("vector is required")
	}
	parts := strings.Split(s, ",")
	vector := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		vector[i] = float32(v)
	}
	return vector, nil
}

func parseMetadata(s string) (map[string]interface{}, error) {
	if s == "" {
		return nil, nil
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal([]byte(s), &metadata); err != nil {
		return nil, fmt.Errorf("invalid metadata JSON: %w", err)
	}
	return metadata, nil
}
