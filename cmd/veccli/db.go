package main

import (
	"fmt"

	"github.com/vectorkit/veccore/veccore"
)

func openDatabase() (*veccore.Database, error) {
	opts := []veccore.Option{veccore.WithStoragePath(dataDir)}
	switch backend {
	case "badger":
		opts = append(opts, veccore.WithStorageBackend(veccore.BackendBadger))
	case "", "lsm":
	default:
		return nil, fmt.Errorf("unknown backend %q (want lsm or badger)", backend)
	}
	return veccore.New(opts...)
}

func parseMetric(s string) (veccore.DistanceMetric, error) {
	switch s {
	case "", "cosine":
		return veccore.CosineDistance, nil
	case "l2", "euclidean":
		return veccore.L2Distance, nil
	case "dot", "ip", "inner-product":
		return veccore.InnerProduct, nil
	case "manhattan":
		return veccore.ManhattanDistance, nil
	case "hamming":
		return veccore.HammingDistance, nil
	case "jaccard":
		return veccore.JaccardDistance, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

func parseIndexType(s string) (veccore.IndexType, error) {
	switch s {
	case "", "hnsw":
		return veccore.HNSW, nil
	case "flat", "bruteforce":
		return veccore.Flat, nil
	default:
		return 0, fmt.Errorf("unknown index type %q (want hnsw or flat)", s)
	}
}
