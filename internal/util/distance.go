package util

import "github.com/vectorkit/veccore/internal/metric"

// DistanceMetric names a metric as understood by the index packages; it is
// the internal/metric.Name type under another name so that hnsw/flat avoid
// importing internal/metric directly for every config struct field.
type DistanceMetric = metric.Name

// DistanceFunc computes a float32 distance between two vectors, the
// precision the graph and flat indexes store distances at internally.
type DistanceFunc func(a, b []float32) float32

// GetDistanceFunc resolves a DistanceMetric to a DistanceFunc backed by the
// process-wide metric kernel (internal/metric.Default), so every index
// implementation scores with the same formulas the brute-force search
// engine and the product-quantization lookup tables use.
func GetDistanceFunc(m DistanceMetric) (DistanceFunc, error) {
	if _, err := metric.Distance(m, []float32{0}, []float32{0}); err != nil {
		return nil, err
	}
	return func(a, b []float32) float32 {
		d, err := metric.Distance(m, a, b)
		if err != nil {
			return float32(1e38)
		}
		return float32(d)
	}, nil
}
