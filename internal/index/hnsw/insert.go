package hnsw

import (
	"context"
	"fmt"

	"github.com/vectorkit/veccore/internal/util"
)

// insertNode implements the insert algorithm from spec.md §4.5: greedy
// descent from the entry point down to level+1, then a bounded best-first
// search plus k-nearest neighbor selection and reciprocal pruning at every
// level from min(level, entryPoint.level) down to 0.
func (h *Index) insertNode(ctx context.Context, node *Node, nodeID uint32) error {
	// The second node in an otherwise-empty graph has nothing to search
	// for: connect it directly to the entry point at level 0.
	if h.size == 1 {
		entryID := h.findNodeID(h.entryPoint)
		if entryID != ^uint32(0) && node.Level >= 0 {
			node.Links[0] = append(node.Links[0], entryID)
			h.entryPoint.Links[0] = append(h.entryPoint.Links[0], nodeID)
		}
		return nil
	}

	if h.neighborSelector == nil {
		h.neighborSelector = NewNeighborSelector(h.config.M, 2.0)
	}

	searchVector, err := h.getNodeVector(node)
	if err != nil {
		return fmt.Errorf("failed to get node vector for search: %w", err)
	}

	// Phase 1: greedy-descend from the entry point's own level down to
	// level+1, replacing the current closest by any strictly-closer
	// neighbor at each step (ef=1 beam).
	entryPoints := []*util.Candidate{{ID: h.findNodeID(h.entryPoint), Distance: 0}}
	for level := h.maxLevel; level > node.Level; level-- {
		entryPoints = h.searchLevel(searchVector, h.nodes[entryPoints[0].ID], 1, level, nil)
	}

	// Phase 2: from min(level, entryPoint.level) down to 0, run the
	// efConstruction beam, cut to the k-nearest budget, wire bidirectional
	// edges, and prune any neighbor whose degree now exceeds its own
	// budget back down via the same k-nearest rule.
	for level := min(node.Level, h.maxLevel); level >= 0; level-- {
		candidates := h.searchLevel(searchVector, h.nodes[entryPoints[0].ID], h.config.EfConstruction, level, nil)

		selected := h.neighborSelector.SelectKNearest(candidates, level)

		h.connectBidirectional(nodeID, selected, level)
		h.pruneNeighbors(selected, level)

		entryPoints = selected
	}

	return nil
}

// connectBidirectional adds an edge between nodeID and each of neighbors
// at level, on both endpoints. A neighbor that doesn't reach this level
// (it was assigned a lower level at insert time) is left untouched.
func (h *Index) connectBidirectional(nodeID uint32, neighbors []*util.Candidate, level int) {
	node := h.nodes[nodeID]

	if cap(node.Links[level]) < len(neighbors) {
		grown := make([]uint32, len(node.Links[level]), len(neighbors)+h.config.M)
		copy(grown, node.Links[level])
		node.Links[level] = grown
	}

	for _, neighbor := range neighbors {
		node.Links[level] = append(node.Links[level], neighbor.ID)

		neighborNode := h.nodes[neighbor.ID]
		if level >= len(neighborNode.Links) {
			continue
		}
		if cap(neighborNode.Links[level]) < len(neighborNode.Links[level])+1 {
			grown := make([]uint32, len(neighborNode.Links[level]), len(neighborNode.Links[level])+h.config.M)
			copy(grown, neighborNode.Links[level])
			neighborNode.Links[level] = grown
		}
		neighborNode.Links[level] = append(neighborNode.Links[level], nodeID)
	}
}

// pruneNeighbors re-applies each newly connected neighbor's own budget at
// level, since gaining an edge to the new node may have pushed it over.
func (h *Index) pruneNeighbors(neighbors []*util.Candidate, level int) {
	if h.neighborSelector == nil {
		h.neighborSelector = NewNeighborSelector(h.config.M, 2.0)
	}

	for _, neighbor := range neighbors {
		if err := h.neighborSelector.PruneToBudget(neighbor.ID, level, h); err != nil {
			// A neighbor whose vector can't be fetched (e.g. mid-delete)
			// just keeps its current links; not fatal to this insert.
			continue
		}
	}
}
