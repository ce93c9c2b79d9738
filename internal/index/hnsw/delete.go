package hnsw

import (
	"context"
	"fmt"
)

// deleteNode implements spec.md §4.5 Delete: remove the node from every
// neighbor's adjacency at every level, replace the entry point if the
// deleted node held it, then drop the node itself. The graph is
// deliberately left un-reoptimized - no new edges are added to compensate
// for the lost ones - so the next insert absorbs whatever topology gap
// this leaves, per the spec's own note that delete performs no
// re-optimization.
func (h *Index) deleteNode(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.size == 0 {
		return fmt.Errorf("cannot delete from empty index")
	}

	nodeID, node := h.findNodeByID(id)
	if nodeID == ^uint32(0) {
		return fmt.Errorf("node with ID '%s' not found", id)
	}

	if h.size == 1 {
		h.nodes = h.nodes[:0]
		h.entryPoint = nil
		h.maxLevel = 0
		h.size = 0
		delete(h.idToIndex, id)
		h.entryPointCandidates = h.entryPointCandidates[:0]
		return nil
	}

	h.unlinkFromNeighbors(nodeID, node)

	if err := h.handleEntryPointReplacement(nodeID, node); err != nil {
		return fmt.Errorf("failed to handle entry point replacement: %w", err)
	}

	h.removeNodeFromIndex(nodeID, id)

	h.size--
	return nil
}

// findNodeByID finds a node by its ID using O(1) map lookup, clearing any
// stale mapping entry it happens to find along the way.
func (h *Index) findNodeByID(id string) (uint32, *Node) {
	if idx, exists := h.idToIndex[id]; exists {
		if idx < uint32(len(h.nodes)) && h.nodes[idx] != nil && h.nodes[idx].ID == id {
			return idx, h.nodes[idx]
		}
		delete(h.idToIndex, id)
	}
	return ^uint32(0), nil
}

// unlinkFromNeighbors removes target's adjacency entry from every node that
// currently links to it, at every level target participates in. No
// replacement edges are added; see deleteNode's doc comment.
func (h *Index) unlinkFromNeighbors(targetID uint32, target *Node) {
	for level := 0; level <= target.Level; level++ {
		for _, neighborID := range target.Links[level] {
			if neighborID < uint32(len(h.nodes)) && h.nodes[neighborID] != nil {
				h.removeConnection(neighborID, targetID, level)
			}
		}
	}
}

// removeConnection removes a specific connection between two nodes at a
// given level, swapping the last element into its place to avoid a shift.
func (h *Index) removeConnection(fromID, toID uint32, level int) {
	fromNode := h.nodes[fromID]
	if fromNode == nil || level >= len(fromNode.Links) {
		return
	}

	links := fromNode.Links[level]
	for i, linkID := range links {
		if linkID == toID {
			links[i] = links[len(links)-1]
			fromNode.Links[level] = links[:len(links)-1]
			break
		}
	}
}

// handleEntryPointReplacement picks a new entryPoint with the highest
// remaining level when the deleted node held that role, per spec.md §4.5
// ("ties broken arbitrarily"); otherwise it just drops the deleted node
// from the entry-point candidate pool.
func (h *Index) handleEntryPointReplacement(deletedID uint32, deletedNode *Node) error {
	if h.entryPoint != deletedNode {
		h.removeFromEntryPointCandidates(deletedID)
		return nil
	}

	if newEntryPoint := h.findBestEntryPointCandidate(deletedID); newEntryPoint != nil {
		h.entryPoint = newEntryPoint
		h.maxLevel = newEntryPoint.Level
		return nil
	}

	var fallback *Node
	newMaxLevel := -1
	for i, node := range h.nodes {
		if node == nil || uint32(i) == deletedID {
			continue
		}
		if node.Level > newMaxLevel {
			newMaxLevel = node.Level
			fallback = node
		}
	}
	if fallback == nil {
		return fmt.Errorf("could not find replacement entry point")
	}

	h.entryPoint = fallback
	h.maxLevel = newMaxLevel
	h.rebuildEntryPointCandidates()
	return nil
}

// findBestEntryPointCandidate returns the highest-level node in the
// candidate pool other than excludeID, or nil if none remain.
func (h *Index) findBestEntryPointCandidate(excludeID uint32) *Node {
	var best *Node
	bestLevel := -1
	for _, candidateID := range h.entryPointCandidates {
		if candidateID == excludeID || candidateID >= uint32(len(h.nodes)) {
			continue
		}
		if node := h.nodes[candidateID]; node != nil && node.Level > bestLevel {
			bestLevel = node.Level
			best = node
		}
	}
	return best
}

// removeFromEntryPointCandidates drops nodeID from the candidate pool,
// swapping the last entry into its place to avoid a shift.
func (h *Index) removeFromEntryPointCandidates(nodeID uint32) {
	for i, candidateID := range h.entryPointCandidates {
		if candidateID == nodeID {
			h.entryPointCandidates[i] = h.entryPointCandidates[len(h.entryPointCandidates)-1]
			h.entryPointCandidates = h.entryPointCandidates[:len(h.entryPointCandidates)-1]
			break
		}
	}
}

// rebuildEntryPointCandidates rescans every surviving node for the
// entry-point candidate pool (level >= 2), used when the fallback scan in
// handleEntryPointReplacement had to run.
func (h *Index) rebuildEntryPointCandidates() {
	h.entryPointCandidates = h.entryPointCandidates[:0]
	const levelThreshold = 2
	for i, node := range h.nodes {
		if node != nil && node.Level >= levelThreshold {
			h.entryPointCandidates = append(h.entryPointCandidates, uint32(i))
		}
	}
}

// removeNodeFromIndex drops id from the ID map and entry-point candidates,
// then tombstones its slot in the node table (nil rather than a slice
// splice, so every other node's uint32 indices stay valid), compacting any
// now-trailing nils off the end.
func (h *Index) removeNodeFromIndex(nodeID uint32, id string) {
	delete(h.idToIndex, id)
	h.removeFromEntryPointCandidates(nodeID)

	if nodeID < uint32(len(h.nodes)) {
		h.nodes[nodeID] = nil
	}

	for len(h.nodes) > 0 && h.nodes[len(h.nodes)-1] == nil {
		h.nodes = h.nodes[:len(h.nodes)-1]
	}
}
