package hnsw

import (
	"github.com/vectorkit/veccore/internal/util"
)

// accept reports whether a node belongs in the result set. It is consulted
// only for admission into the bounded candidate/result set; traversal
// always follows every link regardless of the predicate, so a filtered
// search can still reach matching nodes on the far side of non-matching
// ones instead of being blocked by them.
type accept func(node *Node) bool

// searchLevel runs a bounded best-first beam search at a single level,
// starting from entryPoint: the frontier w always explores every reachable
// node, while candidates - a capacity-bounded max-heap - holds the ef
// closest admissible nodes seen so far and evicts its own worst entry as
// better ones arrive. pred may be nil, in which case every visited node is
// admissible.
func (h *Index) searchLevel(query []float32, entryPoint *Node, ef int, level int, pred accept) []*util.Candidate {
	visited := make([]bool, len(h.nodes))
	candidates := util.NewMaxHeap(ef)
	w := util.NewMinHeap(ef)

	entryID := h.findNodeID(entryPoint)
	if entryID == ^uint32(0) || entryID >= uint32(len(visited)) {
		return []*util.Candidate{}
	}

	distance := h.computeDistanceOptimized(query, entryPoint)
	if distance < 0 {
		return []*util.Candidate{} // Error in distance computation
	}

	candidate := &util.Candidate{ID: entryID, Distance: distance}

	if pred == nil || pred(entryPoint) {
		candidates.PushCandidate(candidate)
	}
	w.PushCandidate(candidate)
	visited[entryID] = true

	for w.Len() > 0 {
		current := w.PopCandidate()

		// Once the bounded set is full and the closest unexplored frontier
		// node is already farther than our current worst admitted
		// candidate, nothing left on the frontier can improve the result.
		if candidates.Len() >= ef && current.Distance > candidates.Top().Distance {
			break
		}

		currentNode := h.nodes[current.ID]
		if level >= len(currentNode.Links) {
			continue
		}

		for _, neighborID := range currentNode.Links[level] {
			if neighborID >= uint32(len(visited)) || visited[neighborID] {
				continue
			}
			visited[neighborID] = true

			neighborNode := h.nodes[neighborID]
			neighborDistance := h.computeDistanceOptimized(query, neighborNode)
			if neighborDistance < 0 {
				continue // distance computation failed for this node
			}

			neighborCandidate := &util.Candidate{ID: neighborID, Distance: neighborDistance}

			// Always push to the frontier so traversal can pass through a
			// filtered-out node to reach one beyond it.
			w.PushCandidate(neighborCandidate)

			// Only a node the predicate accepts may occupy a slot in the
			// bounded result set; the heap evicts its own worst entry.
			if pred == nil || pred(neighborNode) {
				candidates.PushCandidate(neighborCandidate)
			}
		}
	}

	return candidates.Sorted()
}

// computeDistanceOptimized computes the distance from query to node,
// transparently using the quantized codec when node carries a compressed
// vector and falling back to full decompression if the codec errors.
func (h *Index) computeDistanceOptimized(query []float32, node *Node) float32 {
	if node.CompressedVector != nil && h.quantizer != nil {
		distance, err := h.quantizer.DistanceToQuery(node.CompressedVector, query)
		if err != nil {
			vec, decompErr := h.quantizer.Decompress(node.CompressedVector)
			if decompErr != nil {
				return -1
			}
			return h.distance(query, vec)
		}
		return distance
	} else if node.Vector != nil {
		return h.distance(query, node.Vector)
	}
	return -1
}
