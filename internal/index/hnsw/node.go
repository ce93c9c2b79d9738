package hnsw

// Node represents a single node in the layered proximity graph. Vector
// carries the raw, uncompressed embedding; CompressedVector is populated
// instead once the index's quantizer has been trained, and Vector is then
// left nil to avoid keeping both representations in memory.
type Node struct {
	ID               string
	Vector           []float32
	CompressedVector []byte
	Level            int
	Links            [][]uint32
	Metadata         map[string]interface{}
	deleted          bool
}
