package quant

import (
	"context"
	"encoding/binary"
	"math"
	"math/rand"
	"sync"

	"github.com/vectorkit/veccore/internal/errs"
)

const defaultPQSeed = 1469598103934665603

// pqHeaderSize is the fixed prefix on every persisted PQ payload: a 4-byte
// magic tagging the format followed by the 4-byte id of the codebook the
// centroid indices that follow were assigned against. Payloads compressed
// against a different (e.g. retrained) codebook carry a different id, so a
// stale payload is caught at decode time instead of silently decoding
// against the wrong centroids.
const pqHeaderSize = 8

var pqMagic = [4]byte{'P', 'Q', 'V', '1'}

// ProductQuantizer implements product quantization: the vector is split
// into M equal subspaces, each compressed independently against its own
// trained codebook of up to 256 centroids, and distance is computed
// asymmetrically by accumulating per-subspace partials against the query
// or the other payload's centroids.
type ProductQuantizer struct {
	mu sync.RWMutex

	config    *Config
	trained   bool
	dimension int
	subDim    int

	centroids  [][][]float32 // [subspace][centroid][subDim]
	codebookID uint32
	rng        *rand.Rand

	// centroidNormSq[m][c] caches ||centroid(m,c)||^2, built lazily on the
	// first cosine DistanceToQuery call and reused forever after - it
	// doesn't depend on the query, only on the trained codebook.
	centroidNormSq [][]float64

	// cachedQuery/queryTable/queryNormSq implement the per-query M×K
	// lookup table from spec.md §4.4: DistanceToQuery is called once per
	// candidate visited for the same query during a single search, so the
	// table is built once on the first call and reused by every
	// subsequent call against an equal query vector instead of redoing
	// O(subDim) work per subspace on every single call.
	cachedQuery []float32
	queryTable  [][]float64 // [subspace][centroid] partial(m, c) for cachedQuery
	queryNormSq float64     // ||cachedQuery||^2, valid only for the cosine metric

	memoryUsage int64
}

func NewProductQuantizer() *ProductQuantizer { return &ProductQuantizer{} }

func (pq *ProductQuantizer) Configure(config *Config) error {
	if config == nil {
		return errs.New(errs.InvalidFormat, "config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Type != ProductQuantization {
		return errs.New(errs.InvalidFormat, "expected product config, got %s", config.Type)
	}
	pq.mu.Lock()
	defer pq.mu.Unlock()
	pq.config = config
	seed := config.Seed
	if seed == 0 {
		seed = defaultPQSeed
	}
	pq.rng = rand.New(rand.NewSource(seed))
	return nil
}

func (pq *ProductQuantizer) Train(ctx context.Context, vectors [][]float32) error {
	if pq.config == nil {
		return errs.New(errs.InvalidFormat, "quantizer not configured")
	}
	if len(vectors) == 0 {
		return errs.New(errs.InvalidFormat, "no training vectors provided")
	}

	pq.mu.Lock()
	defer pq.mu.Unlock()

	dim := len(vectors[0])
	if dim%pq.config.Subspaces != 0 {
		return errs.New(errs.InvalidFormat, "dimension %d not divisible by subspaces %d", dim, pq.config.Subspaces)
	}
	if len(vectors) < pq.config.Centroids {
		return errs.NewInsufficientTraining(len(vectors), pq.config.Centroids)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return errs.NewDimensionMismatch(dim, len(v)).WithContext("index", i)
		}
	}

	pq.dimension = dim
	pq.subDim = dim / pq.config.Subspaces

	capN := pq.config.TrainingVectorsCap
	if capN <= 0 {
		capN = len(vectors)
	}
	sample := vectors
	if capN < len(vectors) {
		perm := pq.rng.Perm(len(vectors))[:capN]
		sample = make([][]float32, capN)
		for i, idx := range perm {
			sample[i] = vectors[idx]
		}
	}

	pq.centroids = make([][][]float32, pq.config.Subspaces)
	for m := 0; m < pq.config.Subspaces; m++ {
		select {
		case <-ctx.Done():
			return errs.NewCancelled()
		default:
		}
		sub := make([][]float32, len(sample))
		for i, v := range sample {
			sub[i] = v[m*pq.subDim : (m+1)*pq.subDim]
		}
		centroids, err := pq.trainCodebook(ctx, sub)
		if err != nil {
			return err
		}
		pq.centroids[m] = centroids
	}

	pq.codebookID = pq.rng.Uint32()
	pq.trained = true
	pq.updateMemoryUsage()
	return nil
}

// trainCodebook runs Lloyd's algorithm over a single subspace's projected
// training vectors, seeding with either plain random picks or k-means++,
// and reseeding any cluster that ends up empty from the point currently
// farthest from its assigned centroid.
func (pq *ProductQuantizer) trainCodebook(ctx context.Context, vectors [][]float32) ([][]float32, error) {
	k := pq.config.Centroids
	if k > len(vectors) {
		k = len(vectors)
	}
	subDim := len(vectors[0])

	var centroids [][]float32
	switch pq.config.InitMethod {
	case KMeansPlusPlus:
		centroids = pq.initKMeansPlusPlus(vectors, k)
	default:
		centroids = pq.initRandom(vectors, k)
	}

	maxIter := pq.config.MaxIterations
	if maxIter <= 0 {
		maxIter = 100
	}
	tolerance := pq.config.ConvergenceThreshold
	if tolerance <= 0 {
		tolerance = 1e-6
	}

	assignments := make([]int, len(vectors))
	prevCost := math.Inf(1)

	for iter := 0; iter < maxIter; iter++ {
		select {
		case <-ctx.Done():
			return nil, errs.NewCancelled()
		default:
		}

		cost := 0.0
		counts := make([]int, k)
		sums := make([][]float64, k)
		for i := range sums {
			sums[i] = make([]float64, subDim)
		}

		for i, v := range vectors {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				d := squaredEuclidean(v, centroid)
				if d < bestDist {
					bestDist, best = d, c
				}
			}
			assignments[i] = best
			cost += bestDist
			counts[best]++
			for d, x := range v {
				sums[best][d] += float64(x)
			}
		}

		newCentroids := make([][]float32, k)
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				newCentroids[c] = farthestAssignedPoint(vectors, assignments, centroids, c)
				continue
			}
			nc := make([]float32, subDim)
			for d := 0; d < subDim; d++ {
				nc[d] = float32(sums[c][d] / float64(counts[c]))
			}
			newCentroids[c] = nc
		}
		centroids = newCentroids

		if math.Abs(prevCost-cost) < tolerance {
			break
		}
		prevCost = cost
	}

	return centroids, nil
}

func (pq *ProductQuantizer) initRandom(vectors [][]float32, k int) [][]float32 {
	perm := pq.rng.Perm(len(vectors))[:k]
	centroids := make([][]float32, k)
	for i, idx := range perm {
		c := make([]float32, len(vectors[idx]))
		copy(c, vectors[idx])
		centroids[i] = c
	}
	return centroids
}

// initKMeansPlusPlus seeds centroids with probability proportional to the
// squared distance from each point to its nearest already-chosen centroid.
func (pq *ProductQuantizer) initKMeansPlusPlus(vectors [][]float32, k int) [][]float32 {
	n := len(vectors)
	centroids := make([][]float32, 0, k)
	first := vectors[pq.rng.Intn(n)]
	c0 := make([]float32, len(first))
	copy(c0, first)
	centroids = append(centroids, c0)

	dist := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, v := range vectors {
			best := math.Inf(1)
			for _, c := range centroids {
				if d := squaredEuclidean(v, c); d < best {
					best = d
				}
			}
			dist[i] = best
			total += best
		}
		if total == 0 {
			idx := pq.rng.Intn(n)
			c := make([]float32, len(vectors[idx]))
			copy(c, vectors[idx])
			centroids = append(centroids, c)
			continue
		}
		target := pq.rng.Float64() * total
		var cum float64
		chosen := n - 1
		for i, d := range dist {
			cum += d
			if cum >= target {
				chosen = i
				break
			}
		}
		c := make([]float32, len(vectors[chosen]))
		copy(c, vectors[chosen])
		centroids = append(centroids, c)
	}
	return centroids
}

func farthestAssignedPoint(vectors [][]float32, assignments []int, centroids [][]float32, cluster int) []float32 {
	farthestIdx, farthestDist := -1, -1.0
	for i, v := range vectors {
		d := squaredEuclidean(v, centroids[assignments[i]])
		if d > farthestDist {
			farthestDist, farthestIdx = d, i
		}
	}
	if farthestIdx < 0 {
		farthestIdx = 0
	}
	out := make([]float32, len(vectors[farthestIdx]))
	copy(out, vectors[farthestIdx])
	return out
}

func squaredEuclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func (pq *ProductQuantizer) Compress(vector []float32) ([]byte, error) {
	pq.mu.RLock()
	defer pq.mu.RUnlock()
	if !pq.trained {
		return nil, errs.New(errs.InvalidFormat, "quantizer not trained")
	}
	if len(vector) != pq.dimension {
		return nil, errs.NewDimensionMismatch(pq.dimension, len(vector))
	}

	// Header (magic + codebook id) followed by one byte per subspace index:
	// Config.Validate caps Centroids at 256, so every centroid index fits in
	// a single byte per the persisted layout.
	out := make([]byte, pqHeaderSize+pq.config.Subspaces)
	pq.writeHeader(out[:pqHeaderSize])
	codes := out[pqHeaderSize:]
	for m := 0; m < pq.config.Subspaces; m++ {
		sub := vector[m*pq.subDim : (m+1)*pq.subDim]
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range pq.centroids[m] {
			d := squaredEuclidean(sub, centroid)
			if d < bestDist {
				bestDist, best = d, c
			}
		}
		codes[m] = byte(best)
	}
	return out, nil
}

func (pq *ProductQuantizer) writeHeader(buf []byte) {
	copy(buf[0:4], pqMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], pq.codebookID)
}

// readCodes validates the header against this quantizer's codebook and
// returns the M-byte code slice that follows it.
func (pq *ProductQuantizer) readCodes(data []byte) ([]byte, error) {
	if len(data) != pqHeaderSize+pq.config.Subspaces {
		return nil, errs.NewCorruptPayload("product-quantized payload has unexpected length")
	}
	if [4]byte(data[0:4]) != pqMagic {
		return nil, errs.NewCorruptPayload("product-quantized payload has unrecognized magic")
	}
	if binary.LittleEndian.Uint32(data[4:8]) != pq.codebookID {
		return nil, errs.NewCorruptPayload("product-quantized payload was encoded against a different codebook")
	}
	return data[pqHeaderSize:], nil
}

func (pq *ProductQuantizer) Decompress(data []byte) ([]float32, error) {
	pq.mu.RLock()
	defer pq.mu.RUnlock()
	if !pq.trained {
		return nil, errs.New(errs.InvalidFormat, "quantizer not trained")
	}
	codes, err := pq.readCodes(data)
	if err != nil {
		return nil, err
	}
	out := make([]float32, pq.dimension)
	for m := 0; m < pq.config.Subspaces; m++ {
		code := codes[m]
		if int(code) >= len(pq.centroids[m]) {
			return nil, errs.NewCorruptPayload("product-quantized code out of range")
		}
		copy(out[m*pq.subDim:(m+1)*pq.subDim], pq.centroids[m][code])
	}
	return out, nil
}

// Distance decodes both payloads' centroid assignments and accumulates
// per-subspace partials, combined according to the configured metric -
// the same decomposition DistanceToQuery uses against a raw query.
func (pq *ProductQuantizer) Distance(compressed1, compressed2 []byte) (float32, error) {
	pq.mu.RLock()
	defer pq.mu.RUnlock()
	if !pq.trained {
		return 0, errs.New(errs.InvalidFormat, "quantizer not trained")
	}
	codes1, err := pq.readCodes(compressed1)
	if err != nil {
		return 0, err
	}
	codes2, err := pq.readCodes(compressed2)
	if err != nil {
		return 0, err
	}

	var sumSq, sumAbs, dot, normA, normB float64
	for m := 0; m < pq.config.Subspaces; m++ {
		c1, c2 := codes1[m], codes2[m]
		v1, v2 := pq.centroids[m][c1], pq.centroids[m][c2]
		for d := 0; d < pq.subDim; d++ {
			a, b := float64(v1[d]), float64(v2[d])
			diff := a - b
			sumSq += diff * diff
			sumAbs += math.Abs(diff)
			dot += a * b
			normA += a * a
			normB += b * b
		}
	}
	return pq.combine(sumSq, sumAbs, dot, normA, normB), nil
}

// DistanceToQuery computes the asymmetric distance between the raw query
// and a compressed payload using the M×K lookup table from spec.md §4.4:
// the table maps each (subspace, centroid) pair to that centroid's
// subspace-projected distance contribution against the current query, is
// built once per distinct query, and every candidate after that costs only
// M table lookups rather than the full subDim comparison per subspace.
func (pq *ProductQuantizer) DistanceToQuery(compressed []byte, query []float32) (float32, error) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if !pq.trained {
		return 0, errs.New(errs.InvalidFormat, "quantizer not trained")
	}
	if len(query) != pq.dimension {
		return 0, errs.NewDimensionMismatch(pq.dimension, len(query))
	}
	codes, err := pq.readCodes(compressed)
	if err != nil {
		return 0, err
	}

	if pq.queryTable == nil || !vectorsEqual(pq.cachedQuery, query) {
		pq.buildQueryTable(query)
	}

	var total float64
	for m := 0; m < pq.config.Subspaces; m++ {
		total += pq.queryTable[m][codes[m]]
	}

	switch pq.metricKind() {
	case pqMetricManhattan:
		return float32(total), nil
	case pqMetricDot:
		return float32(-total), nil
	case pqMetricCosine:
		var normC float64
		for m := 0; m < pq.config.Subspaces; m++ {
			normC += pq.centroidNormSq[m][codes[m]]
		}
		if pq.queryNormSq == 0 || normC == 0 {
			return 1, nil
		}
		cosine := total / (math.Sqrt(pq.queryNormSq) * math.Sqrt(normC))
		if cosine > 1 {
			cosine = 1
		} else if cosine < -1 {
			cosine = -1
		}
		return float32(1 - cosine), nil
	default: // euclidean
		return float32(math.Sqrt(total)), nil
	}
}

// pqMetricKind identifies which subspace projection buildQueryTable fills
// the lookup table with, per spec.md §4.4's distance_sub definition.
type pqMetricKind int

const (
	pqMetricEuclidean pqMetricKind = iota
	pqMetricManhattan
	pqMetricCosine
	pqMetricDot
)

func (pq *ProductQuantizer) metricKind() pqMetricKind {
	switch pq.metricName() {
	case "manhattan":
		return pqMetricManhattan
	case "cosine":
		return pqMetricCosine
	case "dot":
		return pqMetricDot
	default:
		return pqMetricEuclidean
	}
}

// buildQueryTable fills pq.queryTable with partial(m, c) = distance_sub(q_m,
// centroid(m, c)) for every subspace m and centroid c, and caches query as
// pq.cachedQuery so later calls against the same query reuse it. Must be
// called with pq.mu held for writing.
func (pq *ProductQuantizer) buildQueryTable(query []float32) {
	kind := pq.metricKind()
	table := make([][]float64, pq.config.Subspaces)

	for m := 0; m < pq.config.Subspaces; m++ {
		sub := query[m*pq.subDim : (m+1)*pq.subDim]
		row := make([]float64, len(pq.centroids[m]))
		for c, centroid := range pq.centroids[m] {
			switch kind {
			case pqMetricManhattan:
				var sumAbs float64
				for d := 0; d < pq.subDim; d++ {
					sumAbs += math.Abs(float64(sub[d]) - float64(centroid[d]))
				}
				row[c] = sumAbs
			case pqMetricCosine, pqMetricDot:
				var dot float64
				for d := 0; d < pq.subDim; d++ {
					dot += float64(sub[d]) * float64(centroid[d])
				}
				row[c] = dot
			default: // euclidean
				row[c] = squaredEuclidean(sub, centroid)
			}
		}
		table[m] = row
	}

	pq.queryTable = table
	pq.cachedQuery = append(pq.cachedQuery[:0], query...)

	if kind == pqMetricCosine {
		var normQ float64
		for _, x := range query {
			normQ += float64(x) * float64(x)
		}
		pq.queryNormSq = normQ
		pq.ensureCentroidNormsLocked()
	}
}

// ensureCentroidNormsLocked lazily computes and caches each centroid's
// squared norm, needed only for the cosine metric's normB term. Centroid
// norms never change once training completes, so this runs at most once
// per quantizer regardless of how many distinct queries follow. Must be
// called with pq.mu held for writing.
func (pq *ProductQuantizer) ensureCentroidNormsLocked() {
	if pq.centroidNormSq != nil {
		return
	}
	norms := make([][]float64, len(pq.centroids))
	for m, sub := range pq.centroids {
		row := make([]float64, len(sub))
		for c, centroid := range sub {
			var n float64
			for _, x := range centroid {
				n += float64(x) * float64(x)
			}
			row[c] = n
		}
		norms[m] = row
	}
	pq.centroidNormSq = norms
}

func (pq *ProductQuantizer) combine(sumSq, sumAbs, dot, normA, normB float64) float32 {
	switch pq.metricName() {
	case "manhattan":
		return float32(sumAbs)
	case "cosine":
		if normA == 0 || normB == 0 {
			return 1
		}
		cosine := dot / (math.Sqrt(normA) * math.Sqrt(normB))
		if cosine > 1 {
			cosine = 1
		} else if cosine < -1 {
			cosine = -1
		}
		return float32(1 - cosine)
	case "dot":
		return float32(-dot)
	default: // euclidean
		return float32(math.Sqrt(sumSq))
	}
}

func (pq *ProductQuantizer) metricName() string {
	if pq.config.Metric != "" {
		return string(pq.config.Metric)
	}
	return "euclidean"
}

func vectorsEqual(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (pq *ProductQuantizer) updateMemoryUsage() {
	var usage int64
	for _, sub := range pq.centroids {
		for _, c := range sub {
			usage += int64(len(c) * 4)
		}
	}
	pq.memoryUsage = usage
}

func (pq *ProductQuantizer) CompressionRatio() float32 {
	if !pq.trained {
		return 0
	}
	originalBits := pq.dimension * 32
	compressedBits := pq.config.Subspaces * 8
	return float32(originalBits) / float32(compressedBits)
}

func (pq *ProductQuantizer) MemoryUsage() int64 {
	pq.mu.RLock()
	defer pq.mu.RUnlock()
	return pq.memoryUsage
}

func (pq *ProductQuantizer) IsTrained() bool {
	pq.mu.RLock()
	defer pq.mu.RUnlock()
	return pq.trained
}

func (pq *ProductQuantizer) Config() *Config {
	pq.mu.RLock()
	defer pq.mu.RUnlock()
	if pq.config == nil {
		return nil
	}
	cp := *pq.config
	return &cp
}

// ProductQuantizerFactory builds ProductQuantizer instances.
type ProductQuantizerFactory struct{}

func NewProductQuantizerFactory() *ProductQuantizerFactory { return &ProductQuantizerFactory{} }

func (f *ProductQuantizerFactory) Create(config *Config) (Quantizer, error) {
	if config.Type != ProductQuantization {
		return nil, errs.New(errs.InvalidFormat, "unsupported type %s for product factory", config.Type)
	}
	pq := NewProductQuantizer()
	if err := pq.Configure(config); err != nil {
		return nil, err
	}
	return pq, nil
}

func (f *ProductQuantizerFactory) Supports(t Type) bool { return t == ProductQuantization }
func (f *ProductQuantizerFactory) Name() string         { return "ProductQuantizer" }
