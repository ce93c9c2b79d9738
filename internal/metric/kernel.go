// Package metric implements the distance/scoring kernel: named distance
// formulas, batch evaluation, a thread-safe registry for custom metrics,
// and the score mapping used to turn a distance into a "higher is better"
// similarity score.
package metric

import (
	"math"
	"sync"

	"github.com/vectorkit/veccore/internal/errs"
)

// Name identifies a registered metric. Built-ins are pre-registered on the
// global Kernel; callers may add their own under any name not already taken.
type Name string

const (
	Cosine    Name = "cosine"
	Euclidean Name = "euclidean"
	Manhattan Name = "manhattan"
	Dot       Name = "dot"
	Hamming   Name = "hamming"
	Jaccard   Name = "jaccard"
)

// Func computes a distance between two equal-length vectors. Implementations
// are not required to validate length; the Kernel checks it once up front.
type Func func(a, b []float32) float64

// ScoreFunc maps a distance produced by the matching Func into a
// monotone "higher is better" score.
type ScoreFunc func(d float64) float64

type entry struct {
	dist  Func
	score ScoreFunc
	builtin bool
}

// Kernel is the metric registry. The zero value is not usable; use New or
// the package-level Default kernel, which carries every built-in metric.
type Kernel struct {
	mu      sync.RWMutex
	entries map[Name]entry
}

// New returns a Kernel with all built-in metrics registered.
func New() *Kernel {
	k := &Kernel{entries: make(map[Name]entry)}
	k.registerBuiltin(Cosine, cosineDistance, func(d float64) float64 { return 1 - d/2 })
	k.registerBuiltin(Euclidean, euclideanDistance, func(d float64) float64 { return math.Exp(-d) })
	k.registerBuiltin(Manhattan, manhattanDistance, func(d float64) float64 { return math.Exp(-d) })
	k.registerBuiltin(Dot, dotDistance, func(d float64) float64 { return -d })
	k.registerBuiltin(Hamming, hammingDistance, func(d float64) float64 { return 1 - d })
	k.registerBuiltin(Jaccard, jaccardDistance, func(d float64) float64 { return 1 - d })
	return k
}

func (k *Kernel) registerBuiltin(name Name, f Func, s ScoreFunc) {
	k.entries[name] = entry{dist: f, score: s, builtin: true}
}

// Default is the process-wide kernel used when callers don't need an
// isolated registry (mirrors the process-wide metric registry called for
// in the design notes).
var Default = New()

// Register adds a custom metric. Re-registering a built-in name, or
// registering the same custom name twice, fails - custom names are
// write-once, matching the global-registry contract.
func (k *Kernel) Register(name Name, dist Func, score ScoreFunc) error {
	if dist == nil {
		return errs.New(errs.BadFilter, "metric function cannot be nil")
	}
	if score == nil {
		score = func(d float64) float64 { return math.Exp(-d) }
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if existing, ok := k.entries[name]; ok {
		if existing.builtin {
			return errs.New(errs.UnknownMetric, "cannot override built-in metric %q", name)
		}
		return errs.New(errs.UnknownMetric, "metric %q already registered", name)
	}
	k.entries[name] = entry{dist: dist, score: score}
	return nil
}

func (k *Kernel) lookup(name Name) (entry, error) {
	k.mu.RLock()
	e, ok := k.entries[name]
	k.mu.RUnlock()
	if !ok {
		return entry{}, errs.NewUnknownMetric(string(name))
	}
	return e, nil
}

// Distance computes distance(a, b) under the named metric.
func (k *Kernel) Distance(name Name, a, b []float32) (float64, error) {
	e, err := k.lookup(name)
	if err != nil {
		return 0, err
	}
	if len(a) != len(b) {
		return 0, errs.NewDimensionMismatch(len(a), len(b))
	}
	return e.dist(a, b), nil
}

// BatchDistance computes distance(query, c) for every candidate c.
func (k *Kernel) BatchDistance(name Name, query []float32, candidates [][]float32) ([]float64, error) {
	e, err := k.lookup(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(candidates))
	for i, c := range candidates {
		if len(c) != len(query) {
			return nil, errs.NewDimensionMismatch(len(query), len(c)).WithContext("index", i)
		}
		out[i] = e.dist(query, c)
	}
	return out, nil
}

// ScoreFromDistance maps a distance to a similarity score using the
// metric's registered mapping.
func (k *Kernel) ScoreFromDistance(name Name, d float64) (float64, error) {
	e, err := k.lookup(name)
	if err != nil {
		return 0, err
	}
	return e.score(d), nil
}

// Package-level convenience wrappers over the Default kernel.

func Distance(name Name, a, b []float32) (float64, error) { return Default.Distance(name, a, b) }
func BatchDistance(name Name, query []float32, candidates [][]float32) ([]float64, error) {
	return Default.BatchDistance(name, query, candidates)
}
func ScoreFromDistance(name Name, d float64) (float64, error) { return Default.ScoreFromDistance(name, d) }
func Register(name Name, dist Func, score ScoreFunc) error    { return Default.Register(name, dist, score) }
