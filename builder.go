package hnsw

import "math/rand"

// Default tuning constants, used when a Builder option is left unset.
const (
	DefaultM              = 16
	DefaultEfConstruction = 200
	DefaultEfSearch       = 128
)

// Builder assembles a validated Index via a fluent chain of With* calls,
// following the pattern of the graph's own constructor: clamp first,
// fail only on what cannot be clamped.
type Builder struct {
	dims    int
	m       int
	efc     int
	ef      int
	metric  DistanceFunc
	rng     *rand.Rand
	errDims error
}

// NewBuilder starts a Builder for dims-dimensional vectors, preloaded with
// the package's default tuning constants and the cosine metric.
func NewBuilder(dims int) *Builder {
	b := &Builder{
		dims:   dims,
		m:      DefaultM,
		efc:    DefaultEfConstruction,
		ef:     DefaultEfSearch,
		metric: CosineDistance,
	}
	if dims <= 0 {
		b.errDims = &DimensionMismatchError{Expected: 1, Found: dims}
	}
	return b
}

// WithM overrides the maximum neighbor count per layer (clamped to >= 2).
func (b *Builder) WithM(m int) *Builder {
	b.m = maxInt(m, 2)
	return b
}

// WithEfConstruction overrides the construction-time beam width (clamped
// to >= 1).
func (b *Builder) WithEfConstruction(efc int) *Builder {
	b.efc = maxInt(efc, 1)
	return b
}

// WithEfSearch overrides the default query-time beam width (clamped to >=
// 1).
func (b *Builder) WithEfSearch(ef int) *Builder {
	b.ef = maxInt(ef, 1)
	return b
}

// WithMetric overrides the distance function used to rank vectors. A nil
// fn is ignored.
func (b *Builder) WithMetric(fn DistanceFunc) *Builder {
	if fn != nil {
		b.metric = fn
	}
	return b
}

// WithRng overrides the random source used for level sampling, for
// callers that need deterministic or seeded construction (tests, replay).
// A nil rng is ignored.
func (b *Builder) WithRng(rng *rand.Rand) *Builder {
	if rng != nil {
		b.rng = rng
	}
	return b
}

// Build validates the accumulated options and returns an Index, or an
// error if dims was non-positive.
func (b *Builder) Build() (*Index, error) {
	if b.errDims != nil {
		return nil, b.errDims
	}

	g := NewGraph(b.m, b.efc, b.metric)
	g.dims = b.dims
	if b.rng != nil {
		g.Rng = b.rng
	}

	return &Index{
		Dims:   b.dims,
		M:      b.m,
		Ef:     b.ef,
		Efc:    b.efc,
		Metric: b.metric,
		graph:  g,
	}, nil
}
