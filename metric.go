package hnsw

import (
	"reflect"

	"github.com/chewxy/math32"
	"github.com/viterin/vek/vek32"
)

// DistanceFunc computes a distance between two equal-length vectors where a
// smaller value means the vectors are closer. It need not satisfy the
// triangle inequality, only determinism and finiteness on finite input.
type DistanceFunc func(a, b []float32) float32

// minDenom floors the normalization divisor in CosineDistance so that
// near-zero (but not exactly zero) vectors don't blow up to +Inf.
const minDenom = 1e-12

// CosineDistance returns 1 minus the cosine similarity of a and b. A zero
// vector on either side returns 1 (the distance of orthogonal vectors),
// since cosine similarity is undefined there. The similarity is clamped to [-1, 1]
// before subtracting, which keeps the result in [0, 2] even under
// floating-point rounding.
func CosineDistance(a, b []float32) float32 {
	normA := l2norm(a)
	normB := l2norm(b)
	if normA == 0 || normB == 0 {
		return 1
	}

	denom := normA * normB
	if denom < minDenom {
		denom = minDenom
	}

	cos := vek32.Dot(a, b) / denom
	cos = math32.Max(-1, math32.Min(1, cos))
	return 1 - cos
}

// DotDistance returns 1 minus the raw dot product of a and b. It is
// intended for pre-normalized vectors (e.g. unit-length embeddings), where
// it is equivalent to CosineDistance without the per-call normalization.
func DotDistance(a, b []float32) float32 {
	return 1 - vek32.Dot(a, b)
}

// EuclideanDistance returns the L2 distance between a and b.
func EuclideanDistance(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math32.Sqrt(sum)
}

// l2norm computes the Euclidean norm of v via vek's SIMD-accelerated dot
// product (‖v‖ = sqrt(v·v)) rather than a hand-rolled accumulation loop.
func l2norm(v []float32) float32 {
	return math32.Sqrt(vek32.Dot(v, v))
}

// distanceFuncs and distanceNames back the name<->function registry the
// snapshot codec uses to record which metric a graph was built with.
var (
	distanceFuncs = map[string]DistanceFunc{}
	distanceNames = map[uintptr]string{}
)

func init() {
	RegisterDistanceFunc("cosine", CosineDistance)
	RegisterDistanceFunc("dot", DotDistance)
	RegisterDistanceFunc("euclidean", EuclideanDistance)
}

// RegisterDistanceFunc associates a stable name with a distance function so
// it can survive a snapshot round-trip. Custom metrics passed to a Builder
// must be registered before Export is called.
func RegisterDistanceFunc(name string, fn DistanceFunc) {
	distanceFuncs[name] = fn
	distanceNames[funcIdentity(fn)] = name
}

func distanceFuncToName(fn DistanceFunc) (string, bool) {
	name, ok := distanceNames[funcIdentity(fn)]
	return name, ok
}

func funcIdentity(fn DistanceFunc) uintptr {
	return reflect.ValueOf(fn).Pointer()
}
