// Package vector implements the similarity engine and the text encoding of
// stored embeddings.
package vector

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dshills/snipvault/pkg/types"
)

// Invalid input errors. All of them match types.ErrMalformedData.
var (
	ErrEmptyVector       = fmt.Errorf("%w: empty vector", types.ErrMalformedData)
	ErrZeroVector        = fmt.Errorf("%w: zero vector", types.ErrMalformedData)
	ErrDimensionMismatch = fmt.Errorf("%w: dimension mismatch", types.ErrMalformedData)
	ErrNonFinite         = fmt.Errorf("%w: non-finite component", types.ErrMalformedData)
)

// Cosine computes the cosine similarity between a and b.
// Mismatched lengths, empty vectors and all-zero vectors are rejected
// instead of producing NaN.
func Cosine(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyVector
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, ErrZeroVector
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0, ErrNonFinite
	}
	// Rounding can push identical vectors a hair past 1.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}

// Format encodes v as a JSON array of numbers.
func Format(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 12)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// Parse decodes a vector produced by Format (or any JSON number array).
func Parse(s string) ([]float32, error) {
	var raw []float64
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedData, err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyVector
	}
	v := make([]float32, len(raw))
	for i, f := range raw {
		if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxFloat32 {
			return nil, ErrNonFinite
		}
		v[i] = float32(f)
	}
	return v, nil
}

// Validate checks that v can take part in a similarity computation.
func Validate(v []float32) error {
	if len(v) == 0 {
		return ErrEmptyVector
	}
	zero := true
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return ErrNonFinite
		}
		if f != 0 {
			zero = false
		}
	}
	if zero {
		return ErrZeroVector
	}
	return nil
}
