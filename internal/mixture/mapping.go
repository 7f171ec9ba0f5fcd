package mixture

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Mapping is an invertible per-cluster feature transform. Density
// evaluation applies the forward direction before computing log
// probabilities; sampling applies the inverse to return draws in raw
// feature space. A mapping without a closed-form inverse must return
// ErrNoInverse rather than a wrong answer.
type Mapping interface {
	// Apply writes the transformed features of x into dst. dst and x have
	// the same length and may alias.
	Apply(dst, x []float64)

	// Inverse writes the raw features recovering y into dst, or returns
	// ErrNoInverse.
	Inverse(dst, y []float64) error
}

// Identity is the default cluster mapping.
type Identity struct{}

func (Identity) Apply(dst, x []float64) { copy(dst, x) }

func (Identity) Inverse(dst, y []float64) error {
	copy(dst, y)
	return nil
}

// Affine maps x to Scale*x + Shift elementwise. Every scale entry must be
// non-zero for the inverse to exist.
type Affine struct {
	Scale []float64
	Shift []float64
}

func (a Affine) Apply(dst, x []float64) {
	for i := range x {
		dst[i] = a.Scale[i]*x[i] + a.Shift[i]
	}
}

func (a Affine) Inverse(dst, y []float64) error {
	for i := range y {
		if a.Scale[i] == 0 {
			return ErrNoInverse
		}
		dst[i] = (y[i] - a.Shift[i]) / a.Scale[i]
	}
	return nil
}

// Exp maps features through the exponential, modeling log-linear
// petrophysical relationships. Inverse requires positive values.
type Exp struct{}

func (Exp) Apply(dst, x []float64) {
	for i := range x {
		dst[i] = math.Exp(x[i])
	}
}

func (Exp) Inverse(dst, y []float64) error {
	for i := range y {
		if y[i] <= 0 {
			return ErrNoInverse
		}
		dst[i] = math.Log(y[i])
	}
	return nil
}

// IdentityMappings returns k identity mappings, the default cluster
// transforms when the relationship-aware variant is requested without
// explicit maps.
func IdentityMappings(k int) []Mapping {
	maps := make([]Mapping, k)
	for i := range maps {
		maps[i] = Identity{}
	}
	return maps
}

// applyMapping transforms every sample row through m. The identity avoids
// the copy entirely.
func applyMapping(m Mapping, X *mat.Dense) *mat.Dense {
	if _, ok := m.(Identity); ok || m == nil {
		return X
	}
	n, d := X.Dims()
	out := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		m.Apply(out.RawRowView(i), X.RawRowView(i))
	}
	return out
}
