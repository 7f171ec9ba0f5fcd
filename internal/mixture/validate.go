package mixture

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const normTolerance = 1e-8

// checkWeightsVector validates scalar per-component mixing weights: shape,
// range [0, 1] and normalization.
func checkWeightsVector(weights []float64, components int) error {
	if len(weights) != components {
		return fmt.Errorf("%w: got %d entries, want %d", ErrWeightsShape, len(weights), components)
	}
	var sum float64
	for _, w := range weights {
		if w < 0 || w > 1 {
			return fmt.Errorf("%w: got value %.5f", ErrWeightsRange, w)
		}
		sum += w
	}
	if math.Abs(1-sum) > normTolerance {
		return fmt.Errorf("%w: sum(weights) = %.5f", ErrWeightsNotNormalized, sum)
	}
	return nil
}

// checkWeightsMatrix validates spatially varying weights: samples x
// components, range [0, 1], each row summing to one.
func checkWeightsMatrix(weights *mat.Dense, samples, components int) error {
	r, c := weights.Dims()
	if r != samples || c != components {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrWeightsShape, r, c, samples, components)
	}
	for i := 0; i < r; i++ {
		var sum float64
		for j := 0; j < c; j++ {
			w := weights.At(i, j)
			if w < 0 || w > 1 {
				return fmt.Errorf("%w: got value %.5f at row %d", ErrWeightsRange, w, i)
			}
			sum += w
		}
		if math.Abs(1-sum) > normTolerance {
			return fmt.Errorf("%w: row %d sums to %.5f", ErrWeightsNotNormalized, i, sum)
		}
	}
	return nil
}

func checkVolumes(volumes []float64) error {
	for i, v := range volumes {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: entry %d is %v", ErrVolumesShape, i, v)
		}
	}
	return nil
}

func checkMeans(means *mat.Dense, components, features int) error {
	r, c := means.Dims()
	if r != components || c != features {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrMeansShape, r, c, components, features)
	}
	return nil
}

// checkCovariances validates that a family-shaped container matches the
// declared covariance type and dimensions. Variances must be positive.
func checkCovariances(c *Covariances, covType CovarianceType, components, features int) error {
	if c == nil || c.Type != covType {
		return fmt.Errorf("%w: container type does not match %q", ErrPrecisionsShape, covType)
	}
	switch covType {
	case CovFull:
		if len(c.Full) != components {
			return fmt.Errorf("%w: got %d full matrices, want %d", ErrPrecisionsShape, len(c.Full), components)
		}
		for k, s := range c.Full {
			if s.SymmetricDim() != features {
				return fmt.Errorf("%w: component %d has dim %d, want %d", ErrPrecisionsShape, k, s.SymmetricDim(), features)
			}
		}
	case CovTied:
		if c.Tied == nil || c.Tied.SymmetricDim() != features {
			return fmt.Errorf("%w: tied matrix dim mismatch", ErrPrecisionsShape)
		}
	case CovDiag:
		r, cc := c.Diag.Dims()
		if r != components || cc != features {
			return fmt.Errorf("%w: got %dx%d diagonals, want %dx%d", ErrPrecisionsShape, r, cc, components, features)
		}
		for i := 0; i < r; i++ {
			for j := 0; j < cc; j++ {
				if c.Diag.At(i, j) <= 0 {
					return fmt.Errorf("%w: non-positive diagonal at (%d,%d)", ErrNotPositiveDefinite, i, j)
				}
			}
		}
	case CovSpherical:
		if len(c.Spherical) != components {
			return fmt.Errorf("%w: got %d variances, want %d", ErrPrecisionsShape, len(c.Spherical), components)
		}
		for k, v := range c.Spherical {
			if v <= 0 {
				return fmt.Errorf("%w: non-positive variance for component %d", ErrNotPositiveDefinite, k)
			}
		}
	default:
		return ErrInvalidCovarianceType
	}
	return nil
}

// checkX validates the sample matrix against the fit configuration. All
// validation happens before the first EM iteration.
func checkX(X *mat.Dense, components int) (n, d int, err error) {
	n, d = X.Dims()
	if n < components {
		return 0, 0, fmt.Errorf("%w: %d samples for %d components", ErrTooFewSamples, n, components)
	}
	return n, d, nil
}
