package mixture

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// invertSPD inverts a symmetric positive-definite matrix through its
// Cholesky factorization.
func invertSPD(a *mat.SymDense) (*mat.SymDense, error) {
	var ch mat.Cholesky
	if ok := ch.Factorize(a); !ok {
		return nil, ErrNotPositiveDefinite
	}
	inv := mat.NewSymDense(a.SymmetricDim(), nil)
	if err := ch.InverseTo(inv); err != nil {
		return nil, fmt.Errorf("spd inverse: %w", err)
	}
	return inv, nil
}

// lowerFactor returns the lower Cholesky factor L of a, with a = L*Lt.
func lowerFactor(a *mat.SymDense) (*mat.TriDense, error) {
	var ch mat.Cholesky
	if ok := ch.Factorize(a); !ok {
		return nil, ErrNotPositiveDefinite
	}
	l := mat.NewTriDense(a.SymmetricDim(), mat.Lower, nil)
	ch.LTo(l)
	return l, nil
}

// precisionCholesky derives the cached precision Cholesky factors from a
// covariance container: each component's covariance is inverted and the
// lower factor of the resulting precision is stored. Ill-conditioned
// covariances surface as ErrNotPositiveDefinite; the estimation floor is
// expected to prevent that for estimated parameters.
func precisionCholesky(covs *Covariances) (*CholFactors, error) {
	ch := &CholFactors{Type: covs.Type}
	switch covs.Type {
	case CovFull:
		ch.Full = make([]*mat.TriDense, len(covs.Full))
		for k, cov := range covs.Full {
			prec, err := invertSPD(cov)
			if err != nil {
				return nil, fmt.Errorf("component %d: %w", k, err)
			}
			l, err := lowerFactor(prec)
			if err != nil {
				return nil, fmt.Errorf("component %d: %w", k, err)
			}
			ch.Full[k] = l
		}
	case CovTied:
		prec, err := invertSPD(covs.Tied)
		if err != nil {
			return nil, fmt.Errorf("tied covariance: %w", err)
		}
		l, err := lowerFactor(prec)
		if err != nil {
			return nil, fmt.Errorf("tied covariance: %w", err)
		}
		ch.Tied = l
	case CovDiag:
		r, c := covs.Diag.Dims()
		ch.Diag = mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				v := covs.Diag.At(i, j)
				if v <= 0 {
					return nil, ErrNotPositiveDefinite
				}
				ch.Diag.Set(i, j, 1/math.Sqrt(v))
			}
		}
	case CovSpherical:
		ch.Spherical = make([]float64, len(covs.Spherical))
		for k, v := range covs.Spherical {
			if v <= 0 {
				return nil, ErrNotPositiveDefinite
			}
			ch.Spherical[k] = 1 / math.Sqrt(v)
		}
	default:
		return nil, ErrInvalidCovarianceType
	}
	return ch, nil
}

// precisionsFromCovariances inverts every covariance in the container.
func precisionsFromCovariances(covs *Covariances) (*Covariances, error) {
	out := &Covariances{Type: covs.Type}
	switch covs.Type {
	case CovFull:
		out.Full = make([]*mat.SymDense, len(covs.Full))
		for k, cov := range covs.Full {
			inv, err := invertSPD(cov)
			if err != nil {
				return nil, fmt.Errorf("component %d: %w", k, err)
			}
			out.Full[k] = inv
		}
	case CovTied:
		inv, err := invertSPD(covs.Tied)
		if err != nil {
			return nil, err
		}
		out.Tied = inv
	case CovDiag:
		r, c := covs.Diag.Dims()
		out.Diag = mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				out.Diag.Set(i, j, 1/covs.Diag.At(i, j))
			}
		}
	case CovSpherical:
		out.Spherical = make([]float64, len(covs.Spherical))
		for k, v := range covs.Spherical {
			out.Spherical[k] = 1 / v
		}
	default:
		return nil, ErrInvalidCovarianceType
	}
	return out, nil
}

// computePrecisions rederives PrecisionsChol and Precisions from the
// current covariances, restoring the invariant that the three containers
// stay mutually consistent.
func (m *Mixture) computePrecisions() error {
	ch, err := precisionCholesky(m.Covariances)
	if err != nil {
		return err
	}
	prec, err := precisionsFromCovariances(m.Covariances)
	if err != nil {
		return err
	}
	m.PrecisionsChol = ch
	m.Precisions = prec
	return nil
}

// computeCovariancesFromPrecisions is the opposite round trip: the
// covariances and the cached factors are rederived from the precisions.
// Used after a prior blend performed in the precision domain.
func (m *Mixture) computeCovariancesFromPrecisions() error {
	covs, err := precisionsFromCovariances(m.Precisions)
	if err != nil {
		return err
	}
	m.Covariances = covs
	ch, err := precisionCholesky(m.Covariances)
	if err != nil {
		return err
	}
	m.PrecisionsChol = ch
	return nil
}

// logDet returns the log-determinant of component k's precision Cholesky
// factor, i.e. half the log-determinant of the precision.
func (ch *CholFactors) logDet(k, features int) float64 {
	switch ch.Type {
	case CovFull:
		var s float64
		for i := 0; i < features; i++ {
			s += math.Log(ch.Full[k].At(i, i))
		}
		return s
	case CovTied:
		var s float64
		for i := 0; i < features; i++ {
			s += math.Log(ch.Tied.At(i, i))
		}
		return s
	case CovDiag:
		var s float64
		for j := 0; j < features; j++ {
			s += math.Log(ch.Diag.At(k, j))
		}
		return s
	case CovSpherical:
		return float64(features) * math.Log(ch.Spherical[k])
	}
	return math.NaN()
}
