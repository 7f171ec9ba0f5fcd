package mixture

import (
	"fmt"
)

// PriorMode selects how much of the conjugate update is applied.
type PriorMode string

const (
	// PriorSemi blends means, covariances and weights with the reference.
	PriorSemi PriorMode = "semi"
	// PriorFull additionally injects the mean-shift correction into the
	// covariance update.
	PriorFull PriorMode = "full"
)

// Prior couples a fitted mixture to a reference mixture through per-cluster
// confidence hyperparameters. Kappa weighs the reference means, Nu the
// reference covariances (or precisions), Zeta the reference mixing weights.
// The reference is read-only; it is owned by the caller and shared across
// fits.
type Prior struct {
	Ref *Mixture

	Kappa []float64
	Nu    []float64
	Zeta  []float64

	Mode PriorMode

	// UpdateCovariances selects the covariance domain for the nu-blend;
	// otherwise the blend happens in the precision domain. Whichever domain
	// is not updated directly is recomputed by a Cholesky round trip.
	UpdateCovariances bool
}

// NewUniformPrior builds a Prior with scalar confidences broadcast to every
// component of the reference mixture.
func NewUniformPrior(ref *Mixture, kappa, nu, zeta float64) *Prior {
	k := ref.Components
	p := &Prior{
		Ref:   ref,
		Kappa: make([]float64, k),
		Nu:    make([]float64, k),
		Zeta:  make([]float64, k),
		Mode:  PriorSemi,
	}
	for i := 0; i < k; i++ {
		p.Kappa[i] = kappa
		p.Nu[i] = nu
		p.Zeta[i] = zeta
	}
	return p
}

func (p *Prior) validate(m *Mixture) error {
	if p.Ref == nil {
		return fmt.Errorf("prior: %w", ErrNotFitted)
	}
	if p.Ref.Components != m.Components {
		return ErrComponentMismatch
	}
	if len(p.Kappa) != m.Components || len(p.Nu) != m.Components || len(p.Zeta) != m.Components {
		return fmt.Errorf("%w: confidence vectors must have %d entries", ErrWeightsShape, m.Components)
	}
	return nil
}

// ApplyPrior merges the fitted parameters with the reference mixture.
// The mixture is first aligned to the reference labeling, then per cluster:
//
//	mean_k <- (w_k*mean_k + refW_k*kappa_k*refMean_k) / (w_k + refW_k*kappa_k)
//	cov_k or prec_k <- convex blend with nu_k in the selected domain
//	weights <- (weights + zeta*refWeights), renormalized
//
// In full mode a mean-shift correction, computed from the pre-update means,
// is added to the covariance diagonal. The tied family blends its single
// shared matrix with the aggregate confidence sum(refW*nu). Both Cholesky
// round trips run at the end so covariances and precisions leave this call
// mutually consistent.
func (m *Mixture) ApplyPrior(p *Prior) error {
	if err := p.validate(m); err != nil {
		return err
	}
	if err := m.computePrecisions(); err != nil {
		return err
	}
	if err := m.AlignToReference(p.Ref); err != nil {
		return err
	}

	ref := p.Ref
	w := m.GlobalWeights()
	refW := ref.GlobalWeights()
	d := m.Features

	for k := 0; k < m.Components; k++ {
		var shift []float64
		if p.Mode == PriorFull {
			shift = make([]float64, d)
			for q := 0; q < d; q++ {
				dev := ref.Means.At(k, q) - m.Means.At(k, q)
				shift[q] = p.Kappa[k] * w[k] * dev * dev
				shift[q] /= p.Kappa[k] + w[k]
				shift[q] /= w[k] + refW[k]*p.Nu[k]
			}
		}

		meanDenom := w[k] + refW[k]*p.Kappa[k]
		for q := 0; q < d; q++ {
			blended := (w[k]*m.Means.At(k, q) + refW[k]*p.Kappa[k]*ref.Means.At(k, q)) / meanDenom
			m.Means.Set(k, q, blended)
		}

		if m.CovType == CovTied {
			continue
		}
		covDenom := w[k] + refW[k]*p.Nu[k]
		scale := refW[k] * p.Nu[k]
		if p.UpdateCovariances {
			blendComponent(m.Covariances, ref.Covariances, k, w[k], scale, covDenom)
			if p.Mode == PriorFull {
				addDiagonal(m.Covariances, k, shift)
			}
		} else {
			blendComponent(m.Precisions, ref.Precisions, k, w[k], scale, covDenom)
		}
	}

	m.blendWeights(p)

	if m.CovType == CovTied {
		var s float64
		for k := 0; k < m.Components; k++ {
			s += refW[k] * p.Nu[k]
		}
		if p.UpdateCovariances {
			blendTied(m.Covariances, ref.Covariances, s)
			return m.computePrecisions()
		}
		blendTied(m.Precisions, ref.Precisions, s)
		return m.computeCovariancesFromPrecisions()
	}

	if p.UpdateCovariances {
		return m.computePrecisions()
	}
	return m.computeCovariancesFromPrecisions()
}

// blendWeights applies weights <- (weights + zeta*refWeights) with the
// normalization folding the zeta-scaled reference mass back in, so the
// result sums to one. Spatially varying weights are renormalized row-wise.
func (m *Mixture) blendWeights(p *Prior) {
	refGlobal := p.Ref.GlobalWeights()
	if m.LocalWeights == nil {
		var denom float64
		for k := range m.Weights {
			denom += p.Zeta[k] * refGlobal[k]
		}
		denom += 1
		for k := range m.Weights {
			m.Weights[k] = (m.Weights[k] + p.Zeta[k]*refGlobal[k]) / denom
		}
		return
	}

	n, kk := m.LocalWeights.Dims()
	for i := 0; i < n; i++ {
		refRow := refGlobal
		if p.Ref.LocalWeights != nil {
			refRow = p.Ref.LocalWeights.RawRowView(i)
		}
		var denom float64
		for k := 0; k < kk; k++ {
			denom += p.Zeta[k] * refRow[k]
		}
		denom += 1
		for k := 0; k < kk; k++ {
			m.LocalWeights.Set(i, k, (m.LocalWeights.At(i, k)+p.Zeta[k]*refRow[k])/denom)
		}
	}
	m.Weights = m.GlobalWeights()
}

// blendComponent overwrites component k of dst with
// (w*dst_k + scale*ref_k) / denom for the per-component families.
func blendComponent(dst, ref *Covariances, k int, w, scale, denom float64) {
	switch dst.Type {
	case CovFull:
		d := dst.Full[k].SymmetricDim()
		for p := 0; p < d; p++ {
			for q := p; q < d; q++ {
				v := (w*dst.Full[k].At(p, q) + scale*ref.Full[k].At(p, q)) / denom
				dst.Full[k].SetSym(p, q, v)
			}
		}
	case CovDiag:
		_, d := dst.Diag.Dims()
		for q := 0; q < d; q++ {
			v := (w*dst.Diag.At(k, q) + scale*ref.Diag.At(k, q)) / denom
			dst.Diag.Set(k, q, v)
		}
	case CovSpherical:
		dst.Spherical[k] = (w*dst.Spherical[k] + scale*ref.Spherical[k]) / denom
	}
}

// blendTied blends the single shared matrix with aggregate confidence s:
// (value + s*ref) / (1 + s).
func blendTied(dst, ref *Covariances, s float64) {
	d := dst.Tied.SymmetricDim()
	for p := 0; p < d; p++ {
		for q := p; q < d; q++ {
			dst.Tied.SetSym(p, q, (dst.Tied.At(p, q)+s*ref.Tied.At(p, q))/(1+s))
		}
	}
}

// addDiagonal adds the full-mode mean-shift correction to component k.
func addDiagonal(covs *Covariances, k int, shift []float64) {
	switch covs.Type {
	case CovFull:
		for q := range shift {
			covs.Full[k].SetSym(q, q, covs.Full[k].At(q, q)+shift[q])
		}
	case CovDiag:
		for q := range shift {
			covs.Diag.Set(k, q, covs.Diag.At(k, q)+shift[q])
		}
	case CovSpherical:
		var mean float64
		for _, v := range shift {
			mean += v
		}
		covs.Spherical[k] += mean / float64(len(shift))
	}
}
