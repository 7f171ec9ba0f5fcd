package mixture

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const log2Pi = 1.8378770664093453

// estimateLogProb returns the n x k matrix of per-component log Gaussian
// densities. When the mixture carries per-cluster mappings, component k's
// density is evaluated on mapping_k(X) rather than on the raw samples.
func (m *Mixture) estimateLogProb(X *mat.Dense) *mat.Dense {
	n, d := X.Dims()
	k := m.Components
	out := mat.NewDense(n, k, nil)

	diff := make([]float64, d)
	work := make([]float64, d)
	mapped := make([]float64, d)

	for j := 0; j < k; j++ {
		mu := m.Means.RawRowView(j)
		logDet := m.PrecisionsChol.logDet(j, d)
		var mapping Mapping
		if m.Mappings != nil {
			mapping = m.Mappings[j]
		}
		for i := 0; i < n; i++ {
			x := X.RawRowView(i)
			if mapping != nil {
				mapping.Apply(mapped, x)
				x = mapped
			}
			for q := 0; q < d; q++ {
				diff[q] = x[q] - mu[q]
			}
			quad := m.quadraticForm(j, diff, work)
			out.Set(i, j, -0.5*(float64(d)*log2Pi+quad)+logDet)
		}
	}
	return out
}

// quadraticForm evaluates (x-mu)' P (x-mu) through the cached lower factor
// L of the precision, as the squared norm of L'(x-mu).
func (m *Mixture) quadraticForm(k int, diff, work []float64) float64 {
	d := len(diff)
	ch := m.PrecisionsChol
	switch ch.Type {
	case CovFull, CovTied:
		l := ch.Tied
		if ch.Type == CovFull {
			l = ch.Full[k]
		}
		var quad float64
		// work = L' diff; L is lower triangular, so row i of L' uses
		// entries L[i..d-1][i].
		for i := 0; i < d; i++ {
			var s float64
			for r := i; r < d; r++ {
				s += l.At(r, i) * diff[r]
			}
			work[i] = s
			quad += s * s
		}
		return quad
	case CovDiag:
		var quad float64
		for q := 0; q < d; q++ {
			y := ch.Diag.At(k, q) * diff[q]
			quad += y * y
		}
		return quad
	case CovSpherical:
		p := ch.Spherical[k]
		var quad float64
		for q := 0; q < d; q++ {
			y := p * diff[q]
			quad += y * y
		}
		return quad
	}
	return math.NaN()
}

// logWeight returns the log mixing weight for sample i, component j,
// consulting the spatially varying weights when present. Samples beyond
// the fitted domain fall back to the global weights, so scoring data of a
// different size than the fit stays well defined.
func (m *Mixture) logWeight(i, j int) float64 {
	if m.LocalWeights != nil {
		if n, _ := m.LocalWeights.Dims(); i < n {
			return math.Log(m.LocalWeights.At(i, j))
		}
	}
	return math.Log(m.Weights[j])
}

// eStep computes log responsibilities and the volume-weighted average of
// the per-sample log-probability norms, the convergence criterion of the
// EM loop.
func (m *Mixture) eStep(X *mat.Dense) (float64, *mat.Dense) {
	n, _ := X.Dims()
	k := m.Components
	logResp := m.estimateLogProb(X)

	row := make([]float64, k)
	var avg, volSum float64
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			row[j] = logResp.At(i, j) + m.logWeight(i, j)
		}
		norm := floats.LogSumExp(row)
		for j := 0; j < k; j++ {
			logResp.Set(i, j, row[j]-norm)
		}
		v := 1.0
		if i < len(m.Volumes) {
			v = m.Volumes[i]
		}
		avg += v * norm
		volSum += v
	}
	return avg / volSum, logResp
}

// Score returns the volume-weighted average log-likelihood of X under the
// fitted mixture.
func (m *Mixture) Score(X *mat.Dense) (float64, error) {
	if !m.fitted() {
		return 0, ErrNotFitted
	}
	avg, _ := m.eStep(X)
	return avg, nil
}

// Predict returns the most responsible component per sample.
func (m *Mixture) Predict(X *mat.Dense) ([]int, error) {
	if !m.fitted() {
		return nil, ErrNotFitted
	}
	_, logResp := m.eStep(X)
	n, _ := X.Dims()
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		best := math.Inf(-1)
		for j := 0; j < m.Components; j++ {
			if lr := logResp.At(i, j); lr > best {
				best = lr
				labels[i] = j
			}
		}
	}
	return labels, nil
}
