package mixture

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sample draws n samples from the fitted mixture and returns them together
// with their component labels. When per-cluster mappings are configured,
// each draw is passed through the inverse of its cluster's mapping so that
// samples come back in raw feature space; a mapping without an inverse
// surfaces as ErrNoInverse.
func (m *Mixture) Sample(n int, rng *rand.Rand) (*mat.Dense, []int, error) {
	if !m.fitted() {
		return nil, nil, ErrNotFitted
	}
	if n < 1 {
		return nil, nil, fmt.Errorf("need at least one sample, got %d", n)
	}

	d := m.Features
	out := mat.NewDense(n, d, nil)
	labels := make([]int, n)

	// Cumulative weights drive the component draw.
	cum := make([]float64, m.Components)
	var acc float64
	for j, w := range m.GlobalWeights() {
		acc += w
		cum[j] = acc
	}

	draw := make([]float64, d)
	for i := 0; i < n; i++ {
		u := rng.Float64() * acc
		k := 0
		for k < m.Components-1 && u > cum[k] {
			k++
		}
		labels[i] = k

		if err := m.sampleComponent(k, draw, rng); err != nil {
			return nil, nil, err
		}
		if m.Mappings != nil {
			if err := m.Mappings[k].Inverse(out.RawRowView(i), draw); err != nil {
				return nil, nil, fmt.Errorf("component %d: %w", k, err)
			}
			continue
		}
		out.SetRow(i, draw)
	}
	return out, labels, nil
}

func (m *Mixture) sampleComponent(k int, dst []float64, rng *rand.Rand) error {
	mu := m.Means.RawRowView(k)
	switch m.CovType {
	case CovFull, CovTied:
		cov := m.Covariances.Tied
		if m.CovType == CovFull {
			cov = m.Covariances.Full[k]
		}
		normal, ok := distmv.NewNormal(mu, cov, rng)
		if !ok {
			return ErrNotPositiveDefinite
		}
		normal.Rand(dst)
	case CovDiag:
		for q := range dst {
			dist := distuv.Normal{Mu: mu[q], Sigma: math.Sqrt(m.Covariances.Diag.At(k, q)), Src: rng}
			dst[q] = dist.Rand()
		}
	case CovSpherical:
		sigma := math.Sqrt(m.Covariances.Spherical[k])
		for q := range dst {
			dist := distuv.Normal{Mu: mu[q], Sigma: sigma, Src: rng}
			dst[q] = dist.Rand()
		}
	}
	return nil
}
