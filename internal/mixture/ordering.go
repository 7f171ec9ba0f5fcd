package mixture

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// OrderByWeight relabels the components by descending total mixing weight,
// imposing a canonical labeling. The sort is stable so an already ordered
// mixture maps to the identity permutation. Returns the placement
// permutation: component i moves to slot perm[i].
func (m *Mixture) OrderByWeight() ([]int, error) {
	totals := m.GlobalWeights()
	order := make([]int, m.Components)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return totals[order[a]] > totals[order[b]]
	})
	perm := invertPermutation(order)
	return perm, m.applyPermutation(perm)
}

// OrderByMean relabels the components by descending first-feature mean.
func (m *Mixture) OrderByMean() ([]int, error) {
	order := make([]int, m.Components)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return m.Means.At(order[a], 0) > m.Means.At(order[b], 0)
	})
	perm := invertPermutation(order)
	return perm, m.applyPermutation(perm)
}

// MatchToReference relabels the components so that each one sits at the
// slot of its nearest reference component, measured by the log probability
// of the reference mean under this mixture's density. Assignment is greedy
// without replacement: the components are visited in order and each
// reference slot is used at most once, a bijection when the component
// counts match.
func (m *Mixture) MatchToReference(ref *Mixture) ([]int, error) {
	if ref.Components != m.Components {
		return nil, ErrComponentMismatch
	}
	if ref.Features != m.Features {
		return nil, ErrDimensionMismatch
	}

	available := make([]bool, ref.Components)
	for i := range available {
		available[i] = true
	}

	perm := make([]int, m.Components)
	for i := 0; i < m.Components; i++ {
		logProb := m.estimateLogProb(ref.Means)
		best := -1
		for r := 0; r < ref.Components; r++ {
			if !available[r] {
				continue
			}
			if best < 0 || logProb.At(r, i) > logProb.At(best, i) {
				best = r
			}
		}
		perm[i] = best
		available[best] = false
	}
	return perm, m.applyPermutation(perm)
}

// AlignToReference imposes the reference labeling: a canonical weight
// ordering followed by greedy matching, the sequence the prior blend relies
// on so that a given label always names the same petrophysical unit.
func (m *Mixture) AlignToReference(ref *Mixture) error {
	if _, err := m.OrderByWeight(); err != nil {
		return err
	}
	_, err := m.MatchToReference(ref)
	return err
}

// applyPermutation moves component i to slot perm[i] across every
// per-component parameter and recomputes the cached Cholesky factors. The
// tied covariance is shared and exempt from reordering.
func (m *Mixture) applyPermutation(perm []int) error {
	k := m.Components

	weights := make([]float64, k)
	for i, p := range perm {
		weights[p] = m.Weights[i]
	}
	m.Weights = weights

	if m.LocalWeights != nil {
		n, _ := m.LocalWeights.Dims()
		lw := mat.NewDense(n, k, nil)
		for i, p := range perm {
			for s := 0; s < n; s++ {
				lw.Set(s, p, m.LocalWeights.At(s, i))
			}
		}
		m.LocalWeights = lw
	}

	means := mat.NewDense(k, m.Features, nil)
	for i, p := range perm {
		means.SetRow(p, m.Means.RawRowView(i))
	}
	m.Means = means

	if m.Mappings != nil {
		maps := make([]Mapping, k)
		for i, p := range perm {
			maps[p] = m.Mappings[i]
		}
		m.Mappings = maps
	}

	m.Covariances = m.Covariances.permute(perm)
	if m.Precisions != nil {
		m.Precisions = m.Precisions.permute(perm)
	}
	return m.computePrecisions()
}

// invertPermutation converts a selection order (slot s takes component
// order[s]) into placement form (component i moves to slot perm[i]).
func invertPermutation(order []int) []int {
	perm := make([]int, len(order))
	for s, i := range order {
		perm[i] = s
	}
	return perm
}
