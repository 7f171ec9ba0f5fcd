package mixture

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CovarianceType selects the covariance family of a mixture.
type CovarianceType string

const (
	// CovFull uses one dense symmetric covariance matrix per component.
	CovFull CovarianceType = "full"
	// CovTied shares a single covariance matrix across all components.
	CovTied CovarianceType = "tied"
	// CovDiag uses one diagonal covariance per component.
	CovDiag CovarianceType = "diag"
	// CovSpherical uses one isotropic variance per component.
	CovSpherical CovarianceType = "spherical"
)

// IsValid returns true if the covariance type is a recognized family.
func (c CovarianceType) IsValid() bool {
	switch c {
	case CovFull, CovTied, CovDiag, CovSpherical:
		return true
	default:
		return false
	}
}

// Numeric floors shared by every estimation path. These are part of the
// package contract: covariance estimation adds DefaultCovarianceFloor to the
// diagonal, and weighted cluster counts are floored by weightFloor to avoid
// division by zero on empty clusters.
const (
	// DefaultCovarianceFloor is the regularization added to the diagonal of
	// every estimated covariance matrix.
	DefaultCovarianceFloor = 1e-6

	epsilon64 = 2.220446049250313e-16

	weightFloor = 10 * epsilon64
)

// Covariances holds family-shaped second-moment parameters (covariances or
// precisions). Exactly one value field is populated according to Type.
type Covariances struct {
	Type CovarianceType

	// Full holds one symmetric matrix per component.
	Full []*mat.SymDense
	// Tied holds the single shared matrix.
	Tied *mat.SymDense
	// Diag holds per-component diagonals, components x features.
	Diag *mat.Dense
	// Spherical holds one variance per component.
	Spherical []float64
}

// NewFullCovariances allocates a full-family container with k zero matrices
// of dimension d.
func NewFullCovariances(k, d int) *Covariances {
	full := make([]*mat.SymDense, k)
	for i := range full {
		full[i] = mat.NewSymDense(d, nil)
	}
	return &Covariances{Type: CovFull, Full: full}
}

// Clone deep-copies the container.
func (c *Covariances) Clone() *Covariances {
	if c == nil {
		return nil
	}
	out := &Covariances{Type: c.Type}
	switch c.Type {
	case CovFull:
		out.Full = make([]*mat.SymDense, len(c.Full))
		for i, s := range c.Full {
			out.Full[i] = mat.NewSymDense(s.SymmetricDim(), nil)
			out.Full[i].CopySym(s)
		}
	case CovTied:
		out.Tied = mat.NewSymDense(c.Tied.SymmetricDim(), nil)
		out.Tied.CopySym(c.Tied)
	case CovDiag:
		out.Diag = mat.DenseCopyOf(c.Diag)
	case CovSpherical:
		out.Spherical = append([]float64(nil), c.Spherical...)
	}
	return out
}

// permute reorders per-component entries with placement semantics:
// dst[perm[i]] = src[i]. The tied family has no per-component entries and is
// returned unchanged.
func (c *Covariances) permute(perm []int) *Covariances {
	if c == nil || c.Type == CovTied {
		return c
	}
	out := &Covariances{Type: c.Type}
	switch c.Type {
	case CovFull:
		out.Full = make([]*mat.SymDense, len(c.Full))
		for i, p := range perm {
			out.Full[p] = c.Full[i]
		}
	case CovDiag:
		_, d := c.Diag.Dims()
		out.Diag = mat.NewDense(len(perm), d, nil)
		for i, p := range perm {
			out.Diag.SetRow(p, c.Diag.RawRowView(i))
		}
	case CovSpherical:
		out.Spherical = make([]float64, len(c.Spherical))
		for i, p := range perm {
			out.Spherical[p] = c.Spherical[i]
		}
	}
	return out
}

// CholFactors holds the lower Cholesky factors of the per-component
// precision matrices, cached for numerically stable density evaluation.
// For the diag family the entries are 1/sigma per feature; for spherical a
// single 1/sigma per component.
type CholFactors struct {
	Type CovarianceType

	Full      []*mat.TriDense
	Tied      *mat.TriDense
	Diag      *mat.Dense
	Spherical []float64
}

// Mixture is a weighted Gaussian mixture over Features dimensions with
// Components clusters. Parameters are mutated in place during an EM fit and
// frozen once the fit driver restores the best trial.
type Mixture struct {
	Components int
	Features   int
	CovType    CovarianceType

	// Weights are the global mixing proportions, one per component, summing
	// to one.
	Weights []float64

	// LocalWeights optionally carries spatially varying proportions, one
	// row per sample, each row summing to one. Nil for scalar weights.
	LocalWeights *mat.Dense

	// Means is components x features.
	Means *mat.Dense

	Covariances    *Covariances
	Precisions     *Covariances
	PrecisionsChol *CholFactors

	// Volumes weights every sufficient statistic, one non-negative entry
	// per sample. Immutable after construction.
	Volumes []float64

	// Mappings holds one invertible per-cluster feature transform. Nil
	// means the identity for every cluster.
	Mappings []Mapping

	// Fit state, populated by Fit.
	Converged  bool
	Iterations int
	LowerBound float64
}

// NewMixture assembles a fully parameterized mixture, validating shapes and
// deriving precisions and their Cholesky factors from the covariances. It is
// the constructor used for reference (prior) mixtures.
func NewMixture(covType CovarianceType, weights []float64, means *mat.Dense, covs *Covariances, volumes []float64) (*Mixture, error) {
	if !covType.IsValid() {
		return nil, ErrInvalidCovarianceType
	}
	k, d := means.Dims()
	m := &Mixture{
		Components:  k,
		Features:    d,
		CovType:     covType,
		Weights:     weights,
		Means:       means,
		Covariances: covs,
		Volumes:     volumes,
	}
	if err := checkWeightsVector(weights, k); err != nil {
		return nil, err
	}
	if err := checkVolumes(volumes); err != nil {
		return nil, err
	}
	if err := checkCovariances(covs, covType, k, d); err != nil {
		return nil, err
	}
	if err := m.computePrecisions(); err != nil {
		return nil, err
	}
	return m, nil
}

// fitted reports whether the mixture carries a complete parameter set.
func (m *Mixture) fitted() bool {
	return m.Means != nil && m.Covariances != nil && m.PrecisionsChol != nil
}

// GlobalWeights returns the mixing proportions aggregated over samples.
// Scalar weights are returned as-is; spatially varying weights are averaged
// with the volume weights, matching how the prior update consumes them.
func (m *Mixture) GlobalWeights() []float64 {
	if m.LocalWeights == nil {
		return m.Weights
	}
	n, k := m.LocalWeights.Dims()
	agg := make([]float64, k)
	var total float64
	for i := 0; i < n; i++ {
		v := 1.0
		if m.Volumes != nil {
			v = m.Volumes[i]
		}
		for j := 0; j < k; j++ {
			w := v * m.LocalWeights.At(i, j)
			agg[j] += w
			total += w
		}
	}
	if total > 0 {
		floats.Scale(1/total, agg)
	}
	return agg
}

// parameters is a deep-copied snapshot of the mutable fit parameters, used
// by the fit driver to restore the best-of-N trial.
type parameters struct {
	weights      []float64
	localWeights *mat.Dense
	means        *mat.Dense
	covariances  *Covariances
	precisions   *Covariances
	chol         *CholFactors
	mappings     []Mapping
}

func (m *Mixture) snapshot() parameters {
	p := parameters{
		weights:     append([]float64(nil), m.Weights...),
		covariances: m.Covariances.Clone(),
		precisions:  m.Precisions.Clone(),
		chol:        m.PrecisionsChol,
	}
	if m.Means != nil {
		p.means = mat.DenseCopyOf(m.Means)
	}
	if m.LocalWeights != nil {
		p.localWeights = mat.DenseCopyOf(m.LocalWeights)
	}
	// Cluster mappings travel with the parameters: alignment permutes
	// them, so a snapshot without them would come back mispaired.
	if m.Mappings != nil {
		p.mappings = append([]Mapping(nil), m.Mappings...)
	}
	return p
}

func (m *Mixture) restore(p parameters) {
	m.Weights = p.weights
	m.LocalWeights = p.localWeights
	m.Means = p.means
	m.Covariances = p.covariances
	m.Precisions = p.precisions
	m.PrecisionsChol = p.chol
	m.Mappings = p.mappings
}
