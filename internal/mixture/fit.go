package mixture

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/petroseis/pgi/internal/logging"
	"github.com/petroseis/pgi/internal/metrics"
)

// InitMethod selects how the EM responsibilities are seeded.
type InitMethod string

const (
	// InitKMeans seeds one-hot responsibilities from volume-weighted k-means.
	InitKMeans InitMethod = "kmeans"
	// InitRandom seeds uniform-random responsibilities normalized per sample.
	InitRandom InitMethod = "random"
)

// IsValid reports whether the method is implemented.
func (m InitMethod) IsValid() bool {
	switch m {
	case InitKMeans, InitRandom:
		return true
	default:
		return false
	}
}

// FixedMembership pins a sample to a cluster: its responsibility row is
// forced one-hot after every E-step, and its local weight row after every
// M-step when the weights are spatially varying.
type FixedMembership struct {
	Sample  int
	Cluster int
}

// FitConfig configures an EM fit. Zero values fall back to the documented
// defaults.
type FitConfig struct {
	Components int
	CovType    CovarianceType

	// Tol is the absolute lower-bound change below which a trial is
	// converged. Default 1e-3.
	Tol float64
	// RegCovar is the diagonal floor added to estimated covariances.
	// Default DefaultCovarianceFloor.
	RegCovar float64
	// MaxIter bounds each trial. Default 100.
	MaxIter int
	// NInit is the number of independently seeded trials; the best final
	// lower bound wins. Default 10.
	NInit int

	Init InitMethod
	Seed uint64

	// Optional parameter overrides applied at initialization.
	WeightsInit      []float64
	LocalWeightsInit *mat.Dense
	MeansInit        *mat.Dense

	// Mappings enables the per-cluster nonlinear relationship variant.
	Mappings []Mapping

	// Prior enables the prior-blending update after every M-step.
	Prior *Prior

	FixedMemberships []FixedMembership

	Logger *logging.Logger
}

func (c *FitConfig) withDefaults() FitConfig {
	out := *c
	if out.Tol == 0 {
		out.Tol = 1e-3
	}
	if out.RegCovar == 0 {
		out.RegCovar = DefaultCovarianceFloor
	}
	if out.MaxIter == 0 {
		out.MaxIter = 100
	}
	if out.NInit == 0 {
		out.NInit = 10
	}
	if out.Init == "" {
		out.Init = InitKMeans
	}
	if out.Logger == nil {
		out.Logger = logging.Nop()
	}
	if out.Prior != nil && out.Components == 0 {
		out.Components = out.Prior.Ref.Components
	}
	if out.Prior != nil && out.CovType == "" {
		out.CovType = out.Prior.Ref.CovType
	}
	if out.Prior != nil && out.Mappings == nil {
		out.Mappings = out.Prior.Ref.Mappings
	}
	return out
}

func (c *FitConfig) validate(X *mat.Dense, volumes []float64) (n, d int, err error) {
	if !c.CovType.IsValid() {
		return 0, 0, ErrInvalidCovarianceType
	}
	if !c.Init.IsValid() {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidInit, c.Init)
	}
	n, d, err = checkX(X, c.Components)
	if err != nil {
		return 0, 0, err
	}
	if len(volumes) != n {
		return 0, 0, fmt.Errorf("%w: %d volumes for %d samples", ErrVolumesShape, len(volumes), n)
	}
	if err := checkVolumes(volumes); err != nil {
		return 0, 0, err
	}
	if c.WeightsInit != nil {
		if err := checkWeightsVector(c.WeightsInit, c.Components); err != nil {
			return 0, 0, err
		}
	}
	if c.LocalWeightsInit != nil {
		if err := checkWeightsMatrix(c.LocalWeightsInit, n, c.Components); err != nil {
			return 0, 0, err
		}
	}
	if c.MeansInit != nil {
		if err := checkMeans(c.MeansInit, c.Components, d); err != nil {
			return 0, 0, err
		}
	}
	if c.Mappings != nil && len(c.Mappings) != c.Components {
		return 0, 0, fmt.Errorf("%w: %d mappings for %d components", ErrComponentMismatch, len(c.Mappings), c.Components)
	}
	if c.Prior != nil && c.Prior.Ref.Components != c.Components {
		return 0, 0, ErrComponentMismatch
	}
	for _, fm := range c.FixedMemberships {
		if fm.Sample < 0 || fm.Sample >= n || fm.Cluster < 0 || fm.Cluster >= c.Components {
			return 0, 0, fmt.Errorf("fixed membership (%d,%d) out of range", fm.Sample, fm.Cluster)
		}
	}
	return n, d, nil
}

// Fit runs the prior-aware EM loop: NInit independently seeded trials, each
// iterating E-step, membership constraints, M-step, prior blend and weight
// constraints until the absolute lower-bound change drops below Tol or
// MaxIter is reached. The parameters of the best trial are restored before
// returning. Trials that stop without converging are reported through the
// logger, not as errors.
func Fit(X *mat.Dense, volumes []float64, cfg FitConfig) (*Mixture, error) {
	cfg = cfg.withDefaults()
	n, d, err := cfg.validate(X, volumes)
	if err != nil {
		return nil, err
	}

	m := &Mixture{
		Components: cfg.Components,
		Features:   d,
		CovType:    cfg.CovType,
		Volumes:    volumes,
		Mappings:   cfg.Mappings,
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	start := time.Now()

	maxLowerBound := math.Inf(-1)
	var best parameters
	var bestIter int
	m.Converged = false

	for trial := 0; trial < cfg.NInit; trial++ {
		if err := m.initializeParameters(X, n, rng, &cfg); err != nil {
			return nil, err
		}
		lowerBound := math.Inf(-1)
		var iter int

		for iter = 0; iter < cfg.MaxIter; iter++ {
			prev := lowerBound

			logProbNorm, logResp := m.eStep(X)
			constrainResponsibilities(logResp, cfg.FixedMemberships)

			if err := m.mStep(X, expResp(logResp), &cfg); err != nil {
				return nil, err
			}
			if cfg.Prior != nil {
				if err := m.ApplyPrior(cfg.Prior); err != nil {
					return nil, err
				}
			}
			if m.LocalWeights != nil {
				constrainLocalWeights(m.LocalWeights, cfg.FixedMemberships)
			}

			lowerBound = logProbNorm
			change := lowerBound - prev
			if math.Abs(change) < cfg.Tol {
				m.Converged = true
				break
			}
		}

		cfg.Logger.Debug("trial finished",
			"trial", trial, "iterations", iter, "lower_bound", lowerBound, "converged", m.Converged)

		if lowerBound > maxLowerBound {
			maxLowerBound = lowerBound
			best = m.snapshot()
			bestIter = iter
		}
	}

	if !m.Converged {
		cfg.Logger.Warn("EM did not converge; using last iterate",
			"trials", cfg.NInit, "max_iter", cfg.MaxIter, "tol", cfg.Tol)
		metrics.FitNonConverged.Inc()
	}

	m.restore(best)
	m.Iterations = bestIter
	m.LowerBound = maxLowerBound

	metrics.FitDuration.Observe(time.Since(start).Seconds())
	metrics.FitIterations.Observe(float64(bestIter))
	return m, nil
}

// initializeParameters seeds responsibilities (k-means or random), runs one
// weighted estimation pass and applies any explicit overrides.
func (m *Mixture) initializeParameters(X *mat.Dense, n int, rng *rand.Rand, cfg *FitConfig) error {
	resp := mat.NewDense(n, cfg.Components, nil)
	switch cfg.Init {
	case InitKMeans:
		labels := kmeansSeed(X, m.Volumes, cfg.Components, rng)
		for i, l := range labels {
			resp.Set(i, l, 1)
		}
	case InitRandom:
		for i := 0; i < n; i++ {
			var sum float64
			row := resp.RawRowView(i)
			for j := range row {
				row[j] = rng.Float64()
				sum += row[j]
			}
			for j := range row {
				row[j] /= sum
			}
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidInit, cfg.Init)
	}

	if err := m.mStep(X, resp, cfg); err != nil {
		return err
	}

	if cfg.WeightsInit != nil {
		m.Weights = append([]float64(nil), cfg.WeightsInit...)
	}
	if cfg.LocalWeightsInit != nil {
		m.LocalWeights = mat.DenseCopyOf(cfg.LocalWeightsInit)
	}
	if cfg.MeansInit != nil {
		m.Means = mat.DenseCopyOf(cfg.MeansInit)
		return m.computePrecisions()
	}
	return nil
}

func expResp(logResp *mat.Dense) *mat.Dense {
	n, k := logResp.Dims()
	resp := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			resp.Set(i, j, math.Exp(logResp.At(i, j)))
		}
	}
	return resp
}

// mStep recomputes the weighted sufficient statistics. Mixing weights are
// normalized by (sample count x mean volume) for the volume-weighted path
// and by the sample count for the per-cluster mapping variant, which
// operates on plain responsibilities. Matrix-valued (spatially varying)
// weights are left untouched.
func (m *Mixture) mStep(X *mat.Dense, resp *mat.Dense, cfg *FitConfig) error {
	n, k := resp.Dims()
	var (
		nk    []float64
		means *mat.Dense
		covs  *Covariances
		err   error
		norm  float64
	)
	if m.Mappings != nil {
		nk, means, covs, err = estimateMappedParameters(X, resp, m.Mappings, cfg.RegCovar, m.CovType)
		norm = float64(n)
	} else {
		nk, means, covs, err = estimateGaussianParameters(X, m.Volumes, resp, cfg.RegCovar, m.CovType)
		norm = float64(n) * meanVolume(m.Volumes)
	}
	if err != nil {
		return err
	}

	weights := make([]float64, k)
	for j := range weights {
		weights[j] = nk[j] / norm
	}

	m.Means = means
	m.Covariances = covs
	if m.LocalWeights == nil {
		m.Weights = weights
	}
	return m.computePrecisions()
}

func meanVolume(volumes []float64) float64 {
	var s float64
	for _, v := range volumes {
		s += v
	}
	return s / float64(len(volumes))
}

// constrainResponsibilities forces one-hot log responsibilities at every
// constrained sample.
func constrainResponsibilities(logResp *mat.Dense, fixed []FixedMembership) {
	if len(fixed) == 0 {
		return
	}
	_, k := logResp.Dims()
	for _, fm := range fixed {
		for j := 0; j < k; j++ {
			logResp.Set(fm.Sample, j, math.Inf(-1))
		}
		logResp.Set(fm.Sample, fm.Cluster, 0)
	}
}

// constrainLocalWeights forces one-hot rows of the spatially varying
// weights at every constrained sample.
func constrainLocalWeights(weights *mat.Dense, fixed []FixedMembership) {
	if len(fixed) == 0 {
		return
	}
	_, k := weights.Dims()
	for _, fm := range fixed {
		for j := 0; j < k; j++ {
			weights.Set(fm.Sample, j, 0)
		}
		weights.Set(fm.Sample, fm.Cluster, 1)
	}
}
