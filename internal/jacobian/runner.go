package jacobian

import (
	"context"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/petroseis/pgi/internal/sensstore"
)

// Runner wraps a Simulation with the derived operations a fit driver
// consumes: predicted data and sensitivity products. It owns the cached
// state (fields, persisted Jacobian, J'J diagonal) and invalidates it
// whenever the model changes, so the wrapped simulation stays a plain
// forward problem.
type Runner struct {
	sim     Simulation
	builder *Builder
	solver  Solver

	mu       sync.Mutex
	model    []float64
	fields   *mat.Dense
	fact     Factorization
	jacobian *sensstore.Array
	chunks   *sensstore.ChunkCache
	gtgDiag  []float64
}

// NewRunner wraps sim. The builder is used lazily the first time a
// sensitivity product is requested. Chunks of the persisted Jacobian are
// cached in memory across the repeated products of an inversion step.
func NewRunner(sim Simulation, builder *Builder) *Runner {
	return &Runner{
		sim:     sim,
		builder: builder,
		solver:  builder.cfg.Solver,
		chunks:  sensstore.NewChunkCache(0),
	}
}

// Jacobian returns the persisted sensitivity handle for the model,
// building it if the cache is stale.
func (r *Runner) Jacobian(ctx context.Context, model []float64) (*sensstore.Array, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.setModelLocked(model); err != nil {
		return nil, err
	}
	return r.jacobianLocked(ctx)
}

// setModelLocked records the model and drops every cache derived from
// the previous one.
func (r *Runner) setModelLocked(model []float64) error {
	if model == nil {
		if r.model == nil {
			return ErrNoModel
		}
		return nil
	}
	if sameModel(r.model, model) {
		return nil
	}
	if err := r.sim.SetModel(model); err != nil {
		return err
	}
	r.model = append(r.model[:0:0], model...)
	r.fields = nil
	r.fact = nil
	r.jacobian = nil
	r.gtgDiag = nil
	return nil
}

func sameModel(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return a != nil
}

func (r *Runner) fieldsLocked(ctx context.Context) (*mat.Dense, Factorization, error) {
	if r.fields != nil {
		return r.fields, r.fact, nil
	}
	a, err := r.sim.GetA()
	if err != nil {
		return nil, nil, err
	}
	handle := r.solver.Factorize(ctx, a)
	rhs, err := r.sim.GetRHS()
	if err != nil {
		return nil, nil, err
	}
	fact, err := handle.Wait(ctx)
	if err != nil {
		return nil, nil, err
	}
	var fields mat.Dense
	if err := fact.Solve(&fields, false, rhs); err != nil {
		return nil, nil, err
	}
	r.fields = &fields
	r.fact = fact
	return r.fields, r.fact, nil
}

func (r *Runner) jacobianLocked(ctx context.Context) (*sensstore.Array, error) {
	if r.jacobian != nil {
		return r.jacobian, nil
	}
	arr, err := r.builder.Build(ctx, r.sim, r.model)
	if err != nil {
		return nil, err
	}
	r.jacobian = arr.WithCache(r.chunks)
	return r.jacobian, nil
}

// Fields solves the forward problem for the model, one field column per
// source. Results are cached until the model changes.
func (r *Runner) Fields(ctx context.Context, model []float64) (*mat.Dense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.setModelLocked(model); err != nil {
		return nil, err
	}
	fields, _, err := r.fieldsLocked(ctx)
	return fields, err
}

// DPred projects the fields onto data space, receiver by receiver in
// survey order.
func (r *Runner) DPred(ctx context.Context, model []float64) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.setModelLocked(model); err != nil {
		return nil, err
	}
	survey, err := r.sim.Survey()
	if err != nil {
		return nil, err
	}
	fields, _, err := r.fieldsLocked(ctx)
	if err != nil {
		return nil, err
	}

	data := make([]float64, 0, survey.NumData())
	var d mat.VecDense
	for si, src := range survey.Sources {
		u := fields.ColView(si)
		for _, rx := range src.Receivers() {
			d.MulVec(rx.Projection(r.sim.FieldSize()), u)
			data = append(data, d.RawVector().Data[:d.Len()]...)
		}
	}
	return data, nil
}

// JVec computes J·v against the persisted sensitivity.
func (r *Runner) JVec(ctx context.Context, model, v []float64) ([]float64, error) {
	arr, err := r.Jacobian(ctx, model)
	if err != nil {
		return nil, err
	}
	return arr.MulVec(ctx, v)
}

// JtVec computes Jᵀ·v against the persisted sensitivity.
func (r *Runner) JtVec(ctx context.Context, model, v []float64) ([]float64, error) {
	arr, err := r.Jacobian(ctx, model)
	if err != nil {
		return nil, err
	}
	return arr.MulVecT(ctx, v)
}

// JtJDiag computes diag(JᵀWᵀWJ) with an optional diagonal row weighting
// and caches the result until the model changes. The cache keeps the
// first weighting it was computed with.
func (r *Runner) JtJDiag(ctx context.Context, model, weights []float64) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.setModelLocked(model); err != nil {
		return nil, err
	}
	if r.gtgDiag != nil {
		return r.gtgDiag, nil
	}
	arr, err := r.jacobianLocked(ctx)
	if err != nil {
		return nil, err
	}
	diag, err := arr.SquaredColumnSums(ctx, weights)
	if err != nil {
		return nil, err
	}
	r.gtgDiag = diag
	return diag, nil
}
