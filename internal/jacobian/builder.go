package jacobian

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/petroseis/pgi/internal/logging"
	"github.com/petroseis/pgi/internal/metrics"
	"github.com/petroseis/pgi/internal/sensstore"
	"github.com/petroseis/pgi/pkg/objectstore"
)

// BuilderConfig controls where and how a sensitivity build persists.
type BuilderConfig struct {
	// Store and Path locate the persisted array; the previous build at
	// the same path is overwritten.
	Store objectstore.Store
	Path  string

	// Workers bounds task parallelism. Zero means GOMAXPROCS.
	Workers int

	// ChunkRows is the persisted chunk height. Zero uses the sensstore
	// default.
	ChunkRows int

	Solver Solver
	Logger *logging.Logger
}

// Builder assembles the full sensitivity matrix of a simulation: one
// task per source/receiver pair, each an adjoint solve against the
// factorized system matrix, stacked in survey order and persisted.
type Builder struct {
	cfg BuilderConfig
}

// NewBuilder validates the config and returns a Builder.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: no object store", objectstore.ErrInvalidConfig)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: no sensitivity path", objectstore.ErrInvalidConfig)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Solver == nil {
		cfg.Solver = LUSolver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Builder{cfg: cfg}, nil
}

// task is one receiver's share of the build. Blocks are computed in
// parallel but stacked by task index, so survey order is preserved
// regardless of completion order.
type task struct {
	index    int
	source   Source
	sourceIx int
	receiver Receiver
}

// Build computes the sensitivity matrix for the model and persists it.
// A storage failure aborts the build and propagates to the caller; the
// path is left in an undefined state and the build must be retried whole.
func (b *Builder) Build(ctx context.Context, sim Simulation, model []float64) (*sensstore.Array, error) {
	start := time.Now()
	defer func() {
		metrics.SensitivityBuildDuration.Observe(time.Since(start).Seconds())
	}()

	if err := sim.SetModel(model); err != nil {
		return nil, err
	}
	survey, err := sim.Survey()
	if err != nil {
		return nil, err
	}

	a, err := sim.GetA()
	if err != nil {
		return nil, err
	}
	handle := b.cfg.Solver.Factorize(ctx, a)
	rhs, err := sim.GetRHS()
	if err != nil {
		return nil, err
	}
	fact, err := handle.Wait(ctx)
	if err != nil {
		return nil, err
	}

	// Fields: u_s = A⁻¹ q_s for every source at once.
	var fields mat.Dense
	if err := fact.Solve(&fields, false, rhs); err != nil {
		return nil, err
	}

	var tasks []task
	for si, src := range survey.Sources {
		for _, rx := range src.Receivers() {
			tasks = append(tasks, task{
				index:    len(tasks),
				source:   src,
				sourceIx: si,
				receiver: rx,
			})
		}
	}
	log := b.cfg.Logger.WithContext(ctx)
	log.Info("sensitivity build started",
		"sources", len(survey.Sources),
		"tasks", len(tasks),
		"model_size", sim.ModelSize(),
		"workers", b.cfg.Workers)

	blocks := make([]*mat.Dense, len(tasks))
	errs := make([]error, len(tasks))
	taskCh := make(chan task)

	var wg sync.WaitGroup
	for w := 0; w < b.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskCh {
				blocks[t.index], errs[t.index] = b.receiverBlock(sim, fact, &fields, t)
			}
		}()
	}
	for _, t := range tasks {
		taskCh <- t
	}
	close(taskCh)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	writer, err := sensstore.NewWriter(ctx, b.cfg.Store, b.cfg.Path, sim.ModelSize(), b.cfg.ChunkRows)
	if err != nil {
		return nil, err
	}
	for _, block := range blocks {
		if err := writer.Append(ctx, block); err != nil {
			return nil, err
		}
	}
	arr, err := writer.Commit(ctx)
	if err != nil {
		return nil, err
	}
	rows, cols := arr.Dims()
	log.Info("sensitivity build finished",
		"build_id", arr.BuildID(),
		"rows", rows,
		"cols", cols,
		"chunks", arr.NumChunks(),
		"duration", time.Since(start).String())
	return arr, nil
}

// receiverBlock computes one receiver's rows of the Jacobian by adjoint
// propagation: solve Aᵀ w = Pᵀ, push w through the operator derivatives
// and transpose. Zero-sentinel contributions are skipped outright.
func (b *Builder) receiverBlock(sim Simulation, fact Factorization, fields *mat.Dense, t task) (*mat.Dense, error) {
	fieldSize := sim.FieldSize()
	modelSize := sim.ModelSize()

	pt := t.receiver.Projection(fieldSize).T()

	var w mat.Dense
	if err := fact.Solve(&w, true, pt); err != nil {
		return nil, err
	}

	u := mat.VecDenseCopyOf(fields.ColView(t.sourceIx))
	duT := sim.GetADeriv(u, &w, true).Neg()
	duT = duT.Add(sim.GetRHSDeriv(t.source, &w, true))

	dense := duT.Dense(modelSize, t.receiver.NumData())
	if r, c := dense.Dims(); r != modelSize || c != t.receiver.NumData() {
		return nil, fmt.Errorf("%w: derivative block is %dx%d, want %dx%d",
			ErrShape, r, c, modelSize, t.receiver.NumData())
	}

	block := mat.NewDense(t.receiver.NumData(), modelSize, nil)
	block.Copy(dense.T())
	metrics.SensitivityBlocks.Inc()
	return block, nil
}
