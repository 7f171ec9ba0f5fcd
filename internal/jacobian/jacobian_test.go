package jacobian

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/petroseis/pgi/internal/sensstore"
	"github.com/petroseis/pgi/pkg/objectstore"
)

// stubSimulation has an identity system matrix and configurable
// derivative behavior, so built Jacobians are predictable by hand.
type stubSimulation struct {
	size   int
	survey *Survey
	model  []float64

	aDeriv   func(u *mat.VecDense, v *mat.Dense, adjoint bool) Block
	rhsDeriv func(src Source, v *mat.Dense, adjoint bool) Block
}

func (s *stubSimulation) ModelSize() int { return s.size }
func (s *stubSimulation) FieldSize() int { return s.size }

func (s *stubSimulation) Survey() (*Survey, error) {
	if s.survey == nil {
		return nil, ErrNoSurvey
	}
	return s.survey, nil
}

func (s *stubSimulation) SetModel(m []float64) error {
	s.model = append([]float64(nil), m...)
	return nil
}

func (s *stubSimulation) Model() ([]float64, error) {
	if s.model == nil {
		return nil, ErrNoModel
	}
	return s.model, nil
}

func (s *stubSimulation) GetA() (mat.Matrix, error) {
	d := make([]float64, s.size)
	for i := range d {
		d[i] = 1
	}
	return mat.NewDiagDense(s.size, d), nil
}

func (s *stubSimulation) GetRHS() (*mat.Dense, error) {
	sv, err := s.Survey()
	if err != nil {
		return nil, err
	}
	rhs := mat.NewDense(s.size, len(sv.Sources), nil)
	for j := range sv.Sources {
		for i := 0; i < s.size; i++ {
			rhs.Set(i, j, 1)
		}
	}
	return rhs, nil
}

func (s *stubSimulation) GetADeriv(u *mat.VecDense, v *mat.Dense, adjoint bool) Block {
	if s.aDeriv == nil {
		return Zero
	}
	return s.aDeriv(u, v, adjoint)
}

func (s *stubSimulation) GetRHSDeriv(src Source, v *mat.Dense, adjoint bool) Block {
	if s.rhsDeriv == nil {
		return Zero
	}
	return s.rhsDeriv(src, v, adjoint)
}

func newBuilder(t *testing.T, store objectstore.Store, path string) *Builder {
	t.Helper()
	b, err := NewBuilder(BuilderConfig{Store: store, Path: path, Workers: 2, ChunkRows: 4})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}

func TestBuildIdentityStub(t *testing.T) {
	// One source, one receiver, identity system matrix and an
	// identity-like RHS derivative: the Jacobian row equals the
	// receiver's projection row.
	const n = 6
	sim := &stubSimulation{
		size: n,
		rhsDeriv: func(src Source, v *mat.Dense, adjoint bool) Block {
			return NewBlock(mat.DenseCopyOf(v))
		},
	}
	sim.survey = &Survey{Sources: []Source{
		&BasicSource{Rx: []Receiver{&PointReceiver{Indices: []int{2}}}},
	}}

	store := objectstore.NewMemStore()
	ctx := context.Background()
	b := newBuilder(t, store, "sens/identity")

	model := make([]float64, n)
	arr, err := b.Build(ctx, sim, model)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rows, cols := arr.Dims()
	if rows != 1 || cols != n {
		t.Fatalf("Dims() = %dx%d, want 1x%d", rows, cols, n)
	}

	reopened, err := sensstore.Open(ctx, store, "sens/identity")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, _, values, err := reopened.ReadChunk(ctx, 0)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	for j, v := range values {
		want := 0.0
		if j == 2 {
			want = 1.0
		}
		if v != want {
			t.Fatalf("J[0][%d] = %v, want %v", j, v, want)
		}
	}
}

func TestBuildZeroSkipIsNoOp(t *testing.T) {
	// A receiver whose every derivative is the Zero sentinel contributes
	// an all-zero row, identical to summing explicit zero blocks.
	const n = 4
	sim := &stubSimulation{size: n}
	sim.survey = &Survey{Sources: []Source{
		&BasicSource{Rx: []Receiver{&PointReceiver{Indices: []int{0, 3}}}},
	}}

	store := objectstore.NewMemStore()
	ctx := context.Background()
	b := newBuilder(t, store, "sens/zero")

	arr, err := b.Build(ctx, sim, make([]float64, n))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rows, cols := arr.Dims()
	if rows != 2 || cols != n {
		t.Fatalf("Dims() = %dx%d, want 2x%d", rows, cols, n)
	}
	_, _, values, err := arr.ReadChunk(ctx, 0)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	for i, v := range values {
		if v != 0 {
			t.Fatalf("values[%d] = %v, want 0", i, v)
		}
	}
}

func TestBlockZeroSentinel(t *testing.T) {
	if !Zero.IsZero() {
		t.Fatal("Zero.IsZero() = false")
	}
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	b := NewBlock(m)
	if b.IsZero() {
		t.Fatal("NewBlock(dense).IsZero() = true")
	}
	if got := b.Add(Zero); got.data != b.data {
		t.Fatal("adding Zero allocated a new block")
	}
	if got := Zero.Add(b); got.data != b.data {
		t.Fatal("adding to Zero did not return the operand")
	}
	if !Zero.Neg().IsZero() {
		t.Fatal("Neg of Zero is not Zero")
	}
	sum := b.Add(b)
	if got := sum.data.At(1, 0); got != 6 {
		t.Fatalf("sum[1][0] = %v, want 6", got)
	}
	z := Zero.Dense(2, 3)
	r, c := z.Dims()
	if r != 2 || c != 3 {
		t.Fatalf("Zero.Dense dims %dx%d, want 2x3", r, c)
	}
}

func TestBuildLinearSimulationAnalytic(t *testing.T) {
	// A(m) = diag(m), u = q/m, q model independent:
	// J[d][j] = -P[d][j] q_j / m_j^2.
	const n = 5
	sim := NewLinearSimulation(n)
	q := []float64{1, 2, 3, 4, 5}
	sim.SetSurvey(&Survey{Sources: []Source{
		&BasicSource{RHS: q, Rx: []Receiver{
			&PointReceiver{Indices: []int{0}},
			&PointReceiver{Indices: []int{1, 4}},
		}},
	}})

	store := objectstore.NewMemStore()
	ctx := context.Background()
	b := newBuilder(t, store, "sens/linear")

	model := []float64{2, 2, 1, 1, 4}
	arr, err := b.Build(ctx, sim, model)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rows, cols := arr.Dims()
	if rows != 3 || cols != n {
		t.Fatalf("Dims() = %dx%d, want 3x%d", rows, cols, n)
	}

	dataIdx := []int{0, 1, 4} // projected solution index per data row
	for chunk := 0; chunk < arr.NumChunks(); chunk++ {
		start, nrows, values, err := arr.ReadChunk(ctx, chunk)
		if err != nil {
			t.Fatalf("ReadChunk(%d): %v", chunk, err)
		}
		for r := 0; r < nrows; r++ {
			for j := 0; j < n; j++ {
				want := 0.0
				if j == dataIdx[start+r] {
					want = -q[j] / (model[j] * model[j])
				}
				got := values[r*n+j]
				if math.Abs(got-want) > 1e-12 {
					t.Fatalf("J[%d][%d] = %v, want %v", start+r, j, got, want)
				}
			}
		}
	}
}

func TestBuildNotConfigured(t *testing.T) {
	sim := NewLinearSimulation(3)
	b := newBuilder(t, objectstore.NewMemStore(), "sens/none")

	if _, err := b.Build(context.Background(), sim, []float64{1, 1, 1}); !errors.Is(err, ErrNoSurvey) {
		t.Fatalf("Build without survey: %v, want ErrNoSurvey", err)
	}
	if _, err := sim.Model(); err != nil {
		t.Fatalf("model was set before the survey error: %v", err)
	}

	fresh := NewLinearSimulation(3)
	if _, err := fresh.Model(); !errors.Is(err, ErrNoModel) {
		t.Fatalf("Model before SetModel: %v, want ErrNoModel", err)
	}
	if _, err := fresh.GetA(); !errors.Is(err, ErrNoModel) {
		t.Fatalf("GetA before SetModel: %v, want ErrNoModel", err)
	}
}

func TestRunnerProducts(t *testing.T) {
	const n = 4
	sim := NewLinearSimulation(n)
	q := []float64{2, 4, 6, 8}
	sim.SetSurvey(&Survey{Sources: []Source{
		&BasicSource{RHS: q, Rx: []Receiver{&PointReceiver{Indices: []int{0, 1, 2, 3}}}},
	}})

	store := objectstore.NewMemStore()
	ctx := context.Background()
	b := newBuilder(t, store, "sens/runner")
	runner := NewRunner(sim, b)

	model := []float64{1, 2, 2, 4}
	dpred, err := runner.DPred(ctx, model)
	if err != nil {
		t.Fatalf("DPred: %v", err)
	}
	for i := range dpred {
		want := q[i] / model[i]
		if math.Abs(dpred[i]-want) > 1e-12 {
			t.Fatalf("dpred[%d] = %v, want %v", i, dpred[i], want)
		}
	}

	// J is diagonal here: J[i][i] = -q_i/m_i^2.
	v := []float64{1, 1, 1, 1}
	jv, err := runner.JVec(ctx, model, v)
	if err != nil {
		t.Fatalf("JVec: %v", err)
	}
	jtv, err := runner.JtVec(ctx, model, v)
	if err != nil {
		t.Fatalf("JtVec: %v", err)
	}
	diag, err := runner.JtJDiag(ctx, model, nil)
	if err != nil {
		t.Fatalf("JtJDiag: %v", err)
	}
	for i := 0; i < n; i++ {
		j := -q[i] / (model[i] * model[i])
		if math.Abs(jv[i]-j) > 1e-12 {
			t.Fatalf("JVec[%d] = %v, want %v", i, jv[i], j)
		}
		if math.Abs(jtv[i]-j) > 1e-12 {
			t.Fatalf("JtVec[%d] = %v, want %v", i, jtv[i], j)
		}
		if math.Abs(diag[i]-j*j) > 1e-12 {
			t.Fatalf("JtJDiag[%d] = %v, want %v", i, diag[i], j*j)
		}
	}

	// Cached diagonal survives until the model changes.
	again, err := runner.JtJDiag(ctx, model, nil)
	if err != nil {
		t.Fatalf("JtJDiag cached: %v", err)
	}
	if &again[0] != &diag[0] {
		t.Fatal("JtJDiag recomputed despite unchanged model")
	}
	model2 := []float64{1, 2, 2, 5}
	fresh, err := runner.JtJDiag(ctx, model2, nil)
	if err != nil {
		t.Fatalf("JtJDiag after model change: %v", err)
	}
	if math.Abs(fresh[3]-math.Pow(q[3]/25, 2)) > 1e-12 {
		t.Fatalf("JtJDiag[3] after model change = %v", fresh[3])
	}
}

func TestSolveHandle(t *testing.T) {
	ctx := context.Background()

	a := mat.NewDense(2, 2, []float64{4, 0, 0, 2})
	h := LUSolver{}.Factorize(ctx, a)
	fact, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait on ready handle: %v", err)
	}
	var x mat.Dense
	if err := fact.Solve(&x, false, mat.NewDense(2, 1, []float64{8, 8})); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if x.At(0, 0) != 2 || x.At(1, 0) != 4 {
		t.Fatalf("solution = [%v %v], want [2 4]", x.At(0, 0), x.At(1, 0))
	}

	// Pending handle resolves through Wait.
	ph := AsyncSolver{Inner: LUSolver{}}.Factorize(ctx, a)
	if _, err := ph.Wait(ctx); err != nil {
		t.Fatalf("Wait on async handle: %v", err)
	}

	// Cancellation unblocks a handle that never resolves.
	stuck, _ := PendingHandle()
	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := stuck.Wait(cctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait on cancelled context: %v", err)
	}
}
