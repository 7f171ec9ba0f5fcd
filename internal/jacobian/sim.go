// Package jacobian assembles sensitivity (Jacobian) matrices for linear
// forward simulations by adjoint propagation: one independently
// schedulable task per source/receiver pair, blocks stacked in survey
// order and persisted through sensstore.
package jacobian

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNoSurvey is returned by operations that need a survey before
	// one has been assigned.
	ErrNoSurvey = errors.New("survey not configured")

	// ErrNoModel is returned by operations that need a model vector
	// before one has been assigned.
	ErrNoModel = errors.New("model not configured")

	// ErrShape is returned for mis-shaped simulation inputs.
	ErrShape = errors.New("shape mismatch")
)

// Receiver projects field solutions onto data values.
type Receiver interface {
	// NumData is the number of data values this receiver measures.
	NumData() int

	// Projection returns the NumData x fieldSize operator P that maps a
	// field solution onto this receiver's data.
	Projection(fieldSize int) *mat.Dense
}

// Source is one excitation of the simulation with its attached receivers.
type Source interface {
	Receivers() []Receiver
}

// Survey is the ordered list of sources. Block stacking follows this
// order exactly: source by source, receiver by receiver.
type Survey struct {
	Sources []Source
}

// NumData sums the data counts of every receiver in the survey.
func (s *Survey) NumData() int {
	n := 0
	for _, src := range s.Sources {
		for _, rx := range src.Receivers() {
			n += rx.NumData()
		}
	}
	return n
}

// Simulation is the forward-problem contract consumed by the builder.
// GetA and GetRHS describe the linear system A(m) u = q; the derivative
// accessors return adjoint products as Blocks so model-independent terms
// can be skipped via the Zero sentinel.
type Simulation interface {
	ModelSize() int
	FieldSize() int

	// Survey returns ErrNoSurvey before a survey is assigned.
	Survey() (*Survey, error)

	// SetModel assigns the model vector subsequent operator calls use.
	SetModel(m []float64) error

	// Model returns ErrNoModel before a model is assigned.
	Model() ([]float64, error)

	// GetA returns the system matrix for the current model.
	GetA() (mat.Matrix, error)

	// GetRHS returns the right-hand sides, one column per source in
	// survey order.
	GetRHS() (*mat.Dense, error)

	// GetADeriv returns d(A u)/dm applied to v, transposed when adjoint
	// is set: a ModelSize x cols(v) block.
	GetADeriv(u *mat.VecDense, v *mat.Dense, adjoint bool) Block

	// GetRHSDeriv returns dq/dm for one source applied to v, transposed
	// when adjoint is set.
	GetRHSDeriv(src Source, v *mat.Dense, adjoint bool) Block
}

// PointReceiver measures the field at fixed solution indices, one datum
// per index. Its projection is a 0/1 selection matrix.
type PointReceiver struct {
	Indices []int
}

func (r *PointReceiver) NumData() int { return len(r.Indices) }

func (r *PointReceiver) Projection(fieldSize int) *mat.Dense {
	p := mat.NewDense(len(r.Indices), fieldSize, nil)
	for i, idx := range r.Indices {
		p.Set(i, idx, 1)
	}
	return p
}

// BasicSource is a source holding a fixed excitation vector and its
// receivers.
type BasicSource struct {
	RHS []float64
	Rx  []Receiver
}

func (s *BasicSource) Receivers() []Receiver { return s.Rx }

// LinearSimulation is a concrete small forward problem used by the
// sensitivity command and as a reference implementation of the
// Simulation contract: A(m) = diag(m), so u = q / m elementwise and the
// right-hand side carries no model dependence (its derivative is Zero).
type LinearSimulation struct {
	Size   int
	survey *Survey
	model  []float64
}

// NewLinearSimulation builds a diag(m) simulation of the given size.
func NewLinearSimulation(size int) *LinearSimulation {
	return &LinearSimulation{Size: size}
}

func (s *LinearSimulation) ModelSize() int { return s.Size }
func (s *LinearSimulation) FieldSize() int { return s.Size }

// SetSurvey assigns the survey. Receiver projections must match the
// field size, checked lazily by the builder.
func (s *LinearSimulation) SetSurvey(sv *Survey) { s.survey = sv }

func (s *LinearSimulation) Survey() (*Survey, error) {
	if s.survey == nil {
		return nil, ErrNoSurvey
	}
	return s.survey, nil
}

func (s *LinearSimulation) SetModel(m []float64) error {
	if len(m) != s.Size {
		return fmt.Errorf("%w: model has %d entries, want %d", ErrShape, len(m), s.Size)
	}
	s.model = append(s.model[:0:0], m...)
	return nil
}

func (s *LinearSimulation) Model() ([]float64, error) {
	if s.model == nil {
		return nil, ErrNoModel
	}
	return s.model, nil
}

func (s *LinearSimulation) GetA() (mat.Matrix, error) {
	m, err := s.Model()
	if err != nil {
		return nil, err
	}
	return mat.NewDiagDense(s.Size, m), nil
}

func (s *LinearSimulation) GetRHS() (*mat.Dense, error) {
	sv, err := s.Survey()
	if err != nil {
		return nil, err
	}
	rhs := mat.NewDense(s.Size, len(sv.Sources), nil)
	for j, src := range sv.Sources {
		bs, ok := src.(*BasicSource)
		if !ok {
			return nil, fmt.Errorf("%w: source %d has no excitation vector", ErrShape, j)
		}
		if len(bs.RHS) != s.Size {
			return nil, fmt.Errorf("%w: source %d excitation has %d entries, want %d", ErrShape, j, len(bs.RHS), s.Size)
		}
		rhs.SetCol(j, bs.RHS)
	}
	return rhs, nil
}

// GetADeriv: A(m) u = m .* u, so d(Au)/dm = diag(u) and the adjoint
// product is diag(u) v.
func (s *LinearSimulation) GetADeriv(u *mat.VecDense, v *mat.Dense, adjoint bool) Block {
	rows, cols := v.Dims()
	if rows != s.Size {
		return Zero
	}
	out := mat.NewDense(s.Size, cols, nil)
	for i := 0; i < s.Size; i++ {
		ui := u.AtVec(i)
		for j := 0; j < cols; j++ {
			out.Set(i, j, ui*v.At(i, j))
		}
	}
	_ = adjoint // diag(u) is symmetric
	return NewBlock(out)
}

// GetRHSDeriv: the excitation is model independent.
func (s *LinearSimulation) GetRHSDeriv(src Source, v *mat.Dense, adjoint bool) Block {
	return Zero
}
