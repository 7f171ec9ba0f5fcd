package jacobian

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/petroseis/pgi/internal/metrics"
)

// ErrSingular is returned when factorization of the system matrix fails.
var ErrSingular = errors.New("system matrix is singular")

// Factorization is a factorized system matrix. Solve writes A⁻¹ rhs into
// dst, or A⁻ᵀ rhs when trans is set.
type Factorization interface {
	Solve(dst *mat.Dense, trans bool, rhs mat.Matrix) error
}

// Solver produces factorizations. A Solver may factorize asynchronously;
// the returned handle is the only way to reach the result, so every
// consumer blocks through Wait rather than inspecting the handle's state.
type Solver interface {
	Factorize(ctx context.Context, a mat.Matrix) *SolveHandle
}

// SolveHandle is the pending-vs-ready result of a factorization. A ready
// handle returns immediately from Wait; a pending one blocks until the
// factorization resolves or the context is cancelled.
type SolveHandle struct {
	done chan struct{}
	fact Factorization
	err  error
}

// ReadyHandle wraps an already-computed factorization result.
func ReadyHandle(fact Factorization, err error) *SolveHandle {
	h := &SolveHandle{done: make(chan struct{}), fact: fact, err: err}
	close(h.done)
	return h
}

// PendingHandle returns an unresolved handle and the resolve function
// that completes it. Resolve must be called exactly once.
func PendingHandle() (*SolveHandle, func(Factorization, error)) {
	h := &SolveHandle{done: make(chan struct{})}
	return h, func(fact Factorization, err error) {
		h.fact = fact
		h.err = err
		close(h.done)
	}
}

// Wait blocks until the factorization is available. Time spent blocked
// is recorded in the solver wait metric.
func (h *SolveHandle) Wait(ctx context.Context) (Factorization, error) {
	start := time.Now()
	select {
	case <-h.done:
		metrics.SolverWaitSeconds.Add(time.Since(start).Seconds())
		return h.fact, h.err
	case <-ctx.Done():
		metrics.SolverWaitSeconds.Add(time.Since(start).Seconds())
		return nil, ctx.Err()
	}
}

// LUSolver factorizes synchronously with a dense LU decomposition.
type LUSolver struct{}

type luFactorization struct {
	lu mat.LU
}

func (f *luFactorization) Solve(dst *mat.Dense, trans bool, rhs mat.Matrix) error {
	if err := f.lu.SolveTo(dst, trans, rhs); err != nil {
		return fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return nil
}

func (LUSolver) Factorize(ctx context.Context, a mat.Matrix) *SolveHandle {
	f := &luFactorization{}
	f.lu.Factorize(a)
	return ReadyHandle(f, nil)
}

// AsyncSolver runs an inner solver's factorization on its own goroutine
// and hands back a pending handle immediately.
type AsyncSolver struct {
	Inner Solver
}

func (s AsyncSolver) Factorize(ctx context.Context, a mat.Matrix) *SolveHandle {
	inner := s.Inner
	if inner == nil {
		inner = LUSolver{}
	}
	h, resolve := PendingHandle()
	go func() {
		resolve(inner.Factorize(ctx, a).Wait(ctx))
	}()
	return h
}
