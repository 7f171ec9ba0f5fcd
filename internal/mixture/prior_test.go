package mixture

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func tiedMixture1D(t *testing.T, weights, means []float64, variance float64) *Mixture {
	t.Helper()
	k := len(weights)
	covs := &Covariances{Type: CovTied, Tied: mat.NewSymDense(1, []float64{variance})}
	m, err := NewMixture(CovTied, weights, mat.NewDense(k, 1, means), covs, nil)
	if err != nil {
		t.Fatalf("NewMixture: %v", err)
	}
	return m
}

func TestApplyPriorZeroConfidenceIsNoOp(t *testing.T) {
	m := mixture1D(t, []float64{0.6, 0.4}, []float64{1, 5}, []float64{0.5, 2})
	ref := mixture1D(t, []float64{0.6, 0.4}, []float64{1, 5}, []float64{0.5, 2})

	p := NewUniformPrior(ref, 0, 0, 0)
	p.UpdateCovariances = true
	if err := m.ApplyPrior(p); err != nil {
		t.Fatalf("ApplyPrior: %v", err)
	}

	for k := 0; k < 2; k++ {
		if !closeTo(m.Weights[k], ref.Weights[k], 1e-12) {
			t.Fatalf("weight %d changed: %v", k, m.Weights[k])
		}
		if !closeTo(m.Means.At(k, 0), ref.Means.At(k, 0), 1e-12) {
			t.Fatalf("mean %d changed: %v", k, m.Means.At(k, 0))
		}
		if !closeTo(m.Covariances.Full[k].At(0, 0), ref.Covariances.Full[k].At(0, 0), 1e-12) {
			t.Fatalf("covariance %d changed: %v", k, m.Covariances.Full[k].At(0, 0))
		}
	}
}

func TestApplyPriorStrongConfidenceMatchesReference(t *testing.T) {
	ref := mixture1D(t, []float64{0.6, 0.4}, []float64{1, 5}, []float64{1, 1.5})

	for _, updateCov := range []bool{true, false} {
		m := mixture1D(t, []float64{0.7, 0.3}, []float64{1.2, 4.8}, []float64{2, 3})
		p := NewUniformPrior(ref, 1e8, 1e8, 1e8)
		p.UpdateCovariances = updateCov
		if err := m.ApplyPrior(p); err != nil {
			t.Fatalf("ApplyPrior(updateCov=%v): %v", updateCov, err)
		}

		for k := 0; k < 2; k++ {
			if !closeTo(m.Weights[k], ref.Weights[k], 1e-6) {
				t.Fatalf("updateCov=%v: weight %d = %v, want %v", updateCov, k, m.Weights[k], ref.Weights[k])
			}
			if !closeTo(m.Means.At(k, 0), ref.Means.At(k, 0), 1e-6) {
				t.Fatalf("updateCov=%v: mean %d = %v, want %v", updateCov, k, m.Means.At(k, 0), ref.Means.At(k, 0))
			}
			if !closeTo(m.Covariances.Full[k].At(0, 0), ref.Covariances.Full[k].At(0, 0), 1e-6) {
				t.Fatalf("updateCov=%v: covariance %d = %v, want %v",
					updateCov, k, m.Covariances.Full[k].At(0, 0), ref.Covariances.Full[k].At(0, 0))
			}
		}
	}
}

func TestApplyPriorAlignsToReference(t *testing.T) {
	// The fitted labels are scrambled relative to the reference; even a
	// zero-confidence prior must restore the reference labeling.
	m := mixture1D(t, []float64{0.4, 0.6}, []float64{5, 1}, []float64{2, 0.5})
	ref := mixture1D(t, []float64{0.6, 0.4}, []float64{1, 5}, []float64{1, 1})

	p := NewUniformPrior(ref, 0, 0, 0)
	p.UpdateCovariances = true
	if err := m.ApplyPrior(p); err != nil {
		t.Fatalf("ApplyPrior: %v", err)
	}

	if m.Means.At(0, 0) != 1 || m.Means.At(1, 0) != 5 {
		t.Fatalf("means not aligned: %v", mat.Formatted(m.Means))
	}
	if m.Weights[0] != 0.6 || m.Weights[1] != 0.4 {
		t.Fatalf("weights not aligned: %v", m.Weights)
	}
	if m.Covariances.Full[0].At(0, 0) != 0.5 || m.Covariances.Full[1].At(0, 0) != 2 {
		t.Fatal("covariances not aligned")
	}
}

func TestApplyPriorFullModeShiftsDiagonal(t *testing.T) {
	ref := mixture1D(t, []float64{1}, []float64{2}, []float64{1})

	semi := mixture1D(t, []float64{1}, []float64{0}, []float64{1})
	pSemi := NewUniformPrior(ref, 1, 1, 0)
	pSemi.UpdateCovariances = true
	if err := semi.ApplyPrior(pSemi); err != nil {
		t.Fatalf("ApplyPrior (semi): %v", err)
	}

	full := mixture1D(t, []float64{1}, []float64{0}, []float64{1})
	pFull := NewUniformPrior(ref, 1, 1, 0)
	pFull.UpdateCovariances = true
	pFull.Mode = PriorFull
	if err := full.ApplyPrior(pFull); err != nil {
		t.Fatalf("ApplyPrior (full): %v", err)
	}

	// Both modes blend the mean halfway and the covariance to 1; full mode
	// adds the mean-shift correction kappa*w*dev^2/(kappa+w)/(w+refW*nu) = 1.
	if !closeTo(semi.Means.At(0, 0), 1, 1e-12) || !closeTo(full.Means.At(0, 0), 1, 1e-12) {
		t.Fatalf("blended means = %v, %v, want 1", semi.Means.At(0, 0), full.Means.At(0, 0))
	}
	if got := semi.Covariances.Full[0].At(0, 0); !closeTo(got, 1, 1e-12) {
		t.Fatalf("semi covariance = %v, want 1", got)
	}
	if got := full.Covariances.Full[0].At(0, 0); !closeTo(got, 2, 1e-12) {
		t.Fatalf("full covariance = %v, want 2", got)
	}
}

func TestApplyPriorTiedBlendsSharedMatrix(t *testing.T) {
	m := tiedMixture1D(t, []float64{0.5, 0.5}, []float64{1, 5}, 2)
	ref := tiedMixture1D(t, []float64{0.5, 0.5}, []float64{1, 5}, 1)

	p := NewUniformPrior(ref, 0, 1e8, 0)
	p.UpdateCovariances = true
	if err := m.ApplyPrior(p); err != nil {
		t.Fatalf("ApplyPrior: %v", err)
	}

	if got := m.Covariances.Tied.At(0, 0); !closeTo(got, 1, 1e-6) {
		t.Fatalf("tied covariance = %v, want 1", got)
	}
	if m.Means.At(0, 0) != 1 || m.Means.At(1, 0) != 5 {
		t.Fatalf("means changed under zero kappa: %v", mat.Formatted(m.Means))
	}
}

func TestApplyPriorLocalWeights(t *testing.T) {
	m := mixture1D(t, []float64{0.5, 0.5}, []float64{1, 5}, []float64{1, 1})
	m.LocalWeights = mat.NewDense(2, 2, []float64{
		0.5, 0.5,
		0.5, 0.5,
	})
	ref := mixture1D(t, []float64{0.8, 0.2}, []float64{1, 5}, []float64{1, 1})

	p := NewUniformPrior(ref, 0, 0, 1e8)
	p.UpdateCovariances = true
	if err := m.ApplyPrior(p); err != nil {
		t.Fatalf("ApplyPrior: %v", err)
	}

	n, k := m.LocalWeights.Dims()
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < k; j++ {
			sum += m.LocalWeights.At(i, j)
		}
		if !closeTo(sum, 1, 1e-10) {
			t.Fatalf("row %d sums to %v", i, sum)
		}
		if !closeTo(m.LocalWeights.At(i, 0), 0.8, 1e-6) {
			t.Fatalf("row %d not pulled to reference: %v", i, m.LocalWeights.At(i, 0))
		}
	}
	if !closeTo(m.Weights[0], 0.8, 1e-6) {
		t.Fatalf("global weights not refreshed: %v", m.Weights)
	}
}

func TestApplyPriorValidation(t *testing.T) {
	m := mixture1D(t, []float64{0.5, 0.5}, []float64{1, 5}, []float64{1, 1})

	if err := m.ApplyPrior(&Prior{}); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("nil reference: %v, want ErrNotFitted", err)
	}

	ref1 := mixture1D(t, []float64{1}, []float64{1}, []float64{1})
	if err := m.ApplyPrior(NewUniformPrior(ref1, 1, 1, 1)); err != ErrComponentMismatch {
		t.Fatalf("component mismatch: %v, want ErrComponentMismatch", err)
	}

	ref := mixture1D(t, []float64{0.5, 0.5}, []float64{1, 5}, []float64{1, 1})
	bad := NewUniformPrior(ref, 1, 1, 1)
	bad.Zeta = bad.Zeta[:1]
	if err := m.ApplyPrior(bad); !errors.Is(err, ErrWeightsShape) {
		t.Fatalf("short confidence vector: %v, want ErrWeightsShape", err)
	}
}
