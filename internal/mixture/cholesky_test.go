package mixture

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// covariance containers used by the round-trip test, one per family.
func familyCovariances() map[CovarianceType]*Covariances {
	full := NewFullCovariances(2, 2)
	full.Full[0].SetSym(0, 0, 2)
	full.Full[0].SetSym(0, 1, 0.3)
	full.Full[0].SetSym(1, 1, 1.5)
	full.Full[1].SetSym(0, 0, 0.8)
	full.Full[1].SetSym(0, 1, -0.2)
	full.Full[1].SetSym(1, 1, 1.1)

	tied := mat.NewSymDense(2, nil)
	tied.SetSym(0, 0, 1.7)
	tied.SetSym(0, 1, 0.4)
	tied.SetSym(1, 1, 0.9)

	return map[CovarianceType]*Covariances{
		CovFull:      full,
		CovTied:      {Type: CovTied, Tied: tied},
		CovDiag:      {Type: CovDiag, Diag: mat.NewDense(2, 2, []float64{1.2, 0.5, 2.5, 0.7})},
		CovSpherical: {Type: CovSpherical, Spherical: []float64{0.6, 3.1}},
	}
}

func covValues(c *Covariances) []float64 {
	switch c.Type {
	case CovFull:
		var out []float64
		for _, s := range c.Full {
			d := s.SymmetricDim()
			for p := 0; p < d; p++ {
				for q := p; q < d; q++ {
					out = append(out, s.At(p, q))
				}
			}
		}
		return out
	case CovTied:
		d := c.Tied.SymmetricDim()
		var out []float64
		for p := 0; p < d; p++ {
			for q := p; q < d; q++ {
				out = append(out, c.Tied.At(p, q))
			}
		}
		return out
	case CovDiag:
		r, cc := c.Diag.Dims()
		out := make([]float64, 0, r*cc)
		for i := 0; i < r; i++ {
			out = append(out, c.Diag.RawRowView(i)...)
		}
		return out
	case CovSpherical:
		return c.Spherical
	}
	return nil
}

func TestPrecisionRoundTrip(t *testing.T) {
	for covType, covs := range familyCovariances() {
		t.Run(string(covType), func(t *testing.T) {
			m := &Mixture{
				Components:  2,
				Features:    2,
				CovType:     covType,
				Covariances: covs.Clone(),
			}
			if err := m.computePrecisions(); err != nil {
				t.Fatalf("computePrecisions: %v", err)
			}
			if err := m.computeCovariancesFromPrecisions(); err != nil {
				t.Fatalf("computeCovariancesFromPrecisions: %v", err)
			}

			orig := covValues(covs)
			got := covValues(m.Covariances)
			if len(orig) != len(got) {
				t.Fatalf("value count changed: %d vs %d", len(orig), len(got))
			}
			for i := range orig {
				if !closeTo(orig[i], got[i], 1e-10) {
					t.Fatalf("round trip drifted at %d: %v vs %v", i, orig[i], got[i])
				}
			}
		})
	}
}

func TestPrecisionCholeskyRejectsIndefinite(t *testing.T) {
	bad := &Covariances{Type: CovDiag, Diag: mat.NewDense(1, 2, []float64{1, -0.5})}
	if _, err := precisionCholesky(bad); err != ErrNotPositiveDefinite {
		t.Fatalf("negative variance: %v, want ErrNotPositiveDefinite", err)
	}

	sym := mat.NewSymDense(2, []float64{1, 2, 2, 1}) // eigenvalues 3, -1
	if _, err := invertSPD(sym); err != ErrNotPositiveDefinite {
		t.Fatalf("indefinite matrix: %v, want ErrNotPositiveDefinite", err)
	}
}

func TestLogDetMatchesFamilies(t *testing.T) {
	// For a diagonal covariance with variances v, the precision Cholesky
	// log-determinant is -0.5*sum(log v).
	covs := &Covariances{Type: CovDiag, Diag: mat.NewDense(1, 2, []float64{4, 0.25})}
	ch, err := precisionCholesky(covs)
	if err != nil {
		t.Fatalf("precisionCholesky: %v", err)
	}
	want := -0.5 * (math.Log(4) + math.Log(0.25))
	if got := ch.logDet(0, 2); !closeTo(got, want, 1e-12) {
		t.Fatalf("logDet = %v, want %v", got, want)
	}
}
