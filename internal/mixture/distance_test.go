package mixture

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPairwiseDistances(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{
		0, 0,
		3, 4,
	})
	b := mat.NewDense(3, 2, []float64{
		0, 0,
		3, 4,
		6, 8,
	})

	dist, nearest, err := PairwiseDistances(a, b)
	if err != nil {
		t.Fatalf("PairwiseDistances: %v", err)
	}

	want := [][]float64{
		{0, 5, 10},
		{5, 0, 5},
	}
	for i := range want {
		for j := range want[i] {
			if !closeTo(dist.At(i, j), want[i][j], 1e-12) {
				t.Fatalf("dist[%d][%d] = %v, want %v", i, j, dist.At(i, j), want[i][j])
			}
		}
	}
	if nearest[0] != 0 || nearest[1] != 1 {
		t.Fatalf("nearest = %v, want [0 1]", nearest)
	}
}

func TestPairwiseDistancesColumnMismatch(t *testing.T) {
	a := mat.NewDense(1, 2, []float64{0, 0})
	b := mat.NewDense(1, 3, []float64{0, 0, 0})
	if _, _, err := PairwiseDistances(a, b); err != ErrColumnMismatch {
		t.Fatalf("column mismatch: %v, want ErrColumnMismatch", err)
	}
}
