package mixture

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// PairwiseDistances returns the Euclidean distance matrix between the rows
// of a and b, plus the index of the nearest row of b for each row of a.
func PairwiseDistances(a, b *mat.Dense) (*mat.Dense, []int, error) {
	n, d := a.Dims()
	t, d1 := b.Dims()
	if d != d1 {
		return nil, nil, ErrColumnMismatch
	}

	dist := mat.NewDense(n, t, nil)
	nearest := make([]int, n)
	for i := 0; i < n; i++ {
		x := a.RawRowView(i)
		best := math.MaxFloat64
		for j := 0; j < t; j++ {
			s := math.Sqrt(sqDistance(x, b.RawRowView(j)))
			dist.Set(i, j, s)
			if s < best {
				best = s
				nearest[i] = j
			}
		}
	}
	return dist, nearest, nil
}
