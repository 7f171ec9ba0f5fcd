package mixture

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	kmeansMaxIter   = 50
	kmeansTolerance = 1e-6
)

// kmeansSeed performs volume-weighted k-means clustering and returns the
// per-sample cluster labels, used to seed EM responsibilities. Centroid
// updates and the k-means++ style initialization both weight samples by
// volume.
func kmeansSeed(X *mat.Dense, volumes []float64, k int, rng *rand.Rand) []int {
	n, d := X.Dims()
	if k > n {
		k = n
	}

	centroids := initCentroids(X, volumes, k, rng)
	assignments := make([]int, n)
	prev := mat.NewDense(k, d, nil)

	for iter := 0; iter < kmeansMaxIter; iter++ {
		// Assignment step: nearest centroid by squared distance.
		for i := 0; i < n; i++ {
			x := X.RawRowView(i)
			minDist := math.MaxFloat64
			for j := 0; j < k; j++ {
				dist := sqDistance(x, centroids.RawRowView(j))
				if dist < minDist {
					minDist = dist
					assignments[i] = j
				}
			}
		}

		// Update step: volume-weighted centroid means.
		prev.Copy(centroids)
		sums := mat.NewDense(k, d, nil)
		sizes := make([]float64, k)
		for i := 0; i < n; i++ {
			j := assignments[i]
			v := volumes[i]
			sizes[j] += v
			row := sums.RawRowView(j)
			floats.AddScaled(row, v, X.RawRowView(i))
		}
		for j := 0; j < k; j++ {
			if sizes[j] > 0 {
				row := sums.RawRowView(j)
				floats.Scale(1/sizes[j], row)
				centroids.SetRow(j, row)
				continue
			}
			// Empty cluster: reseed from a random sample.
			centroids.SetRow(j, X.RawRowView(rng.Intn(n)))
		}

		var change float64
		for j := 0; j < k; j++ {
			change += sqDistance(prev.RawRowView(j), centroids.RawRowView(j))
		}
		if change < kmeansTolerance {
			break
		}
	}
	return assignments
}

// initCentroids picks k starting centroids: the first uniformly at random,
// the rest with probability proportional to volume times squared distance
// to the nearest chosen centroid.
func initCentroids(X *mat.Dense, volumes []float64, k int, rng *rand.Rand) *mat.Dense {
	n, d := X.Dims()
	centroids := mat.NewDense(k, d, nil)
	centroids.SetRow(0, X.RawRowView(rng.Intn(n)))

	distances := make([]float64, n)
	for c := 1; c < k; c++ {
		var total float64
		for i := 0; i < n; i++ {
			x := X.RawRowView(i)
			minDist := math.MaxFloat64
			for j := 0; j < c; j++ {
				if dist := sqDistance(x, centroids.RawRowView(j)); dist < minDist {
					minDist = dist
				}
			}
			distances[i] = volumes[i] * minDist
			total += distances[i]
		}

		idx := n - 1
		if total == 0 {
			idx = rng.Intn(n)
		} else {
			target := rng.Float64() * total
			var cumulative float64
			for i := 0; i < n; i++ {
				cumulative += distances[i]
				if cumulative >= target {
					idx = i
					break
				}
			}
		}
		centroids.SetRow(c, X.RawRowView(idx))
	}
	return centroids
}

func sqDistance(a, b []float64) float64 {
	var s float64
	for i := range a {
		dev := a[i] - b[i]
		s += dev * dev
	}
	return s
}
