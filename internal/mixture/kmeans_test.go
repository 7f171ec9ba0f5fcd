package mixture

import (
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func TestKmeansSeedSeparatesClusters(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{
		0, 0.1, -0.1,
		10, 10.1, 9.9,
	})
	labels := kmeansSeed(X, unitVolumes(6), 2, rand.New(rand.NewSource(2)))

	if labels[0] != labels[1] || labels[1] != labels[2] {
		t.Fatalf("low cluster split: %v", labels)
	}
	if labels[3] != labels[4] || labels[4] != labels[5] {
		t.Fatalf("high cluster split: %v", labels)
	}
	if labels[0] == labels[3] {
		t.Fatalf("clusters merged: %v", labels)
	}
}

func TestKmeansSeedClampsClusterCount(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 1})
	labels := kmeansSeed(X, unitVolumes(2), 5, rand.New(rand.NewSource(1)))
	for i, l := range labels {
		if l < 0 || l >= 2 {
			t.Fatalf("label %d = %d out of range", i, l)
		}
	}
}

func TestKmeansSeedVolumeWeightedCentroids(t *testing.T) {
	// One heavy sample at 0 against two light ones near 12: with k = 1 the
	// single centroid is volume-weighted, which the assignment step cannot
	// observe, so check through the seeded labels of a 2-cluster run where
	// the heavy low group must stay together.
	X := mat.NewDense(4, 1, []float64{0, 0.2, 12, 12.2})
	labels := kmeansSeed(X, []float64{100, 100, 1, 1}, 2, rand.New(rand.NewSource(4)))
	if labels[0] != labels[1] || labels[2] != labels[3] || labels[0] == labels[2] {
		t.Fatalf("volume-weighted partition wrong: %v", labels)
	}
}
