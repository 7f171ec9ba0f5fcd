package mixture

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func isIdentity(perm []int) bool {
	for i, p := range perm {
		if p != i {
			return false
		}
	}
	return true
}

func isPermutation(perm []int) bool {
	seen := make([]bool, len(perm))
	for _, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}

func TestOrderByWeightIdempotent(t *testing.T) {
	m := mixture1D(t, []float64{0.2, 0.5, 0.3}, []float64{1, 2, 3}, []float64{1, 1, 1})

	if _, err := m.OrderByWeight(); err != nil {
		t.Fatalf("OrderByWeight: %v", err)
	}
	if m.Weights[0] != 0.5 || m.Weights[1] != 0.3 || m.Weights[2] != 0.2 {
		t.Fatalf("weights after ordering = %v, want descending", m.Weights)
	}
	// The means must travel with their weights.
	if m.Means.At(0, 0) != 2 || m.Means.At(1, 0) != 3 || m.Means.At(2, 0) != 1 {
		t.Fatalf("means after ordering = %v", mat.Formatted(m.Means))
	}

	perm, err := m.OrderByWeight()
	if err != nil {
		t.Fatalf("OrderByWeight (second): %v", err)
	}
	if !isIdentity(perm) {
		t.Fatalf("reordering an ordered mixture gave %v, want identity", perm)
	}
}

func TestOrderByMean(t *testing.T) {
	m := mixture1D(t, []float64{0.3, 0.3, 0.4}, []float64{1, 5, 3}, []float64{1, 1, 1})
	if _, err := m.OrderByMean(); err != nil {
		t.Fatalf("OrderByMean: %v", err)
	}
	if m.Means.At(0, 0) != 5 || m.Means.At(1, 0) != 3 || m.Means.At(2, 0) != 1 {
		t.Fatalf("means after ordering = %v", mat.Formatted(m.Means))
	}
	if m.Weights[0] != 0.3 || m.Weights[1] != 0.4 || m.Weights[2] != 0.3 {
		t.Fatalf("weights after ordering = %v", m.Weights)
	}
}

func TestMatchToReferenceBijection(t *testing.T) {
	// Fitted labels are swapped relative to the reference; matching must
	// produce a bijection that restores the reference labeling.
	fitted := mixture1D(t, []float64{0.5, 0.5}, []float64{5, 1}, []float64{0.5, 0.5})
	ref := mixture1D(t, []float64{0.5, 0.5}, []float64{1, 5}, []float64{1, 1})

	perm, err := fitted.MatchToReference(ref)
	if err != nil {
		t.Fatalf("MatchToReference: %v", err)
	}
	if !isPermutation(perm) {
		t.Fatalf("perm %v is not a bijection", perm)
	}
	if fitted.Means.At(0, 0) != 1 || fitted.Means.At(1, 0) != 5 {
		t.Fatalf("means after matching = %v", mat.Formatted(fitted.Means))
	}
}

func TestMatchToReferenceComponentMismatch(t *testing.T) {
	fitted := mixture1D(t, []float64{0.5, 0.5}, []float64{1, 5}, []float64{1, 1})
	ref := mixture1D(t, []float64{1}, []float64{1}, []float64{1})
	if _, err := fitted.MatchToReference(ref); err != ErrComponentMismatch {
		t.Fatalf("component mismatch: %v, want ErrComponentMismatch", err)
	}
}

func TestPermutationMovesAllParameters(t *testing.T) {
	m := mixture1D(t, []float64{0.1, 0.9}, []float64{1, 5}, []float64{0.25, 4})
	m.Mappings = []Mapping{Identity{}, Exp{}}
	m.LocalWeights = mat.NewDense(2, 2, []float64{
		0.1, 0.9,
		0.2, 0.8,
	})

	if _, err := m.OrderByWeight(); err != nil {
		t.Fatalf("OrderByWeight: %v", err)
	}

	// Component 1 (weight 0.9, mean 5, var 4, Exp mapping) moved to slot 0.
	if m.Means.At(0, 0) != 5 {
		t.Fatalf("mean not moved: %v", m.Means.At(0, 0))
	}
	if got := m.Covariances.Full[0].At(0, 0); got != 4 {
		t.Fatalf("covariance not moved: %v", got)
	}
	if _, ok := m.Mappings[0].(Exp); !ok {
		t.Fatalf("mapping not moved: %T", m.Mappings[0])
	}
	if m.LocalWeights.At(0, 0) != 0.9 || m.LocalWeights.At(1, 0) != 0.8 {
		t.Fatal("local weight columns not moved")
	}
	// Precisions recomputed for the new order.
	if got := m.Precisions.Full[0].At(0, 0); !closeTo(got, 0.25, 1e-12) {
		t.Fatalf("precision not recomputed: %v", got)
	}
}
