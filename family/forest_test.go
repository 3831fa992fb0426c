package family

import (
	"context"
	"math"
	"testing"

	"gosbic/domain/model"
	"gosbic/internal/errors"
	"gosbic/internal/testkit"
)

func TestNewGaussianForestValidation(t *testing.T) {
	if _, err := NewGaussianForest(1, nil); err == nil {
		t.Error("one variable should be rejected")
	}
	if _, err := NewGaussianForest(3, [][2]int{{0, 1}, {1, 2}, {2, 0}}); err == nil {
		t.Error("cyclic tree edges should be rejected")
	}
	if _, err := NewGaussianForest(3, [][2]int{{0, 3}}); err == nil {
		t.Error("out-of-range endpoint should be rejected")
	}
	if _, err := NewGaussianForest(3, [][2]int{{1, 1}}); err == nil {
		t.Error("self-loop should be rejected")
	}
}

func TestGaussianForestPoset(t *testing.T) {
	// Path over 3 variables: 2 tree edges, 4 edge subsets.
	f, err := NewGaussianForest(3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if f.NumModels() != 4 {
		t.Fatalf("NumModels = %d, want 4", f.NumModels())
	}

	// Complexity is the popcount of the edge mask.
	wantEdges := []int{0, 1, 1, 2}
	for id := 1; id <= 4; id++ {
		c, err := f.Complexity(id)
		if err != nil {
			t.Fatal(err)
		}
		if c != wantEdges[id-1] {
			t.Errorf("Complexity(%d) = %d, want %d", id, c, wantEdges[id-1])
		}
		d, _ := f.GetDimension(id)
		if d != 3+c {
			t.Errorf("dim(%d) = %d, want %d", id, d, 3+c)
		}
	}

	// The single-edge models are incomparable; the full forest contains both.
	if _, err := f.LearnCoef(2, 3); errors.GetCode(err) != errors.CodeInvalidRelation {
		t.Errorf("incomparable pair should be INVALID_RELATION, got %v", err)
	}
	anc, err := f.Ancestors(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(anc) != 3 {
		t.Errorf("Ancestors(1) = %v, want all three supermodels", anc)
	}
}

func TestGaussianForestLearnCoef(t *testing.T) {
	f, _ := NewGaussianForest(3, nil)
	for id := 1; id <= 4; id++ {
		coef, err := f.LearnCoef(id, id)
		if err != nil {
			t.Fatal(err)
		}
		dim, _ := f.GetDimension(id)
		if math.Abs(coef.Lambda-float64(dim)/2) > 1e-12 {
			t.Errorf("self pair (%d,%d): lambda = %g, want %g", id, id, coef.Lambda, float64(dim)/2)
		}
	}
	// Full forest over the empty one: (dim(1) + 2/2)/2 = (3+1)/2 = 2,
	// against the regular dim(4)/2 = 2.5.
	coef, err := f.LearnCoef(4, 1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(coef.Lambda-2) > 1e-12 {
		t.Errorf("lambda(4,1) = %g, want 2", coef.Lambda)
	}
}

func TestGaussianForestLogLikeMle(t *testing.T) {
	f, _ := NewGaussianForest(3, nil)
	if err := f.SetData(testkit.PathForestData(23, 150, 3, 0.7)); err != nil {
		t.Fatal(err)
	}
	llEmpty, err := f.LogLikeMle(context.Background(), 1, model.FitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	llFull, err := f.LogLikeMle(context.Background(), 4, model.FitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if llFull <= llEmpty {
		t.Errorf("full forest should beat independence on correlated data: full=%g empty=%g", llFull, llEmpty)
	}
}
