package family

import (
	"context"
	"math"
	"testing"

	"gosbic/domain/model"
	"gosbic/internal/errors"
	"gosbic/internal/testkit"
)

func TestNewReducedRankValidation(t *testing.T) {
	if _, err := NewReducedRank(0, 2, 1); err == nil {
		t.Error("zero covariates should be rejected")
	}
	if _, err := NewReducedRank(3, 2, 3); err == nil {
		t.Error("maxRank above min(N,M) should be rejected")
	}
	f, err := NewReducedRank(3, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	// Ranks 0..2, one model each.
	if f.NumModels() != 3 {
		t.Errorf("NumModels = %d, want 3", f.NumModels())
	}
}

func TestReducedRankDimensions(t *testing.T) {
	f, _ := NewReducedRank(3, 2, 2)
	// h(M+N-h) with M=2, N=3.
	want := []int{0, 4, 6}
	for id := 1; id <= 3; id++ {
		d, err := f.GetDimension(id)
		if err != nil {
			t.Fatal(err)
		}
		if d != want[id-1] {
			t.Errorf("dim(%d) = %d, want %d", id, d, want[id-1])
		}
	}
}

// TestAoyagiWatanabe checks the exact learning coefficient against known
// special cases.
func TestAoyagiWatanabe(t *testing.T) {
	cases := []struct {
		m, n, h, r int
		lambda     float64
		mult       int
	}{
		// Scalar regression of one response on one covariate at true rank 0.
		{1, 1, 1, 0, 0.5, 2},
		// Regular point: model rank equals true rank, lambda = h(M+N-h)/2.
		{2, 3, 2, 2, 3, 1},
		{2, 3, 0, 0, 0, 1},
		// Saturated case M+N <= h+r.
		{1, 1, 1, 1, 0.5, 1},
		// First side case N+h <= M+r: lambda = (hN - hr + Mr)/2.
		{5, 2, 1, 1, 3, 1},
		// Middle case with even sum, multiplicity 1.
		{3, 3, 2, 0, 2.5, 1},
	}
	for _, c := range cases {
		lambda, mult := aoyagiWatanabe(c.m, c.n, c.h, c.r)
		if math.Abs(lambda-c.lambda) > 1e-12 || mult != c.mult {
			t.Errorf("aoyagiWatanabe(M=%d,N=%d,h=%d,r=%d) = (%g, %d), want (%g, %d)",
				c.m, c.n, c.h, c.r, lambda, mult, c.lambda, c.mult)
		}
	}
}

func TestReducedRankLearnCoefSelf(t *testing.T) {
	f, _ := NewReducedRank(3, 2, 2)
	for id := 1; id <= 3; id++ {
		coef, err := f.LearnCoef(id, id)
		if err != nil {
			t.Fatal(err)
		}
		dim, _ := f.GetDimension(id)
		if math.Abs(coef.Lambda-float64(dim)/2) > 1e-12 {
			t.Errorf("self pair (%d,%d): lambda = %g, want %g", id, id, coef.Lambda, float64(dim)/2)
		}
	}
	if _, err := f.LearnCoef(1, 2); errors.GetCode(err) != errors.CodeInvalidRelation {
		t.Errorf("expected INVALID_RELATION, got %v", err)
	}
}

func TestReducedRankLogLikeMle(t *testing.T) {
	f, _ := NewReducedRank(3, 2, 2)
	if err := f.SetData(testkit.RegressionData(17, 60, 3, 2, 1)); err != nil {
		t.Fatal(err)
	}
	prev := math.Inf(-1)
	for id := 1; id <= 3; id++ {
		ll, err := f.LogLikeMle(context.Background(), id, model.FitOptions{})
		if err != nil {
			t.Fatalf("model %d: %v", id, err)
		}
		if ll < prev-1e-9 {
			t.Errorf("log-likelihood must be non-decreasing in rank: ll(%d)=%g prev=%g", id, ll, prev)
		}
		prev = ll
	}
	if f.FitCount() != 3 {
		t.Errorf("expected three cached fits, got %d", f.FitCount())
	}
}
