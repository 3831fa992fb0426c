package engine

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	"gosbic/domain/model"
	"gosbic/family"
	"gosbic/fit"
	"gosbic/internal/errors"
	"gosbic/internal/testkit"
)

// stubMixture returns a family whose fits above one component come from a
// fixed log-likelihood table, so scores are exactly predictable.
func stubMixture(t *testing.T, maxComponents int, lls map[int]float64, calls *atomic.Int32) *family.GaussianMixture {
	t.Helper()
	f, err := family.NewGaussianMixture(maxComponents)
	if err != nil {
		t.Fatal(err)
	}
	f.SetFitter(func(ctx context.Context, xs []float64, components int, opts model.FitOptions) (fit.Result, error) {
		if calls != nil {
			calls.Add(1)
		}
		ll, ok := lls[components]
		if !ok {
			return fit.Result{}, errors.New(errors.CodeInternalError, "forced failure")
		}
		return fit.Result{LogLike: ll, Converged: true, Restarts: 1}, nil
	})
	return f
}

func fixedSample(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = []float64{float64(i%7) - 3}
	}
	return out
}

func TestScoreTableShape(t *testing.T) {
	f := stubMixture(t, 3, map[int]float64{2: -40, 3: -39}, nil)
	data := fixedSample(20)

	table, err := New().Score(context.Background(), data, f, nil, model.FitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if table.SampleSize != 20 {
		t.Errorf("SampleSize = %d, want 20", table.SampleSize)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(table.Rows))
	}
	logN := math.Log(20)
	for i, row := range table.Rows {
		if row.Model != i+1 {
			t.Errorf("rows must be sorted by id: row %d holds model %d", i, row.Model)
		}
		if !row.OK() {
			t.Fatalf("model %d should have scored: %s", row.Model, row.Err)
		}
		wantBIC := 2*row.LogLike - float64(row.Dimension)*logN
		if math.Abs(row.BIC-wantBIC) > 1e-9 {
			t.Errorf("BIC(%d) = %g, want %g", row.Model, row.BIC, wantBIC)
		}
		// The self stratum participates in every dominance search, so the
		// singular score never drops below BIC plus the log prior.
		if row.SBIC < row.BIC+math.Log(1.0/3)-1e-9 {
			t.Errorf("sBIC(%d) = %g below BIC + log prior = %g", row.Model, row.SBIC, row.BIC+math.Log(1.0/3))
		}
		// The dominant stratum is the model itself or one of its submodels.
		if row.DominantBy < 1 || row.DominantBy > row.Model {
			t.Errorf("DominantBy(%d) = %d must be the model or a submodel", row.Model, row.DominantBy)
		}
	}
	if table.SelectedBIC < 1 || table.SelectedSBIC < 1 {
		t.Errorf("selections missing: BIC=%d sBIC=%d", table.SelectedBIC, table.SelectedSBIC)
	}
}

// TestScoreMinimalModelBoundary verifies the minimal model, which has no
// submodel stratum, scores exactly BIC plus its log prior.
func TestScoreMinimalModelBoundary(t *testing.T) {
	f := stubMixture(t, 3, map[int]float64{2: -40, 3: -39}, nil)

	table, err := New().Score(context.Background(), fixedSample(20), f, nil, model.FitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	minimal := table.Row(1)
	want := minimal.BIC + math.Log(1.0/3)
	if math.Abs(minimal.SBIC-want) > 1e-9 {
		t.Errorf("minimal model sBIC = %g, want BIC + log prior = %g", minimal.SBIC, want)
	}
	if minimal.DominantBy != 1 {
		t.Errorf("minimal model must dominate itself, got %d", minimal.DominantBy)
	}
}

// TestScoreDominantStratum pins the dominance arithmetic of a supermodel.
func TestScoreDominantStratum(t *testing.T) {
	f := stubMixture(t, 3, map[int]float64{2: -40, 3: -39}, nil)

	table, err := New().Score(context.Background(), fixedSample(20), f, nil, model.FitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	logN := math.Log(20)
	top := table.Row(3)
	// Candidates for the 3-component model: lambda(3,1)=2, lambda(3,2)=3,
	// lambda(3,3)=4, all multiplicity 1. The smallest lambda dominates.
	want := 2*top.LogLike - 2*2*logN + math.Log(1.0/3)
	if math.Abs(top.SBIC-want) > 1e-9 {
		t.Errorf("top model sBIC = %g, want %g via the one-component stratum", top.SBIC, want)
	}
	if top.DominantBy != 1 {
		t.Errorf("dominant stratum should be model 1, got %d", top.DominantBy)
	}
}

// TestRescoreNeverRefits verifies the cheap re-scoring path reuses every
// cached fit.
func TestRescoreNeverRefits(t *testing.T) {
	var calls atomic.Int32
	f := stubMixture(t, 3, map[int]float64{2: -40, 3: -39}, &calls)
	eng := New()

	first, err := eng.Score(context.Background(), fixedSample(20), f, nil, model.FitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	fitted := calls.Load()
	if fitted != 2 {
		t.Fatalf("expected 2 fitter calls (component 1 is analytic), got %d", fitted)
	}

	second, err := eng.Rescore(context.Background(), f, nil)
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != fitted {
		t.Errorf("re-scoring must not refit: calls went %d -> %d", fitted, calls.Load())
	}
	for i := range first.Rows {
		if first.Rows[i] != second.Rows[i] {
			t.Errorf("re-score changed row %d: %+v vs %+v", i, first.Rows[i], second.Rows[i])
		}
	}
}

// TestScoreIdempotent verifies two full scoring calls over the same data and
// penalty produce identical tables, including after the rebind refits.
func TestScoreIdempotent(t *testing.T) {
	fam, err := family.NewGaussianMixture(3)
	if err != nil {
		t.Fatal(err)
	}
	data := testkit.SeparatedMixtureData(13, 150, 2)
	opts := model.FitOptions{Restarts: 3, MaxIter: 300, Tol: 1e-5, Seed: 4}
	eng := New()

	first, err := eng.Score(context.Background(), data, fam, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := eng.Score(context.Background(), data, fam, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.SelectedBIC != second.SelectedBIC || first.SelectedSBIC != second.SelectedSBIC {
		t.Errorf("selections changed between identical calls: (%d,%d) vs (%d,%d)",
			first.SelectedBIC, first.SelectedSBIC, second.SelectedBIC, second.SelectedSBIC)
	}
	for i := range first.Rows {
		if first.Rows[i] != second.Rows[i] {
			t.Errorf("row %d differs between identical calls: %+v vs %+v", i, first.Rows[i], second.Rows[i])
		}
	}
}

// TestScoreFitFailureIsolated verifies one failed fit leaves its row
// unavailable without spoiling the table.
func TestScoreFitFailureIsolated(t *testing.T) {
	// Component 2 has no stub entry, so its fit fails.
	f := stubMixture(t, 3, map[int]float64{3: -39}, nil)

	table, err := New().Score(context.Background(), fixedSample(20), f, nil, model.FitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	bad := table.Row(2)
	if bad.OK() || bad.Err == "" {
		t.Fatalf("model 2 should be reported unavailable, got %+v", bad)
	}
	if !math.IsNaN(bad.BIC) || !math.IsNaN(bad.SBIC) || !math.IsNaN(bad.LogLike) {
		t.Errorf("failed fit must leave NaN scores, got BIC=%g sBIC=%g", bad.BIC, bad.SBIC)
	}
	// The other models score from their own fits; their dominance searches
	// need only learning coefficients and priors of model 2, not its fit.
	for _, id := range []int{1, 3} {
		if !table.Row(id).OK() {
			t.Errorf("model %d should be unaffected", id)
		}
	}
	if table.SelectedBIC == 2 || table.SelectedSBIC == 2 {
		t.Error("selection must skip the unavailable row")
	}
}

// TestScoreRequiresData verifies the minimum sample size.
func TestScoreRequiresData(t *testing.T) {
	f := stubMixture(t, 2, map[int]float64{2: -1}, nil)
	_, err := New().Score(context.Background(), [][]float64{{1}}, f, nil, model.FitOptions{})
	if errors.GetCode(err) != errors.CodeDimensionMismatch {
		t.Errorf("single observation should be DIMENSION_MISMATCH, got %v", err)
	}
	_, err = New().Score(context.Background(), nil, f, nil, model.FitOptions{})
	if errors.GetCode(err) != errors.CodeDimensionMismatch {
		t.Errorf("no bound data should be DIMENSION_MISMATCH, got %v", err)
	}
}

// TestScorePenaltyChangesSelection runs the real latent-class EM at a small
// sample size: ordinary BIC keeps fewer classes than the singular score with
// a generous penalty, never more.
func TestScorePenaltyChangesSelection(t *testing.T) {
	fam, err := family.NewLatentClass(8, 4)
	if err != nil {
		t.Fatal(err)
	}
	data := testkit.BinaryClassData(31, 50, 8, 4)
	opts := model.FitOptions{Restarts: 3, MaxIter: 300, Tol: 1e-5, Seed: 9}

	eng := NewWithWorkers(2)
	table, err := eng.Score(context.Background(), data, fam, &model.Penalty{Phi: 4}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if table.SelectedBIC > table.SelectedSBIC {
		t.Errorf("singular score should never select fewer classes: BIC=%d sBIC=%d",
			table.SelectedBIC, table.SelectedSBIC)
	}

	// Re-scoring under a milder penalty reuses the same fits.
	before := fam.FitCount()
	if _, err := eng.Rescore(context.Background(), fam, &model.Penalty{Phi: 1}); err != nil {
		t.Fatal(err)
	}
	if fam.FitCount() != before {
		t.Errorf("penalty sweep must not refit: %d -> %d", before, fam.FitCount())
	}
}
