// Package engine computes ordinary and singular BIC scores over a populated
// model poset. Fitting is delegated to the family's memoized fit capability,
// so re-scoring after a penalty change never refits.
package engine

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/semaphore"

	"gosbic/domain/model"
	"gosbic/family"
	"gosbic/internal"
	"gosbic/internal/errors"
)

// Engine scores a model family. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	workers int
	logger  *internal.Logger
}

// New creates an engine fitting up to runtime.NumCPU() models concurrently.
func New() *Engine {
	return NewWithWorkers(runtime.NumCPU())
}

// NewWithWorkers creates an engine with an explicit fit-concurrency bound.
func NewWithWorkers(workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{workers: workers, logger: internal.DefaultLogger}
}

// Score computes the score table for every model in the family.
//
// If data is non-nil it is bound first (full refit path); a nil data
// argument reuses whatever fits are already cached (cheap re-scoring path).
// A non-nil penalty is propagated to the family before any learning
// coefficient is read; this never touches the fit cache. A fit failure for
// one model marks that row unavailable and never aborts the call.
func (e *Engine) Score(ctx context.Context, data [][]float64, fam family.ModelPoset, penalty *model.Penalty, opts model.FitOptions) (*model.ScoreTable, error) {
	if data != nil {
		if err := fam.SetData(data); err != nil {
			return nil, err
		}
	}
	if penalty != nil {
		if pa, ok := fam.(family.PhiAware); ok {
			pa.SetPhi(penalty.Phi)
		}
	}
	n := fam.SampleSize()
	if n < 2 {
		return nil, errors.DimensionMismatch("scoring needs at least two bound observations")
	}

	logLike, fitErrs := e.fitAll(ctx, fam, opts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logN := math.Log(float64(n))
	logLogN := math.Log(logN)

	table := &model.ScoreTable{SampleSize: n, Rows: make([]model.ScoreRow, 0, fam.NumModels())}
	for _, id := range fam.GetTopOrder() {
		row, err := e.scoreModel(fam, id, logLike, fitErrs, logN, logLogN)
		if err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, row)
	}
	sort.Slice(table.Rows, func(i, j int) bool { return table.Rows[i].Model < table.Rows[j].Model })

	table.SelectedBIC = selectComplexity(table.Rows, func(r model.ScoreRow) float64 { return r.BIC })
	table.SelectedSBIC = selectComplexity(table.Rows, func(r model.ScoreRow) float64 { return r.SBIC })
	return table, nil
}

// Rescore re-evaluates the table against already-cached fits, typically
// after a penalty change. It is sequential and touches no fit routine.
func (e *Engine) Rescore(ctx context.Context, fam family.ModelPoset, penalty *model.Penalty) (*model.ScoreTable, error) {
	return e.Score(ctx, nil, fam, penalty, model.FitOptions{})
}

// fitAll ensures every model's log-likelihood is computed, bounded by the
// worker count. Models already cached return immediately, so the cheap
// re-scoring path runs through here at no cost.
func (e *Engine) fitAll(ctx context.Context, fam family.ModelPoset, opts model.FitOptions) (map[int]float64, map[int]error) {
	numModels := fam.NumModels()
	sem := semaphore.NewWeighted(int64(e.workers))

	type fitOutcome struct {
		id      int
		logLike float64
		err     error
	}
	results := make(chan fitOutcome, numModels)
	for id := 1; id <= numModels; id++ {
		go func(id int) {
			if err := sem.Acquire(ctx, 1); err != nil {
				results <- fitOutcome{id: id, err: errors.FitFailure(id, err)}
				return
			}
			defer sem.Release(1)
			ll, err := fam.LogLikeMle(ctx, id, opts)
			results <- fitOutcome{id: id, logLike: ll, err: err}
		}(id)
	}

	logLike := make(map[int]float64, numModels)
	fitErrs := make(map[int]error)
	for i := 0; i < numModels; i++ {
		res := <-results
		if res.err != nil {
			e.logger.Warn("model %d unavailable: %v", res.id, res.err)
			fitErrs[res.id] = res.err
			continue
		}
		logLike[res.id] = res.logLike
	}
	return logLike, fitErrs
}

// scoreModel evaluates both criteria for one model. The singular BIC takes
// the model's own maximum log-likelihood and searches its submodel strata
// for the dominant penalty: the marginal likelihood integral concentrates
// near whichever boundary stratum the truth could occupy, and the stratum
// with the smallest learning coefficient wins asymptotically.
func (e *Engine) scoreModel(fam family.ModelPoset, id int, logLike map[int]float64, fitErrs map[int]error, logN, logLogN float64) (model.ScoreRow, error) {
	complexity, err := fam.Complexity(id)
	if err != nil {
		return model.ScoreRow{}, err
	}
	dim, err := fam.GetDimension(id)
	if err != nil {
		return model.ScoreRow{}, err
	}
	row := model.ScoreRow{
		Model:      id,
		Complexity: complexity,
		Dimension:  dim,
		LogLike:    math.NaN(),
		BIC:        math.NaN(),
		SBIC:       math.NaN(),
	}
	if fitErr, failed := fitErrs[id]; failed {
		// Both criteria need this model's own fit; the row stays unavailable
		// and is excluded from selection.
		row.Err = fitErr.Error()
		return row, nil
	}
	row.LogLike = logLike[id]
	row.BIC = 2*row.LogLike - float64(dim)*logN

	descendants, err := fam.Descendants(id)
	if err != nil {
		return model.ScoreRow{}, err
	}
	candidates := append([]int{id}, descendants...)
	sort.Ints(candidates)

	best := math.Inf(-1)
	bestBy := 0
	for _, sub := range candidates {
		coef, err := fam.LearnCoef(id, sub)
		if err != nil {
			return model.ScoreRow{}, err
		}
		prior, err := fam.GetPrior(sub)
		if err != nil {
			return model.ScoreRow{}, err
		}
		cand := 2*row.LogLike - 2*coef.Lambda*logN + 2*float64(coef.Multiplicity-1)*logLogN + math.Log(prior)
		if cand > best {
			best = cand
			bestBy = sub
		}
	}
	row.SBIC = best
	row.DominantBy = bestBy
	return row, nil
}

// selectComplexity returns the complexity of the best-scoring usable row,
// resolving ties toward the smallest model id.
func selectComplexity(rows []model.ScoreRow, score func(model.ScoreRow) float64) int {
	best := math.Inf(-1)
	selected := -1
	for _, r := range rows {
		if !r.OK() {
			continue
		}
		if s := score(r); s > best {
			best = s
			selected = r.Complexity
		}
	}
	return selected
}
