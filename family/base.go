package family

import (
	"context"
	"sync"
	"time"

	"gosbic/internal/errors"
	"gosbic/poset"
)

// familyBase carries the state shared by every family: the nesting graph,
// the bound data, the prior, and the memoized fit cache. The family instance
// owns all of it; the engine borrows it for the duration of a scoring call.
type familyBase struct {
	graph *poset.DAG

	mu    sync.RWMutex
	data  [][]float64
	prior []float64 // nil means uniform
	cache *fitCache
}

func newFamilyBase(graph *poset.DAG) familyBase {
	return familyBase{
		graph: graph,
		cache: newFitCache(),
	}
}

// bindData stores a validated observation matrix and invalidates every
// cached fit. Shape validation happens in the concrete family before this.
func (b *familyBase) bindData(x [][]float64) {
	b.mu.Lock()
	b.data = x
	b.mu.Unlock()
	b.cache.reset()
}

func (b *familyBase) boundData() [][]float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data
}

// SampleSize returns the number of bound observations.
func (b *familyBase) SampleSize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// NumModels returns the member count of the family.
func (b *familyBase) NumModels() int {
	return b.graph.NumModels()
}

// Parents returns the direct supermodels of a model.
func (b *familyBase) Parents(id int) ([]int, error) {
	return b.graph.Supers(id)
}

// Ancestors returns every supermodel transitively containing the model.
func (b *familyBase) Ancestors(id int) ([]int, error) {
	return b.graph.Ancestors(id)
}

// Descendants returns every submodel transitively contained in the model.
func (b *familyBase) Descendants(id int) ([]int, error) {
	return b.graph.Descendants(id)
}

// GetTopOrder returns the simplest-first total order over model ids.
func (b *familyBase) GetTopOrder() []int {
	return b.graph.TopOrder()
}

// GetPrior returns the prior mass of a model, uniform unless SetPrior was
// called.
func (b *familyBase) GetPrior(id int) (float64, error) {
	if id < 1 || id > b.graph.NumModels() {
		return 0, errors.InvalidModelID(id, b.graph.NumModels())
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.prior == nil {
		return 1.0 / float64(b.graph.NumModels()), nil
	}
	return b.prior[id-1], nil
}

// SetPrior replaces the uniform prior with explicit per-model mass. The
// slice must hold one entry per model; it is normalized to sum to one.
func (b *familyBase) SetPrior(prior []float64) error {
	if len(prior) != b.graph.NumModels() {
		return errors.ConfigInvalid("prior length must equal the number of models")
	}
	total := 0.0
	for _, p := range prior {
		if p <= 0 {
			return errors.ConfigInvalid("prior mass must be positive")
		}
		total += p
	}
	normalized := make([]float64, len(prior))
	for i, p := range prior {
		normalized[i] = p / total
	}
	b.mu.Lock()
	b.prior = normalized
	b.mu.Unlock()
	return nil
}

// checkRelation validates ids and the super -> sub reachability required by
// LearnCoef.
func (b *familyBase) checkRelation(super, sub int) error {
	ok, err := b.graph.Reachable(super, sub)
	if err != nil {
		return err
	}
	if !ok {
		return errors.InvalidRelation(super, sub)
	}
	return nil
}

// memoizedFit runs compute through the write-once cache, applying the
// per-fit timeout and converting any failure into FitFailureError without
// corrupting the cache.
func (b *familyBase) memoizedFit(ctx context.Context, id int, timeout time.Duration, compute func(ctx context.Context) (float64, error)) (float64, error) {
	if err := b.checkID(id); err != nil {
		return 0, err
	}
	if b.SampleSize() == 0 {
		return 0, errors.DimensionMismatch("no data bound; call SetData first")
	}
	return b.cache.getOrCompute(id, func() (float64, error) {
		fitCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			fitCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		ll, err := compute(fitCtx)
		if err != nil {
			return 0, errors.FitFailure(id, err)
		}
		return ll, nil
	})
}

func (b *familyBase) checkID(id int) error {
	if id < 1 || id > b.graph.NumModels() {
		return errors.InvalidModelID(id, b.graph.NumModels())
	}
	return nil
}

// FitCount reports how many models currently hold a cached fit. Used by the
// driver and tests to verify that re-scoring never refits.
func (b *familyBase) FitCount() int {
	return b.cache.len()
}
