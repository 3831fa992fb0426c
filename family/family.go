// Package family implements the model-poset capability set: each statistical
// model family enumerates its members, binds observation data, delegates
// maximum-likelihood fits to the external fit capability with a write-once
// cache, and supplies the learning-coefficient bound for any nested pair of
// its members.
package family

import (
	"context"

	"gosbic/domain/model"
)

// ModelPoset is the contract every model family exposes to the scoring
// engine. Model ids are 1-based and fixed at construction from structural
// parameters. Side effects are confined to the fit cache; everything else is
// pure given the current data binding.
type ModelPoset interface {
	// NumModels returns the member count, fixed at construction.
	NumModels() int

	// SetData binds an observation matrix, returning DimensionMismatchError
	// if its shape disagrees with the structural parameters. Binding data
	// resets the fit cache for every model.
	SetData(x [][]float64) error

	// SampleSize returns the number of bound observations (0 before SetData).
	SampleSize() int

	// GetDimension returns the free-parameter count used by ordinary BIC.
	GetDimension(id int) (int, error)

	// Complexity returns the family complexity index of a model (classes,
	// components, factors, rank, or edge count).
	Complexity(id int) (int, error)

	// LogLikeMle returns the cached maximum log-likelihood, fitting on the
	// first call. At most one fit per model id is ever in flight; concurrent
	// callers await the in-flight result. A failed fit returns
	// FitFailureError and leaves the cache unset so a retry is possible.
	LogLikeMle(ctx context.Context, id int, opts model.FitOptions) (float64, error)

	// LearnCoef returns the learning-coefficient bound for the ordered
	// (super, sub) pair. InvalidRelationError when sub is not reachable from
	// super, InvalidModelIdError for out-of-range ids. The self pair yields
	// (dimension/2, 1).
	LearnCoef(super, sub int) (model.LearnCoef, error)

	// Parents returns the direct supermodels of a model.
	Parents(id int) ([]int, error)

	// Ancestors returns every supermodel transitively containing the model.
	Ancestors(id int) ([]int, error)

	// Descendants returns every submodel the model transitively contains,
	// the strata of its dominance search.
	Descendants(id int) ([]int, error)

	// GetTopOrder returns the simplest-first total order over model ids.
	GetTopOrder() []int

	// GetPrior returns the prior mass of a model (uniform by default).
	GetPrior(id int) (float64, error)
}

// PhiAware is implemented by families whose learning-coefficient bounds
// depend on a Dirichlet shape penalty. Changing the penalty never touches
// the fit cache.
type PhiAware interface {
	SetPhi(phi float64)
}
