package family

import (
	"context"
	"fmt"
	"math"
	"sync"

	"gosbic/domain/model"
	"gosbic/fit"
	"gosbic/internal/errors"
	"gosbic/poset"
)

// LatentClassFitter is the pluggable fit capability for latent-class models.
type LatentClassFitter func(ctx context.Context, data [][]float64, classes int, opts model.FitOptions) (fit.Result, error)

// LatentClass is the family of latent class analyses over binary items:
// model i has i classes, i = 1..maxClasses, nested along a chain. The
// learning-coefficient bound depends on a Dirichlet shape penalty phi.
type LatentClass struct {
	familyBase
	numVariables int
	maxClasses   int

	phiMu sync.RWMutex
	phi   float64

	fitter LatentClassFitter
}

// NewLatentClass constructs the family from its structural parameters: the
// number of binary items per observation and the largest class count.
func NewLatentClass(numVariables, maxClasses int) (*LatentClass, error) {
	if numVariables < 1 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("latent class family needs numVariables >= 1, got %d", numVariables))
	}
	if maxClasses < 1 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("latent class family needs maxClasses >= 1, got %d", maxClasses))
	}
	return &LatentClass{
		familyBase:   newFamilyBase(poset.NewChain(maxClasses)),
		numVariables: numVariables,
		maxClasses:   maxClasses,
		phi:          1,
		fitter:       fit.LatentClass,
	}, nil
}

// SetFitter replaces the external fit capability.
func (f *LatentClass) SetFitter(fitter LatentClassFitter) {
	f.fitter = fitter
}

// SetPhi updates the Dirichlet shape penalty. Only learning-coefficient
// derived scores are affected; cached fits stay valid.
func (f *LatentClass) SetPhi(phi float64) {
	f.phiMu.Lock()
	f.phi = phi
	f.phiMu.Unlock()
}

// Phi returns the current penalty.
func (f *LatentClass) Phi() float64 {
	f.phiMu.RLock()
	defer f.phiMu.RUnlock()
	return f.phi
}

// SetData binds a binary observation matrix with one column per item.
func (f *LatentClass) SetData(x [][]float64) error {
	if err := checkColumns(x, f.numVariables); err != nil {
		return err
	}
	for i := range x {
		for v, val := range x[i] {
			if val != 0 && val != 1 {
				return errors.DimensionMismatch(fmt.Sprintf("latent class data must be binary, found %g at row %d column %d", val, i, v))
			}
		}
	}
	f.bindData(x)
	return nil
}

// Complexity returns the class count of a model.
func (f *LatentClass) Complexity(id int) (int, error) {
	if err := f.checkID(id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetDimension returns the free-parameter count: i*r item probabilities
// plus i-1 class weights for i classes over r items.
func (f *LatentClass) GetDimension(id int) (int, error) {
	if err := f.checkID(id); err != nil {
		return 0, err
	}
	return id*f.numVariables + id - 1, nil
}

// LogLikeMle fits model id on first use. The single-class model uses the
// analytic maximum directly instead of the external optimizer.
func (f *LatentClass) LogLikeMle(ctx context.Context, id int, opts model.FitOptions) (float64, error) {
	return f.memoizedFit(ctx, id, opts.Timeout, func(fitCtx context.Context) (float64, error) {
		if id == 1 {
			return fit.LatentClassOneClass(f.boundData()), nil
		}
		res, err := f.fitter(fitCtx, f.boundData(), id, opts)
		if err != nil {
			return 0, err
		}
		return res.LogLike, nil
	})
}

// LearnCoef returns the latent-class bound for super with i classes against
// sub with j classes over r items:
//
//	lambda = min(j*r + j - 1 + (i-j)*phi, dim(i)) / 2, multiplicity 1
func (f *LatentClass) LearnCoef(super, sub int) (model.LearnCoef, error) {
	if err := f.checkRelation(super, sub); err != nil {
		return model.LearnCoef{}, err
	}
	i, j := float64(super), float64(sub)
	r := float64(f.numVariables)
	dim := i*r + i - 1
	lambda := math.Min(j*r+j-1+(i-j)*f.Phi(), dim) / 2
	return model.LearnCoef{Lambda: lambda, Multiplicity: 1}, nil
}

// checkColumns validates the column count of an observation matrix.
func checkColumns(x [][]float64, want int) error {
	if len(x) == 0 {
		return errors.DimensionMismatch("observation matrix is empty")
	}
	for i := range x {
		if len(x[i]) != want {
			return errors.DimensionMismatch(fmt.Sprintf("row %d has %d columns, family declares %d", i, len(x[i]), want))
		}
	}
	return nil
}
