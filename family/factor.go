package family

import (
	"context"
	"fmt"
	"math"

	"gosbic/domain/model"
	"gosbic/fit"
	"gosbic/internal/errors"
	"gosbic/poset"
)

// FactorAnalysisFitter is the pluggable fit capability for factor analyses.
type FactorAnalysisFitter func(ctx context.Context, data [][]float64, factors int, opts model.FitOptions) (fit.Result, error)

// FactorAnalysis is the family of Gaussian factor analyses over p observed
// covariates: model i has i-1 factors, i = 1..maxFactors+1, nested along a
// chain starting at the diagonal-covariance model.
type FactorAnalysis struct {
	familyBase
	numCovariates int
	maxFactors    int
	fitter        FactorAnalysisFitter
}

// NewFactorAnalysis constructs the family from the number of observed
// covariates and the largest factor count (at most numCovariates-1).
func NewFactorAnalysis(numCovariates, maxFactors int) (*FactorAnalysis, error) {
	if numCovariates < 2 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("factor analysis family needs numCovariates >= 2, got %d", numCovariates))
	}
	if maxFactors < 0 || maxFactors >= numCovariates {
		return nil, errors.ConfigInvalid(fmt.Sprintf("factor analysis family needs 0 <= maxFactors < numCovariates, got %d", maxFactors))
	}
	return &FactorAnalysis{
		familyBase:    newFamilyBase(poset.NewChain(maxFactors + 1)),
		numCovariates: numCovariates,
		maxFactors:    maxFactors,
		fitter:        fit.FactorAnalysis,
	}, nil
}

// SetFitter replaces the external fit capability.
func (f *FactorAnalysis) SetFitter(fitter FactorAnalysisFitter) {
	f.fitter = fitter
}

// SetData binds an observation matrix with one column per covariate.
func (f *FactorAnalysis) SetData(x [][]float64) error {
	if err := checkColumns(x, f.numCovariates); err != nil {
		return err
	}
	f.bindData(x)
	return nil
}

// Complexity returns the factor count of a model.
func (f *FactorAnalysis) Complexity(id int) (int, error) {
	if err := f.checkID(id); err != nil {
		return 0, err
	}
	return id - 1, nil
}

// GetDimension returns p uniquenesses plus p*k loadings minus the k(k-1)/2
// rotational indeterminacy for k factors.
func (f *FactorAnalysis) GetDimension(id int) (int, error) {
	if err := f.checkID(id); err != nil {
		return 0, err
	}
	k := id - 1
	p := f.numCovariates
	return p + p*k - k*(k-1)/2, nil
}

// LogLikeMle fits model id on first use. The zero-factor model uses the
// analytic diagonal-covariance maximum directly.
func (f *FactorAnalysis) LogLikeMle(ctx context.Context, id int, opts model.FitOptions) (float64, error) {
	return f.memoizedFit(ctx, id, opts.Timeout, func(fitCtx context.Context) (float64, error) {
		if id == 1 {
			return fit.FactorZero(f.boundData()), nil
		}
		res, err := f.fitter(fitCtx, f.boundData(), id-1, opts)
		if err != nil {
			return 0, err
		}
		return res.LogLike, nil
	})
}

// LearnCoef returns the factor-analysis bound built from the iterated
// direct-parent increment: each factor beyond the submodel contributes
// p - ki + 1 where ki is the supermodel's factor count. The increment equals
// the regular one for the direct parent and discounts deeper ancestors.
//
//	lambda = min(dim(j) + (ki-kj)*(p-ki+1), dim(i)) / 2, multiplicity 1
func (f *FactorAnalysis) LearnCoef(super, sub int) (model.LearnCoef, error) {
	if err := f.checkRelation(super, sub); err != nil {
		return model.LearnCoef{}, err
	}
	p := f.numCovariates
	ki, kj := super-1, sub-1
	dim := func(k int) float64 { return float64(p + p*k - k*(k-1)/2) }
	lambda := math.Min(dim(kj)+float64((ki-kj)*(p-ki+1)), dim(ki)) / 2
	return model.LearnCoef{Lambda: lambda, Multiplicity: 1}, nil
}
