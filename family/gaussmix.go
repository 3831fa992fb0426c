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

// GaussianMixtureFitter is the pluggable fit capability for mixture models.
type GaussianMixtureFitter func(ctx context.Context, xs []float64, components int, opts model.FitOptions) (fit.Result, error)

// GaussianMixture is the family of univariate Gaussian mixtures: model i has
// i components, i = 1..maxComponents, nested along a chain.
type GaussianMixture struct {
	familyBase
	maxComponents int
	fitter        GaussianMixtureFitter
}

// NewGaussianMixture constructs the family from its one structural
// parameter, the largest component count.
func NewGaussianMixture(maxComponents int) (*GaussianMixture, error) {
	if maxComponents < 1 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("mixture family needs maxComponents >= 1, got %d", maxComponents))
	}
	return &GaussianMixture{
		familyBase:    newFamilyBase(poset.NewChain(maxComponents)),
		maxComponents: maxComponents,
		fitter:        fit.GaussianMixture,
	}, nil
}

// SetFitter replaces the external fit capability.
func (f *GaussianMixture) SetFitter(fitter GaussianMixtureFitter) {
	f.fitter = fitter
}

// SetData binds a single-column observation matrix.
func (f *GaussianMixture) SetData(x [][]float64) error {
	if err := checkColumns(x, 1); err != nil {
		return err
	}
	f.bindData(x)
	return nil
}

// Complexity returns the component count of a model.
func (f *GaussianMixture) Complexity(id int) (int, error) {
	if err := f.checkID(id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetDimension returns 3i-1 for i components: i means, i variances, i-1
// mixture weights.
func (f *GaussianMixture) GetDimension(id int) (int, error) {
	if err := f.checkID(id); err != nil {
		return 0, err
	}
	return 3*id - 1, nil
}

// LogLikeMle fits model id on first use. The single-component model uses
// the analytic Gaussian maximum directly.
func (f *GaussianMixture) LogLikeMle(ctx context.Context, id int, opts model.FitOptions) (float64, error) {
	return f.memoizedFit(ctx, id, opts.Timeout, func(fitCtx context.Context) (float64, error) {
		xs := column0(f.boundData())
		if id == 1 {
			return fit.GaussianOneComponent(xs), nil
		}
		res, err := f.fitter(fitCtx, xs, id, opts)
		if err != nil {
			return 0, err
		}
		return res.LogLike, nil
	})
}

// LearnCoef returns the mixture bound: half a unit per component beyond the
// submodel, capped at the regular penalty.
//
//	lambda = min(dim(j) + (i-j), dim(i)) / 2, multiplicity 1
func (f *GaussianMixture) LearnCoef(super, sub int) (model.LearnCoef, error) {
	if err := f.checkRelation(super, sub); err != nil {
		return model.LearnCoef{}, err
	}
	dimSuper := float64(3*super - 1)
	dimSub := float64(3*sub - 1)
	lambda := math.Min(dimSub+float64(super-sub), dimSuper) / 2
	return model.LearnCoef{Lambda: lambda, Multiplicity: 1}, nil
}

func column0(data [][]float64) []float64 {
	out := make([]float64, len(data))
	for i := range data {
		out[i] = data[i][0]
	}
	return out
}
