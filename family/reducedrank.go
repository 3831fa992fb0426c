package family

import (
	"context"
	"fmt"

	"gosbic/domain/model"
	"gosbic/fit"
	"gosbic/internal/errors"
	"gosbic/poset"
)

// ReducedRank is the family of reduced-rank regressions of M responses on N
// covariates: model i constrains the coefficient matrix to rank i-1,
// i = 1..maxRank+1, nested along a chain starting at the zero matrix. The
// observation matrix binds covariate columns first, then response columns.
type ReducedRank struct {
	familyBase
	numCovariates int
	numResponses  int
	maxRank       int
}

// NewReducedRank constructs the family from the covariate and response
// counts and the largest admissible rank.
func NewReducedRank(numCovariates, numResponses, maxRank int) (*ReducedRank, error) {
	if numCovariates < 1 || numResponses < 1 {
		return nil, errors.ConfigInvalid("reduced rank family needs at least one covariate and one response")
	}
	limit := numCovariates
	if numResponses < limit {
		limit = numResponses
	}
	if maxRank < 0 || maxRank > limit {
		return nil, errors.ConfigInvalid(fmt.Sprintf("reduced rank family needs 0 <= maxRank <= %d, got %d", limit, maxRank))
	}
	return &ReducedRank{
		familyBase:    newFamilyBase(poset.NewChain(maxRank + 1)),
		numCovariates: numCovariates,
		numResponses:  numResponses,
		maxRank:       maxRank,
	}, nil
}

// SetData binds a joined observation matrix of numCovariates + numResponses
// columns.
func (f *ReducedRank) SetData(x [][]float64) error {
	if err := checkColumns(x, f.numCovariates+f.numResponses); err != nil {
		return err
	}
	f.bindData(x)
	return nil
}

// Complexity returns the coefficient rank of a model.
func (f *ReducedRank) Complexity(id int) (int, error) {
	if err := f.checkID(id); err != nil {
		return 0, err
	}
	return id - 1, nil
}

// GetDimension returns h(M+N-h), the dimension of the rank-h matrix variety.
func (f *ReducedRank) GetDimension(id int) (int, error) {
	if err := f.checkID(id); err != nil {
		return 0, err
	}
	h := id - 1
	return h * (f.numResponses + f.numCovariates - h), nil
}

// LogLikeMle computes the exact rank-constrained maximum on first use. The
// fit is closed form, so there is no external optimizer to time out.
func (f *ReducedRank) LogLikeMle(ctx context.Context, id int, opts model.FitOptions) (float64, error) {
	return f.memoizedFit(ctx, id, opts.Timeout, func(fitCtx context.Context) (float64, error) {
		covariates, responses := f.split(f.boundData())
		res, err := fit.ReducedRank(covariates, responses, id-1)
		if err != nil {
			return 0, err
		}
		return res.LogLike, nil
	})
}

// LearnCoef returns the exact Aoyagi-Watanabe learning coefficient of the
// rank-h supermodel at a true matrix of rank r.
func (f *ReducedRank) LearnCoef(super, sub int) (model.LearnCoef, error) {
	if err := f.checkRelation(super, sub); err != nil {
		return model.LearnCoef{}, err
	}
	lambda, mult := aoyagiWatanabe(f.numResponses, f.numCovariates, super-1, sub-1)
	return model.LearnCoef{Lambda: lambda, Multiplicity: mult}, nil
}

// aoyagiWatanabe evaluates the closed-form learning coefficient of reduced
// rank regression with M responses, N covariates, model rank h and true rank
// r. The middle case carries multiplicity 2 when M+N+h+r is odd.
func aoyagiWatanabe(m, n, h, r int) (float64, int) {
	switch {
	case n+h <= m+r:
		return float64(h*n-h*r+m*r) / 2, 1
	case m+h <= n+r:
		return float64(h*m-h*r+n*r) / 2, 1
	case m+n <= h+r:
		return float64(m*n) / 2, 1
	default:
		base := 2*(h+r)*(m+n) - (m-n)*(m-n) - (h+r)*(h+r)
		if (m+n+h+r)%2 == 0 {
			return float64(base) / 8, 1
		}
		return float64(base+1) / 8, 2
	}
}

// split separates the joined matrix into covariate and response blocks.
func (f *ReducedRank) split(data [][]float64) ([][]float64, [][]float64) {
	covariates := make([][]float64, len(data))
	responses := make([][]float64, len(data))
	for i, row := range data {
		covariates[i] = row[:f.numCovariates]
		responses[i] = row[f.numCovariates:]
	}
	return covariates, responses
}
