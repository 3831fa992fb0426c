// Package fit supplies the external maximum-likelihood fit capability
// consumed by the model families: EM optimizers with random restarts for the
// latent-variable families and closed-form least squares where the maximum
// is analytic. Only the achieved log-likelihood is consumed by the scoring
// core; solution parameters stay internal to each routine.
package fit

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gosbic/domain/model"
)

// Result is the outcome of one maximum-likelihood fit.
type Result struct {
	LogLike   float64
	Converged bool
	Restarts  int // number of starts that converged
}

// errNoConvergence is returned when no restart reached the tolerance.
func errNoConvergence(restarts, maxIter int) error {
	return fmt.Errorf("no EM start converged (%d restarts, %d iterations each)", restarts, maxIter)
}

// withDefaults fills the zero value with the package defaults.
func withDefaults(opts model.FitOptions) model.FitOptions {
	def := model.DefaultFitOptions()
	if opts.Restarts <= 0 {
		opts.Restarts = def.Restarts
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = def.MaxIter
	}
	if opts.Tol <= 0 {
		opts.Tol = def.Tol
	}
	if opts.Seed == 0 {
		opts.Seed = def.Seed
	}
	return opts
}

// checkCtx converts a cancelled or expired context into the fit error.
func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// logSumExp computes log(sum(exp(xs))) without overflow.
func logSumExp(xs []float64) float64 {
	max := math.Inf(-1)
	for _, x := range xs {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return max
	}
	sum := 0.0
	for _, x := range xs {
		sum += math.Exp(x - max)
	}
	return max + math.Log(sum)
}

// clampProb keeps a probability strictly inside (0, 1) so log terms stay finite.
func clampProb(p float64) float64 {
	const eps = 1e-9
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}

// newRNG derives the restart-specific source from the base seed.
func newRNG(seed int64, restart int) *rand.Rand {
	return rand.New(rand.NewSource(seed + int64(restart)*7919))
}

// column extracts column j of a row-major matrix.
func column(data [][]float64, j int) []float64 {
	out := make([]float64, len(data))
	for i := range data {
		out[i] = data[i][j]
	}
	return out
}
