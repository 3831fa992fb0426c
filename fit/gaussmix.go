package fit

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"gosbic/domain/model"
)

// GaussianMixture maximizes the log-likelihood of a univariate Gaussian
// mixture with the given number of components using EM with random restarts.
// The single-component model has an analytic maximum; see GaussianOneComponent.
func GaussianMixture(ctx context.Context, xs []float64, components int, opts model.FitOptions) (Result, error) {
	opts = withDefaults(opts)
	n := len(xs)
	if n == 0 {
		return Result{}, fmt.Errorf("gaussian mixture fit needs data")
	}
	if components < 1 {
		return Result{}, fmt.Errorf("gaussian mixture fit needs components >= 1, got %d", components)
	}
	if components == 1 {
		return Result{LogLike: GaussianOneComponent(xs), Converged: true, Restarts: 1}, nil
	}

	_, variance := meanVar(xs)
	// Variance floor keeps a component from collapsing onto a single point.
	floor := 1e-6 * math.Max(variance, 1e-12)

	best := math.Inf(-1)
	converged := 0
	for restart := 0; restart < opts.Restarts; restart++ {
		rng := newRNG(opts.Seed, restart)

		weights := make([]float64, components)
		means := make([]float64, components)
		vars := make([]float64, components)
		for c := 0; c < components; c++ {
			weights[c] = 1.0 / float64(components)
			means[c] = xs[rng.Intn(n)]
			vars[c] = variance
		}

		ll, ok, err := gmmEM(ctx, xs, weights, means, vars, floor, opts)
		if err != nil {
			return Result{}, err
		}
		if ok {
			converged++
		}
		if ok && ll > best {
			best = ll
		}
	}
	if converged == 0 {
		return Result{}, errNoConvergence(opts.Restarts, opts.MaxIter)
	}
	return Result{LogLike: best, Converged: true, Restarts: converged}, nil
}

// GaussianOneComponent returns the analytic maximum log-likelihood of a
// single Gaussian.
func GaussianOneComponent(xs []float64) float64 {
	n := float64(len(xs))
	_, variance := meanVar(xs)
	if variance <= 0 {
		variance = 1e-12
	}
	return -n / 2 * (math.Log(2*math.Pi*variance) + 1)
}

func gmmEM(ctx context.Context, xs []float64, weights, means, vars []float64, floor float64, opts model.FitOptions) (float64, bool, error) {
	n := len(xs)
	k := len(weights)
	resp := make([][]float64, n)
	for i := range resp {
		resp[i] = make([]float64, k)
	}
	logw := make([]float64, k)
	prev := math.Inf(-1)

	for iter := 0; iter < opts.MaxIter; iter++ {
		if err := checkCtx(ctx); err != nil {
			return 0, false, err
		}

		// E step
		ll := 0.0
		for i := 0; i < n; i++ {
			for c := 0; c < k; c++ {
				norm := distuv.Normal{Mu: means[c], Sigma: math.Sqrt(vars[c])}
				logw[c] = math.Log(weights[c]) + norm.LogProb(xs[i])
			}
			total := logSumExp(logw)
			ll += total
			for c := 0; c < k; c++ {
				resp[i][c] = math.Exp(logw[c] - total)
			}
		}
		if math.IsNaN(ll) || math.IsInf(ll, 1) {
			return 0, false, nil
		}

		// M step
		for c := 0; c < k; c++ {
			sum := 0.0
			mu := 0.0
			for i := 0; i < n; i++ {
				sum += resp[i][c]
				mu += resp[i][c] * xs[i]
			}
			if sum < 1e-12 {
				return 0, false, nil // empty component, restart
			}
			mu /= sum
			v := 0.0
			for i := 0; i < n; i++ {
				d := xs[i] - mu
				v += resp[i][c] * d * d
			}
			weights[c] = sum / float64(n)
			means[c] = mu
			vars[c] = math.Max(v/sum, floor)
		}
		normalize(weights)

		if iter > 0 && math.Abs(ll-prev) < opts.Tol {
			return ll, true, nil
		}
		prev = ll
	}
	return prev, false, nil
}

func meanVar(xs []float64) (float64, float64) {
	n := float64(len(xs))
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= n
	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	return mean, variance / n
}
