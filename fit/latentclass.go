package fit

import (
	"context"
	"fmt"
	"math"

	"gosbic/domain/model"
)

// LatentClass maximizes the log-likelihood of a latent-class model with the
// given number of classes over binary item data (n x r, entries 0/1) using
// EM with random restarts. The single-class model has an analytic maximum;
// see LatentClassOneClass.
func LatentClass(ctx context.Context, data [][]float64, classes int, opts model.FitOptions) (Result, error) {
	opts = withDefaults(opts)
	n := len(data)
	if n == 0 {
		return Result{}, fmt.Errorf("latent class fit needs data")
	}
	r := len(data[0])
	if classes < 1 {
		return Result{}, fmt.Errorf("latent class fit needs classes >= 1, got %d", classes)
	}
	if classes == 1 {
		return Result{LogLike: LatentClassOneClass(data), Converged: true, Restarts: 1}, nil
	}

	best := math.Inf(-1)
	converged := 0
	for restart := 0; restart < opts.Restarts; restart++ {
		rng := newRNG(opts.Seed, restart)

		// Random start: near-uniform class weights, item probabilities away
		// from the 0/1 boundary.
		pi := make([]float64, classes)
		for c := range pi {
			pi[c] = 1.0/float64(classes) + 0.01*rng.Float64()
		}
		normalize(pi)
		theta := make([][]float64, classes)
		for c := range theta {
			theta[c] = make([]float64, r)
			for v := range theta[c] {
				theta[c][v] = 0.25 + 0.5*rng.Float64()
			}
		}

		ll, ok, err := lcaEM(ctx, data, pi, theta, opts)
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

// LatentClassOneClass returns the analytic maximum log-likelihood of the
// independence (single class) model.
func LatentClassOneClass(data [][]float64) float64 {
	n := len(data)
	r := len(data[0])
	ll := 0.0
	for v := 0; v < r; v++ {
		ones := 0.0
		for i := 0; i < n; i++ {
			ones += data[i][v]
		}
		p := clampProb(ones / float64(n))
		ll += ones*math.Log(p) + (float64(n)-ones)*math.Log(1-p)
	}
	return ll
}

// lcaEM runs one EM start in place, returning the final log-likelihood and
// whether the tolerance was reached.
func lcaEM(ctx context.Context, data [][]float64, pi []float64, theta [][]float64, opts model.FitOptions) (float64, bool, error) {
	n := len(data)
	r := len(data[0])
	k := len(pi)

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
				w := math.Log(pi[c])
				for v := 0; v < r; v++ {
					if data[i][v] > 0.5 {
						w += math.Log(theta[c][v])
					} else {
						w += math.Log(1 - theta[c][v])
					}
				}
				logw[c] = w
			}
			norm := logSumExp(logw)
			ll += norm
			for c := 0; c < k; c++ {
				resp[i][c] = math.Exp(logw[c] - norm)
			}
		}
		if math.IsNaN(ll) || math.IsInf(ll, 1) {
			return 0, false, nil
		}

		// M step
		for c := 0; c < k; c++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += resp[i][c]
			}
			pi[c] = clampProb(sum / float64(n))
			for v := 0; v < r; v++ {
				num := 0.0
				for i := 0; i < n; i++ {
					num += resp[i][c] * data[i][v]
				}
				theta[c][v] = clampProb(num / math.Max(sum, 1e-12))
			}
		}
		normalize(pi)

		if iter > 0 && math.Abs(ll-prev) < opts.Tol {
			return ll, true, nil
		}
		prev = ll
	}
	return prev, false, nil
}

func normalize(ps []float64) {
	total := 0.0
	for _, p := range ps {
		total += p
	}
	for i := range ps {
		ps[i] /= total
	}
}
