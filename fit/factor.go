package fit

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"gosbic/domain/model"
)

// FactorAnalysis maximizes the log-likelihood of a Gaussian factor-analysis
// model with the given number of factors over centered data (n x p) using the
// Rubin-Thayer EM recursion with random restarts. The zero-factor model
// (diagonal covariance) has an analytic maximum; see FactorZero.
func FactorAnalysis(ctx context.Context, data [][]float64, factors int, opts model.FitOptions) (Result, error) {
	opts = withDefaults(opts)
	n := len(data)
	if n == 0 {
		return Result{}, fmt.Errorf("factor analysis fit needs data")
	}
	p := len(data[0])
	if factors < 0 || factors >= p {
		return Result{}, fmt.Errorf("factor analysis fit needs 0 <= factors < %d, got %d", p, factors)
	}
	S := covarianceMLE(data)
	if factors == 0 {
		return Result{LogLike: faDiagonalLogLike(n, S), Converged: true, Restarts: 1}, nil
	}

	scale := 0.0
	for v := 0; v < p; v++ {
		scale += S.At(v, v)
	}
	scale = math.Sqrt(scale / float64(p))

	best := math.Inf(-1)
	converged := 0
	for restart := 0; restart < opts.Restarts; restart++ {
		rng := newRNG(opts.Seed, restart)

		lambda := mat.NewDense(p, factors, nil)
		for i := 0; i < p; i++ {
			for j := 0; j < factors; j++ {
				lambda.Set(i, j, 0.5*scale*rng.NormFloat64())
			}
		}
		psi := make([]float64, p)
		for v := 0; v < p; v++ {
			psi[v] = 0.5 * S.At(v, v)
		}

		ll, ok, err := faEM(ctx, n, S, lambda, psi, opts)
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

// FactorZero returns the analytic maximum log-likelihood of the zero-factor
// (independent Gaussians) model.
func FactorZero(data [][]float64) float64 {
	return faDiagonalLogLike(len(data), covarianceMLE(data))
}

func faDiagonalLogLike(n int, S *mat.SymDense) float64 {
	p := S.SymmetricDim()
	ll := 0.0
	for v := 0; v < p; v++ {
		s := math.Max(S.At(v, v), 1e-12)
		ll += -float64(n) / 2 * (math.Log(2*math.Pi*s) + 1)
	}
	return ll
}

func faEM(ctx context.Context, n int, S *mat.SymDense, lambda *mat.Dense, psi []float64, opts model.FitOptions) (float64, bool, error) {
	p, k := lambda.Dims()
	floor := 1e-6
	for v := 0; v < p; v++ {
		floor = math.Max(floor, 1e-6*S.At(v, v))
	}
	prev := math.Inf(-1)

	for iter := 0; iter < opts.MaxIter; iter++ {
		if err := checkCtx(ctx); err != nil {
			return 0, false, err
		}

		// Sigma = Lambda Lambda^T + Psi
		sigma := mat.NewDense(p, p, nil)
		sigma.Mul(lambda, lambda.T())
		for v := 0; v < p; v++ {
			sigma.Set(v, v, sigma.At(v, v)+psi[v])
		}

		var sigmaInv mat.Dense
		if err := sigmaInv.Inverse(sigma); err != nil {
			return 0, false, nil // singular iterate, restart
		}

		logDet, sign := mat.LogDet(sigma)
		if sign <= 0 {
			return 0, false, nil
		}
		trace := 0.0
		var prod mat.Dense
		prod.Mul(&sigmaInv, S)
		for v := 0; v < p; v++ {
			trace += prod.At(v, v)
		}
		ll := -float64(n) / 2 * (float64(p)*math.Log(2*math.Pi) + logDet + trace)
		if math.IsNaN(ll) {
			return 0, false, nil
		}

		// E step: beta = Lambda^T Sigma^-1, M = I - beta Lambda + beta S beta^T
		var beta mat.Dense
		beta.Mul(lambda.T(), &sigmaInv)
		var betaLambda mat.Dense
		betaLambda.Mul(&beta, lambda)
		var betaS mat.Dense
		betaS.Mul(&beta, S)
		var m mat.Dense
		m.Mul(&betaS, beta.T())
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				ident := 0.0
				if i == j {
					ident = 1.0
				}
				m.Set(i, j, ident-betaLambda.At(i, j)+m.At(i, j))
			}
		}

		// M step
		var mInv mat.Dense
		if err := mInv.Inverse(&m); err != nil {
			return 0, false, nil
		}
		var sBetaT mat.Dense
		sBetaT.Mul(S, beta.T())
		var lambdaNew mat.Dense
		lambdaNew.Mul(&sBetaT, &mInv)
		var fitted mat.Dense
		fitted.Mul(&lambdaNew, &betaS)
		for v := 0; v < p; v++ {
			psi[v] = math.Max(S.At(v, v)-fitted.At(v, v), floor)
		}
		lambda.Copy(&lambdaNew)

		if iter > 0 && math.Abs(ll-prev) < opts.Tol {
			return ll, true, nil
		}
		prev = ll
	}
	return prev, false, nil
}

// covarianceMLE computes the maximum-likelihood (1/n) covariance of the data
// after centering each column.
func covarianceMLE(data [][]float64) *mat.SymDense {
	n := len(data)
	p := len(data[0])
	means := make([]float64, p)
	for _, row := range data {
		for v, x := range row {
			means[v] += x
		}
	}
	for v := range means {
		means[v] /= float64(n)
	}
	S := mat.NewSymDense(p, nil)
	for u := 0; u < p; u++ {
		for v := u; v < p; v++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += (data[i][u] - means[u]) * (data[i][v] - means[v])
			}
			S.SetSym(u, v, sum/float64(n))
		}
	}
	return S
}
