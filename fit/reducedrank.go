package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ReducedRank computes the exact maximum log-likelihood of the rank-h
// regression of responses Y (n x M) on covariates X (n x N) under isotropic
// unit-variance Gaussian errors. The rank-h least-squares solution is the
// singular value truncation of the ordinary least-squares fitted values, so
// no iterative optimizer is involved.
func ReducedRank(x, y [][]float64, rank int) (Result, error) {
	n := len(x)
	if n == 0 || len(y) != n {
		return Result{}, fmt.Errorf("reduced rank fit needs aligned covariate and response rows")
	}
	numCov := len(x[0])
	numResp := len(y[0])
	maxRank := numCov
	if numResp < maxRank {
		maxRank = numResp
	}
	if rank < 0 || rank > maxRank {
		return Result{}, fmt.Errorf("rank %d outside [0, %d]", rank, maxRank)
	}

	yTotal := 0.0
	for i := range y {
		for _, v := range y[i] {
			yTotal += v * v
		}
	}
	if rank == 0 {
		return Result{LogLike: gaussLogLike(n, numResp, yTotal), Converged: true, Restarts: 1}, nil
	}

	X := rowMajor(x)
	Y := rowMajor(y)
	var coef mat.Dense
	if err := coef.Solve(X, Y); err != nil {
		return Result{}, fmt.Errorf("least squares solve: %w", err)
	}
	var fitted mat.Dense
	fitted.Mul(X, &coef)

	// Residual sum of squares of the full-rank fit.
	rss := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < numResp; j++ {
			d := Y.At(i, j) - fitted.At(i, j)
			rss += d * d
		}
	}

	// The residual is orthogonal to the covariate column space, so truncating
	// the fitted values adds exactly the discarded squared singular values.
	var svd mat.SVD
	if !svd.Factorize(&fitted, mat.SVDThin) {
		return Result{}, fmt.Errorf("svd of fitted values failed")
	}
	values := svd.Values(nil)
	for j := rank; j < len(values); j++ {
		rss += values[j] * values[j]
	}

	return Result{LogLike: gaussLogLike(n, numResp, rss), Converged: true, Restarts: 1}, nil
}

func gaussLogLike(n, numResp int, rss float64) float64 {
	return -float64(n*numResp)/2*math.Log(2*math.Pi) - rss/2
}

func rowMajor(rows [][]float64) *mat.Dense {
	r := len(rows)
	c := len(rows[0])
	out := mat.NewDense(r, c, nil)
	for i := range rows {
		out.SetRow(i, rows[i])
	}
	return out
}
