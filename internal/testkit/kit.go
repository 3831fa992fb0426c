// Package testkit provides seeded synthetic fixtures shared across package
// tests. Every generator takes an explicit seed so tests stay deterministic.
// The kit depends on nothing but math/rand, so any package can use it.
package testkit

import (
	"math"
	"math/rand"
)

// Rng returns a seeded source for test data generation.
func Rng(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// BinaryClassData draws n rows of binary item responses from a
// well-separated latent-class configuration: class c answers items of its
// own block with probability 0.9 and the rest with 0.1, classes equally
// likely.
func BinaryClassData(seed int64, n, items, classes int) [][]float64 {
	rng := Rng(seed)
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		c := rng.Intn(classes)
		row := make([]float64, items)
		for v := 0; v < items; v++ {
			p := 0.1
			if v%classes == c {
				p = 0.9
			}
			if rng.Float64() < p {
				row[v] = 1
			}
		}
		out[i] = row
	}
	return out
}

// SeparatedMixtureData draws a single-column sample from a univariate
// Gaussian mixture with unit-variance components spread five units apart.
func SeparatedMixtureData(seed int64, n, components int) [][]float64 {
	rng := Rng(seed)
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		c := rng.Intn(components)
		out[i] = []float64{float64(c)*5 + rng.NormFloat64()}
	}
	return out
}

// FactorData draws n rows from a one-factor model over p covariates with
// loading 0.8 and unit uniquenesses.
func FactorData(seed int64, n, p int) [][]float64 {
	rng := Rng(seed)
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		z := rng.NormFloat64()
		row := make([]float64, p)
		for v := 0; v < p; v++ {
			row[v] = 0.8*z + rng.NormFloat64()
		}
		out[i] = row
	}
	return out
}

// RegressionData draws n rows of a rank-r linear map from numX covariates
// to numY responses with unit Gaussian noise, covariate columns first. The
// coefficient matrix is a product of two seeded random factors, so its rank
// is exactly min(rank, numX, numY) almost surely.
func RegressionData(seed int64, n, numX, numY, rank int) [][]float64 {
	rng := Rng(seed)
	coef := make([][]float64, numX)
	for v := range coef {
		coef[v] = make([]float64, numY)
	}
	for l := 0; l < rank; l++ {
		left := make([]float64, numX)
		right := make([]float64, numY)
		for v := range left {
			left[v] = rng.NormFloat64()
		}
		for j := range right {
			right[j] = rng.NormFloat64()
		}
		for v := range coef {
			for j := range coef[v] {
				coef[v][j] += left[v] * right[j]
			}
		}
	}
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, numX+numY)
		for v := 0; v < numX; v++ {
			row[v] = rng.NormFloat64()
		}
		for j := 0; j < numY; j++ {
			y := rng.NormFloat64()
			for v := 0; v < numX; v++ {
				y += coef[v][j] * row[v]
			}
			row[numX+j] = y
		}
		out[i] = row
	}
	return out
}

// PathForestData draws n rows from a Gaussian path-tree model with
// correlation rho between consecutive variables.
func PathForestData(seed int64, n, vars int, rho float64) [][]float64 {
	rng := Rng(seed)
	noise := math.Sqrt(1 - rho*rho)
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, vars)
		row[0] = rng.NormFloat64()
		for v := 1; v < vars; v++ {
			row[v] = rho*row[v-1] + noise*rng.NormFloat64()
		}
		out[i] = row
	}
	return out
}
