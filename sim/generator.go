// Package sim drives repeated simulation experiments against the scoring
// engine: seeded data generation, independent replicate execution across a
// bounded worker pool, and tabulation of the selected model complexities.
// It consumes only the public engine and family contracts.
package sim

import (
	"math"
	"math/rand"
)

// GenLatentClass draws n observations from a latent-class model: a class is
// sampled from weights, then each binary item from the class's probability
// row.
func GenLatentClass(rng *rand.Rand, n int, weights []float64, itemProbs [][]float64) [][]float64 {
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		c := sampleCategorical(rng, weights)
		row := make([]float64, len(itemProbs[c]))
		for v, p := range itemProbs[c] {
			if rng.Float64() < p {
				row[v] = 1
			}
		}
		out[i] = row
	}
	return out
}

// BlockItemProbs builds the canonical well-separated latent-class
// configuration: class c answers items of its own block with probability hi
// and all others with probability lo.
func BlockItemProbs(classes, items int, hi, lo float64) [][]float64 {
	probs := make([][]float64, classes)
	for c := range probs {
		probs[c] = make([]float64, items)
		for v := range probs[c] {
			if v%classes == c {
				probs[c][v] = hi
			} else {
				probs[c][v] = lo
			}
		}
	}
	return probs
}

// GenGaussianMixture draws n observations from a univariate Gaussian
// mixture as a single-column matrix.
func GenGaussianMixture(rng *rand.Rand, n int, weights, means, stddevs []float64) [][]float64 {
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		c := sampleCategorical(rng, weights)
		out[i] = []float64{means[c] + stddevs[c]*rng.NormFloat64()}
	}
	return out
}

// GenFactor draws n observations from a k-factor model with unit
// uniquenesses: x = Loadings z + noise.
func GenFactor(rng *rand.Rand, n int, loadings [][]float64) [][]float64 {
	p := len(loadings)
	k := 0
	if p > 0 {
		k = len(loadings[0])
	}
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		z := make([]float64, k)
		for j := range z {
			z[j] = rng.NormFloat64()
		}
		row := make([]float64, p)
		for v := 0; v < p; v++ {
			x := rng.NormFloat64()
			for j := 0; j < k; j++ {
				x += loadings[v][j] * z[j]
			}
			row[v] = x
		}
		out[i] = row
	}
	return out
}

// GenReducedRank draws n observations of standard normal covariates joined
// with responses coef^T x plus unit Gaussian noise, in the column layout
// the reduced-rank family expects.
func GenReducedRank(rng *rand.Rand, n int, coef [][]float64) [][]float64 {
	numCov := len(coef)
	numResp := 0
	if numCov > 0 {
		numResp = len(coef[0])
	}
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, numCov+numResp)
		for v := 0; v < numCov; v++ {
			row[v] = rng.NormFloat64()
		}
		for j := 0; j < numResp; j++ {
			y := rng.NormFloat64()
			for v := 0; v < numCov; v++ {
				y += coef[v][j] * row[v]
			}
			row[numCov+j] = y
		}
		out[i] = row
	}
	return out
}

// GenForest draws n observations from a Gaussian Markov forest over the
// given edges: each edge correlates its endpoints with coefficient rho by
// propagating along a breadth-first orientation.
func GenForest(rng *rand.Rand, n, numVariables int, edges [][2]int, rho float64) [][]float64 {
	adj := make(map[int][]int)
	for _, e := range edges {
		adj[e[0]] = append(adj[e[0]], e[1])
		adj[e[1]] = append(adj[e[1]], e[0])
	}
	slope := rho
	noise := math.Sqrt(1 - rho*rho)

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, numVariables)
		assigned := make([]bool, numVariables)
		for root := 0; root < numVariables; root++ {
			if assigned[root] {
				continue
			}
			row[root] = rng.NormFloat64()
			assigned[root] = true
			queue := []int{root}
			for len(queue) > 0 {
				u := queue[0]
				queue = queue[1:]
				for _, v := range adj[u] {
					if assigned[v] {
						continue
					}
					row[v] = slope*row[u] + noise*rng.NormFloat64()
					assigned[v] = true
					queue = append(queue, v)
				}
			}
		}
		out[i] = row
	}
	return out
}

func sampleCategorical(rng *rand.Rand, weights []float64) int {
	u := rng.Float64()
	acc := 0.0
	for c, w := range weights {
		acc += w
		if u < acc {
			return c
		}
	}
	return len(weights) - 1
}
