package family

import (
	"context"
	"fmt"
	"math/bits"

	"gosbic/domain/model"
	"gosbic/fit"
	"gosbic/internal/errors"
	"gosbic/poset"
)

// maxForestEdges caps the edge count so the 2^E member enumeration stays
// tractable.
const maxForestEdges = 14

// GaussianForest is the family of Gaussian Markov forests over a fixed
// spanning tree: one model per edge subset, ordered by subset inclusion.
// Unlike the chain families this is a genuine DAG with incomparable members.
type GaussianForest struct {
	familyBase
	numVariables int
	treeEdges    [][2]int
}

// NewGaussianForest constructs the family over numVariables observed
// Gaussian variables. treeEdges lists the 0-based endpoints of the spanning
// tree; nil means the path 0-1-...-numVariables-1.
func NewGaussianForest(numVariables int, treeEdges [][2]int) (*GaussianForest, error) {
	if numVariables < 2 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("forest family needs numVariables >= 2, got %d", numVariables))
	}
	if treeEdges == nil {
		for v := 0; v < numVariables-1; v++ {
			treeEdges = append(treeEdges, [2]int{v, v + 1})
		}
	}
	if len(treeEdges) > maxForestEdges {
		return nil, errors.ConfigInvalid(fmt.Sprintf("forest family supports at most %d tree edges, got %d", maxForestEdges, len(treeEdges)))
	}
	if err := validateForest(numVariables, treeEdges); err != nil {
		return nil, err
	}

	numEdges := len(treeEdges)
	numModels := 1 << numEdges
	posetEdges := make([]poset.Edge, 0, numModels*numEdges/2)
	for mask := 1; mask < numModels; mask++ {
		for b := 0; b < numEdges; b++ {
			if mask&(1<<b) != 0 {
				posetEdges = append(posetEdges, poset.Edge{Super: mask + 1, Sub: (mask &^ (1 << b)) + 1})
			}
		}
	}
	graph, err := poset.NewDAG(numModels, posetEdges)
	if err != nil {
		return nil, err
	}
	return &GaussianForest{
		familyBase:   newFamilyBase(graph),
		numVariables: numVariables,
		treeEdges:    treeEdges,
	}, nil
}

// validateForest rejects self-loops, out-of-range endpoints and cycles.
func validateForest(numVariables int, edges [][2]int) error {
	parent := make([]int, numVariables)
	for v := range parent {
		parent[v] = v
	}
	var find func(v int) int
	find = func(v int) int {
		if parent[v] != v {
			parent[v] = find(parent[v])
		}
		return parent[v]
	}
	for _, e := range edges {
		if e[0] < 0 || e[0] >= numVariables || e[1] < 0 || e[1] >= numVariables {
			return errors.ConfigInvalid(fmt.Sprintf("edge (%d, %d) references a variable outside [0, %d)", e[0], e[1], numVariables))
		}
		if e[0] == e[1] {
			return errors.ConfigInvalid(fmt.Sprintf("self-loop on variable %d", e[0]))
		}
		ru, rv := find(e[0]), find(e[1])
		if ru == rv {
			return errors.ConfigInvalid("tree edges contain a cycle")
		}
		parent[ru] = rv
	}
	return nil
}

// SetData binds an observation matrix with one column per variable.
func (f *GaussianForest) SetData(x [][]float64) error {
	if err := checkColumns(x, f.numVariables); err != nil {
		return err
	}
	f.bindData(x)
	return nil
}

// Complexity returns the edge count of a model.
func (f *GaussianForest) Complexity(id int) (int, error) {
	if err := f.checkID(id); err != nil {
		return 0, err
	}
	return bits.OnesCount(uint(id - 1)), nil
}

// GetDimension returns one variance per variable plus one correlation per
// edge of the model.
func (f *GaussianForest) GetDimension(id int) (int, error) {
	e, err := f.Complexity(id)
	if err != nil {
		return 0, err
	}
	return f.numVariables + e, nil
}

// LogLikeMle evaluates the closed-form forest maximum on first use.
func (f *GaussianForest) LogLikeMle(ctx context.Context, id int, opts model.FitOptions) (float64, error) {
	return f.memoizedFit(ctx, id, opts.Timeout, func(fitCtx context.Context) (float64, error) {
		return fit.GaussianForest(f.boundData(), f.modelEdges(id)), nil
	})
}

// LearnCoef returns the forest bound: half a unit per edge beyond the
// submodel.
//
//	lambda = (dim(j) + (e_i - e_j)/2) / 2, multiplicity 1
func (f *GaussianForest) LearnCoef(super, sub int) (model.LearnCoef, error) {
	if err := f.checkRelation(super, sub); err != nil {
		return model.LearnCoef{}, err
	}
	ei := bits.OnesCount(uint(super - 1))
	ej := bits.OnesCount(uint(sub - 1))
	dimSub := float64(f.numVariables + ej)
	lambda := (dimSub + float64(ei-ej)/2) / 2
	return model.LearnCoef{Lambda: lambda, Multiplicity: 1}, nil
}

// modelEdges lists the tree edges selected by a model's bitmask.
func (f *GaussianForest) modelEdges(id int) [][2]int {
	mask := id - 1
	out := make([][2]int, 0, bits.OnesCount(uint(mask)))
	for b, e := range f.treeEdges {
		if mask&(1<<b) != 0 {
			out = append(out, e)
		}
	}
	return out
}
