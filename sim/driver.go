package sim

import (
	"context"
	"math/rand"
	"runtime"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"gosbic/domain/model"
	"gosbic/engine"
	"gosbic/family"
	"gosbic/internal"
)

// Experiment describes a batch of independent replicates. Every replicate
// gets its own Family instance; sharing one instance across replicates
// without rebinding data would poison the fit cache, so the driver forbids
// it by construction.
type Experiment struct {
	Replicates int
	SampleSize int
	Seed       int64
	Workers    int // concurrent replicates, default NumCPU

	// NewFamily constructs a fresh family for one replicate.
	NewFamily func() (family.ModelPoset, error)
	// Generate draws one replicate's observation matrix.
	Generate func(rng *rand.Rand, n int) [][]float64

	Penalty    *model.Penalty
	FitOptions model.FitOptions
}

// ReplicateResult pairs one replicate's score table with its run identity.
type ReplicateResult struct {
	RunID     string
	Replicate int
	Table     *model.ScoreTable
	Err       error
}

// Run executes the experiment. Replicates are independent scoring calls and
// run concurrently; a failed replicate is reported in its result slot and
// never aborts the batch.
func Run(ctx context.Context, exp Experiment) ([]ReplicateResult, error) {
	workers := exp.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	eng := engine.NewWithWorkers(1) // per-replicate fits stay sequential; parallelism is across replicates
	sem := semaphore.NewWeighted(int64(workers))
	logger := internal.DefaultLogger

	results := make([]ReplicateResult, exp.Replicates)
	done := make(chan int, exp.Replicates)
	for rep := 0; rep < exp.Replicates; rep++ {
		go func(rep int) {
			defer func() { done <- rep }()
			results[rep] = ReplicateResult{
				RunID:     uuid.NewString(),
				Replicate: rep,
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				results[rep].Err = err
				return
			}
			defer sem.Release(1)

			fam, err := exp.NewFamily()
			if err != nil {
				results[rep].Err = err
				return
			}
			rng := rand.New(rand.NewSource(exp.Seed + int64(rep)))
			data := exp.Generate(rng, exp.SampleSize)

			opts := exp.FitOptions
			opts.Seed = exp.Seed + int64(rep)*1000003
			table, err := eng.Score(ctx, data, fam, exp.Penalty, opts)
			if err != nil {
				results[rep].Err = err
				return
			}
			results[rep].Table = table
		}(rep)
	}
	for i := 0; i < exp.Replicates; i++ {
		<-done
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		logger.Warn("%d of %d replicates failed", failed, exp.Replicates)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Replicate < results[j].Replicate })
	return results, nil
}
