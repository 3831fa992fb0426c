package model

import (
	"encoding/json"
	"math"
	"time"
)

// ============================================================================
// STABLE PRIMITIVES (Canonical, never change)
// ============================================================================

// LearnCoef is the learning-coefficient bound attached to an ordered
// (superModel, subModel) pair of the nesting poset.
// INVARIANTS:
// - Lambda is an upper bound on the singular learning coefficient for the
//   pair, specific to the (super, sub) direction
// - Multiplicity >= 1
// - For the self pair (i, i): Lambda = dimension(i)/2, Multiplicity = 1
type LearnCoef struct {
	Lambda       float64 `json:"lambda"`
	Multiplicity int     `json:"multiplicity"`
}

// Penalty carries the mutable penalty configuration some families require
// for their learning-coefficient bounds. Changing it invalidates derived
// scores only, never cached maximum log-likelihoods.
type Penalty struct {
	Phi float64 `json:"phi"`
}

// FitOptions controls the external maximum-likelihood fit routines.
type FitOptions struct {
	Restarts int           `json:"restarts"` // independent optimizer starts, best kept
	MaxIter  int           `json:"max_iter"` // iteration cap per start
	Tol      float64       `json:"tol"`      // log-likelihood convergence tolerance
	Seed     int64         `json:"seed"`     // base seed for stochastic starts
	Timeout  time.Duration `json:"timeout"`  // per-fit deadline, 0 means none
}

// DefaultFitOptions returns the fit settings used when the caller passes
// the zero value.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Restarts: 5,
		MaxIter:  500,
		Tol:      1e-6,
		Seed:     1,
		Timeout:  30 * time.Second,
	}
}

// ============================================================================
// SCORE TABLE (engine output)
// ============================================================================

// ScoreRow holds both criteria for a single model. Values are on a log scale
// and comparable only within the same table. A failed fit leaves LogLike,
// BIC and SBIC as NaN with Err set; it is never absorbed as a zero score.
type ScoreRow struct {
	Model      int     `json:"model"`      // model id, 1-based
	Complexity int     `json:"complexity"` // family complexity index (classes, factors, rank, edges)
	Dimension  int     `json:"dimension"`  // free parameter count used by ordinary BIC
	LogLike    float64 `json:"log_like"`   // cached maximum log-likelihood
	BIC        float64 `json:"bic"`
	SBIC       float64 `json:"sbic"`
	DominantBy int     `json:"dominant_by"` // id of the submodel stratum whose candidate won the dominance search
	Err        string  `json:"error,omitempty"`
}

// OK reports whether the row carries usable scores.
func (r ScoreRow) OK() bool {
	return r.Err == "" && !math.IsNaN(r.BIC)
}

// MarshalJSON writes the NaN scores of a failed fit as nulls so tables stay
// JSON-encodable.
func (r ScoreRow) MarshalJSON() ([]byte, error) {
	orNil := func(v float64) *float64 {
		if math.IsNaN(v) {
			return nil
		}
		return &v
	}
	type row struct {
		Model      int      `json:"model"`
		Complexity int      `json:"complexity"`
		Dimension  int      `json:"dimension"`
		LogLike    *float64 `json:"log_like"`
		BIC        *float64 `json:"bic"`
		SBIC       *float64 `json:"sbic"`
		DominantBy int      `json:"dominant_by"`
		Err        string   `json:"error,omitempty"`
	}
	return json.Marshal(row{
		Model:      r.Model,
		Complexity: r.Complexity,
		Dimension:  r.Dimension,
		LogLike:    orNil(r.LogLike),
		BIC:        orNil(r.BIC),
		SBIC:       orNil(r.SBIC),
		DominantBy: r.DominantBy,
		Err:        r.Err,
	})
}

// ScoreTable is the engine output: one row per model plus the argmax
// selections under each criterion (ties resolved toward the smallest id).
type ScoreTable struct {
	SampleSize   int        `json:"sample_size"`
	Rows         []ScoreRow `json:"rows"`
	SelectedBIC  int        `json:"selected_bic"`  // complexity selected by ordinary BIC
	SelectedSBIC int        `json:"selected_sbic"` // complexity selected by singular BIC
}

// Row returns the row for a model id, or nil if absent.
func (t *ScoreTable) Row(id int) *ScoreRow {
	for i := range t.Rows {
		if t.Rows[i].Model == id {
			return &t.Rows[i]
		}
	}
	return nil
}

// Normalized returns a display copy with the column maximum subtracted from
// BIC and SBIC. Raw values in the receiver are preserved.
func (t *ScoreTable) Normalized() ScoreTable {
	out := ScoreTable{
		SampleSize:   t.SampleSize,
		Rows:         make([]ScoreRow, len(t.Rows)),
		SelectedBIC:  t.SelectedBIC,
		SelectedSBIC: t.SelectedSBIC,
	}
	copy(out.Rows, t.Rows)
	maxBIC, maxSBIC := math.Inf(-1), math.Inf(-1)
	for _, r := range t.Rows {
		if !r.OK() {
			continue
		}
		maxBIC = math.Max(maxBIC, r.BIC)
		maxSBIC = math.Max(maxSBIC, r.SBIC)
	}
	if math.IsInf(maxBIC, -1) {
		return out
	}
	for i := range out.Rows {
		if !out.Rows[i].OK() {
			continue
		}
		out.Rows[i].BIC -= maxBIC
		out.Rows[i].SBIC -= maxSBIC
	}
	return out
}
