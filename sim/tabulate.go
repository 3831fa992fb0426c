package sim

import (
	"sort"

	"github.com/montanaflynn/stats"
)

// Tabulation summarizes which complexity each criterion selected across the
// replicates of one experiment.
type Tabulation struct {
	Replicates int         `json:"replicates"`
	Failed     int         `json:"failed"`
	FreqBIC    map[int]int `json:"freq_bic"`  // selected complexity -> count
	FreqSBIC   map[int]int `json:"freq_sbic"` // selected complexity -> count

	MeanBIC    float64 `json:"mean_bic"`
	MeanSBIC   float64 `json:"mean_sbic"`
	MedianBIC  float64 `json:"median_bic"`
	MedianSBIC float64 `json:"median_sbic"`
	ModalBIC   int     `json:"modal_bic"`
	ModalSBIC  int     `json:"modal_sbic"`
}

// Tabulate counts selections over successful replicates and attaches
// summary statistics of the selected complexities.
func Tabulate(results []ReplicateResult) Tabulation {
	tab := Tabulation{
		Replicates: len(results),
		FreqBIC:    make(map[int]int),
		FreqSBIC:   make(map[int]int),
	}
	var selBIC, selSBIC []float64
	for _, r := range results {
		if r.Err != nil || r.Table == nil {
			tab.Failed++
			continue
		}
		tab.FreqBIC[r.Table.SelectedBIC]++
		tab.FreqSBIC[r.Table.SelectedSBIC]++
		selBIC = append(selBIC, float64(r.Table.SelectedBIC))
		selSBIC = append(selSBIC, float64(r.Table.SelectedSBIC))
	}
	if len(selBIC) == 0 {
		return tab
	}

	tab.MeanBIC, _ = stats.Mean(selBIC)
	tab.MeanSBIC, _ = stats.Mean(selSBIC)
	tab.MedianBIC, _ = stats.Median(selBIC)
	tab.MedianSBIC, _ = stats.Median(selSBIC)
	tab.ModalBIC = modal(tab.FreqBIC)
	tab.ModalSBIC = modal(tab.FreqSBIC)
	return tab
}

// SelectionRate returns the fraction of successful replicates on which the
// criterion picked the given complexity.
func (t Tabulation) SelectionRate(freq map[int]int, complexity int) float64 {
	ok := t.Replicates - t.Failed
	if ok == 0 {
		return 0
	}
	return float64(freq[complexity]) / float64(ok)
}

// Complexities returns the sorted set of complexities either criterion
// selected at least once.
func (t Tabulation) Complexities() []int {
	seen := make(map[int]bool)
	for c := range t.FreqBIC {
		seen[c] = true
	}
	for c := range t.FreqSBIC {
		seen[c] = true
	}
	out := make([]int, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// modal returns the most frequent complexity, smallest first on ties.
func modal(freq map[int]int) int {
	keys := make([]int, 0, len(freq))
	for c := range freq {
		keys = append(keys, c)
	}
	sort.Ints(keys)
	best, bestCount := -1, 0
	for _, c := range keys {
		if freq[c] > bestCount {
			best, bestCount = c, freq[c]
		}
	}
	return best
}
