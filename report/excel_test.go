package report

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"gosbic/domain/model"
	"gosbic/sim"
)

func sampleTable() *model.ScoreTable {
	return &model.ScoreTable{
		SampleSize: 50,
		Rows: []model.ScoreRow{
			{Model: 1, Complexity: 1, Dimension: 2, LogLike: -80, BIC: -167.8, SBIC: -167.8, DominantBy: 1},
			{Model: 2, Complexity: 2, Dimension: 5, LogLike: math.NaN(), BIC: math.NaN(), SBIC: math.NaN(), Err: "fit failed"},
			{Model: 3, Complexity: 3, Dimension: 8, LogLike: -70, BIC: -171.3, SBIC: -160.1, DominantBy: 1},
		},
		SelectedBIC:  1,
		SelectedSBIC: 3,
	}
}

func TestWriteScoreTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.xlsx")
	w := NewWriter()
	if err := w.WriteScoreTable("Scores", sampleTable()); err != nil {
		t.Fatal(err)
	}
	if err := w.Save(path); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue("Scores", "A1"); got != "model" {
		t.Errorf("header A1 = %q, want model", got)
	}
	// Failed fit renders as NA, not as a number.
	if got, _ := f.GetCellValue("Scores", "E3"); got != "NA" {
		t.Errorf("failed-fit BIC cell = %q, want NA", got)
	}
	if got, _ := f.GetCellValue("Scores", "A3"); got != "2" {
		t.Errorf("model id cell = %q, want 2", got)
	}
	sheets := f.GetSheetList()
	for _, s := range sheets {
		if s == "Sheet1" {
			t.Error("default sheet should have been dropped")
		}
	}
}

func TestWriteTabulation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tab.xlsx")
	tab := sim.Tabulation{
		Replicates: 10,
		Failed:     1,
		FreqBIC:    map[int]int{2: 7, 3: 2},
		FreqSBIC:   map[int]int{4: 9},
		ModalBIC:   2,
		ModalSBIC:  4,
	}
	w := NewWriter()
	if err := w.WriteTabulation("Tabulation", tab); err != nil {
		t.Fatal(err)
	}
	if err := w.Save(path); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	// Complexities are sorted, so row 2 holds complexity 2.
	if got, _ := f.GetCellValue("Tabulation", "A2"); got != "2" {
		t.Errorf("first complexity = %q, want 2", got)
	}
	if got, _ := f.GetCellValue("Tabulation", "B2"); got != "7" {
		t.Errorf("BIC picks for complexity 2 = %q, want 7", got)
	}
}
