package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gosbic/domain/model"
	"gosbic/internal/testkit"
)

func TestHealthz(t *testing.T) {
	app := NewApp()
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestScoreEndpoint(t *testing.T) {
	app := NewApp()
	phi := 1.0
	body, _ := json.Marshal(ScoreRequest{
		Family:       "gaussianForest",
		NumVariables: 3,
		Phi:          &phi,
		Data:         testkit.PathForestData(2, 80, 3, 0.6),
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/score", bytes.NewReader(body))
	app.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var table model.ScoreTable
	if err := json.Unmarshal(rec.Body.Bytes(), &table); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if table.SampleSize != 80 {
		t.Errorf("SampleSize = %d, want 80", table.SampleSize)
	}
	// Path over 3 variables: 2 tree edges, 4 edge subsets.
	if len(table.Rows) != 4 {
		t.Errorf("expected 4 rows, got %d", len(table.Rows))
	}
	if table.SelectedSBIC < 0 {
		t.Errorf("selection missing: %d", table.SelectedSBIC)
	}
}

func TestScoreEndpointRejectsUnknownFamily(t *testing.T) {
	app := NewApp()
	body, _ := json.Marshal(ScoreRequest{Family: "quantumFoam", Data: [][]float64{{1}, {2}}})
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/score", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["code"] != "CONFIG_INVALID" {
		t.Errorf("error code = %q, want CONFIG_INVALID", resp["code"])
	}
}

func TestScoreEndpointRejectsBadShape(t *testing.T) {
	app := NewApp()
	body, _ := json.Marshal(ScoreRequest{
		Family:       "latentClass",
		NumVariables: 4,
		MaxClasses:   2,
		Data:         [][]float64{{1, 0}, {0, 1}},
	})
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/score", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
