// Package server exposes the scoring engine over HTTP: one JSON endpoint
// that builds a family from structural parameters, binds the posted data
// and returns the score table.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gosbic/domain/model"
	"gosbic/engine"
	"gosbic/family"
	"gosbic/internal"
	"gosbic/internal/errors"
)

// App wires the router and the scoring engine.
type App struct {
	router *chi.Mux
	engine *engine.Engine
	logger *internal.Logger
}

// NewApp creates the HTTP application.
func NewApp() *App {
	app := &App{
		router: chi.NewRouter(),
		engine: engine.New(),
		logger: internal.DefaultLogger,
	}
	app.router.Use(middleware.RequestID)
	app.router.Use(middleware.Recoverer)
	app.router.Get("/healthz", app.handleHealth)
	app.router.Post("/v1/score", app.handleScore)
	return app
}

// Handler returns the root handler for serving.
func (a *App) Handler() http.Handler {
	return a.router
}

// ScoreRequest selects a family, supplies its structural parameters and the
// observation matrix, and optionally the penalty.
type ScoreRequest struct {
	Family        string      `json:"family"` // latentClass, gaussianMixture, factorAnalysis, reducedRank, gaussianForest
	NumVariables  int         `json:"num_variables,omitempty"`
	MaxClasses    int         `json:"max_classes,omitempty"`
	MaxComponents int         `json:"max_components,omitempty"`
	NumCovariates int         `json:"num_covariates,omitempty"`
	NumResponses  int         `json:"num_responses,omitempty"`
	MaxFactors    int         `json:"max_factors,omitempty"`
	MaxRank       int         `json:"max_rank,omitempty"`
	TreeEdges     [][2]int    `json:"tree_edges,omitempty"`
	Phi           *float64    `json:"phi,omitempty"`
	Data          [][]float64 `json:"data"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	fam, err := buildFamily(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var penalty *model.Penalty
	if req.Phi != nil {
		penalty = &model.Penalty{Phi: *req.Phi}
	}

	table, err := a.engine.Score(r.Context(), req.Data, fam, penalty, model.DefaultFitOptions())
	if err != nil {
		status := http.StatusInternalServerError
		switch errors.GetCode(err) {
		case errors.CodeDimensionMismatch, errors.CodeConfigInvalid:
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	a.logger.Info("scored %s family: n=%d selectedSBIC=%d", req.Family, table.SampleSize, table.SelectedSBIC)
	writeJSON(w, http.StatusOK, table)
}

// buildFamily constructs the requested family from structural parameters only.
func buildFamily(req ScoreRequest) (family.ModelPoset, error) {
	switch req.Family {
	case "latentClass":
		return family.NewLatentClass(req.NumVariables, req.MaxClasses)
	case "gaussianMixture":
		return family.NewGaussianMixture(req.MaxComponents)
	case "factorAnalysis":
		return family.NewFactorAnalysis(req.NumCovariates, req.MaxFactors)
	case "reducedRank":
		return family.NewReducedRank(req.NumCovariates, req.NumResponses, req.MaxRank)
	case "gaussianForest":
		return family.NewGaussianForest(req.NumVariables, req.TreeEdges)
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown family %q", req.Family))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}
