package main

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/orchestrator"
	"github.com/sells-group/atlas-cli/internal/store"
)

// newRouter builds the HTTP API.
func newRouter(env *appEnv, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/funnel", handleFunnel(env))
	r.Get("/funnel/deal-sources", handleDealSources(env))
	r.Post("/reports/generate", handleGenerateReport(env))
	r.Get("/reports/{id}", handleGetReport(env))
	r.Get("/metrics/usage", handleUsage(env))

	return r
}

func handleFunnel(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env.Recorder.RecordRequest("funnel")

		// The HTTP funnel path substitutes yesterday for an end token of
		// "today": GA4 intraday numbers are not final.
		dr, err := env.Orchestrator.ResolveRange(
			r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"), true)
		if err != nil {
			writeError(w, r, err)
			return
		}

		f, err := env.Orchestrator.Funnel(r.Context(), dr)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"funnel": map[string]any{
				"level1": f.Level1,
				"level2": f.Level2,
				"level3": f.Level3,
				"level4": f.Level4,
			},
			"conversionRates": f.ConversionRates,
			"dateRange":       f.DateRange,
			"partial":         f.Partial,
			"degraded":        f.Degraded,
		})
	}
}

func handleDealSources(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env.Recorder.RecordRequest("deal_sources")

		dr, err := env.Orchestrator.ResolveRange(
			r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"), true)
		if err != nil {
			writeError(w, r, err)
			return
		}

		report, err := env.Orchestrator.DealSources(r.Context(), dr)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}

func handleGenerateReport(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env.Recorder.RecordRequest("reports")

		var req orchestrator.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		rep, err := env.Orchestrator.GenerateReport(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if err := env.Store.SaveReport(r.Context(), toStoredReport(rep, req)); err != nil {
			zap.L().Error("save report failed", zap.String("report_id", rep.ReportID), zap.Error(err))
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"reportId": rep.ReportID,
			"markdown": rep.Markdown,
			"metadata": rep.Metadata,
			"partial":  rep.Partial,
			"degraded": rep.Degraded,
		})
	}
}

func handleGetReport(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rep, err := env.Store.GetReport(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
				return
			}
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

func handleUsage(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, env.Recorder.Snapshot())
	}
}

func toStoredReport(rep *orchestrator.Report, req orchestrator.Request) *store.Report {
	return &store.Report{
		ID:          rep.ReportID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Connectors:  req.Connectors,
		Markdown:    rep.Markdown,
		Partial:     rep.Partial,
		Degraded:    rep.Degraded,
		GeneratedAt: rep.Metadata.GeneratedAt,
		ExecSeconds: int(math.Round(rep.Metadata.ExecutionTimeSeconds)),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response failed", zap.Error(err))
	}
}

// writeError maps the error taxonomy to HTTP statuses: validation errors
// are the caller's fault, everything else is a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if orchestrator.IsValidation(err) {
		status = http.StatusBadRequest
	} else {
		zap.L().Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
