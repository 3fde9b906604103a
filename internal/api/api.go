// Package api exposes an HTTP view of the metadata ledger: read-only record
// and metrics endpoints, plus a trigger that starts a full pipeline run.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/ledger"
	"github.com/adlnet/edlm-portal-xia-jobs/internal/monitoring"
	"github.com/adlnet/edlm-portal-xia-jobs/internal/pipeline"
)

// Runner starts one full pipeline run. Satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunSummary, error)
}

// NewRouter builds the record API router. runner may be nil, in which case
// the run trigger responds 501.
func NewRouter(store ledger.Store, collector *monitoring.Collector, runner Runner) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/records", func(w http.ResponseWriter, req *http.Request) {
		filter := ledger.RecordFilter{
			Lifecycle:    ledger.LifecycleStatus(req.URL.Query().Get("lifecycle")),
			Transmission: ledger.TransmissionStatus(req.URL.Query().Get("transmission")),
			SourceKey:    req.URL.Query().Get("source_key"),
		}
		if limit := req.URL.Query().Get("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			filter.Limit = n
		}
		if offset := req.URL.Query().Get("offset"); offset != "" {
			n, err := strconv.Atoi(offset)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid offset")
				return
			}
			filter.Offset = n
		}

		records, err := store.ListRecords(req.Context(), filter)
		if err != nil {
			zap.L().Error("api: list records", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list records failed")
			return
		}
		if records == nil {
			records = []ledger.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	})

	r.Get("/records/{keyHash}", func(w http.ResponseWriter, req *http.Request) {
		keyHash := chi.URLParam(req, "keyHash")
		rec, err := store.ActiveByKeyHash(req.Context(), keyHash)
		if err != nil {
			zap.L().Error("api: get record", zap.String("key_hash", keyHash), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get record failed")
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, "no active record for key hash")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	var running sync.Mutex
	r.Post("/run", func(w http.ResponseWriter, req *http.Request) {
		if runner == nil {
			writeError(w, http.StatusNotImplemented, "pipeline runs not enabled")
			return
		}
		if !running.TryLock() {
			writeError(w, http.StatusConflict, "a pipeline run is already in progress")
			return
		}
		// Detach from the request context so the run survives the response.
		ctx := context.WithoutCancel(req.Context())
		go func() {
			defer running.Unlock()
			summary, err := runner.Run(ctx)
			if err != nil {
				zap.L().Error("api: pipeline run", zap.Error(err))
				return
			}
			zap.L().Info("api: pipeline run finished", zap.String("run_id", summary.RunID))
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		snap, err := collector.Collect(req.Context())
		if err != nil {
			zap.L().Error("api: collect metrics", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "collect metrics failed")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
