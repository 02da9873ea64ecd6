package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/measured-metrics/pkg/cache"
	"github.com/Sternrassler/measured-metrics/pkg/httpmetrics"
	"github.com/Sternrassler/measured-metrics/pkg/registry"
	"github.com/Sternrassler/measured-metrics/pkg/snapshot"
)

// snapshotTTL is the Cache-Control lifetime of live snapshot responses.
const snapshotTTL = 5 * time.Second

// app wires the HTTP surface of the metrics server.
type app struct {
	registry *registry.Registry
	svc      *snapshot.Service
	server   *httpmetrics.ServerMetrics
	cache    *cache.Manager // nil without Redis
	cacheKey cache.Key
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /names", a.namesHandler)
	mux.HandleFunc("GET /snapshot", a.snapshotHandler)
	mux.HandleFunc("GET /snapshot/cached", a.cachedSnapshotHandler)

	if a.server == nil {
		return mux
	}
	return a.server.Middleware(mux)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (a *app) namesHandler(w http.ResponseWriter, r *http.Request) {
	names, err := a.svc.MetricsNames()
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(names); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

// snapshotHandler renders ?prefix=<ns> or, without it, the whole registry.
// An unknown prefix answers 404.
func (a *app) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	var (
		snap snapshot.Snapshot
		err  error
	)
	if prefix := r.URL.Query().Get("prefix"); prefix != "" {
		snap, err = a.svc.Prefix(prefix)
	} else {
		snap, err = a.svc.All()
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	if snap == nil {
		http.Error(w, "no metrics registered under this prefix", http.StatusNotFound)
		return
	}

	if err := cache.WriteEntry(w, r, cache.NewEntry(snap, snapshotTTL)); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

// cachedSnapshotHandler serves the snapshot last published to Redis.
func (a *app) cachedSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	if a.cache == nil {
		http.Error(w, "snapshot cache not configured", http.StatusServiceUnavailable)
		return
	}

	entry, err := a.cache.Get(r.Context(), a.cacheKey)
	if errors.Is(err, cache.ErrCacheMiss) {
		http.Error(w, "no snapshot published yet", http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Warn().Err(err).Msg("Cache read failed")
		http.Error(w, "snapshot cache unavailable", http.StatusBadGateway)
		return
	}

	if err := cache.WriteEntry(w, r, entry); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func (a *app) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, registry.ErrRegistryClosed) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	a.logger.Error().Err(err).Msg("Request failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}
