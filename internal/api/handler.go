package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/tagmanager/internal/analytics"
	"github.com/gyaneshwarpardhi/tagmanager/internal/metrics"
	"github.com/gyaneshwarpardhi/tagmanager/internal/provider"
	"github.com/gyaneshwarpardhi/tagmanager/internal/telemetry"
)

const maxTrackBody = 16 << 10

// Handler holds all HTTP handler dependencies.
type Handler struct {
	store    *provider.Store
	recorder analytics.Recorder
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(store *provider.Store, recorder analytics.Recorder, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{store: store, recorder: recorder, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /api/config/{containerId}", h.getConfig)
	h.mux.HandleFunc("POST /api/analytics/track", h.track)
	h.mux.HandleFunc("GET /api/containers", h.listContainers)
	h.mux.HandleFunc("POST /api/containers/reload", h.reloadContainers)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(logger, corsMiddleware(h.mux))
}

// GET /api/config/{containerId}: published container document.
// Missing and disabled containers are both 404.
func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("containerId")
	doc, ok := h.store.Get(id)
	if !ok || !doc.IsEnabled() {
		metrics.ConfigRequests.WithLabelValues(strconv.Itoa(http.StatusNotFound)).Inc()
		writeError(w, http.StatusNotFound, fmt.Sprintf("container %q not found", id))
		return
	}
	metrics.ConfigRequests.WithLabelValues(strconv.Itoa(http.StatusOK)).Inc()
	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, doc.Published())
}

// POST /api/analytics/track: fire-and-forget hit from the engine.
func (h *Handler) track(w http.ResponseWriter, r *http.Request) {
	var hit telemetry.Hit
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTrackBody)).Decode(&hit); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if hit.ContainerID == "" || hit.TagID == "" {
		writeError(w, http.StatusBadRequest, "containerId and tagId are required")
		return
	}
	if hit.Timestamp.IsZero() {
		hit.Timestamp = time.Now().UTC()
	}

	status := "ok"
	if err := h.recorder.Record(r.Context(), hit); err != nil {
		status = "error"
		h.logger.Warn("analytics record failed", "recorder", h.recorder.Name(), "err", err)
	}
	metrics.AnalyticsHits.WithLabelValues(h.recorder.Name(), status).Inc()
	w.WriteHeader(http.StatusNoContent)
}

type containerSummary struct {
	ContainerID string `json:"containerId"`
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Enabled     bool   `json:"enabled"`
	Tags        int    `json:"tags"`
}

// GET /api/containers: list loaded containers.
func (h *Handler) listContainers(w http.ResponseWriter, r *http.Request) {
	ids := h.store.IDs()
	out := make([]containerSummary, 0, len(ids))
	for _, id := range ids {
		doc, ok := h.store.Get(id)
		if !ok {
			continue
		}
		out = append(out, containerSummary{
			ContainerID: doc.ContainerID,
			Name:        doc.Name,
			Version:     doc.Version,
			Enabled:     doc.IsEnabled(),
			Tags:        len(doc.Tags),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"containers": out})
}

// POST /api/containers/reload: re-read the containers directory.
func (h *Handler) reloadContainers(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":         true,
		"containers_count": n,
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
