// Package api provides HTTP handlers for the devstack status API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mathesar-foundation/devstack/internal/shell/docker"
	"github.com/mathesar-foundation/devstack/internal/shell/store"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store        store.Store
	docker       docker.Client
	orchestrator *docker.Orchestrator
	logger       *slog.Logger
	project      string
}

// NewHandler creates a new API handler scoped to one project.
func NewHandler(s store.Store, d docker.Client, l *slog.Logger, project string) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		store:        s,
		docker:       d,
		orchestrator: docker.NewOrchestrator(d, l),
		logger:       l,
		project:      project,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.handleStatus)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.handleListRuns)
			r.Get("/{id}", h.handleGetRun)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	// Check database (implicit - if we got here, store was created)
	checks["database"] = "ok"

	// Check Docker
	if err := h.docker.Ping(r.Context()); err != nil {
		checks["docker"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["docker"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Status Handler
// =============================================================================

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Project:    h.project,
		Containers: []ContainerStateResponse{},
	}

	run, err := h.store.GetLatestRun(r.Context(), h.project)
	if err != nil && !isNotFound(err) {
		h.logger.Error("failed to load latest run", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load latest run", "internal_error")
		return
	}
	if run != nil {
		rr := runToResponse(run)
		resp.Run = &rr
	}

	containers, err := h.orchestrator.Status(r.Context(), h.project)
	if err != nil {
		h.logger.Error("failed to list containers", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list containers", "internal_error")
		return
	}

	for _, c := range containers {
		resp.Containers = append(resp.Containers, ContainerStateResponse{
			Service: c.Service(),
			Name:    c.Name,
			Image:   c.Image,
			State:   c.State,
			Health:  c.Health,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Run Handlers
// =============================================================================

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	opts := store.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			opts.Offset = n
		}
	}

	runs, err := h.store.ListRuns(r.Context(), h.project, opts)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list runs", "internal_error")
		return
	}

	resp := ListRunsResponse{Runs: []RunResponse{}, Count: len(runs)}
	for i := range runs {
		resp.Runs = append(resp.Runs, runToResponse(&runs[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "run not found", "run_not_found")
			return
		}
		h.logger.Error("failed to get run", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get run", "internal_error")
		return
	}

	containers, err := h.store.ListRunContainers(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list run containers", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list run containers", "internal_error")
		return
	}

	resp := RunDetailResponse{
		RunResponse: runToResponse(run),
		Containers:  []RunContainerResponse{},
	}
	for _, rc := range containers {
		resp.Containers = append(resp.Containers, RunContainerResponse{
			ServiceName:   rc.ServiceName,
			ContainerID:   rc.ContainerID,
			ContainerName: rc.ContainerName,
			Image:         rc.Image,
			State:         rc.State,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Helpers
// =============================================================================

func runToResponse(run *store.Run) RunResponse {
	return RunResponse{
		ID:           run.ID,
		Project:      run.Project,
		ManifestPath: run.ManifestPath,
		Status:       string(run.Status),
		ErrorMessage: run.ErrorMessage,
		CreatedAt:    run.CreatedAt,
		StartedAt:    run.StartedAt,
		StoppedAt:    run.StoppedAt,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
