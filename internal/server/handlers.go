package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/clipfarm/extractor/internal/job"
	"github.com/clipfarm/extractor/internal/pool"
	"github.com/clipfarm/extractor/internal/runner"
)

// Handlers contains the HTTP handlers for the control plane API.
type Handlers struct {
	store     *job.Store
	pool      *pool.Manager
	runner    *runner.Runner
	validator *validator.Validate
	logger    *slog.Logger
	maxVideos int
}

// NewHandlers creates a new Handlers instance. maxVideos is the upper bound
// for items in a single process request.
func NewHandlers(store *job.Store, p *pool.Manager, r *runner.Runner, maxVideos int, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if maxVideos < 1 {
		maxVideos = 1
	}
	return &Handlers{
		store:     store,
		pool:      p,
		runner:    r,
		validator: validator.New(),
		logger:    logger,
		maxVideos: maxVideos,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Process handles POST /process requests: validates the batch, creates the
// job, enqueues the extraction run, and returns 202 immediately.
func (h *Handlers) Process(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	if len(req.Items) > h.maxVideos {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("too many items: at most %d videos per request", h.maxVideos),
			"BATCH_TOO_LARGE")
		return
	}

	items := make([]job.WorkItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = job.WorkItem{Platform: item.Platform, Code: item.Code}
	}

	// The job must be visible in the store before the 202 goes out: a
	// status poll right after the response must never observe it absent.
	created := h.store.Create(items)

	fut, err := h.pool.Submit(h.runner.Job(created.ID, created.Items))
	if err != nil {
		h.logger.Error("submission rejected",
			slog.String("job_id", created.ID.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusServiceUnavailable, "control plane is shutting down", "SHUTTING_DOWN")
		return
	}
	_ = fut // terminal state is observed through status polling

	h.logger.Info("job accepted",
		slog.String("job_id", created.ID.String()),
		slog.Int("items", len(items)),
	)

	writeJSON(w, http.StatusAccepted, ProcessResponse{JobID: created.ID.String()})
}

// Status handles GET /status/{jobId} requests. The optional tail query
// truncates logs to the last N entries, preserving insertion order.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("jobId"))
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return
	}

	found, ok := h.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return
	}

	logs := found.Logs
	if tail, err := strconv.Atoi(r.URL.Query().Get("tail")); err == nil && tail > 0 && tail < len(logs) {
		logs = logs[len(logs)-tail:]
	}

	resp := StatusResponse{
		Status:    string(found.Status),
		Progress:  found.Progress,
		CreatedAt: found.CreatedAt,
		UpdatedAt: found.UpdatedAt,
		Items:     make([]ItemResponse, len(found.Items)),
		Logs:      make([]LogResponse, len(logs)),
	}
	for i, item := range found.Items {
		resp.Items[i] = ItemResponse{
			Platform:   item.Platform,
			Code:       item.Code,
			ItemStatus: string(item.Status),
		}
	}
	for i, entry := range logs {
		resp.Logs[i] = LogResponse{Ts: entry.Ts, Level: string(entry.Level), Msg: entry.Msg}
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
