package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/queue"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/store"
)

// JobQueue is the producer and operator side of the job table.
type JobQueue interface {
	Enqueue(ctx context.Context, orderID string, doc model.ReceiptDocument) (*model.PrintJob, error)
	List(ctx context.Context, status model.JobStatus, limit int) ([]*model.PrintJob, error)
	Requeue(ctx context.Context, id string) (*model.PrintJob, error)
}

type BatchProcessor interface {
	ProcessBatch(ctx context.Context) (model.BatchResult, error)
}

type StatusChecker interface {
	CheckStatus(ctx context.Context, host string, port int) (model.PrinterStatus, error)
}

type Handler struct {
	Jobs      JobQueue
	Processor BatchProcessor
	Monitor   StatusChecker
	Printer   model.Printer
	Secret    string
	Logger    *zap.SugaredLogger
}

const defaultListLimit = 100

func NewRouter(h *Handler) *chi.Mux {
	if h.Logger == nil {
		h.Logger = zap.NewNop().Sugar()
	}

	r := chi.NewRouter()
	r.Get(`/healthz`, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Route(`/print`, func(r chi.Router) {
		r.Use(h.RequireSecret)
		r.Post(`/process`, h.Process)
		r.Get(`/status`, h.Status)
		r.Post(`/jobs`, h.CreateJob)
		r.Get(`/jobs`, h.ListJobs)
		r.Post(`/jobs/{id}/requeue`, h.RequeueJob)
	})
	return r
}

// RequireSecret admits only requests carrying "Bearer <secret>". With no
// secret configured every request is turned away.
func (h *Handler) RequireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || h.Secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.Secret)) != 1 {
			h.Logger.Warnw("Unauthorized print request", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	result, err := h.Processor.ProcessBatch(r.Context())
	var cfgErr *queue.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		h.Logger.Errorw("Print processing misconfigured", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "result": result})
		return
	case err != nil:
		h.Logger.Errorw("Print processing failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error(), "result": result})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Status always probes the configured printer. The request cannot name a
// different host.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h.Printer.IP == "" {
		writeError(w, http.StatusInternalServerError, "printer host is not configured")
		return
	}
	status, err := h.Monitor.CheckStatus(r.Context(), h.Printer.IP, h.Printer.Port)
	if err != nil {
		h.Logger.Debugw("Printer status incomplete", "error", err)
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req model.NewJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" || len(req.Document) == 0 {
		writeError(w, http.StatusBadRequest, "order_id and print_data are required")
		return
	}
	var doc model.ReceiptDocument
	if err := json.Unmarshal(req.Document, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "print_data is not a receipt document")
		return
	}
	switch doc.OrderType {
	case "", model.OrderTypeDelivery, model.OrderTypeCarryout:
	default:
		writeError(w, http.StatusBadRequest, "unknown orderType")
		return
	}

	job, err := h.Jobs.Enqueue(r.Context(), req.OrderID, doc)
	if err != nil {
		h.Logger.Errorw("Failed to enqueue print job", "order", req.OrderID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := model.JobStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.JobStatusPending, model.JobStatusInProgress, model.JobStatusPrinted, model.JobStatusFailed:
	default:
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	jobs, err := h.Jobs.List(r.Context(), status, limit)
	if err != nil {
		h.Logger.Errorw("Failed to list print jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if jobs == nil {
		jobs = []*model.PrintJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) RequeueJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.Jobs.Requeue(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
		return
	case errors.Is(err, store.ErrNotRequeueable):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.Logger.Errorw("Failed to requeue print job", "job", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.Logger.Infow("Print job requeued", "job", id, "new_job", job.ID)
	writeJSON(w, http.StatusCreated, job)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// Serve runs the router until ctx ends, then drains connections.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.SugaredLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
