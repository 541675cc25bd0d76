package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/LazyCorpz/Signal-Server/middleware"
	"github.com/LazyCorpz/Signal-Server/pkg/limits"
	"github.com/LazyCorpz/Signal-Server/pkg/logger"
)

// maxBodyBytes caps the size of request bodies
const maxBodyBytes = 1 << 16

// Handler exposes a limits.Registry over HTTP
type Handler struct {
	registry *limits.Registry
	metrics  MetricsRecorder
	logger   *slog.Logger
}

// MetricsRecorder defines the interface for recording metrics
type MetricsRecorder interface {
	RecordCheck(limiterID string, allowed bool)
}

// NewHandler creates a new API handler. metrics and log may be nil.
func NewHandler(registry *limits.Registry, metrics MetricsRecorder, log *slog.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		registry: registry,
		metrics:  metrics,
		logger:   log,
	}
}

// Register adds the limiter routes to mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/limiters", h.ListLimiters)
	mux.HandleFunc("GET /v1/limiters/{id}", h.GetLimiter)
	mux.HandleFunc("POST /v1/limiters/{id}/validate", h.Validate)
	mux.HandleFunc("POST /v1/limiters/{id}/reset", h.Reset)
}

// ValidateRequest represents the incoming rate limit check request
type ValidateRequest struct {
	Key    string `json:"key"`              // Required: subject key (account, phone number, IP)
	Amount int64  `json:"amount,omitempty"`  // Optional: defaults to 1
	DryRun bool   `json:"dry_run,omitempty"` // Optional: only check, do not consume
}

// ValidateResponse represents the rate limit check response
type ValidateResponse struct {
	LimiterID    string `json:"limiter_id"`
	Allowed      bool   `json:"allowed"`
	DryRun       bool   `json:"dry_run,omitempty"`
	RetryAfterMs int64  `json:"retry_after_ms,omitempty"` // Milliseconds until retry (if rejected)
}

// ResetRequest names the bucket to empty
type ResetRequest struct {
	Key string `json:"key"`
}

// LimiterInfo describes a limiter and the config it currently uses
type LimiterInfo struct {
	ID           string `json:"id"`
	Dynamic      bool   `json:"dynamic"`
	Capacity     int64  `json:"capacity"`
	RefillPeriod string `json:"refill_period"`
	FailOpen     bool   `json:"fail_open"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Validate handles POST /v1/limiters/{id}/validate requests
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	limiter, ok := h.limiter(w, r)
	if !ok {
		return
	}

	var req ValidateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Key == "" {
		h.sendError(w, r, http.StatusBadRequest, "missing_key", "key is required")
		return
	}
	if req.Amount == 0 {
		req.Amount = 1
	}
	if req.Amount < 0 {
		h.sendError(w, r, http.StatusBadRequest, "invalid_amount", "amount must be positive")
		return
	}

	resp := ValidateResponse{LimiterID: limiter.ID(), DryRun: req.DryRun}

	if req.DryRun {
		available, err := limiter.HasAvailableCapacity(r.Context(), req.Key, req.Amount)
		if err != nil {
			h.sendLimiterError(w, r, limiter.ID(), err)
			return
		}
		resp.Allowed = available
		h.sendJSON(w, http.StatusOK, resp)
		return
	}

	err := limiter.Validate(r.Context(), req.Key, req.Amount)
	var exceeded *limits.RateLimitExceededError
	switch {
	case err == nil:
		h.record(limiter.ID(), true)
		resp.Allowed = true
		h.sendJSON(w, http.StatusOK, resp)

	case errors.As(err, &exceeded):
		h.record(limiter.ID(), false)
		resp.RetryAfterMs = exceeded.RetryAfter.Milliseconds()
		w.Header().Set("Retry-After", strconv.FormatInt(middleware.RetryAfterSeconds(exceeded.RetryAfter), 10))
		h.sendJSON(w, http.StatusTooManyRequests, resp)

	default:
		h.sendLimiterError(w, r, limiter.ID(), err)
	}
}

// Reset handles POST /v1/limiters/{id}/reset requests
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	limiter, ok := h.limiter(w, r)
	if !ok {
		return
	}

	var req ResetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Key == "" {
		h.sendError(w, r, http.StatusBadRequest, "missing_key", "key is required")
		return
	}

	if err := limiter.Reset(r.Context(), req.Key); err != nil {
		h.sendLimiterError(w, r, limiter.ID(), err)
		return
	}
	h.logger.Info("rate limit bucket reset",
		logger.Limiter(limiter.ID()), logger.Key(req.Key), logger.RequestID(RequestIDFromContext(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}

// ListLimiters handles GET /v1/limiters requests
func (h *Handler) ListLimiters(w http.ResponseWriter, r *http.Request) {
	descriptors := h.registry.Descriptors()
	infos := make([]LimiterInfo, 0, len(descriptors))
	for _, d := range descriptors {
		info, err := h.info(d)
		if err != nil {
			h.sendError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		infos = append(infos, info)
	}
	h.sendJSON(w, http.StatusOK, infos)
}

// GetLimiter handles GET /v1/limiters/{id} requests
func (h *Handler) GetLimiter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, d := range h.registry.Descriptors() {
		if d.ID != id {
			continue
		}
		info, err := h.info(d)
		if err != nil {
			h.sendError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		h.sendJSON(w, http.StatusOK, info)
		return
	}
	h.sendError(w, r, http.StatusNotFound, "unknown_limiter", "No limiter named "+strconv.Quote(id))
}

func (h *Handler) info(d limits.Descriptor) (LimiterInfo, error) {
	cfg, err := h.registry.CurrentConfig(d.ID)
	if err != nil {
		return LimiterInfo{}, err
	}
	return LimiterInfo{
		ID:           d.ID,
		Dynamic:      d.Dynamic,
		Capacity:     cfg.Capacity,
		RefillPeriod: cfg.RefillPeriod.String(),
		FailOpen:     cfg.FailOpen,
	}, nil
}

func (h *Handler) limiter(w http.ResponseWriter, r *http.Request) (limits.Limiter, bool) {
	id := r.PathValue("id")
	limiter, err := h.registry.Limiter(id)
	if err != nil {
		h.sendError(w, r, http.StatusNotFound, "unknown_limiter", "No limiter named "+strconv.Quote(id))
		return nil, false
	}
	return limiter, true
}

// decode reads a JSON body of at most maxBodyBytes into v, answering the
// request itself on failure
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.sendError(w, r, http.StatusRequestEntityTooLarge, "request_too_large",
			"Request body must not exceed "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
		return false
	}
	h.sendError(w, r, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
	return false
}

func (h *Handler) record(limiterID string, allowed bool) {
	if h.metrics != nil {
		h.metrics.RecordCheck(limiterID, allowed)
	}
}

func (h *Handler) sendLimiterError(w http.ResponseWriter, r *http.Request, limiterID string, err error) {
	switch {
	case errors.Is(err, limits.ErrInvalidKey), errors.Is(err, limits.ErrInvalidAmount):
		h.sendError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, limits.ErrStoreUnavailable):
		h.logger.Error("rate limiter store unavailable",
			logger.Limiter(limiterID), logger.Error(err), logger.RequestID(RequestIDFromContext(r.Context())))
		h.sendError(w, r, http.StatusServiceUnavailable, "store_unavailable", "Rate limiting is temporarily unavailable")
	default:
		h.logger.Error("rate limit check failed",
			logger.Limiter(limiterID), logger.Error(err), logger.RequestID(RequestIDFromContext(r.Context())))
		h.sendError(w, r, http.StatusInternalServerError, "internal_error", "Internal Server Error")
	}
}

func (h *Handler) sendJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	h.sendJSON(w, statusCode, ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestID: RequestIDFromContext(r.Context()),
	})
}
