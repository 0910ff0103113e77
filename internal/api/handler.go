// Package api exposes the assistant turns over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "pantry-assistant/internal/common/errors"
	"pantry-assistant/internal/common/logger"
	"pantry-assistant/internal/intent"
	"pantry-assistant/internal/models"
)

const (
	HeaderUserID = "X-User-ID"
	HeaderLocale = "Accept-Language"

	maxBodyBytes = 1 << 20
)

// Orchestrator is the conversation engine the handler drives.
type Orchestrator interface {
	Propose(ctx context.Context, user *models.User, text string, ictx intent.Context) intent.TurnResult
	Answer(ctx context.Context, user *models.User, actionName string, draft intent.Draft, answers intent.Answers, ictx intent.Context) intent.TurnResult
	Apply(ctx context.Context, user *models.User, actionName string, draft intent.Draft, ictx intent.Context) (intent.TurnResult, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Middleware wraps a route handler, typically to record request metrics.
type Middleware func(route string, next http.Handler) http.Handler

type Config struct {
	Debug          bool
	RequestTimeout time.Duration
}

type Handler struct {
	orchestrator Orchestrator
	ready        []Pinger
	config       Config
	errors       *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(orch Orchestrator, cfg Config, log logger.Logger, ready ...Pinger) *Handler {
	log = log.With(map[string]interface{}{"component": "api"})
	return &Handler{
		orchestrator: orch,
		ready:        ready,
		config:       cfg,
		errors:       apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

// Routes returns the assistant mux. wrap may be nil.
func (h *Handler) Routes(wrap Middleware) *http.ServeMux {
	if wrap == nil {
		wrap = func(_ string, next http.Handler) http.Handler { return next }
	}
	mux := http.NewServeMux()
	mux.Handle("POST /v1/propose", wrap("/v1/propose", http.HandlerFunc(h.Propose)))
	mux.Handle("POST /v1/answer", wrap("/v1/answer", http.HandlerFunc(h.Answer)))
	mux.Handle("POST /v1/apply", wrap("/v1/apply", http.HandlerFunc(h.Apply)))
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (h *Handler) Propose(w http.ResponseWriter, r *http.Request) {
	var req ProposeRequest
	if err := decode(w, r, &req); err != nil {
		h.errors.WriteHTTPError(w, r, err)
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	user := userFrom(r)
	result := h.orchestrator.Propose(ctx, user, req.Text, h.turnContext(r, req.Locale))
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := decode(w, r, &req); err != nil {
		h.errors.WriteHTTPError(w, r, err)
		return
	}
	if err := validateDraftRequest(req.Action, req.Draft); err != nil {
		h.errors.WriteHTTPError(w, r, err)
		return
	}
	if req.Answers == nil {
		req.Answers = intent.Answers{}
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	user := userFrom(r)
	result := h.orchestrator.Answer(ctx, user, req.Action, req.Draft, req.Answers, h.turnContext(r, req.Locale))
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := decode(w, r, &req); err != nil {
		h.errors.WriteHTTPError(w, r, err)
		return
	}
	if err := validateDraftRequest(req.Action, req.Draft); err != nil {
		h.errors.WriteHTTPError(w, r, err)
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	user := userFrom(r)
	result, err := h.orchestrator.Apply(ctx, user, req.Action, req.Draft, h.turnContext(r, req.Locale))
	if err != nil {
		h.errors.WriteHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "healthy", Time: time.Now().Format(time.RFC3339)})
}

// Ready pings every dependency and reports 503 on the first failure.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, p := range h.ready {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", map[string]interface{}{"error": err.Error()})
			writeJSON(w, http.StatusServiceUnavailable, statusResponse{
				Status: "unavailable",
				Time:   time.Now().Format(time.RFC3339),
				Error:  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ready", Time: time.Now().Format(time.RFC3339)})
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.config.RequestTimeout)
}

// turnContext prefers the body locale over Accept-Language.
func (h *Handler) turnContext(r *http.Request, locale string) intent.Context {
	if locale == "" {
		locale = r.Header.Get(HeaderLocale)
	}
	return intent.Context{Locale: locale, Debug: h.config.Debug}
}

// userFrom reads the caller identity. A missing header is an anonymous
// request.
func userFrom(r *http.Request) *models.User {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return nil
	}
	return &models.User{ID: id}
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewInvalidRequestError(fmt.Sprintf("decode body: %v", err))
	}
	return nil
}

func validateDraftRequest(action string, draft intent.Draft) error {
	if strings.TrimSpace(action) == "" {
		return apperrors.NewInvalidRequestError("action is required")
	}
	if draft.IsEmpty() {
		return apperrors.NewInvalidRequestError("draft is required")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
