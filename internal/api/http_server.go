package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"listraksync/internal/config"
	"listraksync/internal/domain"
	"listraksync/internal/events"
	"listraksync/internal/logging"
	"listraksync/internal/metrics"
	"listraksync/internal/models"
	"listraksync/internal/service"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// Syncer is the trigger surface the HTTP API forwards to.
type Syncer interface {
	SyncCustomers(ctx context.Context, scopeID string, offset, limit int) service.Result
	SyncOrders(ctx context.Context, scopeID string) service.Result
	SyncNewsletterRecipients(ctx context.Context, scopeID string) service.Result
	SyncProducts(ctx context.Context, scopeID string, limit int, local bool) service.Result
	RetryFailedRequests(ctx context.Context) service.Result
}

var hookEvents = map[string]bool{
	events.EventCustomerRegistered:         true,
	events.EventCustomerUpdated:            true,
	events.EventOrderPlaced:                true,
	events.EventOrderStateChanged:          true,
	events.EventNewsletterRecipientChanged: true,
}

// HTTPServer exposes the sync triggers, the host hooks and the failed
// request log over HTTP.
type HTTPServer struct {
	cfg    config.APIConfig
	sync   Syncer
	failed domain.FailedRequestLister
	bus    *events.EventBus
	server *http.Server
	auth   *HTTPAuth
	logger *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, sync Syncer, failed domain.FailedRequestLister, bus *events.EventBus, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:    cfg,
		sync:   sync,
		failed: failed,
		bus:    bus,
		auth:   NewHTTPAuth(cfg),
		logger: logging.Component(logger, "http_api"),
	}

	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/sync/", srv.handleSync)
	mux.HandleFunc("/api/v1/failed-requests", srv.handleFailedRequests)
	mux.HandleFunc("/api/v1/failed-requests/retry", srv.handleRetry)
	mux.HandleFunc("/api/v1/hooks/", srv.handleHook)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.loggingMiddleware(srv.auth.Wrap(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		// full syncs dispatch synchronously
		WriteTimeout: 2 * time.Minute,
	}

	return srv
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSync serves POST /api/v1/sync/{entity}?scope=&offset=&limit=&local=.
func (s *HTTPServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	scopeID := strings.TrimSpace(q.Get("scope"))
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	var res service.Result
	switch strings.TrimPrefix(r.URL.Path, "/api/v1/sync/") {
	case "customers":
		res = s.sync.SyncCustomers(r.Context(), scopeID, offset, limit)
	case "orders":
		res = s.sync.SyncOrders(r.Context(), scopeID)
	case "newsletter-recipients":
		res = s.sync.SyncNewsletterRecipients(r.Context(), scopeID)
	case "products":
		local, _ := strconv.ParseBool(q.Get("local"))
		res = s.sync.SyncProducts(r.Context(), scopeID, limit, local)
	default:
		writeError(w, http.StatusNotFound, "unknown sync target")
		return
	}
	writeResult(w, res)
}

func (s *HTTPServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeResult(w, s.sync.RetryFailedRequests(r.Context()))
}

type failedRequestView struct {
	ID          string     `json:"id"`
	Method      string     `json:"method"`
	Endpoint    string     `json:"endpoint"`
	ScopeID     string     `json:"scope_id,omitempty"`
	RetryCount  int        `json:"retry_count"`
	Exhausted   bool       `json:"exhausted"`
	Response    string     `json:"response,omitempty"`
	LastRetryAt *time.Time `json:"last_retry_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (s *HTTPServer) handleFailedRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	records, err := s.failed.FailedRequests(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list failed requests")
		writeError(w, http.StatusInternalServerError, "failed to list failed requests")
		return
	}

	onlyRetryable := r.URL.Query().Get("state") == "retryable"
	out := make([]failedRequestView, 0, len(records))
	for _, rec := range records {
		exhausted := rec.RetryCount >= models.MaxRetryCount
		if onlyRetryable && exhausted {
			continue
		}
		out = append(out, failedRequestView{
			ID:          rec.ID,
			Method:      rec.Method,
			Endpoint:    rec.Endpoint,
			ScopeID:     rec.Options.ScopeID,
			RetryCount:  rec.RetryCount,
			Exhausted:   exhausted,
			Response:    rec.Response,
			LastRetryAt: rec.LastRetryAt,
			CreatedAt:   rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"failed_requests": out})
}

// handleHook turns a host callback into an event on the bus.
func (s *HTTPServer) handleHook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	eventType := strings.TrimPrefix(r.URL.Path, "/api/v1/hooks/")
	if !hookEvents[eventType] {
		writeError(w, http.StatusNotFound, "unknown event")
		return
	}

	var payload events.EntityEventPayload
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(payload.EntityID) == "" {
		writeError(w, http.StatusBadRequest, "entity_id is required")
		return
	}

	if err := s.bus.PublishJSON(r.Context(), eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Str("entity_id", payload.EntityID).Msg("hook handling failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(routeLabel(r.URL.Path))
		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// routeLabel keeps the metric cardinality bounded.
func routeLabel(path string) string {
	switch {
	case path == "/healthz", path == "/metrics",
		path == "/api/v1/failed-requests", path == "/api/v1/failed-requests/retry":
		return path
	case strings.HasPrefix(path, "/api/v1/sync/"):
		return "/api/v1/sync"
	case strings.HasPrefix(path, "/api/v1/hooks/"):
		return "/api/v1/hooks"
	default:
		return "other"
	}
}

func intParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	return n, nil
}

func writeResult(w http.ResponseWriter, res service.Result) {
	status := http.StatusOK
	if !res.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
