package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rohmanhakim/nextmuni/internal/provider"
)

// Queries is the read-only surface the handler serves.
type Queries interface {
	ListRoutes(ctx context.Context) []provider.RouteRow
	ListDirections(ctx context.Context, routeTag string) []provider.DirectionRow
	ListStops(ctx context.Context, routeTag string, directionTag string) []provider.StopRow
	ListPredictions(ctx context.Context, routeTag string, directionTag string, stopTag string) []provider.PredictionRow
}

// Handler handles HTTP requests
type Handler struct {
	queries Queries
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(queries Queries, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{queries: queries, logger: logger}
}

// Response wraps API responses
type Response struct {
	Data any `json:"data"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// RegisterRoutes registers all routes. Writes on any path are refused.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/routes", h.handleRoutes).Methods(http.MethodGet)
	r.HandleFunc("/routes/{route}/directions", h.handleDirections).Methods(http.MethodGet)
	r.HandleFunc("/routes/{route}/directions/{direction}/stops", h.handleStops).Methods(http.MethodGet)
	r.HandleFunc("/routes/{route}/directions/{direction}/stops/{stop}/predictions", h.handlePredictions).Methods(http.MethodGet)
	r.PathPrefix("/").
		Methods(http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete).
		HandlerFunc(h.handleUnsupported)
}

// NewRouter builds the full router. Metrics are served when gatherer is
// not nil.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	h.RegisterRoutes(r)
	r.Use(h.loggingMiddleware)
	return r
}

// NewServer wraps handler in an http.Server with conservative timeouts.
// Predictions wait on upstream, so WriteTimeout leaves room for one
// request plus a cookie retry.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (h *Handler) handleRoutes(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, Response{Data: h.queries.ListRoutes(r.Context())})
}

func (h *Handler) handleDirections(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.writeJSON(w, Response{Data: h.queries.ListDirections(r.Context(), vars["route"])})
}

func (h *Handler) handleStops(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.writeJSON(w, Response{Data: h.queries.ListStops(r.Context(), vars["route"], vars["direction"])})
}

func (h *Handler) handlePredictions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rows := h.queries.ListPredictions(r.Context(), vars["route"], vars["direction"], vars["stop"])
	h.writeJSON(w, Response{Data: rows})
}

func (h *Handler) handleUnsupported(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodGet)
	h.writeError(w, provider.ErrUnsupportedOperation.Error(), http.StatusMethodNotAllowed)
}

func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("uri", r.RequestURI),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
