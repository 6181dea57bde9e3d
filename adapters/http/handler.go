// Package http provides the gateway's HTTP surface: one wildcard
// route in front of the dispatcher, plus an opt-in ops surface.
package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/fusion/adapters/metrics"
	"github.com/artpar/fusion/app"
	"github.com/artpar/fusion/domain/dispatch"
)

// GatewayHandler adapts HTTP requests onto the dispatch service.
type GatewayHandler struct {
	dispatcher *app.DispatchService
}

// NewGatewayHandler creates the gateway handler.
func NewGatewayHandler(dispatcher *app.DispatchService) *GatewayHandler {
	return &GatewayHandler{dispatcher: dispatcher}
}

// ServeHTTP forwards the captured wildcard path to the dispatcher and
// renders its result.
func (h *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res := h.dispatcher.Handle(r.Context(), dispatch.Request{
		Path:          "/" + chi.URLParam(r, "*"),
		Authorization: r.Header.Get("Authorization"),
		TraceID:       middleware.GetReqID(r.Context()),
	})

	if res.Err != nil {
		body := res.Err.Body()
		if len(body) > 0 {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		w.WriteHeader(res.Status)
		w.Write(body)
		return
	}

	for k, v := range res.Headers {
		w.Header().Set(k, v)
	}
	// Destination headers never override the payload's content type.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.Status)
	w.Write(res.Body)
}

// RouterConfig configures the HTTP front.
type RouterConfig struct {
	// Prefix is the normalized route prefix (API_BIND_PATH); "" serves
	// from the root.
	Prefix string

	// Metrics enables the in-flight gauge middleware when set.
	Metrics *metrics.Collector

	// OpsEnabled additionally mounts GET /metrics and GET /healthz.
	OpsEnabled bool

	// Ping backs the readiness answer of /healthz.
	Ping func(ctx context.Context) error
}

// NewRouter builds the chi router: request id, real ip, logging,
// recoverer, and the single gateway route. There is deliberately no
// router-wide timeout; only per-source budgets bound upstream calls.
func NewRouter(h *GatewayHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(NewInFlightMiddleware(cfg.Metrics))
	}

	if cfg.OpsEnabled {
		r.Handle("/metrics", promhttp.Handler())
		r.Get("/healthz", healthz(cfg.Ping))
	}

	r.Get(cfg.Prefix+"/*", h.ServeHTTP)

	return r
}

func healthz(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// NewLoggingMiddleware logs HTTP requests at debug level.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// The ops surface is scraped constantly; keep it out of the log.
			if r.URL.Path == "/metrics" || strings.HasPrefix(r.URL.Path, "/healthz") {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// NewInFlightMiddleware tracks concurrently handled requests.
func NewInFlightMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()
			next.ServeHTTP(w, r)
		})
	}
}
