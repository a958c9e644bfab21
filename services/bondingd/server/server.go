package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/StrataFoundation/strata-sub000/core"
	"github.com/StrataFoundation/strata-sub000/core/events"
	"github.com/StrataFoundation/strata-sub000/observability"
	"github.com/StrataFoundation/strata-sub000/services/bondingd/history"
)

const apiModule = "bondings"

// Config captures the dependencies required to construct the server.
type Config struct {
	Processor      *core.Processor
	Logger         *slog.Logger
	RateLimit      RateLimit
	MetricsEnabled bool
	Now            func() time.Time
	// Events, when set, backs the event feed and websocket stream.
	Events *events.Stream
	// History, when set, serves indexed trades per bonding.
	History *history.Store
	// Auth signs trade access. Buy and sell are only served when a secret is
	// configured.
	Auth AuthConfig
	// Tracer defaults to the global "bondingd" tracer.
	Tracer trace.Tracer
}

// Server exposes bonding reads, quotes and trades over HTTP.
type Server struct {
	proc    *core.Processor
	logger  *slog.Logger
	limiter *RateLimiter
	metrics bool
	now     func() time.Time
	stream  *events.Stream
	history *history.Store
	auth    *Authenticator
	tracer  trace.Tracer

	router http.Handler
}

// New constructs the HTTP router.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("bondingd")
	}
	srv := &Server{
		proc:    cfg.Processor,
		logger:  logger,
		limiter: NewRateLimiter(cfg.RateLimit, logger),
		metrics: cfg.MetricsEnabled,
		now:     now,
		stream:  cfg.Events,
		history: cfg.History,
		auth:    NewAuthenticator(cfg.Auth, logger),
		tracer:  tracer,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(api chi.Router) {
		api.Use(s.observe)
		api.Use(s.limiter.Middleware(apiModule))

		api.Get("/bondings", s.listBondings)
		api.Get("/bondings/{key}", s.getBonding)
		api.Post("/bondings/{key}/quote", s.quote)
		if s.auth.Enabled() {
			api.Group(func(trade chi.Router) {
				trade.Use(s.auth.Middleware(TradeScope))
				trade.Post("/bondings/{key}/buy", s.buy)
				trade.Post("/bondings/{key}/sell", s.sell)
			})
		}
		if s.history != nil {
			api.Get("/bondings/{key}/trades", s.listTrades)
		}
		api.Get("/curves/{key}", s.getCurve)
		if s.stream != nil {
			api.Get("/events", s.listEvents)
			api.Get("/events/stream", s.streamEvents)
		}
	})
	return r
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		parent := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := s.tracer.Start(parent, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.method", r.Method)))
		defer span.End()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(ctx); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(otelcodes.Error, http.StatusText(status))
		}
		duration := time.Since(start)
		if s.metrics {
			observability.ModuleMetrics().Observe(apiModule, r.Method+" "+route, status, duration)
		}
		s.logger.Debug("bondingd: request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", duration,
			"request_id", chimw.GetReqID(r.Context()),
			"trace_id", span.SpanContext().TraceID().String(),
		)
	})
}
