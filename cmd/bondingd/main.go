package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/StrataFoundation/strata-sub000/config"
	"github.com/StrataFoundation/strata-sub000/core"
	"github.com/StrataFoundation/strata-sub000/core/events"
	"github.com/StrataFoundation/strata-sub000/core/state"
	"github.com/StrataFoundation/strata-sub000/core/types"
	"github.com/StrataFoundation/strata-sub000/observability/logging"
	"github.com/StrataFoundation/strata-sub000/observability/tracing"
	"github.com/StrataFoundation/strata-sub000/services/bondingd/history"
	"github.com/StrataFoundation/strata-sub000/services/bondingd/server"
	"github.com/StrataFoundation/strata-sub000/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./bonding.toml", "path to bondingd config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	env := cfg.Environment
	if override := strings.TrimSpace(os.Getenv("STRATA_ENV")); override != "" {
		env = override
	}
	output, closeLog, err := logging.Output(cfg.LogFile)
	if err != nil {
		log.Fatalf("open log file %s: %v", cfg.LogFile, err)
	}
	defer closeLog.Close()
	logger := logging.Setup(output, "bondingd", env, logging.ParseLevel(cfg.LogLevel))

	shutdownTracing, err := tracing.Init(context.Background(), tracing.Config{
		ServiceName: "bondingd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     tracing.ParseHeaders(cfg.Telemetry.Headers),
	})
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		log.Fatalf("open data dir %s: %v", cfg.DataDir, err)
	}
	defer db.Close()

	stream := events.NewStream(cfg.EventHistory)
	emitters := events.Fanout{eventLogger{logger: logger}, stream}
	var trades *history.Store
	if cfg.HistoryDSN != "" {
		trades, err = history.Open(cfg.HistoryDSN)
		if err != nil {
			log.Fatalf("open trade history: %v", err)
		}
		defer trades.Close()
		emitters = append(emitters, history.NewRecorder(trades, logger))
	}
	opts := []core.Option{
		core.WithLogger(logger),
		core.WithEmitter(emitters),
	}
	if program := cfg.Program(); !program.IsZero() {
		opts = append(opts, core.WithProgramID(program))
	}
	if cfg.MetricsEnabled {
		opts = append(opts, core.WithMetrics())
	}
	proc := core.NewProcessor(state.NewManager(db), opts...)

	api := server.New(server.Config{
		Processor: proc,
		Logger:    logger,
		RateLimit: server.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		MetricsEnabled: cfg.MetricsEnabled,
		Events:         stream,
		History:        trades,
		Auth: server.AuthConfig{
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  time.Duration(cfg.Auth.ClockSkewSeconds) * time.Second,
		},
	})
	if cfg.Auth.HMACSecret == "" {
		logger.Warn("bondingd: no auth secret configured, buy and sell endpoints disabled")
	}
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           api.Handler(),
		ReadTimeout:       time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("bondingd listening", "address", cfg.ListenAddress, "program", proc.ProgramID().String())
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

// eventLogger writes committed events to the structured log.
type eventLogger struct{ logger *slog.Logger }

func (l eventLogger) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	attrs := []any{"event", evt.EventType()}
	if wrapped, ok := evt.(interface{ Event() *types.Event }); ok && wrapped.Event() != nil {
		for key, value := range wrapped.Event().Attributes {
			attrs = append(attrs, logging.MaskField(key, value))
		}
	}
	l.logger.Info("bonding event", attrs...)
}
