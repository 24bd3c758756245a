package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"investmon/internal/api"
	"investmon/internal/config"
	"investmon/internal/eventbus"
	"investmon/internal/metrics"
	"investmon/internal/monitor"
	"investmon/internal/monitor/repo"
	"investmon/internal/monitor/worker"
	"investmon/internal/service"
	"investmon/internal/settings"
	"investmon/internal/stream"
)

type Server struct {
	cfg         *config.Config
	deps        *Dependency
	httpServer  *http.Server
	asynqServer *asynq.Server
	asynqMux    *asynq.ServeMux
	catalog     *repo.Repository
	svc         *service.Service
	logger      *slog.Logger
}

func NewServer(cfg *config.Config, deps *Dependency) *Server {
	logger := deps.Logger

	bus := eventbus.NewRedisBus(deps.Redis, logger)
	catalogRepo := repo.NewRepository(deps.PG, deps.Redis)

	checker := monitor.NewChecker(cfg.Monitor.CheckTimeout, cfg.Monitor.WarnLatency)
	engine := monitor.NewEngine(catalogRepo, checker, bus, logger, monitor.EngineConfig{
		StrikeThreshold: cfg.Monitor.StrikeThreshold,
		HistorySize:     cfg.Monitor.HistorySize,
		Concurrency:     cfg.Monitor.Concurrency,
	})

	settingsStore := settings.NewStore(deps.PG, deps.Redis)
	registry := stream.NewRegistry()
	svc := service.NewService(engine, bus, settingsStore, registry, deps.AsynqClient, logger)

	sweepWorker := worker.NewSweepWorker(engine, logger)

	asynqServer := asynq.NewServer(deps.AsynqRedis, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Logger:      newAsynqLogger(logger),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(monitor.SweepTask, sweepWorker.HandleSweep)

	router := api.NewRouter(svc)
	httpServer := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays generous; the SSE handler clears its own
		// deadline for the stream's lifetime.
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		cfg:         cfg,
		deps:        deps,
		httpServer:  httpServer,
		asynqServer: asynqServer,
		asynqMux:    mux,
		catalog:     catalogRepo,
		svc:         svc,
		logger:      logger,
	}
}

func (s *Server) Start(ctx context.Context) error {
	if err := s.catalog.Seed(ctx, monitor.DefaultCatalog()); err != nil {
		return err
	}

	go func() {
		s.logger.Info("Starting Asynq worker", "concurrency", s.cfg.Worker.Concurrency)
		if err := s.asynqServer.Start(s.asynqMux); err != nil {
			s.logger.Error("Asynq worker failed", "error", err)
		}
	}()

	go func() {
		if err := metrics.StartServer(ctx, s.cfg.Metrics.Addr, s.logger); err != nil {
			s.logger.Error("Metrics server failed", "error", err)
		}
	}()

	go s.sweepLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", "addr", s.cfg.Server.Addr)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received, draining...")
	case err := <-errCh:
		return err
	}

	return s.Shutdown()
}

// sweepLoop schedules periodic background sweeps. A sweep that is already
// running (started by a client or a previous tick) is simply skipped.
func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Monitor.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.svc.StartSweep(ctx); err != nil {
				if errors.Is(err, stream.ErrAlreadyRunning) {
					continue
				}
				s.logger.Error("Scheduled sweep failed to start", "error", err)
			}
		}
	}
}

func (s *Server) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.asynqServer.Shutdown()

	s.logger.Info("Server stopped gracefully")
	return nil
}

type asynqLogger struct {
	l *slog.Logger
}

func newAsynqLogger(l *slog.Logger) *asynqLogger {
	return &asynqLogger{l: l.With("component", "asynq")}
}

func (a *asynqLogger) Debug(args ...any) { a.l.Debug("", "msg", args) }
func (a *asynqLogger) Info(args ...any)  { a.l.Info("", "msg", args) }
func (a *asynqLogger) Warn(args ...any)  { a.l.Warn("", "msg", args) }
func (a *asynqLogger) Error(args ...any) { a.l.Error("", "msg", args) }
func (a *asynqLogger) Fatal(args ...any) { a.l.Error("FATAL", "msg", args) }
