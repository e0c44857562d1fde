package internal

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"whiteboard/infrastructure/grpc/server"
	"whiteboard/infrastructure/tcp"
	"whiteboard/runtime"
	"whiteboard/runtime/workers"
	"whiteboard/services"

	"golang.org/x/sync/errgroup"
)

// Orchestrator wires one session: registry, router, session service, the
// participant listener and the background workers around them.
type Orchestrator struct {
	log        *slog.Logger
	cfg        Config
	Registry   *runtime.Registry
	pool       *workers.HandlerPool
	server     *tcp.Server
	supervisor *workers.Supervisor
	health     *server.HealthWorker
}

func NewOrchestrator(log *slog.Logger, cfg Config) *Orchestrator {
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(log, registry)
	service := services.NewSessionService(log, registry, router)
	pool := workers.NewHandlerPool(log, cfg.WorkerPoolSize)
	tcpServer := tcp.NewServer(log, service, runtime.NewIdentityAllocator(), pool, tcp.Config{
		MaxRecordSize: cfg.MaxRecordSize,
		WriteTimeout:  cfg.WriteTimeout,
		IdleTimeout:   cfg.IdleTimeout,
	})

	o := &Orchestrator{
		log:        log.With("session_id", registry.SessionID()),
		cfg:        cfg,
		Registry:   registry,
		pool:       pool,
		server:     tcpServer,
		supervisor: workers.NewSupervisor(log, cfg.RestartInterval),
	}
	if telemetry := workers.NewTelemetryWorker(log, cfg.MetricInterval, registry, pool); telemetry != nil {
		o.supervisor.Add(telemetry)
	}
	if cfg.HealthPort > 0 {
		o.health = server.NewHealthWorker(log, fmt.Sprintf(":%d", cfg.HealthPort), tcpServer, registry, cfg.HealthInterval)
		o.supervisor.Add(o.health)
	}
	return o
}

// Run serves participants on ln until ctx is canceled. Background workers
// are stopped once the listener is gone and every connection has ended.
func (o *Orchestrator) Run(ctx context.Context, ln net.Listener) error {
	o.log.Info("Starting session")
	g, gctx := errgroup.WithContext(ctx)
	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	g.Go(func() error {
		o.supervisor.Run(workersCtx)
		return nil
	})
	g.Go(func() error {
		defer stopWorkers()
		if err := o.server.Serve(gctx, ln); err != nil {
			return fmt.Errorf("participant listener: %w", err)
		}
		return nil
	})

	err := g.Wait()
	o.log.Info("Session stopped", "admitted", o.Registry.Stats().Admitted)
	return err
}

// Serving reports whether participants are being accepted.
func (o *Orchestrator) Serving() bool {
	return o.server.Serving()
}

// HealthAddr yields the bound address of the health endpoint. It is nil when
// the endpoint is disabled.
func (o *Orchestrator) HealthAddr() <-chan net.Addr {
	if o.health == nil {
		return nil
	}
	return o.health.Addr()
}
