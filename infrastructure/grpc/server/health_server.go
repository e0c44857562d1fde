package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"whiteboard/contract"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SessionService is the health service name reporting whether the session
// still admits participants.
const SessionService = "whiteboard.Session"

var _ contract.Worker = (*HealthWorker)(nil)

// ServingProbe reports whether the participant listener is accepting.
type ServingProbe interface {
	Serving() bool
}

// HealthWorker exposes the standard gRPC health service. The overall status
// follows the participant listener, the session status additionally turns
// NOT_SERVING once the owner has left.
type HealthWorker struct {
	log      *slog.Logger
	addr     string
	probe    ServingProbe
	stats    contract.StatsProvider
	interval time.Duration
	bound    chan net.Addr
}

func NewHealthWorker(
	log *slog.Logger,
	addr string,
	probe ServingProbe,
	stats contract.StatsProvider,
	interval time.Duration,
) *HealthWorker {
	return &HealthWorker{
		log:      log,
		addr:     addr,
		probe:    probe,
		stats:    stats,
		interval: interval,
		bound:    make(chan net.Addr, 1),
	}
}

// Addr yields the address the health endpoint is bound to, once listening.
func (w *HealthWorker) Addr() <-chan net.Addr {
	return w.bound
}

func (w *HealthWorker) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", w.addr)
	if err != nil {
		return fmt.Errorf("health listen on %s: %w", w.addr, err)
	}
	select {
	case w.bound <- ln.Addr():
	default:
	}

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	w.update(hs)

	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting health endpoint", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && err != grpc.ErrServerStopped {
			errChan <- fmt.Errorf("health server error: %w", err)
		}
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			srv.GracefulStop()
			w.log.Debug("Health endpoint stopped")
			return nil
		case err := <-errChan:
			srv.Stop()
			return err
		case <-ticker.C:
			w.update(hs)
		}
	}
}

func (w *HealthWorker) update(hs *health.Server) {
	overall := healthpb.HealthCheckResponse_NOT_SERVING
	if w.probe.Serving() {
		overall = healthpb.HealthCheckResponse_SERVING
	}
	session := overall
	if w.stats.Stats().Ended {
		session = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", overall)
	hs.SetServingStatus(SessionService, session)
}
