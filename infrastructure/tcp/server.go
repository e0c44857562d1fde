package tcp

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"whiteboard/contract"
	"whiteboard/domain"
	"whiteboard/services"
)

const acceptRetryDelay = 50 * time.Millisecond

// Config holds the per-connection limits.
type Config struct {
	MaxRecordSize int
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
}

// IdentitySource hands out a fresh participant identity per connection.
type IdentitySource interface {
	Next() domain.ParticipantID
}

// HandlerRunner runs connection handlers under a fixed ceiling.
type HandlerRunner interface {
	Submit(ctx context.Context, worker contract.Worker)
	Wait()
}

// Server accepts participant connections and hands each one to a Handler.
type Server struct {
	log     *slog.Logger
	service services.ISessionService
	ids     IdentitySource
	pool    HandlerRunner
	cfg     Config
	serving atomic.Bool
}

func NewServer(
	log *slog.Logger,
	service services.ISessionService,
	ids IdentitySource,
	pool HandlerRunner,
	cfg Config,
) *Server {
	return &Server{log: log, service: service, ids: ids, pool: pool, cfg: cfg}
}

// Serve accepts connections until the listener is closed or ctx is canceled.
// Submitting a handler blocks while the pool is full, which holds the accept
// loop back. Accept errors are logged and retried. On return every handler
// has finished and every connection is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.serving.Store(true)
	defer s.serving.Store(false)
	s.log.Info("Accepting participants", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if stderrors.Is(err, net.ErrClosed) {
				break
			}
			s.log.Warn("Accept failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(acceptRetryDelay):
			}
			continue
		}

		id := s.ids.Next()
		s.pool.Submit(ctx, NewHandler(s.log, id, conn, s.service, s.cfg))
	}

	s.log.Info("Listener closed, waiting for connections to end")
	s.pool.Wait()
	return nil
}

// Serving reports whether the accept loop is running.
func (s *Server) Serving() bool {
	return s.serving.Load()
}
