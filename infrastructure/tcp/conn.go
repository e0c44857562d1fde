package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"whiteboard/contract"
	"whiteboard/errors"
)

var _ contract.Sink = (*ConnSink)(nil)

// ConnSink is the outbound half of one participant connection.
// Writes from the connection's own handler and from broadcasts issued by
// other handlers are serialized so that records never interleave.
type ConnSink struct {
	mu           sync.Mutex
	conn         net.Conn
	writeTimeout time.Duration
	closed       atomic.Bool
	closeOnce    sync.Once
	closeErr     error
}

// NewConnSink wraps conn. A zero writeTimeout lets a stalled peer block its
// writers until the connection is closed.
func NewConnSink(conn net.Conn, writeTimeout time.Duration) *ConnSink {
	return &ConnSink{conn: conn, writeTimeout: writeTimeout}
}

// Send writes one record followed by the line terminator.
func (s *ConnSink) Send(ctx context.Context, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line := make([]byte, 0, len(record)+1)
	line = append(append(line, record...), '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return errors.ErrSinkClosed
	}
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if _, err := s.conn.Write(line); err != nil {
		return fmt.Errorf("write to %s: %w", s.conn.RemoteAddr(), err)
	}
	return nil
}

// Close closes the underlying connection once. Later calls are no-ops.
// It does not wait for a pending write, so a writer stuck on a stalled peer
// is released with an error.
func (s *ConnSink) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
