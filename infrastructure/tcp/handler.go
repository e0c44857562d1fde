package tcp

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"whiteboard/contract"
	"whiteboard/domain"
	"whiteboard/domain/event"
	"whiteboard/errors"
	"whiteboard/services"

	"github.com/google/uuid"
)

const readBufferSize = 64 * 1024

var _ contract.Worker = (*Handler)(nil)

// Handler owns one accepted connection: it decodes the inbound records in
// arrival order and turns each one into a session operation.
type Handler struct {
	id            domain.ParticipantID
	conn          net.Conn
	sink          *ConnSink
	reader        *bufio.Reader
	service       services.ISessionService
	log           *slog.Logger
	maxRecordSize int
	idleTimeout   time.Duration
}

func NewHandler(
	log *slog.Logger,
	id domain.ParticipantID,
	conn net.Conn,
	service services.ISessionService,
	cfg Config,
) *Handler {
	return &Handler{
		id:            id,
		conn:          conn,
		sink:          NewConnSink(conn, cfg.WriteTimeout),
		reader:        bufio.NewReaderSize(conn, readBufferSize),
		service:       service,
		maxRecordSize: cfg.MaxRecordSize,
		idleTimeout:   cfg.IdleTimeout,
		log: log.With(
			"participant_id", id,
			"conn_id", uuid.NewString(),
			"remote", conn.RemoteAddr().String(),
		),
	}
}

// Run reads until the peer exits, the stream breaks or ctx is canceled.
// Whatever the cause, the participant departs exactly as with an explicit
// exit and the socket is closed.
func (h *Handler) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = h.sink.Close() })
	defer stop()
	defer h.cleanup(ctx)

	h.log.Debug("Connection accepted")
	for {
		if h.idleTimeout > 0 {
			if err := h.conn.SetReadDeadline(time.Now().Add(h.idleTimeout)); err != nil {
				return fmt.Errorf("set read deadline: %w", err)
			}
		}

		line, err := h.readRecord()
		if stderrors.Is(err, errors.ErrRecordTooLarge) {
			h.log.Warn("Dropping oversized record", "limit", h.maxRecordSize)
			continue
		}
		if err != nil {
			return h.readFailure(ctx, err)
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		record, err := event.Unmarshal(line)
		if err != nil {
			if stderrors.Is(err, errors.ErrUnknownAction) {
				h.log.Warn("Ignoring record with unknown action", "error", err)
			} else {
				h.log.Warn("Dropping malformed record", "error", err)
			}
			continue
		}

		if h.dispatch(ctx, record) {
			h.log.Debug("Participant exited")
			return nil
		}
	}
}

// dispatch applies one record and reports whether the connection is done.
func (h *Handler) dispatch(ctx context.Context, record event.Record) bool {
	var err error
	switch payload := record.Payload.(type) {
	case event.JoinRequest:
		err = h.service.Join(ctx, h.id, payload.Name, h.sink)
	case event.JoinAccept:
		err = h.service.Accept(ctx, h.id, payload.Target.ID)
	case event.JoinReject:
		err = h.service.Reject(ctx, h.id, payload.Target.ID)
	case event.Kick:
		err = h.service.Kick(ctx, h.id, payload.Target.ID)
	case event.LoadImage:
		err = h.service.LoadImage(ctx, h.id, record)
	case event.Exit:
		if err := h.service.Leave(ctx, h.id); err != nil {
			h.log.Warn("Unable to leave the session", "error", err)
		}
		return true
	default:
		switch {
		case event.IsServerOnly(record.Action()):
			err = fmt.Errorf("%s: %w", record.Action(), errors.ErrServerOnlyAction)
		case event.IsUrgent(record.Action()):
			err = h.service.Relay(ctx, h.id, record)
		default:
			err = fmt.Errorf("%s: %w", record.Action(), errors.ErrUnknownAction)
		}
	}
	if err != nil {
		h.log.Warn("Record not applied", "action", record.Action(), "error", err)
	}
	return false
}

// readRecord returns the next line without its terminator. A line longer
// than maxRecordSize is consumed entirely and reported as ErrRecordTooLarge
// so that the stream stays aligned on record boundaries.
func (h *Handler) readRecord() ([]byte, error) {
	var line []byte
	tooLarge := false
	for {
		fragment, isPrefix, err := h.reader.ReadLine()
		if err != nil {
			return nil, err
		}
		if !tooLarge {
			if len(line)+len(fragment) > h.maxRecordSize {
				tooLarge = true
				line = nil
			} else {
				line = append(line, fragment...)
			}
		}
		if !isPrefix {
			break
		}
	}
	if tooLarge {
		return nil, errors.ErrRecordTooLarge
	}
	return line, nil
}

func (h *Handler) readFailure(ctx context.Context, err error) error {
	switch {
	case stderrors.Is(err, io.EOF):
		h.log.Debug("Connection closed by peer")
		return nil
	case ctx.Err() != nil || stderrors.Is(err, net.ErrClosed):
		h.log.Debug("Connection closed")
		return nil
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		h.log.Info("Connection idle for too long", "idle_timeout", h.idleTimeout)
		return nil
	}
	return fmt.Errorf("read from participant %d: %w", h.id, err)
}

func (h *Handler) cleanup(ctx context.Context) {
	if err := h.service.Leave(context.WithoutCancel(ctx), h.id); err != nil {
		h.log.Warn("Unable to leave the session", "error", err)
	}
	if err := h.sink.Close(); err != nil && !stderrors.Is(err, net.ErrClosed) {
		h.log.Debug("Error while closing connection", "error", err)
	}
}
