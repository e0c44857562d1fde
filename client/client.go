// Package client is the terminal participant of a whiteboard session.
// It turns typed commands into records and prints what the server relays.
package client

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"whiteboard/domain/event"
	"whiteboard/errors"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Client drives one connection to the coordination server.
type Client struct {
	log           *slog.Logger
	conn          net.Conn
	render        *Renderer
	name          string
	maxRecordSize int

	writeMu sync.Mutex

	mu       sync.Mutex
	self     *event.ParticipantRef
	owner    bool
	admitted bool
	roster   []event.ParticipantRef
}

func New(log *slog.Logger, conn net.Conn, render *Renderer, name string, maxRecordSize int) *Client {
	return &Client{log: log, conn: conn, render: render, name: name, maxRecordSize: maxRecordSize}
}

// Run sends the join request, then runs the listener and the dispatcher
// until the user quits, the session turns the client away or ctx ends.
func (c *Client) Run(ctx context.Context, input io.Reader) error {
	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { _ = c.conn.Close() })
	defer stop()

	if err := c.send(event.JoinRequest{Name: c.name}); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	c.render.Notice("waiting for the owner to let %s in", c.name)

	lines := readLines(gctx, input)
	g.Go(func() error { return c.listen(gctx) })
	g.Go(func() error { return c.dispatch(gctx, lines) })

	err := g.Wait()
	if stderrors.Is(err, errors.ErrSessionLeft) || ctx.Err() != nil {
		return nil
	}
	return err
}

// listen prints every record received and leaves the session when the
// server turns this client away.
func (c *Client) listen(ctx context.Context) error {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), c.maxRecordSize+1)
	for scanner.Scan() {
		record, err := event.Unmarshal(scanner.Bytes())
		if err != nil {
			c.log.Warn("Ignoring record", "error", err)
			continue
		}
		c.render.Record(record)
		if c.apply(record) {
			c.leave()
			return errors.ErrSessionLeft
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrConnectionLost, err)
	}
	return errors.ErrConnectionLost
}

// apply updates the local view of the session and reports whether the
// client has to leave.
func (c *Client) apply(record event.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch p := record.Payload.(type) {
	case event.OwnerAssign:
		c.self = lo.ToPtr(p.Owner)
		c.owner, c.admitted = true, true
		c.roster = p.Roster
	case event.ParticipantAdded:
		if !c.admitted {
			c.self = lo.ToPtr(p.Participant)
			c.admitted = true
		}
		c.roster = p.Roster
		if c.owner && p.Participant.ID != c.self.ID {
			c.log.Debug("Participant admitted, board not synced", "participant_id", p.Participant.ID)
		}
	case event.RosterRefresh:
		c.roster = p.Roster
	case event.Kick:
		if c.self != nil && p.Target.ID == c.self.ID {
			return true
		}
		c.roster = lo.Reject(c.roster, func(r event.ParticipantRef, _ int) bool { return r.ID == p.Target.ID })
	case event.JoinReject:
		return !c.admitted || (c.self != nil && p.Target.ID == c.self.ID)
	case event.ForceQuit:
		return true
	}
	return false
}

// dispatch sends what the user types until /quit.
func (c *Client) dispatch(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				c.leave()
				return errors.ErrSessionLeft
			}
			if err := c.execute(line); err != nil {
				if stderrors.Is(err, errors.ErrSessionLeft) {
					return err
				}
				c.render.Error("%v", err)
			}
		}
	}
}

func (c *Client) execute(line string) error {
	if line == "" {
		return nil
	}
	cmd, err := ParseCommand(line)
	if err != nil {
		return err
	}
	switch cmd.Local {
	case LocalQuit:
		c.leave()
		return errors.ErrSessionLeft
	case LocalHelp:
		c.render.Notice("%s", Help)
		return nil
	case LocalWho:
		c.mu.Lock()
		roster, self := c.roster, c.self
		c.mu.Unlock()
		c.render.Roster(roster, self)
		return nil
	case LocalLoad:
		image, err := LoadImageFile(cmd.Path, c.maxRecordSize)
		if err != nil {
			return err
		}
		cmd.Payload = image
	}
	return c.send(cmd.Payload)
}

func (c *Client) leave() {
	if err := c.send(event.Exit{}); err != nil {
		c.log.Debug("Unable to send exit", "error", err)
	}
}

func (c *Client) send(payload event.Payload) error {
	c.mu.Lock()
	from := c.self
	c.mu.Unlock()
	if from == nil {
		from = &event.ParticipantRef{Name: c.name}
	}

	line, err := event.Marshal(event.NewRecord(from, payload))
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrConnectionLost, err)
	}
	return nil
}

// readLines feeds the lines of input to a channel closed at end of input.
// The goroutine may outlive Run while blocked on a terminal read.
func readLines(ctx context.Context, input io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
