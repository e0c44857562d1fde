package e2e

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"whiteboard/client"
	"whiteboard/domain/event"
	"whiteboard/infrastructure/grpc/server"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type SessionScenarioSuite struct {
	BaseSuite
}

func TestSessionScenarioSuite(t *testing.T) {
	suite.Run(t, new(SessionScenarioSuite))
}

// syncBuffer lets the test read what a client rendered while it is running.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (s *SessionScenarioSuite) send(w io.Writer, payload event.Payload) {
	line, err := event.Marshal(event.NewRecord(nil, payload))
	s.Require().NoError(err)
	_, err = w.Write(append(line, '\n'))
	s.Require().NoError(err)
}

func (s *SessionScenarioSuite) expect(conn net.Conn, reader *bufio.Reader, action event.Action) event.Record {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	line, err := reader.ReadBytes('\n')
	s.Require().NoError(err)
	record, err := event.Unmarshal(line)
	s.Require().NoError(err)
	s.Require().Equal(action, record.Action())
	return record
}

func (s *SessionScenarioSuite) TestOwner_And_Terminal_Guest() {
	s.Step("Server is healthy")
	s.Eventually(func() bool {
		return s.HealthStatus("") == healthpb.HealthCheckResponse_SERVING &&
			s.HealthStatus(server.SessionService) == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 20*time.Millisecond)

	s.Step("Owner joins")
	owner, err := net.Dial("tcp", s.SessionAddr)
	s.Require().NoError(err)
	defer func() { _ = owner.Close() }()
	ownerReader := bufio.NewReader(owner)
	s.send(owner, event.JoinRequest{Name: "alice"})
	s.expect(owner, ownerReader, event.ActionOwnerAssign)

	s.Step("Terminal client applies")
	guestConn, err := net.Dial("tcp", s.SessionAddr)
	s.Require().NoError(err)
	input, typing := io.Pipe()
	defer func() { _ = typing.Close() }()
	var out syncBuffer
	guest := client.New(logs.GetLoggerFromLevel(slog.LevelDebug), guestConn, client.NewRenderer(&out, false), "bob", 1<<20)
	done := make(chan error, 1)
	go func() { done <- guest.Run(context.Background(), input) }()

	request := s.expect(owner, ownerReader, event.ActionJoinRequest).Payload.(event.JoinRequest)
	s.Equal("bob", request.Name)

	s.Step("Owner accepts")
	s.send(owner, event.JoinAccept{Target: request.Applicant})
	s.Eventually(func() bool { return s.Orchestrator.Registry.Stats().Admitted == 2 }, 5*time.Second, 10*time.Millisecond)

	s.Step("Chat both ways")
	s.send(owner, event.Chat{Text: "welcome"})
	s.Eventually(func() bool { return strings.Contains(out.String(), "alice#") }, 5*time.Second, 10*time.Millisecond)
	_, err = io.WriteString(typing, "thanks\n")
	s.Require().NoError(err)
	chat := s.expect(owner, ownerReader, event.ActionChat)
	s.Equal(event.Chat{Text: "thanks"}, chat.Payload)
	s.Equal(request.Applicant.ID, chat.From.ID)

	s.Step("Owner leaves, the guest follows")
	s.send(owner, event.Exit{})
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.FailNow("terminal client did not leave")
	}
	s.Contains(out.String(), "the session is over")

	s.Step("Session is over")
	s.Eventually(func() bool {
		return s.HealthStatus(server.SessionService) == healthpb.HealthCheckResponse_NOT_SERVING
	}, 5*time.Second, 50*time.Millisecond)
	s.Equal(healthpb.HealthCheckResponse_SERVING, s.HealthStatus(""))
}
