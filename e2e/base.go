// Package e2e runs a whole coordination server in process and drives it the
// way real participants and probes do.
package e2e

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"whiteboard/internal"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

type BaseSuite struct {
	suite.Suite
	Config       Config
	Orchestrator *internal.Orchestrator
	SessionAddr  string
	HealthAddr   string
	cancel       context.CancelFunc
	done         chan error
}

// SetupTest starts a fresh server with its health endpoint for every test.
func (s *BaseSuite) SetupTest() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.SessionAddr = ln.Addr().String()

	cfg := internal.Config{
		LogLevel:        s.Config.LogLevel,
		WorkerPoolSize:  8,
		MaxRecordSize:   1 << 20,
		WriteTimeout:    time.Second,
		RestartInterval: 50 * time.Millisecond,
		HealthInterval:  20 * time.Millisecond,
		HealthPort:      s.freePort(),
	}
	s.Require().NoError(cfg.Validate())
	s.Orchestrator = internal.NewOrchestrator(logs.GetLoggerFromString(cfg.LogLevel), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() { s.done <- s.Orchestrator.Run(ctx, ln) }()

	select {
	case addr := <-s.Orchestrator.HealthAddr():
		s.HealthAddr = fmt.Sprintf("127.0.0.1:%d", addr.(*net.TCPAddr).Port)
	case <-time.After(5 * time.Second):
		s.FailNow("health endpoint never started")
	}
	s.Eventually(s.Orchestrator.Serving, 5*time.Second, 10*time.Millisecond)
	// Health is refreshed every HealthInterval, it may still lag behind the listener
	s.Eventually(func() bool {
		return s.HealthStatus("") == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 10*time.Millisecond)
}

func (s *BaseSuite) TearDownTest() {
	s.cancel()
	select {
	case err := <-s.done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("server did not stop")
	}
}

func (s *BaseSuite) freePort() int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	defer func() { _ = ln.Close() }()
	return ln.Addr().(*net.TCPAddr).Port
}

// Step prints a colorized header for a scenario step in the test logs.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// GrpcConn opens a connection to the health endpoint that logs every call,
// with full JSON bodies when E2E_DEBUG_JSON is enabled.
func (s *BaseSuite) GrpcConn() *grpc.ClientConn {
	marshaler := protojson.MarshalOptions{
		UseProtoNames:   true,
		Multiline:       true,
		EmitUnpopulated: true,
	}

	conn, err := grpc.NewClient(s.HealthAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)

			logBuilder := strings.Builder{}
			fmt.Fprintf(&logBuilder, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))
			if s.Config.DebugJSON {
				fmt.Fprintln(&logBuilder, "\nREQUEST:")
				fmt.Fprintln(&logBuilder, marshaler.Format(req.(proto.Message)))
				if err == nil {
					fmt.Fprintln(&logBuilder, "RESPONSE:")
					fmt.Fprintln(&logBuilder, marshaler.Format(reply.(proto.Message)))
				}
			}
			s.T().Log(logBuilder.String())
			return err
		}),
	)
	s.Require().NoError(err, "Failed to connect to health endpoint at "+s.HealthAddr)
	return conn
}

// HealthStatus checks one health service, UNKNOWN when the call fails.
func (s *BaseSuite) HealthStatus(service string) healthpb.HealthCheckResponse_ServingStatus {
	conn := s.GrpcConn()
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	return resp.GetStatus()
}
