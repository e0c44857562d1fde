package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"whiteboard/internal"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const usage = "usage: whiteboard-server <port>"

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run validates the command line before any socket is opened, then serves
// the session until SIGINT or SIGTERM.
func run(args []string) (int, error) {
	// 1. Command line
	if len(args) != 1 {
		return exitConfig, fmt.Errorf("%s", usage)
	}
	port, err := internal.ParsePort(args[0])
	if err != nil {
		return exitConfig, fmt.Errorf("%w (%s)", err, usage)
	}

	// 2. Optional environment
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Listener
	address := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	// 5. Session
	orchestrator := internal.NewOrchestrator(log, config)
	if err := orchestrator.Run(ctx, listener); err != nil {
		return exitRuntime, err
	}
	log.Info("Server stopped cleanly")
	return exitOK, nil
}
