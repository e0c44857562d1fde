package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"unicode/utf8"

	"whiteboard/client"
	"whiteboard/internal"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const (
	usage         = "usage: whiteboard-client <host> <port>"
	maxNameLength = 64
)

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	// 1. Command line
	if len(args) != 2 {
		return exitConfig, fmt.Errorf("%s", usage)
	}
	host, err := internal.ParseHost(args[0])
	if err != nil {
		return exitConfig, fmt.Errorf("%w (%s)", err, usage)
	}
	port, err := internal.ParsePort(args[1])
	if err != nil {
		return exitConfig, fmt.Errorf("%w (%s)", err, usage)
	}

	// 2. Optional environment
	_ = godotenv.Load()
	config, err := LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	render := client.NewRenderer(os.Stdout, config.Colours)

	// 3. Display name, asked before connecting
	input := bufio.NewReader(os.Stdin)
	name, err := askName(input)
	if err != nil {
		return exitConfig, err
	}

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Connection
	address := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", address, err)
	}
	defer func() { _ = conn.Close() }()

	render.Notice("connected to %s, type /help for commands", address)
	if err := client.New(log, conn, render, name, config.MaxRecordSize).Run(ctx, input); err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}

func askName(input *bufio.Reader) (string, error) {
	fmt.Print("display name: ")
	line, err := input.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("no display name given")
	}
	name := strings.TrimSpace(line)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("display name must be 1 to %d characters", maxNameLength)
	}
	return name, nil
}
