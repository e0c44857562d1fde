package internal

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"whiteboard/errors"
)

// ParsePort validates a TCP port given on the command line.
func ParsePort(arg string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errors.ErrInvalidPort, arg)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: %d is out of range 1-65535", errors.ErrInvalidPort, port)
	}
	return port, nil
}

// ParseHost accepts an IP address or a hostname made of dot separated labels.
func ParseHost(arg string) (string, error) {
	host := strings.TrimSpace(arg)
	if host == "" {
		return "", fmt.Errorf("%w: empty", errors.ErrInvalidHost)
	}
	if net.ParseIP(host) != nil {
		return host, nil
	}
	if err := validate.Var(host, "hostname_rfc1123"); err != nil {
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidHost, arg)
	}
	return host, nil
}
