// Package portutil provides port allocation and command placeholder
// substitution for workspace dev servers.
package portutil

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Matches $PORT, ${PORT}, $DEV_PORT, ${DEV_PORT}, etc.
var placeholderRegex = regexp.MustCompile(`\$\{?([A-Z_]*PORT[A-Z0-9_]*)\}?`)

// AllocatePort allocates an available port using OS assignment.
func AllocatePort() (int, error) {
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, fmt.Errorf("failed to allocate port: %w", err)
	}
	defer func() {
		_ = listener.Close()
	}()

	addr := listener.Addr().(*net.TCPAddr)
	return addr.Port, nil
}

// TransformCommand detects port placeholders in a command string,
// allocates a port for each unique placeholder, and returns the command
// with placeholders replaced plus an environment variable map. Multiple
// occurrences of the same placeholder get the same port.
//
//	"npm run dev -- --port $PORT"  ->  "npm run dev -- --port 54321", {"PORT": "54321"}
func TransformCommand(command string) (string, map[string]string, error) {
	names := uniquePlaceholders(command)
	if len(names) == 0 {
		return command, make(map[string]string), nil
	}

	portEnv := make(map[string]string)
	for _, name := range names {
		port, err := AllocatePort()
		if err != nil {
			return "", nil, fmt.Errorf("failed to allocate port for %s: %w", name, err)
		}
		portEnv[name] = strconv.Itoa(port)
	}

	transformed := command
	for name, portStr := range portEnv {
		transformed = strings.ReplaceAll(transformed, "${"+name+"}", portStr)
		transformed = strings.ReplaceAll(transformed, "$"+name, portStr)
	}

	return transformed, portEnv, nil
}

// WaitForListen polls host:port until a TCP connection succeeds or the
// deadline passes. Returns false on timeout.
func WaitForListen(host string, port int, timeout time.Duration) bool {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 250*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// uniquePlaceholders extracts unique placeholder names from a command string.
func uniquePlaceholders(command string) []string {
	matches := placeholderRegex.FindAllStringSubmatch(command, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var result []string
	for _, match := range matches {
		if len(match) > 1 && !seen[match[1]] {
			seen[match[1]] = true
			result = append(result, match[1])
		}
	}
	return result
}
