// Package main implements a mock agent binary that speaks the agentbench
// run protocol over stdin/stdout. It generates simulated event streams
// for rapid feature testing and e2e tests without a real coding agent.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

func main() {
	opts := parseArgs(os.Args[1:])
	if opts.prompt == "" {
		fmt.Fprintln(os.Stderr, "mock-agent: no prompt given (-p <prompt>)")
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)

	var scanner *bufio.Scanner
	if opts.structured {
		scanner = bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	}

	if err := runScenario(enc, scanner, opts); err != nil {
		fmt.Fprintf(os.Stderr, "mock-agent: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	prompt     string
	model      string
	structured bool
}

// parseArgs extracts the flags the run manager passes to agent binaries:
// --model <name>, --output-format stream-json and -p <prompt>.
func parseArgs(args []string) options {
	opts := options{model: "mock-default"}
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--model" && i+1 < len(args):
			i++
			opts.model = args[i]
		case strings.HasPrefix(args[i], "--model="):
			opts.model = strings.TrimPrefix(args[i], "--model=")
		case args[i] == "--output-format" && i+1 < len(args):
			i++
			opts.structured = args[i] == "stream-json"
		case args[i] == "-p" && i+1 < len(args):
			i++
			opts.prompt = args[i]
		}
	}
	return opts
}
