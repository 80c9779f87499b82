// Package main provides the agentpulse CLI application.
//
// agentpulse follows the JSONL session logs written by coding agents and
// serves a live event stream, cost accounting, activity heatmaps, rate
// windows, host health and a small service monitor over HTTP.
package main

import (
	"fmt"
	"os"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
