// Package main is the entry point for the turnline CLI.
//
// Usage:
//
//	turnline [flags] <command> [args]
//
// Commands:
//
//	run       - Full pipeline: audio to decoded units and artifacts
//	evidence  - Build an evidence bundle from audio
//	decode    - Decode a stored evidence bundle
//	runs      - List exported runs
//	eval      - Score the decoder on synthetic cases
//	version   - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/dyadlab/turnline/cmd/turnline/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
