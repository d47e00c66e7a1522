// Package main provides the entry point for agentctl, the reference CLI
// wiring the Turn Engine's collaborators into a runnable process.
package main

import (
	"fmt"
	"os"

	"github.com/agentcore/turnengine/cmd/agentctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
