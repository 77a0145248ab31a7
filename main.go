package main

import (
	"github.com/scanforge/scanforge/cmd"
)

// main is the entry point for the ScanForge application.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
