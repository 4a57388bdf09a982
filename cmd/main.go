package main

// Main entry point of the application
// Initializes and executes Cobra commands
// Exit code follows the error kind: 2 config, 3 transport, 4 contract execution, 5 output

import (
	"fmt"
	"os"

	"holders-snapshot/cmd/commands"
	"holders-snapshot/internal/infra/apperr"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(apperr.ExitCode(err))
	}
}
