// File: cmd/clickpilot/main.go
/*
Copyright © 2025 Kyle McAllister (xkilldash9x@proton.me)
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/clickpilot/cmd"
	"github.com/xkilldash9x/clickpilot/internal/observability"
	"github.com/xkilldash9x/clickpilot/internal/workflow"
)

const panicLogFile = "panic.log"

// Process exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitAborted = 2
)

// Define function variables for dependency injection/mocking in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	// The Sentinel: a panic anywhere below is logged to panic.log.
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := exitCode(cmd.Execute(ctx))
	stop()
	if code != exitOK {
		osExit(code)
	}
}

// exitCode maps a command error to the process exit status. An interrupted
// run is a clean exit; an aborted run is distinct from a failure.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return exitOK
	case errors.Is(err, workflow.ErrAbortProgram):
		return exitAborted
	default:
		return exitFailure
	}
}

// handlePanic writes the panic and stack to panicLogFile and exits 1.
func handlePanic() {
	if r := recover(); r != nil {
		observability.Sync()

		panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
		if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
			fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
			osExit(exitFailure)
			return
		}

		fmt.Fprintf(os.Stderr, "\n----------------------------------------------------------------\n")
		fmt.Fprintf(os.Stderr, "CRASH DETECTED. Details logged to %s\n", panicLogFile)
		fmt.Fprintf(os.Stderr, "----------------------------------------------------------------\n")
		osExit(exitFailure)
	}
}
