package main

import (
	"errors"

	"github.com/Sriram-PR/mdimg/pkg/utils"
)

// Exit codes for the mdimg CLI.
// Per-image failures never change the exit code; they are logged and the
// reference is left as it was.
const (
	ExitSuccess = 0 // Run finished, possibly with failed references
	ExitFailure = 1 // Bad target, or the single document could not be processed
	ExitUsage   = 2 // Invalid flags or config
)

// errUsage marks errors caused by how the tool was invoked
var errUsage = errors.New("usage error")

// exitCodeFor returns the appropriate exit code for an error.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, errUsage) || errors.Is(err, utils.ErrConfigValidation) {
		return ExitUsage
	}
	return ExitFailure
}
