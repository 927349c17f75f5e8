package engine

import (
	"fmt"
	"strings"
)

// ConfigurationError rejects a run before any stage executes, typically
// because the run context is missing a credential a stage action needs.
type ConfigurationError struct {
	Missing []string
	Message string
}

func (ce *ConfigurationError) Error() string {
	if len(ce.Missing) > 0 {
		return fmt.Sprintf(
			"run configuration: missing credentials: %s",
			strings.Join(ce.Missing, ", "),
		)
	}
	return "run configuration: " + ce.Message
}

// AlreadyResolvedError rejects a decision on a gate that has already
// reached a terminal state.
type AlreadyResolvedError struct {
	GateID   string
	Decision Decision
}

func (are *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("gate %s already resolved: %s", are.GateID, are.Decision)
}

type GateNotFoundError struct {
	GateID string
}

func (gnfe *GateNotFoundError) Error() string {
	return fmt.Sprintf("no pending gate %s", gnfe.GateID)
}
