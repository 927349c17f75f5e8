package pipeline

import (
	"context"
)

// Secret is opaque credential material. It is kept out of logs by
// redacting the standard formatting verbs.
type Secret string

func (s Secret) String() string   { return "[redacted]" }
func (s Secret) GoString() string { return "pipeline.Secret([redacted])" }

// Reveal returns the underlying secret value.
func (s Secret) Reveal() string { return string(s) }

// RunContext carries the immutable per-run parameters. It is created
// once at run start and shared read-only across concurrently running
// stage actions.
type RunContext struct {
	Branch      string
	BuildID     string
	Environment string

	credentials map[string]Secret
}

func NewRunContext(branch, buildID, environment string, credentials map[string]Secret) *RunContext {
	creds := make(map[string]Secret, len(credentials))
	for name, secret := range credentials {
		creds[name] = secret
	}
	return &RunContext{
		Branch:      branch,
		BuildID:     buildID,
		Environment: environment,
		credentials: creds,
	}
}

func (rc *RunContext) Credential(name string) (Secret, bool) {
	s, ok := rc.credentials[name]
	return s, ok
}

func (rc *RunContext) HasCredential(name string) bool {
	_, ok := rc.credentials[name]
	return ok
}

type ActionStatus string

const (
	ActionSuccess ActionStatus = "success"
	ActionFailure ActionStatus = "failure"
)

// ActionResult is the opaque call contract a stage action reports back:
// a status, named artifacts and an optional error description.
type ActionResult struct {
	Status    ActionStatus
	Artifacts map[string]string
	Err       string
}

// Action is the black box a stage invokes: build tool, scanner, deploy
// command or anything else. The executor only looks at the result.
type Action interface {
	Invoke(ctx context.Context, rc *RunContext) (*ActionResult, error)
}

// CredentialRequirer is implemented by actions that need credentials
// from the RunContext. The executor checks these before any stage runs
// so a missing credential fails the run up front instead of mid-flight.
type CredentialRequirer interface {
	RequiredCredentials() []string
}

// ActionFunc adapts a plain function to the Action interface.
type ActionFunc func(ctx context.Context, rc *RunContext) (*ActionResult, error)

func (f ActionFunc) Invoke(ctx context.Context, rc *RunContext) (*ActionResult, error) {
	return f(ctx, rc)
}
