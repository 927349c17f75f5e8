package action

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/haatos/conveyor/internal/pipeline"
)

// DeployTarget is the opaque resource stack a deploy stage activates.
// The engine never looks inside it; activation runs the target's script
// and on success the target's public endpoint is reported back.
type DeployTarget struct {
	Name           string
	Endpoint       string
	Credential     string
	ActivateScript string
}

// TargetResolver looks a deploy target up by name, typically backed by
// the target store.
type TargetResolver interface {
	ResolveTarget(ctx context.Context, name string) (*DeployTarget, error)
}

type DeployAction struct {
	Target *DeployTarget
}

// NewDeployFactory resolves targets eagerly so an unknown target is a
// definition error and the target's credential is visible to the
// pre-run credential check.
func NewDeployFactory(resolver TargetResolver) Factory {
	return func(params map[string]string) (pipeline.Action, error) {
		name, err := requireParam(params, "target")
		if err != nil {
			return nil, err
		}
		target, err := resolver.ResolveTarget(context.Background(), name)
		if err != nil {
			return nil, fmt.Errorf("resolving deploy target %q: %w", name, err)
		}
		return &DeployAction{Target: target}, nil
	}
}

func (a *DeployAction) RequiredCredentials() []string {
	if a.Target.Credential == "" {
		return nil
	}
	return []string{a.Target.Credential}
}

func (a *DeployAction) Invoke(
	ctx context.Context,
	rc *pipeline.RunContext,
) (*pipeline.ActionResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", a.Target.ActivateScript)
	cmd.Env = append(cmd.Environ(),
		"CONVEYOR_BRANCH="+rc.Branch,
		"CONVEYOR_BUILD_ID="+rc.BuildID,
		"CONVEYOR_TARGET="+a.Target.Name,
	)
	if a.Target.Credential != "" {
		secret, ok := rc.Credential(a.Target.Credential)
		if !ok {
			return nil, fmt.Errorf("credential %q not in run context", a.Target.Credential)
		}
		cmd.Env = append(cmd.Env, "CONVEYOR_TARGET_SECRET="+secret.Reveal())
	}

	out := new(bytes.Buffer)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		return &pipeline.ActionResult{
			Status:    pipeline.ActionFailure,
			Artifacts: map[string]string{"output": strings.TrimSpace(out.String())},
			Err:       fmt.Sprintf("activating target %q: %v", a.Target.Name, err),
		}, nil
	}

	return &pipeline.ActionResult{
		Status: pipeline.ActionSuccess,
		Artifacts: map[string]string{
			"output":   strings.TrimSpace(out.String()),
			"endpoint": a.Target.Endpoint,
		},
	}, nil
}
