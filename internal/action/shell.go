package action

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/haatos/conveyor/internal/pipeline"
)

// ShellAction runs a script on the controller host. Cancellation and
// timeouts are delivered through the command's context.
type ShellAction struct {
	Script  string
	Workdir string
}

func NewShellFactory() Factory {
	return func(params map[string]string) (pipeline.Action, error) {
		script, err := requireParam(params, "script")
		if err != nil {
			return nil, err
		}
		return &ShellAction{Script: script, Workdir: params["workdir"]}, nil
	}
}

func (a *ShellAction) Invoke(
	ctx context.Context,
	rc *pipeline.RunContext,
) (*pipeline.ActionResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", a.Script)
	cmd.Dir = a.Workdir
	cmd.Env = append(cmd.Environ(),
		"CONVEYOR_BRANCH="+rc.Branch,
		"CONVEYOR_BUILD_ID="+rc.BuildID,
		"CONVEYOR_ENVIRONMENT="+rc.Environment,
	)

	out := new(bytes.Buffer)
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	result := &pipeline.ActionResult{
		Status:    pipeline.ActionSuccess,
		Artifacts: map[string]string{"output": strings.TrimSpace(out.String())},
	}
	if err != nil {
		result.Status = pipeline.ActionFailure
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Err = exitErr.String()
		} else {
			result.Err = err.Error()
		}
	}
	return result, nil
}
