package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testResolver(t *testing.T) (ActionResolver, *[]string) {
	t.Helper()
	resolved := new([]string)
	resolve := func(kind string, params map[string]string) (Action, error) {
		if kind == "" {
			return nil, fmt.Errorf("no action kind")
		}
		if kind == "unknown" {
			return nil, fmt.Errorf("unknown action kind %q", kind)
		}
		*resolved = append(*resolved, kind)
		return noopAction(), nil
	}
	return resolve, resolved
}

func TestParse(t *testing.T) {
	t.Run("success - full definition", func(t *testing.T) {
		// arrange
		definition := `
pipeline: release
groups:
  - group: build
    stages:
      - stage: compile
        run: "make build"
        timeout_seconds: 60
      - stage: test
        action: shell
        params:
          script: "make test"
  - group: checks
    mode: parallel
    fail_fast: true
    stages:
      - stage: lint
        run: "make lint"
      - stage: scan
        run: "make scan"
  - group: release
    stages:
      - approval: approve
        prompt: "release to production?"
        timeout_seconds: 600
      - stage: publish
        run: "make publish"
        when:
          branch: main
  - group: cleanup
    always_run: true
    stages:
      - stage: teardown
        run: "make clean"
hooks:
  on_failure:
    - hook: page
      action: notify
      params:
        channel: ops
        message: "release failed"
`
		resolve, resolved := testResolver(t)

		// act
		p, err := Parse([]byte(definition), resolve)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "release", p.Name)
		assert.Len(t, p.Groups, 4)

		build := p.Groups[0]
		assert.Equal(t, ModeSequential, build.Mode)
		compile := build.Children[0].(*Stage)
		assert.Equal(t, 60*time.Second, compile.Timeout)

		checks := p.Groups[1]
		assert.Equal(t, ModeParallel, checks.Mode)
		assert.True(t, checks.FailFast)

		release := p.Groups[2]
		gate := release.Children[0].(*Gate)
		assert.Equal(t, "release to production?", gate.Prompt)
		assert.Equal(t, 10*time.Minute, gate.Timeout)
		publish := release.Children[1].(*Stage)
		assert.NotNil(t, publish.Guard)

		assert.True(t, p.Groups[3].AlwaysRun)
		assert.Len(t, p.Hooks[TriggerOnFailure], 1)
		// run shorthand and explicit actions both resolve
		assert.Equal(t, []string{"shell", "shell", "shell", "shell", "shell", "shell", "notify"}, *resolved)
	})
	t.Run("failure - not yaml", func(t *testing.T) {
		resolve, _ := testResolver(t)
		_, err := Parse([]byte("pipeline: [unclosed"), resolve)
		var ve *ValidationError
		assert.True(t, errors.As(err, &ve))
	})
	t.Run("failure - top-level item is not a group", func(t *testing.T) {
		resolve, _ := testResolver(t)
		definition := `
pipeline: release
groups:
  - stage: compile
    run: "make build"
`
		_, err := Parse([]byte(definition), resolve)
		assertValidationError(t, err)
	})
	t.Run("failure - stage declares both run and action", func(t *testing.T) {
		resolve, _ := testResolver(t)
		definition := `
pipeline: release
groups:
  - group: build
    stages:
      - stage: compile
        run: "make build"
        action: shell
`
		_, err := Parse([]byte(definition), resolve)
		assertValidationError(t, err)
	})
	t.Run("failure - unresolvable action kind", func(t *testing.T) {
		resolve, _ := testResolver(t)
		definition := `
pipeline: release
groups:
  - group: build
    stages:
      - stage: compile
        action: unknown
`
		_, err := Parse([]byte(definition), resolve)
		ve := assertValidationError(t, err)
		assert.Contains(t, ve.Error(), "unknown action kind")
	})
	t.Run("failure - parsed pipeline is validated", func(t *testing.T) {
		resolve, _ := testResolver(t)
		definition := `
pipeline: release
groups:
  - group: release
    stages:
      - approval: approve
`
		_, err := Parse([]byte(definition), resolve)
		assertValidationError(t, err)
	})
}

func TestGuardSpec(t *testing.T) {
	t.Run("success - zero spec compiles to nil guard", func(t *testing.T) {
		assert.Nil(t, GuardSpec{}.Compile())
	})
	t.Run("success - guard matches branch and environment", func(t *testing.T) {
		// arrange
		guard := GuardSpec{Branch: "main", Environment: "production"}.Compile()

		// assert
		assert.True(t, guard.Evaluate(
			NewRunContext("main", "b1", "production", nil)))
		assert.False(t, guard.Evaluate(
			NewRunContext("develop", "b1", "production", nil)))
		assert.False(t, guard.Evaluate(
			NewRunContext("main", "b1", "staging", nil)))
	})
	t.Run("success - nil guard always passes", func(t *testing.T) {
		var guard *Guard
		assert.True(t, guard.Evaluate(NewRunContext("any", "b1", "", nil)))
	})
}

func TestSecretRedaction(t *testing.T) {
	t.Run("success - formatting verbs never print the value", func(t *testing.T) {
		s := Secret("hunter2")
		assert.Equal(t, "[redacted]", fmt.Sprintf("%s", s))
		assert.Equal(t, "[redacted]", fmt.Sprintf("%v", s))
		assert.NotContains(t, fmt.Sprintf("%#v", s), "hunter2")
		assert.Equal(t, "hunter2", s.Reveal())
	})
}

func TestRunContextCredentials(t *testing.T) {
	t.Run("success - credential lookup", func(t *testing.T) {
		// arrange
		rc := NewRunContext("main", "b1", "development",
			map[string]Secret{"deploy-key": "v"})

		// assert
		assert.True(t, rc.HasCredential("deploy-key"))
		secret, ok := rc.Credential("deploy-key")
		assert.True(t, ok)
		assert.Equal(t, "v", secret.Reveal())
		_, ok = rc.Credential("missing")
		assert.False(t, ok)
	})
}

func TestActionFunc(t *testing.T) {
	t.Run("success - plain function adapts to Action", func(t *testing.T) {
		called := false
		var a Action = ActionFunc(
			func(ctx context.Context, rc *RunContext) (*ActionResult, error) {
				called = true
				return &ActionResult{Status: ActionSuccess}, nil
			})
		result, err := a.Invoke(context.Background(), testContext())
		assert.NoError(t, err)
		assert.True(t, called)
		assert.Equal(t, ActionSuccess, result.Status)
	})
}

func testContext() *RunContext {
	return NewRunContext("main", "b1", "development", nil)
}
