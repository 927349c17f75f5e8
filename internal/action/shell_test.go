package action

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/haatos/conveyor/internal/pipeline"
)

func testRunContext() *pipeline.RunContext {
	return pipeline.NewRunContext("main", "build-42", "staging", nil)
}

func TestShellAction_Invoke(t *testing.T) {
	t.Run("success - output captured as artifact", func(t *testing.T) {
		// arrange
		a := &ShellAction{Script: "echo hello"}

		// act
		result, err := a.Invoke(context.Background(), testRunContext())

		// assert
		assert.NoError(t, err)
		assert.Equal(t, pipeline.ActionSuccess, result.Status)
		assert.Equal(t, "hello", result.Artifacts["output"])
	})
	t.Run("success - run context exported to the script", func(t *testing.T) {
		// arrange
		a := &ShellAction{
			Script: "echo $CONVEYOR_BRANCH $CONVEYOR_BUILD_ID $CONVEYOR_ENVIRONMENT",
		}

		// act
		result, err := a.Invoke(context.Background(), testRunContext())

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "main build-42 staging", result.Artifacts["output"])
	})
	t.Run("failure - nonzero exit", func(t *testing.T) {
		// arrange
		a := &ShellAction{Script: "echo broken >&2; exit 3"}

		// act
		result, err := a.Invoke(context.Background(), testRunContext())

		// assert
		assert.NoError(t, err)
		assert.Equal(t, pipeline.ActionFailure, result.Status)
		assert.Equal(t, "broken", result.Artifacts["output"])
		assert.Contains(t, result.Err, "3")
	})
	t.Run("failure - cancelled context stops the script", func(t *testing.T) {
		// arrange
		a := &ShellAction{Script: "sleep 10"}
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		// act
		started := time.Now()
		result, err := a.Invoke(ctx, testRunContext())

		// assert
		assert.NoError(t, err)
		assert.Equal(t, pipeline.ActionFailure, result.Status)
		assert.Less(t, time.Since(started), 5*time.Second)
	})
}

func TestRegistry(t *testing.T) {
	t.Run("success - registered kind resolves", func(t *testing.T) {
		// arrange
		r := NewRegistry()
		r.Register("shell", NewShellFactory())

		// act
		a, err := r.Resolve("shell", map[string]string{"script": "true"})

		// assert
		assert.NoError(t, err)
		assert.IsType(t, &ShellAction{}, a)
	})
	t.Run("failure - unknown kind", func(t *testing.T) {
		// arrange
		r := NewRegistry()

		// act
		a, err := r.Resolve("teleport", nil)

		// assert
		assert.Error(t, err)
		assert.Nil(t, a)
	})
	t.Run("failure - shell without script param", func(t *testing.T) {
		// arrange
		r := DefaultRegistry(nil, nil)

		// act
		a, err := r.Resolve("shell", nil)

		// assert
		assert.Error(t, err)
		assert.Nil(t, a)
	})
	t.Run("success - default registry kinds", func(t *testing.T) {
		// arrange
		r := DefaultRegistry(nil, nil)

		// assert
		_, err := r.Resolve("shell", map[string]string{"script": "true"})
		assert.NoError(t, err)
		_, err = r.Resolve("notify", map[string]string{"channel": "ops", "message": "hi"})
		assert.NoError(t, err)
		_, err = r.Resolve("remote", map[string]string{
			"host":       "example.com",
			"username":   "ci",
			"credential": "deploy-key",
			"script":     "true",
		})
		assert.NoError(t, err)
		// no target resolver, no deploy kind
		_, err = r.Resolve("deploy", map[string]string{"target": "staging"})
		assert.Error(t, err)
	})
}

func TestRemoteAction_RequiredCredentials(t *testing.T) {
	t.Run("success - credential requirement surfaces to the pre-check", func(t *testing.T) {
		// arrange
		r := DefaultRegistry(nil, nil)
		a, err := r.Resolve("remote", map[string]string{
			"host":       "example.com",
			"username":   "ci",
			"credential": "deploy-key",
			"script":     "uname -a",
		})
		assert.NoError(t, err)

		// act
		cr, ok := a.(pipeline.CredentialRequirer)

		// assert
		assert.True(t, ok)
		assert.Equal(t, []string{"deploy-key"}, cr.RequiredCredentials())
	})
}
