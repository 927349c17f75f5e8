package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifier_Notify(t *testing.T) {
	t.Run("success - message posted to the webhook", func(t *testing.T) {
		// arrange
		var received Message
		server := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				body, err := io.ReadAll(r.Body)
				assert.NoError(t, err)
				assert.NoError(t, json.Unmarshal(body, &received))
				w.WriteHeader(http.StatusOK)
			}))
		defer server.Close()
		n := NewNotifier(server.URL)

		// act
		n.Notify(context.Background(), "ops", "build failed on main", SeverityError)

		// assert
		assert.Equal(t, "ops", received.Channel)
		assert.Equal(t, "build failed on main", received.Text)
		assert.Equal(t, SeverityError, received.Severity)
		assert.NotEmpty(t, received.SentOn)
	})
	t.Run("success - webhook failure does not escalate", func(t *testing.T) {
		// arrange
		server := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}))
		defer server.Close()
		n := NewNotifier(server.URL)

		// act / assert: no panic, no error surface
		n.Notify(context.Background(), "ops", "ignored", SeverityInfo)
	})
	t.Run("success - empty webhook url only logs", func(t *testing.T) {
		// arrange
		n := NewNotifier("")

		// act / assert
		n.Notify(context.Background(), "ops", "logged only", SeverityInfo)
	})
}
