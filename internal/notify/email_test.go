package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNotifyNewMessageEscapesUserInput(t *testing.T) {
	var payload map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	notifier := NewEmailNotifier("test-key", "noreply@test.com", "Campus Market", zap.NewNop())
	notifier.endpoint = ts.URL

	err := notifier.NotifyNewMessage(context.Background(),
		"buyer@test.com",
		"mallory",
		"Desk <lamp>",
		`<script>alert("hi")</script>`)
	require.NoError(t, err)

	html, ok := payload["htmlContent"].(string)
	require.True(t, ok, "htmlContent missing from payload")
	assert.NotContains(t, html, "<script>", "preview must not reach the body as markup")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "Desk &lt;lamp&gt;")
}

func TestNotifierDisabledWithoutKey(t *testing.T) {
	notifier := NewEmailNotifier("", "noreply@test.com", "Campus Market", zap.NewNop())
	assert.False(t, notifier.Enabled())

	// A disabled notifier is a no-op, not an error.
	err := notifier.NotifyNewMessage(context.Background(), "buyer@test.com", "a", "b", "c")
	assert.NoError(t, err)
}
