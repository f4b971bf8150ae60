package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campus-market/internal/api"
	"campus-market/internal/engine"
	"campus-market/internal/handlers"
	"campus-market/internal/middleware"
	"campus-market/internal/models"
	"campus-market/internal/notify"
	"campus-market/internal/utils"
	"campus-market/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testAccount struct {
	ID    uuid.UUID
	Token string
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()
	metrics := utils.NewMetricsCollector()
	system := actor.NewActorSystem()
	eng := engine.NewEngine(system, nil, metrics, logger)
	hub := websocket.NewHub(metrics, logger)
	limiter := middleware.NewSendLimiter(600, logger)
	notifier := notify.NewEmailNotifier("", "", "", logger)

	srv := handlers.NewServer(system, eng, metrics, hub, limiter, notifier, logger)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, token string, payload interface{}, out interface{}) int {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.Unmarshal(body, out))
	}
	return resp.StatusCode
}

func signUp(t *testing.T, ts *httptest.Server, name string) testAccount {
	t.Helper()
	var user models.User
	code := post(t, ts.URL+"/users/register", "", map[string]string{
		"name": name, "email": name + "@test.com", "password": "testpass123",
	}, &user)
	require.Equal(t, http.StatusCreated, code)

	var login api.LoginResponse
	code = post(t, ts.URL+"/users/login", "", map[string]string{
		"email": name + "@test.com", "password": "testpass123",
	}, &login)
	require.Equal(t, http.StatusOK, code)
	return testAccount{ID: user.ID, Token: login.Token}
}

// setupThread creates a listing owned by seller and opens the buyer's thread
// on it.
func setupThread(t *testing.T, ts *httptest.Server, buyer, seller testAccount) models.Thread {
	t.Helper()
	var listing models.Listing
	code := post(t, ts.URL+"/listings", seller.Token, map[string]interface{}{
		"title": "Bike", "description": "red bike", "price": 40.0, "category": "Other",
	}, &listing)
	require.Equal(t, http.StatusCreated, code)

	var thread models.Thread
	code = post(t, ts.URL+"/threads/"+listing.ID.String(), buyer.Token, map[string]string{}, &thread)
	require.Equal(t, http.StatusCreated, code)
	return thread
}

func TestSessionMergesHistoryAndLive(t *testing.T) {
	ts := startServer(t)
	buyer := signUp(t, ts, "sess_buyer")
	seller := signUp(t, ts, "sess_seller")
	thread := setupThread(t, ts, buyer, seller)

	// Two messages exist before the buyer opens their session.
	messagesURL := fmt.Sprintf("%s/threads/%s/messages", ts.URL, thread.ID)
	code := post(t, messagesURL, buyer.Token, map[string]string{"body": "first"}, nil)
	require.Equal(t, http.StatusCreated, code)
	code = post(t, messagesURL, seller.Token, map[string]string{"body": "second"}, nil)
	require.Equal(t, http.StatusCreated, code)

	ctx := context.Background()
	session, err := Open(ctx, ts.URL, buyer.Token, buyer.ID, thread.ID, zap.NewNop())
	require.NoError(t, err)
	defer session.Close()

	require.Len(t, session.Messages(), 2, "history should be loaded on open")

	// A live push from the seller lands in the merged view.
	code = post(t, messagesURL, seller.Token, map[string]string{"body": "third"}, nil)
	require.Equal(t, http.StatusCreated, code)
	require.Eventually(t, func() bool {
		return len(session.Messages()) == 3
	}, 2*time.Second, 20*time.Millisecond)

	// Sending appends the REST echo exactly once; the live channel does not
	// duplicate it.
	_, err = session.Send(ctx, "fourth")
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)

	msgs := session.Messages()
	require.Len(t, msgs, 4)
	for i, msg := range msgs {
		assert.Equal(t, int64(i+1), msg.Seq, "view must stay in thread order")
	}
	assert.Equal(t, "fourth", msgs[3].Body)

	// Refresh against an up-to-date view changes nothing.
	require.NoError(t, session.Refresh(ctx))
	assert.Len(t, session.Messages(), 4)
}

func TestSessionMissedMessagesAppearAfterReopen(t *testing.T) {
	ts := startServer(t)
	buyer := signUp(t, ts, "gap_buyer")
	seller := signUp(t, ts, "gap_seller")
	thread := setupThread(t, ts, buyer, seller)

	ctx := context.Background()
	session, err := Open(ctx, ts.URL, buyer.Token, buyer.ID, thread.ID, zap.NewNop())
	require.NoError(t, err)
	session.Close()

	// Sent while the buyer holds no live connection.
	messagesURL := fmt.Sprintf("%s/threads/%s/messages", ts.URL, thread.ID)
	code := post(t, messagesURL, seller.Token, map[string]string{"body": "while you were away"}, nil)
	require.Equal(t, http.StatusCreated, code)

	// The closed session never sees it.
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, session.Messages())

	// A fresh open fetches history and recovers the gap.
	reopened, err := Open(ctx, ts.URL, buyer.Token, buyer.ID, thread.ID, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	msgs := reopened.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "while you were away", msgs[0].Body)
}

func TestOpenRejectsNonParticipant(t *testing.T) {
	ts := startServer(t)
	buyer := signUp(t, ts, "open_buyer")
	seller := signUp(t, ts, "open_seller")
	stranger := signUp(t, ts, "open_stranger")
	thread := setupThread(t, ts, buyer, seller)

	_, err := Open(context.Background(), ts.URL, stranger.Token, stranger.ID, thread.ID, zap.NewNop())
	require.Error(t, err)
}

func TestCloseReturnsDuringReconnect(t *testing.T) {
	ts := startServer(t)
	buyer := signUp(t, ts, "churn_buyer")
	seller := signUp(t, ts, "churn_seller")
	thread := setupThread(t, ts, buyer, seller)

	// Close must return no matter where the reconnect loop is when it
	// runs, including right as a fresh dial completes.
	waits := []time.Duration{
		0,
		reconnectBaseDelay / 2,
		reconnectBaseDelay,
		reconnectBaseDelay * 3 / 2,
	}
	for _, wait := range waits {
		session, err := Open(context.Background(), ts.URL, buyer.Token, buyer.ID, thread.ID, zap.NewNop())
		require.NoError(t, err)

		// Drop the live connection so the session starts reconnecting.
		ts.CloseClientConnections()
		time.Sleep(wait)

		done := make(chan struct{})
		go func() {
			session.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Close hung while the session was reconnecting")
		}
	}
}
