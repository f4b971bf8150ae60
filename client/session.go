// Package client provides a conversation session for programs talking to the
// campus-market API: it merges fetched history with live pushes into one
// ordered view of a thread.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"campus-market/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	reconnectBaseDelay = 500 * time.Millisecond
	reconnectMaxDelay  = 10 * time.Second
)

// Session is a live view of one thread for one participant. Opening a
// session fetches the history and dials the thread's live channel; pushes
// from the other participant land in the view as they arrive. Messages
// missed while disconnected stay invisible until the next Refresh.
type Session struct {
	baseURL  string
	token    string
	userID   uuid.UUID
	threadID uuid.UUID
	http     *http.Client
	log      *zap.Logger

	mu       sync.Mutex
	messages []*models.Message
	seen     map[uuid.UUID]bool
	conn     *websocket.Conn

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open creates a session for the given thread: it fetches the current
// history, dials the live channel, and starts receiving pushes. The caller
// must Close the session when done.
func Open(ctx context.Context, baseURL, token string, userID, threadID uuid.UUID, logger *zap.Logger) (*Session, error) {
	s := &Session{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		userID:   userID,
		threadID: threadID,
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      logger,
		seen:     make(map[uuid.UUID]bool),
		closed:   make(chan struct{}),
	}

	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.wg.Add(1)
	go s.readLoop(conn)

	return s, nil
}

// Send posts a message to the thread. The server echoes the stored message
// back on the REST response, and that echo is the sender's copy: the live
// channel never carries a sender's own messages back to them.
func (s *Session) Send(ctx context.Context, body string) (*models.Message, error) {
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/threads/%s/messages", s.baseURL, s.threadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("send failed: status %d", resp.StatusCode)
	}

	var msg models.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.add(&msg)
	s.mu.Unlock()
	return &msg, nil
}

// Refresh re-fetches the thread history and merges it into the view. This is
// the only way to recover messages missed while disconnected.
func (s *Session) Refresh(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/threads/%s/messages", s.baseURL, s.threadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("history fetch failed: status %d", resp.StatusCode)
	}

	var history []*models.Message
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return err
	}

	s.mu.Lock()
	for _, msg := range history {
		s.add(msg)
	}
	s.mu.Unlock()
	return nil
}

// Messages returns a snapshot of the merged view in thread order.
func (s *Session) Messages() []*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Close tears down the live connection and stops the receive loop.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
	})
	s.wg.Wait()
}

// add inserts a message if unseen, keeping the slice ordered by seq.
// Caller holds s.mu.
func (s *Session) add(msg *models.Message) {
	if s.seen[msg.ID] {
		return
	}
	s.seen[msg.ID] = true
	s.messages = append(s.messages, msg)
	sort.Slice(s.messages, func(i, j int) bool {
		return s.messages[i].Seq < s.messages[j].Seq
	})
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = fmt.Sprintf("/ws/%s", s.threadID)
	u.RawQuery = url.Values{"token": {s.token}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// readLoop consumes pushes from the live channel, reconnecting with backoff
// when the connection drops. It does not backfill after a reconnect.
func (s *Session) readLoop(conn *websocket.Conn) {
	defer s.wg.Done()

	for {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var msg models.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				s.log.Warn("undecodable push", zap.Error(err))
				continue
			}
			// The hub already excludes the sender, but a push of our own
			// message must never double up with the REST echo.
			if msg.SenderID == s.userID {
				continue
			}
			s.mu.Lock()
			s.add(&msg)
			s.mu.Unlock()
		}
		conn.Close()

		var next *websocket.Conn
		delay := reconnectBaseDelay
		for {
			select {
			case <-s.closed:
				return
			case <-time.After(delay):
			}
			c, err := s.dial(context.Background())
			if err == nil {
				next = c
				break
			}
			s.log.Debug("reconnect failed", zap.Error(err))
			if delay *= 2; delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
		}
		// Close may have run between the dial and here, in which case it
		// already closed the old conn and will never see this one. Publish
		// the new conn under the same lock Close takes, and give up if the
		// session closed meanwhile.
		s.mu.Lock()
		select {
		case <-s.closed:
			s.mu.Unlock()
			next.Close()
			return
		default:
		}
		s.conn = next
		s.mu.Unlock()
		conn = next
	}
}
