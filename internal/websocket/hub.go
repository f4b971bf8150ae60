package websocket

import (
	"encoding/json"
	"sync"

	"campus-market/internal/models"
	"campus-market/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Buffered outbound queue per subscription. A subscriber that falls this far
// behind is disconnected rather than allowed to apply backpressure to the
// publisher.
const sendBufferSize = 256

// Subscription is one live connection's membership in a thread. A participant
// may hold several at once (multiple tabs); each is delivered independently.
type Subscription struct {
	ThreadID uuid.UUID
	UserID   uuid.UUID

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	hub       *Hub
}

// Deliveries is the stream of JSON-encoded messages pushed to this
// subscription, one per message.
func (s *Subscription) Deliveries() <-chan []byte {
	return s.send
}

// Done is closed when the subscription has been removed from the hub.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close removes the subscription from the hub. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.Unsubscribe(s)
}

// subscriberSet holds the live subscriptions of one thread behind its own
// lock, so publishing on one conversation never serializes against another.
type subscriberSet struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Hub maps thread ids to their live subscriber sets and fans newly appended
// messages out to every other participant's open subscriptions. Participant
// membership is the caller's responsibility, checked once at subscribe time;
// thread membership is immutable so no re-check happens per message.
type Hub struct {
	mu      sync.RWMutex
	threads map[uuid.UUID]*subscriberSet

	metrics *utils.MetricsCollector
	log     *zap.Logger
}

func NewHub(metrics *utils.MetricsCollector, logger *zap.Logger) *Hub {
	return &Hub{
		threads: make(map[uuid.UUID]*subscriberSet),
		metrics: metrics,
		log:     logger,
	}
}

// Subscribe registers a new live subscription for participantID on threadID.
func (h *Hub) Subscribe(threadID, participantID uuid.UUID) *Subscription {
	sub := &Subscription{
		ThreadID: threadID,
		UserID:   participantID,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		hub:      h,
	}

	h.mu.Lock()
	set, ok := h.threads[threadID]
	if !ok {
		set = &subscriberSet{subs: make(map[*Subscription]struct{})}
		h.threads[threadID] = set
	}
	set.mu.Lock()
	set.subs[sub] = struct{}{}
	set.mu.Unlock()
	h.mu.Unlock()

	h.log.Debug("live subscription opened",
		zap.String("thread_id", threadID.String()),
		zap.String("user_id", participantID.String()))
	return sub
}

// Unsubscribe removes sub from its thread's set and signals its pumps to
// stop. Empty sets are dropped so long-running threads with many reconnects
// do not grow the map without bound.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if set, ok := h.threads[sub.ThreadID]; ok {
		set.mu.Lock()
		delete(set.subs, sub)
		empty := len(set.subs) == 0
		set.mu.Unlock()
		if empty {
			delete(h.threads, sub.ThreadID)
		}
	}
	h.mu.Unlock()

	sub.closeOnce.Do(func() { close(sub.done) })
}

// Publish delivers msg to every subscription on its thread except the
// sender's own. It never blocks on a reader: the snapshot of the subscriber
// set is taken under the per-thread lock, delivery happens outside it, and a
// subscriber whose queue is full is disconnected instead of retried.
func (h *Hub) Publish(msg *models.Message) {
	h.mu.RLock()
	set, ok := h.threads[msg.ThreadID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to encode message for fan-out",
			zap.String("message_id", msg.ID.String()), zap.Error(err))
		return
	}

	set.mu.Lock()
	targets := make([]*Subscription, 0, len(set.subs))
	for sub := range set.subs {
		if sub.UserID == msg.SenderID {
			// The sender already has the message from the synchronous
			// send response.
			continue
		}
		targets = append(targets, sub)
	}
	set.mu.Unlock()

	var saturated []*Subscription
	for _, sub := range targets {
		select {
		case sub.send <- payload:
			h.metrics.IncrementDelivered()
		default:
			saturated = append(saturated, sub)
		}
	}

	for _, sub := range saturated {
		h.metrics.IncrementDropped()
		h.log.Warn("disconnecting saturated live subscription",
			zap.String("thread_id", sub.ThreadID.String()),
			zap.String("user_id", sub.UserID.String()))
		h.Unsubscribe(sub)
	}
}

// HasSubscriber reports whether participantID holds at least one live
// subscription on threadID. Used to decide whether an offline notification
// is warranted.
func (h *Hub) HasSubscriber(threadID, participantID uuid.UUID) bool {
	h.mu.RLock()
	set, ok := h.threads[threadID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	set.mu.Lock()
	defer set.mu.Unlock()
	for sub := range set.subs {
		if sub.UserID == participantID {
			return true
		}
	}
	return false
}

// SubscriberCount returns the number of live subscriptions on threadID.
func (h *Hub) SubscriberCount(threadID uuid.UUID) int {
	h.mu.RLock()
	set, ok := h.threads[threadID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}

	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.subs)
}
