package websocket

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"campus-market/internal/models"
	"campus-market/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub() *Hub {
	return NewHub(utils.NewMetricsCollector(), zap.NewNop())
}

func testMessage(threadID, senderID uuid.UUID, body string) *models.Message {
	return &models.Message{
		ID:        uuid.New(),
		ThreadID:  threadID,
		SenderID:  senderID,
		Seq:       1,
		Body:      body,
		CreatedAt: time.Now(),
	}
}

func receiveOne(t *testing.T, sub *Subscription) *models.Message {
	t.Helper()
	select {
	case payload := <-sub.Deliveries():
		var msg models.Message
		require.NoError(t, json.Unmarshal(payload, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
		return nil
	}
}

func assertNoDelivery(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case payload := <-sub.Deliveries():
		t.Fatalf("unexpected delivery: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishExcludesSender(t *testing.T) {
	hub := newTestHub()
	threadID := uuid.New()
	buyerID := uuid.New()
	sellerID := uuid.New()

	buyerSub := hub.Subscribe(threadID, buyerID)
	sellerSub := hub.Subscribe(threadID, sellerID)
	defer buyerSub.Close()
	defer sellerSub.Close()

	hub.Publish(testMessage(threadID, buyerID, "hi"))

	got := receiveOne(t, sellerSub)
	assert.Equal(t, "hi", got.Body)
	assert.Equal(t, buyerID, got.SenderID)

	assertNoDelivery(t, buyerSub)
}

func TestPublishReachesAllConnectionsOfRecipient(t *testing.T) {
	hub := newTestHub()
	threadID := uuid.New()
	buyerID := uuid.New()
	sellerID := uuid.New()

	// Seller has the thread open in two tabs.
	tab1 := hub.Subscribe(threadID, sellerID)
	tab2 := hub.Subscribe(threadID, sellerID)
	defer tab1.Close()
	defer tab2.Close()

	hub.Publish(testMessage(threadID, buyerID, "ping"))

	assert.Equal(t, "ping", receiveOne(t, tab1).Body)
	assert.Equal(t, "ping", receiveOne(t, tab2).Body)
}

func TestPublishIsolatedPerThread(t *testing.T) {
	hub := newTestHub()
	threadA := uuid.New()
	threadB := uuid.New()
	senderID := uuid.New()

	subA := hub.Subscribe(threadA, uuid.New())
	subB := hub.Subscribe(threadB, uuid.New())
	defer subA.Close()
	defer subB.Close()

	hub.Publish(testMessage(threadA, senderID, "only for A"))

	assert.Equal(t, "only for A", receiveOne(t, subA).Body)
	assertNoDelivery(t, subB)
}

func TestSaturatedSubscriberDisconnected(t *testing.T) {
	hub := newTestHub()
	threadID := uuid.New()
	senderID := uuid.New()

	slow := hub.Subscribe(threadID, uuid.New())
	fast := hub.Subscribe(threadID, uuid.New())
	defer fast.Close()

	// Drain the fast subscriber continuously; never read from the slow one.
	fastCount := make(chan int)
	go func() {
		count := 0
		for {
			select {
			case <-fast.Deliveries():
				count++
			case <-time.After(500 * time.Millisecond):
				fastCount <- count
				return
			}
		}
	}()

	total := sendBufferSize + 50
	for i := 0; i < total; i++ {
		hub.Publish(testMessage(threadID, senderID, fmt.Sprintf("msg %d", i)))
		if i%64 == 0 {
			// Give the draining reader a chance to keep its queue clear.
			time.Sleep(time.Millisecond)
		}
	}

	// The slow subscriber overflowed its queue and was dropped.
	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("saturated subscription was not disconnected")
	}
	assert.False(t, hub.HasSubscriber(threadID, slow.UserID))

	// The fast subscriber was unaffected.
	assert.Equal(t, total, <-fastCount)
	assert.True(t, hub.HasSubscriber(threadID, fast.UserID))
}

func TestUnsubscribeDropsEmptySets(t *testing.T) {
	hub := newTestHub()
	threadID := uuid.New()

	sub := hub.Subscribe(threadID, uuid.New())
	assert.Equal(t, 1, hub.SubscriberCount(threadID))

	sub.Close()
	assert.Equal(t, 0, hub.SubscriberCount(threadID))

	// Publishing to a thread with no subscribers is a no-op.
	hub.Publish(testMessage(threadID, uuid.New(), "into the void"))

	// Close is idempotent.
	sub.Close()
}

func TestHasSubscriber(t *testing.T) {
	hub := newTestHub()
	threadID := uuid.New()
	userID := uuid.New()

	assert.False(t, hub.HasSubscriber(threadID, userID))

	sub := hub.Subscribe(threadID, userID)
	assert.True(t, hub.HasSubscriber(threadID, userID))
	assert.False(t, hub.HasSubscriber(threadID, uuid.New()))

	sub.Close()
	assert.False(t, hub.HasSubscriber(threadID, userID))
}
