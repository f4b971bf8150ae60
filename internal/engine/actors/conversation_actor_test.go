package actors

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"campus-market/internal/models"
	"campus-market/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func spawnConversationActor(t *testing.T) (*actor.ActorSystem, *actor.PID) {
	t.Helper()
	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewConversationActor(nil, utils.NewMetricsCollector(), zap.NewNop())
	})
	pid := system.Root.Spawn(props)
	return system, pid
}

func askConversation(t *testing.T, system *actor.ActorSystem, pid *actor.PID, msg interface{}) interface{} {
	t.Helper()
	result, err := system.Root.RequestFuture(pid, msg, 5*time.Second).Result()
	require.NoError(t, err)
	return result
}

func TestCreateThreadIdempotent(t *testing.T) {
	system, pid := spawnConversationActor(t)

	listingID := uuid.New()
	buyerID := uuid.New()
	sellerID := uuid.New()

	first := askConversation(t, system, pid, &CreateThreadMsg{
		ListingID: listingID, BuyerID: buyerID, SellerID: sellerID,
	})
	created, ok := first.(*CreateThreadResult)
	require.True(t, ok, "unexpected response type: %T", first)
	assert.True(t, created.Created)

	second := askConversation(t, system, pid, &CreateThreadMsg{
		ListingID: listingID, BuyerID: buyerID, SellerID: sellerID,
	})
	repeated, ok := second.(*CreateThreadResult)
	require.True(t, ok)
	assert.False(t, repeated.Created)
	assert.Equal(t, created.Thread.ID, repeated.Thread.ID)

	// A different buyer on the same listing gets a different thread.
	third := askConversation(t, system, pid, &CreateThreadMsg{
		ListingID: listingID, BuyerID: uuid.New(), SellerID: sellerID,
	})
	other, ok := third.(*CreateThreadResult)
	require.True(t, ok)
	assert.True(t, other.Created)
	assert.NotEqual(t, created.Thread.ID, other.Thread.ID)
}

func TestCreateThreadConcurrentSamePair(t *testing.T) {
	system, pid := spawnConversationActor(t)

	listingID := uuid.New()
	buyerID := uuid.New()
	sellerID := uuid.New()

	const attempts = 20
	results := make(chan *CreateThreadResult, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := system.Root.RequestFuture(pid, &CreateThreadMsg{
				ListingID: listingID, BuyerID: buyerID, SellerID: sellerID,
			}, 5*time.Second).Result()
			if err != nil {
				return
			}
			if res, ok := resp.(*CreateThreadResult); ok {
				results <- res
			}
		}()
	}
	wg.Wait()
	close(results)

	createdCount := 0
	ids := make(map[uuid.UUID]bool)
	total := 0
	for res := range results {
		total++
		ids[res.Thread.ID] = true
		if res.Created {
			createdCount++
		}
	}
	assert.Equal(t, attempts, total)
	assert.Equal(t, 1, createdCount, "exactly one request should create the thread")
	assert.Len(t, ids, 1, "every request should resolve to the same thread")
}

func TestCreateThreadSelfMessaging(t *testing.T) {
	system, pid := spawnConversationActor(t)

	userID := uuid.New()
	result := askConversation(t, system, pid, &CreateThreadMsg{
		ListingID: uuid.New(), BuyerID: userID, SellerID: userID,
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected an error, got %T", result)
	assert.Equal(t, utils.ErrSelfMessaging, appErr.Code)
}

func TestAppendMessageAssignsAscendingSeq(t *testing.T) {
	system, pid := spawnConversationActor(t)

	buyerID := uuid.New()
	sellerID := uuid.New()
	created := askConversation(t, system, pid, &CreateThreadMsg{
		ListingID: uuid.New(), BuyerID: buyerID, SellerID: sellerID,
	}).(*CreateThreadResult)
	threadID := created.Thread.ID

	for i := 0; i < 5; i++ {
		sender := buyerID
		if i%2 == 1 {
			sender = sellerID
		}
		result := askConversation(t, system, pid, &AppendMessageMsg{
			ThreadID: threadID, SenderID: sender, Body: fmt.Sprintf("message %d", i),
		})
		msg, ok := result.(*models.Message)
		require.True(t, ok, "unexpected response type: %T", result)
		assert.Equal(t, int64(i+1), msg.Seq)
	}

	result := askConversation(t, system, pid, &ListMessagesMsg{
		ThreadID: threadID, RequesterID: buyerID,
	})
	messages, ok := result.([]*models.Message)
	require.True(t, ok)
	require.Len(t, messages, 5)
	for i, msg := range messages {
		assert.Equal(t, int64(i+1), msg.Seq)
		assert.Equal(t, fmt.Sprintf("message %d", i), msg.Body)
	}
}

func TestAppendMessageRejections(t *testing.T) {
	system, pid := spawnConversationActor(t)

	buyerID := uuid.New()
	created := askConversation(t, system, pid, &CreateThreadMsg{
		ListingID: uuid.New(), BuyerID: buyerID, SellerID: uuid.New(),
	}).(*CreateThreadResult)
	threadID := created.Thread.ID

	// Unknown thread
	result := askConversation(t, system, pid, &AppendMessageMsg{
		ThreadID: uuid.New(), SenderID: buyerID, Body: "hello",
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrThreadNotFound, appErr.Code)

	// Sender outside the pair
	result = askConversation(t, system, pid, &AppendMessageMsg{
		ThreadID: threadID, SenderID: uuid.New(), Body: "hello",
	})
	appErr, ok = result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrNotParticipant, appErr.Code)

	// Whitespace-only body
	result = askConversation(t, system, pid, &AppendMessageMsg{
		ThreadID: threadID, SenderID: buyerID, Body: "   ",
	})
	appErr, ok = result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrInvalidInput, appErr.Code)
}

func TestListMessagesRequiresParticipant(t *testing.T) {
	system, pid := spawnConversationActor(t)

	buyerID := uuid.New()
	created := askConversation(t, system, pid, &CreateThreadMsg{
		ListingID: uuid.New(), BuyerID: buyerID, SellerID: uuid.New(),
	}).(*CreateThreadResult)

	result := askConversation(t, system, pid, &ListMessagesMsg{
		ThreadID: created.Thread.ID, RequesterID: uuid.New(),
	})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrNotParticipant, appErr.Code)
}

func TestListThreadsOrderedByActivity(t *testing.T) {
	system, pid := spawnConversationActor(t)

	buyerID := uuid.New()
	sellerID := uuid.New()

	firstThread := askConversation(t, system, pid, &CreateThreadMsg{
		ListingID: uuid.New(), BuyerID: buyerID, SellerID: sellerID,
	}).(*CreateThreadResult).Thread
	time.Sleep(5 * time.Millisecond)
	secondThread := askConversation(t, system, pid, &CreateThreadMsg{
		ListingID: uuid.New(), BuyerID: buyerID, SellerID: sellerID,
	}).(*CreateThreadResult).Thread

	// Messaging in the older thread bumps it to the front.
	time.Sleep(5 * time.Millisecond)
	askConversation(t, system, pid, &AppendMessageMsg{
		ThreadID: firstThread.ID, SenderID: buyerID, Body: "bump",
	})

	result := askConversation(t, system, pid, &ListThreadsMsg{UserID: sellerID})
	threads, ok := result.([]*models.Thread)
	require.True(t, ok)
	require.Len(t, threads, 2)
	assert.Equal(t, firstThread.ID, threads[0].ID)
	assert.Equal(t, secondThread.ID, threads[1].ID)

	// An outsider sees nothing.
	result = askConversation(t, system, pid, &ListThreadsMsg{UserID: uuid.New()})
	assert.Empty(t, result.([]*models.Thread))
}
