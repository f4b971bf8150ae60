package actors

import (
	stdctx "context"
	"sort"
	"strings"
	"time"

	"campus-market/internal/database"
	"campus-market/internal/models"
	"campus-market/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Message types for ConversationActor
type (
	// CreateThreadMsg asks for the thread of a (listing, buyer) pair,
	// creating it if absent. SellerID is the listing owner resolved by the
	// caller at creation time.
	CreateThreadMsg struct {
		ListingID uuid.UUID
		BuyerID   uuid.UUID
		SellerID  uuid.UUID
	}

	AppendMessageMsg struct {
		ThreadID uuid.UUID
		SenderID uuid.UUID
		Body     string
	}

	ListMessagesMsg struct {
		ThreadID    uuid.UUID
		RequesterID uuid.UUID
	}

	ListThreadsMsg struct {
		UserID uuid.UUID
	}

	GetThreadMsg struct {
		ThreadID uuid.UUID
	}
)

// CreateThreadResult reports whether the thread was newly created, so the
// handler can answer 201 versus 200.
type CreateThreadResult struct {
	Thread  *models.Thread
	Created bool
}

type threadPair struct {
	listingID uuid.UUID
	buyerID   uuid.UUID
}

// ConversationActor is the thread registry and message store. All mutation
// flows through this actor's mailbox, which is what makes get-or-create
// atomic over lookup-then-insert and serializes per-thread seq assignment
// against concurrent appends.
type ConversationActor struct {
	threadsByID   map[uuid.UUID]*models.Thread
	threadsByPair map[threadPair]uuid.UUID

	messagesByThread map[uuid.UUID][]*models.Message
	seqByThread      map[uuid.UUID]int64

	store   database.StoreAdapter
	metrics *utils.MetricsCollector
	log     *zap.Logger
}

func NewConversationActor(store database.StoreAdapter, metrics *utils.MetricsCollector, logger *zap.Logger) actor.Actor {
	return &ConversationActor{
		threadsByID:      make(map[uuid.UUID]*models.Thread),
		threadsByPair:    make(map[threadPair]uuid.UUID),
		messagesByThread: make(map[uuid.UUID][]*models.Message),
		seqByThread:      make(map[uuid.UUID]int64),
		store:            store,
		metrics:          metrics,
		log:              logger,
	}
}

func (a *ConversationActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *CreateThreadMsg:
		a.handleCreateThread(context, msg)
	case *AppendMessageMsg:
		a.handleAppendMessage(context, msg)
	case *ListMessagesMsg:
		a.handleListMessages(context, msg)
	case *ListThreadsMsg:
		a.handleListThreads(context, msg)
	case *GetThreadMsg:
		if thread, exists := a.threadsByID[msg.ThreadID]; exists {
			context.Respond(thread)
		} else {
			context.Respond(utils.NewThreadNotFoundError(msg.ThreadID.String()))
		}
	}
}

func (a *ConversationActor) handleCreateThread(context actor.Context, msg *CreateThreadMsg) {
	startTime := time.Now()

	if msg.BuyerID == msg.SellerID {
		context.Respond(utils.NewAppError(utils.ErrSelfMessaging, "you cannot message yourself", nil))
		return
	}

	pair := threadPair{listingID: msg.ListingID, buyerID: msg.BuyerID}
	if id, exists := a.threadsByPair[pair]; exists {
		context.Respond(&CreateThreadResult{Thread: a.threadsByID[id], Created: false})
		return
	}

	now := time.Now()
	thread := &models.Thread{
		ID:            uuid.New(),
		ListingID:     msg.ListingID,
		BuyerID:       msg.BuyerID,
		SellerID:      msg.SellerID,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	a.threadsByID[thread.ID] = thread
	a.threadsByPair[pair] = thread.ID
	a.messagesByThread[thread.ID] = make([]*models.Message, 0)

	if a.store != nil {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 3*time.Second)
		defer cancel()
		if err := a.store.SaveThread(ctx, thread); err != nil {
			a.log.Error("failed to persist thread", zap.String("thread_id", thread.ID.String()), zap.Error(err))
		}
	}

	a.metrics.AddOperationLatency("create_thread", time.Since(startTime))
	context.Respond(&CreateThreadResult{Thread: thread, Created: true})
}

func (a *ConversationActor) handleAppendMessage(context actor.Context, msg *AppendMessageMsg) {
	startTime := time.Now()

	thread, exists := a.threadsByID[msg.ThreadID]
	if !exists {
		context.Respond(utils.NewThreadNotFoundError(msg.ThreadID.String()))
		return
	}

	if !thread.Participant(msg.SenderID) {
		context.Respond(utils.NewAppError(utils.ErrNotParticipant, "sender is not a participant of this thread", nil))
		return
	}

	body := strings.TrimSpace(msg.Body)
	if body == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "message body cannot be empty", nil))
		return
	}

	a.ensureMessagesLoaded(msg.ThreadID)

	a.seqByThread[msg.ThreadID]++
	message := &models.Message{
		ID:        uuid.New(),
		ThreadID:  msg.ThreadID,
		SenderID:  msg.SenderID,
		Seq:       a.seqByThread[msg.ThreadID],
		Body:      body,
		CreatedAt: time.Now(),
	}

	a.messagesByThread[msg.ThreadID] = append(a.messagesByThread[msg.ThreadID], message)
	thread.LastMessageAt = message.CreatedAt

	if a.store != nil {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 3*time.Second)
		defer cancel()
		if err := a.store.SaveMessage(ctx, message); err != nil {
			a.log.Error("failed to persist message", zap.String("message_id", message.ID.String()), zap.Error(err))
		} else if err := a.store.TouchThread(ctx, msg.ThreadID); err != nil {
			a.log.Error("failed to touch thread", zap.String("thread_id", msg.ThreadID.String()), zap.Error(err))
		}
	}

	a.metrics.AddOperationLatency("append_message", time.Since(startTime))
	context.Respond(message)
}

func (a *ConversationActor) handleListMessages(context actor.Context, msg *ListMessagesMsg) {
	thread, exists := a.threadsByID[msg.ThreadID]
	if !exists {
		context.Respond(utils.NewThreadNotFoundError(msg.ThreadID.String()))
		return
	}

	if !thread.Participant(msg.RequesterID) {
		context.Respond(utils.NewAppError(utils.ErrNotParticipant, "requester is not a participant of this thread", nil))
		return
	}

	a.ensureMessagesLoaded(msg.ThreadID)

	// Appends only ever extend the slice, but callers receive their own copy
	// so the actor's backing array stays private.
	stored := a.messagesByThread[msg.ThreadID]
	messages := make([]*models.Message, len(stored))
	copy(messages, stored)
	context.Respond(messages)
}

// ensureMessagesLoaded backfills a hydrated thread's history from the
// store. Threads created in this process always have a slice in
// messagesByThread, so a missing entry marks a thread we have only seen
// as a row.
func (a *ConversationActor) ensureMessagesLoaded(threadID uuid.UUID) {
	if _, loaded := a.messagesByThread[threadID]; loaded {
		return
	}
	if a.store == nil {
		a.messagesByThread[threadID] = make([]*models.Message, 0)
		return
	}

	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 3*time.Second)
	defer cancel()
	messages, err := a.store.GetThreadMessages(ctx, threadID)
	if err != nil {
		a.log.Error("failed to load thread messages", zap.String("thread_id", threadID.String()), zap.Error(err))
		a.messagesByThread[threadID] = make([]*models.Message, 0)
		return
	}

	a.messagesByThread[threadID] = messages
	if len(messages) > 0 {
		a.seqByThread[threadID] = messages[len(messages)-1].Seq
	}
}

func (a *ConversationActor) handleListThreads(context actor.Context, msg *ListThreadsMsg) {
	if a.store != nil {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 3*time.Second)
		defer cancel()
		if stored, err := a.store.GetThreadsForUser(ctx, msg.UserID); err == nil {
			for _, thread := range stored {
				if _, known := a.threadsByID[thread.ID]; known {
					continue
				}
				a.threadsByID[thread.ID] = thread
				a.threadsByPair[threadPair{listingID: thread.ListingID, buyerID: thread.BuyerID}] = thread.ID
			}
		} else {
			a.log.Error("failed to load threads", zap.String("user_id", msg.UserID.String()), zap.Error(err))
		}
	}

	threads := make([]*models.Thread, 0)
	for _, thread := range a.threadsByID {
		if thread.Participant(msg.UserID) {
			threads = append(threads, thread)
		}
	}
	sort.Slice(threads, func(i, j int) bool {
		return threads[i].LastMessageAt.After(threads[j].LastMessageAt)
	})
	context.Respond(threads)
}
