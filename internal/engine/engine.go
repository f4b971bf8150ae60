package engine

import (
	"campus-market/internal/database"
	"campus-market/internal/engine/actors"
	"campus-market/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// Engine coordinates communication between actors
type Engine struct {
	userActor         *actor.PID
	listingActor      *actor.PID
	conversationActor *actor.PID
}

func NewEngine(system *actor.ActorSystem, store database.StoreAdapter, metrics *utils.MetricsCollector, logger *zap.Logger) *Engine {
	context := system.Root

	userProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewUserActor(store, metrics, logger)
	})
	userPID := context.Spawn(userProps)

	listingProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewListingActor(store, metrics, logger)
	})
	listingPID := context.Spawn(listingProps)

	conversationProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewConversationActor(store, metrics, logger)
	})
	conversationPID := context.Spawn(conversationProps)

	return &Engine{
		userActor:         userPID,
		listingActor:      listingPID,
		conversationActor: conversationPID,
	}
}

// GetUserActor returns the PID of the user actor
func (e *Engine) GetUserActor() *actor.PID {
	return e.userActor
}

// GetListingActor returns the PID of the listing actor
func (e *Engine) GetListingActor() *actor.PID {
	return e.listingActor
}

// GetConversationActor returns the PID of the conversation actor
func (e *Engine) GetConversationActor() *actor.PID {
	return e.conversationActor
}
