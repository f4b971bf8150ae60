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

// Message types for ListingActor
type (
	CreateListingMsg struct {
		Title       string
		Description string
		Price       float64
		Category    models.ListingCategory
		OwnerID     uuid.UUID
	}

	GetListingMsg struct {
		ListingID uuid.UUID
	}

	ListListingsMsg struct{}

	DeleteListingMsg struct {
		ListingID   uuid.UUID
		RequesterID uuid.UUID
		IsAdmin     bool
	}
)

// ListingActor is the listing collaborator: it resolves a listing to its
// owner at thread-creation time and backs the minimal listing endpoints.
type ListingActor struct {
	listingsByID map[uuid.UUID]*models.Listing

	store   database.StoreAdapter
	metrics *utils.MetricsCollector
	log     *zap.Logger
}

func NewListingActor(store database.StoreAdapter, metrics *utils.MetricsCollector, logger *zap.Logger) actor.Actor {
	return &ListingActor{
		listingsByID: make(map[uuid.UUID]*models.Listing),
		store:        store,
		metrics:      metrics,
		log:          logger,
	}
}

func (a *ListingActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *CreateListingMsg:
		a.handleCreate(context, msg)
	case *GetListingMsg:
		a.handleGet(context, msg)
	case *ListListingsMsg:
		listings := make([]*models.Listing, 0, len(a.listingsByID))
		for _, l := range a.listingsByID {
			listings = append(listings, l)
		}
		sort.Slice(listings, func(i, j int) bool {
			return listings[i].CreatedAt.After(listings[j].CreatedAt)
		})
		context.Respond(listings)
	case *DeleteListingMsg:
		a.handleDelete(context, msg)
	}
}

func (a *ListingActor) handleCreate(context actor.Context, msg *CreateListingMsg) {
	startTime := time.Now()

	if strings.TrimSpace(msg.Title) == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "title is required", nil))
		return
	}
	if msg.Price < 0 {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "price cannot be negative", nil))
		return
	}
	if !models.ValidCategory(msg.Category) {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "unknown category", nil))
		return
	}

	listing := &models.Listing{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(msg.Title),
		Description: msg.Description,
		Price:       msg.Price,
		Category:    msg.Category,
		OwnerID:     msg.OwnerID,
		CreatedAt:   time.Now(),
	}
	a.listingsByID[listing.ID] = listing

	if a.store != nil {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 3*time.Second)
		defer cancel()
		if err := a.store.SaveListing(ctx, listing); err != nil {
			a.log.Error("failed to persist listing", zap.String("listing_id", listing.ID.String()), zap.Error(err))
		}
	}

	a.metrics.AddOperationLatency("create_listing", time.Since(startTime))
	context.Respond(listing)
}

func (a *ListingActor) handleGet(context actor.Context, msg *GetListingMsg) {
	if listing, exists := a.listingsByID[msg.ListingID]; exists {
		context.Respond(listing)
		return
	}

	// Cache miss: the listing may predate this process. Fall through to
	// the store and cache the row.
	if a.store != nil {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 3*time.Second)
		defer cancel()
		if listing, err := a.store.GetListing(ctx, msg.ListingID); err == nil {
			a.listingsByID[listing.ID] = listing
			context.Respond(listing)
			return
		}
	}

	context.Respond(utils.NewAppError(utils.ErrListingNotFound, "listing not found", nil))
}

func (a *ListingActor) handleDelete(context actor.Context, msg *DeleteListingMsg) {
	listing, exists := a.listingsByID[msg.ListingID]
	if !exists {
		context.Respond(utils.NewAppError(utils.ErrListingNotFound, "listing not found", nil))
		return
	}

	if listing.OwnerID != msg.RequesterID && !msg.IsAdmin {
		context.Respond(utils.NewAppError(utils.ErrForbidden, "not authorized to delete this listing", nil))
		return
	}

	// Existing threads keep referencing the listing id; conversations
	// outlive the listing.
	delete(a.listingsByID, msg.ListingID)

	if a.store != nil {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 3*time.Second)
		defer cancel()
		if err := a.store.DeleteListing(ctx, msg.ListingID); err != nil {
			a.log.Error("failed to delete listing", zap.String("listing_id", msg.ListingID.String()), zap.Error(err))
		}
	}

	context.Respond(true)
}
