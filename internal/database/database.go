package database

import (
	"context"

	"campus-market/internal/models"

	"github.com/google/uuid"
)

// StoreAdapter is the durable write-through store behind the actors. The
// engine remains the source of truth for ordering and membership; the store
// records what the engine decided. Implementations must be safe for
// concurrent use.
type StoreAdapter interface {
	// User methods
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserBanned(ctx context.Context, id uuid.UUID, banned bool) error

	// Listing methods
	SaveListing(ctx context.Context, listing *models.Listing) error
	GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	DeleteListing(ctx context.Context, id uuid.UUID) error

	// Thread and message methods
	SaveThread(ctx context.Context, thread *models.Thread) error
	TouchThread(ctx context.Context, threadID uuid.UUID) error
	GetThreadsForUser(ctx context.Context, userID uuid.UUID) ([]*models.Thread, error)
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetThreadMessages(ctx context.Context, threadID uuid.UUID) ([]*models.Message, error)

	Close(ctx context.Context) error
}
