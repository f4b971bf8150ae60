package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity record. The conversation core only reads ID and
// IsBanned; the rest belongs to the identity endpoints.
type User struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Email          string    `json:"email" db:"email"`
	HashedPassword string    `json:"-" db:"password_hash"`
	IsAdmin        bool      `json:"is_admin" db:"is_admin"`
	IsBanned       bool      `json:"is_banned" db:"is_banned"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	LastLoginAt    time.Time `json:"last_login_at" db:"last_login_at"`
}

type ListingCategory string

const (
	CategoryTextbooks   ListingCategory = "Textbooks"
	CategoryFurniture   ListingCategory = "Furniture"
	CategoryElectronics ListingCategory = "Electronics"
	CategoryTickets     ListingCategory = "Tickets"
	CategoryOther       ListingCategory = "Other"
)

// ValidCategory reports whether c is one of the known listing categories.
func ValidCategory(c ListingCategory) bool {
	switch c {
	case CategoryTextbooks, CategoryFurniture, CategoryElectronics, CategoryTickets, CategoryOther:
		return true
	}
	return false
}

type Listing struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Price       float64         `json:"price" db:"price"`
	Category    ListingCategory `json:"category" db:"category"`
	OwnerID     uuid.UUID       `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Thread is a conversation scoped to one listing and one buyer. Exactly one
// thread exists per (listing_id, buyer_id) pair; the seller is the listing
// owner at creation time and never changes.
type Thread struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ListingID     uuid.UUID `json:"listing_id" db:"listing_id"`
	BuyerID       uuid.UUID `json:"buyer_id" db:"buyer_id"`
	SellerID      uuid.UUID `json:"seller_id" db:"seller_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	LastMessageAt time.Time `json:"last_message_at" db:"last_message_at"`
}

// Participant reports whether userID is the thread's buyer or seller.
func (t *Thread) Participant(userID uuid.UUID) bool {
	return t.BuyerID == userID || t.SellerID == userID
}

// OtherParticipant returns the participant that is not userID.
func (t *Thread) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if t.BuyerID == userID {
		return t.SellerID
	}
	return t.BuyerID
}

// Message is immutable once created. Seq is a per-thread monotonic sequence
// assigned at append time and carried on both the REST and the live path;
// ascending Seq defines thread-local order.
type Message struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ThreadID  uuid.UUID `json:"thread_id" db:"thread_id"`
	SenderID  uuid.UUID `json:"sender_id" db:"sender_id"`
	Seq       int64     `json:"seq" db:"seq"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
