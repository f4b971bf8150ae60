package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"campus-market/internal/models"
	"campus-market/internal/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresDB represents a PostgreSQL database connection
type PostgresDB struct {
	DB *sqlx.DB
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %v", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %v", err)
	}

	return &PostgresDB{DB: db}, nil
}

// Close closes the database connection
func (p *PostgresDB) Close(ctx context.Context) error {
	return p.DB.Close()
}

// InitializeTables creates all necessary tables if they don't exist
func (p *PostgresDB) InitializeTables(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(100) UNIQUE NOT NULL,
			password_hash VARCHAR(100) NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			is_banned BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			last_login_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create users table: %v", err)
	}

	_, err = p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id UUID PRIMARY KEY,
			title VARCHAR(200) NOT NULL,
			description TEXT,
			price DOUBLE PRECISION NOT NULL,
			category VARCHAR(50) NOT NULL,
			owner_id UUID NOT NULL REFERENCES users(id),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create listings table: %v", err)
	}

	// Threads are never deleted with their listing, so listing_id carries no
	// foreign key. The unique pair enforces the registry invariant at the
	// storage layer as well.
	_, err = p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS threads (
			id UUID PRIMARY KEY,
			listing_id UUID NOT NULL,
			buyer_id UUID NOT NULL REFERENCES users(id),
			seller_id UUID NOT NULL REFERENCES users(id),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			last_message_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			UNIQUE (listing_id, buyer_id)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create threads table: %v", err)
	}

	_, err = p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			thread_id UUID NOT NULL REFERENCES threads(id),
			sender_id UUID NOT NULL REFERENCES users(id),
			seq BIGINT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			UNIQUE (thread_id, seq)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create messages table: %v", err)
	}

	return nil
}

// --- User methods ---

func (p *PostgresDB) SaveUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, is_admin, is_banned, created_at, last_login_at)
		VALUES (:id, :name, :email, :password_hash, :is_admin, :is_banned, :created_at, :last_login_at)
		ON CONFLICT (id) DO UPDATE SET last_login_at = EXCLUDED.last_login_at
	`
	_, err := p.DB.NamedExecContext(ctx, query, user)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to save user", err)
	}
	return nil
}

func (p *PostgresDB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := p.DB.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrUserNotFound, "user not found", nil)
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query user", err)
	}
	return &user, nil
}

func (p *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := p.DB.GetContext(ctx, &user, `SELECT * FROM users WHERE email = $1`, email)
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrUserNotFound, "user not found", nil)
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query user by email", err)
	}
	return &user, nil
}

func (p *PostgresDB) UpdateUserBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	_, err := p.DB.ExecContext(ctx, `UPDATE users SET is_banned = $2 WHERE id = $1`, id, banned)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to update ban flag", err)
	}
	return nil
}

// --- Listing methods ---

func (p *PostgresDB) SaveListing(ctx context.Context, listing *models.Listing) error {
	query := `
		INSERT INTO listings (id, title, description, price, category, owner_id, created_at)
		VALUES (:id, :title, :description, :price, :category, :owner_id, :created_at)
	`
	_, err := p.DB.NamedExecContext(ctx, query, listing)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to save listing", err)
	}
	return nil
}

func (p *PostgresDB) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := p.DB.GetContext(ctx, &listing, `SELECT * FROM listings WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrListingNotFound, "listing not found", nil)
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query listing", err)
	}
	return &listing, nil
}

func (p *PostgresDB) DeleteListing(ctx context.Context, id uuid.UUID) error {
	// Threads referencing the listing are kept on purpose.
	_, err := p.DB.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to delete listing", err)
	}
	return nil
}

// --- Thread and message methods ---

func (p *PostgresDB) SaveThread(ctx context.Context, thread *models.Thread) error {
	query := `
		INSERT INTO threads (id, listing_id, buyer_id, seller_id, created_at, last_message_at)
		VALUES (:id, :listing_id, :buyer_id, :seller_id, :created_at, :last_message_at)
		ON CONFLICT (listing_id, buyer_id) DO NOTHING
	`
	_, err := p.DB.NamedExecContext(ctx, query, thread)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to save thread", err)
	}
	return nil
}

func (p *PostgresDB) TouchThread(ctx context.Context, threadID uuid.UUID) error {
	_, err := p.DB.ExecContext(ctx, `UPDATE threads SET last_message_at = NOW() WHERE id = $1`, threadID)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to touch thread", err)
	}
	return nil
}

func (p *PostgresDB) GetThreadsForUser(ctx context.Context, userID uuid.UUID) ([]*models.Thread, error) {
	query := `
		SELECT * FROM threads
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY last_message_at DESC
	`
	var threads []*models.Thread
	err := p.DB.SelectContext(ctx, &threads, query, userID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query user threads", err)
	}
	if threads == nil {
		threads = make([]*models.Thread, 0)
	}
	return threads, nil
}

func (p *PostgresDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO messages (id, thread_id, sender_id, seq, body, created_at)
		VALUES (:id, :thread_id, :sender_id, :seq, :body, :created_at)
	`
	_, err := p.DB.NamedExecContext(ctx, query, msg)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to save message", err)
	}
	return nil
}

func (p *PostgresDB) GetThreadMessages(ctx context.Context, threadID uuid.UUID) ([]*models.Message, error) {
	query := `
		SELECT * FROM messages
		WHERE thread_id = $1
		ORDER BY seq ASC
	`
	var messages []*models.Message
	err := p.DB.SelectContext(ctx, &messages, query, threadID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query thread messages", err)
	}
	if messages == nil {
		messages = make([]*models.Message, 0)
	}
	return messages, nil
}
