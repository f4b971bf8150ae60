package actors

import (
	stdctx "context"
	"strings"
	"time"

	"campus-market/internal/database"
	"campus-market/internal/models"
	"campus-market/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Message types for UserActor
type (
	RegisterUserMsg struct {
		Name     string
		Email    string
		Password string
	}

	LoginMsg struct {
		Email    string
		Password string
	}

	GetUserMsg struct {
		UserID uuid.UUID
	}

	SetBannedMsg struct {
		UserID uuid.UUID
		Banned bool
	}
)

// UserActor owns the identity records. The conversation core consults it for
// the banned flag; everything else serves the register/login endpoints.
type UserActor struct {
	usersByID    map[uuid.UUID]*models.User
	usersByEmail map[string]uuid.UUID

	store   database.StoreAdapter
	metrics *utils.MetricsCollector
	log     *zap.Logger
}

func NewUserActor(store database.StoreAdapter, metrics *utils.MetricsCollector, logger *zap.Logger) actor.Actor {
	return &UserActor{
		usersByID:    make(map[uuid.UUID]*models.User),
		usersByEmail: make(map[string]uuid.UUID),
		store:        store,
		metrics:      metrics,
		log:          logger,
	}
}

func (a *UserActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *RegisterUserMsg:
		a.handleRegister(context, msg)
	case *LoginMsg:
		a.handleLogin(context, msg)
	case *GetUserMsg:
		a.handleGetUser(context, msg)
	case *SetBannedMsg:
		a.handleSetBanned(context, msg)
	}
}

func (a *UserActor) handleRegister(context actor.Context, msg *RegisterUserMsg) {
	startTime := time.Now()

	email := strings.ToLower(strings.TrimSpace(msg.Email))
	if email == "" || strings.TrimSpace(msg.Name) == "" || msg.Password == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "name, email and password are required", nil))
		return
	}

	if _, exists := a.usersByEmail[email]; exists {
		context.Respond(utils.NewAppError(utils.ErrUserAlreadyExists, "email already registered", nil))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(msg.Password), bcrypt.DefaultCost)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "failed to hash password", err))
		return
	}

	now := time.Now()
	user := &models.User{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(msg.Name),
		Email:          email,
		HashedPassword: string(hashed),
		CreatedAt:      now,
		LastLoginAt:    now,
	}

	a.usersByID[user.ID] = user
	a.usersByEmail[email] = user.ID
	a.persistUser(user)

	a.metrics.AddOperationLatency("register_user", time.Since(startTime))
	context.Respond(user)
}

func (a *UserActor) handleGetUser(context actor.Context, msg *GetUserMsg) {
	if user, exists := a.usersByID[msg.UserID]; exists {
		context.Respond(user)
		return
	}

	// Cache miss: the account may predate this process. Fall through to the
	// store and cache the row.
	if a.store != nil {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 3*time.Second)
		defer cancel()
		if user, err := a.store.GetUser(ctx, msg.UserID); err == nil {
			a.usersByID[user.ID] = user
			a.usersByEmail[user.Email] = user.ID
			context.Respond(user)
			return
		}
	}
	context.Respond(utils.NewAppError(utils.ErrUserNotFound, "user not found", nil))
}

func (a *UserActor) handleLogin(context actor.Context, msg *LoginMsg) {
	email := strings.ToLower(strings.TrimSpace(msg.Email))
	id, exists := a.usersByEmail[email]
	if !exists {
		if a.store != nil {
			ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 3*time.Second)
			defer cancel()
			if fetched, err := a.store.GetUserByEmail(ctx, email); err == nil {
				a.usersByID[fetched.ID] = fetched
				a.usersByEmail[fetched.Email] = fetched.ID
				id, exists = fetched.ID, true
			}
		}
		if !exists {
			context.Respond(utils.NewAppError(utils.ErrInvalidCredentials, "invalid email or password", nil))
			return
		}
	}

	user := a.usersByID[id]
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(msg.Password)); err != nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidCredentials, "invalid email or password", nil))
		return
	}

	if user.IsBanned {
		context.Respond(utils.NewAppError(utils.ErrUserBanned, "account is banned", nil))
		return
	}

	user.LastLoginAt = time.Now()
	a.persistUser(user)
	context.Respond(user)
}

func (a *UserActor) handleSetBanned(context actor.Context, msg *SetBannedMsg) {
	user, exists := a.usersByID[msg.UserID]
	if !exists {
		context.Respond(utils.NewAppError(utils.ErrUserNotFound, "user not found", nil))
		return
	}

	user.IsBanned = msg.Banned
	if a.store != nil {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 3*time.Second)
		defer cancel()
		if err := a.store.UpdateUserBanned(ctx, user.ID, msg.Banned); err != nil {
			a.log.Error("failed to persist ban flag", zap.String("user_id", user.ID.String()), zap.Error(err))
		}
	}
	context.Respond(user)
}

func (a *UserActor) persistUser(user *models.User) {
	if a.store == nil {
		return
	}
	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 3*time.Second)
	defer cancel()
	if err := a.store.SaveUser(ctx, user); err != nil {
		a.log.Error("failed to persist user", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
}
