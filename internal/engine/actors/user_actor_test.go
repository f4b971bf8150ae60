package actors

import (
	"testing"
	"time"

	"campus-market/internal/models"
	"campus-market/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func spawnUserActor(t *testing.T) (*actor.ActorSystem, *actor.PID) {
	t.Helper()
	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewUserActor(nil, utils.NewMetricsCollector(), zap.NewNop())
	})
	pid := system.Root.Spawn(props)
	return system, pid
}

func askUser(t *testing.T, system *actor.ActorSystem, pid *actor.PID, msg interface{}) interface{} {
	t.Helper()
	result, err := system.Root.RequestFuture(pid, msg, 5*time.Second).Result()
	require.NoError(t, err)
	return result
}

func TestRegisterAndLogin(t *testing.T) {
	system, pid := spawnUserActor(t)

	result := askUser(t, system, pid, &RegisterUserMsg{
		Name: "alice", Email: "Alice@Example.com", Password: "password123",
	})
	user, ok := result.(*models.User)
	require.True(t, ok, "unexpected response type: %T", result)
	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "password123", user.HashedPassword, "password must not be stored in clear")

	// Email lookup is case-insensitive.
	result = askUser(t, system, pid, &LoginMsg{Email: "ALICE@example.com", Password: "password123"})
	loggedIn, ok := result.(*models.User)
	require.True(t, ok, "unexpected response type: %T", result)
	assert.Equal(t, user.ID, loggedIn.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	system, pid := spawnUserActor(t)

	askUser(t, system, pid, &RegisterUserMsg{Name: "bob", Email: "bob@test.com", Password: "pw12345"})
	result := askUser(t, system, pid, &RegisterUserMsg{Name: "bob2", Email: "bob@test.com", Password: "pw12345"})

	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrUserAlreadyExists, appErr.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	system, pid := spawnUserActor(t)

	askUser(t, system, pid, &RegisterUserMsg{Name: "carol", Email: "carol@test.com", Password: "correct-pw"})

	result := askUser(t, system, pid, &LoginMsg{Email: "carol@test.com", Password: "wrong-pw"})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrInvalidCredentials, appErr.Code)

	// Unknown email answers the same way.
	result = askUser(t, system, pid, &LoginMsg{Email: "nobody@test.com", Password: "whatever"})
	appErr, ok = result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrInvalidCredentials, appErr.Code)
}

func TestBannedUserCannotLogin(t *testing.T) {
	system, pid := spawnUserActor(t)

	registered := askUser(t, system, pid, &RegisterUserMsg{
		Name: "dave", Email: "dave@test.com", Password: "pw12345",
	}).(*models.User)

	banned := askUser(t, system, pid, &SetBannedMsg{UserID: registered.ID, Banned: true})
	bannedUser, ok := banned.(*models.User)
	require.True(t, ok)
	assert.True(t, bannedUser.IsBanned)

	result := askUser(t, system, pid, &LoginMsg{Email: "dave@test.com", Password: "pw12345"})
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrUserBanned, appErr.Code)

	// Unban restores access.
	askUser(t, system, pid, &SetBannedMsg{UserID: registered.ID, Banned: false})
	result = askUser(t, system, pid, &LoginMsg{Email: "dave@test.com", Password: "pw12345"})
	_, ok = result.(*models.User)
	assert.True(t, ok, "unbanned user should log in again, got %T", result)
}
