package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"campus-market/internal/engine"
	"campus-market/internal/engine/actors"
	"campus-market/internal/middleware"
	"campus-market/internal/models"
	"campus-market/internal/notify"
	"campus-market/internal/utils"
	"campus-market/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// Server holds all server dependencies, including the actor system and engine
type Server struct {
	System         *actor.ActorSystem
	Context        *actor.RootContext
	Engine         *engine.Engine
	Metrics        *utils.MetricsCollector
	Hub            *websocket.Hub
	Limiter        *middleware.SendLimiter
	Notifier       *notify.EmailNotifier
	Log            *zap.Logger
	RequestTimeout time.Duration
}

// NewServer creates a new Server instance with the given components
func NewServer(
	system *actor.ActorSystem,
	eng *engine.Engine,
	metrics *utils.MetricsCollector,
	hub *websocket.Hub,
	limiter *middleware.SendLimiter,
	notifier *notify.EmailNotifier,
	logger *zap.Logger,
) *Server {
	return &Server{
		System:         system,
		Context:        system.Root,
		Engine:         eng,
		Metrics:        metrics,
		Hub:            hub,
		Limiter:        limiter,
		Notifier:       notifier,
		Log:            logger,
		RequestTimeout: 5 * time.Second, // Default timeout for actor requests
	}
}

// ask sends a request to an actor and waits for the reply. A timeout maps to
// an actor-timeout error so handlers answer 500 instead of hanging.
func (s *Server) ask(pid *actor.PID, msg interface{}) (interface{}, *utils.AppError) {
	future := s.Context.RequestFuture(pid, msg, s.RequestTimeout)
	result, err := future.Result()
	if err != nil {
		return nil, utils.NewActorTimeoutError(pid.String())
	}
	if appErr, ok := result.(*utils.AppError); ok {
		return nil, appErr
	}
	return result, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.Log.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, appErr *utils.AppError) {
	s.Metrics.IncrementErrors()
	s.writeJSON(w, utils.AppErrorToHTTPStatus(appErr.Code), map[string]string{
		"code":  appErr.Code,
		"error": appErr.Message,
	})
}

// currentUser resolves the authenticated user from the request context and
// rejects banned accounts. Every authenticated handler goes through this, so
// a ban takes effect on the next request even for tokens issued before it.
func (s *Server) currentUser(r *http.Request) (*models.User, *utils.AppError) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		return nil, utils.NewUnauthorizedError("missing user identity")
	}
	result, appErr := s.ask(s.Engine.GetUserActor(), &actors.GetUserMsg{UserID: userID})
	if appErr != nil {
		return nil, appErr
	}
	user := result.(*models.User)
	if user.IsBanned {
		return nil, utils.NewAppError(utils.ErrUserBanned, "account is banned", nil)
	}
	return user, nil
}

// HandleHealth reports server liveness plus a metrics snapshot.
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "healthy",
			"server_time": time.Now(),
			"metrics":     s.Metrics.Snapshot(),
		})
	}
}
