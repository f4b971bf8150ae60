package handlers

import (
	"net/http"

	"campus-market/internal/engine/actors"
	"campus-market/internal/middleware"
	"campus-market/internal/models"
	"campus-market/internal/utils"
	"campus-market/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: check Origin against config.AllowedOrigins once the frontend
		// domains are settled
		return true
	},
}

// HandleThreadSocket upgrades a request to the live channel for one thread.
// Authorization is the same membership check the history endpoint applies:
// buyer or seller only, everyone else gets 403 before the upgrade.
func (s *Server) HandleThreadSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := middleware.BearerToken(r)
		if err != nil {
			s.writeError(w, utils.NewUnauthorizedError(err.Error()))
			return
		}

		claims, err := middleware.ValidateToken(tokenString)
		if err != nil {
			s.writeError(w, utils.NewUnauthorizedError("invalid or expired token"))
			return
		}
		if claims.UserID == uuid.Nil {
			s.writeError(w, utils.NewUnauthorizedError("invalid user ID in token"))
			return
		}

		userResult, appErr := s.ask(s.Engine.GetUserActor(), &actors.GetUserMsg{UserID: claims.UserID})
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}
		user := userResult.(*models.User)
		if user.IsBanned {
			s.writeError(w, utils.NewAppError(utils.ErrUserBanned, "account is banned", nil))
			return
		}

		threadID, err := uuid.Parse(r.PathValue("threadID"))
		if err != nil {
			s.writeError(w, utils.NewAppError(utils.ErrInvalidInput, "invalid thread ID", err))
			return
		}

		threadResult, appErr := s.ask(s.Engine.GetConversationActor(), &actors.GetThreadMsg{ThreadID: threadID})
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}
		thread := threadResult.(*models.Thread)
		if !thread.Participant(user.ID) {
			s.writeError(w, utils.NewAppError(utils.ErrNotParticipant, "not a participant of this thread", nil))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			s.Log.Debug("websocket upgrade failed",
				zap.String("user_id", user.ID.String()), zap.Error(err))
			return
		}

		sub := s.Hub.Subscribe(threadID, user.ID)
		client := &websocket.Client{
			Sub:  sub,
			Conn: conn,
			Log:  s.Log,
		}

		s.Log.Info("live connection opened",
			zap.String("thread_id", threadID.String()),
			zap.String("user_id", user.ID.String()))

		go client.WritePump()
		go client.ReadPump()
	}
}
