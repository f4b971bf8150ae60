package handlers

import (
	"encoding/json"
	"net/http"

	"campus-market/internal/api"
	"campus-market/internal/engine/actors"
	"campus-market/internal/middleware"
	"campus-market/internal/models"
	"campus-market/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterUserRequest represents a request to register a new user
type RegisterUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a request to log in a user
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SetBannedRequest represents an admin request to ban or unban a user
type SetBannedRequest struct {
	Banned bool `json:"banned"`
}

// HandleUserRegistration handles requests to register a new user
func (s *Server) HandleUserRegistration() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, utils.NewAppError(utils.ErrInvalidInput, "invalid request body", err))
			return
		}

		result, appErr := s.ask(s.Engine.GetUserActor(), &actors.RegisterUserMsg{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
		})
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}

		s.writeJSON(w, http.StatusCreated, result)
	}
}

// HandleUserLogin handles requests to log in a user
func (s *Server) HandleUserLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, utils.NewAppError(utils.ErrInvalidInput, "invalid request body", err))
			return
		}

		result, appErr := s.ask(s.Engine.GetUserActor(), &actors.LoginMsg{
			Email:    req.Email,
			Password: req.Password,
		})
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}

		user := result.(*models.User)
		token, err := middleware.GenerateToken(user.ID)
		if err != nil {
			s.Log.Error("failed to generate token", zap.Error(err))
			s.writeError(w, utils.NewAppError(utils.ErrUnauthorized, "failed to generate token", err))
			return
		}

		s.writeJSON(w, http.StatusOK, &api.LoginResponse{
			Success: true,
			Token:   token,
			UserID:  user.ID.String(),
		})
	}
}

// HandleCurrentUser returns the profile of the authenticated user.
func (s *Server) HandleCurrentUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, appErr := s.currentUser(r)
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}
		s.writeJSON(w, http.StatusOK, user)
	}
}

// HandleSetBanned lets an admin ban or unban a user by ID.
func (s *Server) HandleSetBanned() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, appErr := s.currentUser(r)
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}
		if !admin.IsAdmin {
			s.writeError(w, utils.NewForbiddenError("admin access required"))
			return
		}

		targetID, err := uuid.Parse(r.PathValue("userID"))
		if err != nil {
			s.writeError(w, utils.NewAppError(utils.ErrInvalidInput, "invalid user ID", err))
			return
		}

		var req SetBannedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, utils.NewAppError(utils.ErrInvalidInput, "invalid request body", err))
			return
		}

		result, appErr := s.ask(s.Engine.GetUserActor(), &actors.SetBannedMsg{
			UserID: targetID,
			Banned: req.Banned,
		})
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}

		s.Log.Info("user ban state changed",
			zap.String("admin_id", admin.ID.String()),
			zap.String("user_id", targetID.String()),
			zap.Bool("banned", req.Banned))
		s.writeJSON(w, http.StatusOK, result)
	}
}
