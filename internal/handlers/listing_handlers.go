package handlers

import (
	"encoding/json"
	"net/http"

	"campus-market/internal/engine/actors"
	"campus-market/internal/models"
	"campus-market/internal/utils"

	"github.com/google/uuid"
)

// CreateListingRequest represents a request to create a new listing
type CreateListingRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
}

// HandleCreateListing handles requests to post a new listing
func (s *Server) HandleCreateListing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, appErr := s.currentUser(r)
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}

		var req CreateListingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, utils.NewAppError(utils.ErrInvalidInput, "invalid request body", err))
			return
		}

		result, appErr := s.ask(s.Engine.GetListingActor(), &actors.CreateListingMsg{
			Title:       req.Title,
			Description: req.Description,
			Price:       req.Price,
			Category:    models.ListingCategory(req.Category),
			OwnerID:     user.ID,
		})
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}

		s.writeJSON(w, http.StatusCreated, result)
	}
}

// HandleListListings handles requests to browse all listings
func (s *Server) HandleListListings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, appErr := s.ask(s.Engine.GetListingActor(), &actors.ListListingsMsg{})
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

// HandleGetListing handles requests to fetch a single listing by ID
func (s *Server) HandleGetListing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID, err := uuid.Parse(r.PathValue("listingID"))
		if err != nil {
			s.writeError(w, utils.NewAppError(utils.ErrInvalidInput, "invalid listing ID", err))
			return
		}

		result, appErr := s.ask(s.Engine.GetListingActor(), &actors.GetListingMsg{ListingID: listingID})
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

// HandleDeleteListing handles requests to remove a listing. Threads on the
// listing stay readable after deletion.
func (s *Server) HandleDeleteListing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, appErr := s.currentUser(r)
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}

		listingID, err := uuid.Parse(r.PathValue("listingID"))
		if err != nil {
			s.writeError(w, utils.NewAppError(utils.ErrInvalidInput, "invalid listing ID", err))
			return
		}

		_, appErr = s.ask(s.Engine.GetListingActor(), &actors.DeleteListingMsg{
			ListingID:   listingID,
			RequesterID: user.ID,
			IsAdmin:     user.IsAdmin,
		})
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	}
}
