package handlers

import (
	"net/http"

	"campus-market/internal/middleware"
)

// Routes builds the HTTP mux. Everything under /threads and /ws runs the
// same JWT gate; registration and login are the only open writes.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.HandleHealth())

	mux.HandleFunc("POST /users/register", s.HandleUserRegistration())
	mux.HandleFunc("POST /users/login", s.HandleUserLogin())
	mux.HandleFunc("GET /users/me", middleware.ApplyJWTMiddleware(s.HandleCurrentUser()))
	mux.HandleFunc("POST /admin/users/{userID}/ban", middleware.ApplyJWTMiddleware(s.HandleSetBanned()))

	mux.HandleFunc("POST /listings", middleware.ApplyJWTMiddleware(s.HandleCreateListing()))
	mux.HandleFunc("GET /listings", s.HandleListListings())
	mux.HandleFunc("GET /listings/{listingID}", s.HandleGetListing())
	mux.HandleFunc("DELETE /listings/{listingID}", middleware.ApplyJWTMiddleware(s.HandleDeleteListing()))

	mux.HandleFunc("POST /threads/{listingID}", middleware.ApplyJWTMiddleware(s.HandleCreateThread()))
	mux.HandleFunc("GET /threads", middleware.ApplyJWTMiddleware(s.HandleListThreads()))
	mux.HandleFunc("GET /threads/{threadID}/messages", middleware.ApplyJWTMiddleware(s.HandleListMessages()))
	mux.HandleFunc("POST /threads/{threadID}/messages", middleware.ApplyJWTMiddleware(s.HandleSendMessage()))

	// Token checked inside the handler; browsers cannot set headers on dials.
	mux.HandleFunc("GET /ws/{threadID}", s.HandleThreadSocket())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Metrics.IncrementRequests()
		mux.ServeHTTP(w, r)
	})
}
