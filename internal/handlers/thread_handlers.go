package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"campus-market/internal/engine/actors"
	"campus-market/internal/models"
	"campus-market/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SendMessageRequest represents a request to append a message to a thread
type SendMessageRequest struct {
	Body string `json:"body"`
}

const previewLimit = 120

// HandleCreateThread opens (or returns) the conversation between the caller
// and a listing's owner. The same (listing, buyer) pair always resolves to
// one thread: 201 on first open, 200 with the same thread after that.
func (s *Server) HandleCreateThread() http.HandlerFunc {
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

		listingResult, appErr := s.ask(s.Engine.GetListingActor(), &actors.GetListingMsg{ListingID: listingID})
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}
		listing := listingResult.(*models.Listing)

		result, appErr := s.ask(s.Engine.GetConversationActor(), &actors.CreateThreadMsg{
			ListingID: listingID,
			BuyerID:   user.ID,
			SellerID:  listing.OwnerID,
		})
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}

		created := result.(*actors.CreateThreadResult)
		status := http.StatusOK
		if created.Created {
			status = http.StatusCreated
		}
		s.writeJSON(w, status, created.Thread)
	}
}

// HandleListThreads returns the caller's threads, most recently active first.
func (s *Server) HandleListThreads() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, appErr := s.currentUser(r)
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}

		result, appErr := s.ask(s.Engine.GetConversationActor(), &actors.ListThreadsMsg{UserID: user.ID})
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

// HandleListMessages returns a thread's full history in send order.
func (s *Server) HandleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, appErr := s.currentUser(r)
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}

		threadID, err := uuid.Parse(r.PathValue("threadID"))
		if err != nil {
			s.writeError(w, utils.NewAppError(utils.ErrInvalidInput, "invalid thread ID", err))
			return
		}

		result, appErr := s.ask(s.Engine.GetConversationActor(), &actors.ListMessagesMsg{
			ThreadID:    threadID,
			RequesterID: user.ID,
		})
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

// HandleSendMessage appends a message to a thread, fans it out to live
// subscribers, and emails the other participant if they have no live
// connection open.
func (s *Server) HandleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, appErr := s.currentUser(r)
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}

		threadID, err := uuid.Parse(r.PathValue("threadID"))
		if err != nil {
			s.writeError(w, utils.NewAppError(utils.ErrInvalidInput, "invalid thread ID", err))
			return
		}

		if !s.Limiter.Allow(user.ID) {
			s.writeError(w, utils.NewAppError(utils.ErrTooManyRequests, "message rate limit exceeded", nil))
			return
		}

		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, utils.NewAppError(utils.ErrInvalidInput, "invalid request body", err))
			return
		}

		result, appErr := s.ask(s.Engine.GetConversationActor(), &actors.AppendMessageMsg{
			ThreadID: threadID,
			SenderID: user.ID,
			Body:     req.Body,
		})
		if appErr != nil {
			s.writeError(w, appErr)
			return
		}
		message := result.(*models.Message)

		s.Hub.Publish(message)
		s.maybeNotifyRecipient(user, message)

		s.writeJSON(w, http.StatusCreated, message)
	}
}

// maybeNotifyRecipient emails the other participant when no live connection
// of theirs is subscribed to the thread. Runs the send off the request path;
// a failed email never fails the message.
func (s *Server) maybeNotifyRecipient(sender *models.User, message *models.Message) {
	if !s.Notifier.Enabled() {
		return
	}

	threadResult, appErr := s.ask(s.Engine.GetConversationActor(), &actors.GetThreadMsg{ThreadID: message.ThreadID})
	if appErr != nil {
		return
	}
	thread := threadResult.(*models.Thread)
	recipientID := thread.OtherParticipant(sender.ID)

	if s.Hub.HasSubscriber(message.ThreadID, recipientID) {
		return
	}

	recipientResult, appErr := s.ask(s.Engine.GetUserActor(), &actors.GetUserMsg{UserID: recipientID})
	if appErr != nil {
		return
	}
	recipient := recipientResult.(*models.User)

	listingTitle := "your listing"
	if listingResult, appErr := s.ask(s.Engine.GetListingActor(), &actors.GetListingMsg{ListingID: thread.ListingID}); appErr == nil {
		listingTitle = listingResult.(*models.Listing).Title
	}

	preview := message.Body
	if len(preview) > previewLimit {
		preview = preview[:previewLimit] + "..."
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Notifier.NotifyNewMessage(ctx, recipient.Email, sender.Name, listingTitle, preview); err != nil {
			s.Log.Warn("failed to send notification email",
				zap.String("thread_id", message.ThreadID.String()), zap.Error(err))
		}
	}()
}
