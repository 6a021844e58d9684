// Package api provides HTTP handlers for MindHaven endpoints.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/BTreeMap/MindHaven/internal/chat"
	"github.com/BTreeMap/MindHaven/internal/models"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}

// analyzeHandler handles POST /nlp/analyze.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		slog.Warn("Server.analyzeHandler: empty text", "requestID", RequestID(r.Context()))
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: text"))
		return
	}
	if len(req.Text) > models.MaxMessageLength {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrMessageTooLong.Error()))
		return
	}

	result := s.classifier.Classify(req.Text)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// chatMessageHandler handles POST /ai-chat/message.
func (s *Server) chatMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ChatMessageRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatMessageHandler: validation failed", "error", err, "requestID", RequestID(r.Context()))
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	exchange, err := s.chat.HandleMessage(r.Context(), req.UserID, req.Content)
	if err != nil {
		writeServiceError(w, r, "Server.chatMessageHandler", err)
		return
	}
	slog.Info("Server.chatMessageHandler: message handled",
		"userID", req.UserID,
		"conversationID", exchange.Conversation.ID,
		"intent", exchange.UserMessage.Intent)
	writeJSONResponse(w, http.StatusOK, models.Success(exchange))
}

// conversationHandler handles GET /ai-chat/{userId}?limit=N.
// The conversation is created with its welcome message on first access.
func (s *Server) conversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	if _, err := s.chat.Conversation(r.Context(), userID); err != nil {
		writeServiceError(w, r, "Server.conversationHandler", err)
		return
	}
	view, err := s.chat.History(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, r, "Server.conversationHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(view))
}

// writeServiceError maps chat service errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, where string, err error) {
	switch {
	case errors.Is(err, models.ErrEmptyUserID), errors.Is(err, models.ErrEmptyMessage), errors.Is(err, models.ErrMessageTooLong):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	case errors.Is(err, chat.ErrConversationNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
	default:
		slog.Error(where+": chat service failed", "error", err, "requestID", RequestID(r.Context()))
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}
