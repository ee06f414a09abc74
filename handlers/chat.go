package handlers

import (
	"errors"
	"log"
	"net/http"

	"postpilot/auth"
	"postpilot/models"
	"postpilot/services"
	"postpilot/store"
	"postpilot/telemetry"
	"postpilot/workflows"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ChatHandler handles the chat HTTP surface.
type ChatHandler struct {
	store store.Store
	orch  workflows.Orchestrator
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(st store.Store, orch workflows.Orchestrator) *ChatHandler {
	return &ChatHandler{store: st, orch: orch}
}

// GenerateText handles POST /generate-text: one text turn.
func (h *ChatHandler) GenerateText(c *gin.Context) {
	identity, ok := auth.CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.GenerateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid platform"})
		return
	}

	convID, ok := h.resolveConversation(c, identity, req.ConversationID)
	if !ok {
		return
	}

	output, err := h.orch.TextTurn(c.Request.Context(), workflows.TextTurnInput{
		UserID:         identity.UserID,
		Platform:       platform,
		SystemMessage:  req.SystemMessage,
		UserMessage:    req.UserMessage,
		WordCount:      req.WordCount,
		ConversationID: convID,
	})
	if err != nil {
		log.Printf("Text turn failed: %v", err)
		telemetry.TurnsTotal.WithLabelValues("text", "error").Inc()
		countUpstreamFailure("text", err)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate text.", "details": err.Error()})
		return
	}

	telemetry.TurnsTotal.WithLabelValues("text", "ok").Inc()
	c.JSON(http.StatusOK, models.GenerateTextResponse{
		GeneratedText:  output.GeneratedText,
		ConversationID: output.ConversationID,
		IsComplete:     output.IsComplete,
	})
}

// GenerateImage handles POST /generate-image: one image turn.
func (h *ChatHandler) GenerateImage(c *gin.Context) {
	identity, ok := auth.CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.GenerateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid platform"})
		return
	}

	convID, ok := h.resolveConversation(c, identity, req.ConversationID)
	if !ok {
		return
	}

	output, err := h.orch.ImageTurn(c.Request.Context(), workflows.ImageTurnInput{
		UserID:         identity.UserID,
		Platform:       platform,
		Prompt:         req.Prompt,
		ConversationID: convID,
	})
	if err != nil {
		log.Printf("Image turn failed: %v", err)
		telemetry.TurnsTotal.WithLabelValues("image", "error").Inc()
		countUpstreamFailure("image", err)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate image.", "details": err.Error()})
		return
	}

	telemetry.TurnsTotal.WithLabelValues("image", "ok").Inc()
	c.JSON(http.StatusOK, models.GenerateImageResponse{
		GeneratedImage: output.ImageDataURI,
		ConversationID: output.ConversationID,
	})
}

// AddMessage handles POST /add-message: append one message to an existing
// conversation.
func (h *ChatHandler) AddMessage(c *gin.Context) {
	identity, ok := auth.CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.AddMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	sender, err := models.ParseSender(req.Message.Sender)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sender"})
		return
	}
	if req.Message.Text == "" && req.Message.ImageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message must include text or an image"})
		return
	}

	convID, ok := h.resolveConversation(c, identity, req.ConversationID)
	if !ok {
		return
	}

	err = h.orch.AddMessage(c.Request.Context(), workflows.AddMessageInput{
		ConversationID: convID,
		Sender:         sender,
		Text:           req.Message.Text,
		ImageURL:       req.Message.ImageURL,
	})
	if err != nil {
		log.Printf("Add message failed: %v", err)
		telemetry.TurnsTotal.WithLabelValues("add_message", "error").Inc()
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add message", "details": err.Error()})
		return
	}

	telemetry.TurnsTotal.WithLabelValues("add_message", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message added successfully"})
}

// ListConversations handles GET /conversations for the authenticated user.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	identity, ok := auth.CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conversations, err := h.store.ListConversations(c.Request.Context(), identity.UserID)
	if err != nil {
		log.Printf("Failed to list conversations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, conversations)
}

// GetConversation handles GET /conversations/:id. Conversations belonging
// to other users read as not found.
func (h *ChatHandler) GetConversation(c *gin.Context) {
	identity, ok := auth.CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID"})
		return
	}

	conv, err := h.store.GetConversation(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && conv.UserID != identity.UserID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	if err != nil {
		log.Printf("Failed to load conversation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversation"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

// resolveConversation parses an optional conversation id and verifies it
// exists and belongs to the caller. Returns uuid.Nil for an empty id. On
// failure it writes the response and returns ok=false.
func (h *ChatHandler) resolveConversation(c *gin.Context, identity auth.Identity, raw string) (uuid.UUID, bool) {
	if raw == "" {
		return uuid.Nil, true
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID"})
		return uuid.Nil, false
	}

	conv, err := h.store.GetConversation(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && conv.UserID != identity.UserID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return uuid.Nil, false
	}
	if err != nil {
		log.Printf("Failed to check conversation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check conversation", "details": err.Error()})
		return uuid.Nil, false
	}
	return id, true
}

func countUpstreamFailure(kind string, err error) {
	var upstreamErr *services.UpstreamError
	if errors.Is(err, services.ErrUpstreamUnavailable) || errors.As(err, &upstreamErr) {
		telemetry.UpstreamFailures.WithLabelValues(kind).Inc()
	}
}
