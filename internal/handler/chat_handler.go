package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hungvu25/Web-chat-HungVu/internal/auth"
	"github.com/hungvu25/Web-chat-HungVu/internal/service"
)

type ChatHandler interface {
	GetOrCreateConversation(c *gin.Context)
	ListConversations(c *gin.Context)
	GetMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	MarkRead(c *gin.Context)
}

type chatHandler struct {
	service service.ChatService
}

func NewChatHandler(service service.ChatService) ChatHandler {
	return &chatHandler{service: service}
}

// GetOrCreateConversation resolves the caller's conversation with a
// friend, creating it lazily on first contact. The path parameter is the
// friend's user id, not a conversation id.
func (h *chatHandler) GetOrCreateConversation(c *gin.Context) {
	friendID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}

	actor := auth.CurrentUser(c)
	conversation, err := h.service.GetOrCreateConversation(c.Request.Context(), actor, friendID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conversation)
}

func (h *chatHandler) ListConversations(c *gin.Context) {
	actor := auth.CurrentUser(c)
	conversations, err := h.service.ListConversations(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conversations)
}

func (h *chatHandler) GetMessages(c *gin.Context) {
	conversationID, ok := conversationID(c)
	if !ok {
		return
	}

	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid page number"})
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid limit"})
		return
	}

	actor := auth.CurrentUser(c)
	result, err := h.service.Messages(c.Request.Context(), actor, conversationID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *chatHandler) SendMessage(c *gin.Context) {
	conversationID, ok := conversationID(c)
	if !ok {
		return
	}

	var input struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Message content cannot be empty"})
		return
	}

	actor := auth.CurrentUser(c)
	message, err := h.service.Send(c.Request.Context(), actor, conversationID, input.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, message)
}

func (h *chatHandler) MarkRead(c *gin.Context) {
	conversationID, ok := conversationID(c)
	if !ok {
		return
	}

	actor := auth.CurrentUser(c)
	if err := h.service.MarkRead(c.Request.Context(), actor, conversationID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Messages marked as read"})
}

func conversationID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Conversation not found"})
		return primitive.NilObjectID, false
	}
	return id, true
}
