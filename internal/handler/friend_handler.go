package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hungvu25/Web-chat-HungVu/internal/auth"
	"github.com/hungvu25/Web-chat-HungVu/internal/service"
)

type FriendHandler interface {
	SendRequest(c *gin.Context)
	Accept(c *gin.Context)
	Decline(c *gin.Context)
	Remove(c *gin.Context)
	ListRequests(c *gin.Context)
	ListFriends(c *gin.Context)
	CleanupOfflineUsers(c *gin.Context)
}

type friendHandler struct {
	friends  service.FriendService
	presence service.PresenceService
}

func NewFriendHandler(friends service.FriendService, presence service.PresenceService) FriendHandler {
	return &friendHandler{friends: friends, presence: presence}
}

func (h *friendHandler) SendRequest(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username is required"})
		return
	}

	actor := auth.CurrentUser(c)
	if err := h.friends.SendRequest(c.Request.Context(), actor, input.Username); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Friend request sent successfully"})
}

func (h *friendHandler) Accept(c *gin.Context) {
	id, ok := friendshipID(c)
	if !ok {
		return
	}

	actor := auth.CurrentUser(c)
	if err := h.friends.Accept(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Friend request accepted"})
}

func (h *friendHandler) Decline(c *gin.Context) {
	id, ok := friendshipID(c)
	if !ok {
		return
	}

	actor := auth.CurrentUser(c)
	if err := h.friends.Decline(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Friend request declined"})
}

func (h *friendHandler) Remove(c *gin.Context) {
	id, ok := friendshipID(c)
	if !ok {
		return
	}

	actor := auth.CurrentUser(c)
	if err := h.friends.Remove(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Friend removed"})
}

func (h *friendHandler) ListRequests(c *gin.Context) {
	actor := auth.CurrentUser(c)
	requests, err := h.friends.ListRequests(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *friendHandler) ListFriends(c *gin.Context) {
	actor := auth.CurrentUser(c)
	friends, err := h.friends.ListFriends(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, friends)
}

// CleanupOfflineUsers triggers the reconciliation sweep on demand, the
// manual counterpart of the periodic background run.
func (h *friendHandler) CleanupOfflineUsers(c *gin.Context) {
	count := h.presence.Sweep(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"message":         "Offline users cleaned up",
		"usersSetOffline": count,
	})
}

func friendshipID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Friend request not found"})
		return primitive.NilObjectID, false
	}
	return id, true
}
