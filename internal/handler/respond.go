package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hungvu25/Web-chat-HungVu/internal/repo"
	"github.com/hungvu25/Web-chat-HungVu/internal/service"
)

// respondError maps domain errors onto the HTTP statuses clients expect.
// Anything unmapped is a 500 with a generic body; internal detail never
// reaches the client.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repo.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
	case errors.Is(err, repo.ErrFriendshipNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Friend request not found"})
	case errors.Is(err, repo.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Conversation not found"})
	case errors.Is(err, repo.ErrFriendshipExists):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Friend request already exists"})
	case errors.Is(err, repo.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already in use"})
	case errors.Is(err, repo.ErrUsernameTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username already in use"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, service.ErrSelfRequest):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot send friend request to yourself"})
	case errors.Is(err, service.ErrAlreadyAccepted):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Friend request already accepted"})
	case errors.Is(err, service.ErrNotRecipient):
		c.JSON(http.StatusForbidden, gin.H{"message": "You are not authorized to act on this request"})
	case errors.Is(err, service.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"message": "You are not a participant of this conversation"})
	case errors.Is(err, service.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Message content cannot be empty"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
	}
}
