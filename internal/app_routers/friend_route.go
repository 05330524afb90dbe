package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/hungvu25/Web-chat-HungVu/internal/auth"
	"github.com/hungvu25/Web-chat-HungVu/internal/configuration"
)

func FriendRouters(router *gin.Engine, container *configuration.Container) {
	friends := router.Group("/api")
	friends.Use(auth.Middleware(container.Config.Auth.JWTSecret, container.Users))
	{
		friends.POST("/friends/request", container.FriendHandler.SendRequest)
		friends.PUT("/friends/accept/:id", container.FriendHandler.Accept)
		friends.PUT("/friends/decline/:id", container.FriendHandler.Decline)
		friends.DELETE("/friends/:id", container.FriendHandler.Remove)
		friends.GET("/friends/requests", container.FriendHandler.ListRequests)
		friends.GET("/friends", container.FriendHandler.ListFriends)
		friends.POST("/cleanup-offline-users", container.FriendHandler.CleanupOfflineUsers)
	}
}
