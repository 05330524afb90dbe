package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/hungvu25/Web-chat-HungVu/internal/auth"
	"github.com/hungvu25/Web-chat-HungVu/internal/configuration"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	chat := router.Group("/api")
	chat.Use(auth.Middleware(container.Config.Auth.JWTSecret, container.Users))
	{
		chat.GET("/conversations", container.ChatHandler.ListConversations)
		chat.GET("/conversations/:id", container.ChatHandler.GetOrCreateConversation)
		chat.GET("/conversations/:id/messages", container.ChatHandler.GetMessages)
		chat.POST("/conversations/:id/messages", container.ChatHandler.SendMessage)
		chat.PUT("/conversations/:id/messages/read", container.ChatHandler.MarkRead)
	}
}
