package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/hungvu25/Web-chat-HungVu/internal/auth"
	"github.com/hungvu25/Web-chat-HungVu/internal/configuration"
)

func AuthRouters(router *gin.Engine, container *configuration.Container) {
	api := router.Group("/api")
	{
		api.GET("/health", container.AuthHandler.Health)
		api.POST("/register", container.AuthHandler.Register)
		api.POST("/login", container.AuthHandler.Login)
	}

	protected := router.Group("/api")
	protected.Use(auth.Middleware(container.Config.Auth.JWTSecret, container.Users))
	{
		protected.POST("/logout", container.AuthHandler.Logout)
		protected.GET("/profile", container.AuthHandler.GetProfile)
		protected.PUT("/profile", container.AuthHandler.UpdateProfile)
	}
}
