package approuters

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hungvu25/Web-chat-HungVu/internal/configuration"
)

// StartServer wires the routes, starts the HTTP server with the
// websocket endpoint mounted on it, runs the presence sweep in the
// background, and blocks until shutdown.
func StartServer(container *configuration.Container) {
	server := createAppServer(container)

	// periodic presence reconciliation
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go container.Presence.Run(sweepCtx)

	serverErrors := make(chan error, 1)
	go func() {
		container.Logger.Info("server starting", zap.Int("port", container.Config.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		container.Logger.Error("server failed", zap.Error(err))
	case sig := <-quit:
		container.Logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	container.Logger.Info("stopping hub and closing websocket connections")
	container.Hub.Stop()

	container.Logger.Info("shutting down http server")
	if err := server.Shutdown(ctx); err != nil {
		container.Logger.Error("server shutdown error", zap.Error(err))
	}

	container.Logger.Info("graceful shutdown complete")
}

func createAppServer(container *configuration.Container) *http.Server {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     container.Config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/ws", func(c *gin.Context) {
		container.Hub.ServeWS(c.Writer, c.Request)
	})

	AuthRouters(router, container)
	FriendRouters(router, container)
	ChatRouters(router, container)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", container.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
