package configuration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/hungvu25/Web-chat-HungVu/internal/db"
	"github.com/hungvu25/Web-chat-HungVu/internal/handler"
	"github.com/hungvu25/Web-chat-HungVu/internal/hub"
	"github.com/hungvu25/Web-chat-HungVu/internal/presence"
	"github.com/hungvu25/Web-chat-HungVu/internal/repo"
	"github.com/hungvu25/Web-chat-HungVu/internal/service"
)

type Container struct {
	AuthHandler   handler.AuthHandler
	FriendHandler handler.FriendHandler
	ChatHandler   handler.ChatHandler
	Users         repo.UserRepository
	Presence      service.PresenceService
	Hub           *hub.Hub
	Config        Config
	Logger        *zap.Logger

	// private - for cleanup
	database *mongo.Database
}

func BuildContainer() (*Container, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if config.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be configured")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	database, err := db.OpenConnection(config.Mongo.URI, config.Mongo.Database)
	if err != nil {
		return nil, fmt.Errorf("open mongo connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.EnsureIndexes(ctx, database); err != nil {
		return nil, err
	}

	userRepo := repo.NewUserRepository(database, logger)
	friendshipRepo := repo.NewFriendshipRepository(database, logger)
	conversationRepo := repo.NewConversationRepository(database, logger)
	messageRepo := repo.NewMessageRepository(database, logger)

	tracker := presence.NewTracker(userRepo, logger)
	wsHub := hub.NewHub(tracker, config.Server.AllowedOrigins, logger)

	// Nothing is connected yet; whatever the durable flags say is stale.
	if count, err := userRepo.MarkAllOffline(ctx); err == nil && count > 0 {
		logger.Info("startup cleanup: users marked offline", zap.Int64("count", count))
	}

	presenceService := service.NewPresenceService(
		tracker, wsHub,
		config.Presence.SweepInterval(), config.Presence.Staleness(),
		logger,
	)
	authService := service.NewAuthService(userRepo, config.Auth.JWTSecret, logger)
	friendService := service.NewFriendService(friendshipRepo, userRepo, wsHub, logger)
	chatService := service.NewChatService(conversationRepo, messageRepo, userRepo, wsHub, logger)

	return &Container{
		AuthHandler:   handler.NewAuthHandler(authService),
		FriendHandler: handler.NewFriendHandler(friendService, presenceService),
		ChatHandler:   handler.NewChatHandler(chatService),
		Users:         userRepo,
		Presence:      presenceService,
		Hub:           wsHub,
		Config:        *config,
		Logger:        logger,
		database:      database,
	}, nil
}

// Close gracefully shuts down all connections.
func (c *Container) Close() error {
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	if c.database != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.database.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
