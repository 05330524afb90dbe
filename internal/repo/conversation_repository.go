package repo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/hungvu25/Web-chat-HungVu/internal/db"
	"github.com/hungvu25/Web-chat-HungVu/internal/model"
)

type ConversationRepository interface {
	GetOrCreate(ctx context.Context, userA, userB primitive.ObjectID) (*model.Conversation, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Conversation, error)
	ListForUser(ctx context.Context, userID primitive.ObjectID) ([]model.Conversation, error)
	SetLastMessage(ctx context.Context, id primitive.ObjectID, preview model.LastMessage) error
}

type conversationRepository struct {
	mongoRepo *db.Repository[model.Conversation]
	logger    *zap.Logger
}

func NewConversationRepository(database *mongo.Database, logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		mongoRepo: db.NewRepository[model.Conversation](database, db.ConversationsCollection),
		logger:    logger,
	}
}

// GetOrCreate looks the conversation up by its canonical participant key
// and lazily creates it on first contact. Two participants opening the
// conversation simultaneously can both observe "not found" and both
// insert; the unique index on participant_key rejects the loser, which
// then fetches the winner's document.
func (r *conversationRepository) GetOrCreate(ctx context.Context, userA, userB primitive.ObjectID) (*model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	key := model.PairKey(userA, userB)
	filter := db.NewFilter().Eq("participant_key", key).Build()

	conversation, err := r.mongoRepo.FindOne(ctx, filter)
	if err == nil {
		return conversation, nil
	}
	if err != mongo.ErrNoDocuments {
		r.logger.Error("failed to fetch conversation", zap.String("participant_key", key), zap.Error(err))
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}

	first, second := model.CanonicalPair(userA, userB)
	now := time.Now()
	created := model.Conversation{
		ParticipantIDs: []primitive.ObjectID{first, second},
		ParticipantKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	result, err := r.mongoRepo.Create(ctx, created)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost the creation race; the other participant's insert won.
			return r.mongoRepo.FindOne(ctx, filter)
		}
		r.logger.Error("failed to insert conversation", zap.String("participant_key", key), zap.Error(err))
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		created.ID = oid
	}

	r.logger.Info("conversation created",
		zap.String("conversation_id", created.ID.Hex()),
		zap.String("participant_key", key),
	)
	return &created, nil
}

func (r *conversationRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	conversation, err := r.mongoRepo.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrConversationNotFound
		}
		r.logger.Error("failed to fetch conversation", zap.String("conversation_id", id.Hex()), zap.Error(err))
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}
	return conversation, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("participant_ids", userID).Build()
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	conversations, err := r.mongoRepo.FindAll(ctx, filter, opts)
	if err != nil {
		r.logger.Error("failed to list conversations", zap.String("user_id", userID.Hex()), zap.Error(err))
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

func (r *conversationRepository) SetLastMessage(ctx context.Context, id primitive.ObjectID, preview model.LastMessage) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := r.mongoRepo.Update(ctx, bson.M{"_id": id}, bson.M{
		"last_message": preview,
		"updated_at":   time.Now(),
	})
	if err != nil {
		r.logger.Error("failed to update last message", zap.String("conversation_id", id.Hex()), zap.Error(err))
		return fmt.Errorf("update last message: %w", err)
	}
	return nil
}
