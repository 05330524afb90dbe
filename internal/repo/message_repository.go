package repo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/hungvu25/Web-chat-HungVu/internal/db"
	"github.com/hungvu25/Web-chat-HungVu/internal/model"
)

type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) error
	Page(ctx context.Context, conversationID primitive.ObjectID, page, limit int64) ([]model.Message, bool, error)
	MarkRead(ctx context.Context, conversationID, readerID primitive.ObjectID) (int64, error)
}

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

func NewMessageRepository(database *mongo.Database, logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: db.NewRepository[model.Message](database, db.MessagesCollection),
		logger:    logger,
	}
}

func (r *messageRepository) Insert(ctx context.Context, msg *model.Message) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.Create(ctx, *msg)
	if err != nil {
		r.logger.Error("failed to insert message",
			zap.String("conversation_id", msg.ConversationID.Hex()),
			zap.String("sender_id", msg.SenderID.Hex()),
			zap.Error(err),
		)
		return fmt.Errorf("insert message: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}

	r.logger.Info("message inserted",
		zap.String("message_id", msg.ID.Hex()),
		zap.String("conversation_id", msg.ConversationID.Hex()),
	)
	return nil
}

// Page returns one window of a conversation's log, newest first, plus an
// exact hasMore flag. The query asks for limit+1 rows: the extra row, if
// present, proves a following page exists even when the total count is
// an exact multiple of the page size.
func (r *messageRepository) Page(ctx context.Context, conversationID primitive.ObjectID, page, limit int64) ([]model.Message, bool, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	if page < 1 {
		page = 1
	}
	skip := (page - 1) * limit

	filter := db.NewFilter().Eq("conversation_id", conversationID).Build()
	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

	messages, err := r.mongoRepo.FindPage(ctx, filter, skip, limit+1, sort)
	if err != nil {
		r.logger.Error("failed to page messages",
			zap.String("conversation_id", conversationID.Hex()),
			zap.Int64("page", page),
			zap.Error(err),
		)
		return nil, false, fmt.Errorf("page messages: %w", err)
	}

	hasMore := int64(len(messages)) > limit
	if hasMore {
		messages = messages[:limit]
	}

	r.logger.Debug("messages paged",
		zap.String("conversation_id", conversationID.Hex()),
		zap.Int64("page", page),
		zap.Int("count", len(messages)),
		zap.Bool("has_more", hasMore),
	)
	return messages, hasMore, nil
}

// MarkRead bulk-flips read=true for every unread message in the
// conversation not authored by the reader. The filter makes it
// idempotent and keeps the reader's own messages untouched.
func (r *messageRepository) MarkRead(ctx context.Context, conversationID, readerID primitive.ObjectID) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("conversation_id", conversationID).
		Ne("sender_id", readerID).
		Eq("read", false).
		Build()

	result, err := r.mongoRepo.UpdateMany(ctx, filter, bson.M{
		"read":    true,
		"read_at": time.Now(),
	})
	if err != nil {
		r.logger.Error("failed to mark messages read",
			zap.String("conversation_id", conversationID.Hex()),
			zap.String("reader_id", readerID.Hex()),
			zap.Error(err),
		)
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return result.ModifiedCount, nil
}
