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

type FriendshipRepository interface {
	Create(ctx context.Context, requester, target primitive.ObjectID) (*model.Friendship, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Friendship, error)
	SetAccepted(ctx context.Context, id primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListForUser(ctx context.Context, userID primitive.ObjectID, status string) ([]model.Friendship, error)
}

type friendshipRepository struct {
	mongoRepo *db.Repository[model.Friendship]
	logger    *zap.Logger
}

func NewFriendshipRepository(database *mongo.Database, logger *zap.Logger) FriendshipRepository {
	return &friendshipRepository{
		mongoRepo: db.NewRepository[model.Friendship](database, db.FriendshipsCollection),
		logger:    logger,
	}
}

// Create inserts a pending edge with the pair in canonical order. The
// unique index on (user_id_1, user_id_2) is the duplicate check: two
// concurrent opposite-direction requests both insert, and whichever
// loses the race gets a duplicate-key error mapped to
// ErrFriendshipExists. There is no read-before-write to trust.
func (r *friendshipRepository) Create(ctx context.Context, requester, target primitive.ObjectID) (*model.Friendship, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	first, second := model.CanonicalPair(requester, target)
	now := time.Now()
	edge := model.Friendship{
		UserID1:   first,
		UserID2:   second,
		Requester: requester,
		Status:    model.FriendshipPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := r.mongoRepo.Create(ctx, edge)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrFriendshipExists
		}
		r.logger.Error("failed to insert friendship",
			zap.String("requester", requester.Hex()),
			zap.String("target", target.Hex()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("insert friendship: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		edge.ID = oid
	}
	return &edge, nil
}

func (r *friendshipRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Friendship, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	edge, err := r.mongoRepo.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrFriendshipNotFound
		}
		r.logger.Error("failed to fetch friendship", zap.String("friendship_id", id.Hex()), zap.Error(err))
		return nil, fmt.Errorf("fetch friendship: %w", err)
	}
	return edge, nil
}

// SetAccepted flips a pending edge to accepted. The update is
// conditioned on the current status, the same pattern as ForceOffline:
// of two concurrent accepts only one matches the pending document, so
// only one caller observes success and fires the notification. A zero
// match means the edge is gone or no longer pending.
func (r *friendshipRepository) SetAccepted(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.Update(ctx, bson.M{"_id": id, "status": model.FriendshipPending}, bson.M{
		"status":     model.FriendshipAccepted,
		"updated_at": time.Now(),
	})
	if err != nil {
		r.logger.Error("failed to accept friendship", zap.String("friendship_id", id.Hex()), zap.Error(err))
		return fmt.Errorf("accept friendship: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrFriendshipNotPending
	}
	return nil
}

// Delete hard-deletes the edge; declined and removed friendships leave no
// trace, so re-friending later starts a fresh edge.
func (r *friendshipRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.Delete(ctx, bson.M{"_id": id})
	if err != nil {
		r.logger.Error("failed to delete friendship", zap.String("friendship_id", id.Hex()), zap.Error(err))
		return fmt.Errorf("delete friendship: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrFriendshipNotFound
	}
	return nil
}

func (r *friendshipRepository) ListForUser(ctx context.Context, userID primitive.ObjectID, status string) ([]model.Friendship, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("status", status).
		Or(bson.M{"user_id_1": userID}, bson.M{"user_id_2": userID}).
		Build()

	edges, err := r.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		r.logger.Error("failed to list friendships",
			zap.String("user_id", userID.Hex()),
			zap.String("status", status),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	return edges, nil
}
