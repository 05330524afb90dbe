package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/hungvu25/Web-chat-HungVu/internal/db"
	"github.com/hungvu25/Web-chat-HungVu/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update model.ProfileUpdate) (*model.User, error)

	// Presence surface, consumed by the presence tracker.
	SetOnline(ctx context.Context, id primitive.ObjectID, online bool) error
	TouchLastSeen(ctx context.Context, id primitive.ObjectID) error
	OnlineUserIDs(ctx context.Context) ([]primitive.ObjectID, error)
	StaleOnlineUserIDs(ctx context.Context, lastSeenBefore time.Time) ([]primitive.ObjectID, error)
	ForceOffline(ctx context.Context, id primitive.ObjectID) (bool, error)
	MarkAllOffline(ctx context.Context) (int64, error)
}

type userRepository struct {
	mongoRepo *db.Repository[model.User]
	logger    *zap.Logger
}

func NewUserRepository(database *mongo.Database, logger *zap.Logger) UserRepository {
	return &userRepository{
		mongoRepo: db.NewRepository[model.User](database, db.UsersCollection),
		logger:    logger,
	}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.Create(ctx, *user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// The write error names the violated index.
			if strings.Contains(err.Error(), "username") {
				return ErrUsernameTaken
			}
			return ErrEmailTaken
		}
		r.logger.Error("failed to insert user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("insert user: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	user, err := r.mongoRepo.FindOne(ctx, filter)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		r.logger.Error("failed to fetch user", zap.Any("filter", filter), zap.Error(err))
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	return user, nil
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().In("_id", ids).Build()
	users, err := r.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		r.logger.Error("failed to fetch users", zap.Int("count", len(ids)), zap.Error(err))
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	return users, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, update model.ProfileUpdate) (*model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	set := bson.M{}
	if update.FirstName != "" {
		set["first_name"] = update.FirstName
	}
	if update.LastName != "" {
		set["last_name"] = update.LastName
	}
	if update.Avatar != "" {
		set["avatar"] = update.Avatar
	}
	if update.Address != "" {
		set["address"] = update.Address
	}
	if update.DateOfBirth != nil {
		set["date_of_birth"] = update.DateOfBirth
	}

	if len(set) > 0 {
		result, err := r.mongoRepo.Update(ctx, bson.M{"_id": id}, set)
		if err != nil {
			r.logger.Error("failed to update profile", zap.String("user_id", id.Hex()), zap.Error(err))
			return nil, fmt.Errorf("update profile: %w", err)
		}
		if result.MatchedCount == 0 {
			return nil, ErrUserNotFound
		}
	}

	return r.FindByID(ctx, id)
}

func (r *userRepository) SetOnline(ctx context.Context, id primitive.ObjectID, online bool) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := r.mongoRepo.Update(ctx, bson.M{"_id": id}, bson.M{
		"online":    online,
		"last_seen": time.Now(),
	})
	if err != nil {
		r.logger.Error("failed to update online flag",
			zap.String("user_id", id.Hex()),
			zap.Bool("online", online),
			zap.Error(err),
		)
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

func (r *userRepository) TouchLastSeen(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := r.mongoRepo.Update(ctx, bson.M{"_id": id}, bson.M{"last_seen": time.Now()})
	if err != nil {
		r.logger.Error("failed to touch last seen", zap.String("user_id", id.Hex()), zap.Error(err))
		return fmt.Errorf("touch last seen: %w", err)
	}
	return nil
}

func (r *userRepository) OnlineUserIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	return r.idsMatching(ctx, db.NewFilter().Eq("online", true).Build())
}

func (r *userRepository) StaleOnlineUserIDs(ctx context.Context, lastSeenBefore time.Time) ([]primitive.ObjectID, error) {
	filter := db.NewFilter().Eq("online", true).Lt("last_seen", lastSeenBefore).Build()
	return r.idsMatching(ctx, filter)
}

func (r *userRepository) idsMatching(ctx context.Context, filter bson.M) ([]primitive.ObjectID, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	users, err := r.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		r.logger.Error("failed to query users", zap.Any("filter", filter), zap.Error(err))
		return nil, fmt.Errorf("query users: %w", err)
	}

	ids := make([]primitive.ObjectID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// ForceOffline conditionally flips online=false. The condition on the
// current flag is what makes the reconciliation sweep emit exactly one
// became-offline signal per flip: a second sweep matches nothing.
func (r *userRepository) ForceOffline(ctx context.Context, id primitive.ObjectID) (bool, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.Update(ctx, bson.M{"_id": id, "online": true}, bson.M{
		"online":    false,
		"last_seen": time.Now(),
	})
	if err != nil {
		r.logger.Error("failed to force user offline", zap.String("user_id", id.Hex()), zap.Error(err))
		return false, fmt.Errorf("force offline: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

func (r *userRepository) MarkAllOffline(ctx context.Context) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.UpdateMany(ctx, db.NewFilter().Eq("online", true).Build(), bson.M{
		"online":    false,
		"last_seen": time.Now(),
	})
	if err != nil {
		r.logger.Error("failed to mark all users offline", zap.Error(err))
		return 0, fmt.Errorf("mark all offline: %w", err)
	}
	return result.ModifiedCount, nil
}
