package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names used across the repositories.
const (
	UsersCollection         = "users"
	FriendshipsCollection   = "friendships"
	ConversationsCollection = "conversations"
	MessagesCollection      = "messages"
)

// EnsureIndexes creates the unique indexes the application relies on for
// atomicity. The friendship pair index and the conversation participant
// index are load-bearing: concurrent duplicate creations must collapse
// into a duplicate-key error instead of producing two edges or two
// conversations for the same pair.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("email_unique"),
			},
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("username_unique"),
			},
		},
		FriendshipsCollection: {
			{
				Keys:    bson.D{{Key: "user_id_1", Value: 1}, {Key: "user_id_2", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("pair_unique"),
			},
		},
		ConversationsCollection: {
			{
				Keys:    bson.D{{Key: "participant_key", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("participants_unique"),
			},
			{
				Keys: bson.D{{Key: "participant_ids", Value: 1}, {Key: "updated_at", Value: -1}},
			},
		},
		MessagesCollection: {
			{
				Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}},
			},
		},
	}

	for collection, models := range indexes {
		if _, err := database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes for %s: %w", collection, err)
		}
	}
	return nil
}
