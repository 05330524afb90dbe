package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is a two-party message container. ParticipantIDs is stored
// sorted, and ParticipantKey is the sorted pair joined into one scalar so
// a unique index can make the pair canonical (a unique index directly on
// the array would index per element and forbid a user having more than
// one conversation). Concurrent first-contact creation collapses onto one
// document through that index.
type Conversation struct {
	ID             primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	ParticipantIDs []primitive.ObjectID `json:"participantIds" bson:"participant_ids"`
	ParticipantKey string               `json:"-" bson:"participant_key"`
	LastMessage    *LastMessage         `json:"lastMessage" bson:"last_message"`
	CreatedAt      time.Time            `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time            `json:"updatedAt" bson:"updated_at"`
}

// LastMessage is the embedded preview of the most recent message, kept on
// the conversation for list rendering.
type LastMessage struct {
	MessageID primitive.ObjectID `json:"messageId" bson:"message_id"`
	SenderID  primitive.ObjectID `json:"senderId" bson:"sender_id"`
	Content   string             `json:"content" bson:"content"`
	SentAt    time.Time          `json:"sentAt" bson:"sent_at"`
}

// PairKey builds the canonical scalar key for an unordered participant
// pair, used for the uniqueness constraint and for lookups.
func PairKey(a, b primitive.ObjectID) string {
	a, b = CanonicalPair(a, b)
	return a.Hex() + ":" + b.Hex()
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID primitive.ObjectID) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ConversationView is a conversation with participant profiles resolved
// for the client.
type ConversationView struct {
	ID           primitive.ObjectID `json:"_id"`
	Participants []PublicUser       `json:"participants"`
	LastMessage  *LastMessage       `json:"lastMessage"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}
