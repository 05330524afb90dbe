package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is one entry in a conversation's append-only log. It is
// immutable after creation except for the bulk read-marking flip.
type Message struct {
	ID             primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `json:"conversation" bson:"conversation_id"`
	SenderID       primitive.ObjectID `json:"senderId" bson:"sender_id"`
	Content        string             `json:"content" bson:"content"`
	CreatedAt      time.Time          `json:"timestamp" bson:"created_at"`
	Read           bool               `json:"read" bson:"read"`
	ReadAt         *time.Time         `json:"readAt" bson:"read_at"`
}

// MessageView is a message with the sender profile resolved, as delivered
// to REST fetches and to the conversation topic. Clients use Sender for
// echo suppression and de-duplicate by ID.
type MessageView struct {
	ID             primitive.ObjectID `json:"_id"`
	ConversationID primitive.ObjectID `json:"conversation"`
	Sender         PublicUser         `json:"sender"`
	Content        string             `json:"content"`
	CreatedAt      time.Time          `json:"timestamp"`
	Read           bool               `json:"read"`
	ReadAt         *time.Time         `json:"readAt"`
}

// View resolves the message against its sender's profile.
func (m *Message) View(sender PublicUser) MessageView {
	return MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         sender,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		Read:           m.Read,
		ReadAt:         m.ReadAt,
	}
}
