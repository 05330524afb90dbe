package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Friendship status values. Declined and removed edges are hard-deleted,
// so only the two live states are ever stored.
const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
)

// Friendship is an edge between two users. UserID1/UserID2 are stored in
// canonical order (smaller ObjectID hex first) so the unique index on the
// pair holds regardless of which side sent the request.
type Friendship struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID1   primitive.ObjectID `json:"user_id_1" bson:"user_id_1"`
	UserID2   primitive.ObjectID `json:"user_id_2" bson:"user_id_2"`
	Requester primitive.ObjectID `json:"requester" bson:"requester"`
	Status    string             `json:"status" bson:"status"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updated_at"`
}

// CanonicalPair orders two user IDs for storage so that an unordered pair
// always maps to the same (user_id_1, user_id_2) tuple.
func CanonicalPair(a, b primitive.ObjectID) (primitive.ObjectID, primitive.ObjectID) {
	if a.Hex() > b.Hex() {
		return b, a
	}
	return a, b
}

// Involves reports whether the given user is one of the edge's endpoints.
func (f *Friendship) Involves(userID primitive.ObjectID) bool {
	return f.UserID1 == userID || f.UserID2 == userID
}

// Counterpart returns the other endpoint of the edge relative to userID.
func (f *Friendship) Counterpart(userID primitive.ObjectID) primitive.ObjectID {
	if f.UserID1 == userID {
		return f.UserID2
	}
	return f.UserID1
}

// FriendRequestView is a pending edge annotated for the caller: Type is
// "sent" when the caller is the requester, "received" otherwise, and
// Sender is always the counterparty's profile.
type FriendRequestView struct {
	ID        primitive.ObjectID `json:"id"`
	Sender    PublicUser         `json:"sender"`
	Requester primitive.ObjectID `json:"requester"`
	Type      string             `json:"type"`
	Status    string             `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
}

// FriendView is an accepted edge presented as the friend's profile plus
// the friendship id, which clients need for the unfriend call.
type FriendView struct {
	PublicUser
	FriendshipID primitive.ObjectID `json:"friendshipId"`
}
