package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a user document in MongoDB. Password holds the bcrypt
// hash and is never serialized to clients.
type User struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Username    string             `json:"username" bson:"username"`
	Email       string             `json:"email" bson:"email"`
	Password    string             `json:"-" bson:"password"`
	FirstName   string             `json:"firstName" bson:"first_name"`
	LastName    string             `json:"lastName" bson:"last_name"`
	Phone       string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Avatar      string             `json:"avatar,omitempty" bson:"avatar,omitempty"`
	Address     string             `json:"address,omitempty" bson:"address,omitempty"`
	DateOfBirth *time.Time         `json:"dateOfBirth,omitempty" bson:"date_of_birth,omitempty"`
	JoinDate    time.Time          `json:"joinDate" bson:"join_date"`
	Online      bool               `json:"online" bson:"online"`
	LastSeen    time.Time          `json:"lastSeen" bson:"last_seen"`
}

// PublicUser is the profile projection shared with other users: friend
// lists, request notifications and conversation participants.
type PublicUser struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	Username  string             `json:"username" bson:"username"`
	FirstName string             `json:"firstName" bson:"first_name"`
	Avatar    string             `json:"avatar,omitempty" bson:"avatar,omitempty"`
	Online    bool               `json:"online" bson:"online"`
	LastSeen  time.Time          `json:"lastSeen" bson:"last_seen"`
}

// Public returns the shareable projection of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		Avatar:    u.Avatar,
		Online:    u.Online,
		LastSeen:  u.LastSeen,
	}
}

// ProfileUpdate carries the editable profile fields. Empty fields are
// left untouched by the update.
type ProfileUpdate struct {
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Avatar      string     `json:"avatar"`
	Address     string     `json:"address"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
}
