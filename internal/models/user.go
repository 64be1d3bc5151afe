package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a verified account. Anonymous sessions have no user document at
// all: they exist only as a signed session token carrying a throwaway uid.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password" json:"-"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
	Deleted      bool               `bson:"deleted" json:"-"`
}

// UID is the identity string stored on reviews, questions, replies and vote
// sets. Verified users are identified by their document id.
func (u *User) UID() string {
	return u.ID.Hex()
}
