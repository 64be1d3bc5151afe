package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Question is a community question about a property. Immutable once posted.
type Question struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	PropertyID   string             `bson:"property_id" json:"propertyId"`
	PropertyName string             `bson:"property_name" json:"propertyName"`
	UserID       string             `bson:"user_id" json:"userId"`
	Text         string             `bson:"text" json:"text"`
	// ReplyCount is written as zero on creation and never incremented by the
	// reply path; reply threads are counted from their own collection.
	ReplyCount int       `bson:"reply_count" json:"replyCount"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
}

// Reply is a single answer in a question's thread, displayed oldest-first.
type Reply struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	QuestionID primitive.ObjectID `bson:"question_id" json:"questionId"`
	UserID     string             `bson:"user_id" json:"userId"`
	Text       string             `bson:"text" json:"text"`
	Timestamp  time.Time          `bson:"timestamp" json:"timestamp"`
}
