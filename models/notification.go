package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification channels
const (
	ChannelInbox = "inbox"
	ChannelEmail = "email"
)

// Notification is one entry in a user's in-app inbox.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Title     string             `bson:"title" json:"title"`
	Body      string             `bson:"body" json:"body"`
	Data      map[string]string  `bson:"data,omitempty" json:"data,omitempty"`
	Channel   string             `bson:"channel" json:"channel"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
