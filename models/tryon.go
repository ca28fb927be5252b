package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TryOn represents a single-item virtual try-on job. It shares the Look
// generation state machine.
type TryOn struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	ItemID         primitive.ObjectID `bson:"item_id" json:"item_id"`
	Status         string             `bson:"status" json:"status"`
	ErrorMessage   string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	SelectedColor  string             `bson:"selected_color,omitempty" json:"selected_color,omitempty"`
	ImageKey       string             `bson:"image_key,omitempty" json:"image_key,omitempty"`
	PersonImageKey string             `bson:"person_image_key,omitempty" json:"person_image_key,omitempty"`
	Provider       string             `bson:"provider,omitempty" json:"provider,omitempty"`
	IsDeleted      bool               `bson:"is_deleted" json:"is_deleted"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}
