package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Generation job statuses, shared by Look and TryOn
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Look sources
const (
	SourceChat   = "chat"
	SourceManual = "manual"
)

// Look scenarios
const (
	ScenarioFresh = "fresh"
	ScenarioRemix = "remix"
)

// Look is a curated combination of 2-4 catalog items. ItemIDs are fixed at
// creation; only the generation status, error message and attached image
// change afterwards.
type Look struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID           primitive.ObjectID   `bson:"user_id" json:"user_id"`
	ItemIDs          []primitive.ObjectID `bson:"item_ids" json:"item_ids"`
	TotalPrice       float64              `bson:"total_price" json:"total_price"`
	Currency         string               `bson:"currency" json:"currency"`
	StyleTags        []string             `bson:"style_tags,omitempty" json:"style_tags,omitempty"`
	Occasion         string               `bson:"occasion,omitempty" json:"occasion,omitempty"`
	NimaComment      string               `bson:"nima_comment,omitempty" json:"nima_comment,omitempty"`
	GenerationStatus string               `bson:"generation_status" json:"generation_status"`
	ErrorMessage     string               `bson:"error_message,omitempty" json:"error_message,omitempty"`
	Source           string               `bson:"source" json:"source"`
	Scenario         string               `bson:"scenario,omitempty" json:"scenario,omitempty"`
	IsActive         bool                 `bson:"is_active" json:"is_active"`
	IsSaved          bool                 `bson:"is_saved" json:"is_saved"`
	CreatedAt        time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time            `bson:"updated_at" json:"updated_at"`
}

// LookImage is one synthesized render of a Look. A retry creates a new
// record; the latest one per look is the current render.
type LookImage struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LookID         primitive.ObjectID `bson:"look_id" json:"look_id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	ImageKey       string             `bson:"image_key" json:"image_key"`
	PersonImageKey string             `bson:"person_image_key" json:"person_image_key"`
	Provider       string             `bson:"provider" json:"provider"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}
