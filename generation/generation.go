// Package generation orchestrates the asynchronous AI render pipeline for
// looks and try-ons: reference images in, a composite render out, tracked by
// the pending/processing/completed/failed status on the job record.
package generation

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimastyle/nima-backend/models"
)

// TextGenerator produces advisory natural-language output. Callers must
// treat the result defensively; it may be malformed or missing.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, prompt string, temperature float32) (string, error)
}

// Part is one element of a multimodal generation request.
type Part struct {
	Text      string
	ImageData []byte
}

// GenResult is what the image service returned. A nil ImageData is an
// expected, handled condition, not an error.
type GenResult struct {
	Text      string
	ImageData []byte
}

// ImageGenerator synthesizes an image from mixed text and image parts.
type ImageGenerator interface {
	Generate(ctx context.Context, parts []Part) (*GenResult, error)
	Provider() string
}

// BlobStore abstracts the binary object store.
type BlobStore interface {
	Store(ctx context.Context, data []byte, contentType string) (string, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// UserDirectory resolves the reference photo for a user.
type UserDirectory interface {
	// PrimaryPhoto returns the user's primary photo key and first name.
	// An empty key means the user has no usable reference photo.
	PrimaryPhoto(ctx context.Context, userID primitive.ObjectID) (key, firstName string, err error)
}

// ItemLoader fetches catalog items for prompt and reference-image building.
type ItemLoader interface {
	ItemsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Item, error)
}
