package generation

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimastyle/nima-backend/looks"
	"github.com/nimastyle/nima-backend/models"
)

// Job is one unit of render work. Look and try-on records adapt onto it so
// the orchestrator drives both through the same state machine.
type Job interface {
	ID() string
	UserID() primitive.ObjectID
	ItemIDs() []primitive.ObjectID
	// Context is free-form prompt context, e.g. the look's occasion.
	Context() string
	SetStatus(ctx context.Context, status, errorMessage string) error
	SaveImage(ctx context.Context, imageKey, personImageKey, provider string) error
}

// LookJob renders a full look.
type LookJob struct {
	Look  *models.Look
	Store *looks.Store
}

func (j *LookJob) ID() string                    { return j.Look.ID.Hex() }
func (j *LookJob) UserID() primitive.ObjectID    { return j.Look.UserID }
func (j *LookJob) ItemIDs() []primitive.ObjectID { return j.Look.ItemIDs }

func (j *LookJob) Context() string {
	if j.Look.Occasion != "" {
		return fmt.Sprintf("a full outfit for %s", j.Look.Occasion)
	}
	return "a full outfit"
}

func (j *LookJob) SetStatus(ctx context.Context, status, errorMessage string) error {
	return j.Store.UpdateGenerationStatus(ctx, j.Look.ID, status, errorMessage)
}

func (j *LookJob) SaveImage(ctx context.Context, imageKey, personImageKey, provider string) error {
	return j.Store.AttachImage(ctx, j.Look, imageKey, personImageKey, provider)
}

// TryOnJob renders one item onto the user.
type TryOnJob struct {
	Record *models.TryOn
	Store  *looks.TryOnStore
}

func (j *TryOnJob) ID() string                    { return j.Record.ID.Hex() }
func (j *TryOnJob) UserID() primitive.ObjectID    { return j.Record.UserID }
func (j *TryOnJob) ItemIDs() []primitive.ObjectID { return []primitive.ObjectID{j.Record.ItemID} }

func (j *TryOnJob) Context() string {
	if j.Record.SelectedColor != "" {
		return fmt.Sprintf("a single item try-on, in %s", j.Record.SelectedColor)
	}
	return "a single item try-on"
}

func (j *TryOnJob) SetStatus(ctx context.Context, status, errorMessage string) error {
	return j.Store.UpdateStatus(ctx, j.Record.ID, status, errorMessage)
}

func (j *TryOnJob) SaveImage(ctx context.Context, imageKey, personImageKey, provider string) error {
	return j.Store.AttachImage(ctx, j.Record.ID, imageKey, personImageKey, provider)
}
