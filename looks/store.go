// Package looks persists generation records: Look aggregates and single-item
// try-ons, both driven by the pending/processing/completed/failed state
// machine.
package looks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nimastyle/nima-backend/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrNotOwner          = errors.New("record does not belong to user")
	ErrInvalidTransition = errors.New("invalid generation status transition")
	ErrRetryNotFailed    = errors.New("only failed generations can be retried")
)

// Notifier delivers best-effort user notifications. Implementations must
// never block or fail the caller.
type Notifier interface {
	Notify(userID primitive.ObjectID, title, body string, data map[string]string, channel string)
}

// Store manages Look records and their rendered images.
type Store struct {
	looks    *mongo.Collection
	images   *mongo.Collection
	notifier Notifier
}

func NewStore(looksCol, imagesCol *mongo.Collection, notifier Notifier) *Store {
	return &Store{looks: looksCol, images: imagesCol, notifier: notifier}
}

// Create persists a new pending look. Derived fields (total price, currency,
// style tags) are computed here so callers only hand over the chosen items.
func (s *Store) Create(ctx context.Context, userID primitive.ObjectID, items []models.Item, occasion, comment, source, scenario string) (*models.Look, error) {
	total, currency := DeriveTotals(items)
	itemIDs := make([]primitive.ObjectID, 0, len(items))
	for i := range items {
		itemIDs = append(itemIDs, items[i].ID)
	}

	now := time.Now()
	look := &models.Look{
		ID:               primitive.NewObjectID(),
		UserID:           userID,
		ItemIDs:          itemIDs,
		TotalPrice:       total,
		Currency:         currency,
		StyleTags:        DeriveStyleTags(items),
		Occasion:         occasion,
		NimaComment:      comment,
		GenerationStatus: models.StatusPending,
		Source:           source,
		Scenario:         scenario,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if _, err := s.looks.InsertOne(ctx, look); err != nil {
		return nil, fmt.Errorf("failed to insert look: %w", err)
	}
	return look, nil
}

// UpdateGenerationStatus moves a look through the state machine. The
// transition guard lives in the update filter, so concurrent writers race on
// the document atomically; re-applying the current status is a no-op rather
// than an error.
func (s *Store) UpdateGenerationStatus(ctx context.Context, lookID primitive.ObjectID, status, errorMessage string) error {
	set := bson.M{"generation_status": status, "updated_at": time.Now()}
	update := bson.M{"$set": set}
	if errorMessage != "" {
		set["error_message"] = errorMessage
	} else {
		update["$unset"] = bson.M{"error_message": ""}
	}

	filter := bson.M{"_id": lookID, "generation_status": bson.M{"$in": allowedPrev[status]}}
	res, err := s.looks.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update look status: %w", err)
	}
	if res.MatchedCount == 0 {
		var current models.Look
		if err := s.looks.FindOne(ctx, bson.M{"_id": lookID}).Decode(&current); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrNotFound
			}
			return err
		}
		if current.GenerationStatus == status {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.GenerationStatus, status)
	}

	if status == models.StatusCompleted {
		s.notifyReady(ctx, lookID)
	}
	return nil
}

func (s *Store) notifyReady(ctx context.Context, lookID primitive.ObjectID) {
	if s.notifier == nil {
		return
	}
	var look models.Look
	if err := s.looks.FindOne(ctx, bson.M{"_id": lookID}).Decode(&look); err != nil {
		return
	}
	s.notifier.Notify(look.UserID, "Your look is ready",
		"Nima finished rendering a look for you. Come take a peek!",
		map[string]string{"look_id": lookID.Hex()}, models.ChannelInbox)
}

// AttachImage records a completed render. Older renders of the same look are
// superseded by creation order, never mutated.
func (s *Store) AttachImage(ctx context.Context, look *models.Look, imageKey, personImageKey, provider string) error {
	img := models.LookImage{
		ID:             primitive.NewObjectID(),
		LookID:         look.ID,
		UserID:         look.UserID,
		ImageKey:       imageKey,
		PersonImageKey: personImageKey,
		Provider:       provider,
		CreatedAt:      time.Now(),
	}
	if _, err := s.images.InsertOne(ctx, img); err != nil {
		return fmt.Errorf("failed to insert look image: %w", err)
	}
	return nil
}

// LatestImage returns the current render of a look, nil when none exists.
func (s *Store) LatestImage(ctx context.Context, lookID primitive.ObjectID) (*models.LookImage, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var img models.LookImage
	err := s.images.FindOne(ctx, bson.M{"look_id": lookID}, opts).Decode(&img)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// Retry resets a failed look to pending and clears its error, owner only.
func (s *Store) Retry(ctx context.Context, lookID, userID primitive.ObjectID) error {
	filter := bson.M{"_id": lookID, "user_id": userID, "generation_status": models.StatusFailed}
	update := bson.M{
		"$set":   bson.M{"generation_status": models.StatusPending, "updated_at": time.Now()},
		"$unset": bson.M{"error_message": ""},
	}
	res, err := s.looks.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to retry look: %w", err)
	}
	if res.MatchedCount == 0 {
		var current models.Look
		if err := s.looks.FindOne(ctx, bson.M{"_id": lookID}).Decode(&current); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrNotFound
			}
			return err
		}
		if current.UserID != userID {
			return ErrNotOwner
		}
		return ErrRetryNotFailed
	}
	return nil
}

// Get loads one look by ID.
func (s *Store) Get(ctx context.Context, lookID primitive.ObjectID) (*models.Look, error) {
	var look models.Look
	if err := s.looks.FindOne(ctx, bson.M{"_id": lookID}).Decode(&look); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &look, nil
}

// ByIDs loads the given looks restricted to one owner, for status polling.
func (s *Store) ByIDs(ctx context.Context, userID primitive.ObjectID, ids []primitive.ObjectID) ([]models.Look, error) {
	cursor, err := s.looks.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.Look
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser pages through a user's active looks, newest first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]models.Look, int64, error) {
	filter := bson.M{"user_id": userID, "is_active": true}

	total, err := s.looks.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.looks.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var out []models.Look
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// PriorItemIDs collects every item the user's existing looks contain, used
// for remix detection.
func (s *Store) PriorItemIDs(ctx context.Context, userID primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	cursor, err := s.looks.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetProjection(bson.M{"item_ids": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	prior := make(map[primitive.ObjectID]bool)
	for cursor.Next(ctx) {
		var doc struct {
			ItemIDs []primitive.ObjectID `bson:"item_ids"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		for _, id := range doc.ItemIDs {
			prior[id] = true
		}
	}
	return prior, cursor.Err()
}

// SetSaved toggles the saved flag, owner only.
func (s *Store) SetSaved(ctx context.Context, lookID, userID primitive.ObjectID, saved bool) error {
	res, err := s.looks.UpdateOne(ctx,
		bson.M{"_id": lookID, "user_id": userID},
		bson.M{"$set": bson.M{"is_saved": saved, "updated_at": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a look and its render records, owner only. The caller is
// responsible for deleting stored blobs.
func (s *Store) Delete(ctx context.Context, lookID, userID primitive.ObjectID) ([]models.LookImage, error) {
	var look models.Look
	if err := s.looks.FindOne(ctx, bson.M{"_id": lookID}).Decode(&look); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if look.UserID != userID {
		return nil, ErrNotOwner
	}

	cursor, err := s.images.Find(ctx, bson.M{"look_id": lookID})
	if err != nil {
		return nil, err
	}
	var imgs []models.LookImage
	if err := cursor.All(ctx, &imgs); err != nil {
		return nil, err
	}

	if _, err := s.images.DeleteMany(ctx, bson.M{"look_id": lookID}); err != nil {
		return nil, err
	}
	if _, err := s.looks.DeleteOne(ctx, bson.M{"_id": lookID}); err != nil {
		return nil, err
	}
	return imgs, nil
}
