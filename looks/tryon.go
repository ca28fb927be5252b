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

// TryOnStore manages single-item try-on records. Same state machine as
// looks, but the render is stored inline on the record.
type TryOnStore struct {
	col      *mongo.Collection
	notifier Notifier
}

func NewTryOnStore(col *mongo.Collection, notifier Notifier) *TryOnStore {
	return &TryOnStore{col: col, notifier: notifier}
}

// GetOrCreate returns the existing live record for (user, item) when one is
// pending, processing or completed, so repeated taps don't spawn duplicate
// jobs. The bool reports whether a new record was created. The unique partial
// index on (user_id, item_id) backs this up: when two requests race past the
// lookup, one insert loses with a duplicate key error and picks up the
// winner's record instead.
func (s *TryOnStore) GetOrCreate(ctx context.Context, userID, itemID primitive.ObjectID, color string) (*models.TryOn, bool, error) {
	filter := bson.M{
		"user_id":    userID,
		"item_id":    itemID,
		"is_deleted": false,
		"status":     bson.M{"$in": []string{models.StatusPending, models.StatusProcessing, models.StatusCompleted}},
	}

	for attempt := 0; attempt < 2; attempt++ {
		var existing models.TryOn
		err := s.col.FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})).Decode(&existing)
		if err == nil {
			return &existing, false, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, err
		}

		now := time.Now()
		record := &models.TryOn{
			ID:            primitive.NewObjectID(),
			UserID:        userID,
			ItemID:        itemID,
			Status:        models.StatusPending,
			SelectedColor: color,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		_, err = s.col.InsertOne(ctx, record)
		if err == nil {
			return record, true, nil
		}
		if mongo.IsDuplicateKeyError(err) {
			// Lost the race; the next pass finds the winner's record.
			continue
		}
		return nil, false, fmt.Errorf("failed to insert try-on: %w", err)
	}
	return nil, false, fmt.Errorf("try-on for item %s keeps changing, try again", itemID.Hex())
}

// UpdateStatus moves a try-on through the state machine with the same
// filter-guarded semantics as Store.UpdateGenerationStatus.
func (s *TryOnStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, status, errorMessage string) error {
	set := bson.M{"status": status, "updated_at": time.Now()}
	update := bson.M{"$set": set}
	if errorMessage != "" {
		set["error_message"] = errorMessage
	} else {
		update["$unset"] = bson.M{"error_message": ""}
	}

	filter := bson.M{"_id": id, "status": bson.M{"$in": allowedPrev[status]}}
	res, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update try-on status: %w", err)
	}
	if res.MatchedCount == 0 {
		var current models.TryOn
		if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&current); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrNotFound
			}
			return err
		}
		if current.Status == status {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	if status == models.StatusCompleted && s.notifier != nil {
		var record models.TryOn
		if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&record); err == nil {
			s.notifier.Notify(record.UserID, "Try-on ready",
				"Your virtual try-on is ready to view.",
				map[string]string{"tryon_id": id.Hex()}, models.ChannelInbox)
		}
	}
	return nil
}

// AttachImage stores the render keys on the record. A retry overwrites them;
// the superseded blob is cleaned up by the caller.
func (s *TryOnStore) AttachImage(ctx context.Context, id primitive.ObjectID, imageKey, personImageKey, provider string) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"image_key":        imageKey,
		"person_image_key": personImageKey,
		"provider":         provider,
		"updated_at":       time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("failed to attach try-on image: %w", err)
	}
	return nil
}

// Retry resets a failed try-on to pending, owner only.
func (s *TryOnStore) Retry(ctx context.Context, id, userID primitive.ObjectID) error {
	filter := bson.M{"_id": id, "user_id": userID, "is_deleted": false, "status": models.StatusFailed}
	update := bson.M{
		"$set":   bson.M{"status": models.StatusPending, "updated_at": time.Now()},
		"$unset": bson.M{"error_message": ""},
	}
	res, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to retry try-on: %w", err)
	}
	if res.MatchedCount == 0 {
		var current models.TryOn
		if err := s.col.FindOne(ctx, bson.M{"_id": id, "is_deleted": false}).Decode(&current); err != nil {
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

// Get loads one live try-on record.
func (s *TryOnStore) Get(ctx context.Context, id primitive.ObjectID) (*models.TryOn, error) {
	var record models.TryOn
	if err := s.col.FindOne(ctx, bson.M{"_id": id, "is_deleted": false}).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Delete soft-deletes a try-on, owner only, and returns the stored image key
// so the caller can drop the blob.
func (s *TryOnStore) Delete(ctx context.Context, id, userID primitive.ObjectID) (string, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if record.UserID != userID {
		return "", ErrNotOwner
	}
	_, err = s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"is_deleted": true,
		"updated_at": time.Now(),
	}})
	if err != nil {
		return "", err
	}
	return record.ImageKey, nil
}

// ListByUser pages through a user's live try-ons, newest first.
func (s *TryOnStore) ListByUser(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]models.TryOn, int64, error) {
	filter := bson.M{"user_id": userID, "is_deleted": false}

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var out []models.TryOn
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
