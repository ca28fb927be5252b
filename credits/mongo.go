package credits

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nimastyle/nima-backend/models"
)

// MongoBalances stores the credit count on the user document. The guarded
// findOneAndUpdate gives the all-or-nothing semantics: the filter only
// matches while the balance covers the deduction, and Mongo serializes
// writers per document.
type MongoBalances struct {
	users *mongo.Collection
}

func NewMongoBalances(users *mongo.Collection) *MongoBalances {
	return &MongoBalances{users: users}
}

func (b *MongoBalances) DeductIfAvailable(ctx context.Context, userID primitive.ObjectID, count int) (int, bool, error) {
	filter := bson.M{"_id": userID, "credits": bson.M{"$gte": count}}
	update := bson.M{"$inc": bson.M{"credits": -count}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.User
	err := b.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return updated.Credits, true, nil
}

func (b *MongoBalances) Add(ctx context.Context, userID primitive.ObjectID, count int) (int, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.User
	err := b.users.FindOneAndUpdate(ctx, bson.M{"_id": userID},
		bson.M{"$inc": bson.M{"credits": count}}, opts).Decode(&updated)
	if err != nil {
		return 0, err
	}
	return updated.Credits, nil
}

func (b *MongoBalances) Balance(ctx context.Context, userID primitive.ObjectID) (int, error) {
	var user models.User
	if err := b.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		return 0, err
	}
	return user.Credits, nil
}

// MongoHistory appends credit transactions to their own collection.
type MongoHistory struct {
	col *mongo.Collection
}

func NewMongoHistory(col *mongo.Collection) *MongoHistory {
	return &MongoHistory{col: col}
}

func (h *MongoHistory) Record(ctx context.Context, tx *models.CreditTransaction) error {
	if _, err := h.col.InsertOne(ctx, tx); err != nil {
		return fmt.Errorf("failed to insert credit transaction: %w", err)
	}
	return nil
}

// ListByUser pages a user's credit history, newest first.
func (h *MongoHistory) ListByUser(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]models.CreditTransaction, int64, error) {
	filter := bson.M{"user_id": userID}

	total, err := h.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := h.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var out []models.CreditTransaction
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
