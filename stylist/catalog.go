package stylist

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nimastyle/nima-backend/models"
)

// CatalogIndex is the read-only item lookup the matcher runs against.
type CatalogIndex interface {
	// ActiveByCategory returns active items of one category visible to the
	// given gender (gender-specific plus the unisex pool when gender is
	// known), skipping excluded IDs.
	ActiveByCategory(ctx context.Context, category, gender string, exclude map[primitive.ObjectID]bool) ([]models.Item, error)
}

// MongoCatalog serves the catalog index from the items collection.
type MongoCatalog struct {
	col *mongo.Collection
}

func NewMongoCatalog(col *mongo.Collection) *MongoCatalog {
	return &MongoCatalog{col: col}
}

func (c *MongoCatalog) ActiveByCategory(ctx context.Context, category, gender string, exclude map[primitive.ObjectID]bool) ([]models.Item, error) {
	filter := bson.M{
		"category":  category,
		"is_active": true,
	}
	if gender != "" {
		filter["gender"] = bson.M{"$in": []string{gender, models.GenderUnisex}}
	}
	if len(exclude) > 0 {
		ids := make([]primitive.ObjectID, 0, len(exclude))
		for id := range exclude {
			ids = append(ids, id)
		}
		filter["_id"] = bson.M{"$nin": ids}
	}

	cursor, err := c.col.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("catalog query for %s failed: %w", category, err)
	}
	defer cursor.Close(ctx)

	var items []models.Item
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("catalog decode for %s failed: %w", category, err)
	}
	return items, nil
}

// ItemsByIDs loads items by ID, preserving the requested order. Items that
// no longer exist are silently absent from the result.
func (c *MongoCatalog) ItemsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Item, error) {
	cursor, err := c.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("item lookup failed: %w", err)
	}
	defer cursor.Close(ctx)

	var found []models.Item
	if err := cursor.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("item decode failed: %w", err)
	}

	byID := make(map[primitive.ObjectID]models.Item, len(found))
	for i := range found {
		byID[found[i].ID] = found[i]
	}
	ordered := make([]models.Item, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			ordered = append(ordered, item)
		}
	}
	return ordered, nil
}
