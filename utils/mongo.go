package utils

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nimastyle/nima-backend/config"
	"github.com/nimastyle/nima-backend/models"
)

var Client *mongo.Client

// Collection names
const (
	ColUsers         = "users"
	ColItems         = "items"
	ColLooks         = "looks"
	ColLookImages    = "look_images"
	ColTryOns        = "tryons"
	ColCreditHistory = "credit_transactions"
	ColPurchases     = "purchases"
	ColNotifications = "notifications"
	ColRateCounters  = "rate_counters"
)

// ConnectMongo initializes the MongoDB connection
func ConnectMongo(uri string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}

	Client = client
	log.Println("Connected to MongoDB!")
	return ensureIndexes(ctx)
}

// GetCollection returns a handle to a collection in the app database
func GetCollection(collectionName string) *mongo.Collection {
	if Client == nil {
		log.Fatal("MongoDB client is not initialized")
	}
	return Client.Database(config.DatabaseName).Collection(collectionName)
}

func ensureIndexes(ctx context.Context) error {
	for name, defs := range indexModels() {
		if _, err := GetCollection(name).Indexes().CreateMany(ctx, defs); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func indexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		ColUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ColItems: {
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "gender", Value: 1}, {Key: "is_active", Value: 1}}},
		},
		ColLooks: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		ColLookImages: {
			{Keys: bson.D{{Key: "look_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		ColTryOns: {
			// At most one live try-on per (user, item): two concurrent taps
			// race on insert and the loser gets a duplicate key error.
			// Failed and soft-deleted records fall out of the index so a
			// fresh attempt can always start.
			{
				Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "item_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{
					"is_deleted": false,
					"status":     bson.M{"$in": []string{models.StatusPending, models.StatusProcessing, models.StatusCompleted}},
				}),
			},
		},
		ColPurchases: {
			{Keys: bson.D{{Key: "merchant_order_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ColRateCounters: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "operation", Value: 1}, {Key: "window_start", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "window_start", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(24 * 3600)},
		},
	}
}
