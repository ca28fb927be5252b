// Package ratelimit provides a per-user, per-operation fixed-window
// admission counter. Counters live in their own collection keyed by
// (user, operation, window), so hot paths never contend on the user record.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Limiter answers whether one more call of an operation is admitted for a
// user within the current window.
type Limiter interface {
	Allow(ctx context.Context, userID primitive.ObjectID, operation string, limit int, window time.Duration) (bool, error)
}

type counterDoc struct {
	UserID      primitive.ObjectID `bson:"user_id"`
	Operation   string             `bson:"operation"`
	WindowStart time.Time          `bson:"window_start"`
	Count       int                `bson:"count"`
}

// MongoLimiter backs the counter with an atomic upsert-and-increment.
type MongoLimiter struct {
	col *mongo.Collection
}

func NewMongoLimiter(col *mongo.Collection) *MongoLimiter {
	return &MongoLimiter{col: col}
}

func (l *MongoLimiter) Allow(ctx context.Context, userID primitive.ObjectID, operation string, limit int, window time.Duration) (bool, error) {
	windowStart := time.Now().Truncate(window)

	filter := bson.M{"user_id": userID, "operation": operation, "window_start": windowStart}
	update := bson.M{"$inc": bson.M{"count": 1}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc counterDoc
	if err := l.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return false, fmt.Errorf("rate limit counter update failed: %w", err)
	}
	return doc.Count <= limit, nil
}

// MemoryLimiter is the in-process implementation used by tests.
type MemoryLimiter struct {
	mu      sync.Mutex
	counts  map[string]int
	windows map[string]time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{counts: make(map[string]int), windows: make(map[string]time.Time)}
}

func (l *MemoryLimiter) Allow(ctx context.Context, userID primitive.ObjectID, operation string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := userID.Hex() + ":" + operation
	windowStart := time.Now().Truncate(window)
	if l.windows[key] != windowStart {
		l.windows[key] = windowStart
		l.counts[key] = 0
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}
