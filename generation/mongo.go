package generation

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nimastyle/nima-backend/models"
)

// MongoUsers resolves reference photos from the users collection.
type MongoUsers struct {
	col *mongo.Collection
}

func NewMongoUsers(col *mongo.Collection) *MongoUsers {
	return &MongoUsers{col: col}
}

func (u *MongoUsers) PrimaryPhoto(ctx context.Context, userID primitive.ObjectID) (string, string, error) {
	var user models.User
	if err := u.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", "", errors.New("user not found")
		}
		return "", "", err
	}
	key := user.PrimaryPhotoKey
	if key == "" && len(user.PhotoKeys) > 0 {
		key = user.PhotoKeys[0]
	}
	return key, user.FirstName, nil
}
