package api

import (
	"context"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimastyle/nima-backend/utils"
)

type contextKey string

const userIDKey contextKey = "userID"

// AuthMiddleware validates the bearer token and stores the user ID on the
// request context.
func AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			utils.RespondError(w, http.StatusUnauthorized, "missing or malformed Authorization header")
			return
		}

		userID, err := utils.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			utils.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext returns the authenticated user's ObjectID
func GetUserIDFromContext(ctx context.Context) (primitive.ObjectID, bool) {
	raw, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}
