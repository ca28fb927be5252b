package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimastyle/nima-backend/credits"
	"github.com/nimastyle/nima-backend/generation"
	"github.com/nimastyle/nima-backend/models"
	"github.com/nimastyle/nima-backend/utils"
)

const (
	tryonRateLimit  = 10
	tryonRateWindow = time.Minute
)

type tryOnRequest struct {
	ItemID string `json:"item_id" validate:"required"`
	Color  string `json:"color" validate:"max=40"`
}

// StartTryOn kicks off a single-item render. Repeated taps on the same item
// return the live record instead of spawning duplicates, and only a genuinely
// new record costs a credit.
func (s *Server) StartTryOn(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req tryOnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "item_id is required")
		return
	}
	itemID, err := primitive.ObjectIDFromHex(req.ItemID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	allowed, err := s.Limiter.Allow(ctx, userID, "tryon", tryonRateLimit, tryonRateWindow)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "rate limit check failed")
		return
	}
	if !allowed {
		utils.RespondError(w, http.StatusTooManyRequests, "too many try-ons, try again in a minute")
		return
	}

	items, err := s.Catalog.ItemsByIDs(ctx, []primitive.ObjectID{itemID})
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load item")
		return
	}
	if len(items) == 0 || !items[0].IsActive {
		utils.RespondError(w, http.StatusBadRequest, "item not available")
		return
	}

	record, created, err := s.TryOns.GetOrCreate(ctx, userID, itemID, req.Color)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to start try-on")
		return
	}

	if !created {
		utils.RespondJSON(w, http.StatusOK, s.tryOnView(ctx, record, false))
		return
	}

	if _, err := s.Ledger.Deduct(ctx, userID, 1, "Virtual try-on: "+items[0].Name); err != nil {
		// Roll the fresh record back so the next attempt starts clean.
		if _, delErr := s.TryOns.Delete(ctx, record.ID, userID); delErr != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to start try-on")
			return
		}
		if errors.Is(err, credits.ErrInsufficientCredits) {
			utils.RespondOutcome(w, http.StatusPaymentRequired, "insufficient_credits", map[string]interface{}{
				"message": "You're out of credits. Top up to keep trying things on!",
			})
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "credit deduction failed")
		return
	}

	s.scheduleTryOn(record)
	utils.RespondJSON(w, http.StatusCreated, s.tryOnView(ctx, record, true))
}

// GetTryOn polls one try-on record
func (s *Server) GetTryOn(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid try-on id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	record, err := s.TryOns.Get(ctx, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if record.UserID != userID {
		utils.RespondError(w, http.StatusForbidden, "not yours")
		return
	}
	utils.RespondJSON(w, http.StatusOK, s.tryOnView(ctx, record, false))
}

// ListTryOns pages the user's try-on history, newest first
func (s *Server) ListTryOns(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	page, limit := pagination(r)
	records, total, err := s.TryOns.ListByUser(ctx, userID, page, limit)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list try-ons")
		return
	}

	out := make([]map[string]interface{}, 0, len(records))
	for i := range records {
		out = append(out, s.tryOnView(ctx, &records[i], false))
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"tryons": out,
		"page":   page,
		"limit":  limit,
		"total":  total,
	})
}

// RetryTryOn reruns a failed try-on without charging again
func (s *Server) RetryTryOn(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid try-on id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := s.TryOns.Retry(ctx, id, userID); err != nil {
		respondStoreError(w, err)
		return
	}

	record, err := s.TryOns.Get(ctx, id)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to reload try-on")
		return
	}

	// A superseded render is dropped; AttachImage overwrites the key.
	if record.ImageKey != "" {
		key := record.ImageKey
		go func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = s.Blobs.Delete(cleanupCtx, key)
		}()
	}

	s.scheduleTryOn(record)
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "tryon": record})
}

// DeleteTryOn soft-deletes a try-on and drops its stored render
func (s *Server) DeleteTryOn(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid try-on id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	imageKey, err := s.TryOns.Delete(ctx, id, userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if imageKey != "" {
		go func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = s.Blobs.Delete(cleanupCtx, imageKey)
		}()
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) tryOnView(ctx context.Context, record *models.TryOn, created bool) map[string]interface{} {
	view := map[string]interface{}{
		"tryon":   record,
		"created": created,
	}
	if record.Status == models.StatusCompleted && record.ImageKey != "" {
		if url, err := s.Blobs.URL(ctx, record.ImageKey); err == nil {
			view["image_url"] = url
		}
	}
	return view
}

func (s *Server) scheduleTryOn(record *models.TryOn) {
	job := &generation.TryOnJob{Record: record, Store: s.TryOns}
	s.Scheduler.Schedule("tryon-"+record.ID.Hex(), 0, func(ctx context.Context) {
		s.Orchestrator.Run(ctx, job)
	})
}
