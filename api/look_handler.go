package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimastyle/nima-backend/credits"
	"github.com/nimastyle/nima-backend/looks"
	"github.com/nimastyle/nima-backend/models"
	"github.com/nimastyle/nima-backend/stylist"
	"github.com/nimastyle/nima-backend/utils"
)

// ListLooks pages the user's gallery, newest first, with presigned render
// URLs and the resolved items.
func (s *Server) ListLooks(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	page, limit := pagination(r)
	items, total, err := s.Looks.ListByUser(ctx, userID, page, limit)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list looks")
		return
	}

	out := make([]map[string]interface{}, 0, len(items))
	for i := range items {
		out = append(out, s.lookView(ctx, &items[i]))
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"looks": out,
		"page":  page,
		"limit": limit,
		"total": total,
	})
}

// LookStatus polls generation status for a comma-separated list of look IDs.
// Completed looks come back with their render URL so the client can swap the
// placeholder in place.
func (s *Server) LookStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var ids []primitive.ObjectID
	for _, raw := range strings.Split(r.URL.Query().Get("ids"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid look id: "+raw)
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "ids query parameter is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	found, err := s.Looks.ByIDs(ctx, userID, ids)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load looks")
		return
	}

	statuses := make([]map[string]interface{}, 0, len(found))
	for i := range found {
		entry := map[string]interface{}{
			"id":     found[i].ID.Hex(),
			"status": found[i].GenerationStatus,
		}
		if found[i].ErrorMessage != "" {
			entry["error_message"] = found[i].ErrorMessage
		}
		if found[i].GenerationStatus == models.StatusCompleted {
			if img, err := s.Looks.LatestImage(ctx, found[i].ID); err == nil && img != nil {
				if url, err := s.Blobs.URL(ctx, img.ImageKey); err == nil {
					entry["image_url"] = url
				}
			}
		}
		statuses = append(statuses, entry)
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"looks": statuses})
}

type createLookRequest struct {
	ItemIDs  []string `json:"item_ids" validate:"required,min=2,max=4"`
	Occasion string   `json:"occasion" validate:"max=60"`
}

// CreateLook builds a look from an explicit item selection. Unlike the chat
// path, a hand-picked selection is validated hard: unknown, inactive or
// category-clashing items are rejected instead of silently dropped.
func (s *Server) CreateLook(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createLookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "between 2 and 4 item_ids are required")
		return
	}

	ids := make([]primitive.ObjectID, 0, len(req.ItemIDs))
	seen := make(map[primitive.ObjectID]bool)
	for _, raw := range req.ItemIDs {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid item id: "+raw)
			return
		}
		if seen[id] {
			utils.RespondError(w, http.StatusBadRequest, "duplicate item in selection")
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	items, err := s.Catalog.ItemsByIDs(ctx, ids)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load items")
		return
	}
	if len(items) != len(ids) {
		utils.RespondError(w, http.StatusBadRequest, "one or more items no longer exist")
		return
	}
	if err := validateSelection(items); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	balance, err := s.Ledger.Deduct(ctx, userID, 1, "Look generation from manual selection")
	if errors.Is(err, credits.ErrInsufficientCredits) {
		utils.RespondOutcome(w, http.StatusPaymentRequired, "insufficient_credits", map[string]interface{}{
			"message": "You're out of credits. Top up to keep the looks coming!",
		})
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "credit deduction failed")
		return
	}

	look, err := s.Looks.Create(ctx, userID, items, req.Occasion, "", models.SourceManual, models.ScenarioFresh)
	if err != nil {
		s.refundCredits(ctx, userID, 1, "Refund: look could not be saved")
		utils.RespondError(w, http.StatusInternalServerError, "failed to save look")
		return
	}
	s.scheduleLook(look)

	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"look":    look,
		"items":   items,
		"balance": balance,
	})
}

// validateSelection enforces what the matcher guarantees by construction:
// active items, no two of the same category, and a complete-outfit piece only
// combined with add-ons.
func validateSelection(items []models.Item) error {
	categories := make(map[string]bool)
	addOns := make(map[string]bool)
	for _, c := range stylist.CompleteOutfitAddOns() {
		addOns[c] = true
	}

	completeIdx := -1
	for i := range items {
		if !items[i].IsActive {
			return fmt.Errorf("item %q is no longer available", items[i].Name)
		}
		if categories[items[i].Category] {
			return fmt.Errorf("two items of category %q in one look", items[i].Category)
		}
		categories[items[i].Category] = true
		if stylist.IsCompleteOutfit(&items[i]) {
			completeIdx = i
		}
	}

	if completeIdx >= 0 {
		for i := range items {
			if i == completeIdx {
				continue
			}
			if !addOns[items[i].Category] {
				return fmt.Errorf("%q already is a complete outfit; only shoes, accessories, bags or jewelry can join it", items[completeIdx].Name)
			}
		}
	}
	return nil
}

// RetryLook resets a failed look and schedules a fresh render. The credits
// for the look were spent at creation; a retry doesn't charge again.
func (s *Server) RetryLook(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	lookID, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid look id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := s.Looks.Retry(ctx, lookID, userID); err != nil {
		respondStoreError(w, err)
		return
	}

	look, err := s.Looks.Get(ctx, lookID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to reload look")
		return
	}
	s.scheduleLook(look)
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "look": look})
}

type saveLookRequest struct {
	Saved bool `json:"saved"`
}

// SaveLook toggles the saved flag on a look
func (s *Server) SaveLook(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	lookID, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid look id")
		return
	}

	var req saveLookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := s.Looks.SetSaved(ctx, lookID, userID, req.Saved); err != nil {
		respondStoreError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "saved": req.Saved})
}

// DeleteLook removes a look, its render records and their stored blobs
func (s *Server) DeleteLook(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	lookID, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid look id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	images, err := s.Looks.Delete(ctx, lookID, userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	// Blob cleanup is best-effort; orphaned objects cost pennies, a failed
	// delete must not resurrect the look.
	go func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, img := range images {
			if img.ImageKey == "" {
				continue
			}
			if err := s.Blobs.Delete(cleanupCtx, img.ImageKey); err != nil {
				continue
			}
		}
	}()

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) lookView(ctx context.Context, look *models.Look) map[string]interface{} {
	view := map[string]interface{}{"look": look}
	if items, err := s.Catalog.ItemsByIDs(ctx, look.ItemIDs); err == nil {
		view["items"] = items
	}
	if look.GenerationStatus == models.StatusCompleted {
		if img, err := s.Looks.LatestImage(ctx, look.ID); err == nil && img != nil {
			if url, err := s.Blobs.URL(ctx, img.ImageKey); err == nil {
				view["image_url"] = url
			}
		}
	}
	return view
}

func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, looks.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, looks.ErrNotOwner):
		utils.RespondError(w, http.StatusForbidden, "not yours")
	case errors.Is(err, looks.ErrRetryNotFailed):
		utils.RespondError(w, http.StatusConflict, "only failed generations can be retried")
	case errors.Is(err, looks.ErrInvalidTransition):
		utils.RespondError(w, http.StatusConflict, "invalid status transition")
	default:
		utils.RespondError(w, http.StatusInternalServerError, "operation failed")
	}
}

func pagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 50 {
		limit = 20
	}
	return page, limit
}
