package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimastyle/nima-backend/credits"
	"github.com/nimastyle/nima-backend/generation"
	"github.com/nimastyle/nima-backend/models"
	"github.com/nimastyle/nima-backend/stylist"
	"github.com/nimastyle/nima-backend/utils"
)

const (
	looksPerChat   = 3
	chatRateLimit  = 10
	chatRateWindow = time.Minute
	remixThreshold = 0.5
)

type chatRequest struct {
	Message string `json:"message" validate:"required,min=2,max=1000"`
}

// Chat is the Nima entry point: one message in, up to three rendered looks
// out. Credits are deducted for exactly the looks that got composed, before
// any generation is scheduled.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var logMsg strings.Builder
	defer utils.FlushLog(&logMsg)

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	allowed, err := s.Limiter.Allow(ctx, userID, "chat", chatRateLimit, chatRateWindow)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "rate limit check failed")
		return
	}
	if !allowed {
		utils.RespondError(w, http.StatusTooManyRequests, "too many requests, take a breath and try again in a minute")
		return
	}

	var user models.User
	if err := utils.GetCollection(utils.ColUsers).FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	styleReq := generation.ParseStyleRequest(ctx, s.Text, req.Message)
	utils.AddToLogMessage(&logMsg, "Chat %s: occasion=%q", userID.Hex(), styleReq.Occasion)

	match := stylist.MatchRequest{
		Gender:           user.Gender,
		StylePreferences: user.StylePreferences,
		BudgetRange:      user.BudgetRange,
		Occasion:         styleReq.Occasion,
	}
	composed, err := s.Matcher.ComposeLooks(ctx, match, looksPerChat)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to compose looks")
		return
	}
	if len(composed) == 0 {
		utils.RespondOutcome(w, http.StatusNotFound, "no_matches", map[string]interface{}{
			"message": "I couldn't find pieces that work for that just yet. Try a different occasion?",
		})
		return
	}

	balance, err := s.Ledger.Deduct(ctx, userID, len(composed),
		"Look generation via chat: "+styleReq.Occasion)
	if errors.Is(err, credits.ErrInsufficientCredits) {
		utils.RespondOutcome(w, http.StatusPaymentRequired, "insufficient_credits", map[string]interface{}{
			"message": "You're out of credits. Top up to keep the looks coming!",
			"needed":  len(composed),
		})
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "credit deduction failed")
		return
	}

	prior, err := s.Looks.PriorItemIDs(ctx, userID)
	if err != nil {
		utils.AddToLogMessage(&logMsg, "Chat %s: prior item lookup failed: %v", userID.Hex(), err)
		prior = nil
	}
	scenario := models.ScenarioFresh
	if stylist.RemixFraction(composed, prior) > remixThreshold {
		scenario = models.ScenarioRemix
	}

	type lookResponse struct {
		Look  *models.Look  `json:"look"`
		Items []models.Item `json:"items"`
	}
	responses := make([]lookResponse, 0, len(composed))

	for _, items := range composed {
		look, err := s.Looks.Create(ctx, userID, items, styleReq.Occasion, styleReq.Comment, models.SourceChat, scenario)
		if err != nil {
			// Looks already persisted keep their paid credit; the rest of
			// the deduction is handed back.
			s.refundCredits(ctx, userID, len(composed)-len(responses), "Refund: look could not be saved")
			utils.RespondError(w, http.StatusInternalServerError, "failed to save look")
			return
		}
		s.scheduleLook(look)
		responses = append(responses, lookResponse{Look: look, Items: items})
	}
	utils.AddToLogMessage(&logMsg, "Chat %s: %d looks scheduled (%s), balance %d", userID.Hex(), len(responses), scenario, balance)

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"comment":  styleReq.Comment,
		"scenario": scenario,
		"looks":    responses,
		"balance":  balance,
	})
}

// refundCredits hands back credits deducted for work that never got
// scheduled. Best-effort: a failed grant is logged, not surfaced, because
// the caller is already on an error path.
func (s *Server) refundCredits(ctx context.Context, userID primitive.ObjectID, count int, reason string) {
	if count <= 0 {
		return
	}
	if _, err := s.Ledger.Grant(ctx, userID, count, models.CreditTxRefund, reason); err != nil {
		log.Printf("Failed to refund %d credits for %s: %v", count, userID.Hex(), err)
	}
}

func (s *Server) scheduleLook(look *models.Look) {
	job := &generation.LookJob{Look: look, Store: s.Looks}
	s.Scheduler.Schedule("look-"+look.ID.Hex(), 0, func(ctx context.Context) {
		s.Orchestrator.Run(ctx, job)
	})
}
