package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nimastyle/nima-backend/credits"
	"github.com/nimastyle/nima-backend/models"
	"github.com/nimastyle/nima-backend/utils"
)

// CreditBalance returns the user's current balance
func (s *Server) CreditBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	balance, err := s.Ledger.Balance(ctx, userID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load balance")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"balance": balance})
}

// CreditPackages lists the purchasable bundles
func (s *Server) CreditPackages(w http.ResponseWriter, r *http.Request) {
	packages := make([]credits.Package, 0, len(credits.Packages))
	for _, name := range []string{"starter", "plus", "max"} {
		if pkg, ok := credits.Packages[name]; ok {
			packages = append(packages, pkg)
		}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"packages": packages})
}

// CreditHistory pages the user's credit movements, newest first
func (s *Server) CreditHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	page, limit := pagination(r)
	txs, total, err := s.History.ListByUser(ctx, userID, page, limit)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"page":         page,
		"limit":        limit,
		"total":        total,
	})
}

type buyCreditsRequest struct {
	Package string `json:"package" validate:"required"`
}

// BuyCredits starts a credit top-up and returns the hosted payment page URL.
// Credits land on the balance only after the payment webhook confirms.
func (s *Server) BuyCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req buyCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "package is required")
		return
	}
	if _, ok := credits.Packages[req.Package]; !ok {
		utils.RespondError(w, http.StatusBadRequest, "unknown package")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	var user models.User
	err := utils.GetCollection(utils.ColUsers).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	invoiceURL, orderID, err := s.Purchases.Start(ctx, &user, req.Package)
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, "failed to create payment")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"payment_url": invoiceURL,
		"order_id":    orderID,
	})
}
