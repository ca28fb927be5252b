// Package api exposes the HTTP surface: auth, onboarding, the Nima chat,
// looks, try-ons, credits and the payment webhook.
package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/nimastyle/nima-backend/credits"
	"github.com/nimastyle/nima-backend/generation"
	"github.com/nimastyle/nima-backend/looks"
	"github.com/nimastyle/nima-backend/ratelimit"
	"github.com/nimastyle/nima-backend/stylist"
	"github.com/nimastyle/nima-backend/utils"
)

var validate = validator.New()

// Server bundles the wired application services behind the HTTP handlers.
type Server struct {
	Matcher      *stylist.Matcher
	Catalog      *stylist.MongoCatalog
	Looks        *looks.Store
	TryOns       *looks.TryOnStore
	Ledger       *credits.Ledger
	History      *credits.MongoHistory
	Purchases    *credits.Purchases
	Orchestrator *generation.Orchestrator
	Scheduler    generation.Scheduler
	Limiter      ratelimit.Limiter
	Text         generation.TextGenerator
	Blobs        generation.BlobStore
	ProfileLocks *utils.KeyedLock
}

// RegisterRoutes attaches every endpoint to the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /auth/signup", s.Signup)
	mux.HandleFunc("POST /auth/login", s.Login)
	mux.HandleFunc("POST /auth/verify-otp", s.VerifyOTP)
	mux.HandleFunc("POST /auth/forgot-password", s.ForgotPassword)
	mux.HandleFunc("POST /auth/reset-password", s.ResetPassword)

	mux.HandleFunc("GET /me", AuthMiddleware(s.GetProfile))
	mux.HandleFunc("POST /me/profile", AuthMiddleware(s.UpdateProfile))

	mux.HandleFunc("POST /chat", AuthMiddleware(s.Chat))

	mux.HandleFunc("GET /looks", AuthMiddleware(s.ListLooks))
	mux.HandleFunc("GET /looks/status", AuthMiddleware(s.LookStatus))
	mux.HandleFunc("POST /looks", AuthMiddleware(s.CreateLook))
	mux.HandleFunc("POST /looks/{id}/retry", AuthMiddleware(s.RetryLook))
	mux.HandleFunc("POST /looks/{id}/save", AuthMiddleware(s.SaveLook))
	mux.HandleFunc("DELETE /looks/{id}", AuthMiddleware(s.DeleteLook))

	mux.HandleFunc("POST /tryons", AuthMiddleware(s.StartTryOn))
	mux.HandleFunc("GET /tryons", AuthMiddleware(s.ListTryOns))
	mux.HandleFunc("GET /tryons/{id}", AuthMiddleware(s.GetTryOn))
	mux.HandleFunc("POST /tryons/{id}/retry", AuthMiddleware(s.RetryTryOn))
	mux.HandleFunc("DELETE /tryons/{id}", AuthMiddleware(s.DeleteTryOn))

	mux.HandleFunc("GET /credits/balance", AuthMiddleware(s.CreditBalance))
	mux.HandleFunc("GET /credits/packages", AuthMiddleware(s.CreditPackages))
	mux.HandleFunc("GET /credits/history", AuthMiddleware(s.CreditHistory))
	mux.HandleFunc("POST /credits/buy", AuthMiddleware(s.BuyCredits))

	mux.HandleFunc("POST /webhook/midtrans", s.PaymentWebhook)
}
