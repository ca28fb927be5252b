package api

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/nimastyle/nima-backend/config"
	"github.com/nimastyle/nima-backend/models"
	"github.com/nimastyle/nima-backend/utils"
)

type signupRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Signup registers a new account and emails a verification code. The account
// stays pending until the code is confirmed.
func (s *Server) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "name, valid email and a password of at least 8 characters are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to process password")
		return
	}

	otp := generateOTP()
	now := time.Now()
	user := models.User{
		ID:        primitive.NewObjectID(),
		Name:      req.Name,
		Email:     req.Email,
		Password:  string(hashed),
		Status:    "pending",
		OTP:       otp,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := utils.GetCollection(utils.ColUsers).InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			utils.RespondError(w, http.StatusConflict, "an account with this email already exists")
			return
		}
		log.Printf("Signup insert failed for %s: %v", req.Email, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	go func() {
		if err := utils.SendOTPEmail(user.Name, user.Email, otp); err != nil {
			log.Printf("Failed to send signup OTP to %s: %v", user.Email, err)
		}
	}()

	utils.RespondJSON(w, http.StatusCreated, map[string]string{
		"message": "account created, check your email for the verification code",
	})
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6"`
}

// VerifyOTP activates a pending account. Welcome credits are granted exactly
// once here; the guarded status flip makes replays harmless.
func (s *Server) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "email and 6-digit code are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	users := utils.GetCollection(utils.ColUsers)
	var user models.User
	err := users.FindOneAndUpdate(ctx,
		bson.M{"email": req.Email, "otp": req.OTP, "status": "pending"},
		bson.M{"$set": bson.M{"status": "active", "updated_at": time.Now()}, "$unset": bson.M{"otp": ""}},
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusBadRequest, "invalid code or account already verified")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "verification failed")
		return
	}

	if config.WelcomeCredits > 0 {
		if _, err := s.Ledger.Grant(ctx, user.ID, config.WelcomeCredits, models.CreditTxReward, "Welcome credits"); err != nil {
			log.Printf("Failed to grant welcome credits to %s: %v", user.ID.Hex(), err)
		}
	}

	token, err := utils.GenerateToken(user.ID.Hex())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates an active account and returns a JWT
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var user models.User
	err := utils.GetCollection(utils.ColUsers).FindOne(ctx, bson.M{"email": req.Email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		utils.RespondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if user.Status == "pending" {
		utils.RespondError(w, http.StatusForbidden, "account not verified yet")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		utils.RespondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := utils.GenerateToken(user.ID.Hex())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword emails a reset code. The response is identical whether the
// account exists or not.
func (s *Server) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	otp := generateOTP()
	var user models.User
	err := utils.GetCollection(utils.ColUsers).FindOneAndUpdate(ctx,
		bson.M{"email": req.Email},
		bson.M{"$set": bson.M{"otp": otp, "updated_at": time.Now()}},
	).Decode(&user)
	if err == nil {
		go func() {
			if err := utils.SendOTPEmail(user.Name, user.Email, otp); err != nil {
				log.Printf("Failed to send reset OTP to %s: %v", user.Email, err)
			}
		}()
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		log.Printf("Forgot password lookup failed for %s: %v", req.Email, err)
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"message": "if the account exists, a reset code has been sent",
	})
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// ResetPassword sets a new password when the reset code matches
func (s *Server) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "email, 6-digit code and a password of at least 8 characters are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to process password")
		return
	}

	res, err := utils.GetCollection(utils.ColUsers).UpdateOne(ctx,
		bson.M{"email": req.Email, "otp": req.OTP},
		bson.M{"$set": bson.M{"password": string(hashed), "updated_at": time.Now()}, "$unset": bson.M{"otp": ""}},
	)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "password reset failed")
		return
	}
	if res.MatchedCount == 0 {
		utils.RespondError(w, http.StatusBadRequest, "invalid code")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func generateOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		return fmt.Sprintf("%06d", time.Now().UnixNano()%1000000)
	}
	return fmt.Sprintf("%06d", n.Int64())
}
