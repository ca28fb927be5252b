package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Budget ranges used by outfit matching
const (
	BudgetLow     = "low"
	BudgetMid     = "mid"
	BudgetPremium = "premium"
)

// User represents a registered user together with their stylist profile and
// credit balance. Credits are mutated only through credits.Ledger.
type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string             `bson:"name" json:"name"`
	Email            string             `bson:"email" json:"email"`
	Password         string             `bson:"password" json:"-"`
	Status           string             `bson:"status" json:"status"` // pending, verified, active
	OTP              string             `bson:"otp,omitempty" json:"-"`
	FirstName        string             `bson:"first_name,omitempty" json:"first_name,omitempty"`
	Gender           string             `bson:"gender,omitempty" json:"gender,omitempty"`
	StylePreferences []string           `bson:"style_preferences,omitempty" json:"style_preferences,omitempty"`
	BudgetRange      string             `bson:"budget_range,omitempty" json:"budget_range,omitempty"`
	PhotoKeys        []string           `bson:"photo_keys,omitempty" json:"photo_keys,omitempty"`
	PrimaryPhotoKey  string             `bson:"primary_photo_key,omitempty" json:"primary_photo_key,omitempty"`
	Credits          int                `bson:"credits" json:"credits"`
	OnboardingDone   bool               `bson:"onboarding_done" json:"onboarding_done"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}
