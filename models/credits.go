package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Credit transaction types
const (
	CreditTxPurchase = "purchase"
	CreditTxUse      = "use"
	CreditTxRefund   = "refund"
	CreditTxReward   = "reward"
)

// Credit purchase statuses
const (
	PurchasePending   = "pending"
	PurchaseCompleted = "completed"
	PurchaseFailed    = "failed"
)

// CreditTransaction records one credit movement with the balance after it.
// Purchases are created pending with a merchant order ID and settled by the
// payment webhook.
type CreditTransaction struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"user_id" json:"user_id"`
	Amount          int                `bson:"amount" json:"amount"` // negative for spending
	Type            string             `bson:"type" json:"type"`
	Description     string             `bson:"description" json:"description"`
	Balance         int                `bson:"balance" json:"balance"`
	MerchantOrderID string             `bson:"merchant_order_id,omitempty" json:"merchant_order_id,omitempty"`
	Status          string             `bson:"status,omitempty" json:"status,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
}
