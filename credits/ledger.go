// Package credits is the admission-control gate for paid generation work:
// every render deducts credits atomically before anything is scheduled.
package credits

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimastyle/nima-backend/models"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrPurchaseNotFound    = errors.New("purchase not found")
)

// BalanceStore performs atomic balance arithmetic on the user record. The
// per-document isolation of the underlying store is what serializes
// concurrent deductions for one user; no external locking is involved.
type BalanceStore interface {
	// DeductIfAvailable decrements by count only when the balance covers
	// it, all-or-nothing. ok is false when it doesn't.
	DeductIfAvailable(ctx context.Context, userID primitive.ObjectID, count int) (newBalance int, ok bool, err error)
	// Add increments the balance and returns the new value.
	Add(ctx context.Context, userID primitive.ObjectID, count int) (int, error)
	Balance(ctx context.Context, userID primitive.ObjectID) (int, error)
}

// HistoryStore records credit movements.
type HistoryStore interface {
	Record(ctx context.Context, tx *models.CreditTransaction) error
}

// Notifier delivers best-effort user notifications.
type Notifier interface {
	Notify(userID primitive.ObjectID, title, body string, data map[string]string, channel string)
}

// Ledger wraps balance arithmetic with transaction history and the
// low-balance nudge.
type Ledger struct {
	balances BalanceStore
	history  HistoryStore
	notifier Notifier
	lowLevel int
}

func NewLedger(balances BalanceStore, history HistoryStore, notifier Notifier, lowLevel int) *Ledger {
	return &Ledger{balances: balances, history: history, notifier: notifier, lowLevel: lowLevel}
}

// Deduct spends count credits, all-or-nothing. ErrInsufficientCredits is an
// expected business outcome; callers map it to a friendly response, and no
// generation work may be scheduled when it fires.
func (l *Ledger) Deduct(ctx context.Context, userID primitive.ObjectID, count int, reason string) (int, error) {
	if count <= 0 {
		return 0, fmt.Errorf("invalid deduction count %d", count)
	}
	balance, ok, err := l.balances.DeductIfAvailable(ctx, userID, count)
	if err != nil {
		return 0, fmt.Errorf("credit deduction failed: %w", err)
	}
	if !ok {
		return 0, ErrInsufficientCredits
	}

	l.record(ctx, userID, -count, models.CreditTxUse, reason, balance)

	if balance <= l.lowLevel && l.notifier != nil {
		l.notifier.Notify(userID, "Running low on credits",
			fmt.Sprintf("You have %d credits left. Top up to keep the looks coming.", balance),
			map[string]string{"balance": fmt.Sprintf("%d", balance)}, models.ChannelInbox)
	}
	return balance, nil
}

// Grant adds credits (purchases, welcome grant, rewards).
func (l *Ledger) Grant(ctx context.Context, userID primitive.ObjectID, count int, txType, reason string) (int, error) {
	if count <= 0 {
		return 0, fmt.Errorf("invalid grant count %d", count)
	}
	balance, err := l.balances.Add(ctx, userID, count)
	if err != nil {
		return 0, fmt.Errorf("credit grant failed: %w", err)
	}
	l.record(ctx, userID, count, txType, reason, balance)
	return balance, nil
}

// Reverse takes back up to count previously granted credits without letting
// the balance go negative, used when a confirmed payment later fails.
func (l *Ledger) Reverse(ctx context.Context, userID primitive.ObjectID, count int, reason string) (int, error) {
	balance, ok, err := l.balances.DeductIfAvailable(ctx, userID, count)
	if err != nil {
		return 0, fmt.Errorf("credit reversal failed: %w", err)
	}
	if !ok {
		// The user already spent part of the grant. Claw back what's
		// left so the balance never goes negative.
		current, err := l.balances.Balance(ctx, userID)
		if err != nil {
			return 0, err
		}
		if current <= 0 {
			return current, nil
		}
		balance, ok, err = l.balances.DeductIfAvailable(ctx, userID, current)
		if err != nil || !ok {
			return current, err
		}
		count = current
	}
	l.record(ctx, userID, -count, models.CreditTxRefund, reason, balance)
	return balance, nil
}

// Balance returns the current balance.
func (l *Ledger) Balance(ctx context.Context, userID primitive.ObjectID) (int, error) {
	return l.balances.Balance(ctx, userID)
}

func (l *Ledger) record(ctx context.Context, userID primitive.ObjectID, amount int, txType, reason string, balance int) {
	if l.history == nil {
		return
	}
	tx := &models.CreditTransaction{
		ID:          primitive.NewObjectID(),
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Description: reason,
		Balance:     balance,
		CreatedAt:   time.Now(),
	}
	if err := l.history.Record(ctx, tx); err != nil {
		// History is an audit trail, not the source of truth; the
		// balance change already happened.
		log.Printf("Failed to record credit transaction for %s: %v", userID.Hex(), err)
	}
}
