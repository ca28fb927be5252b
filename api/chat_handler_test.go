package api

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimastyle/nima-backend/credits"
	"github.com/nimastyle/nima-backend/models"
)

type fakeBalances struct {
	mu       sync.Mutex
	balances map[primitive.ObjectID]int
}

func newFakeBalances() *fakeBalances {
	return &fakeBalances{balances: make(map[primitive.ObjectID]int)}
}

func (f *fakeBalances) DeductIfAvailable(ctx context.Context, userID primitive.ObjectID, count int) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[userID] < count {
		return 0, false, nil
	}
	f.balances[userID] -= count
	return f.balances[userID], true, nil
}

func (f *fakeBalances) Add(ctx context.Context, userID primitive.ObjectID, count int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] += count
	return f.balances[userID], nil
}

func (f *fakeBalances) Balance(ctx context.Context, userID primitive.ObjectID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID], nil
}

type fakeHistory struct {
	mu  sync.Mutex
	txs []models.CreditTransaction
}

func (h *fakeHistory) Record(ctx context.Context, tx *models.CreditTransaction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.txs = append(h.txs, *tx)
	return nil
}

// A batch deduction where only part of the work gets persisted must hand the
// unspent remainder back, so the user never pays for looks that don't exist.
func TestRefundCreditsRestoresUnpersistedDeduction(t *testing.T) {
	balances := newFakeBalances()
	history := &fakeHistory{}
	s := &Server{Ledger: credits.NewLedger(balances, history, nil, 0)}
	user := primitive.NewObjectID()
	balances.balances[user] = 5

	// Three looks composed and paid for, but only one made it to storage.
	_, err := s.Ledger.Deduct(context.Background(), user, 3, "Look generation via chat: dinner")
	require.NoError(t, err)
	s.refundCredits(context.Background(), user, 2, "Refund: look could not be saved")

	balance, _ := s.Ledger.Balance(context.Background(), user)
	assert.Equal(t, 4, balance, "only the persisted look stays paid")

	require.Len(t, history.txs, 2)
	assert.Equal(t, models.CreditTxRefund, history.txs[1].Type)
	assert.Equal(t, 2, history.txs[1].Amount)
}

func TestRefundCreditsIgnoresNonPositiveCount(t *testing.T) {
	balances := newFakeBalances()
	history := &fakeHistory{}
	s := &Server{Ledger: credits.NewLedger(balances, history, nil, 0)}
	user := primitive.NewObjectID()
	balances.balances[user] = 5

	s.refundCredits(context.Background(), user, 0, "nothing failed")
	s.refundCredits(context.Background(), user, -1, "nothing failed")

	balance, _ := s.Ledger.Balance(context.Background(), user)
	assert.Equal(t, 5, balance)
	assert.Empty(t, history.txs)
}
