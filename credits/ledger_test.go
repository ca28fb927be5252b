package credits

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimastyle/nima-backend/models"
)

type memBalances struct {
	mu       sync.Mutex
	balances map[primitive.ObjectID]int
}

func newMemBalances() *memBalances {
	return &memBalances{balances: make(map[primitive.ObjectID]int)}
}

func (m *memBalances) DeductIfAvailable(ctx context.Context, userID primitive.ObjectID, count int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[userID] < count {
		return 0, false, nil
	}
	m.balances[userID] -= count
	return m.balances[userID], true, nil
}

func (m *memBalances) Add(ctx context.Context, userID primitive.ObjectID, count int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += count
	return m.balances[userID], nil
}

func (m *memBalances) Balance(ctx context.Context, userID primitive.ObjectID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

type memHistory struct {
	mu  sync.Mutex
	txs []models.CreditTransaction
}

func (h *memHistory) Record(ctx context.Context, tx *models.CreditTransaction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.txs = append(h.txs, *tx)
	return nil
}

type memNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *memNotifier) Notify(userID primitive.ObjectID, title, body string, data map[string]string, channel string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
}

func TestDeduct(t *testing.T) {
	balances := newMemBalances()
	history := &memHistory{}
	ledger := NewLedger(balances, history, nil, 2)
	user := primitive.NewObjectID()
	balances.balances[user] = 5

	balance, err := ledger.Deduct(context.Background(), user, 3, "three looks")
	require.NoError(t, err)
	assert.Equal(t, 2, balance)

	require.Len(t, history.txs, 1)
	assert.Equal(t, -3, history.txs[0].Amount)
	assert.Equal(t, models.CreditTxUse, history.txs[0].Type)
	assert.Equal(t, 2, history.txs[0].Balance)
}

func TestDeductInsufficientLeavesBalanceUntouched(t *testing.T) {
	balances := newMemBalances()
	ledger := NewLedger(balances, &memHistory{}, nil, 2)
	user := primitive.NewObjectID()
	balances.balances[user] = 2

	_, err := ledger.Deduct(context.Background(), user, 3, "three looks")
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	balance, _ := ledger.Balance(context.Background(), user)
	assert.Equal(t, 2, balance, "a failed deduction must not spend anything")
}

func TestDeductRejectsNonPositiveCount(t *testing.T) {
	ledger := NewLedger(newMemBalances(), nil, nil, 2)
	_, err := ledger.Deduct(context.Background(), primitive.NewObjectID(), 0, "nothing")
	assert.Error(t, err)
}

func TestDeductLowBalanceNotifies(t *testing.T) {
	balances := newMemBalances()
	notifier := &memNotifier{}
	ledger := NewLedger(balances, &memHistory{}, notifier, 2)
	user := primitive.NewObjectID()
	balances.balances[user] = 3

	_, err := ledger.Deduct(context.Background(), user, 1, "one look")
	require.NoError(t, err)
	assert.Len(t, notifier.titles, 1, "balance of 2 is at the low level")

	balances.balances[user] = 10
	_, err = ledger.Deduct(context.Background(), user, 1, "one look")
	require.NoError(t, err)
	assert.Len(t, notifier.titles, 1, "healthy balance stays quiet")
}

func TestConcurrentDeductionsNeverOverspend(t *testing.T) {
	balances := newMemBalances()
	ledger := NewLedger(balances, &memHistory{}, nil, 0)
	user := primitive.NewObjectID()
	balances.balances[user] = 10

	var wg sync.WaitGroup
	var succeeded int32
	var mu sync.Mutex
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Deduct(context.Background(), user, 1, "race"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	balance, _ := ledger.Balance(context.Background(), user)
	assert.Equal(t, int32(10), succeeded, "exactly the covered deductions succeed")
	assert.Equal(t, 0, balance)
	assert.GreaterOrEqual(t, balance, 0, "the balance can never go negative")
}

func TestGrant(t *testing.T) {
	balances := newMemBalances()
	history := &memHistory{}
	ledger := NewLedger(balances, history, nil, 2)
	user := primitive.NewObjectID()

	balance, err := ledger.Grant(context.Background(), user, 10, models.CreditTxPurchase, "top-up")
	require.NoError(t, err)
	assert.Equal(t, 10, balance)
	require.Len(t, history.txs, 1)
	assert.Equal(t, 10, history.txs[0].Amount)
}

func TestReverseClampsAtZero(t *testing.T) {
	balances := newMemBalances()
	ledger := NewLedger(balances, &memHistory{}, nil, 2)
	user := primitive.NewObjectID()

	// Granted 3, spent 2, then the payment bounces: only 1 is left to take.
	balances.balances[user] = 1

	balance, err := ledger.Reverse(context.Background(), user, 3, "chargeback")
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestReverseFullBalanceAvailable(t *testing.T) {
	balances := newMemBalances()
	ledger := NewLedger(balances, &memHistory{}, nil, 2)
	user := primitive.NewObjectID()
	balances.balances[user] = 5

	balance, err := ledger.Reverse(context.Background(), user, 3, "chargeback")
	require.NoError(t, err)
	assert.Equal(t, 2, balance)
}
