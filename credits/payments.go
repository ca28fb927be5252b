package credits

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nimastyle/nima-backend/models"
)

// Package is a purchasable credit bundle. Prices are in the gateway's
// smallest unit.
type Package struct {
	Name    string `json:"name"`
	Credits int    `json:"credits"`
	Price   int64  `json:"price"`
}

// Packages on offer, keyed by name.
var Packages = map[string]Package{
	"starter": {Name: "starter", Credits: 3, Price: 15000},
	"plus":    {Name: "plus", Credits: 10, Price: 45000},
	"max":     {Name: "max", Credits: 25, Price: 99000},
}

// PaymentGateway creates a hosted payment page for one order.
type PaymentGateway interface {
	CreateInvoice(ctx context.Context, orderID string, amount int64, email string) (string, error)
}

// MidtransGateway implements PaymentGateway over Midtrans Snap.
type MidtransGateway struct {
	client snap.Client
}

func NewMidtransGateway(serverKey, env string) *MidtransGateway {
	environment := midtrans.Sandbox
	if env == "production" {
		environment = midtrans.Production
	}
	g := &MidtransGateway{}
	g.client.New(serverKey, environment)
	return g
}

func (g *MidtransGateway) CreateInvoice(ctx context.Context, orderID string, amount int64, email string) (string, error) {
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			Email: email,
		},
	}
	resp, err := g.client.CreateTransaction(req)
	if err != nil {
		return "", fmt.Errorf("failed to create payment transaction: %w", err)
	}
	return resp.RedirectURL, nil
}

// Purchases drives the credit top-up lifecycle: a pending purchase record
// with a merchant order ID, settled or failed by the payment webhook.
type Purchases struct {
	col     *mongo.Collection
	ledger  *Ledger
	gateway PaymentGateway
}

func NewPurchases(col *mongo.Collection, ledger *Ledger, gateway PaymentGateway) *Purchases {
	return &Purchases{col: col, ledger: ledger, gateway: gateway}
}

// Start records a pending purchase and returns the payment page URL.
func (p *Purchases) Start(ctx context.Context, user *models.User, packageName string) (string, string, error) {
	pkg, ok := Packages[packageName]
	if !ok {
		return "", "", fmt.Errorf("unknown credit package %q", packageName)
	}

	orderID := uuid.NewString()
	record := models.CreditTransaction{
		ID:              primitive.NewObjectID(),
		UserID:          user.ID,
		Amount:          pkg.Credits,
		Type:            models.CreditTxPurchase,
		Description:     fmt.Sprintf("Purchase of %s pack (%d credits)", pkg.Name, pkg.Credits),
		MerchantOrderID: orderID,
		Status:          models.PurchasePending,
		CreatedAt:       time.Now(),
	}
	if _, err := p.col.InsertOne(ctx, record); err != nil {
		return "", "", fmt.Errorf("failed to record purchase: %w", err)
	}

	invoiceURL, err := p.gateway.CreateInvoice(ctx, orderID, pkg.Price, user.Email)
	if err != nil {
		// Leave the record pending; the gateway call never ran, so no
		// money moved and the webhook will never fire for it.
		return "", "", err
	}
	return invoiceURL, orderID, nil
}

// HandleWebhook maps a gateway transaction status onto the purchase record.
// Status updates are filter-guarded so replayed webhooks are no-ops.
func (p *Purchases) HandleWebhook(ctx context.Context, orderID, transactionStatus string) error {
	switch transactionStatus {
	case "capture", "settlement":
		return p.confirm(ctx, orderID)
	case "deny", "cancel", "expire", "failure":
		return p.failPending(ctx, orderID)
	case "refund", "partial_refund", "chargeback":
		return p.failConfirmed(ctx, orderID)
	default:
		log.Printf("Ignoring payment webhook status %q for order %s", transactionStatus, orderID)
		return nil
	}
}

func (p *Purchases) confirm(ctx context.Context, orderID string) error {
	record, err := p.transition(ctx, orderID, models.PurchasePending, models.PurchaseCompleted)
	if err != nil || record == nil {
		return err
	}
	_, err = p.ledger.Grant(ctx, record.UserID, record.Amount, models.CreditTxPurchase,
		fmt.Sprintf("Top-up %s confirmed", orderID))
	return err
}

func (p *Purchases) failPending(ctx context.Context, orderID string) error {
	_, err := p.transition(ctx, orderID, models.PurchasePending, models.PurchaseFailed)
	return err
}

// failConfirmed handles a payment that fails after being confirmed: the
// tentatively granted credits are taken back.
func (p *Purchases) failConfirmed(ctx context.Context, orderID string) error {
	record, err := p.transition(ctx, orderID, models.PurchaseCompleted, models.PurchaseFailed)
	if err != nil || record == nil {
		return err
	}
	_, err = p.ledger.Reverse(ctx, record.UserID, record.Amount,
		fmt.Sprintf("Top-up %s reversed by payment provider", orderID))
	return err
}

// transition flips a purchase record's status when it currently holds from.
// A nil record without error means the webhook was a replay or out of order.
func (p *Purchases) transition(ctx context.Context, orderID, from, to string) (*models.CreditTransaction, error) {
	var record models.CreditTransaction
	err := p.col.FindOneAndUpdate(ctx,
		bson.M{"merchant_order_id": orderID, "status": from},
		bson.M{"$set": bson.M{"status": to}},
	).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		var any models.CreditTransaction
		if err := p.col.FindOne(ctx, bson.M{"merchant_order_id": orderID}).Decode(&any); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, ErrPurchaseNotFound
			}
			return nil, err
		}
		log.Printf("Payment webhook for order %s ignored: status already %s", orderID, any.Status)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
