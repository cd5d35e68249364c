package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/altmarket/digitalstore/internal/domain/catalog"
	"github.com/altmarket/digitalstore/internal/domain/grant"
	"github.com/altmarket/digitalstore/internal/domain/ledger"
	"github.com/altmarket/digitalstore/internal/domain/payment"
	"github.com/altmarket/digitalstore/internal/pkg/logging"
	"go.uber.org/zap"
)

var (
	ErrOrderIDRequired   = errors.New("purchase: order id is required")
	ErrProductIDRequired = errors.New("purchase: product id is required")

	// ErrInvalidAmount means the gateway-captured amount did not match the
	// server-held price. The mismatch details go to the log, never to the
	// client.
	ErrInvalidAmount = errors.New("purchase: invalid payment amount")
)

// Notifier delivers purchase receipts off the critical path. Implementations
// must not block and must never fail the purchase.
type Notifier interface {
	PurchaseReceipt(tx ledger.Transaction, redownloadURL string)
}

// Service is the purchase authorization engine: it captures the payment,
// verifies the paid amount against the catalog price, records the
// transaction exactly once and issues the session download grant.
type Service struct {
	catalog  catalog.Repository
	gateway  payment.Gateway
	ledger   ledger.Ledger
	notifier Notifier

	// single is set in single-product mode; transactions then snapshot the
	// fixed sentinel product id instead of the catalog id.
	single *catalog.Product

	now func() time.Time
}

func NewService(cat catalog.Repository, gw payment.Gateway, led ledger.Ledger, notifier Notifier, single *catalog.Product) *Service {
	return &Service{
		catalog:  cat,
		gateway:  gw,
		ledger:   led,
		notifier: notifier,
		single:   single,
		now:      time.Now,
	}
}

// WithClock overrides the transaction timestamp source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CaptureInput struct {
	OrderID   string
	ProductID string
	// RedownloadURL is included in the receipt so the buyer can regain a
	// download grant later.
	RedownloadURL string
}

type CaptureResult struct {
	TransactionID string
}

// CaptureOrder runs one purchase attempt end to end. The product is resolved
// before the gateway is contacted so an unknown product never costs an
// external call. The ledger append must succeed before the caller hears of
// success; a failed append after a completed capture is surfaced as an error
// and logged for manual reconciliation.
func (s *Service) CaptureOrder(ctx context.Context, sess grant.Session, in CaptureInput) (CaptureResult, error) {
	logger := logging.FromContext(ctx).With(zap.String("component", "purchase_service"))

	if in.OrderID == "" {
		return CaptureResult{}, ErrOrderIDRequired
	}
	product, snapshotID, err := s.resolveProduct(ctx, in.ProductID)
	if err != nil {
		return CaptureResult{}, err
	}

	logger.Info("capture_order_start",
		zap.String("order_id", in.OrderID),
		zap.String("product_id", snapshotID),
	)

	captured, err := s.gateway.CaptureOrder(ctx, in.OrderID)
	if err != nil {
		logger.Error("capture_failed",
			zap.String("order_id", in.OrderID),
			zap.Error(err),
		)
		return CaptureResult{}, err
	}

	// The anti-tampering gate: only the server-held catalog price and the
	// gateway's own captured amount are compared, as exact decimal strings.
	if captured.Amount != product.Price {
		logger.Warn("security_alert_price_mismatch",
			zap.String("product_id", snapshotID),
			zap.String("expected_price", product.Price),
			zap.String("amount_paid", captured.Amount),
			zap.String("order_id", in.OrderID),
		)
		return CaptureResult{}, ErrInvalidAmount
	}

	tx := ledger.Transaction{
		ID:           captured.TransactionID,
		OrderID:      in.OrderID,
		PurchaseDate: s.now().UTC(),
		Product: ledger.ProductSnapshot{
			ID:    snapshotID,
			Name:  product.Name,
			Price: product.Price,
		},
		Payer: ledger.Payer{
			Email:     captured.Payer.Email,
			FirstName: captured.Payer.FirstName,
			LastName:  captured.Payer.LastName,
		},
	}

	if err := s.ledger.Append(ctx, tx); err != nil {
		// Money has moved but the entitlement record did not persist. There
		// is no automatic compensation; log everything an operator needs to
		// reconcile by hand.
		logger.Error("transaction_record_failed_after_capture",
			zap.String("transaction_id", tx.ID),
			zap.String("order_id", tx.OrderID),
			zap.String("product_id", tx.Product.ID),
			zap.String("payer_email", tx.Payer.Email),
			zap.Error(err),
		)
		return CaptureResult{}, fmt.Errorf("purchase: record transaction: %w", err)
	}

	if sess != nil {
		if err := sess.SetGrant(snapshotID); err != nil {
			// The success view re-issues the grant from the recorded
			// transaction, so a session write failure here is not fatal.
			logger.Warn("grant_issue_failed",
				zap.String("transaction_id", tx.ID),
				zap.Error(err),
			)
		}
	}

	if s.notifier != nil {
		s.notifier.PurchaseReceipt(tx, in.RedownloadURL)
	}

	logger.Info("capture_order_success",
		zap.String("transaction_id", tx.ID),
		zap.String("order_id", tx.OrderID),
		zap.String("product_id", tx.Product.ID),
	)
	return CaptureResult{TransactionID: tx.ID}, nil
}

func (s *Service) resolveProduct(ctx context.Context, productID string) (catalog.Product, string, error) {
	if s.single != nil {
		return *s.single, grant.SingleProductID, nil
	}
	if productID == "" {
		return catalog.Product{}, "", ErrProductIDRequired
	}
	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return catalog.Product{}, "", err
	}
	return product, product.ID, nil
}
