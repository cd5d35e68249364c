package ledger

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("ledger: transaction not found")

// ProductSnapshot freezes the catalog entry at capture time. The ledger must
// stay accurate even if the product is later renamed, repriced or deleted.
type ProductSnapshot struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type Payer struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Transaction is the permanent record of a completed purchase. ID is the
// gateway-issued capture id. Records are append-only: never updated, never
// deleted.
type Transaction struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"orderId"`
	PurchaseDate time.Time       `json:"purchaseDate"`
	Product      ProductSnapshot `json:"product"`
	Payer        Payer           `json:"payer"`
}

// Ledger is the durable append-only log of completed purchases.
type Ledger interface {
	// Append durably persists a new transaction. It must return only after
	// the record would survive a process restart.
	Append(ctx context.Context, tx Transaction) error

	FindByID(ctx context.Context, id string) (Transaction, error)

	// FindLatestByEmail matches the payer email case-insensitively with
	// surrounding whitespace trimmed, and returns the match with the latest
	// purchase date. Ties are broken arbitrarily.
	FindLatestByEmail(ctx context.Context, email string) (Transaction, error)
}
