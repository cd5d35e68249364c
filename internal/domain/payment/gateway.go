package payment

import (
	"context"
	"errors"
)

var (
	// ErrAuth means the credential exchange with the processor failed.
	ErrAuth = errors.New("payment: gateway authentication failed")
	// ErrCaptureFailed means the processor rejected the capture or reported
	// a non-complete status. Capture is not idempotent; callers must not
	// blindly retry on this error.
	ErrCaptureFailed = errors.New("payment: capture failed")
)

// Capture is the processor's view of a finalized payment. Amount carries the
// paid value as the processor's exact decimal string; it is compared against
// the server-held catalog price, never against anything client-supplied.
type Capture struct {
	TransactionID string
	OrderID       string
	Status        string
	Amount        string
	Currency      string
	Payer         PayerIdentity
}

type PayerIdentity struct {
	Email     string
	FirstName string
	LastName  string
}

// Gateway finalizes authorized payments with the external processor.
// Implementations perform no retries: a failed capture surfaces as
// ErrCaptureFailed and retry policy belongs to the caller.
type Gateway interface {
	CaptureOrder(ctx context.Context, orderID string) (Capture, error)
}
