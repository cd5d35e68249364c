package grant

import "errors"

// SingleProductID is the fixed sentinel stored in transactions and grants
// when the store runs in single-product mode.
const SingleProductID = "single-product"

// ErrUnauthorized means the session holds no live download grant. Callers
// should steer the user to the re-verification flow, not a hard error page.
var ErrUnauthorized = errors.New("grant: download not authorized")

// Session is the narrow per-user grant port. A session holds at most one
// live grant; SetGrant overwrites unconditionally. Both mutations must be
// flushed to the backing store before returning, so a redeemed grant can
// never be observed live again.
type Session interface {
	Grant() (productID string, ok bool)
	SetGrant(productID string) error
	ClearGrant() error
}
