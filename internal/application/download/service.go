package download

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/altmarket/digitalstore/internal/domain/catalog"
	"github.com/altmarket/digitalstore/internal/domain/grant"
	"github.com/altmarket/digitalstore/internal/domain/ledger"
	"github.com/altmarket/digitalstore/internal/pkg/logging"
	"go.uber.org/zap"
)

var (
	// ErrProductGone means a grant was redeemed for a product that has since
	// left the catalog.
	ErrProductGone = errors.New("download: product no longer available")

	ErrCredentialRequired = errors.New("download: a transaction id or purchase email is required")
)

// File is a resolved download: where the bytes live and the name the buyer
// should see.
type File struct {
	Path     string
	Filename string
}

// Service is the download gate. It issues session grants from verified
// transactions and redeems each grant at most once.
type Service struct {
	catalog      catalog.Repository
	ledger       ledger.Ledger
	downloadsDir string
	single       *catalog.Product
}

func NewService(cat catalog.Repository, led ledger.Ledger, downloadsDir string, single *catalog.Product) *Service {
	return &Service{
		catalog:      cat,
		ledger:       led,
		downloadsDir: downloadsDir,
		single:       single,
	}
}

// AuthorizeTransaction grants the session a download for the product named
// by a verified transaction, overwriting any prior grant.
func (s *Service) AuthorizeTransaction(ctx context.Context, sess grant.Session, tx ledger.Transaction) error {
	if err := sess.SetGrant(tx.Product.ID); err != nil {
		return fmt.Errorf("download: set grant: %w", err)
	}
	logging.FromContext(ctx).Info("download_authorized",
		zap.String("transaction_id", tx.ID),
		zap.String("product_id", tx.Product.ID),
	)
	return nil
}

// Verify is the re-authorization path: it accepts a transaction id or a
// purchase email, looks up the ledger and on a match issues a fresh grant
// for that transaction's product. An email matches its owner's most recent
// purchase only.
func (s *Service) Verify(ctx context.Context, sess grant.Session, transactionID, email string) (ledger.Transaction, error) {
	transactionID = strings.TrimSpace(transactionID)
	email = strings.TrimSpace(email)

	var (
		tx  ledger.Transaction
		err error
	)
	switch {
	case transactionID != "":
		tx, err = s.ledger.FindByID(ctx, transactionID)
	case email != "":
		tx, err = s.ledger.FindLatestByEmail(ctx, email)
	default:
		return ledger.Transaction{}, ErrCredentialRequired
	}
	if err != nil {
		return ledger.Transaction{}, err
	}

	if err := s.AuthorizeTransaction(ctx, sess, tx); err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

// Redeem consumes the session's grant and resolves the file to serve. The
// grant is cleared, and the clear flushed to the session store, before the
// file is handed back; a failed transfer afterwards does not restore it.
// Each grant pays for at most one download attempt.
func (s *Service) Redeem(ctx context.Context, sess grant.Session) (File, error) {
	productID, ok := sess.Grant()
	if !ok {
		return File{}, grant.ErrUnauthorized
	}
	if err := sess.ClearGrant(); err != nil {
		// If the clear cannot be confirmed the grant must not be honored,
		// otherwise a crash could leave it both used and live.
		return File{}, fmt.Errorf("download: clear grant: %w", err)
	}

	product, err := s.resolveProduct(ctx, productID)
	if err != nil {
		return File{}, err
	}

	logging.FromContext(ctx).Info("download_redeemed",
		zap.String("product_id", productID),
		zap.String("filename", product.Filename),
	)
	return File{
		Path:     filepath.Join(s.downloadsDir, product.Filename),
		Filename: product.Filename,
	}, nil
}

func (s *Service) resolveProduct(ctx context.Context, productID string) (catalog.Product, error) {
	if productID == grant.SingleProductID && s.single != nil {
		return *s.single, nil
	}
	product, err := s.catalog.Get(ctx, productID)
	if errors.Is(err, catalog.ErrNotFound) {
		// Catalog drift: the purchase predates a catalog edit.
		return catalog.Product{}, ErrProductGone
	}
	if err != nil {
		return catalog.Product{}, err
	}
	return product, nil
}
