package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/altmarket/digitalstore/internal/domain/ledger"
	_ "github.com/mattn/go-sqlite3"
)

// timeLayout is fixed-width UTC: unlike RFC3339Nano it never trims trailing
// zeros from fractional seconds, so lexical order on the stored strings is
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Ledger stores transactions in a SQLite database. The engine gives appends
// real transactional durability, which makes this the backend to pick when
// the file-based ledger's single-process limits start to matter.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (creating if needed) the database at dbPath and applies
// the schema.
func OpenLedger(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite ledger: create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite ledger: open %s: %w", dbPath, err)
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		purchase_date TEXT NOT NULL,
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		product_price TEXT NOT NULL,
		payer_email TEXT NOT NULL,
		payer_first_name TEXT NOT NULL,
		payer_last_name TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_payer_email
		ON transactions (payer_email COLLATE NOCASE);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite ledger: migrate: %w", err)
	}
	return nil
}

func (l *Ledger) Close() error { return l.db.Close() }

func (l *Ledger) Append(ctx context.Context, tx ledger.Transaction) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, order_id, purchase_date,
			product_id, product_name, product_price,
			payer_email, payer_first_name, payer_last_name
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.OrderID, tx.PurchaseDate.UTC().Format(timeLayout),
		tx.Product.ID, tx.Product.Name, tx.Product.Price,
		strings.TrimSpace(tx.Payer.Email), tx.Payer.FirstName, tx.Payer.LastName,
	)
	if err != nil {
		return fmt.Errorf("sqlite ledger: append %s: %w", tx.ID, err)
	}
	return nil
}

func (l *Ledger) FindByID(ctx context.Context, id string) (ledger.Transaction, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, order_id, purchase_date,
			product_id, product_name, product_price,
			payer_email, payer_first_name, payer_last_name
		FROM transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

func (l *Ledger) FindLatestByEmail(ctx context.Context, email string) (ledger.Transaction, error) {
	// purchase_date is stored fixed-width UTC, so lexical order is
	// chronological order.
	row := l.db.QueryRowContext(ctx, `
		SELECT id, order_id, purchase_date,
			product_id, product_name, product_price,
			payer_email, payer_first_name, payer_last_name
		FROM transactions
		WHERE payer_email = ? COLLATE NOCASE
		ORDER BY purchase_date DESC
		LIMIT 1`, strings.TrimSpace(email))
	return scanTransaction(row)
}

func scanTransaction(row *sql.Row) (ledger.Transaction, error) {
	var tx ledger.Transaction
	var purchaseDate string
	err := row.Scan(
		&tx.ID, &tx.OrderID, &purchaseDate,
		&tx.Product.ID, &tx.Product.Name, &tx.Product.Price,
		&tx.Payer.Email, &tx.Payer.FirstName, &tx.Payer.LastName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transaction{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("sqlite ledger: scan: %w", err)
	}
	tx.PurchaseDate, err = time.Parse(timeLayout, purchaseDate)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("sqlite ledger: parse purchase date %q: %w", purchaseDate, err)
	}
	return tx, nil
}
