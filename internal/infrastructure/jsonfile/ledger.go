package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/altmarket/digitalstore/internal/domain/ledger"
)

// Ledger persists transactions as a JSON array in a single file. Appends are
// read-modify-write cycles serialized by an in-process mutex, which is the
// single-writer discipline this store needs; it is not safe across multiple
// processes sharing the file.
type Ledger struct {
	mu   sync.Mutex
	path string
}

// OpenLedger prepares the backing file, creating an empty valid store on
// first run. Failures other than absence (e.g. permissions, corrupt JSON)
// are returned and should be treated as fatal by the caller.
func OpenLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create data dir: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			return nil, fmt.Errorf("ledger: bootstrap %s: %w", path, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("ledger: stat %s: %w", path, err)
	}

	// Fail fast on an unreadable or corrupt store instead of at first append.
	if _, err := l.read(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Append(ctx context.Context, tx ledger.Transaction) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()

	transactions, err := l.read()
	if err != nil {
		return err
	}
	transactions = append(transactions, tx)

	data, err := json.MarshalIndent(transactions, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: encode: %w", err)
	}
	if err := writeFileAtomic(l.path, data); err != nil {
		return fmt.Errorf("ledger: write %s: %w", l.path, err)
	}
	return nil
}

func (l *Ledger) FindByID(ctx context.Context, id string) (ledger.Transaction, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()

	transactions, err := l.read()
	if err != nil {
		return ledger.Transaction{}, err
	}
	for _, tx := range transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return ledger.Transaction{}, ledger.ErrNotFound
}

func (l *Ledger) FindLatestByEmail(ctx context.Context, email string) (ledger.Transaction, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()

	transactions, err := l.read()
	if err != nil {
		return ledger.Transaction{}, err
	}

	needle := strings.ToLower(strings.TrimSpace(email))
	var latest ledger.Transaction
	found := false
	for _, tx := range transactions {
		if strings.ToLower(strings.TrimSpace(tx.Payer.Email)) != needle {
			continue
		}
		if !found || tx.PurchaseDate.After(latest.PurchaseDate) {
			latest = tx
			found = true
		}
	}
	if !found {
		return ledger.Transaction{}, ledger.ErrNotFound
	}
	return latest, nil
}

func (l *Ledger) read() ([]ledger.Transaction, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w", l.path, err)
	}
	var transactions []ledger.Transaction
	if err := json.Unmarshal(data, &transactions); err != nil {
		return nil, fmt.Errorf("ledger: parse %s: %w", l.path, err)
	}
	return transactions, nil
}
