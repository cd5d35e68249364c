package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/altmarket/digitalstore/internal/domain/ledger"
)

// Ledger is an in-memory transaction log with the same contract as the
// durable backends. Used by tests and throwaway dev setups.
type Ledger struct {
	mu           sync.RWMutex
	transactions []ledger.Transaction
}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Append(ctx context.Context, tx ledger.Transaction) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transactions = append(l.transactions, tx)
	return nil
}

func (l *Ledger) FindByID(ctx context.Context, id string) (ledger.Transaction, error) {
	_ = ctx
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, tx := range l.transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return ledger.Transaction{}, ledger.ErrNotFound
}

func (l *Ledger) FindLatestByEmail(ctx context.Context, email string) (ledger.Transaction, error) {
	_ = ctx
	l.mu.RLock()
	defer l.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(email))
	var latest ledger.Transaction
	found := false
	for _, tx := range l.transactions {
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

// Len reports how many transactions have been appended.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.transactions)
}
