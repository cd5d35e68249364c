package notify

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/altmarket/digitalstore/internal/domain/ledger"
	"go.uber.org/zap"
)

// Receipt is one purchase confirmation to deliver.
type Receipt struct {
	Transaction   ledger.Transaction
	RedownloadURL string
}

// Sink delivers a receipt to the buyer.
type Sink interface {
	Send(ctx context.Context, r Receipt) error
}

const sendTimeout = 30 * time.Second

// Dispatcher delivers receipts asynchronously through a buffered queue and a
// single worker goroutine. Delivery is strictly best-effort: a full queue
// drops the receipt, a failed send is logged, and neither ever reaches the
// purchase path.
type Dispatcher struct {
	queue     chan Receipt
	sink      Sink
	log       *zap.Logger
	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewDispatcher(sink Sink, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queue: make(chan Receipt, 256),
		sink:  sink,
		log:   logger.With(zap.String("component", "receipt_dispatcher")),
		done:  make(chan struct{}),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
		d.cancel = cancel
		go d.deliverLoop(bg)
		d.log.Info("receipt_dispatcher_started")
	})
}

// Stop drains nothing: queued receipts not yet delivered are abandoned.
// Callers must stop producing before calling Stop.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		if d.cancel != nil {
			d.cancel()
		}
		close(d.queue)
		<-d.done
		d.log.Info("receipt_dispatcher_stopped")
	})
}

// PurchaseReceipt enqueues a receipt without blocking. Implements
// purchase.Notifier.
func (d *Dispatcher) PurchaseReceipt(tx ledger.Transaction, redownloadURL string) {
	select {
	case d.queue <- Receipt{Transaction: tx, RedownloadURL: redownloadURL}:
	default:
		d.log.Warn("receipt_queue_full",
			zap.String("transaction_id", tx.ID),
			zap.String("payer_email", tx.Payer.Email),
		)
	}
}

func (d *Dispatcher) deliverLoop(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, r)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, r Receipt) {
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("receipt_sink_panic",
				zap.Any("panic", rec),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := d.sink.Send(sendCtx, r); err != nil {
		d.log.Warn("receipt_delivery_failed",
			zap.String("transaction_id", r.Transaction.ID),
			zap.String("payer_email", r.Transaction.Payer.Email),
			zap.Error(err),
		)
		return
	}
	d.log.Info("receipt_sent",
		zap.String("transaction_id", r.Transaction.ID),
		zap.String("payer_email", r.Transaction.Payer.Email),
	)
}
