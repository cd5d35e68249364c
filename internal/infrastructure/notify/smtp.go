package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SMTPSink sends receipt emails over SMTP. Plain auth is used when a user is
// configured, otherwise an unauthenticated relay is assumed.
type SMTPSink struct {
	Host    string
	Port    int
	User    string
	Pass    string
	From    string
	Subject string
}

// Send delivers one receipt. The connection carries the context deadline so
// a hung server cannot block the delivery worker past the dispatcher's
// timeout.
func (s *SMTPSink) Send(ctx context.Context, r Receipt) error {
	tx := r.Transaction
	msg := s.compose(r)

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp sink: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp sink: handshake with %s: %w", addr, err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.Host}); err != nil {
			return fmt.Errorf("smtp sink: starttls: %w", err)
		}
	}
	if s.User != "" {
		if err := client.Auth(smtp.PlainAuth("", s.User, s.Pass, s.Host)); err != nil {
			return fmt.Errorf("smtp sink: auth: %w", err)
		}
	}

	if err := client.Mail(s.From); err != nil {
		return fmt.Errorf("smtp sink: mail from %s: %w", s.From, err)
	}
	if err := client.Rcpt(tx.Payer.Email); err != nil {
		return fmt.Errorf("smtp sink: rcpt to %s: %w", tx.Payer.Email, err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp sink: data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp sink: write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp sink: finish message: %w", err)
	}
	return client.Quit()
}

func (s *SMTPSink) compose(r Receipt) []byte {
	tx := r.Transaction

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", tx.Payer.Email)
	fmt.Fprintf(&b, "Subject: %s\r\n", s.Subject)
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.NewString(), s.Host)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", tx.Payer.FirstName)
	b.WriteString("Thank you for your purchase!\r\n\r\n")
	fmt.Fprintf(&b, "Product: %s\r\n", tx.Product.Name)
	fmt.Fprintf(&b, "Price: %s\r\n", tx.Product.Price)
	fmt.Fprintf(&b, "Transaction ID: %s\r\n", tx.ID)
	fmt.Fprintf(&b, "Order ID: %s\r\n", tx.OrderID)
	fmt.Fprintf(&b, "Date: %s\r\n\r\n", tx.PurchaseDate.Format(time.RFC1123))
	if r.RedownloadURL != "" {
		b.WriteString("Need the file again? Verify your purchase here:\r\n")
		fmt.Fprintf(&b, "%s\r\n", r.RedownloadURL)
	}
	return []byte(b.String())
}

// LogSink records receipts in the log instead of delivering them. Used when
// email is disabled.
type LogSink struct {
	Log *zap.Logger
}

func (s *LogSink) Send(ctx context.Context, r Receipt) error {
	_ = ctx
	s.Log.Info("receipt_logged",
		zap.String("transaction_id", r.Transaction.ID),
		zap.String("payer_email", r.Transaction.Payer.Email),
		zap.String("product_id", r.Transaction.Product.ID),
	)
	return nil
}
