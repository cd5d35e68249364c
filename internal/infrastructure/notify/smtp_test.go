package notify

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/altmarket/digitalstore/internal/domain/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeReceipt(t *testing.T) {
	sink := &SMTPSink{
		Host:    "mail.example.com",
		From:    "shop@example.com",
		Subject: "Your purchase receipt",
	}

	msg := string(sink.compose(Receipt{
		Transaction: ledger.Transaction{
			ID:           "TX-1",
			OrderID:      "ORDER-1",
			PurchaseDate: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Product:      ledger.ProductSnapshot{ID: "guide", Name: "The Guide", Price: "49.00"},
			Payer:        ledger.Payer{Email: "buyer@example.com", FirstName: "Ada"},
		},
		RedownloadURL: "https://shop.example.com/redownload",
	}))

	headers, body, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found, "message must separate headers from body")

	assert.Contains(t, headers, "From: shop@example.com")
	assert.Contains(t, headers, "To: buyer@example.com")
	assert.Contains(t, headers, "Subject: Your purchase receipt")
	assert.Contains(t, headers, "@mail.example.com>")

	assert.Contains(t, body, "Hi Ada,")
	assert.Contains(t, body, "Product: The Guide")
	assert.Contains(t, body, "Price: 49.00")
	assert.Contains(t, body, "Transaction ID: TX-1")
	assert.Contains(t, body, "https://shop.example.com/redownload")
}

// runFakeSMTPServer speaks just enough SMTP for one plaintext delivery and
// reports the DATA payload it received.
func runFakeSMTPServer(t *testing.T) (addr string, received <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		write := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }

		write("220 fake ESMTP")
		var data strings.Builder
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				write("250 fake")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				write("250 OK")
			case cmd == "DATA":
				write("354 end with <CR><LF>.<CR><LF>")
				for {
					body, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if strings.TrimRight(body, "\r\n") == "." {
						break
					}
					data.WriteString(body)
				}
				write("250 OK")
				out <- data.String()
			case cmd == "QUIT":
				write("221 bye")
				return
			default:
				write("250 OK")
			}
		}
	}()
	return ln.Addr().String(), out
}

func TestSendDeliversOverSMTP(t *testing.T) {
	addr, received := runFakeSMTPServer(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	sink := &SMTPSink{
		Host:    host,
		Port:    atoi(t, port),
		From:    "shop@example.com",
		Subject: "Your purchase receipt",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = sink.Send(ctx, Receipt{
		Transaction: ledger.Transaction{
			ID:      "TX-1",
			Product: ledger.ProductSnapshot{Name: "The Guide", Price: "49.00"},
			Payer:   ledger.Payer{Email: "buyer@example.com", FirstName: "Ada"},
		},
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Contains(t, msg, "Subject: Your purchase receipt")
		assert.Contains(t, msg, "Transaction ID: TX-1")
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the message body")
	}
}

func TestSendHonorsContextDeadline(t *testing.T) {
	// A server that accepts the connection and then says nothing. Without a
	// connection deadline the client would block on the greeting forever.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(10 * time.Second)
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	sink := &SMTPSink{Host: host, Port: atoi(t, port), From: "shop@example.com"}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = sink.Send(ctx, Receipt{
		Transaction: ledger.Transaction{Payer: ledger.Payer{Email: "buyer@example.com"}},
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "a silent server must not block past the deadline")
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}

func TestComposeReceiptWithoutRedownloadURL(t *testing.T) {
	sink := &SMTPSink{Host: "mail.example.com", From: "shop@example.com", Subject: "Receipt"}

	msg := string(sink.compose(Receipt{
		Transaction: ledger.Transaction{ID: "TX-1", Payer: ledger.Payer{Email: "buyer@example.com"}},
	}))
	assert.NotContains(t, msg, "Verify your purchase")
}
