package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	appadmin "github.com/altmarket/digitalstore/internal/application/admin"
	appdownload "github.com/altmarket/digitalstore/internal/application/download"
	apppurchase "github.com/altmarket/digitalstore/internal/application/purchase"
	"github.com/altmarket/digitalstore/internal/config"
	"github.com/altmarket/digitalstore/internal/domain/catalog"
	"github.com/altmarket/digitalstore/internal/domain/ledger"
	"github.com/altmarket/digitalstore/internal/domain/payment"
	"github.com/altmarket/digitalstore/internal/infrastructure/memory"
	"github.com/altmarket/digitalstore/internal/infrastructure/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeGateway struct {
	capture payment.Capture
	err     error
}

func (g *fakeGateway) CaptureOrder(_ context.Context, orderID string) (payment.Capture, error) {
	if g.err != nil {
		return payment.Capture{}, g.err
	}
	c := g.capture
	c.OrderID = orderID
	return c, nil
}

type testStore struct {
	server  *httptest.Server
	client  *http.Client
	catalog *memory.Catalog
	ledger  *memory.Ledger
	gateway *fakeGateway
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()

	downloadsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(downloadsDir, "guide.pdf"), []byte("%PDF-1.4 guide"), 0o644))

	cat := memory.NewCatalog(catalog.Product{
		ID: "guide", Name: "The Guide", Price: "49.00", Filename: "guide.pdf",
	})
	led := memory.NewLedger()
	gw := &fakeGateway{capture: payment.Capture{
		TransactionID: "TX-1",
		Status:        "COMPLETED",
		Amount:        "49.00",
		Currency:      "USD",
		Payer: payment.PayerIdentity{
			Email:     "buyer@example.com",
			FirstName: "Ada",
			LastName:  "Lovelace",
		},
	}}

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		Mode:         config.ModeShop,
		Env:          "test",
		DownloadsDir: downloadsDir,
		Admin:        config.Admin{Username: "admin", PasswordHash: string(hash)},
	}

	sessions, err := session.NewManager(t.TempDir(), "test-secret-key", false)
	require.NoError(t, err)

	purchaseSvc := apppurchase.NewService(cat, gw, led, nil, nil)
	downloadSvc := appdownload.NewService(cat, led, downloadsDir, nil)
	adminSvc := appadmin.NewService(cat, cfg.Admin.Username, cfg.Admin.PasswordHash)

	h := NewHandler(cfg, cat, purchaseSvc, downloadSvc, adminSvc, sessions,
		zap.NewNop(), NewMetrics(prometheus.NewRegistry()))

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testStore{
		server:  srv,
		client:  &http.Client{Jar: jar},
		catalog: cat,
		ledger:  led,
		gateway: gw,
	}
}

func (ts *testStore) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := ts.client.Post(ts.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func (ts *testStore) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := ts.client.Get(ts.server.URL + path)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestPurchaseAndDownloadFlow(t *testing.T) {
	ts := newTestStore(t)

	resp := ts.postJSON(t, "/api/capture-order", map[string]string{
		"orderID":   "ORDER-1",
		"productID": "guide",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	capture := decodeBody[captureOrderResponse](t, resp)
	assert.True(t, capture.Success)
	assert.Equal(t, "TX-1", capture.TransactionID)
	assert.Equal(t, 1, ts.ledger.Len())

	// First download succeeds and arrives as an attachment.
	resp = ts.get(t, "/download/product")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="guide.pdf"`, resp.Header.Get("Content-Disposition"))
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 guide", string(body))

	// The grant was spent: a second attempt is refused.
	resp = ts.get(t, "/download/product")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	refusal := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "/redownload", refusal["redirect"])
}

func TestCaptureOrderValidation(t *testing.T) {
	ts := newTestStore(t)

	resp := ts.postJSON(t, "/api/capture-order", map[string]string{"productID": "guide"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	out := decodeBody[captureOrderResponse](t, resp)
	assert.Equal(t, "Order ID and Product ID are required.", out.Message)

	resp = ts.postJSON(t, "/api/capture-order", map[string]string{
		"orderID": "ORDER-1", "productID": "ghost",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	out = decodeBody[captureOrderResponse](t, resp)
	assert.Equal(t, "Product not found.", out.Message)
}

func TestCaptureOrderAmountMismatch(t *testing.T) {
	ts := newTestStore(t)
	ts.gateway.capture.Amount = "0.01"

	resp := ts.postJSON(t, "/api/capture-order", map[string]string{
		"orderID": "ORDER-1", "productID": "guide",
	})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	out := decodeBody[captureOrderResponse](t, resp)
	assert.False(t, out.Success)
	assert.Equal(t, "Invalid payment amount.", out.Message)
	assert.Zero(t, ts.ledger.Len())

	// No grant was issued.
	resp = ts.get(t, "/download/product")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestCaptureOrderGatewayFailure(t *testing.T) {
	ts := newTestStore(t)
	ts.gateway.err = payment.ErrCaptureFailed

	resp := ts.postJSON(t, "/api/capture-order", map[string]string{
		"orderID": "ORDER-1", "productID": "guide",
	})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	out := decodeBody[captureOrderResponse](t, resp)
	assert.Equal(t, "Failed to capture payment.", out.Message)
}

func TestVerifyTransactionReauthorizes(t *testing.T) {
	ts := newTestStore(t)
	require.NoError(t, ts.ledger.Append(context.Background(), ledger.Transaction{
		ID:           "TX-OLD",
		OrderID:      "ORDER-OLD",
		PurchaseDate: time.Now().UTC(),
		Product:      ledger.ProductSnapshot{ID: "guide", Name: "The Guide", Price: "49.00"},
		Payer:        ledger.Payer{Email: "buyer@example.com"},
	}))

	resp := ts.postJSON(t, "/api/verify-transaction", map[string]string{"transactionId": "TX-OLD"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody[verifyTransactionResponse](t, resp)
	require.True(t, out.Success)
	require.NotNil(t, out.Transaction)
	assert.Equal(t, "TX-OLD", out.Transaction.ID)

	// Verification issued a fresh grant.
	resp = ts.get(t, "/download/product")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestVerifyTransactionErrors(t *testing.T) {
	ts := newTestStore(t)

	resp := ts.postJSON(t, "/api/verify-transaction", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = ts.postJSON(t, "/api/verify-transaction", map[string]string{"transactionId": "TX-GHOST"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = ts.postJSON(t, "/api/verify-transaction", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSuccessViewIssuesGrant(t *testing.T) {
	ts := newTestStore(t)

	resp := ts.postJSON(t, "/api/capture-order", map[string]string{
		"orderID": "ORDER-1", "productID": "guide",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.get(t, "/purchase/success?transactionId=TX-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody[verifyTransactionResponse](t, resp)
	assert.True(t, out.Success)
}

func TestSuccessViewRedirectsWithoutTransaction(t *testing.T) {
	ts := newTestStore(t)
	ts.client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp := ts.get(t, "/purchase/success")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	resp.Body.Close()

	resp = ts.get(t, "/purchase/success?transactionId=TX-GHOST")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp.Body.Close()
}

func TestProductCatalogEndpoints(t *testing.T) {
	ts := newTestStore(t)

	resp := ts.get(t, "/api/products")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	products := decodeBody[[]catalog.Product](t, resp)
	require.Len(t, products, 1)
	assert.Equal(t, "guide", products[0].ID)

	resp = ts.get(t, "/api/products/guide")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	product := decodeBody[catalog.Product](t, resp)
	assert.Equal(t, "The Guide", product.Name)

	resp = ts.get(t, "/api/products/ghost")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminLifecycle(t *testing.T) {
	ts := newTestStore(t)

	// Unauthenticated edits are refused.
	resp := ts.postJSON(t, "/admin/api/products", catalog.Product{ID: "atlas"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = ts.postJSON(t, "/admin/api/login", map[string]string{
		"username": "admin", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = ts.postJSON(t, "/admin/api/login", map[string]string{
		"username": "admin", "password": "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.postJSON(t, "/admin/api/products", catalog.Product{
		ID: "atlas", Name: "The Atlas", Price: "29.00", Filename: "atlas.pdf",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Duplicate id is a conflict.
	resp = ts.postJSON(t, "/admin/api/products", catalog.Product{
		ID: "atlas", Name: "The Atlas", Price: "29.00", Filename: "atlas.pdf",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// The path id wins over the body id on update.
	req, err := http.NewRequest(http.MethodPut, ts.server.URL+"/admin/api/products/atlas",
		bytes.NewReader([]byte(`{"id":"other","name":"The Atlas","price":"39.00","filename":"atlas.pdf"}`)))
	require.NoError(t, err)
	resp, err = ts.client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[catalog.Product](t, resp)
	assert.Equal(t, "atlas", updated.ID)
	assert.Equal(t, "39.00", updated.Price)

	req, err = http.NewRequest(http.MethodDelete, ts.server.URL+"/admin/api/products/atlas", nil)
	require.NoError(t, err)
	resp, err = ts.client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.postJSON(t, "/admin/api/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.postJSON(t, "/admin/api/products", catalog.Product{ID: "zine"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestDownloadProductGone(t *testing.T) {
	ts := newTestStore(t)

	resp := ts.postJSON(t, "/api/capture-order", map[string]string{
		"orderID": "ORDER-1", "productID": "guide",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.NoError(t, ts.catalog.Delete(context.Background(), "guide"))

	resp = ts.get(t, "/download/product")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// The grant is spent even though nothing was served.
	resp = ts.get(t, "/download/product")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestStore(t)

	resp := ts.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestStore(t)

	resp := ts.get(t, "/health")
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
