package httppresentation

import (
	"errors"
	"net/http"
	"os"

	appadmin "github.com/altmarket/digitalstore/internal/application/admin"
	appdownload "github.com/altmarket/digitalstore/internal/application/download"
	apppurchase "github.com/altmarket/digitalstore/internal/application/purchase"
	"github.com/altmarket/digitalstore/internal/config"
	"github.com/altmarket/digitalstore/internal/domain/catalog"
	"github.com/altmarket/digitalstore/internal/domain/grant"
	"github.com/altmarket/digitalstore/internal/domain/ledger"
	"github.com/altmarket/digitalstore/internal/infrastructure/session"
	"github.com/altmarket/digitalstore/internal/pkg/logging"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Rate limit on the purchase/verification/download surface: 100 requests per
// 15 minutes per IP, with a small burst.
const (
	rateLimitPerSecond = rate.Limit(100.0 / (15 * 60))
	rateLimitBurst     = 20
)

type Handler struct {
	cfg      *config.Config
	catalog  catalog.Repository
	purchase *apppurchase.Service
	download *appdownload.Service
	admin    *appadmin.Service
	sessions *session.Manager
	log      *zap.Logger
	metrics  *Metrics
	limiter  *ipRateLimiter
}

// NewHandler wires the HTTP surface. adminSvc may be nil (single-product
// mode); the admin routes are then not registered.
func NewHandler(
	cfg *config.Config,
	cat catalog.Repository,
	purchaseSvc *apppurchase.Service,
	downloadSvc *appdownload.Service,
	adminSvc *appadmin.Service,
	sessions *session.Manager,
	logger *zap.Logger,
	metrics *Metrics,
) *Handler {
	return &Handler{
		cfg:      cfg,
		catalog:  cat,
		purchase: purchaseSvc,
		download: downloadSvc,
		admin:    adminSvc,
		sessions: sessions,
		log:      logger.With(zap.String("component", "http_server")),
		metrics:  metrics,
		limiter:  newIPRateLimiter(rateLimitPerSecond, rateLimitBurst),
	}
}

func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()

	// Request id → trace → request logger → metrics → access log.
	r.Use(
		mux.MiddlewareFunc(h.withRequestID),
		mux.MiddlewareFunc(h.withTrace),
		mux.MiddlewareFunc(h.withRequestLogger),
		mux.MiddlewareFunc(h.withHTTPMetrics),
		mux.MiddlewareFunc(h.withAccessLog),
	)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(mux.MiddlewareFunc(h.withRateLimit))
	api.HandleFunc("/capture-order", h.handleCaptureOrder).Methods(http.MethodPost)
	api.HandleFunc("/verify-transaction", h.handleVerifyTransaction).Methods(http.MethodPost)
	if h.cfg.IsShopMode() {
		api.HandleFunc("/products", h.handleListProducts).Methods(http.MethodGet)
		api.HandleFunc("/products/{id}", h.handleGetProduct).Methods(http.MethodGet)
	}

	r.HandleFunc("/purchase/success", h.handleSuccess).Methods(http.MethodGet)
	r.Handle("/download/product", h.withRateLimit(http.HandlerFunc(h.handleDownload))).Methods(http.MethodGet)
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)

	if h.cfg.IsShopMode() && h.admin != nil {
		h.registerAdminRoutes(r)
	}

	return r
}

type captureOrderRequest struct {
	OrderID   string `json:"orderID"`
	ProductID string `json:"productID,omitempty"`
}

type captureOrderResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	Message       string `json:"message,omitempty"`
}

func (h *Handler) handleCaptureOrder(w http.ResponseWriter, r *http.Request) {
	var req captureOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.metrics.Purchases.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusBadRequest, captureOrderResponse{Success: false, Message: "Invalid request body."})
		return
	}

	sess := h.sessions.ForRequest(w, r)
	result, err := h.purchase.CaptureOrder(r.Context(), sess, apppurchase.CaptureInput{
		OrderID:       req.OrderID,
		ProductID:     req.ProductID,
		RedownloadURL: h.redownloadURL(r),
	})
	switch {
	case err == nil:
		h.metrics.Purchases.WithLabelValues("success").Inc()
		writeJSON(w, http.StatusOK, captureOrderResponse{Success: true, TransactionID: result.TransactionID})
	case errors.Is(err, apppurchase.ErrOrderIDRequired),
		errors.Is(err, apppurchase.ErrProductIDRequired):
		h.metrics.Purchases.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusBadRequest, captureOrderResponse{Success: false, Message: "Order ID and Product ID are required."})
	case errors.Is(err, catalog.ErrNotFound):
		h.metrics.Purchases.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusNotFound, captureOrderResponse{Success: false, Message: "Product not found."})
	case errors.Is(err, apppurchase.ErrInvalidAmount):
		// The specifics were already logged at warning severity; the client
		// gets a generic rejection.
		h.metrics.Purchases.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusInternalServerError, captureOrderResponse{Success: false, Message: "Invalid payment amount."})
	default:
		h.metrics.Purchases.WithLabelValues("failed").Inc()
		writeJSON(w, http.StatusInternalServerError, captureOrderResponse{Success: false, Message: "Failed to capture payment."})
	}
}

type verifyTransactionRequest struct {
	TransactionID string `json:"transactionId,omitempty"`
	Email         string `json:"email,omitempty"`
}

type verifyTransactionResponse struct {
	Success     bool                `json:"success"`
	Transaction *ledger.Transaction `json:"transaction,omitempty"`
	Message     string              `json:"message,omitempty"`
}

func (h *Handler) handleVerifyTransaction(w http.ResponseWriter, r *http.Request) {
	var req verifyTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, verifyTransactionResponse{Success: false, Message: "Invalid request body."})
		return
	}

	sess := h.sessions.ForRequest(w, r)
	tx, err := h.download.Verify(r.Context(), sess, req.TransactionID, req.Email)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, verifyTransactionResponse{Success: true, Transaction: &tx})
	case errors.Is(err, appdownload.ErrCredentialRequired):
		writeJSON(w, http.StatusBadRequest, verifyTransactionResponse{Success: false, Message: "A Transaction ID or Purchase Email is required."})
	case errors.Is(err, ledger.ErrNotFound):
		writeJSON(w, http.StatusNotFound, verifyTransactionResponse{Success: false, Message: "No matching purchase found."})
	default:
		logging.FromContext(r.Context()).Error("verify_transaction_error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, verifyTransactionResponse{Success: false, Message: "Error verifying your request."})
	}
}

// handleSuccess is the post-payment landing endpoint: it re-verifies the
// transaction id from the redirect and issues the download grant for the
// product that transaction actually covers.
func (h *Handler) handleSuccess(w http.ResponseWriter, r *http.Request) {
	transactionID := r.URL.Query().Get("transactionId")
	if transactionID == "" {
		http.Redirect(w, r, h.homePath(), http.StatusSeeOther)
		return
	}

	sess := h.sessions.ForRequest(w, r)
	tx, err := h.download.Verify(r.Context(), sess, transactionID, "")
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			logging.FromContext(r.Context()).Error("success_view_error", zap.Error(err))
		}
		http.Redirect(w, r, h.homePath(), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, verifyTransactionResponse{Success: true, Transaction: &tx})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.ForRequest(w, r)
	file, err := h.download.Redeem(r.Context(), sess)
	switch {
	case errors.Is(err, grant.ErrUnauthorized):
		h.metrics.Downloads.WithLabelValues("unauthorized").Inc()
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":    "download not authorized",
			"redirect": "/redownload",
		})
		return
	case errors.Is(err, appdownload.ErrProductGone):
		h.metrics.Downloads.WithLabelValues("gone").Inc()
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		h.metrics.Downloads.WithLabelValues("failed").Inc()
		logging.FromContext(r.Context()).Error("download_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("download failed"))
		return
	}

	if _, err := os.Stat(file.Path); err != nil {
		// The grant is already spent; that stays true even when the file is
		// missing on disk.
		h.metrics.Downloads.WithLabelValues("missing_file").Inc()
		logging.FromContext(r.Context()).Error("download_file_missing",
			zap.String("path", file.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusNotFound, errors.New("file not found"))
		return
	}

	h.metrics.Downloads.WithLabelValues("success").Inc()
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	http.ServeFile(w, r, file.Path)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) homePath() string {
	if h.cfg.IsShopMode() {
		return "/"
	}
	return "/purchase"
}

// redownloadURL builds the absolute re-verification URL included in receipt
// emails, honoring a forwarding proxy's protocol header.
func (h *Handler) redownloadURL(r *http.Request) string {
	scheme := "http"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/redownload"
}
