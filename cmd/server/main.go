package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appadmin "github.com/altmarket/digitalstore/internal/application/admin"
	appdownload "github.com/altmarket/digitalstore/internal/application/download"
	apppurchase "github.com/altmarket/digitalstore/internal/application/purchase"
	"github.com/altmarket/digitalstore/internal/config"
	"github.com/altmarket/digitalstore/internal/domain/catalog"
	"github.com/altmarket/digitalstore/internal/domain/ledger"
	"github.com/altmarket/digitalstore/internal/infrastructure/jsonfile"
	"github.com/altmarket/digitalstore/internal/infrastructure/notify"
	"github.com/altmarket/digitalstore/internal/infrastructure/paypal"
	"github.com/altmarket/digitalstore/internal/infrastructure/session"
	"github.com/altmarket/digitalstore/internal/infrastructure/sqlite"
	httppresentation "github.com/altmarket/digitalstore/internal/presentation/http"
	"github.com/altmarket/digitalstore/internal/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal: invalid configuration:", err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger("digitalstore", cfg.Env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	catalogStore := jsonfile.NewCatalogStore(cfg.ProductsPath)

	var singleProduct *catalog.Product
	if !cfg.IsShopMode() {
		p, err := catalogStore.Get(context.Background(), cfg.SingleProductID)
		if err != nil {
			baseLogger.Fatal("single_product_not_found",
				zap.String("product_id", cfg.SingleProductID),
				zap.Error(err),
			)
		}
		singleProduct = &p
	}

	var (
		txLedger ledger.Ledger
		closeFn  func() error
	)
	switch cfg.LedgerBackend {
	case "sqlite":
		l, err := sqlite.OpenLedger(cfg.LedgerPath)
		if err != nil {
			baseLogger.Fatal("ledger_init_failed", zap.Error(err))
		}
		txLedger, closeFn = l, l.Close
	default:
		l, err := jsonfile.OpenLedger(cfg.LedgerPath)
		if err != nil {
			baseLogger.Fatal("ledger_init_failed", zap.Error(err))
		}
		txLedger = l
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	gateway := paypal.NewClient(cfg.PayPal.APIBase, cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, paypal.NewTokenCache(nil))

	var sink notify.Sink
	if cfg.Email.Enabled {
		sink = &notify.SMTPSink{
			Host:    cfg.Email.Host,
			Port:    cfg.Email.Port,
			User:    cfg.Email.User,
			Pass:    cfg.Email.Pass,
			From:    cfg.Email.From,
			Subject: cfg.Email.Subject,
		}
	} else {
		sink = &notify.LogSink{Log: baseLogger}
	}
	dispatcher := notify.NewDispatcher(sink, baseLogger)
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	sessions, err := session.NewManager(cfg.SessionsDir, cfg.SessionSecret, cfg.PayPal.Live)
	if err != nil {
		baseLogger.Fatal("session_store_init_failed", zap.Error(err))
	}

	purchaseSvc := apppurchase.NewService(catalogStore, gateway, txLedger, dispatcher, singleProduct)
	downloadSvc := appdownload.NewService(catalogStore, txLedger, cfg.DownloadsDir, singleProduct)

	var adminSvc *appadmin.Service
	if cfg.IsShopMode() && cfg.Admin.Username != "" {
		adminSvc = appadmin.NewService(catalogStore, cfg.Admin.Username, cfg.Admin.PasswordHash)
	}

	metrics := httppresentation.NewMetrics(prometheus.DefaultRegisterer)
	handler := httppresentation.NewHandler(cfg, catalogStore, purchaseSvc, downloadSvc, adminSvc, sessions, baseLogger, metrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("mode", string(cfg.Mode)),
			zap.String("ledger_backend", cfg.LedgerBackend),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Error("http_server_error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("http_server_shutdown_error", zap.Error(err))
	} else {
		baseLogger.Info("http_server_stopped")
	}
}
