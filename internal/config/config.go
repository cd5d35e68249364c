package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeShop   Mode = "shop"
	ModeSingle Mode = "single"
)

const (
	paypalLiveBase    = "https://api-m.paypal.com"
	paypalSandboxBase = "https://api-m.sandbox.paypal.com"
)

type PayPal struct {
	ClientID     string
	ClientSecret string
	APIBase      string
	Live         bool
}

type Admin struct {
	Username string
	// PasswordHash is a bcrypt hash of the admin password.
	PasswordHash string
}

type Site struct {
	Title        string
	HomeURL      string
	HomeText     string
	ContactURL   string
	FooterDomain string
}

type Email struct {
	Enabled bool
	Host    string
	Port    int
	User    string
	Pass    string
	From    string
	Subject string
}

type Config struct {
	Mode          Mode
	Env           string
	Port          int
	SessionSecret string
	ItemsPerPage  int

	// Single-product mode: the catalog id the store sells. Ignored in shop
	// mode.
	SingleProductID string

	// LedgerBackend selects the transaction store: "file" or "sqlite".
	LedgerBackend string

	DataDir      string
	ProductsPath string
	LedgerPath   string
	SessionsDir  string
	DownloadsDir string

	PayPal PayPal
	Admin  Admin
	Site   Site
	Email  Email
}

func (c *Config) IsShopMode() bool { return c.Mode == ModeShop }

// Load reads configuration from the environment, loading a .env file first
// when one is present. Missing required values are reported together so a
// bad deployment fails loudly once, at startup.
func Load() (*Config, error) {
	_ = godotenv.Load()

	mode := ModeSingle
	if os.Getenv("APP_MODE") == string(ModeShop) {
		mode = ModeShop
	}

	live := os.Getenv("PAYPAL_API_MODE") == "live"
	apiBase := paypalSandboxBase
	if live {
		apiBase = paypalLiveBase
	}

	dataDir := getenvDefault("DATA_DIR", "data")

	cfg := &Config{
		Mode:          mode,
		Env:           getenvDefault("ENV", "dev"),
		Port:          getenvInt("PORT", 3002),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		ItemsPerPage:  getenvInt("ITEMS_PER_PAGE", 6),

		SingleProductID: os.Getenv("SINGLE_PRODUCT_ID"),
		LedgerBackend:   getenvDefault("LEDGER_BACKEND", "file"),

		DataDir:      dataDir,
		ProductsPath: getenvDefault("PRODUCTS_PATH", filepath.Join(dataDir, "products.json")),
		LedgerPath:   os.Getenv("LEDGER_PATH"),
		SessionsDir:  getenvDefault("SESSIONS_DIR", filepath.Join(dataDir, "sessions")),
		DownloadsDir: getenvDefault("DOWNLOADS_DIR", "private_downloads"),

		PayPal: PayPal{
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			APIBase:      getenvDefault("PAYPAL_API_BASE", apiBase),
			Live:         live,
		},
		Admin: Admin{
			Username:     os.Getenv("ADMIN_USERNAME"),
			PasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		},
		Site: Site{
			Title:        os.Getenv("SITE_TITLE"),
			HomeURL:      os.Getenv("HOME_URL"),
			HomeText:     os.Getenv("HOME_TEXT"),
			ContactURL:   os.Getenv("CONTACT_URL"),
			FooterDomain: os.Getenv("FOOTER_DOMAIN"),
		},
		Email: Email{
			Enabled: os.Getenv("EMAIL_ENABLED") == "true",
			Host:    os.Getenv("EMAIL_HOST"),
			Port:    getenvInt("EMAIL_PORT", 587),
			User:    os.Getenv("EMAIL_USER"),
			Pass:    os.Getenv("EMAIL_PASS"),
			From:    os.Getenv("EMAIL_FROM"),
			Subject: getenvDefault("EMAIL_SUBJECT", "Your purchase receipt"),
		},
	}

	if cfg.LedgerPath == "" {
		if cfg.LedgerBackend == "sqlite" {
			cfg.LedgerPath = filepath.Join(dataDir, "transactions.db")
		} else {
			cfg.LedgerPath = filepath.Join(dataDir, "transactions.json")
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	}
	if c.PayPal.ClientID == "" || c.PayPal.ClientSecret == "" {
		errs = append(errs, errors.New("PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET are required"))
	}
	if c.Mode == ModeSingle && c.SingleProductID == "" {
		errs = append(errs, errors.New("APP_MODE is 'single' but SINGLE_PRODUCT_ID is not set"))
	}
	if c.LedgerBackend != "file" && c.LedgerBackend != "sqlite" {
		errs = append(errs, fmt.Errorf("LEDGER_BACKEND must be 'file' or 'sqlite', got %q", c.LedgerBackend))
	}
	return errors.Join(errs...)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
