package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/altmarket/digitalstore/internal/domain/payment"
	"github.com/altmarket/digitalstore/internal/pkg/logging"
	"go.uber.org/zap"
)

const (
	// tokenExpiryMargin is subtracted from the processor-reported ttl so a
	// token is refreshed before it can expire mid-request.
	tokenExpiryMargin = 60 * time.Second

	requestTimeout = 30 * time.Second

	statusCompleted = "COMPLETED"
)

// Client talks to the PayPal REST API: OAuth2 credential exchange with an
// in-process cache, and order capture. It performs no retries; capture is
// not idempotent from this layer's perspective.
type Client struct {
	apiBase      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	cache        *TokenCache
}

func NewClient(apiBase, clientID, clientSecret string, cache *TokenCache) *Client {
	if cache == nil {
		cache = NewTokenCache(nil)
	}
	return &Client{
		apiBase:      strings.TrimRight(apiBase, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: requestTimeout},
		cache:        cache,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AccessToken returns a cached bearer token, performing a credential
// exchange when the cache is empty or expired.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if token, ok := c.cache.Get(); ok {
		return token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", payment.ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", payment.ErrAuth, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.FromContext(ctx).Error("paypal_auth_failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return "", fmt.Errorf("%w: status %d", payment.ErrAuth, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", payment.ErrAuth, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", payment.ErrAuth)
	}

	ttl := time.Duration(tok.ExpiresIn)*time.Second - tokenExpiryMargin
	c.cache.Put(tok.AccessToken, ttl)
	return tok.AccessToken, nil
}

type captureResponse struct {
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Amount struct {
					Value        string `json:"value"`
					CurrencyCode string `json:"currency_code"`
				} `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Payer struct {
		EmailAddress string `json:"email_address"`
		Name         struct {
			GivenName string `json:"given_name"`
			Surname   string `json:"surname"`
		} `json:"name"`
	} `json:"payer"`
	Message string `json:"message"`
}

// CaptureOrder finalizes the payment for orderID. The funds actually move
// here; everything before this call is authorization only.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (payment.Capture, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return payment.Capture{}, err
	}

	captureURL := fmt.Sprintf("%s/v2/checkout/orders/%s/capture", c.apiBase, url.PathEscape(orderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, captureURL, nil)
	if err != nil {
		return payment.Capture{}, fmt.Errorf("%w: %v", payment.ErrCaptureFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return payment.Capture{}, fmt.Errorf("%w: %v", payment.ErrCaptureFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var data captureResponse
	// Decode regardless of status: error payloads carry a message field.
	_ = json.Unmarshal(body, &data)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.FromContext(ctx).Error("paypal_capture_failed",
			zap.String("order_id", orderID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		msg := data.Message
		if msg == "" {
			msg = "failed to capture order"
		}
		return payment.Capture{}, fmt.Errorf("%w: %s", payment.ErrCaptureFailed, msg)
	}

	if data.Status != statusCompleted {
		return payment.Capture{}, fmt.Errorf("%w: transaction not completed (status %q)", payment.ErrCaptureFailed, data.Status)
	}
	if len(data.PurchaseUnits) == 0 || len(data.PurchaseUnits[0].Payments.Captures) == 0 {
		return payment.Capture{}, fmt.Errorf("%w: capture payload missing capture details", payment.ErrCaptureFailed)
	}

	captured := data.PurchaseUnits[0].Payments.Captures[0]
	return payment.Capture{
		TransactionID: captured.ID,
		OrderID:       orderID,
		Status:        data.Status,
		Amount:        captured.Amount.Value,
		Currency:      captured.Amount.CurrencyCode,
		Payer: payment.PayerIdentity{
			Email:     data.Payer.EmailAddress,
			FirstName: data.Payer.Name.GivenName,
			LastName:  data.Payer.Name.Surname,
		},
	}, nil
}
