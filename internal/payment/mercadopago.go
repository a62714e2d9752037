// Package payment wraps the MercadoPago REST API: preference creation,
// payment lookup and webhook signature verification.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInvalidSignature is returned when a webhook signature is missing
	// or does not match the computed manifest HMAC.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrGatewayDisabled is returned when no access token is configured.
	ErrGatewayDisabled = errors.New("payment gateway not configured")
)

// PreferenceItem is one purchasable line of a checkout preference.
// UnitPrice is in currency units, not cents.
type PreferenceItem struct {
	ID         string  `json:"id,omitempty"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id,omitempty"`
}

// Preference is the created checkout preference.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// Payment is the subset of the gateway payment resource the service needs.
type Payment struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	ExternalReference string  `json:"external_reference"`
	TransactionAmount float64 `json:"transaction_amount"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
}

// Gateway is the payment surface the service depends on; tests substitute
// a fake.
type Gateway interface {
	CreatePreference(ctx context.Context, externalReference string, items []PreferenceItem) (*Preference, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	SandboxMode() bool
}

// Client calls the MercadoPago REST API over plain HTTP/JSON.
type Client struct {
	httpClient    *http.Client
	apiBaseURL    string
	publicBaseURL string
	accessToken   string
	currencyID    string
}

func NewClient(accessToken, publicBaseURL, currencyID string) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 12 * time.Second},
		apiBaseURL:    "https://api.mercadopago.com",
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		accessToken:   accessToken,
		currencyID:    currencyID,
	}
}

// SandboxMode reports whether the configured access token is a test token.
func (c *Client) SandboxMode() bool {
	return strings.HasPrefix(c.accessToken, "TEST-")
}

type preferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference"`
	NotificationURL   string           `json:"notification_url,omitempty"`
	BackURLs          struct {
		Success string `json:"success"`
		Failure string `json:"failure"`
		Pending string `json:"pending"`
	} `json:"back_urls"`
	AutoReturn string `json:"auto_return,omitempty"`
}

func (c *Client) CreatePreference(ctx context.Context, externalReference string, items []PreferenceItem) (*Preference, error) {
	if c.accessToken == "" {
		return nil, ErrGatewayDisabled
	}

	payload := preferenceRequest{
		Items:             items,
		ExternalReference: externalReference,
		AutoReturn:        "approved",
	}
	for i := range payload.Items {
		if payload.Items[i].CurrencyID == "" {
			payload.Items[i].CurrencyID = c.currencyID
		}
	}
	payload.NotificationURL = c.publicBaseURL + "/mercadopago/webhook"
	payload.BackURLs.Success = c.publicBaseURL + "/mercadopago/success"
	payload.BackURLs.Failure = c.publicBaseURL + "/mercadopago/failure"
	payload.BackURLs.Pending = c.publicBaseURL + "/mercadopago/pending"

	var pref Preference
	if err := c.doJSON(ctx, http.MethodPost, "/checkout/preferences", payload, &pref); err != nil {
		return nil, err
	}
	return &pref, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if c.accessToken == "" {
		return nil, ErrGatewayDisabled
	}

	var p Payment
	if err := c.doJSON(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("mercadopago %s %s: status %d: %s", method, path, res.StatusCode, string(snippet))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// VerifyWebhookSignature validates the X-Signature header of a webhook
// notification. The header carries "ts=<unix>,v1=<hex hmac>" and the HMAC
// is computed over the manifest "id:<dataID>;request-id:<rid>;ts:<ts>;".
func VerifyWebhookSignature(secret, signatureHeader, requestID, dataID string) error {
	if secret == "" || signatureHeader == "" {
		return ErrInvalidSignature
	}

	var ts, v1 string
	for _, part := range strings.Split(signatureHeader, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return ErrInvalidSignature
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(v1))) {
		return ErrInvalidSignature
	}
	return nil
}
