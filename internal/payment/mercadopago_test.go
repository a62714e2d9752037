package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func signatureHeader(secret, dataID, requestID, ts string) string {
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return fmt.Sprintf("ts=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhookSignature(t *testing.T) {
	const secret = "whk-secret"
	header := signatureHeader(secret, "1234567", "req-abc", "1700000000")

	if err := VerifyWebhookSignature(secret, header, "req-abc", "1234567"); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	// Whitespace between parts is tolerated.
	spaced := strings.Replace(header, ",", ", ", 1)
	if err := VerifyWebhookSignature(secret, spaced, "req-abc", "1234567"); err != nil {
		t.Fatalf("spaced signature rejected: %v", err)
	}

	cases := []struct {
		name      string
		secret    string
		header    string
		requestID string
		dataID    string
	}{
		{"empty secret", "", header, "req-abc", "1234567"},
		{"missing header", secret, "", "req-abc", "1234567"},
		{"wrong secret", "other-secret", header, "req-abc", "1234567"},
		{"wrong data id", secret, header, "req-abc", "7654321"},
		{"wrong request id", secret, header, "req-zzz", "1234567"},
		{"no v1 part", secret, "ts=1700000000", "req-abc", "1234567"},
		{"no ts part", secret, "v1=deadbeef", "req-abc", "1234567"},
		{"garbage header", secret, "completely-wrong", "req-abc", "1234567"},
	}
	for _, tc := range cases {
		if err := VerifyWebhookSignature(tc.secret, tc.header, tc.requestID, tc.dataID); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("%s: expected ErrInvalidSignature, got %v", tc.name, err)
		}
	}
}

func TestVerifyWebhookSignatureUppercaseHexAccepted(t *testing.T) {
	const secret = "whk-secret"
	header := signatureHeader(secret, "99", "req-1", "1700000000")

	idx := strings.Index(header, "v1=")
	upper := header[:idx+3] + strings.ToUpper(header[idx+3:])
	if err := VerifyWebhookSignature(secret, upper, "req-1", "99"); err != nil {
		t.Fatalf("uppercase hex digest rejected: %v", err)
	}
}

func TestCreatePreferenceSendsCallbacks(t *testing.T) {
	var got preferenceRequest
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/checkout/preferences" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		authHeader = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"pref-1","init_point":"https://mp.example/init","sandbox_init_point":"https://mp.example/sandbox"}`)
	}))
	defer server.Close()

	client := NewClient("APP-token-123", "https://tienda.example", "COP")
	client.apiBaseURL = server.URL

	pref, err := client.CreatePreference(context.Background(), "sess-42", []PreferenceItem{
		{Title: "Pelota de Caucho", Quantity: 2, UnitPrice: 79.0},
	})
	if err != nil {
		t.Fatalf("create preference: %v", err)
	}
	if pref.ID != "pref-1" || pref.InitPoint != "https://mp.example/init" {
		t.Fatalf("unexpected preference: %+v", pref)
	}
	if authHeader != "Bearer APP-token-123" {
		t.Fatalf("authorization header = %q", authHeader)
	}
	if got.ExternalReference != "sess-42" {
		t.Fatalf("external reference = %q", got.ExternalReference)
	}
	if got.NotificationURL != "https://tienda.example/mercadopago/webhook" {
		t.Fatalf("notification url = %q", got.NotificationURL)
	}
	if got.BackURLs.Success != "https://tienda.example/mercadopago/success" {
		t.Fatalf("success back url = %q", got.BackURLs.Success)
	}
	if len(got.Items) != 1 || got.Items[0].CurrencyID != "COP" {
		t.Fatalf("currency not filled in: %+v", got.Items)
	}
}

func TestGetPaymentErrorsIncludeStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient("APP-token-123", "https://tienda.example", "COP")
	client.apiBaseURL = server.URL
	client.httpClient.Timeout = 2 * time.Second

	_, err := client.GetPayment(context.Background(), "404404")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestGatewayDisabledWithoutToken(t *testing.T) {
	client := NewClient("", "https://tienda.example", "COP")

	if _, err := client.CreatePreference(context.Background(), "sess", nil); !errors.Is(err, ErrGatewayDisabled) {
		t.Fatalf("expected ErrGatewayDisabled, got %v", err)
	}
	if _, err := client.GetPayment(context.Background(), "1"); !errors.Is(err, ErrGatewayDisabled) {
		t.Fatalf("expected ErrGatewayDisabled, got %v", err)
	}
}

func TestSandboxModeDetection(t *testing.T) {
	if !NewClient("TEST-abc", "", "COP").SandboxMode() {
		t.Fatalf("TEST- token should enable sandbox mode")
	}
	if NewClient("APP-abc", "", "COP").SandboxMode() {
		t.Fatalf("APP- token must not enable sandbox mode")
	}
}
