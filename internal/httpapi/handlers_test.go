package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"patitas/backend/internal/cache"
	"patitas/backend/internal/domain"
	"patitas/backend/internal/mailer"
	"patitas/backend/internal/payment"
	"patitas/backend/internal/service"
	"patitas/backend/internal/store/memory"
)

type fakeGateway struct {
	payments map[string]*payment.Payment
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: make(map[string]*payment.Payment)}
}

func (g *fakeGateway) CreatePreference(_ context.Context, externalReference string, _ []payment.PreferenceItem) (*payment.Preference, error) {
	return &payment.Preference{
		ID:        "pref-" + externalReference,
		InitPoint: "https://gateway.test/init/" + externalReference,
	}, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, paymentID string) (*payment.Payment, error) {
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment %s not found", paymentID)
	}
	return p, nil
}

func (g *fakeGateway) SandboxMode() bool { return false }

const testWebhookSecret = "test-webhook-secret"

// newTestAPI builds a full API with an in-memory store, real AuthManager
// and real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) (*API, *fakeGateway) {
	t.Helper()

	repo := memory.NewSeeded()
	gateway := newFakeGateway()
	svc := service.New(repo, gateway, mailer.NoopMailer{}, cache.NoopCatalogCache{}, 19, time.Second)
	auth := NewAuthManager("test-secret-key-0123456789abcdef", time.Hour, repo)

	return New(svc, auth, "*", testWebhookSecret, false), gateway
}

func doJSON(t *testing.T, api *API, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func loginAs(t *testing.T, api *API, email, password string) string {
	t.Helper()

	rec := doJSON(t, api, http.MethodPost, "/auth/login", "", domain.LoginRequest{Email: email, Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", email, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if strings.TrimSpace(resp.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return resp.AccessToken
}

func loginAsAdmin(t *testing.T, api *API) string {
	return loginAs(t, api, "admin@patitas.dev", "admin123")
}

func loginAsEmployee(t *testing.T, api *API) string {
	return loginAs(t, api, "empleado@patitas.dev", "empleado123")
}

func TestHandleHealth(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestRegisterAndLogin(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := doJSON(t, api, http.MethodPost, "/auth/registro", "", domain.RegisterRequest{
		Name:     "Ana Torres",
		Email:    "ana@example.com",
		Password: "secreto99",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	token := loginAs(t, api, "ana@example.com", "secreto99")
	if token == "" {
		t.Fatalf("expected token for fresh registration")
	}

	// Same email again conflicts.
	rec = doJSON(t, api, http.MethodPost, "/auth/registro", "", domain.RegisterRequest{
		Name:     "Ana Bis",
		Email:    "ANA@example.com",
		Password: "otroSecreto",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", rec.Code)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := doJSON(t, api, http.MethodPost, "/auth/login", "", domain.LoginRequest{
		Email:    "admin@patitas.dev",
		Password: "wrongpassword",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["mensaje"] == nil || body["error"] != true {
		t.Fatalf("expected {mensaje, error} payload, got %v", body)
	}
}

func TestCatalogIsPublicButMutationsAreGated(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/productos", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected public catalog, got %d", rec.Code)
	}
	var listing map[string][]domain.Product
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing["productos"]) == 0 {
		t.Fatalf("expected seeded products")
	}

	create := domain.ProductCreateRequest{
		Name:       "Rascador Torre",
		Category:   domain.CategoryAccessories,
		PriceCents: 9990000,
		Stock:      4,
	}

	if rec := doJSON(t, api, http.MethodPost, "/productos", "", create); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	customerToken := registerCustomer(t, api, "comprador@example.com")
	if rec := doJSON(t, api, http.MethodPost, "/productos", customerToken, create); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", rec.Code)
	}

	employeeToken := loginAsEmployee(t, api)
	rec = doJSON(t, api, http.MethodPost, "/productos", employeeToken, create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for employee, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func registerCustomer(t *testing.T, api *API, email string) string {
	t.Helper()

	rec := doJSON(t, api, http.MethodPost, "/auth/registro", "", domain.RegisterRequest{
		Name:     "Cliente Test",
		Email:    email,
		Password: "clave-segura",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s failed: %d %s", email, rec.Code, rec.Body.String())
	}
	return loginAs(t, api, email, "clave-segura")
}

func TestCartFlow(t *testing.T) {
	api, _ := newTestAPI(t)
	token := registerCustomer(t, api, "carrito@example.com")

	rec := doJSON(t, api, http.MethodPost, "/carrito/items", token, domain.CartAddRequest{ProductID: "prod-pelota-01", Qty: 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("add to cart: %d %s", rec.Code, rec.Body.String())
	}
	var cart domain.Cart
	if err := json.NewDecoder(rec.Body).Decode(&cart); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if cart.TotalCents != cart.SubtotalCents+cart.TaxCents {
		t.Fatalf("cart totals inconsistent: %+v", cart)
	}

	rec = doJSON(t, api, http.MethodPut, "/carrito/items/prod-pelota-01", token, domain.CartUpdateRequest{Qty: 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("zero-qty update: %d %s", rec.Code, rec.Body.String())
	}
	if err := json.NewDecoder(rec.Body).Decode(&cart); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("zero qty must remove the line, got %d items", len(cart.Items))
	}

	rec = doJSON(t, api, http.MethodPost, "/carrito/items", token, domain.CartAddRequest{ProductID: "prod-vitaminas-01", Qty: 999})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for qty above stock, got %d", rec.Code)
	}
}

func TestWebhookFulfillsPaidCheckout(t *testing.T) {
	api, gateway := newTestAPI(t)
	token := registerCustomer(t, api, "pagador@example.com")

	if rec := doJSON(t, api, http.MethodPost, "/carrito/items", token, domain.CartAddRequest{ProductID: "prod-correa-01", Qty: 1}); rec.Code != http.StatusOK {
		t.Fatalf("add to cart: %d %s", rec.Code, rec.Body.String())
	}

	rec := doJSON(t, api, http.MethodPost, "/mercadopago/checkout", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: %d %s", rec.Code, rec.Body.String())
	}
	var checkout domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&checkout); err != nil {
		t.Fatalf("decode checkout: %v", err)
	}
	if checkout.InitPoint == "" {
		t.Fatalf("expected init point")
	}

	gateway.payments["314159"] = &payment.Payment{
		Status:            domain.PaymentApproved,
		ExternalReference: checkout.SessionID,
	}

	req := signedWebhookRequest(t, "314159")
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("webhook: %d %s", res.Code, res.Body.String())
	}

	employeeToken := loginAsEmployee(t, api)
	rec = doJSON(t, api, http.MethodGet, "/ventas", employeeToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list sales: %d %s", rec.Code, rec.Body.String())
	}
	var listing map[string][]domain.Sale
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatalf("decode sales: %v", err)
	}
	if len(listing["ventas"]) != 1 {
		t.Fatalf("expected one sale, got %d", len(listing["ventas"]))
	}
	if listing["ventas"][0].PaymentID != "314159" {
		t.Fatalf("unexpected payment id %s", listing["ventas"][0].PaymentID)
	}
}

func TestDeliveryEndpointAdvancesStatus(t *testing.T) {
	api, gateway := newTestAPI(t)
	token := registerCustomer(t, api, "envio@example.com")

	if rec := doJSON(t, api, http.MethodPost, "/carrito/items", token, domain.CartAddRequest{ProductID: "prod-arena-01", Qty: 1}); rec.Code != http.StatusOK {
		t.Fatalf("add to cart: %d", rec.Code)
	}
	rec := doJSON(t, api, http.MethodPost, "/mercadopago/checkout", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: %d", rec.Code)
	}
	var checkout domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&checkout); err != nil {
		t.Fatalf("decode checkout: %v", err)
	}
	gateway.payments["271828"] = &payment.Payment{
		Status:            domain.PaymentApproved,
		ExternalReference: checkout.SessionID,
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, signedWebhookRequest(t, "271828"))
	if res.Code != http.StatusOK {
		t.Fatalf("webhook: %d %s", res.Code, res.Body.String())
	}

	employeeToken := loginAsEmployee(t, api)
	rec = doJSON(t, api, http.MethodGet, "/ventas", employeeToken, nil)
	var listing map[string][]domain.Sale
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatalf("decode sales: %v", err)
	}
	saleID := listing["ventas"][0].ID

	rec = doJSON(t, api, http.MethodPost, "/ventas/"+saleID+"/envio", employeeToken, domain.DeliveryUpdateRequest{Status: domain.DeliveryInTransit})
	if rec.Code != http.StatusOK {
		t.Fatalf("move to in-transit: %d %s", rec.Code, rec.Body.String())
	}
	var sale domain.Sale
	if err := json.NewDecoder(rec.Body).Decode(&sale); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if sale.DeliveryStatus != domain.DeliveryInTransit || sale.ShippedAt == nil {
		t.Fatalf("expected in-transit with shipped timestamp, got %+v", sale)
	}

	// Backwards transition is a 400.
	rec = doJSON(t, api, http.MethodPost, "/ventas/"+saleID+"/envio", employeeToken, domain.DeliveryUpdateRequest{Status: domain.DeliveryInTransit})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on repeated transition, got %d", rec.Code)
	}
}

func TestManualInvoiceEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)
	employeeToken := loginAsEmployee(t, api)

	rec := doJSON(t, api, http.MethodPost, "/facturas", employeeToken, domain.ManualInvoiceRequest{
		CustomerName:  "Cliente Mostrador",
		PaymentMethod: domain.PaymentMethodCash,
		Items:         []domain.ManualInvoiceItem{{ProductID: "prod-latas-01", Qty: 3}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("manual invoice: %d %s", rec.Code, rec.Body.String())
	}
	var resp domain.ManualInvoiceResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SaleID == "" || len(resp.Invoice.Items) != 1 {
		t.Fatalf("unexpected invoice response: %+v", resp)
	}
}

func TestDashboardRequiresAdmin(t *testing.T) {
	api, _ := newTestAPI(t)

	employeeToken := loginAsEmployee(t, api)
	if rec := doJSON(t, api, http.MethodGet, "/dashboard/resumen", employeeToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee, got %d", rec.Code)
	}

	adminToken := loginAsAdmin(t, api)
	rec := doJSON(t, api, http.MethodGet, "/dashboard/resumen", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var summary domain.DashboardSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.ProductCount == 0 {
		t.Fatalf("expected seeded products in summary")
	}
}

func TestCustomerCannotListCustomers(t *testing.T) {
	api, _ := newTestAPI(t)
	token := registerCustomer(t, api, "curioso@example.com")

	if rec := doJSON(t, api, http.MethodGet, "/clientes", token, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
