// Package httpapi exposes the storefront over HTTP/JSON and enforces
// authentication and role gating.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"patitas/backend/internal/domain"
	"patitas/backend/internal/payment"
	"patitas/backend/internal/service"
	"patitas/backend/internal/store"
)

type API struct {
	svc                   *service.Service
	auth                  *AuthManager
	allowedOrigin         string
	webhookSecret         string
	allowUnsignedWebhooks bool
	loginLimiter          *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin, webhookSecret string, allowUnsignedWebhooks bool) *API {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}

	return &API{
		svc:                   svc,
		auth:                  auth,
		allowedOrigin:         allowedOrigin,
		webhookSecret:         webhookSecret,
		allowUnsignedWebhooks: allowUnsignedWebhooks,
		loginLimiter:          newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/auth/registro", a.handleRegister)
	mux.HandleFunc("/auth/login", a.handleLogin)

	mux.HandleFunc("/clientes", a.requireAuth(a.handleCustomers, domain.RoleEmployee, domain.RoleAdmin))
	mux.HandleFunc("/clientes/", a.requireAuth(a.handleCustomerActions))
	mux.HandleFunc("/empleados", a.requireAuth(a.handleEmployees, domain.RoleAdmin))
	mux.HandleFunc("/empleados/", a.requireAuth(a.handleEmployeeActions, domain.RoleAdmin))

	mux.HandleFunc("/productos", a.handleProducts)
	mux.HandleFunc("/productos/", a.handleProductActions)

	mux.HandleFunc("/carrito", a.requireAuth(a.handleCart, domain.RoleCustomer, domain.RoleAdmin))
	mux.HandleFunc("/carrito/items", a.requireAuth(a.handleCartItems, domain.RoleCustomer, domain.RoleAdmin))
	mux.HandleFunc("/carrito/items/", a.requireAuth(a.handleCartItemActions, domain.RoleCustomer, domain.RoleAdmin))

	mux.HandleFunc("/mercadopago/checkout", a.requireAuth(a.handleCheckout, domain.RoleCustomer, domain.RoleAdmin))
	mux.HandleFunc("/mercadopago/webhook", a.handleWebhook)
	mux.HandleFunc("/mercadopago/success", a.handlePaymentSuccess)
	mux.HandleFunc("/mercadopago/failure", a.handlePaymentFailure)
	mux.HandleFunc("/mercadopago/pending", a.handlePaymentPending)

	mux.HandleFunc("/facturas", a.requireAuth(a.handleInvoices, domain.RoleEmployee, domain.RoleAdmin))
	mux.HandleFunc("/facturas/", a.requireAuth(a.handleInvoiceActions, domain.RoleEmployee, domain.RoleAdmin))
	mux.HandleFunc("/ventas", a.requireAuth(a.handleSales, domain.RoleEmployee, domain.RoleAdmin))
	mux.HandleFunc("/ventas/", a.requireAuth(a.handleSaleActions, domain.RoleEmployee, domain.RoleAdmin))

	mux.HandleFunc("/dashboard/resumen", a.requireAuth(a.handleDashboard, domain.RoleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// ---- auth ----

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	customer, err := a.auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts, try again later"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errInvalidCredentials)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---- customers ----

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	customers, err := a.svc.ListCustomers(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clientes": customers})
}

func (a *API) handleCustomerActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/clientes/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("unknown customer path"))
		return
	}

	actor, _ := service.ActorFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		if actor.Role == domain.RoleCustomer && actor.ID != id {
			writeError(w, http.StatusForbidden, errors.New("forbidden"))
			return
		}
		customer, err := a.svc.GetCustomer(r.Context(), id)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, customer)
	case http.MethodPut:
		var req domain.CustomerUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		// Customers may edit their own profile but never their role.
		if actor.Role != domain.RoleAdmin {
			if actor.ID != id || req.Role != nil {
				writeError(w, http.StatusForbidden, errors.New("forbidden"))
				return
			}
		}
		customer, err := a.svc.UpdateCustomer(r.Context(), id, req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, customer)
	case http.MethodDelete:
		if actor.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, errors.New("admin role required"))
			return
		}
		if err := a.svc.DeleteCustomer(r.Context(), id); err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mensaje": "cliente eliminado"})
	default:
		writeMethodNotAllowed(w)
	}
}

// ---- employees ----

func (a *API) handleEmployees(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		employees, err := a.svc.ListEmployees(r.Context())
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"empleados": employees})
	case http.MethodPost:
		var req domain.EmployeeCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if len(req.Password) < 6 {
			writeError(w, http.StatusBadRequest, errors.New("password must be at least 6 characters"))
			return
		}
		hash, err := HashPassword(req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		employee, err := a.svc.CreateEmployee(r.Context(), domain.Employee{
			NationalID: req.NationalID,
			Name:       req.Name,
			Email:      req.Email,
			Password:   hash,
			Phone:      req.Phone,
			Address:    req.Address,
		})
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, employee)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleEmployeeActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/empleados/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("unknown employee path"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		employee, err := a.svc.GetEmployee(r.Context(), id)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, employee)
	case http.MethodPut:
		var req domain.EmployeeUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		employee, err := a.svc.UpdateEmployee(r.Context(), id, req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, employee)
	case http.MethodDelete:
		if err := a.svc.DeleteEmployee(r.Context(), id); err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mensaje": "empleado eliminado"})
	default:
		writeMethodNotAllowed(w)
	}
}

// ---- products ----

// Catalog reads are public; mutations require an employee or admin token.
func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.svc.ListProducts(r.Context(), strings.TrimSpace(r.URL.Query().Get("categoria")))
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"productos": products})
	case http.MethodPost:
		a.requireAuth(a.handleProductCreate, domain.RoleEmployee, domain.RoleAdmin)(w, r)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	product, err := a.svc.CreateProduct(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/productos/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("unknown product path"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		product, err := a.svc.GetProduct(r.Context(), id)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	case http.MethodPut:
		a.requireAuth(func(w http.ResponseWriter, r *http.Request) {
			var req domain.ProductUpdateRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			product, err := a.svc.UpdateProduct(r.Context(), id, req)
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			writeJSON(w, http.StatusOK, product)
		}, domain.RoleEmployee, domain.RoleAdmin)(w, r)
	case http.MethodDelete:
		a.requireAuth(func(w http.ResponseWriter, r *http.Request) {
			if err := a.svc.DeleteProduct(r.Context(), id); err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"mensaje": "producto eliminado"})
		}, domain.RoleEmployee, domain.RoleAdmin)(w, r)
	default:
		writeMethodNotAllowed(w)
	}
}

// ---- cart ----

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	actor, _ := service.ActorFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		cart, err := a.svc.Cart(r.Context(), actor.ID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	case http.MethodDelete:
		if err := a.svc.ClearCart(r.Context(), actor.ID); err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mensaje": "carrito vaciado"})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCartItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	actor, _ := service.ActorFromContext(r.Context())

	var req domain.CartAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cart, err := a.svc.AddToCart(r.Context(), actor.ID, req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (a *API) handleCartItemActions(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimPrefix(r.URL.Path, "/carrito/items/")
	if productID == "" || strings.Contains(productID, "/") {
		writeError(w, http.StatusNotFound, errors.New("unknown cart item path"))
		return
	}
	actor, _ := service.ActorFromContext(r.Context())

	switch r.Method {
	case http.MethodPut:
		var req domain.CartUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		cart, err := a.svc.UpdateCartItem(r.Context(), actor.ID, productID, req.Qty)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	case http.MethodDelete:
		cart, err := a.svc.RemoveCartItem(r.Context(), actor.ID, productID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	default:
		writeMethodNotAllowed(w)
	}
}

// ---- checkout & payments ----

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	actor, _ := service.ActorFromContext(r.Context())

	resp, err := a.svc.StartCheckout(r.Context(), actor.ID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type webhookPayload struct {
	Type string `json:"type"`
	Data struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// handleWebhook processes gateway payment notifications. Verification is
// fail-closed: without a configured secret, notifications are rejected
// unless the insecure dev flag was set explicitly.
func (a *API) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var payloadData webhookPayload
	_ = json.Unmarshal(body, &payloadData)

	notificationType := payloadData.Type
	if notificationType == "" {
		notificationType = r.URL.Query().Get("type")
	}
	if notificationType == "" {
		notificationType = r.URL.Query().Get("topic")
	}

	dataID := r.URL.Query().Get("data.id")
	if dataID == "" {
		dataID = payloadData.Data.ID.String()
	}
	if dataID == "" || dataID == "0" {
		dataID = r.URL.Query().Get("id")
	}

	if !a.allowUnsignedWebhooks {
		err := payment.VerifyWebhookSignature(a.webhookSecret, r.Header.Get("X-Signature"), r.Header.Get("X-Request-Id"), dataID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, payment.ErrInvalidSignature)
			return
		}
	}

	if notificationType != "payment" || dataID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"mensaje": "notificacion ignorada"})
		return
	}

	if _, err := a.svc.ProcessPayment(r.Context(), dataID); err != nil {
		// Non-2xx makes the gateway redeliver; processing is idempotent.
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mensaje": "notificacion procesada"})
}

// handlePaymentSuccess is the browser return URL. Processing here races
// with the webhook; the payment-id claim makes the double call harmless.
func (a *API) handlePaymentSuccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	paymentID := r.URL.Query().Get("payment_id")
	if paymentID == "" {
		paymentID = r.URL.Query().Get("collection_id")
	}
	if paymentID == "" {
		writeError(w, http.StatusBadRequest, errors.New("payment_id required"))
		return
	}

	sale, err := a.svc.ProcessPayment(r.Context(), paymentID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	if sale == nil {
		writeJSON(w, http.StatusOK, map[string]any{"mensaje": "pago aun no aprobado"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mensaje": "pago procesado", "venta": sale})
}

func (a *API) handlePaymentFailure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mensaje": "pago no completado"})
}

// handlePaymentPending forwards to the success handler in sandbox mode,
// where test payments settle immediately but still return as pending.
func (a *API) handlePaymentPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if a.svc.SandboxMode() {
		http.Redirect(w, r, "/mercadopago/success?"+r.URL.RawQuery, http.StatusTemporaryRedirect)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mensaje": "pago pendiente de confirmacion"})
}

// ---- invoices ----

func (a *API) handleInvoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)
		invoices, err := a.svc.ListInvoices(r.Context(), limit)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"facturas": invoices})
	case http.MethodPost:
		var req domain.ManualInvoiceRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.svc.CreateManualInvoice(r.Context(), req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleInvoiceActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/facturas/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("unknown invoice path"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		invoice, err := a.svc.GetInvoice(r.Context(), id)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, invoice)
	case http.MethodDelete:
		actor, _ := service.ActorFromContext(r.Context())
		if actor.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, errors.New("admin role required"))
			return
		}
		if err := a.svc.DeleteInvoice(r.Context(), id); err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mensaje": "factura eliminada"})
	default:
		writeMethodNotAllowed(w)
	}
}

// ---- sales ----

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)
	sales, err := a.svc.ListSales(r.Context(), strings.TrimSpace(r.URL.Query().Get("estado")), limit)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ventas": sales})
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/ventas/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, errors.New("unknown sale path"))
		return
	}

	if action == "envio" {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.DeliveryUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.svc.UpdateDelivery(r.Context(), id, req.Status)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, sale)
		return
	}
	if action != "" {
		writeError(w, http.StatusNotFound, errors.New("unknown sale path"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		sale, err := a.svc.GetSale(r.Context(), id)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, sale)
	case http.MethodDelete:
		actor, _ := service.ActorFromContext(r.Context())
		if actor.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, errors.New("admin role required"))
			return
		}
		if err := a.svc.DeleteSale(r.Context(), id); err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mensaje": "venta eliminada"})
	default:
		writeMethodNotAllowed(w)
	}
}

// ---- dashboard ----

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	var from, to time.Time
	if raw := r.URL.Query().Get("desde"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("desde must be YYYY-MM-DD"))
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("hasta"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("hasta must be YYYY-MM-DD"))
			return
		}
		to = parsed.AddDate(0, 0, 1)
	}

	summary, err := a.svc.DashboardSummary(r.Context(), from, to)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ---- middleware & helpers ----

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateEmail), errors.Is(err, store.ErrDuplicateSale):
		return http.StatusConflict
	case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, payment.ErrInvalidSignature):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking internal
	// implementation details (stack traces, SQL errors, file paths, etc.).
	// 4xx responses are user-facing so we return the original error message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"mensaje": msg,
		"error":   true,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
