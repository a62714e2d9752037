// Package service implements the business logic between the HTTP layer
// and the repository: catalog, carts, checkout, fulfillment, invoicing,
// sales and the dashboard.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"patitas/backend/internal/cache"
	"patitas/backend/internal/domain"
	"patitas/backend/internal/mailer"
	"patitas/backend/internal/payment"
	"patitas/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const (
	lowStockThreshold = 5
	emailSendTimeout  = 30 * time.Second
)

type Service struct {
	repo           store.Repository
	gateway        payment.Gateway
	mail           mailer.Mailer
	catalog        cache.CatalogCache
	taxRatePercent float64
	catalogTTL     time.Duration
}

func New(repo store.Repository, gateway payment.Gateway, mail mailer.Mailer, catalog cache.CatalogCache, taxRatePercent float64, catalogTTL time.Duration) *Service {
	if taxRatePercent <= 0 {
		taxRatePercent = 19
	}
	if catalog == nil {
		catalog = cache.NoopCatalogCache{}
	}
	if mail == nil {
		mail = mailer.NoopMailer{}
	}

	return &Service{
		repo:           repo,
		gateway:        gateway,
		mail:           mail,
		catalog:        catalog,
		taxRatePercent: taxRatePercent,
		catalogTTL:     catalogTTL,
	}
}

// TaxRatePercent exposes the canonical tax rate applied to every total.
func (s *Service) TaxRatePercent() float64 {
	return s.taxRatePercent
}

// SandboxMode reports whether the payment gateway runs on a test token.
func (s *Service) SandboxMode() bool {
	return s.gateway != nil && s.gateway.SandboxMode()
}

// ---- catalog ----

func (s *Service) ListProducts(ctx context.Context, category string) ([]domain.Product, error) {
	if category != "" && !domain.ValidCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %s", store.ErrInvalid, category)
	}

	cacheKey := category
	if cacheKey == "" {
		cacheKey = "all"
	}
	if cached, ok, err := s.catalog.Get(ctx, cacheKey); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: catalog cache get failed: %v", err)
	}

	products, err := s.repo.ListProducts(ctx, category)
	if err != nil {
		return nil, err
	}
	if s.catalogTTL > 0 {
		if err := s.catalog.Set(ctx, cacheKey, products, s.catalogTTL); err != nil {
			log.Printf("[service] WARN: catalog cache set failed: %v", err)
		}
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: product name required", store.ErrInvalid)
	}
	if !domain.ValidCategory(req.Category) {
		return nil, fmt.Errorf("%w: unknown category %s", store.ErrInvalid, req.Category)
	}
	if req.PriceCents < 1 {
		return nil, fmt.Errorf("%w: price must be positive", store.ErrInvalid)
	}
	if req.Stock < 0 {
		return nil, fmt.Errorf("%w: stock cannot be negative", store.ErrInvalid)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:          req.Name,
		Description:   strings.TrimSpace(req.Description),
		Category:      req.Category,
		PriceCents:    req.PriceCents,
		Stock:         req.Stock,
		ImageURL:      req.ImageURL,
		ImagePublicID: req.ImagePublicID,
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	current, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		current.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		current.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		current.Category = *req.Category
	}
	if req.PriceCents != nil {
		current.PriceCents = *req.PriceCents
	}
	if req.Stock != nil {
		current.Stock = *req.Stock
	}
	if req.ImageURL != nil {
		current.ImageURL = *req.ImageURL
	}
	if req.ImagePublicID != nil {
		current.ImagePublicID = *req.ImagePublicID
	}
	if current.Name == "" {
		return nil, fmt.Errorf("%w: product name required", store.ErrInvalid)
	}

	saved, err := s.repo.UpdateProduct(ctx, *current)
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if err := s.catalog.Invalidate(ctx); err != nil {
		log.Printf("[service] WARN: catalog cache invalidate failed: %v", err)
	}
}

// ---- customers ----

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.repo.GetCustomerByID(ctx, id)
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (*domain.Customer, error) {
	current, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		current.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		current.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		current.Address = strings.TrimSpace(*req.Address)
	}
	if req.Role != nil {
		if *req.Role != domain.RoleCustomer && *req.Role != domain.RoleAdmin {
			return nil, fmt.Errorf("%w: unknown role %s", store.ErrInvalid, *req.Role)
		}
		current.Role = *req.Role
	}
	if current.Name == "" {
		return nil, fmt.Errorf("%w: name required", store.ErrInvalid)
	}

	return s.repo.UpdateCustomer(ctx, *current)
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	return s.repo.DeleteCustomer(ctx, id)
}

// ---- employees ----

func (s *Service) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	return s.repo.ListEmployees(ctx)
}

func (s *Service) GetEmployee(ctx context.Context, id string) (*domain.Employee, error) {
	return s.repo.GetEmployeeByID(ctx, id)
}

// CreateEmployee expects Password to already be a bcrypt hash.
func (s *Service) CreateEmployee(ctx context.Context, e domain.Employee) (*domain.Employee, error) {
	e.Name = strings.TrimSpace(e.Name)
	e.Email = strings.ToLower(strings.TrimSpace(e.Email))
	e.NationalID = strings.TrimSpace(e.NationalID)
	if e.Name == "" || e.Email == "" || e.NationalID == "" || e.Password == "" {
		return nil, fmt.Errorf("%w: name, email, national id and password required", store.ErrInvalid)
	}
	return s.repo.CreateEmployee(ctx, e)
}

func (s *Service) UpdateEmployee(ctx context.Context, id string, req domain.EmployeeUpdateRequest) (*domain.Employee, error) {
	current, err := s.repo.GetEmployeeByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		current.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		current.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		current.Address = strings.TrimSpace(*req.Address)
	}
	if current.Name == "" {
		return nil, fmt.Errorf("%w: name required", store.ErrInvalid)
	}

	return s.repo.UpdateEmployee(ctx, *current)
}

func (s *Service) DeleteEmployee(ctx context.Context, id string) error {
	return s.repo.DeleteEmployee(ctx, id)
}

// ---- cart ----

// Cart returns the customer's cart with stale lines dropped and totals
// recomputed. Customers without a cart get an empty one.
func (s *Service) Cart(ctx context.Context, customerID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCartByCustomer(ctx, customerID)
	if errors.Is(err, store.ErrNotFound) {
		return &domain.Cart{CustomerID: customerID, Items: []domain.CartItem{}}, nil
	}
	if err != nil {
		return nil, err
	}

	changed, err := s.refreshCart(ctx, cart)
	if err != nil {
		return nil, err
	}
	if changed {
		return s.repo.SaveCart(ctx, *cart)
	}
	return cart, nil
}

func (s *Service) AddToCart(ctx context.Context, customerID string, req domain.CartAddRequest) (*domain.Cart, error) {
	if req.ProductID == "" {
		return nil, fmt.Errorf("%w: product_id required", store.ErrInvalid)
	}
	if req.Qty < 1 {
		return nil, fmt.Errorf("%w: qty must be at least 1", store.ErrInvalid)
	}

	product, err := s.repo.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	cart, err := s.Cart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == req.ProductID {
			newQty := cart.Items[i].Qty + req.Qty
			if newQty > product.Stock {
				return nil, fmt.Errorf("%w: only %d units of %s available", store.ErrInsufficientStock, product.Stock, product.Name)
			}
			cart.Items[i].Qty = newQty
			found = true
			break
		}
	}
	if !found {
		if req.Qty > product.Stock {
			return nil, fmt.Errorf("%w: only %d units of %s available", store.ErrInsufficientStock, product.Stock, product.Name)
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID:      product.ID,
			Name:           product.Name,
			Qty:            req.Qty,
			UnitPriceCents: product.PriceCents,
		})
	}

	s.recalcTotals(cart)
	return s.repo.SaveCart(ctx, *cart)
}

// UpdateCartItem sets the quantity of a line; zero or negative removes it.
func (s *Service) UpdateCartItem(ctx context.Context, customerID, productID string, qty int) (*domain.Cart, error) {
	cart, err := s.Cart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("%w: product %s not in cart", store.ErrNotFound, productID)
	}

	if qty <= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	} else {
		product, err := s.repo.GetProductByID(ctx, productID)
		if err != nil {
			return nil, err
		}
		if qty > product.Stock {
			return nil, fmt.Errorf("%w: only %d units of %s available", store.ErrInsufficientStock, product.Stock, product.Name)
		}
		cart.Items[idx].Qty = qty
	}

	s.recalcTotals(cart)
	return s.repo.SaveCart(ctx, *cart)
}

func (s *Service) RemoveCartItem(ctx context.Context, customerID, productID string) (*domain.Cart, error) {
	return s.UpdateCartItem(ctx, customerID, productID, 0)
}

func (s *Service) ClearCart(ctx context.Context, customerID string) error {
	return s.repo.DeleteCart(ctx, customerID)
}

// refreshCart drops lines whose product no longer exists and refreshes
// line names. Captured unit prices are kept. Returns whether anything
// changed.
func (s *Service) refreshCart(ctx context.Context, cart *domain.Cart) (bool, error) {
	if len(cart.Items) == 0 {
		return false, nil
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return false, err
	}

	changed := false
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		product, ok := products[item.ProductID]
		if !ok {
			changed = true
			continue
		}
		if item.Name != product.Name {
			item.Name = product.Name
			changed = true
		}
		kept = append(kept, item)
	}
	cart.Items = kept
	if changed {
		s.recalcTotals(cart)
	}
	return changed, nil
}

func (s *Service) recalcTotals(cart *domain.Cart) {
	var subtotal int64
	for _, item := range cart.Items {
		subtotal += item.UnitPriceCents * int64(item.Qty)
	}
	cart.SubtotalCents = subtotal
	cart.TaxCents = s.taxCents(subtotal)
	cart.TotalCents = subtotal + cart.TaxCents
}

func (s *Service) taxCents(subtotal int64) int64 {
	return int64(math.Round(float64(subtotal) * s.taxRatePercent / 100))
}

// ---- checkout ----

// StartCheckout re-validates the cart against current stock, records an
// opaque checkout session and creates the gateway preference. The cart is
// not mutated; stock moves only after the payment is confirmed.
func (s *Service) StartCheckout(ctx context.Context, customerID string) (*domain.CheckoutResponse, error) {
	if s.gateway == nil {
		return nil, payment.ErrGatewayDisabled
	}

	cart, err := s.Cart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", store.ErrInvalid)
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range cart.Items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
		if item.Qty > product.Stock {
			return nil, fmt.Errorf("%w: only %d units of %s available", store.ErrInsufficientStock, product.Stock, product.Name)
		}
	}

	sessionID := uuid.NewString()
	if err := s.repo.CreateCheckoutSession(ctx, domain.CheckoutSession{
		ID:         sessionID,
		CustomerID: customerID,
	}); err != nil {
		return nil, err
	}

	items := make([]payment.PreferenceItem, 0, len(cart.Items)+1)
	for _, item := range cart.Items {
		items = append(items, payment.PreferenceItem{
			ID:        item.ProductID,
			Title:     item.Name,
			Quantity:  item.Qty,
			UnitPrice: centsToUnits(item.UnitPriceCents),
		})
	}
	if cart.TaxCents > 0 {
		items = append(items, payment.PreferenceItem{
			Title:     fmt.Sprintf("IVA (%.0f%%)", s.taxRatePercent),
			Quantity:  1,
			UnitPrice: centsToUnits(cart.TaxCents),
		})
	}

	pref, err := s.gateway.CreatePreference(ctx, sessionID, items)
	if err != nil {
		// The session is useless without a preference.
		_ = s.repo.DeleteCheckoutSession(ctx, sessionID)
		return nil, fmt.Errorf("create preference: %w", err)
	}

	initPoint := pref.InitPoint
	if s.gateway.SandboxMode() && pref.SandboxInitPoint != "" {
		initPoint = pref.SandboxInitPoint
	}
	return &domain.CheckoutResponse{SessionID: sessionID, InitPoint: initPoint}, nil
}

// ProcessPayment turns a confirmed gateway payment into a sale. It is
// idempotent on the payment id: the sale row is claimed before any side
// effect, so replayed webhooks and the return redirect can race safely.
func (s *Service) ProcessPayment(ctx context.Context, paymentID string) (*domain.Sale, error) {
	if s.gateway == nil {
		return nil, payment.ErrGatewayDisabled
	}
	if paymentID == "" {
		return nil, fmt.Errorf("%w: payment id required", store.ErrInvalid)
	}

	p, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("fetch payment %s: %w", paymentID, err)
	}
	if p.Status != domain.PaymentApproved {
		log.Printf("[service] payment %s has status %s, skipping fulfillment", paymentID, p.Status)
		return nil, nil
	}

	// Replays arrive after the session and cart are gone; answer them from
	// the recorded sale.
	if existing, err := s.repo.GetSaleByPaymentID(ctx, paymentID); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	session, err := s.repo.GetCheckoutSession(ctx, p.ExternalReference)
	if err != nil {
		return nil, fmt.Errorf("resolve checkout session %q: %w", p.ExternalReference, err)
	}

	customer, err := s.repo.GetCustomerByID(ctx, session.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("resolve customer %s: %w", session.CustomerID, err)
	}
	cart, err := s.Cart(ctx, session.CustomerID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, fmt.Errorf("%w: cart for session %s is empty", store.ErrInvalid, session.ID)
	}

	lines := make([]domain.InvoiceLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, domain.InvoiceLine{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			SubtotalCents:  item.UnitPriceCents * int64(item.Qty),
		})
	}

	sale, err := s.repo.CreateSale(ctx, domain.Sale{
		PaymentID:      paymentID,
		CustomerID:     customer.ID,
		CustomerName:   customer.Name,
		CustomerEmail:  customer.Email,
		Items:          lines,
		SubtotalCents:  cart.SubtotalCents,
		TaxCents:       cart.TaxCents,
		TotalCents:     cart.TotalCents,
		PaymentStatus:  domain.PaymentApproved,
		DeliveryStatus: domain.DeliveryUnfulfilled,
	})
	if errors.Is(err, store.ErrDuplicateSale) {
		existing, lookupErr := s.repo.GetSaleByPaymentID(ctx, paymentID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		log.Printf("[service] payment %s already processed as sale %s", paymentID, existing.ID)
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	// Payment is captured; decrement what is available and flag shortfalls
	// for manual follow-up instead of failing the sale.
	for _, line := range lines {
		applied, err := s.repo.DecrementStockClamped(ctx, line.ProductID, line.Qty)
		if err != nil {
			log.Printf("[service] WARN: stock decrement failed for %s on sale %s: %v", line.ProductID, sale.ID, err)
			continue
		}
		if applied < line.Qty {
			log.Printf("[service] WARN: oversold %s on sale %s: wanted %d, applied %d", line.ProductID, sale.ID, line.Qty, applied)
		}
	}

	go s.emailInvoice(*sale)

	if err := s.repo.DeleteCart(ctx, customer.ID); err != nil {
		log.Printf("[service] WARN: clearing cart for %s failed: %v", customer.ID, err)
	}
	if err := s.repo.DeleteCheckoutSession(ctx, session.ID); err != nil {
		log.Printf("[service] WARN: deleting checkout session %s failed: %v", session.ID, err)
	}

	return sale, nil
}

func (s *Service) emailInvoice(sale domain.Sale) {
	ctx, cancel := context.WithTimeout(context.Background(), emailSendTimeout)
	defer cancel()

	if err := s.mail.SendSaleInvoice(ctx, sale); err != nil {
		log.Printf("[service] WARN: invoice email for sale %s failed: %v", sale.ID, err)
	}
}

func centsToUnits(cents int64) float64 {
	return float64(cents) / 100
}

// ---- manual invoicing ----

// CreateManualInvoice records an over-the-counter sale: stock moves
// atomically with the invoice, and a pre-delivered sale is synthesized so
// the order shows up in sales reporting.
func (s *Service) CreateManualInvoice(ctx context.Context, req domain.ManualInvoiceRequest) (*domain.ManualInvoiceResponse, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item required", store.ErrInvalid)
	}
	if !domain.ValidPaymentMethod(req.PaymentMethod) {
		return nil, fmt.Errorf("%w: unknown payment method %s", store.ErrInvalid, req.PaymentMethod)
	}

	customerName := strings.TrimSpace(req.CustomerName)
	customerEmail := strings.TrimSpace(req.CustomerEmail)
	if req.CustomerID != "" {
		customer, err := s.repo.GetCustomerByID(ctx, req.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("resolve customer %s: %w", req.CustomerID, err)
		}
		customerName = customer.Name
		customerEmail = customer.Email
	}
	if customerName == "" {
		return nil, fmt.Errorf("%w: customer name required", store.ErrInvalid)
	}

	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Qty < 1 {
			return nil, fmt.Errorf("%w: qty must be at least 1", store.ErrInvalid)
		}
		ids = append(ids, item.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var subtotal int64
	lines := make([]domain.InvoiceLine, 0, len(req.Items))
	for _, item := range req.Items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
		lineSubtotal := product.PriceCents * int64(item.Qty)
		subtotal += lineSubtotal
		lines = append(lines, domain.InvoiceLine{
			ProductID:      product.ID,
			Name:           product.Name,
			Qty:            item.Qty,
			UnitPriceCents: product.PriceCents,
			SubtotalCents:  lineSubtotal,
		})
	}

	tax := s.taxCents(subtotal)
	invoice, err := s.repo.CreateInvoiceWithStock(ctx, domain.Invoice{
		CustomerID:    req.CustomerID,
		CustomerName:  customerName,
		CustomerEmail: customerEmail,
		Items:         lines,
		SubtotalCents: subtotal,
		TaxCents:      tax,
		TotalCents:    subtotal + tax,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)

	now := time.Now().UTC()
	sale, err := s.repo.CreateSale(ctx, domain.Sale{
		PaymentID:      "manual-" + invoice.ID,
		CustomerID:     req.CustomerID,
		CustomerName:   customerName,
		CustomerEmail:  customerEmail,
		Items:          lines,
		SubtotalCents:  subtotal,
		TaxCents:       tax,
		TotalCents:     subtotal + tax,
		PaymentStatus:  domain.PaymentApproved,
		DeliveryStatus: domain.DeliveryDelivered,
		ShippedAt:      &now,
		DeliveredAt:    &now,
	})
	if err != nil {
		return nil, fmt.Errorf("record sale for invoice %s: %w", invoice.ID, err)
	}

	if actor, ok := ActorFromContext(ctx); ok {
		log.Printf("[service] manual invoice %s issued by %s (%s): total=%d method=%s", invoice.ID, actor.Name, actor.ID, invoice.TotalCents, invoice.PaymentMethod)
	}
	return &domain.ManualInvoiceResponse{Invoice: *invoice, SaleID: sale.ID}, nil
}

func (s *Service) ListInvoices(ctx context.Context, limit int) ([]domain.Invoice, error) {
	return s.repo.ListInvoices(ctx, limit)
}

func (s *Service) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.repo.GetInvoiceByID(ctx, id)
}

func (s *Service) DeleteInvoice(ctx context.Context, id string) error {
	return s.repo.DeleteInvoice(ctx, id)
}

// ---- sales ----

func (s *Service) ListSales(ctx context.Context, deliveryStatus string, limit int) ([]domain.Sale, error) {
	if deliveryStatus != "" {
		switch deliveryStatus {
		case domain.DeliveryUnfulfilled, domain.DeliveryInTransit, domain.DeliveryDelivered:
		default:
			return nil, fmt.Errorf("%w: unknown delivery status %s", store.ErrInvalid, deliveryStatus)
		}
	}
	return s.repo.ListSales(ctx, deliveryStatus, limit)
}

func (s *Service) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return s.repo.GetSaleByID(ctx, id)
}

func (s *Service) UpdateDelivery(ctx context.Context, saleID, status string) (*domain.Sale, error) {
	switch status {
	case domain.DeliveryInTransit, domain.DeliveryDelivered:
	default:
		return nil, fmt.Errorf("%w: unknown delivery status %s", store.ErrInvalid, status)
	}

	sale, err := s.repo.UpdateDeliveryStatus(ctx, saleID, status, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if actor, ok := ActorFromContext(ctx); ok {
		log.Printf("[service] sale %s moved to %s by %s (%s)", saleID, status, actor.Name, actor.ID)
	}
	return sale, nil
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	return s.repo.DeleteSale(ctx, id)
}

// ---- dashboard ----

func (s *Service) DashboardSummary(ctx context.Context, from, to time.Time) (*domain.DashboardSummary, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must be before to", store.ErrInvalid)
	}
	return s.repo.GetDashboardSummary(ctx, from, to, lowStockThreshold)
}
