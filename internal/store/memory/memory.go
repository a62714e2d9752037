// Package memory implements store.Repository with in-process maps. It
// backs tests and dev/demo mode when DATABASE_URL is unset.
package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"patitas/backend/internal/domain"
	"patitas/backend/internal/store"
	"patitas/backend/internal/xid"
)

type Store struct {
	mu sync.RWMutex

	customersByID  map[string]domain.Customer
	employeesByID  map[string]domain.Employee
	productsByID   map[string]domain.Product
	cartByCustomer map[string]domain.Cart
	sessionsByID   map[string]domain.CheckoutSession
	salesByID      map[string]domain.Sale
	salesByPayment map[string]string
	invoicesByID   map[string]domain.Invoice
}

func New() *Store {
	return &Store{
		customersByID:  make(map[string]domain.Customer),
		employeesByID:  make(map[string]domain.Employee),
		productsByID:   make(map[string]domain.Product),
		cartByCustomer: make(map[string]domain.Cart),
		sessionsByID:   make(map[string]domain.CheckoutSession),
		salesByID:      make(map[string]domain.Sale),
		salesByPayment: make(map[string]string),
		invoicesByID:   make(map[string]domain.Invoice),
	}
}

// seedAccounts builds the initial dev/demo accounts. Credentials come from
// SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD; hardcoded defaults are
// used with a warning when unset. Production runs on PostgreSQL.
func seedAccounts(s *Store) {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	employeePwd := envOr("SEED_EMPLOYEE_PASSWORD", "empleado123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_EMPLOYEE_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_EMPLOYEE_PASSWORD to override.")
	}

	now := time.Now().UTC()

	adminHash, err := bcrypt.GenerateFromPassword([]byte(adminPwd), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed admin password: %v", err)
	}
	s.customersByID["cli-admin"] = domain.Customer{
		ID:        "cli-admin",
		Name:      "Admin",
		Email:     "admin@patitas.dev",
		Password:  string(adminHash),
		Role:      domain.RoleAdmin,
		CreatedAt: now,
	}

	employeeHash, err := bcrypt.GenerateFromPassword([]byte(employeePwd), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed employee password: %v", err)
	}
	s.employeesByID["emp-demo"] = domain.Employee{
		ID:         "emp-demo",
		NationalID: "100200300",
		Name:       "Empleado Demo",
		Email:      "empleado@patitas.dev",
		Password:   string(employeeHash),
		CreatedAt:  now,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	seedAccounts(s)

	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prod-croquetas-01", Name: "Croquetas Adulto 3kg", Category: domain.CategoryFood, PriceCents: 8990000, Stock: 40},
		{ID: "prod-croquetas-02", Name: "Croquetas Cachorro 1kg", Category: domain.CategoryFood, PriceCents: 3450000, Stock: 25},
		{ID: "prod-latas-01", Name: "Lata Gato Atun 160g", Category: domain.CategoryFood, PriceCents: 290000, Stock: 120},
		{ID: "prod-pelota-01", Name: "Pelota de Caucho", Category: domain.CategoryToys, PriceCents: 790000, Stock: 60},
		{ID: "prod-cuerda-01", Name: "Juguete de Cuerda", Category: domain.CategoryToys, PriceCents: 650000, Stock: 35},
		{ID: "prod-shampoo-01", Name: "Shampoo Antipulgas 250ml", Category: domain.CategoryHygiene, PriceCents: 1890000, Stock: 18},
		{ID: "prod-arena-01", Name: "Arena Sanitaria 4kg", Category: domain.CategoryHygiene, PriceCents: 2490000, Stock: 30},
		{ID: "prod-collar-01", Name: "Collar Ajustable M", Category: domain.CategoryAccessories, PriceCents: 1250000, Stock: 22},
		{ID: "prod-correa-01", Name: "Correa Retractil 5m", Category: domain.CategoryAccessories, PriceCents: 2990000, Stock: 15},
		{ID: "prod-antipulgas-01", Name: "Pipeta Antipulgas", Category: domain.CategoryHealth, PriceCents: 1590000, Stock: 50},
		{ID: "prod-vitaminas-01", Name: "Vitaminas Caninas x30", Category: domain.CategoryHealth, PriceCents: 2190000, Stock: 12},
	}
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		s.productsByID[p.ID] = p
	}
	return s
}

func (s *Store) Close() error { return nil }

// ---- customers ----

func (s *Store) CreateCustomer(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	if c.Name == "" || c.Email == "" || c.Password == "" {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.customersByID {
		if strings.EqualFold(existing.Email, c.Email) {
			return nil, store.ErrDuplicateEmail
		}
	}
	if c.ID == "" {
		c.ID = xid.New("cli")
	}
	if c.Role == "" {
		c.Role = domain.RoleCustomer
	}
	c.CreatedAt = time.Now().UTC()
	s.customersByID[c.ID] = c
	return &c, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetCustomerByEmail(_ context.Context, email string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customersByID {
		if strings.EqualFold(c.Email, email) {
			out := c
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool {
		return customers[i].CreatedAt.After(customers[j].CreatedAt)
	})
	return customers, nil
}

func (s *Store) UpdateCustomer(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customersByID[c.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	existing.Name = c.Name
	existing.Phone = c.Phone
	existing.Address = c.Address
	existing.Role = c.Role
	s.customersByID[c.ID] = existing
	return &existing, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customersByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.customersByID, id)
	delete(s.cartByCustomer, id)
	return nil
}

func (s *Store) UpdateCustomerPassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customersByID[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Password = passwordHash
	s.customersByID[id] = c
	return nil
}

// ---- employees ----

func (s *Store) CreateEmployee(_ context.Context, e domain.Employee) (*domain.Employee, error) {
	if e.Name == "" || e.Email == "" || e.Password == "" || e.NationalID == "" {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.employeesByID {
		if strings.EqualFold(existing.Email, e.Email) || existing.NationalID == e.NationalID {
			return nil, store.ErrDuplicateEmail
		}
	}
	if e.ID == "" {
		e.ID = xid.New("emp")
	}
	e.CreatedAt = time.Now().UTC()
	s.employeesByID[e.ID] = e
	return &e, nil
}

func (s *Store) GetEmployeeByID(_ context.Context, id string) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.employeesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s *Store) GetEmployeeByEmail(_ context.Context, email string) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.employeesByID {
		if strings.EqualFold(e.Email, email) {
			out := e
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListEmployees(_ context.Context) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employees := make([]domain.Employee, 0, len(s.employeesByID))
	for _, e := range s.employeesByID {
		employees = append(employees, e)
	}
	sort.Slice(employees, func(i, j int) bool {
		return employees[i].CreatedAt.After(employees[j].CreatedAt)
	})
	return employees, nil
}

func (s *Store) UpdateEmployee(_ context.Context, e domain.Employee) (*domain.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.employeesByID[e.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	existing.Name = e.Name
	existing.Phone = e.Phone
	existing.Address = e.Address
	s.employeesByID[e.ID] = existing
	return &existing, nil
}

func (s *Store) DeleteEmployee(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employeesByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.employeesByID, id)
	return nil
}

func (s *Store) UpdateEmployeePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.employeesByID[id]
	if !ok {
		return store.ErrNotFound
	}
	e.Password = passwordHash
	s.employeesByID[id] = e
	return nil
}

func (s *Store) MigratePlaintextCredentials(_ context.Context, hash func(plain string) (string, error)) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	migrated := 0
	for id, c := range s.customersByID {
		if isBcryptHash(c.Password) {
			continue
		}
		hashed, err := hash(c.Password)
		if err != nil {
			return migrated, err
		}
		c.Password = hashed
		s.customersByID[id] = c
		migrated++
	}
	for id, e := range s.employeesByID {
		if isBcryptHash(e.Password) {
			continue
		}
		hashed, err := hash(e.Password)
		if err != nil {
			return migrated, err
		}
		e.Password = hashed
		s.employeesByID[id] = e
		migrated++
	}
	return migrated, nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// ---- products ----

func (s *Store) CreateProduct(_ context.Context, p domain.Product) (*domain.Product, error) {
	if p.Name == "" || !domain.ValidCategory(p.Category) || p.PriceCents < 1 || p.Stock < 0 {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.productsByID[p.ID] = p
	return &p, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.productsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.productsByID[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) ListProducts(_ context.Context, category string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		if category != "" && p.Category != category {
			continue
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Category != products[j].Category {
			return products[i].Category < products[j].Category
		}
		return products[i].Name < products[j].Name
	})
	return products, nil
}

func (s *Store) UpdateProduct(_ context.Context, p domain.Product) (*domain.Product, error) {
	if !domain.ValidCategory(p.Category) || p.PriceCents < 1 || p.Stock < 0 {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.productsByID[p.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.productsByID[p.ID] = p
	return &p, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.productsByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.productsByID, id)
	return nil
}

func (s *Store) DecrementStockClamped(_ context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.productsByID[productID]
	if !ok {
		return 0, store.ErrNotFound
	}
	applied := qty
	if p.Stock < applied {
		applied = p.Stock
	}
	p.Stock -= applied
	p.UpdatedAt = time.Now().UTC()
	s.productsByID[productID] = p
	return applied, nil
}

// ---- carts ----

func (s *Store) GetCartByCustomer(_ context.Context, customerID string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, ok := s.cartByCustomer[customerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cart
	out.Items = append([]domain.CartItem(nil), cart.Items...)
	return &out, nil
}

func (s *Store) SaveCart(_ context.Context, cart domain.Cart) (*domain.Cart, error) {
	if cart.CustomerID == "" {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.cartByCustomer[cart.CustomerID]; ok {
		cart.ID = existing.ID
	} else if cart.ID == "" {
		cart.ID = xid.New("cart")
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	cart.UpdatedAt = time.Now().UTC()
	s.cartByCustomer[cart.CustomerID] = cart

	out := cart
	out.Items = append([]domain.CartItem(nil), cart.Items...)
	return &out, nil
}

func (s *Store) DeleteCart(_ context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cartByCustomer, customerID)
	return nil
}

// ---- checkout sessions ----

func (s *Store) CreateCheckoutSession(_ context.Context, sess domain.CheckoutSession) error {
	if sess.ID == "" || sess.CustomerID == "" {
		return store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess.CreatedAt = time.Now().UTC()
	s.sessionsByID[sess.ID] = sess
	return nil
}

func (s *Store) GetCheckoutSession(_ context.Context, id string) (*domain.CheckoutSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) DeleteCheckoutSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessionsByID, id)
	return nil
}

// ---- sales ----

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.PaymentID == "" {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByPayment[sale.PaymentID]; exists {
		return nil, store.ErrDuplicateSale
	}
	if sale.ID == "" {
		sale.ID = xid.New("venta")
	}
	if sale.DeliveryStatus == "" {
		sale.DeliveryStatus = domain.DeliveryUnfulfilled
	}
	sale.CreatedAt = time.Now().UTC()
	s.salesByID[sale.ID] = sale
	s.salesByPayment[sale.PaymentID] = sale.ID
	return &sale, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sale, nil
}

func (s *Store) GetSaleByPaymentID(_ context.Context, paymentID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.salesByPayment[paymentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale := s.salesByID[id]
	return &sale, nil
}

func (s *Store) ListSales(_ context.Context, deliveryStatus string, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if deliveryStatus != "" && sale.DeliveryStatus != deliveryStatus {
			continue
		}
		sales = append(sales, sale)
	}
	sort.Slice(sales, func(i, j int) bool {
		return sales[i].CreatedAt.After(sales[j].CreatedAt)
	})
	if len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) UpdateDeliveryStatus(_ context.Context, saleID, status string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !validDeliveryTransition(sale.DeliveryStatus, status) {
		return nil, fmt.Errorf("%w: delivery status %s cannot move to %s", store.ErrInvalid, sale.DeliveryStatus, status)
	}

	at = at.UTC()
	sale.DeliveryStatus = status
	switch status {
	case domain.DeliveryInTransit:
		if sale.ShippedAt == nil {
			sale.ShippedAt = &at
		}
	case domain.DeliveryDelivered:
		if sale.DeliveredAt == nil {
			sale.DeliveredAt = &at
		}
	}
	s.salesByID[saleID] = sale
	return &sale, nil
}

func validDeliveryTransition(from, to string) bool {
	switch from {
	case domain.DeliveryUnfulfilled:
		return to == domain.DeliveryInTransit
	case domain.DeliveryInTransit:
		return to == domain.DeliveryDelivered
	}
	return false
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.salesByID, id)
	delete(s.salesByPayment, sale.PaymentID)
	return nil
}

// ---- invoices ----

func (s *Store) CreateInvoiceWithStock(_ context.Context, inv domain.Invoice) (*domain.Invoice, error) {
	if len(inv.Items) == 0 {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every line before mutating anything so a shortfall leaves
	// all stock untouched.
	needed := make(map[string]int, len(inv.Items))
	for _, line := range inv.Items {
		needed[line.ProductID] += line.Qty
	}
	for id, qty := range needed {
		p, ok := s.productsByID[id]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
		}
		if p.Stock < qty {
			return nil, fmt.Errorf("%w: product %s", store.ErrInsufficientStock, id)
		}
	}
	for id, qty := range needed {
		p := s.productsByID[id]
		p.Stock -= qty
		p.UpdatedAt = time.Now().UTC()
		s.productsByID[id] = p
	}

	if inv.ID == "" {
		inv.ID = xid.New("fac")
	}
	inv.CreatedAt = time.Now().UTC()
	s.invoicesByID[inv.ID] = inv
	return &inv, nil
}

func (s *Store) GetInvoiceByID(_ context.Context, id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoicesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &inv, nil
}

func (s *Store) ListInvoices(_ context.Context, limit int) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoices := make([]domain.Invoice, 0, len(s.invoicesByID))
	for _, inv := range s.invoicesByID {
		invoices = append(invoices, inv)
	}
	sort.Slice(invoices, func(i, j int) bool {
		return invoices[i].CreatedAt.After(invoices[j].CreatedAt)
	})
	if len(invoices) > limit {
		invoices = invoices[:limit]
	}
	return invoices, nil
}

func (s *Store) DeleteInvoice(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoicesByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.invoicesByID, id)
	return nil
}

// ---- dashboard ----

func (s *Store) GetDashboardSummary(_ context.Context, from, to time.Time, lowStockBelow int) (*domain.DashboardSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &domain.DashboardSummary{From: from, To: to}
	deliveryCounts := make(map[string]int)

	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		deliveryCounts[sale.DeliveryStatus]++
		if sale.PaymentStatus != domain.PaymentApproved {
			continue
		}
		summary.SaleCount++
		summary.RevenueCents += sale.TotalCents
		summary.TaxCents += sale.TaxCents
	}
	for _, inv := range s.invoicesByID {
		if inv.CreatedAt.Before(from) || !inv.CreatedAt.Before(to) {
			continue
		}
		summary.InvoiceCount++
	}

	summary.ProductCount = len(s.productsByID)
	for _, p := range s.productsByID {
		if p.Stock < lowStockBelow {
			summary.LowStock = append(summary.LowStock, p)
		}
	}
	sort.Slice(summary.LowStock, func(i, j int) bool {
		if summary.LowStock[i].Stock != summary.LowStock[j].Stock {
			return summary.LowStock[i].Stock < summary.LowStock[j].Stock
		}
		return summary.LowStock[i].Name < summary.LowStock[j].Name
	})

	statuses := make([]string, 0, len(deliveryCounts))
	for status := range deliveryCounts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		summary.DeliveryCounts = append(summary.DeliveryCounts, domain.DeliveryStatusCount{
			Status: status,
			Count:  deliveryCounts[status],
		})
	}
	return summary, nil
}
