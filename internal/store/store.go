// Package store defines the persistence interface implemented by the
// postgres and memory backends.
package store

import (
	"context"
	"errors"
	"time"

	"patitas/backend/internal/domain"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when a customer or employee email
	// (or employee national id) is already taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInsufficientStock is returned by conditional stock decrements.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicateSale is returned when a sale with the same payment id
	// already exists; callers treat it as already processed.
	ErrDuplicateSale = errors.New("sale already recorded for payment")
	// ErrInvalid is returned for malformed input the store cannot persist.
	ErrInvalid = errors.New("invalid input")
)

// Repository is the full persistence surface. Implementations must be
// safe for concurrent use.
type Repository interface {
	// Customers.
	CreateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	UpdateCustomerPassword(ctx context.Context, id, passwordHash string) error

	// Employees.
	CreateEmployee(ctx context.Context, e domain.Employee) (*domain.Employee, error)
	GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error)
	GetEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error)
	ListEmployees(ctx context.Context) ([]domain.Employee, error)
	UpdateEmployee(ctx context.Context, e domain.Employee) (*domain.Employee, error)
	DeleteEmployee(ctx context.Context, id string) error
	UpdateEmployeePassword(ctx context.Context, id, passwordHash string) error

	// MigratePlaintextCredentials rehashes every stored credential that is
	// not already a bcrypt hash and returns how many were migrated.
	MigratePlaintextCredentials(ctx context.Context, hash func(plain string) (string, error)) (int, error)

	// Products.
	CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	ListProducts(ctx context.Context, category string) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	// DecrementStockClamped subtracts up to qty units, flooring at zero,
	// and returns how many units were actually applied.
	DecrementStockClamped(ctx context.Context, productID string, qty int) (int, error)

	// Carts. GetCartByCustomer returns ErrNotFound when the customer has
	// no cart yet; SaveCart upserts by customer id.
	GetCartByCustomer(ctx context.Context, customerID string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart domain.Cart) (*domain.Cart, error)
	DeleteCart(ctx context.Context, customerID string) error

	// Checkout sessions.
	CreateCheckoutSession(ctx context.Context, s domain.CheckoutSession) error
	GetCheckoutSession(ctx context.Context, id string) (*domain.CheckoutSession, error)
	DeleteCheckoutSession(ctx context.Context, id string) error

	// Sales. CreateSale returns ErrDuplicateSale when the payment id has
	// already been claimed.
	CreateSale(ctx context.Context, s domain.Sale) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	GetSaleByPaymentID(ctx context.Context, paymentID string) (*domain.Sale, error)
	ListSales(ctx context.Context, deliveryStatus string, limit int) ([]domain.Sale, error)
	UpdateDeliveryStatus(ctx context.Context, saleID, status string, at time.Time) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id string) error

	// Invoices. CreateInvoiceWithStock decrements stock for every line
	// atomically with the insert; any shortfall fails the whole call with
	// ErrInsufficientStock.
	CreateInvoiceWithStock(ctx context.Context, inv domain.Invoice) (*domain.Invoice, error)
	GetInvoiceByID(ctx context.Context, id string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, limit int) ([]domain.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error

	// Dashboard.
	GetDashboardSummary(ctx context.Context, from, to time.Time, lowStockBelow int) (*domain.DashboardSummary, error)
}
