// Package domain holds the entities and request/response types shared by
// the store, service and HTTP layers.
package domain

import "time"

// Roles carried in access tokens. Employees always act with RoleEmployee;
// RoleAdmin is granted per customer account.
const (
	RoleCustomer = "customer"
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

// Account types distinguish which directory a token was issued from.
const (
	AccountTypeCustomer = "customer"
	AccountTypeEmployee = "employee"
)

// Product categories form a closed set.
const (
	CategoryFood        = "alimento"
	CategoryToys        = "juguetes"
	CategoryHygiene     = "higiene"
	CategoryAccessories = "accesorios"
	CategoryHealth      = "salud"
)

// ValidCategory reports whether c is one of the known product categories.
func ValidCategory(c string) bool {
	switch c {
	case CategoryFood, CategoryToys, CategoryHygiene, CategoryAccessories, CategoryHealth:
		return true
	}
	return false
}

// Payment statuses mirror the gateway vocabulary.
const (
	PaymentApproved = "approved"
	PaymentPending  = "pending"
	PaymentRejected = "rejected"
)

// Delivery statuses advance strictly forward.
const (
	DeliveryUnfulfilled = "unfulfilled"
	DeliveryInTransit   = "in-transit"
	DeliveryDelivered   = "delivered"
)

// Payment methods accepted on manual invoices.
const (
	PaymentMethodCash     = "efectivo"
	PaymentMethodCard     = "tarjeta"
	PaymentMethodTransfer = "transferencia"
	PaymentMethodGateway  = "mercadopago"
)

// ValidPaymentMethod reports whether m is an accepted manual payment method.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer, PaymentMethodGateway:
		return true
	}
	return false
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Employee struct {
	ID         string    `json:"id"`
	NationalID string    `json:"national_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Password   string    `json:"-"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Category      string    `json:"category"`
	PriceCents    int64     `json:"price_cents"`
	Stock         int       `json:"stock"`
	ImageURL      string    `json:"image_url,omitempty"`
	ImagePublicID string    `json:"image_public_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CartItem captures the unit price at the moment the product was added.
type CartItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Cart is the single server-side cart of a customer. Totals are derived
// from Items and never stored independently.
type Cart struct {
	ID            string     `json:"id"`
	CustomerID    string     `json:"customer_id"`
	Items         []CartItem `json:"items"`
	SubtotalCents int64      `json:"subtotal_cents"`
	TaxCents      int64      `json:"tax_cents"`
	TotalCents    int64      `json:"total_cents"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// InvoiceLine is a denormalized snapshot of a sold product.
type InvoiceLine struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type Invoice struct {
	ID            string        `json:"id"`
	CustomerID    string        `json:"customer_id,omitempty"`
	CustomerName  string        `json:"customer_name"`
	CustomerEmail string        `json:"customer_email,omitempty"`
	Items         []InvoiceLine `json:"items"`
	SubtotalCents int64         `json:"subtotal_cents"`
	TaxCents      int64         `json:"tax_cents"`
	TotalCents    int64         `json:"total_cents"`
	PaymentMethod string        `json:"payment_method"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Sale is one fulfilled (or fulfilling) order. PaymentID is unique and
// makes webhook processing idempotent.
type Sale struct {
	ID             string        `json:"id"`
	PaymentID      string        `json:"payment_id"`
	CustomerID     string        `json:"customer_id,omitempty"`
	CustomerName   string        `json:"customer_name"`
	CustomerEmail  string        `json:"customer_email,omitempty"`
	Items          []InvoiceLine `json:"items"`
	SubtotalCents  int64         `json:"subtotal_cents"`
	TaxCents       int64         `json:"tax_cents"`
	TotalCents     int64         `json:"total_cents"`
	PaymentStatus  string        `json:"payment_status"`
	DeliveryStatus string        `json:"delivery_status"`
	ShippedAt      *time.Time    `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time    `json:"delivered_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// CheckoutSession maps the opaque external reference sent to the payment
// gateway back to the customer whose cart is being paid for.
type CheckoutSession struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Actor is the authenticated identity attached to a request context.
type Actor struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	AccountType string `json:"account_type"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	AccountType string    `json:"account_type"`
}

type CustomerUpdateRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	Role    *string `json:"role"`
}

type EmployeeCreateRequest struct {
	NationalID string `json:"national_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
}

type EmployeeUpdateRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type ProductCreateRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	PriceCents    int64  `json:"price_cents"`
	Stock         int    `json:"stock"`
	ImageURL      string `json:"image_url"`
	ImagePublicID string `json:"image_public_id"`
}

type ProductUpdateRequest struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	Category      *string `json:"category"`
	PriceCents    *int64  `json:"price_cents"`
	Stock         *int    `json:"stock"`
	ImageURL      *string `json:"image_url"`
	ImagePublicID *string `json:"image_public_id"`
}

type CartAddRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type CartUpdateRequest struct {
	Qty int `json:"qty"`
}

// CheckoutResponse carries the gateway redirect for the storefront.
type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	InitPoint string `json:"init_point"`
}

type ManualInvoiceItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type ManualInvoiceRequest struct {
	CustomerID    string              `json:"customer_id"`
	CustomerName  string              `json:"customer_name"`
	CustomerEmail string              `json:"customer_email"`
	PaymentMethod string              `json:"payment_method"`
	Items         []ManualInvoiceItem `json:"items"`
}

type ManualInvoiceResponse struct {
	Invoice Invoice `json:"invoice"`
	SaleID  string  `json:"sale_id"`
}

type DeliveryUpdateRequest struct {
	Status string `json:"status"`
}

// DeliveryStatusCount is one bucket of the dashboard summary.
type DeliveryStatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type DashboardSummary struct {
	From           time.Time             `json:"from"`
	To             time.Time             `json:"to"`
	SaleCount      int                   `json:"sale_count"`
	RevenueCents   int64                 `json:"revenue_cents"`
	TaxCents       int64                 `json:"tax_cents"`
	InvoiceCount   int                   `json:"invoice_count"`
	ProductCount   int                   `json:"product_count"`
	LowStock       []Product             `json:"low_stock"`
	DeliveryCounts []DeliveryStatusCount `json:"delivery_counts"`
}
