package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"patitas/backend/internal/cache"
	"patitas/backend/internal/domain"
	"patitas/backend/internal/mailer"
	"patitas/backend/internal/payment"
	"patitas/backend/internal/store"
	"patitas/backend/internal/store/memory"
)

type fakeGateway struct {
	payments        map[string]*payment.Payment
	sandbox         bool
	preferenceCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: make(map[string]*payment.Payment)}
}

func (g *fakeGateway) CreatePreference(_ context.Context, externalReference string, items []payment.PreferenceItem) (*payment.Preference, error) {
	g.preferenceCalls++
	if len(items) == 0 {
		return nil, fmt.Errorf("no items")
	}
	return &payment.Preference{
		ID:               "pref-" + externalReference,
		InitPoint:        "https://gateway.test/init/" + externalReference,
		SandboxInitPoint: "https://sandbox.gateway.test/init/" + externalReference,
	}, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, paymentID string) (*payment.Payment, error) {
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment %s not found", paymentID)
	}
	return p, nil
}

func (g *fakeGateway) SandboxMode() bool { return g.sandbox }

func (g *fakeGateway) addApprovedPayment(id, externalReference string) {
	p := &payment.Payment{Status: domain.PaymentApproved, ExternalReference: externalReference}
	g.payments[id] = p
}

func newTestService() (*Service, *memory.Store, *fakeGateway) {
	repo := memory.NewSeeded()
	gateway := newFakeGateway()
	svc := New(repo, gateway, mailer.NoopMailer{}, cache.NoopCatalogCache{}, 19, 5*time.Second)
	return svc, repo, gateway
}

const testCustomerID = "cli-admin"

func TestCartTotalsRecomputedOnEveryMutation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	// prod-pelota-01 costs 790000 cents.
	cart, err := svc.AddToCart(ctx, testCustomerID, domain.CartAddRequest{ProductID: "prod-pelota-01", Qty: 2})
	if err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	assertCartTotals(t, cart, 19)
	if cart.SubtotalCents != 1580000 {
		t.Fatalf("expected subtotal 1580000, got %d", cart.SubtotalCents)
	}

	cart, err = svc.AddToCart(ctx, testCustomerID, domain.CartAddRequest{ProductID: "prod-collar-01", Qty: 1})
	if err != nil {
		t.Fatalf("add second product: %v", err)
	}
	assertCartTotals(t, cart, 19)

	cart, err = svc.UpdateCartItem(ctx, testCustomerID, "prod-pelota-01", 3)
	if err != nil {
		t.Fatalf("update qty: %v", err)
	}
	assertCartTotals(t, cart, 19)
	if len(cart.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(cart.Items))
	}

	cart, err = svc.RemoveCartItem(ctx, testCustomerID, "prod-collar-01")
	if err != nil {
		t.Fatalf("remove item: %v", err)
	}
	assertCartTotals(t, cart, 19)
	if len(cart.Items) != 1 {
		t.Fatalf("expected 1 line after removal, got %d", len(cart.Items))
	}
}

func assertCartTotals(t *testing.T, cart *domain.Cart, taxRatePercent float64) {
	t.Helper()
	var subtotal int64
	for _, item := range cart.Items {
		subtotal += item.UnitPriceCents * int64(item.Qty)
	}
	if cart.SubtotalCents != subtotal {
		t.Fatalf("subtotal mismatch: cart says %d, items sum to %d", cart.SubtotalCents, subtotal)
	}
	wantTax := int64(float64(subtotal)*taxRatePercent/100 + 0.5)
	if cart.TaxCents != wantTax {
		t.Fatalf("tax mismatch: got %d, want %d", cart.TaxCents, wantTax)
	}
	if cart.TotalCents != subtotal+cart.TaxCents {
		t.Fatalf("total mismatch: got %d, want %d", cart.TotalCents, subtotal+cart.TaxCents)
	}
}

func TestAddToCartRejectsQtyAboveStock(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	// prod-vitaminas-01 has stock 12.
	_, err := svc.AddToCart(ctx, testCustomerID, domain.CartAddRequest{ProductID: "prod-vitaminas-01", Qty: 13})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	product, err := repo.GetProductByID(ctx, "prod-vitaminas-01")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 12 {
		t.Fatalf("stock must be untouched by a rejected add, got %d", product.Stock)
	}

	// Merging into an existing line is checked against stock too.
	if _, err := svc.AddToCart(ctx, testCustomerID, domain.CartAddRequest{ProductID: "prod-vitaminas-01", Qty: 10}); err != nil {
		t.Fatalf("add within stock: %v", err)
	}
	_, err = svc.AddToCart(ctx, testCustomerID, domain.CartAddRequest{ProductID: "prod-vitaminas-01", Qty: 3})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock on merged qty, got %v", err)
	}
}

func TestClampedDecrementFloorsAtZero(t *testing.T) {
	_, repo, _ := newTestService()
	ctx := context.Background()

	// prod-vitaminas-01 has stock 12; ask for more.
	applied, err := repo.DecrementStockClamped(ctx, "prod-vitaminas-01", 20)
	if err != nil {
		t.Fatalf("clamped decrement: %v", err)
	}
	if applied != 12 {
		t.Fatalf("expected 12 units applied, got %d", applied)
	}

	product, err := repo.GetProductByID(ctx, "prod-vitaminas-01")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", product.Stock)
	}

	applied, err = repo.DecrementStockClamped(ctx, "prod-vitaminas-01", 5)
	if err != nil {
		t.Fatalf("second decrement: %v", err)
	}
	if applied != 0 {
		t.Fatalf("expected 0 applied on empty stock, got %d", applied)
	}
}

func TestCheckoutAndPaymentFulfillment(t *testing.T) {
	svc, repo, gateway := newTestService()
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:       "Hueso de Carnaza",
		Category:   domain.CategoryToys,
		PriceCents: 500000,
		Stock:      5,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	if _, err := svc.AddToCart(ctx, testCustomerID, domain.CartAddRequest{ProductID: created.ID, Qty: 2}); err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	cart, err := svc.Cart(ctx, testCustomerID)
	if err != nil {
		t.Fatalf("read cart: %v", err)
	}

	resp, err := svc.StartCheckout(ctx, testCustomerID)
	if err != nil {
		t.Fatalf("start checkout: %v", err)
	}
	if resp.InitPoint == "" || resp.SessionID == "" {
		t.Fatalf("expected session id and init point, got %+v", resp)
	}
	if gateway.preferenceCalls != 1 {
		t.Fatalf("expected one preference call, got %d", gateway.preferenceCalls)
	}

	gateway.addApprovedPayment("pay-777", resp.SessionID)
	sale, err := svc.ProcessPayment(ctx, "pay-777")
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}
	if sale == nil {
		t.Fatalf("expected a sale")
	}
	if sale.TotalCents != cart.TotalCents {
		t.Fatalf("sale total %d does not match cart total %d", sale.TotalCents, cart.TotalCents)
	}
	if sale.PaymentStatus != domain.PaymentApproved || sale.DeliveryStatus != domain.DeliveryUnfulfilled {
		t.Fatalf("unexpected sale statuses: %s / %s", sale.PaymentStatus, sale.DeliveryStatus)
	}

	product, err := repo.GetProductByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 3 {
		t.Fatalf("expected stock 3 after selling 2 of 5, got %d", product.Stock)
	}

	emptied, err := svc.Cart(ctx, testCustomerID)
	if err != nil {
		t.Fatalf("read cart after payment: %v", err)
	}
	if len(emptied.Items) != 0 {
		t.Fatalf("expected cleared cart, got %d items", len(emptied.Items))
	}
}

func TestProcessPaymentIsIdempotent(t *testing.T) {
	svc, repo, gateway := newTestService()
	ctx := context.Background()

	if _, err := svc.AddToCart(ctx, testCustomerID, domain.CartAddRequest{ProductID: "prod-pelota-01", Qty: 1}); err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	resp, err := svc.StartCheckout(ctx, testCustomerID)
	if err != nil {
		t.Fatalf("start checkout: %v", err)
	}
	gateway.addApprovedPayment("pay-dup", resp.SessionID)

	first, err := svc.ProcessPayment(ctx, "pay-dup")
	if err != nil {
		t.Fatalf("first process: %v", err)
	}
	second, err := svc.ProcessPayment(ctx, "pay-dup")
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same sale on replay, got %s and %s", first.ID, second.ID)
	}

	sales, err := repo.ListSales(ctx, "", 100)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected exactly one sale, got %d", len(sales))
	}

	product, err := repo.GetProductByID(ctx, "prod-pelota-01")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 59 {
		t.Fatalf("replayed payment must not decrement stock twice: got %d, want 59", product.Stock)
	}
}

func TestNonApprovedPaymentIsNotFulfilled(t *testing.T) {
	svc, repo, gateway := newTestService()
	ctx := context.Background()

	gateway.payments["pay-pending"] = &payment.Payment{Status: domain.PaymentPending, ExternalReference: "ignored"}

	sale, err := svc.ProcessPayment(ctx, "pay-pending")
	if err != nil {
		t.Fatalf("process pending payment: %v", err)
	}
	if sale != nil {
		t.Fatalf("pending payment must not create a sale")
	}
	sales, err := repo.ListSales(ctx, "", 10)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no sales, got %d", len(sales))
	}
}

func TestStaleCartLinesAreDropped(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.AddToCart(ctx, testCustomerID, domain.CartAddRequest{ProductID: "prod-pelota-01", Qty: 1}); err != nil {
		t.Fatalf("add first: %v", err)
	}
	if _, err := svc.AddToCart(ctx, testCustomerID, domain.CartAddRequest{ProductID: "prod-cuerda-01", Qty: 2}); err != nil {
		t.Fatalf("add second: %v", err)
	}

	if err := repo.DeleteProduct(ctx, "prod-pelota-01"); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	cart, err := svc.Cart(ctx, testCustomerID)
	if err != nil {
		t.Fatalf("read cart: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected deleted product dropped, got %d lines", len(cart.Items))
	}
	if cart.Items[0].ProductID != "prod-cuerda-01" {
		t.Fatalf("unexpected surviving line %s", cart.Items[0].ProductID)
	}
	assertCartTotals(t, cart, 19)
}

func TestManualInvoiceSellsLastUnit(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := WithActor(context.Background(), domain.Actor{ID: "emp-demo", Name: "Empleado Demo", Role: domain.RoleEmployee})

	created, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:       "Cama Gato Ultima",
		Category:   domain.CategoryAccessories,
		PriceCents: 4500000,
		Stock:      1,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	resp, err := svc.CreateManualInvoice(ctx, domain.ManualInvoiceRequest{
		CustomerName:  "Cliente Mostrador",
		PaymentMethod: domain.PaymentMethodCash,
		Items:         []domain.ManualInvoiceItem{{ProductID: created.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("manual invoice: %v", err)
	}
	priceCents := float64(4500000)
	if resp.Invoice.TotalCents != 4500000+int64(priceCents*0.19+0.5) {
		t.Fatalf("unexpected invoice total %d", resp.Invoice.TotalCents)
	}

	product, err := repo.GetProductByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", product.Stock)
	}

	sale, err := repo.GetSaleByID(ctx, resp.SaleID)
	if err != nil {
		t.Fatalf("get synthesized sale: %v", err)
	}
	if sale.DeliveryStatus != domain.DeliveryDelivered || sale.DeliveredAt == nil || sale.ShippedAt == nil {
		t.Fatalf("manual sale must be pre-delivered with timestamps, got %+v", sale)
	}

	// The unit is gone; a second invoice must fail without touching anything.
	_, err = svc.CreateManualInvoice(ctx, domain.ManualInvoiceRequest{
		CustomerName:  "Otro Cliente",
		PaymentMethod: domain.PaymentMethodCash,
		Items:         []domain.ManualInvoiceItem{{ProductID: created.ID, Qty: 1}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestManualInvoiceShortfallRollsBackAllStock(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateManualInvoice(ctx, domain.ManualInvoiceRequest{
		CustomerName:  "Cliente Mostrador",
		PaymentMethod: domain.PaymentMethodCard,
		Items: []domain.ManualInvoiceItem{
			{ProductID: "prod-pelota-01", Qty: 2},
			{ProductID: "prod-vitaminas-01", Qty: 999},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	product, err := repo.GetProductByID(ctx, "prod-pelota-01")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 60 {
		t.Fatalf("failed invoice must not move stock, got %d want 60", product.Stock)
	}
}

func TestDeliveryStatusProgression(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	sale, err := repo.CreateSale(ctx, domain.Sale{
		PaymentID:      "pay-envio",
		CustomerName:   "Cliente Envio",
		PaymentStatus:  domain.PaymentApproved,
		DeliveryStatus: domain.DeliveryUnfulfilled,
		Items:          []domain.InvoiceLine{{ProductID: "prod-pelota-01", Name: "Pelota", Qty: 1, UnitPriceCents: 790000, SubtotalCents: 790000}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	// Skipping straight to delivered is rejected.
	if _, err := svc.UpdateDelivery(ctx, sale.ID, domain.DeliveryDelivered); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}

	shipped, err := svc.UpdateDelivery(ctx, sale.ID, domain.DeliveryInTransit)
	if err != nil {
		t.Fatalf("move to in-transit: %v", err)
	}
	if shipped.ShippedAt == nil || shipped.DeliveredAt != nil {
		t.Fatalf("expected shipped timestamp only, got %+v", shipped)
	}
	firstShipped := *shipped.ShippedAt

	delivered, err := svc.UpdateDelivery(ctx, sale.ID, domain.DeliveryDelivered)
	if err != nil {
		t.Fatalf("move to delivered: %v", err)
	}
	if delivered.DeliveredAt == nil {
		t.Fatalf("expected delivered timestamp")
	}
	if !delivered.ShippedAt.Equal(firstShipped) {
		t.Fatalf("shipped timestamp must not change on later transitions")
	}

	// No transition leads out of delivered.
	if _, err := svc.UpdateDelivery(ctx, sale.ID, domain.DeliveryInTransit); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected invalid transition out of delivered, got %v", err)
	}
}

func TestStartCheckoutValidatesStockAndEmptiness(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.StartCheckout(ctx, testCustomerID); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected empty-cart rejection, got %v", err)
	}

	if _, err := svc.AddToCart(ctx, testCustomerID, domain.CartAddRequest{ProductID: "prod-correa-01", Qty: 10}); err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	// Stock drops below the cart quantity between add and checkout.
	if _, err := repo.DecrementStockClamped(ctx, "prod-correa-01", 8); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if _, err := svc.StartCheckout(ctx, testCustomerID); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected stock re-validation failure, got %v", err)
	}
}

func TestListProductsRejectsUnknownCategory(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.ListProducts(context.Background(), "electronica")
	if !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestDashboardSummaryCountsApprovedSales(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.CreateSale(ctx, domain.Sale{
			PaymentID:      fmt.Sprintf("pay-dash-%d", i),
			CustomerName:   "Cliente Dash",
			PaymentStatus:  domain.PaymentApproved,
			DeliveryStatus: domain.DeliveryUnfulfilled,
			TotalCents:     100000,
			TaxCents:       15966,
		})
		if err != nil {
			t.Fatalf("create sale %d: %v", i, err)
		}
	}

	summary, err := svc.DashboardSummary(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if summary.SaleCount != 3 {
		t.Fatalf("expected 3 sales, got %d", summary.SaleCount)
	}
	if summary.RevenueCents != 300000 {
		t.Fatalf("expected revenue 300000, got %d", summary.RevenueCents)
	}
	if summary.ProductCount == 0 {
		t.Fatalf("expected seeded products counted")
	}
}
