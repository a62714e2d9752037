// Package postgres implements store.Repository on PostgreSQL via the pgx
// stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"patitas/backend/internal/domain"
	"patitas/backend/internal/store"
	"patitas/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---- customers ----

func (s *Store) CreateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	if c.Name == "" || c.Email == "" || c.Password == "" {
		return nil, store.ErrInvalid
	}
	if c.ID == "" {
		c.ID = xid.New("cli")
	}
	if c.Role == "" {
		c.Role = domain.RoleCustomer
	}
	c.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, password, phone, address, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Name, c.Email, c.Password, nullIfEmpty(c.Phone), nullIfEmpty(c.Address), c.Role, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateEmail
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	return s.scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password, COALESCE(phone, ''), COALESCE(address, ''), role, created_at
		FROM customers
		WHERE id = $1
	`, id))
}

func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return s.scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password, COALESCE(phone, ''), COALESCE(address, ''), role, created_at
		FROM customers
		WHERE lower(email) = lower($1)
	`, email))
}

func (s *Store) scanCustomer(row *sql.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Password, &c.Phone, &c.Address, &c.Role, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, password, COALESCE(phone, ''), COALESCE(address, ''), role, created_at
		FROM customers
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Password, &c.Phone, &c.Address, &c.Role, &c.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) UpdateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, address = $4, role = $5
		WHERE id = $1
	`, c.ID, c.Name, nullIfEmpty(c.Phone), nullIfEmpty(c.Address), c.Role)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetCustomerByID(ctx, c.ID)
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateCustomerPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE customers SET password = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ---- employees ----

func (s *Store) CreateEmployee(ctx context.Context, e domain.Employee) (*domain.Employee, error) {
	if e.Name == "" || e.Email == "" || e.Password == "" || e.NationalID == "" {
		return nil, store.ErrInvalid
	}
	if e.ID == "" {
		e.ID = xid.New("emp")
	}
	e.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, national_id, name, email, password, phone, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.NationalID, e.Name, e.Email, e.Password, nullIfEmpty(e.Phone), nullIfEmpty(e.Address), e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateEmail
		}
		return nil, err
	}
	return &e, nil
}

func (s *Store) GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error) {
	return s.scanEmployee(s.db.QueryRowContext(ctx, `
		SELECT id, national_id, name, email, password, COALESCE(phone, ''), COALESCE(address, ''), created_at
		FROM employees
		WHERE id = $1
	`, id))
}

func (s *Store) GetEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	return s.scanEmployee(s.db.QueryRowContext(ctx, `
		SELECT id, national_id, name, email, password, COALESCE(phone, ''), COALESCE(address, ''), created_at
		FROM employees
		WHERE lower(email) = lower($1)
	`, email))
}

func (s *Store) scanEmployee(row *sql.Row) (*domain.Employee, error) {
	var e domain.Employee
	err := row.Scan(&e.ID, &e.NationalID, &e.Name, &e.Email, &e.Password, &e.Phone, &e.Address, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, national_id, name, email, password, COALESCE(phone, ''), COALESCE(address, ''), created_at
		FROM employees
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := make([]domain.Employee, 0, 16)
	for rows.Next() {
		var e domain.Employee
		if err := rows.Scan(&e.ID, &e.NationalID, &e.Name, &e.Email, &e.Password, &e.Phone, &e.Address, &e.CreatedAt); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (s *Store) UpdateEmployee(ctx context.Context, e domain.Employee) (*domain.Employee, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE employees
		SET name = $2, phone = $3, address = $4
		WHERE id = $1
	`, e.ID, e.Name, nullIfEmpty(e.Phone), nullIfEmpty(e.Address))
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetEmployeeByID(ctx, e.ID)
}

func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateEmployeePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE employees SET password = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) MigratePlaintextCredentials(ctx context.Context, hash func(plain string) (string, error)) (int, error) {
	migrated := 0
	for _, table := range []string{"customers", "employees"} {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT id, password
			FROM %s
			WHERE password NOT LIKE '$2a$%%' AND password NOT LIKE '$2b$%%' AND password NOT LIKE '$2y$%%'
		`, table))
		if err != nil {
			return migrated, err
		}

		type cred struct{ id, plain string }
		var pending []cred
		for rows.Next() {
			var c cred
			if err := rows.Scan(&c.id, &c.plain); err != nil {
				rows.Close()
				return migrated, err
			}
			pending = append(pending, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return migrated, err
		}

		for _, c := range pending {
			hashed, err := hash(c.plain)
			if err != nil {
				return migrated, err
			}
			query := fmt.Sprintf(`UPDATE %s SET password = $2 WHERE id = $1 AND password = $3`, table)
			res, err := s.db.ExecContext(ctx, query, c.id, hashed, c.plain)
			if err != nil {
				return migrated, err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				migrated++
			}
		}
	}
	return migrated, nil
}

// ---- products ----

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.Name == "" || !domain.ValidCategory(p.Category) || p.PriceCents < 1 || p.Stock < 0 {
		return nil, store.ErrInvalid
	}
	if p.ID == "" {
		p.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, category, price_cents, stock, image_url, image_public_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, p.Name, nullIfEmpty(p.Description), p.Category, p.PriceCents, p.Stock,
		nullIfEmpty(p.ImageURL), nullIfEmpty(p.ImagePublicID), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const productColumns = `id, name, COALESCE(description, ''), category, price_cents, stock,
	COALESCE(image_url, ''), COALESCE(image_public_id, ''), created_at, updated_at`

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.PriceCents, &p.Stock,
		&p.ImageURL, &p.ImagePublicID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.PriceCents, &p.Stock,
			&p.ImageURL, &p.ImagePublicID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

func (s *Store) ListProducts(ctx context.Context, category string) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	args := []any{}
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY category, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.PriceCents, &p.Stock,
			&p.ImageURL, &p.ImagePublicID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if !domain.ValidCategory(p.Category) || p.PriceCents < 1 || p.Stock < 0 {
		return nil, store.ErrInvalid
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, category = $4, price_cents = $5, stock = $6,
			image_url = $7, image_public_id = $8, updated_at = now()
		WHERE id = $1
	`, p.ID, p.Name, nullIfEmpty(p.Description), p.Category, p.PriceCents, p.Stock,
		nullIfEmpty(p.ImageURL), nullIfEmpty(p.ImagePublicID))
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProductByID(ctx, p.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DecrementStockClamped subtracts up to qty units under a row lock and
// floors the counter at zero. Used on the fulfillment path where the
// payment has already been captured.
func (s *Store) DecrementStockClamped(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, store.ErrInvalid
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var stock int
	err = tx.QueryRowContext(ctx, `
		SELECT stock
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	applied := qty
	if stock < applied {
		applied = stock
	}
	if applied > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1
		`, productID, applied); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return applied, nil
}

// ---- carts ----

func (s *Store) GetCartByCustomer(ctx context.Context, customerID string) (*domain.Cart, error) {
	var (
		cart      domain.Cart
		itemsJSON []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, items, subtotal_cents, tax_cents, total_cents, updated_at
		FROM carts
		WHERE customer_id = $1
	`, customerID).Scan(&cart.ID, &cart.CustomerID, &itemsJSON,
		&cart.SubtotalCents, &cart.TaxCents, &cart.TotalCents, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &cart.Items); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (s *Store) SaveCart(ctx context.Context, cart domain.Cart) (*domain.Cart, error) {
	if cart.CustomerID == "" {
		return nil, store.ErrInvalid
	}
	if cart.ID == "" {
		cart.ID = xid.New("cart")
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	cart.UpdatedAt = time.Now().UTC()

	itemsJSON, err := json.Marshal(cart.Items)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO carts (id, customer_id, items, subtotal_cents, tax_cents, total_cents, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (customer_id)
		DO UPDATE SET items = EXCLUDED.items,
			subtotal_cents = EXCLUDED.subtotal_cents,
			tax_cents = EXCLUDED.tax_cents,
			total_cents = EXCLUDED.total_cents,
			updated_at = EXCLUDED.updated_at
	`, cart.ID, cart.CustomerID, itemsJSON, cart.SubtotalCents, cart.TaxCents, cart.TotalCents, cart.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s.GetCartByCustomer(ctx, cart.CustomerID)
}

func (s *Store) DeleteCart(ctx context.Context, customerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM carts WHERE customer_id = $1`, customerID)
	return err
}

// ---- checkout sessions ----

func (s *Store) CreateCheckoutSession(ctx context.Context, sess domain.CheckoutSession) error {
	if sess.ID == "" || sess.CustomerID == "" {
		return store.ErrInvalid
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkout_sessions (id, customer_id, created_at)
		VALUES ($1, $2, $3)
	`, sess.ID, sess.CustomerID, time.Now().UTC())
	return err
}

func (s *Store) GetCheckoutSession(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	var sess domain.CheckoutSession
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, created_at
		FROM checkout_sessions
		WHERE id = $1
	`, id).Scan(&sess.ID, &sess.CustomerID, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) DeleteCheckoutSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkout_sessions WHERE id = $1`, id)
	return err
}

// ---- sales ----

// CreateSale claims the payment id with an insert-or-ignore so that a
// concurrently delivered webhook can never record the sale twice.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.PaymentID == "" {
		return nil, store.ErrInvalid
	}
	if sale.ID == "" {
		sale.ID = xid.New("venta")
	}
	if sale.DeliveryStatus == "" {
		sale.DeliveryStatus = domain.DeliveryUnfulfilled
	}
	sale.CreatedAt = time.Now().UTC()

	itemsJSON, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (
			id, payment_id, customer_id, customer_name, customer_email,
			items, subtotal_cents, tax_cents, total_cents,
			payment_status, delivery_status, shipped_at, delivered_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (payment_id) DO NOTHING
	`, sale.ID, sale.PaymentID, nullIfEmpty(sale.CustomerID), sale.CustomerName, nullIfEmpty(sale.CustomerEmail),
		itemsJSON, sale.SubtotalCents, sale.TaxCents, sale.TotalCents,
		sale.PaymentStatus, sale.DeliveryStatus, nullTime(sale.ShippedAt), nullTime(sale.DeliveredAt), sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrDuplicateSale
	}
	return &sale, nil
}

const saleColumns = `id, payment_id, COALESCE(customer_id, ''), customer_name, COALESCE(customer_email, ''),
	items, subtotal_cents, tax_cents, total_cents,
	payment_status, delivery_status, shipped_at, delivered_at, created_at`

func (s *Store) scanSale(row *sql.Row) (*domain.Sale, error) {
	var (
		sale      domain.Sale
		itemsJSON []byte
		shipped   sql.NullTime
		delivered sql.NullTime
	)
	err := row.Scan(&sale.ID, &sale.PaymentID, &sale.CustomerID, &sale.CustomerName, &sale.CustomerEmail,
		&itemsJSON, &sale.SubtotalCents, &sale.TaxCents, &sale.TotalCents,
		&sale.PaymentStatus, &sale.DeliveryStatus, &shipped, &delivered, &sale.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &sale.Items); err != nil {
		return nil, err
	}
	if shipped.Valid {
		t := shipped.Time
		sale.ShippedAt = &t
	}
	if delivered.Valid {
		t := delivered.Time
		sale.DeliveredAt = &t
	}
	return &sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	return s.scanSale(s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
}

func (s *Store) GetSaleByPaymentID(ctx context.Context, paymentID string) (*domain.Sale, error) {
	return s.scanSale(s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE payment_id = $1`, paymentID))
}

func (s *Store) ListSales(ctx context.Context, deliveryStatus string, limit int) ([]domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales`
	args := []any{}
	if deliveryStatus != "" {
		query += ` WHERE delivery_status = $1`
		args = append(args, deliveryStatus)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		var (
			sale      domain.Sale
			itemsJSON []byte
			shipped   sql.NullTime
			delivered sql.NullTime
		)
		if err := rows.Scan(&sale.ID, &sale.PaymentID, &sale.CustomerID, &sale.CustomerName, &sale.CustomerEmail,
			&itemsJSON, &sale.SubtotalCents, &sale.TaxCents, &sale.TotalCents,
			&sale.PaymentStatus, &sale.DeliveryStatus, &shipped, &delivered, &sale.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(itemsJSON, &sale.Items); err != nil {
			return nil, err
		}
		if shipped.Valid {
			t := shipped.Time
			sale.ShippedAt = &t
		}
		if delivered.Valid {
			t := delivered.Time
			sale.DeliveredAt = &t
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

// UpdateDeliveryStatus advances a sale one step forward and stamps the
// first transition into each state.
func (s *Store) UpdateDeliveryStatus(ctx context.Context, saleID, status string, at time.Time) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `
		SELECT delivery_status
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if !validDeliveryTransition(current, status) {
		return nil, fmt.Errorf("%w: delivery status %s cannot move to %s", store.ErrInvalid, current, status)
	}

	switch status {
	case domain.DeliveryInTransit:
		_, err = tx.ExecContext(ctx, `
			UPDATE sales
			SET delivery_status = $2, shipped_at = COALESCE(shipped_at, $3)
			WHERE id = $1
		`, saleID, status, at.UTC())
	case domain.DeliveryDelivered:
		_, err = tx.ExecContext(ctx, `
			UPDATE sales
			SET delivery_status = $2, delivered_at = COALESCE(delivered_at, $3)
			WHERE id = $1
		`, saleID, status, at.UTC())
	default:
		return nil, fmt.Errorf("%w: unknown delivery status %s", store.ErrInvalid, status)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSaleByID(ctx, saleID)
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

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ---- invoices ----

// CreateInvoiceWithStock inserts the invoice and decrements every line's
// stock in one serializable transaction. A single shortfall rolls the
// whole invoice back.
func (s *Store) CreateInvoiceWithStock(ctx context.Context, inv domain.Invoice) (*domain.Invoice, error) {
	if len(inv.Items) == 0 {
		return nil, store.ErrInvalid
	}
	if inv.ID == "" {
		inv.ID = xid.New("fac")
	}
	inv.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// Lock rows in a stable order to avoid deadlocks between concurrent
	// invoices touching the same products.
	for _, id := range sortedProductIDs(inv.Items) {
		qty := 0
		for _, line := range inv.Items {
			if line.ProductID == id {
				qty += line.Qty
			}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2
		`, id, qty)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
				return nil, err
			}
			if !exists {
				return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
			}
			return nil, fmt.Errorf("%w: product %s", store.ErrInsufficientStock, id)
		}
	}

	itemsJSON, err := json.Marshal(inv.Items)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO invoices (
			id, customer_id, customer_name, customer_email,
			items, subtotal_cents, tax_cents, total_cents, payment_method, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, inv.ID, nullIfEmpty(inv.CustomerID), inv.CustomerName, nullIfEmpty(inv.CustomerEmail),
		itemsJSON, inv.SubtotalCents, inv.TaxCents, inv.TotalCents, inv.PaymentMethod, inv.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *Store) GetInvoiceByID(ctx context.Context, id string) (*domain.Invoice, error) {
	var (
		inv       domain.Invoice
		itemsJSON []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(customer_id, ''), customer_name, COALESCE(customer_email, ''),
			items, subtotal_cents, tax_cents, total_cents, payment_method, created_at
		FROM invoices
		WHERE id = $1
	`, id).Scan(&inv.ID, &inv.CustomerID, &inv.CustomerName, &inv.CustomerEmail,
		&itemsJSON, &inv.SubtotalCents, &inv.TaxCents, &inv.TotalCents, &inv.PaymentMethod, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &inv.Items); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, limit int) ([]domain.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, COALESCE(customer_id, ''), customer_name, COALESCE(customer_email, ''),
			items, subtotal_cents, tax_cents, total_cents, payment_method, created_at
		FROM invoices
		ORDER BY created_at DESC
		LIMIT %d
	`, limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, limit)
	for rows.Next() {
		var (
			inv       domain.Invoice
			itemsJSON []byte
		)
		if err := rows.Scan(&inv.ID, &inv.CustomerID, &inv.CustomerName, &inv.CustomerEmail,
			&itemsJSON, &inv.SubtotalCents, &inv.TaxCents, &inv.TotalCents, &inv.PaymentMethod, &inv.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(itemsJSON, &inv.Items); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ---- dashboard ----

func (s *Store) GetDashboardSummary(ctx context.Context, from, to time.Time, lowStockBelow int) (*domain.DashboardSummary, error) {
	summary := &domain.DashboardSummary{From: from, To: to}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_cents), 0), COALESCE(SUM(tax_cents), 0)
		FROM sales
		WHERE created_at >= $1 AND created_at < $2 AND payment_status = $3
	`, from, to, domain.PaymentApproved).Scan(&summary.SaleCount, &summary.RevenueCents, &summary.TaxCents)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM invoices
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&summary.InvoiceCount)
	if err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&summary.ProductCount); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT delivery_status, COUNT(*)
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY delivery_status
		ORDER BY delivery_status
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.DeliveryStatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}
		summary.DeliveryCounts = append(summary.DeliveryCounts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	low, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE stock < $1 ORDER BY stock, name LIMIT 20`, lowStockBelow)
	if err != nil {
		return nil, err
	}
	defer low.Close()
	for low.Next() {
		var p domain.Product
		if err := low.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.PriceCents, &p.Stock,
			&p.ImageURL, &p.ImagePublicID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		summary.LowStock = append(summary.LowStock, p)
	}
	return summary, low.Err()
}

// ---- helpers ----

func sortedProductIDs(items []domain.InvoiceLine) []string {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, line := range items {
		if seen[line.ProductID] {
			continue
		}
		seen[line.ProductID] = true
		ids = append(ids, line.ProductID)
	}
	sort.Strings(ids)
	return ids
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
