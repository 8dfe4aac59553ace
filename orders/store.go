package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"candle-shop/models"

	"github.com/lib/pq"
)

// Store persists orders and their line-item snapshots.
type Store interface {
	Create(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id int) error
	SetGatewayOrderID(ctx context.Context, id int, gatewayOrderID string) error
	Get(ctx context.Context, id int) (*models.Order, error)
	// MarkPaid records the payment and decrements stock, but only when the
	// order is still unpaid. It reports whether that transition happened.
	MarkPaid(ctx context.Context, id int, result models.PaymentResult, paidAt time.Time) (bool, error)
	MarkDelivered(ctx context.Context, id int, trackingNumber string, deliveredAt time.Time) error
	UpdateStatus(ctx context.Context, id int, status models.OrderStatus) error
	ListByUser(ctx context.Context, userID int) ([]models.Order, error)
	List(ctx context.Context, limit, offset int) ([]models.Order, int, error)
	Customer(ctx context.Context, userID int) (name, email string, err error)
	CountStalePending(ctx context.Context, createdBefore time.Time) (int, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orderColumns = "id, user_id, address, city, postal_code, country, payment_method, " +
	"payment_id, gateway_order_id, payment_signature, payment_status, payer_email, " +
	"items_price, tax_price, shipping_price, total_price, is_paid, paid_at, " +
	"is_delivered, delivered_at, status, tracking_number, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o           models.Order
		paidAt      sql.NullTime
		deliveredAt sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.UserID,
		&o.ShippingAddress.Address, &o.ShippingAddress.City, &o.ShippingAddress.PostalCode, &o.ShippingAddress.Country,
		&o.PaymentMethod,
		&o.PaymentResult.PaymentID, &o.PaymentResult.GatewayOrderID, &o.PaymentResult.Signature,
		&o.PaymentResult.Status, &o.PaymentResult.EmailAddress,
		&o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.IsPaid, &paidAt, &o.IsDelivered, &deliveredAt,
		&o.Status, &o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	if deliveredAt.Valid {
		o.DeliveredAt = &deliveredAt.Time
	}
	return &o, nil
}

func (s *PostgresStore) Create(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, address, city, postal_code, country, payment_method,
			items_price, tax_price, shipping_price, total_price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`,
		order.UserID,
		order.ShippingAddress.Address, order.ShippingAddress.City,
		order.ShippingAddress.PostalCode, order.ShippingAddress.Country,
		order.PaymentMethod,
		order.ItemsPrice, order.TaxPrice, order.ShippingPrice, order.TotalPrice,
		order.Status,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, name, price, quantity, image) VALUES ($1, $2, $3, $4, $5, $6)",
			order.ID, item.ProductID, item.Name, item.Price, item.Quantity, item.Image,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetGatewayOrderID(ctx context.Context, id int, gatewayOrderID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET gateway_order_id = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		gatewayOrderID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to store gateway order id: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id int) (*models.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if err := s.attachItems(ctx, []*models.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *PostgresStore) MarkPaid(ctx context.Context, id int, result models.PaymentResult, paidAt time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET is_paid = TRUE, paid_at = $1, payment_id = $2, gateway_order_id = $3,
			payment_signature = $4, payment_status = $5, payer_email = $6, updated_at = CURRENT_TIMESTAMP
		WHERE id = $7 AND is_paid = FALSE`,
		paidAt, result.PaymentID, result.GatewayOrderID, result.Signature, result.Status, result.EmailAddress, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark order paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE products p SET stock = GREATEST(p.stock - oi.quantity, 0), updated_at = CURRENT_TIMESTAMP
		FROM (SELECT product_id, SUM(quantity) AS quantity FROM order_items WHERE order_id = $1 GROUP BY product_id) oi
		WHERE p.id = oi.product_id`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit payment: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) MarkDelivered(ctx context.Context, id int, trackingNumber string, deliveredAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET is_delivered = TRUE, delivered_at = $1, status = $2, tracking_number = $3,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $4`,
		deliveredAt, models.OrderStatusDelivered, trackingNumber, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark order delivered: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id int, status models.OrderStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID int) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return s.collect(ctx, rows)
}

func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]models.Order, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	orders, err := s.collect(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *PostgresStore) Customer(ctx context.Context, userID int) (string, string, error) {
	var name, email string
	err := s.db.QueryRowContext(ctx, "SELECT name, email FROM users WHERE id = $1", userID).Scan(&name, &email)
	if err != nil {
		return "", "", fmt.Errorf("failed to load customer %d: %w", userID, err)
	}
	return name, email, nil
}

func (s *PostgresStore) CountStalePending(ctx context.Context, createdBefore time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM orders WHERE is_paid = FALSE AND status = $1 AND created_at < $2",
		models.OrderStatusPending, createdBefore,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count stale orders: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) collect(ctx context.Context, rows *sql.Rows) ([]models.Order, error) {
	defer rows.Close()

	var list []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	if err := s.attachItems(ctx, list); err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(list))
	for _, o := range list {
		orders = append(orders, *o)
	}
	return orders, nil
}

func (s *PostgresStore) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(orders))
	byID := make(map[int]*models.Order, len(orders))
	for _, o := range orders {
		ids = append(ids, int64(o.ID))
		byID[o.ID] = o
		o.Items = []models.OrderItem{}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT order_id, product_id, name, price, quantity, image FROM order_items WHERE order_id = ANY($1) ORDER BY id",
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int
			item    models.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Price, &item.Quantity, &item.Image); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}
