package store

import (
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Order statuses.
const (
	OrderStatusCompleted = "completed"
	OrderStatusRefunded  = "refunded"
)

// ErrOrderNotFound is returned when no order matches the query.
var ErrOrderNotFound = errors.New("order not found")

// Order is a persisted checkout-provider order.
type Order struct {
	ID              string    `db:"id"`
	ProviderOrderID string    `db:"provider_order_id"`
	UserID          string    `db:"user_id"`
	ReleaseID       string    `db:"release_id"`
	ProductType     string    `db:"product_type"`
	AmountCents     int64     `db:"amount_cents"`
	Status          string    `db:"status"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// OrdersRepo persists orders.
type OrdersRepo struct {
	db *DB
}

// NewOrdersRepo creates an orders repository.
func NewOrdersRepo(db *DB) *OrdersRepo {
	return &OrdersRepo{db: db}
}

// Insert stores a new order. The internal ID is generated here; the
// provider order ID must be unique. Inserting a provider order ID that
// already exists returns the existing record unchanged, making webhook
// redelivery idempotent.
func (r *OrdersRepo) Insert(o Order) (Order, error) {
	existing, err := r.GetByProviderOrderID(o.ProviderOrderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrOrderNotFound) {
		return Order{}, err
	}

	o.ID = uuid.New().String()
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err = r.db.NamedExec(`
		INSERT INTO orders (id, provider_order_id, user_id, release_id, product_type, amount_cents, status, created_at, updated_at)
		VALUES (:id, :provider_order_id, :user_id, :release_id, :product_type, :amount_cents, :status, :created_at, :updated_at)
	`, o)
	if err != nil {
		return Order{}, errors.Wrap(err, "failed to insert order")
	}
	return o, nil
}

// GetByProviderOrderID returns the order created from the given provider
// order.
func (r *OrdersRepo) GetByProviderOrderID(providerOrderID string) (Order, error) {
	var o Order
	err := r.db.Get(&o, "SELECT * FROM orders WHERE provider_order_id = ?", providerOrderID)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, errors.Wrapf(ErrOrderNotFound, "provider_order_id=%s", providerOrderID)
	}
	if err != nil {
		return Order{}, errors.Wrap(err, "failed to query order")
	}
	return o, nil
}

// UpdateStatus sets the status of the order with the given provider
// order ID.
func (r *OrdersRepo) UpdateStatus(providerOrderID, status string) error {
	res, err := r.db.Exec(`
		UPDATE orders SET status = ?, updated_at = ? WHERE provider_order_id = ?
	`, status, time.Now().UTC(), providerOrderID)
	if err != nil {
		return errors.Wrap(err, "failed to update order status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if n == 0 {
		return errors.Wrapf(ErrOrderNotFound, "provider_order_id=%s", providerOrderID)
	}
	return nil
}

// ListByUser returns all orders for a user, newest first.
func (r *OrdersRepo) ListByUser(userID string) ([]Order, error) {
	var orders []Order
	err := r.db.Select(&orders, "SELECT * FROM orders WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list orders")
	}
	return orders, nil
}
