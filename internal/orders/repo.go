package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const orderColumns = `id, user_id, status, currency, items_cents, shipping_cents, discount_cents,
	tax_cents, total_cents, payment_provider, payment_ref, payment_id, created_at, updated_at`

// CreateOrder prices the cart from the catalog and stores the order with its
// item snapshots in one transaction. Shipping, discount and tax are zero.
func (r *Repo) CreateOrder(ctx context.Context, in NewOrder) (*Order, error) {
	currency, err := NormalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item required", ErrInvalidItems)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	catalog, err := productsByID(ctx, tx, in.productIDs())
	if err != nil {
		return nil, err
	}
	items, subtotal, err := PriceLines(in.Items, catalog)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		Status:     StatusPending,
		Currency:   currency,
		ItemsCents: subtotal,
		TotalCents: subtotal,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, status, currency, items_cents, shipping_cents, discount_cents, tax_cents, total_cents)
		VALUES ($1, $2, $3, $4, $5, 0, 0, 0, $6)
		RETURNING created_at, updated_at`,
		o.ID, o.UserID, o.Status, o.Currency, o.ItemsCents, o.TotalCents,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i := range items {
		it := &items[i]
		it.OrderID = o.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, variant_id, name, image_url, price_cents, qty)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			it.OrderID, it.ProductID, it.VariantID, it.Name, it.ImageURL, it.PriceCents, it.Qty,
		).Scan(&it.ID)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func productsByID(ctx context.Context, q querier, ids []string) (map[string]Product, error) {
	rows, err := q.Query(ctx, `SELECT id, sku, name, image_url, stock, price_cents, created_at, updated_at
		FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.ImageURL, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *Repo) GetOrder(ctx context.Context, id string) (*Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
}

// FindByPaymentRef looks an order up by its provider checkout session id.
func (r *Repo) FindByPaymentRef(ctx context.Context, ref string) (*Order, error) {
	if ref == "" {
		return nil, ErrNotFound
	}
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_ref=$1`, ref)
}

func (r *Repo) getOrder(ctx context.Context, sql string, arg string) (*Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, sql, arg).Scan(
		&o.ID, &o.UserID, &o.Status, &o.Currency, &o.ItemsCents, &o.ShippingCents, &o.DiscountCents,
		&o.TaxCents, &o.TotalCents, &o.PaymentProvider, &o.PaymentRef, &o.PaymentID, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `SELECT id, order_id, product_id, variant_id, name, image_url, price_cents, qty
		FROM order_items WHERE order_id=$1 ORDER BY id`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Name, &it.ImageURL, &it.PriceCents, &it.Qty); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

// AttachPaymentSession stores the provider and session id on a pending order.
func (r *Repo) AttachPaymentSession(ctx context.Context, orderID, provider, sessionID string) error {
	tag, err := r.DB.Exec(ctx, `UPDATE orders SET payment_provider=$2, payment_ref=$3, updated_at=now()
		WHERE id=$1`, orderID, provider, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, sku, name, image_url, stock, price_cents, created_at, updated_at
                                FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.ImageURL, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
