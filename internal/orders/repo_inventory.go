package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Reserve writes one RESERVE movement per order item.
func (r *Repo) Reserve(ctx context.Context, orderID string) error {
	return appendMovements(ctx, r.DB, orderID, MovementReserve)
}

// Release writes one RELEASE movement per order item and leaves the status
// alone. Cancel runs the same step inside its transaction. Earlier RESERVE
// rows stay in place; the ledger is append-only.
func (r *Repo) Release(ctx context.Context, orderID string) error {
	return release(ctx, r.DB, orderID)
}

func release(ctx context.Context, q querier, orderID string) error {
	return appendMovements(ctx, q, orderID, MovementRelease)
}

func appendMovements(ctx context.Context, q querier, orderID string, typ MovementType) error {
	tag, err := q.Exec(ctx, `
		INSERT INTO inventory_movements(type, qty, product_id, variant_id, order_id)
		SELECT $2, qty, product_id, variant_id, order_id FROM order_items WHERE order_id=$1
		ORDER BY id`, orderID, typ)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid moves a PENDING order to PAID, writes an OUT movement per item and
// adds the order total to the owner's lifetime spend. When ev is set the
// ledger row is inserted in the same transaction; a known event id returns
// OutcomeDuplicate with nothing changed.
func (r *Repo) MarkPaid(ctx context.Context, orderID, paymentID string, ev *WebhookEvent) (Outcome, error) {
	return r.guarded(ctx, ev, func(tx pgx.Tx) (Outcome, error) {
		var (
			userID *string
			total  int64
		)
		err := tx.QueryRow(ctx, `UPDATE orders SET status=$2, payment_id=$3, updated_at=now()
			WHERE id=$1 AND status=$4
			RETURNING user_id, total_cents`,
			orderID, StatusPaid, paymentID, StatusPending,
		).Scan(&userID, &total)
		if errors.Is(err, pgx.ErrNoRows) {
			return OutcomeSkipped, nil
		}
		if err != nil {
			return "", err
		}

		if err := appendMovements(ctx, tx, orderID, MovementOut); err != nil {
			return "", err
		}
		if userID != nil {
			if _, err := tx.Exec(ctx, `UPDATE users SET lifetime_spend_cents = lifetime_spend_cents + $2, updated_at=now()
				WHERE id=$1`, *userID, total); err != nil {
				return "", err
			}
		}
		return OutcomeApplied, nil
	})
}

// Cancel moves a PENDING order to CANCELLED and releases its reservation.
// Ledger handling matches MarkPaid.
func (r *Repo) Cancel(ctx context.Context, orderID string, ev *WebhookEvent) (Outcome, error) {
	return r.guarded(ctx, ev, func(tx pgx.Tx) (Outcome, error) {
		out, err := setCancelled(ctx, tx, orderID)
		if err != nil || out != OutcomeApplied {
			return out, err
		}
		if err := release(ctx, tx, orderID); err != nil {
			return "", err
		}
		return OutcomeApplied, nil
	})
}

// Abandon cancels a PENDING order that never got its reservation written, so
// no RELEASE rows are added.
func (r *Repo) Abandon(ctx context.Context, orderID string) (Outcome, error) {
	return r.guarded(ctx, nil, func(tx pgx.Tx) (Outcome, error) {
		return setCancelled(ctx, tx, orderID)
	})
}

func setCancelled(ctx context.Context, tx pgx.Tx, orderID string) (Outcome, error) {
	tag, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1 AND status=$3`,
		orderID, StatusCancelled, StatusPending)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 0 {
		return OutcomeSkipped, nil
	}
	return OutcomeApplied, nil
}

// RecordEvent stores an event that needs no order change.
func (r *Repo) RecordEvent(ctx context.Context, ev *WebhookEvent) (Outcome, error) {
	return r.guarded(ctx, ev, func(pgx.Tx) (Outcome, error) { return OutcomeSkipped, nil })
}

func (r *Repo) guarded(ctx context.Context, ev *WebhookEvent, fn func(pgx.Tx) (Outcome, error)) (Outcome, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if ev != nil {
		// A concurrent delivery of the same id blocks on the primary key until
		// this transaction ends, then sees the conflict.
		tag, err := tx.Exec(ctx, `INSERT INTO webhook_events(provider, event_id, event_type)
			VALUES ($1, $2, $3) ON CONFLICT (provider, event_id) DO NOTHING`,
			ev.Provider, ev.EventID, ev.EventType)
		if err != nil {
			return "", err
		}
		if tag.RowsAffected() == 0 {
			return OutcomeDuplicate, nil
		}
	}

	out, err := fn(tx)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return out, nil
}

// Movements lists the inventory ledger of an order in insertion order.
func (r *Repo) Movements(ctx context.Context, orderID string) ([]InventoryMovement, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, type, qty, product_id, variant_id, order_id, created_at
		FROM inventory_movements WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InventoryMovement
	for rows.Next() {
		var m InventoryMovement
		if err := rows.Scan(&m.ID, &m.Type, &m.Qty, &m.ProductID, &m.VariantID, &m.OrderID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
