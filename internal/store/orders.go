package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/laserline/engraver/internal/orders"
)

// sidePrefix maps a side to its column prefix. Side is a typed constant,
// so interpolating the prefix into SQL never carries user input.
func sidePrefix(side orders.Side) (own, other string) {
	if side == orders.SideRetro {
		return "retro", "front"
	}
	return "front", "retro"
}

const orderColumns = `
	order_id, sku, buyer_name, custom_field, purchase_date, raw_payload,
	front_status, front_error_message, front_attempt_count, front_processed_at,
	retro_status, retro_error_message, retro_attempt_count, retro_processed_at,
	overall_status, created_at, updated_at
`

// InsertOrder inserts a new order with front pending and retro not required.
// Uses ON CONFLICT(order_id) DO NOTHING: an existing order is left completely
// untouched, so a resync never mutates in-flight or historical side state.
// Returns whether a new row was actually inserted.
func (s *Store) InsertOrder(ctx context.Context, o *orders.Order) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO orders
		(order_id, sku, buyer_name, custom_field, purchase_date, raw_payload,
		 front_status, retro_status, overall_status)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', 'not_required', 'pending')
		ON CONFLICT(order_id) DO NOTHING
	`,
		o.OrderID,
		o.SKU,
		o.BuyerName,
		o.CustomField,
		o.PurchaseDate,
		o.RawPayload,
	)
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert order: rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// GetOrder returns the order with the given ID, or nil if it does not exist.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_id = ?`, orderID)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// ListOrders returns all orders, optionally filtered by overall status.
// Ordered by creation time, then order ID for a stable tie-break.
func (s *Store) ListOrders(ctx context.Context, overall orders.OverallStatus) ([]orders.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if overall != "" {
		query += ` WHERE overall_status = ?`
		args = append(args, string(overall))
	}
	query += ` ORDER BY created_at ASC, order_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	list := []orders.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		list = append(list, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: iterate: %w", err)
	}
	return list, nil
}

// RetroNotRequiredSKUs returns the distinct SKUs of orders whose retro side
// is still not_required. Used by the synchronizer's promotion pass, which
// evaluates the retro template once per SKU instead of once per order.
func (s *Store) RetroNotRequiredSKUs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT sku FROM orders
		WHERE retro_status = 'not_required' AND sku != ''
		ORDER BY sku ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("retro skus: %w", err)
	}
	defer rows.Close()

	var skus []string
	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err != nil {
			return nil, fmt.Errorf("retro skus: %w", err)
		}
		skus = append(skus, sku)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("retro skus: iterate: %w", err)
	}
	return skus, nil
}

// DeleteOrdersNotIn removes every order whose ID is absent from keep,
// returning the number of deleted rows. With an empty keep set all orders
// are removed. This is the reconciling half of a sync: after it runs the
// table mirrors the feed's current order set.
func (s *Store) DeleteOrdersNotIn(ctx context.Context, keep []string) (int64, error) {
	var res sql.Result
	var err error
	if len(keep) == 0 {
		res, err = s.db.ExecContext(ctx, `DELETE FROM orders`)
	} else {
		placeholders := strings.Repeat("?,", len(keep)-1) + "?"
		args := make([]any, len(keep))
		for i, id := range keep {
			args[i] = id
		}
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM orders WHERE order_id NOT IN (`+placeholders+`)`, args...)
	}
	if err != nil {
		return 0, fmt.Errorf("delete orders: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete orders: rows affected: %w", err)
	}
	return deleted, nil
}

// AcquireSide transitions a side to processing if and only if its current
// status allows processing (pending, printed or error). The read-check and
// the transition are one conditional UPDATE, so of two racing callers
// exactly one sees rowsAffected == 1; the loser must classify the refusal
// by re-reading the order.
//
// The side's error message is cleared on acquisition; the attempt count is
// deliberately left untouched until the outcome is known.
func (s *Store) AcquireSide(ctx context.Context, orderID string, side orders.Side) (bool, error) {
	own, other := sidePrefix(side)
	query := fmt.Sprintf(`
		UPDATE orders
		SET %[1]s_status = 'processing',
		    %[1]s_error_message = NULL,
		    overall_status = CASE WHEN %[2]s_status = 'error' THEN 'error' ELSE 'processing' END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE order_id = ? AND %[1]s_status IN ('pending','printed','error')
	`, own, other)

	res, err := s.db.ExecContext(ctx, query, orderID)
	if err != nil {
		return false, fmt.Errorf("acquire %s side: %w", side, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire %s side: rows affected: %w", side, err)
	}
	return rowsAffected == 1, nil
}

// CompleteSide transitions a processing side to printed, stamps the
// processed time and clears the error message. The order's overall status
// is re-derived in the same transaction.
//
// Returns false without error if the order vanished or the side is no
// longer processing (a concurrent sync may delete an order mid-job).
func (s *Store) CompleteSide(ctx context.Context, orderID string, side orders.Side, at time.Time) (bool, error) {
	own, _ := sidePrefix(side)
	query := fmt.Sprintf(`
		UPDATE orders
		SET %[1]s_status = 'printed',
		    %[1]s_error_message = NULL,
		    %[1]s_processed_at = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE order_id = ? AND %[1]s_status = 'processing'
	`, own)

	return s.sideTransition(ctx, orderID, fmt.Sprintf("complete %s side", side), query, at, orderID)
}

// FailSide records a failure on a processing side: the verbatim error
// message, the new attempt count and the resulting status (pending when
// retryable, error when exhausted or permanent). The overall status is
// re-derived in the same transaction.
//
// Returns false without error if the order vanished or the side is no
// longer processing.
func (s *Store) FailSide(ctx context.Context, orderID string, side orders.Side, status orders.SideStatus, message string, attemptCount int) (bool, error) {
	if status != orders.StatusPending && status != orders.StatusError {
		return false, fmt.Errorf("fail %s side: invalid failure status %q", side, status)
	}

	own, _ := sidePrefix(side)
	query := fmt.Sprintf(`
		UPDATE orders
		SET %[1]s_status = ?,
		    %[1]s_error_message = ?,
		    %[1]s_attempt_count = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE order_id = ? AND %[1]s_status = 'processing'
	`, own)

	return s.sideTransition(ctx, orderID, fmt.Sprintf("fail %s side", side),
		query, string(status), message, attemptCount, orderID)
}

// ResetSide is the manual retry/reset path: back to pending, error message
// cleared, attempt count zeroed, bypassing the retry ceiling. Rejected
// (returns false) while the side is processing, and for a not_required
// retro: promotion is the synchronizer's decision alone.
func (s *Store) ResetSide(ctx context.Context, orderID string, side orders.Side) (bool, error) {
	own, _ := sidePrefix(side)
	query := fmt.Sprintf(`
		UPDATE orders
		SET %[1]s_status = 'pending',
		    %[1]s_error_message = NULL,
		    %[1]s_attempt_count = 0,
		    updated_at = CURRENT_TIMESTAMP
		WHERE order_id = ? AND %[1]s_status IN ('pending','printed','error')
	`, own)

	return s.sideTransition(ctx, orderID, fmt.Sprintf("reset %s side", side), query, orderID)
}

// PromoteRetro sets retro to pending for every order with the given SKU
// whose retro is still not_required, returning the number of promoted rows.
// The overall status is re-derived inline: with retro pending the order can
// only be pending, or error/processing if the front already is.
func (s *Store) PromoteRetro(ctx context.Context, sku string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET retro_status = 'pending',
		    overall_status = CASE
		        WHEN front_status = 'error' THEN 'error'
		        WHEN front_status = 'processing' THEN 'processing'
		        ELSE 'pending'
		    END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE sku = ? AND retro_status = 'not_required'
	`, sku)
	if err != nil {
		return 0, fmt.Errorf("promote retro: %w", err)
	}

	promoted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("promote retro: rows affected: %w", err)
	}
	return promoted, nil
}

// sideTransition runs a guarded side update and re-derives the overall
// status from both side columns inside one transaction. Returns whether
// the guarded update matched a row.
func (s *Store) sideTransition(ctx context.Context, orderID, op, query string, args ...any) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	var front, retro string
	err = tx.QueryRowContext(ctx,
		`SELECT front_status, retro_status FROM orders WHERE order_id = ?`, orderID,
	).Scan(&front, &retro)
	if err != nil {
		return false, fmt.Errorf("%s: read side statuses: %w", op, err)
	}

	overall := orders.Aggregate(orders.SideStatus(front), orders.SideStatus(retro))
	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET overall_status = ? WHERE order_id = ?`, string(overall), orderID)
	if err != nil {
		return false, fmt.Errorf("%s: write overall status: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: commit: %w", op, err)
	}
	return true, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*orders.Order, error) {
	var (
		o                    orders.Order
		frontErr, retroErr   sql.NullString
		frontAt, retroAt     sql.NullTime
		frontSt, retroSt     string
		overall              string
		createdAt, updatedAt time.Time
	)

	err := row.Scan(
		&o.OrderID, &o.SKU, &o.BuyerName, &o.CustomField, &o.PurchaseDate, &o.RawPayload,
		&frontSt, &frontErr, &o.Front.AttemptCount, &frontAt,
		&retroSt, &retroErr, &o.Retro.AttemptCount, &retroAt,
		&overall, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Front.Status = orders.SideStatus(frontSt)
	o.Front.ErrorMessage = frontErr.String
	if frontAt.Valid {
		t := frontAt.Time
		o.Front.ProcessedAt = &t
	}
	o.Retro.Status = orders.SideStatus(retroSt)
	o.Retro.ErrorMessage = retroErr.String
	if retroAt.Valid {
		t := retroAt.Time
		o.Retro.ProcessedAt = &t
	}
	o.Overall = orders.OverallStatus(overall)
	o.CreatedAt = createdAt
	o.UpdatedAt = updatedAt
	return &o, nil
}
