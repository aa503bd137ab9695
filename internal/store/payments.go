package store

import (
	"context"
	"database/sql"
	"fmt"

	"campus-eats/internal/models"
)

// CreatePayment creates a Pending payment when a checkout session starts
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (id, user_id, amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		payment.ID, payment.UserID, payment.Amount, payment.Status,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
}

// GetPaymentByID retrieves a payment by ID
func (s *Store) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, "SELECT * FROM payments WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", models.ErrPaymentNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ConfirmPaymentParams is the unit of work for payment confirmation.
type ConfirmPaymentParams struct {
	PaymentID    string
	UserCouponID string // optional; marked used inside the transaction
	Order        *models.Order
	Items        []models.OrderItem
	Task         *models.KitchenTask
}

// ConfirmPaymentTx executes steps 4-8 of payment confirmation as a single
// transaction: mark the coupon used, create the order with its items and
// kitchen task, and flip the payment Pending -> Succeeded. The payment row is
// locked first; a payment already Succeeded short-circuits to the existing
// order so replayed webhooks are safe no-ops.
func (s *Store) ConfirmPaymentTx(ctx context.Context, params ConfirmPaymentParams) (string, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback()

	var payment models.Payment
	err = tx.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE id = $1 FOR UPDATE", params.PaymentID)
	if err == sql.ErrNoRows {
		return "", false, fmt.Errorf("%w: %s", models.ErrPaymentNotFound, params.PaymentID)
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to lock payment: %w", err)
	}

	if payment.Status == models.PaymentStatusSucceeded {
		orderID := ""
		if payment.OrderID != nil {
			orderID = *payment.OrderID
		}
		return orderID, true, tx.Commit()
	}

	if params.UserCouponID != "" {
		if err := markUserCouponUsed(ctx, tx, params.UserCouponID); err != nil {
			return "", false, err
		}
	}

	if err := insertOrder(ctx, tx, params.Order); err != nil {
		return "", false, fmt.Errorf("failed to create order: %w", err)
	}
	for i := range params.Items {
		if err := insertOrderItem(ctx, tx, &params.Items[i]); err != nil {
			return "", false, fmt.Errorf("failed to create order item: %w", err)
		}
	}
	if err := insertKitchenTask(ctx, tx, params.Task); err != nil {
		return "", false, fmt.Errorf("failed to create kitchen task: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payments SET status = $1, order_id = $2, updated_at = NOW()
		WHERE id = $3`,
		models.PaymentStatusSucceeded, params.Order.ID, params.PaymentID)
	if err != nil {
		return "", false, fmt.Errorf("failed to mark payment succeeded: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, err
	}
	return params.Order.ID, false, nil
}
