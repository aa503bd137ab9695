package store

import (
	"context"
	"database/sql"
	"fmt"

	"campus-eats/internal/models"

	"github.com/jmoiron/sqlx"
)

// insertOrder inserts an order row within an existing transaction.
func insertOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders (id, user_id, status, subtotal, discount_amount, total, loyalty_points_awarded)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	return tx.QueryRowxContext(ctx, query,
		order.ID, order.UserID, order.Status, order.Subtotal,
		order.DiscountAmount, order.Total, order.LoyaltyPointsAwarded,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
}

// insertOrderItem inserts an order item row within an existing transaction.
func insertOrderItem(ctx context.Context, tx *sqlx.Tx, item *models.OrderItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, menu_item_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)`,
		item.ID, item.OrderID, item.MenuItemID, item.Quantity, item.UnitPrice)
	return err
}

// insertKitchenTask inserts a kitchen task row within an existing transaction.
func insertKitchenTask(ctx context.Context, tx *sqlx.Tx, task *models.KitchenTask) error {
	query := `
		INSERT INTO kitchen_tasks (id, order_id, status, assigned_worker_id, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	return tx.QueryRowxContext(ctx, query,
		task.ID, task.OrderID, task.Status, task.AssignedWorkerID, task.Notes,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
}

// CreateOrderTx persists an order, its items and its kitchen task as one
// transaction. Used by the direct placement path; the payment-confirmation
// path goes through ConfirmPaymentTx instead.
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order, items []models.OrderItem, task *models.KitchenTask) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertOrder(ctx, tx, order); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	for i := range items {
		if err := insertOrderItem(ctx, tx, &items[i]); err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}
	if err := insertKitchenTask(ctx, tx, task); err != nil {
		return fmt.Errorf("failed to create kitchen task: %w", err)
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", models.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}

// GetOrdersByUserID retrieves orders for a user, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// GetKitchenTaskByID retrieves a kitchen task by ID
func (s *Store) GetKitchenTaskByID(ctx context.Context, id string) (*models.KitchenTask, error) {
	var task models.KitchenTask
	err := s.db.GetContext(ctx, &task, "SELECT * FROM kitchen_tasks WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", models.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// GetKitchenTaskByOrderID retrieves the kitchen task paired with an order
func (s *Store) GetKitchenTaskByOrderID(ctx context.Context, orderID string) (*models.KitchenTask, error) {
	var task models.KitchenTask
	err := s.db.GetContext(ctx, &task, "SELECT * FROM kitchen_tasks WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: order %s", models.ErrTaskNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListOpenKitchenTasks retrieves tasks still in the kitchen's queue: not
// completed, and whose order has not been cancelled.
func (s *Store) ListOpenKitchenTasks(ctx context.Context) ([]models.KitchenTask, error) {
	var tasks []models.KitchenTask
	err := s.db.SelectContext(ctx, &tasks, `
		SELECT kt.* FROM kitchen_tasks kt
		JOIN orders o ON o.id = kt.order_id
		WHERE kt.status <> $1 AND o.status <> $2
		ORDER BY kt.created_at`,
		models.KitchenStatusCompleted, models.OrderStatusCancelled)
	return tasks, err
}

// UpdateKitchenTaskNotes updates the free-text notes on a task. Notes carry
// no state-machine constraint.
func (s *Store) UpdateKitchenTaskNotes(ctx context.Context, taskID, notes string) (*models.KitchenTask, error) {
	var task models.KitchenTask
	err := s.db.GetContext(ctx, &task, `
		UPDATE kitchen_tasks SET notes = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING *`, notes, taskID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", models.ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ApplyKitchenTransitionTx advances a kitchen task and mirrors the new status
// onto the owning order, all under row locks so racing updates serialize.
// orderStatus == "" leaves the order status untouched (Ready does not change
// the order in the data model). A cancelled order rejects every transition.
func (s *Store) ApplyKitchenTransitionTx(ctx context.Context, taskID string, newStatus models.KitchenStatus, orderStatus models.OrderStatus, workerID string) (*models.KitchenTask, *models.Order, models.KitchenStatus, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, "", err
	}
	defer tx.Rollback()

	var task models.KitchenTask
	err = tx.GetContext(ctx, &task, "SELECT * FROM kitchen_tasks WHERE id = $1 FOR UPDATE", taskID)
	if err == sql.ErrNoRows {
		return nil, nil, "", fmt.Errorf("%w: %s", models.ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to lock kitchen task: %w", err)
	}
	prev := task.Status

	var order models.Order
	err = tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", task.OrderID)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to lock order: %w", err)
	}

	if order.Status == models.OrderStatusCancelled {
		return nil, nil, "", fmt.Errorf("%w: %s", models.ErrOrderCancelled, order.ID)
	}

	err = tx.GetContext(ctx, &task, `
		UPDATE kitchen_tasks
		SET status = $1, assigned_worker_id = COALESCE(NULLIF($2, ''), assigned_worker_id), updated_at = NOW()
		WHERE id = $3
		RETURNING *`, newStatus, workerID, taskID)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to update kitchen task: %w", err)
	}

	if orderStatus != "" && order.Status != orderStatus {
		err = tx.GetContext(ctx, &order, `
			UPDATE orders SET status = $1, updated_at = NOW()
			WHERE id = $2
			RETURNING *`, orderStatus, order.ID)
		if err != nil {
			return nil, nil, "", fmt.Errorf("failed to update order status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, "", err
	}
	return &task, &order, prev, nil
}

// CancelOrderTx marks an order cancelled under a row lock. Returns false
// without mutating anything when the order is already Cancelled or Completed.
func (s *Store) CancelOrderTx(ctx context.Context, orderID string) (*models.Order, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return nil, false, fmt.Errorf("%w: %s", models.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock order: %w", err)
	}

	if order.Status.Terminal() {
		return &order, false, nil
	}

	err = tx.GetContext(ctx, &order, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING *`, models.OrderStatusCancelled, orderID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to cancel order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &order, true, nil
}
