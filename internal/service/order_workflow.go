package service

import (
	"context"
	"fmt"

	"campus-eats/internal/models"
	"campus-eats/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderWorkflow builds orders with price snapshots and handles cancellation.
type OrderWorkflow struct {
	store  OrderStore
	ledger *LoyaltyLedger
	events EventSink
	logger *zap.Logger
}

// NewOrderWorkflow creates a new order workflow
func NewOrderWorkflow(store OrderStore, ledger *LoyaltyLedger, events EventSink) *OrderWorkflow {
	return &OrderWorkflow{
		store:  store,
		ledger: ledger,
		events: events,
		logger: util.GetLogger(),
	}
}

// menuIndex checks that every referenced menu item exists and is available,
// returning an index by id.
func menuIndex(menu []models.MenuItem, refs []models.CartItem) (map[string]*models.MenuItem, error) {
	index := make(map[string]*models.MenuItem, len(menu))
	for i := range menu {
		index[menu[i].ID] = &menu[i]
	}
	for _, ref := range refs {
		item, ok := index[ref.MenuItemID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrMenuItemNotFound, ref.MenuItemID)
		}
		if !item.Available {
			return nil, fmt.Errorf("%w: %s", models.ErrMenuItemUnavailable, ref.MenuItemID)
		}
	}
	return index, nil
}

// orderLines snapshots current unit prices into order items and returns the
// subtotal. Snapshotting decouples historical orders from future price
// changes.
func orderLines(orderID string, refs []models.CartItem, menu map[string]*models.MenuItem) ([]models.OrderItem, int64, error) {
	items := make([]models.OrderItem, 0, len(refs))
	var subtotal int64
	for _, ref := range refs {
		if ref.Quantity <= 0 {
			return nil, 0, fmt.Errorf("%w: item %s", models.ErrInvalidQuantity, ref.MenuItemID)
		}
		price := menu[ref.MenuItemID].Price
		items = append(items, models.OrderItem{
			ID:         uuid.New().String(),
			OrderID:    orderID,
			MenuItemID: ref.MenuItemID,
			Quantity:   ref.Quantity,
			UnitPrice:  price,
		})
		subtotal += price * int64(ref.Quantity)
	}
	return items, subtotal, nil
}

// PlaceOrder creates an order, its items and its kitchen task in one
// transaction. This is the non-payment-gated path; coupons apply only
// through payment confirmation.
func (w *OrderWorkflow) PlaceOrder(ctx context.Context, userID string, refs []models.CartItem) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderWorkflow.PlaceOrder")
	defer span.End()

	if len(refs) == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty").Inc()
		return nil, models.ErrEmptyOrder
	}

	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.MenuItemID
	}
	menu, err := w.store.GetMenuItemsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu items: %w", err)
	}
	index, err := menuIndex(menu, refs)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	order := &models.Order{
		ID:     uuid.New().String(),
		UserID: userID,
		Status: models.OrderStatusPending,
	}
	items, subtotal, err := orderLines(order.ID, refs, index)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}
	order.Subtotal = subtotal
	order.Total = subtotal

	task := &models.KitchenTask{
		ID:      uuid.New().String(),
		OrderID: order.ID,
		Status:  models.KitchenStatusNotStarted,
	}

	if err := w.store.CreateOrderTx(ctx, order, items, task); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	w.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Int64("total", order.Total))

	event := &models.OrderPlacedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:   order.ID,
		TaskID:    task.ID,
		UserID:    userID,
		Total:     order.Total,
	}
	if err := w.events.PublishOrderPlaced(ctx, event); err != nil {
		w.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	return order, nil
}

// Cancel cancels a pending order. Only the order's owner or a manager may
// cancel; a Cancelled or Completed order is a no-op returning false. Any
// points already earned for the order are reversed; the reversal is
// idempotent, and re-running Cancel on an already-cancelled order retries a
// reversal that previously failed.
func (w *OrderWorkflow) Cancel(ctx context.Context, orderID, callerID string, callerRole models.Role) (bool, error) {
	ctx, span := util.StartSpan(ctx, "OrderWorkflow.Cancel")
	defer span.End()

	order, err := w.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.UserID != callerID && callerRole != models.RoleManager && callerRole != models.RoleAdmin {
		return false, fmt.Errorf("%w: cancel order %s", models.ErrForbidden, orderID)
	}

	order, cancelled, err := w.store.CancelOrderTx(ctx, orderID)
	if err != nil {
		return false, err
	}
	if !cancelled && order.Status != models.OrderStatusCancelled {
		// Completed orders are never cancelled and keep their points.
		return false, nil
	}

	reversed, err := w.ledger.Reverse(ctx, orderID)
	if err != nil {
		w.logger.Error("Failed to reverse points for cancelled order",
			zap.String("order_id", orderID),
			zap.Error(err))
		return cancelled, err
	}

	if !cancelled {
		return false, nil
	}

	util.OrdersCancelledTotal.Inc()
	w.logger.Info("Order cancelled",
		zap.String("order_id", orderID),
		zap.String("cancelled_by", callerID),
		zap.Int64("points_reversed", reversed))

	event := &models.OrderCancelledEvent{
		BaseEvent:      newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:        orderID,
		UserID:         order.UserID,
		PointsReversed: reversed,
	}
	if err := w.events.PublishOrderCancelled(ctx, event); err != nil {
		w.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}

	return true, nil
}

// GetOrder retrieves an order with its items and kitchen task
func (w *OrderWorkflow) GetOrder(ctx context.Context, orderID string) (*models.Order, []models.OrderItem, *models.KitchenTask, error) {
	order, err := w.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, nil, err
	}
	items, err := w.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, nil, err
	}
	task, err := w.store.GetKitchenTaskByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, nil, err
	}
	return order, items, task, nil
}

// ListUserOrders retrieves a user's orders, newest first
func (w *OrderWorkflow) ListUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return w.store.GetOrdersByUserID(ctx, userID)
}

// GetMenuItem retrieves a menu item's current price and availability
func (w *OrderWorkflow) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	return w.store.GetMenuItemByID(ctx, id)
}
