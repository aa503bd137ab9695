package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventTypeCheckoutCompleted is the only webhook event type that triggers
// payment confirmation; everything else is acknowledged and ignored.
const EventTypeCheckoutCompleted = "checkout.session.completed"

// CheckoutMetadata carries the fields the payment provider echoes back on a
// completed checkout session. OrderItems is itself a JSON-encoded array.
type CheckoutMetadata struct {
	PaymentID    string `json:"payment_id"`
	UserID       string `json:"user_id"`
	OrderItems   string `json:"order_items"`
	UserCouponID string `json:"user_coupon_id,omitempty"`
}

// CartItem is one entry of the serialized order_items metadata field.
type CartItem struct {
	MenuItemID string `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
}

// Items decodes the serialized order_items list.
func (m *CheckoutMetadata) Items() ([]CartItem, error) {
	var items []CartItem
	if err := json.Unmarshal([]byte(m.OrderItems), &items); err != nil {
		return nil, fmt.Errorf("%w: order_items: %v", ErrMalformedPayload, err)
	}
	return items, nil
}

// PaymentWebhookEvent accepts the two payload shapes webhook providers send:
// metadata at the top level, or nested under data.object.
type PaymentWebhookEvent struct {
	Type     string            `json:"type"`
	Metadata *CheckoutMetadata `json:"metadata,omitempty"`
	Data     *struct {
		Object struct {
			Metadata *CheckoutMetadata `json:"metadata,omitempty"`
		} `json:"object"`
	} `json:"data,omitempty"`
}

// CheckoutMetadata tries the flat shape first, then the nested one.
func (e *PaymentWebhookEvent) CheckoutMetadata() (*CheckoutMetadata, bool) {
	if e.Metadata != nil {
		return e.Metadata, true
	}
	if e.Data != nil && e.Data.Object.Metadata != nil {
		return e.Data.Object.Metadata, true
	}
	return nil, false
}

// Domain event types published to Kafka.
const (
	EventTypeOrderPlaced          = "ORDER_PLACED"
	EventTypeOrderCancelled       = "ORDER_CANCELLED"
	EventTypeKitchenStatusChanged = "KITCHEN_STATUS_CHANGED"
	EventTypeLoyaltyPointsAwarded = "LOYALTY_POINTS_AWARDED"
	EventTypePaymentConfirmed     = "PAYMENT_CONFIRMED"
)

// BaseEvent contains common fields for all domain events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent is published when an order and its kitchen task exist.
type OrderPlacedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	TaskID  string `json:"task_id"`
	UserID  string `json:"user_id"`
	Total   int64  `json:"total"`
}

// OrderCancelledEvent is published when an order is cancelled.
type OrderCancelledEvent struct {
	BaseEvent
	OrderID        string `json:"order_id"`
	UserID         string `json:"user_id"`
	PointsReversed int64  `json:"points_reversed"`
}

// KitchenStatusChangedEvent is published on every kitchen task transition.
type KitchenStatusChangedEvent struct {
	BaseEvent
	TaskID    string        `json:"task_id"`
	OrderID   string        `json:"order_id"`
	OldStatus KitchenStatus `json:"old_status"`
	NewStatus KitchenStatus `json:"new_status"`
	WorkerID  string        `json:"worker_id,omitempty"`
	Notes     string        `json:"notes,omitempty"`
}

// LoyaltyPointsAwardedEvent is published after a first-time award for an order.
type LoyaltyPointsAwardedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Points  int64  `json:"points"`
	Balance int64  `json:"balance"`
}

// PaymentConfirmedEvent is published once per payment, after the
// confirmation transaction commits.
type PaymentConfirmedEvent struct {
	BaseEvent
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	Total     int64  `json:"total"`
}
