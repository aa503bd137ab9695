package models

import (
	"fmt"
	"strings"
	"time"
)

// Monetary amounts are stored in bani (1 RON = 100 bani).

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether no further status changes are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// KitchenStatus is the fulfillment state of a kitchen task.
type KitchenStatus string

const (
	KitchenStatusNotStarted KitchenStatus = "NOT_STARTED"
	KitchenStatusPreparing  KitchenStatus = "PREPARING"
	KitchenStatusReady      KitchenStatus = "READY"
	KitchenStatusCompleted  KitchenStatus = "COMPLETED"
)

// ParseKitchenStatus parses a case-insensitive status name. Separators are
// ignored so "NotStarted", "not_started" and "NOT STARTED" all parse.
func ParseKitchenStatus(raw string) (KitchenStatus, error) {
	folded := strings.ToUpper(strings.NewReplacer("_", "", "-", "", " ", "").Replace(raw))
	switch folded {
	case "NOTSTARTED":
		return KitchenStatusNotStarted, nil
	case "PREPARING":
		return KitchenStatusPreparing, nil
	case "READY":
		return KitchenStatusReady, nil
	case "COMPLETED":
		return KitchenStatusCompleted, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// PaymentStatus gates webhook idempotency: Pending -> Succeeded is the only
// transition, and a Succeeded payment is never reprocessed.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
)

// CouponType selects the discount formula.
type CouponType string

const (
	CouponTypePercentage  CouponType = "PERCENTAGE"
	CouponTypeFixedAmount CouponType = "FIXED_AMOUNT"
	CouponTypeFreeItem    CouponType = "FREE_ITEM"
)

// TransactionType classifies a loyalty ledger entry.
type TransactionType string

const (
	TransactionTypeEarned   TransactionType = "EARNED"
	TransactionTypeRedeemed TransactionType = "REDEEMED"
	TransactionTypeAdjusted TransactionType = "ADJUSTED"
)

// Role is the caller's role as supplied by the auth collaborator.
type Role string

const (
	RoleStudent Role = "student"
	RoleKitchen Role = "kitchen"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// MenuItem is the menu collaborator's view of an item: existence, current
// price and availability. Full menu CRUD lives outside this service.
type MenuItem struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	Available bool      `db:"available" json:"available"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Order represents a customer order. Total = Subtotal - DiscountAmount.
type Order struct {
	ID                   string      `db:"id" json:"id"`
	UserID               string      `db:"user_id" json:"user_id"`
	Status               OrderStatus `db:"status" json:"status"`
	Subtotal             int64       `db:"subtotal" json:"subtotal"`
	DiscountAmount       int64       `db:"discount_amount" json:"discount_amount"`
	Total                int64       `db:"total" json:"total"`
	LoyaltyPointsAwarded bool        `db:"loyalty_points_awarded" json:"loyalty_points_awarded"`
	CreatedAt            time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updated_at"`
}

// OrderItem snapshots the unit price at order time so historical orders are
// unaffected by later menu price changes. Immutable after creation.
type OrderItem struct {
	ID         string `db:"id" json:"id"`
	OrderID    string `db:"order_id" json:"order_id"`
	MenuItemID string `db:"menu_item_id" json:"menu_item_id"`
	Quantity   int    `db:"quantity" json:"quantity"`
	UnitPrice  int64  `db:"unit_price" json:"unit_price"`
}

// KitchenTask is the fulfillment record paired 1:1 with an order.
type KitchenTask struct {
	ID               string        `db:"id" json:"id"`
	OrderID          string        `db:"order_id" json:"order_id"`
	Status           KitchenStatus `db:"status" json:"status"`
	AssignedWorkerID *string       `db:"assigned_worker_id" json:"assigned_worker_id,omitempty"`
	Notes            string        `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// LoyaltyAccount caches the running sum of its transactions. Points never go
// below zero.
type LoyaltyAccount struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Points    int64     `db:"points" json:"points"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LoyaltyTransaction is an append-only ledger entry. The account balance is
// always the running sum of its entries.
type LoyaltyTransaction struct {
	ID             string          `db:"id" json:"id"`
	AccountID      string          `db:"account_id" json:"account_id"`
	PointsChange   int64           `db:"points_change" json:"points_change"`
	Type           TransactionType `db:"type" json:"type"`
	Description    string          `db:"description" json:"description"`
	RelatedOrderID *string         `db:"related_order_id" json:"related_order_id,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Coupon is a purchasable benefit paid for with loyalty points.
type Coupon struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Description    string     `db:"description" json:"description"`
	Type           CouponType `db:"type" json:"type"`
	DiscountValue  int64      `db:"discount_value" json:"discount_value"`
	PointsCost     int64      `db:"points_cost" json:"points_cost"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	FreeItemID     *string    `db:"free_item_id" json:"free_item_id,omitempty"`
	MinOrderAmount int64      `db:"min_order_amount" json:"min_order_amount"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Expired reports whether the coupon can no longer be purchased or applied.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// UserCoupon is a user's purchased, not-yet-consumed instance of a coupon.
// The expiry is copied from the coupon at purchase time.
type UserCoupon struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	CouponID   string     `db:"coupon_id" json:"coupon_id"`
	IsUsed     bool       `db:"is_used" json:"is_used"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	AcquiredAt time.Time  `db:"acquired_at" json:"acquired_at"`
}

// Expired reports whether the purchased coupon has lapsed.
func (uc *UserCoupon) Expired(now time.Time) bool {
	return uc.ExpiresAt != nil && now.After(*uc.ExpiresAt)
}

// Payment is created when a checkout session starts and flipped to Succeeded
// exactly once by the confirmation processor.
type Payment struct {
	ID        string        `db:"id" json:"id"`
	UserID    string        `db:"user_id" json:"user_id"`
	Amount    int64         `db:"amount" json:"amount"`
	Status    PaymentStatus `db:"status" json:"status"`
	OrderID   *string       `db:"order_id" json:"order_id,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// KitchenBoardEntry is the Redis-cached projection of an open kitchen task
// shown on the kitchen display.
type KitchenBoardEntry struct {
	TaskID    string        `json:"task_id"`
	OrderID   string        `json:"order_id"`
	Status    KitchenStatus `json:"status"`
	Notes     string        `json:"notes,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}
