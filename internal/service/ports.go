package service

import (
	"context"
	"time"

	"campus-eats/internal/broker"
	"campus-eats/internal/models"
	"campus-eats/internal/redisclient"
	"campus-eats/internal/store"

	"github.com/google/uuid"
)

// Narrow views of the persistence and messaging layers, one per service.
// *store.Store satisfies every store interface; tests substitute in-memory
// fakes.

// LedgerStore is the persistence surface of the loyalty ledger.
type LedgerStore interface {
	GetAccountByUserID(ctx context.Context, userID string) (*models.LoyaltyAccount, error)
	GetTransactionsByAccountID(ctx context.Context, accountID string) ([]models.LoyaltyTransaction, error)
	AwardPointsTx(ctx context.Context, userID, orderID string, points int64, description string) (int64, bool, error)
	ReversePointsTx(ctx context.Context, orderID, description string) (int64, error)
	RedeemPointsTx(ctx context.Context, userID string, points int64, description string) (int64, error)
	RefundPointsTx(ctx context.Context, userID string, points int64, description string) (int64, error)
}

// CouponStore is the persistence surface of the coupon engine. Purchase and
// per-holder refund are single store transactions so the ledger and the
// wallet can never disagree.
type CouponStore interface {
	CreateCoupon(ctx context.Context, coupon *models.Coupon) error
	GetCouponByID(ctx context.Context, id string) (*models.Coupon, error)
	ListCoupons(ctx context.Context) ([]models.Coupon, error)
	DeleteCoupon(ctx context.Context, id string) error
	PurchaseCouponTx(ctx context.Context, userID string, coupon *models.Coupon, uc *models.UserCoupon, description string) (int64, error)
	RefundAndDeleteHolderTx(ctx context.Context, userCouponID, userID string, points int64, description string) (bool, error)
	GetUserCouponsByUserID(ctx context.Context, userID string) ([]models.UserCoupon, error)
	ListUnusedUserCouponsByCoupon(ctx context.Context, couponID string) ([]models.UserCoupon, error)
}

// OrderStore is the persistence surface of the order workflow.
type OrderStore interface {
	GetMenuItemByID(ctx context.Context, id string) (*models.MenuItem, error)
	GetMenuItemsByIDs(ctx context.Context, ids []string) ([]models.MenuItem, error)
	CreateOrderTx(ctx context.Context, order *models.Order, items []models.OrderItem, task *models.KitchenTask) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error)
	GetKitchenTaskByOrderID(ctx context.Context, orderID string) (*models.KitchenTask, error)
	CancelOrderTx(ctx context.Context, orderID string) (*models.Order, bool, error)
}

// KitchenStore is the persistence surface of kitchen task sync.
type KitchenStore interface {
	GetKitchenTaskByID(ctx context.Context, id string) (*models.KitchenTask, error)
	ApplyKitchenTransitionTx(ctx context.Context, taskID string, newStatus models.KitchenStatus, orderStatus models.OrderStatus, workerID string) (*models.KitchenTask, *models.Order, models.KitchenStatus, error)
	UpdateKitchenTaskNotes(ctx context.Context, taskID, notes string) (*models.KitchenTask, error)
	ListOpenKitchenTasks(ctx context.Context) ([]models.KitchenTask, error)
}

// PaymentStore is the persistence surface of payment confirmation.
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	GetMenuItemsByIDs(ctx context.Context, ids []string) ([]models.MenuItem, error)
	GetUserCouponByID(ctx context.Context, id string) (*models.UserCoupon, error)
	GetCouponByID(ctx context.Context, id string) (*models.Coupon, error)
	ConfirmPaymentTx(ctx context.Context, params store.ConfirmPaymentParams) (string, bool, error)
}

// EventSink publishes domain events.
type EventSink interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishKitchenStatusChanged(ctx context.Context, event *models.KitchenStatusChangedEvent) error
	PublishLoyaltyPointsAwarded(ctx context.Context, event *models.LoyaltyPointsAwardedEvent) error
	PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error
}

// WebhookCache is the fast-path dedup filter for replayed webhooks.
type WebhookCache interface {
	WebhookSeen(ctx context.Context, paymentID string) (bool, error)
	MarkWebhookSeen(ctx context.Context, paymentID string, ttl time.Duration) (bool, error)
}

// BoardCache is the Redis projection of the kitchen display board.
type BoardCache interface {
	GetBoard(ctx context.Context) ([]models.KitchenBoardEntry, error)
}

var (
	_ LedgerStore  = (*store.Store)(nil)
	_ CouponStore  = (*store.Store)(nil)
	_ OrderStore   = (*store.Store)(nil)
	_ KitchenStore = (*store.Store)(nil)
	_ PaymentStore = (*store.Store)(nil)
	_ EventSink    = (*broker.EventPublisher)(nil)
	_ WebhookCache = (*redisclient.Client)(nil)
	_ BoardCache   = (*redisclient.Client)(nil)
)

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
