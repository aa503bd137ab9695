package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campus-eats/internal/models"
	"campus-eats/internal/store"
	"campus-eats/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentConfirmationProcessor turns a verified payment-completed webhook
// into an order with its items and kitchen task. The Payment row's
// Pending -> Succeeded transition is the idempotency gate: a replayed webhook
// finds the payment already Succeeded and returns the existing order without
// side effects.
type PaymentConfirmationProcessor struct {
	store    PaymentStore
	coupons  *CouponEngine
	cache    WebhookCache
	events   EventSink
	logger   *zap.Logger
	dedupTTL time.Duration
}

// NewPaymentConfirmationProcessor creates a new payment confirmation processor
func NewPaymentConfirmationProcessor(store PaymentStore, coupons *CouponEngine, cache WebhookCache, events EventSink, dedupTTL time.Duration) *PaymentConfirmationProcessor {
	if dedupTTL <= 0 {
		dedupTTL = 24 * time.Hour
	}
	return &PaymentConfirmationProcessor{
		store:    store,
		coupons:  coupons,
		cache:    cache,
		events:   events,
		logger:   util.GetLogger(),
		dedupTTL: dedupTTL,
	}
}

// ConfirmationResult reports what a webhook delivery did.
type ConfirmationResult struct {
	Processed bool   `json:"processed"`
	Duplicate bool   `json:"duplicate,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
	Total     int64  `json:"total,omitempty"`
}

// StartCheckout creates the Pending payment a checkout session will confirm.
func (p *PaymentConfirmationProcessor) StartCheckout(ctx context.Context, userID string, amount int64) (*models.Payment, error) {
	payment := &models.Payment{
		ID:     uuid.New().String(),
		UserID: userID,
		Amount: amount,
		Status: models.PaymentStatusPending,
	}
	if err := p.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	p.logger.Info("Checkout started",
		zap.String("payment_id", payment.ID),
		zap.String("user_id", userID),
		zap.Int64("amount", amount))
	return payment, nil
}

// Process handles one webhook delivery. Non-checkout events are acknowledged
// and ignored. Malformed or metadata-less payloads fail with a data-format
// error so the provider's retry can surface a transient upstream fix. The
// whole confirmation (coupon mark-used, order, items, kitchen task, payment
// flip) commits as a single transaction.
func (p *PaymentConfirmationProcessor) Process(ctx context.Context, payload []byte) (*ConfirmationResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentConfirmationProcessor.Process")
	defer span.End()

	start := time.Now()
	defer func() {
		util.PaymentConfirmationLatency.Observe(time.Since(start).Seconds())
	}()

	var event models.PaymentWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		util.WebhooksRejectedTotal.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
	}

	if event.Type != models.EventTypeCheckoutCompleted {
		return &ConfirmationResult{Processed: false}, nil
	}

	meta, ok := event.CheckoutMetadata()
	if !ok {
		util.WebhooksRejectedTotal.WithLabelValues("missing_metadata").Inc()
		return nil, models.ErrMissingMetadata
	}
	for _, field := range []struct {
		name, value string
	}{
		{"payment_id", meta.PaymentID},
		{"user_id", meta.UserID},
		{"order_items", meta.OrderItems},
	} {
		if field.value == "" {
			util.WebhooksRejectedTotal.WithLabelValues("missing_field").Inc()
			return nil, fmt.Errorf("%w: %s", models.ErrMissingMetadata, field.name)
		}
	}

	refs, err := meta.Items()
	if err != nil {
		util.WebhooksRejectedTotal.WithLabelValues("bad_order_items").Inc()
		return nil, err
	}
	if len(refs) == 0 {
		util.WebhooksRejectedTotal.WithLabelValues("bad_order_items").Inc()
		return nil, fmt.Errorf("%w: empty order_items", models.ErrMalformedPayload)
	}

	// Fast-path dedup; the payment row lock below stays authoritative.
	if seen, err := p.cache.WebhookSeen(ctx, meta.PaymentID); err == nil && seen {
		if payment, err := p.store.GetPaymentByID(ctx, meta.PaymentID); err == nil && payment.Status == models.PaymentStatusSucceeded {
			util.DuplicateWebhooksTotal.Inc()
			orderID := ""
			if payment.OrderID != nil {
				orderID = *payment.OrderID
			}
			return &ConfirmationResult{Duplicate: true, OrderID: orderID}, nil
		}
	}

	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.MenuItemID
	}
	menu, err := p.store.GetMenuItemsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu items: %w", err)
	}
	index, err := menuIndex(menu, refs)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New().String()
	items, subtotal, err := orderLines(orderID, refs, index)
	if err != nil {
		return nil, err
	}

	var discount int64
	userCouponID := ""
	if meta.UserCouponID != "" {
		uc, err := p.store.GetUserCouponByID(ctx, meta.UserCouponID)
		if err != nil {
			return nil, err
		}
		if uc.UserID != meta.UserID {
			return nil, fmt.Errorf("%w: coupon %s belongs to another user", models.ErrForbidden, uc.ID)
		}
		if uc.IsUsed {
			return nil, fmt.Errorf("%w: %s", models.ErrCouponAlreadyUsed, uc.ID)
		}
		if uc.Expired(time.Now()) {
			// A lapsed coupon grants nothing but does not block the order.
			p.logger.Warn("Ignoring expired user coupon at confirmation",
				zap.String("user_coupon_id", uc.ID))
		} else {
			coupon, err := p.store.GetCouponByID(ctx, uc.CouponID)
			if err != nil {
				return nil, err
			}
			discount = p.coupons.ComputeDiscount(coupon, items)
			userCouponID = uc.ID
		}
	}

	if discount > subtotal {
		discount = subtotal
	}
	total := subtotal - discount

	order := &models.Order{
		ID:             orderID,
		UserID:         meta.UserID,
		Status:         models.OrderStatusPending,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Total:          total,
	}
	task := &models.KitchenTask{
		ID:      uuid.New().String(),
		OrderID: orderID,
		Status:  models.KitchenStatusNotStarted,
	}

	confirmedOrderID, duplicate, err := p.store.ConfirmPaymentTx(ctx, store.ConfirmPaymentParams{
		PaymentID:    meta.PaymentID,
		UserCouponID: userCouponID,
		Order:        order,
		Items:        items,
		Task:         task,
	})
	if err != nil {
		return nil, err
	}
	if duplicate {
		util.DuplicateWebhooksTotal.Inc()
		p.logger.Info("Replayed webhook short-circuited",
			zap.String("payment_id", meta.PaymentID),
			zap.String("order_id", confirmedOrderID))
		return &ConfirmationResult{Duplicate: true, OrderID: confirmedOrderID}, nil
	}

	if _, err := p.cache.MarkWebhookSeen(ctx, meta.PaymentID, p.dedupTTL); err != nil {
		p.logger.Warn("Failed to mark webhook seen", zap.Error(err))
	}

	util.PaymentsConfirmedTotal.Inc()
	p.logger.Info("Payment confirmed",
		zap.String("payment_id", meta.PaymentID),
		zap.String("order_id", orderID),
		zap.Int64("subtotal", subtotal),
		zap.Int64("discount", discount),
		zap.Int64("total", total))

	confirmed := &models.PaymentConfirmedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentConfirmed),
		PaymentID: meta.PaymentID,
		OrderID:   orderID,
		UserID:    meta.UserID,
		Total:     total,
	}
	if err := p.events.PublishPaymentConfirmed(ctx, confirmed); err != nil {
		p.logger.Error("Failed to publish PaymentConfirmed event", zap.Error(err))
	}

	placed := &models.OrderPlacedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:   orderID,
		TaskID:    task.ID,
		UserID:    meta.UserID,
		Total:     total,
	}
	if err := p.events.PublishOrderPlaced(ctx, placed); err != nil {
		p.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	return &ConfirmationResult{Processed: true, OrderID: orderID, Total: total}, nil
}

// GetPayment retrieves a payment by ID
func (p *PaymentConfirmationProcessor) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return p.store.GetPaymentByID(ctx, paymentID)
}
