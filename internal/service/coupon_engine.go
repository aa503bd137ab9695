package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-eats/internal/models"
	"campus-eats/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CouponEngine validates coupon eligibility, computes discounts and manages
// purchase and refund of coupons against the loyalty ledger. Ledger movement
// and wallet rows always change in the same store transaction.
type CouponEngine struct {
	store  CouponStore
	logger *zap.Logger
}

// NewCouponEngine creates a new coupon engine
func NewCouponEngine(store CouponStore) *CouponEngine {
	return &CouponEngine{
		store:  store,
		logger: util.GetLogger(),
	}
}

// PurchaseResult is returned to the UI for both successful and rejected
// purchases.
type PurchaseResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	RemainingPoints *int64 `json:"remaining_points,omitempty"`
}

func purchaseFailure(message string) *PurchaseResult {
	return &PurchaseResult{Success: false, Message: message}
}

// Purchase buys a coupon with loyalty points. Checks run in order: the coupon
// must exist, be active and not expired, and the user must afford it. On
// success the user coupon copies the coupon's expiry.
func (e *CouponEngine) Purchase(ctx context.Context, userID, couponID string) (*PurchaseResult, error) {
	ctx, span := util.StartSpan(ctx, "CouponEngine.Purchase")
	defer span.End()

	coupon, err := e.store.GetCouponByID(ctx, couponID)
	if err != nil {
		if errors.Is(err, models.ErrCouponNotFound) {
			util.CouponPurchasesFailed.WithLabelValues("not_found").Inc()
			return purchaseFailure("Coupon not found"), err
		}
		return nil, err
	}

	if !coupon.IsActive {
		util.CouponPurchasesFailed.WithLabelValues("inactive").Inc()
		return purchaseFailure("Coupon is not active"), models.ErrCouponInactive
	}
	if coupon.Expired(time.Now()) {
		util.CouponPurchasesFailed.WithLabelValues("expired").Inc()
		return purchaseFailure("Coupon has expired"), models.ErrCouponExpired
	}

	uc := &models.UserCoupon{
		ID:        uuid.New().String(),
		UserID:    userID,
		CouponID:  coupon.ID,
		IsUsed:    false,
		ExpiresAt: coupon.ExpiresAt,
	}
	// Redemption and the wallet row commit or roll back together.
	remaining, err := e.store.PurchaseCouponTx(ctx, userID, coupon, uc,
		fmt.Sprintf("Purchased coupon %q", coupon.Name))
	if err != nil {
		if errors.Is(err, models.ErrInsufficientPoints) {
			util.CouponPurchasesFailed.WithLabelValues("insufficient_points").Inc()
			return purchaseFailure(fmt.Sprintf("Insufficient points: coupon costs %d", coupon.PointsCost)), err
		}
		return nil, fmt.Errorf("failed to purchase coupon: %w", err)
	}

	util.PointsRedeemedTotal.Add(float64(coupon.PointsCost))
	util.CouponsPurchasedTotal.Inc()
	e.logger.Info("Coupon purchased",
		zap.String("user_id", userID),
		zap.String("coupon_id", couponID),
		zap.Int64("points_cost", coupon.PointsCost))

	return &PurchaseResult{
		Success:         true,
		Message:         fmt.Sprintf("Purchased %q", coupon.Name),
		RemainingPoints: &remaining,
	}, nil
}

// Subtotal sums quantity times unit price over the order's items.
func Subtotal(items []models.OrderItem) int64 {
	var subtotal int64
	for _, item := range items {
		subtotal += item.UnitPrice * int64(item.Quantity)
	}
	return subtotal
}

// ComputeDiscount computes the discount a coupon grants over an item set.
// Pure function: nothing is mutated. The result never exceeds the subtotal,
// and a coupon whose minimum order amount is not met grants nothing.
func (e *CouponEngine) ComputeDiscount(coupon *models.Coupon, items []models.OrderItem) int64 {
	subtotal := Subtotal(items)
	if subtotal <= 0 {
		return 0
	}
	if coupon.MinOrderAmount > 0 && subtotal < coupon.MinOrderAmount {
		return 0
	}

	var discount int64
	switch coupon.Type {
	case models.CouponTypePercentage:
		discount = subtotal * coupon.DiscountValue / 100
	case models.CouponTypeFixedAmount:
		discount = coupon.DiscountValue
	case models.CouponTypeFreeItem:
		if coupon.FreeItemID == nil {
			return 0
		}
		for _, item := range items {
			if item.MenuItemID == *coupon.FreeItemID {
				discount = item.UnitPrice
				break
			}
		}
	default:
		return 0
	}

	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// DeleteAndRefund deletes a coupon and refunds its points cost to every
// holder of an unused instance. Each holder's refund and row deletion are one
// store transaction, so a partial failure leaves the remainder retryable and
// a retried holder is never refunded twice. Holders without a loyalty account
// are skipped rather than failed. Returns the number of accounts refunded.
func (e *CouponEngine) DeleteAndRefund(ctx context.Context, couponID string) (int, error) {
	ctx, span := util.StartSpan(ctx, "CouponEngine.DeleteAndRefund")
	defer span.End()

	coupon, err := e.store.GetCouponByID(ctx, couponID)
	if err != nil {
		return 0, err
	}

	holders, err := e.store.ListUnusedUserCouponsByCoupon(ctx, couponID)
	if err != nil {
		return 0, fmt.Errorf("failed to list coupon holders: %w", err)
	}

	refunded := 0
	for _, uc := range holders {
		applied, err := e.store.RefundAndDeleteHolderTx(ctx, uc.ID, uc.UserID, coupon.PointsCost,
			fmt.Sprintf("Refund for deleted coupon %q", coupon.Name))
		if err != nil {
			return refunded, fmt.Errorf("failed to refund holder %s: %w", uc.UserID, err)
		}
		if applied {
			refunded++
			util.PointsRefundedTotal.Add(float64(coupon.PointsCost))
			util.CouponsRefundedTotal.Inc()
		} else {
			e.logger.Warn("Skipping refund for holder without loyalty account",
				zap.String("user_id", uc.UserID),
				zap.String("coupon_id", couponID))
		}
	}

	if err := e.store.DeleteCoupon(ctx, couponID); err != nil {
		return refunded, fmt.Errorf("failed to delete coupon: %w", err)
	}

	e.logger.Info("Coupon deleted",
		zap.String("coupon_id", couponID),
		zap.Int("holders_refunded", refunded))
	return refunded, nil
}

// CreateCoupon registers a new purchasable coupon (admin surface).
func (e *CouponEngine) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	if coupon.ID == "" {
		coupon.ID = uuid.New().String()
	}
	return e.store.CreateCoupon(ctx, coupon)
}

// ListCoupons retrieves the coupon catalog.
func (e *CouponEngine) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	return e.store.ListCoupons(ctx)
}

// UserCoupons retrieves a user's purchased coupons.
func (e *CouponEngine) UserCoupons(ctx context.Context, userID string) ([]models.UserCoupon, error) {
	return e.store.GetUserCouponsByUserID(ctx, userID)
}
