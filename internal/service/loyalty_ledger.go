package service

import (
	"context"
	"fmt"

	"campus-eats/internal/models"
	"campus-eats/internal/util"

	"go.uber.org/zap"
)

// LoyaltyLedger owns the per-user points balance and the append-only
// transaction log. Points are never mutated directly; every change is a
// ledger row, so reversal and refund arithmetic stay auditable.
type LoyaltyLedger struct {
	store       LedgerStore
	events      EventSink
	logger      *zap.Logger
	earnDivisor int64
}

// NewLoyaltyLedger creates a new loyalty ledger. earnDivisor converts an
// order total in bani into points (1000 = 1 point per 10 RON).
func NewLoyaltyLedger(store LedgerStore, events EventSink, earnDivisor int64) *LoyaltyLedger {
	if earnDivisor <= 0 {
		earnDivisor = 1000
	}
	return &LoyaltyLedger{
		store:       store,
		events:      events,
		logger:      util.GetLogger(),
		earnDivisor: earnDivisor,
	}
}

// PointsFor converts an order total into the points it earns.
func (l *LoyaltyLedger) PointsFor(total int64) int64 {
	if total <= 0 {
		return 0
	}
	return total / l.earnDivisor
}

// Award grants points for a paid order, creating the account if absent.
// Idempotent per order: the ledger allows at most one Earned entry per order,
// so replays and racing callers cannot double-award. Returns the points
// granted (0 when nothing was awarded).
func (l *LoyaltyLedger) Award(ctx context.Context, userID, orderID string, orderTotal int64) (int64, error) {
	ctx, span := util.StartSpan(ctx, "LoyaltyLedger.Award")
	defer span.End()

	points := l.PointsFor(orderTotal)
	if points == 0 {
		return 0, nil
	}

	balance, awarded, err := l.store.AwardPointsTx(ctx, userID, orderID, points,
		fmt.Sprintf("Points earned for order %s", orderID))
	if err != nil {
		return 0, fmt.Errorf("failed to award points: %w", err)
	}
	if !awarded {
		l.logger.Info("Points already awarded for order", zap.String("order_id", orderID))
		return 0, nil
	}

	util.PointsAwardedTotal.Add(float64(points))
	l.logger.Info("Loyalty points awarded",
		zap.String("user_id", userID),
		zap.String("order_id", orderID),
		zap.Int64("points", points),
		zap.Int64("balance", balance))

	event := &models.LoyaltyPointsAwardedEvent{
		BaseEvent: newBaseEvent(models.EventTypeLoyaltyPointsAwarded),
		OrderID:   orderID,
		UserID:    userID,
		Points:    points,
		Balance:   balance,
	}
	if err := l.events.PublishLoyaltyPointsAwarded(ctx, event); err != nil {
		l.logger.Error("Failed to publish LoyaltyPointsAwarded event", zap.Error(err))
	}

	return points, nil
}

// Reverse takes back the points earned for an order, clamped so the balance
// never goes negative even if the user already spent some of them. No-op when
// the order never earned points or was already reversed. Returns the amount
// actually reversed.
func (l *LoyaltyLedger) Reverse(ctx context.Context, orderID string) (int64, error) {
	ctx, span := util.StartSpan(ctx, "LoyaltyLedger.Reverse")
	defer span.End()

	reversed, err := l.store.ReversePointsTx(ctx, orderID,
		fmt.Sprintf("Reversal for cancelled order %s", orderID))
	if err != nil {
		return 0, fmt.Errorf("failed to reverse points: %w", err)
	}

	if reversed > 0 {
		util.PointsReversedTotal.Add(float64(reversed))
		l.logger.Info("Loyalty points reversed",
			zap.String("order_id", orderID),
			zap.Int64("points", reversed))
	}
	return reversed, nil
}

// Redeem spends points from a user's balance. Fails with
// ErrInsufficientPoints when the balance is short; the balance is unchanged
// on failure. Returns the remaining balance.
func (l *LoyaltyLedger) Redeem(ctx context.Context, userID string, points int64, description string) (int64, error) {
	ctx, span := util.StartSpan(ctx, "LoyaltyLedger.Redeem")
	defer span.End()

	remaining, err := l.store.RedeemPointsTx(ctx, userID, points, description)
	if err != nil {
		return 0, err
	}

	util.PointsRedeemedTotal.Add(float64(points))
	l.logger.Info("Loyalty points redeemed",
		zap.String("user_id", userID),
		zap.Int64("points", points),
		zap.Int64("remaining", remaining))
	return remaining, nil
}

// Refund credits points back to an existing account as an Adjusted entry.
// Fails with ErrAccountNotFound when the user never had an account; callers
// decide whether that is a skip or an error.
func (l *LoyaltyLedger) Refund(ctx context.Context, userID string, points int64, description string) error {
	ctx, span := util.StartSpan(ctx, "LoyaltyLedger.Refund")
	defer span.End()

	if _, err := l.store.RefundPointsTx(ctx, userID, points, description); err != nil {
		return err
	}

	util.PointsRefundedTotal.Add(float64(points))
	l.logger.Info("Loyalty points refunded",
		zap.String("user_id", userID),
		zap.Int64("points", points))
	return nil
}

// Account retrieves a user's balance and ledger history. A user who never
// earned points gets an empty zero-balance view.
func (l *LoyaltyLedger) Account(ctx context.Context, userID string) (*models.LoyaltyAccount, []models.LoyaltyTransaction, error) {
	account, err := l.store.GetAccountByUserID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		return &models.LoyaltyAccount{UserID: userID}, nil, nil
	}

	txs, err := l.store.GetTransactionsByAccountID(ctx, account.ID)
	if err != nil {
		return nil, nil, err
	}
	return account, txs, nil
}
