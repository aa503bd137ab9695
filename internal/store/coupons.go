package store

import (
	"context"
	"database/sql"
	"fmt"

	"campus-eats/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateCoupon creates a new coupon
func (s *Store) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	query := `
		INSERT INTO coupons (id, name, description, type, discount_value, points_cost,
			is_active, free_item_id, min_order_amount, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	return s.db.QueryRowxContext(ctx, query,
		coupon.ID, coupon.Name, coupon.Description, coupon.Type, coupon.DiscountValue,
		coupon.PointsCost, coupon.IsActive, coupon.FreeItemID, coupon.MinOrderAmount,
		coupon.ExpiresAt,
	).Scan(&coupon.CreatedAt)
}

// GetCouponByID retrieves a coupon by ID
func (s *Store) GetCouponByID(ctx context.Context, id string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.GetContext(ctx, &coupon, "SELECT * FROM coupons WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", models.ErrCouponNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// ListCoupons retrieves all coupons, newest first
func (s *Store) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := s.db.SelectContext(ctx, &coupons, "SELECT * FROM coupons ORDER BY created_at DESC")
	return coupons, err
}

// DeleteCoupon deletes a coupon row. Refunds and user-coupon cleanup happen
// first; see CouponEngine.DeleteAndRefund.
func (s *Store) DeleteCoupon(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM coupons WHERE id = $1", id)
	return err
}

// insertUserCoupon inserts a purchased coupon row within an existing
// transaction.
func insertUserCoupon(ctx context.Context, tx *sqlx.Tx, uc *models.UserCoupon) error {
	query := `
		INSERT INTO user_coupons (id, user_id, coupon_id, is_used, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING acquired_at`

	return tx.QueryRowxContext(ctx, query,
		uc.ID, uc.UserID, uc.CouponID, uc.IsUsed, uc.ExpiresAt,
	).Scan(&uc.AcquiredAt)
}

// PurchaseCouponTx spends the coupon's points cost and records the purchased
// instance as one transaction. A failure on either side rolls back both, so
// points can never be deducted without the coupon landing in the wallet.
// Returns the remaining balance.
func (s *Store) PurchaseCouponTx(ctx context.Context, userID string, coupon *models.Coupon, uc *models.UserCoupon, description string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var account models.LoyaltyAccount
	err = tx.GetContext(ctx, &account,
		"SELECT * FROM loyalty_accounts WHERE user_id = $1 FOR UPDATE", userID)
	if err == sql.ErrNoRows {
		return 0, models.ErrInsufficientPoints
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock loyalty account: %w", err)
	}
	if account.Points < coupon.PointsCost {
		return 0, models.ErrInsufficientPoints
	}

	balance, err := appendTransaction(ctx, tx, account.ID, -coupon.PointsCost,
		models.TransactionTypeRedeemed, description, nil)
	if err != nil {
		return 0, err
	}

	if err := insertUserCoupon(ctx, tx, uc); err != nil {
		return 0, fmt.Errorf("failed to create user coupon: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

// RefundAndDeleteHolderTx refunds a holder's points and removes the purchased
// coupon row as one transaction, so a retry after a partial failure cannot
// refund the same holder twice. Holders without a loyalty account get no
// refund but the row is still removed. Returns whether a refund was applied.
func (s *Store) RefundAndDeleteHolderTx(ctx context.Context, userCouponID, userID string, points int64, description string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	refunded := false
	var account models.LoyaltyAccount
	err = tx.GetContext(ctx, &account,
		"SELECT * FROM loyalty_accounts WHERE user_id = $1 FOR UPDATE", userID)
	switch {
	case err == sql.ErrNoRows:
		// No account to credit; the row still goes away.
	case err != nil:
		return false, fmt.Errorf("failed to lock loyalty account: %w", err)
	default:
		if _, err := appendTransaction(ctx, tx, account.ID, points,
			models.TransactionTypeAdjusted, description, nil); err != nil {
			return false, err
		}
		refunded = true
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM user_coupons WHERE id = $1", userCouponID); err != nil {
		return false, fmt.Errorf("failed to delete user coupon: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return refunded, nil
}

// GetUserCouponByID retrieves a purchased coupon by ID
func (s *Store) GetUserCouponByID(ctx context.Context, id string) (*models.UserCoupon, error) {
	var uc models.UserCoupon
	err := s.db.GetContext(ctx, &uc, "SELECT * FROM user_coupons WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", models.ErrUserCouponNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &uc, nil
}

// GetUserCouponsByUserID retrieves a user's coupon wallet, newest first
func (s *Store) GetUserCouponsByUserID(ctx context.Context, userID string) ([]models.UserCoupon, error) {
	var ucs []models.UserCoupon
	err := s.db.SelectContext(ctx, &ucs,
		"SELECT * FROM user_coupons WHERE user_id = $1 ORDER BY acquired_at DESC", userID)
	return ucs, err
}

// ListUnusedUserCouponsByCoupon retrieves the unused holders of a coupon
func (s *Store) ListUnusedUserCouponsByCoupon(ctx context.Context, couponID string) ([]models.UserCoupon, error) {
	var ucs []models.UserCoupon
	err := s.db.SelectContext(ctx, &ucs,
		"SELECT * FROM user_coupons WHERE coupon_id = $1 AND is_used = FALSE", couponID)
	return ucs, err
}

// markUserCouponUsed flips is_used exactly once within an existing
// transaction. A second attempt fails with ErrCouponAlreadyUsed, which
// protects a replayed webhook from applying the same discount twice.
func markUserCouponUsed(ctx context.Context, tx *sqlx.Tx, id string) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE user_coupons SET is_used = TRUE WHERE id = $1 AND is_used = FALSE", id)
	if err != nil {
		return fmt.Errorf("failed to mark coupon used: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM user_coupons WHERE id = $1)", id); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", models.ErrUserCouponNotFound, id)
		}
		return fmt.Errorf("%w: %s", models.ErrCouponAlreadyUsed, id)
	}
	return nil
}
