package store

import (
	"context"
	"database/sql"
	"fmt"

	"campus-eats/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// GetAccountByUserID retrieves a loyalty account, or (nil, nil) if the user
// has never earned points.
func (s *Store) GetAccountByUserID(ctx context.Context, userID string) (*models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount
	err := s.db.GetContext(ctx, &account, "SELECT * FROM loyalty_accounts WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetTransactionsByAccountID retrieves ledger entries, newest first
func (s *Store) GetTransactionsByAccountID(ctx context.Context, accountID string) ([]models.LoyaltyTransaction, error) {
	var txs []models.LoyaltyTransaction
	err := s.db.SelectContext(ctx, &txs,
		"SELECT * FROM loyalty_transactions WHERE account_id = $1 ORDER BY created_at DESC", accountID)
	return txs, err
}

// lockAccountByUserID locks the account row, creating it first if absent.
func lockAccountByUserID(ctx context.Context, tx *sqlx.Tx, userID string) (*models.LoyaltyAccount, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO loyalty_accounts (id, user_id, points)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO NOTHING`, uuid.New().String(), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure loyalty account: %w", err)
	}

	var account models.LoyaltyAccount
	err = tx.GetContext(ctx, &account,
		"SELECT * FROM loyalty_accounts WHERE user_id = $1 FOR UPDATE", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock loyalty account: %w", err)
	}
	return &account, nil
}

// appendTransaction appends a ledger row and moves the cached balance by the
// same delta, keeping the materialized sum consistent with the log.
func appendTransaction(ctx context.Context, tx *sqlx.Tx, accountID string, change int64, txType models.TransactionType, description string, relatedOrderID *string) (int64, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO loyalty_transactions (id, account_id, points_change, type, description, related_order_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), accountID, change, txType, description, relatedOrderID)
	if err != nil {
		return 0, fmt.Errorf("failed to append ledger transaction: %w", err)
	}

	var balance int64
	err = tx.GetContext(ctx, &balance, `
		UPDATE loyalty_accounts SET points = points + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING points`, change, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}
	return balance, nil
}

// AwardPointsTx appends an Earned entry for an order, creating the account if
// absent. Idempotent: at most one Earned entry may exist per order, so a
// repeated award for the same order is a no-op. The order's
// loyalty_points_awarded flag is set in the same transaction.
func (s *Store) AwardPointsTx(ctx context.Context, userID, orderID string, points int64, description string) (int64, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	account, err := lockAccountByUserID(ctx, tx, userID)
	if err != nil {
		return 0, false, err
	}

	var alreadyEarned bool
	err = tx.GetContext(ctx, &alreadyEarned, `
		SELECT EXISTS(
			SELECT 1 FROM loyalty_transactions
			WHERE related_order_id = $1 AND type = $2)`,
		orderID, models.TransactionTypeEarned)
	if err != nil {
		return 0, false, err
	}
	if alreadyEarned {
		return account.Points, false, tx.Commit()
	}

	balance, err := appendTransaction(ctx, tx, account.ID, points, models.TransactionTypeEarned, description, &orderID)
	if err != nil {
		return 0, false, err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET loyalty_points_awarded = TRUE, updated_at = NOW() WHERE id = $1", orderID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to set award flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

// ReversePointsTx takes back points earned for an order, clamped so the
// balance never goes negative. No-op when the order never earned points or
// was already reversed. Returns the amount actually reversed.
func (s *Store) ReversePointsTx(ctx context.Context, orderID, description string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var earned struct {
		AccountID string `db:"account_id"`
		Sum       int64  `db:"sum"`
	}
	err = tx.GetContext(ctx, &earned, `
		SELECT account_id, COALESCE(SUM(points_change), 0) AS sum
		FROM loyalty_transactions
		WHERE related_order_id = $1 AND type = $2
		GROUP BY account_id`,
		orderID, models.TransactionTypeEarned)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var reversed bool
	err = tx.GetContext(ctx, &reversed, `
		SELECT EXISTS(
			SELECT 1 FROM loyalty_transactions
			WHERE related_order_id = $1 AND type = $2 AND points_change < 0)`,
		orderID, models.TransactionTypeAdjusted)
	if err != nil {
		return 0, err
	}
	if reversed {
		return 0, tx.Commit()
	}

	var account models.LoyaltyAccount
	err = tx.GetContext(ctx, &account,
		"SELECT * FROM loyalty_accounts WHERE id = $1 FOR UPDATE", earned.AccountID)
	if err != nil {
		return 0, fmt.Errorf("failed to lock loyalty account: %w", err)
	}

	amount := earned.Sum
	if account.Points < amount {
		amount = account.Points
	}
	if amount <= 0 {
		return 0, tx.Commit()
	}

	if _, err := appendTransaction(ctx, tx, account.ID, -amount, models.TransactionTypeAdjusted, description, &orderID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return amount, nil
}

// RedeemPointsTx spends points from a user's balance. Fails with
// ErrInsufficientPoints when the balance (or the account itself) is short.
func (s *Store) RedeemPointsTx(ctx context.Context, userID string, points int64, description string) (int64, error) {
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

	if account.Points < points {
		return 0, models.ErrInsufficientPoints
	}

	balance, err := appendTransaction(ctx, tx, account.ID, -points, models.TransactionTypeRedeemed, description, nil)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

// RefundPointsTx credits points back to an existing account as an Adjusted
// entry. Callers skip users without an account.
func (s *Store) RefundPointsTx(ctx context.Context, userID string, points int64, description string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var account models.LoyaltyAccount
	err = tx.GetContext(ctx, &account,
		"SELECT * FROM loyalty_accounts WHERE user_id = $1 FOR UPDATE", userID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: user %s", models.ErrAccountNotFound, userID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock loyalty account: %w", err)
	}

	balance, err := appendTransaction(ctx, tx, account.ID, points, models.TransactionTypeAdjusted, description, nil)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}
