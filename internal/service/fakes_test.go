package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-eats/internal/models"
	"campus-eats/internal/store"

	"github.com/google/uuid"
)

// fakeStore is an in-memory stand-in for *store.Store. It mirrors the
// transactional semantics of the real queries (idempotent award, clamped
// reversal, payment flip as the dedup gate) without a database.
type fakeStore struct {
	menu        map[string]*models.MenuItem
	orders      map[string]*models.Order
	orderItems  map[string][]models.OrderItem
	tasks       map[string]*models.KitchenTask
	taskByOrder map[string]string
	accounts    map[string]*models.LoyaltyAccount
	txs         []models.LoyaltyTransaction
	coupons     map[string]*models.Coupon
	userCoupons map[string]*models.UserCoupon
	payments    map[string]*models.Payment

	// Failure injection: a matching transactional call fails once, mutating
	// nothing, the way a rolled-back transaction would.
	failPurchaseOnce     bool
	failHolderDeleteOnce string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		menu:        make(map[string]*models.MenuItem),
		orders:      make(map[string]*models.Order),
		orderItems:  make(map[string][]models.OrderItem),
		tasks:       make(map[string]*models.KitchenTask),
		taskByOrder: make(map[string]string),
		accounts:    make(map[string]*models.LoyaltyAccount),
		coupons:     make(map[string]*models.Coupon),
		userCoupons: make(map[string]*models.UserCoupon),
		payments:    make(map[string]*models.Payment),
	}
}

func (f *fakeStore) addMenuItem(id string, price int64, available bool) {
	f.menu[id] = &models.MenuItem{ID: id, Name: id, Price: price, Available: available}
}

func (f *fakeStore) addAccount(userID string, points int64) *models.LoyaltyAccount {
	account := &models.LoyaltyAccount{ID: uuid.New().String(), UserID: userID, Points: points}
	f.accounts[userID] = account
	return account
}

func (f *fakeStore) ensureAccount(userID string) *models.LoyaltyAccount {
	if account, ok := f.accounts[userID]; ok {
		return account
	}
	return f.addAccount(userID, 0)
}

func (f *fakeStore) append(accountID string, change int64, txType models.TransactionType, description string, orderID *string) {
	f.txs = append(f.txs, models.LoyaltyTransaction{
		ID:             uuid.New().String(),
		AccountID:      accountID,
		PointsChange:   change,
		Type:           txType,
		Description:    description,
		RelatedOrderID: orderID,
		CreatedAt:      time.Now(),
	})
}

// LedgerStore

func (f *fakeStore) GetAccountByUserID(_ context.Context, userID string) (*models.LoyaltyAccount, error) {
	return f.accounts[userID], nil
}

func (f *fakeStore) GetTransactionsByAccountID(_ context.Context, accountID string) ([]models.LoyaltyTransaction, error) {
	var out []models.LoyaltyTransaction
	for _, tx := range f.txs {
		if tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeStore) AwardPointsTx(_ context.Context, userID, orderID string, points int64, description string) (int64, bool, error) {
	for _, tx := range f.txs {
		if tx.Type == models.TransactionTypeEarned && tx.RelatedOrderID != nil && *tx.RelatedOrderID == orderID {
			return f.ensureAccount(userID).Points, false, nil
		}
	}
	account := f.ensureAccount(userID)
	account.Points += points
	f.append(account.ID, points, models.TransactionTypeEarned, description, &orderID)
	if order, ok := f.orders[orderID]; ok {
		order.LoyaltyPointsAwarded = true
	}
	return account.Points, true, nil
}

func (f *fakeStore) ReversePointsTx(_ context.Context, orderID, description string) (int64, error) {
	var earned int64
	accountID := ""
	for _, tx := range f.txs {
		if tx.RelatedOrderID == nil || *tx.RelatedOrderID != orderID {
			continue
		}
		if tx.Type == models.TransactionTypeEarned {
			earned += tx.PointsChange
			accountID = tx.AccountID
		}
		if tx.Type == models.TransactionTypeAdjusted && tx.PointsChange < 0 {
			return 0, nil // already reversed
		}
	}
	if earned <= 0 {
		return 0, nil
	}
	var account *models.LoyaltyAccount
	for _, a := range f.accounts {
		if a.ID == accountID {
			account = a
		}
	}
	if account == nil {
		return 0, fmt.Errorf("orphaned ledger entry for order %s", orderID)
	}
	amount := earned
	if amount > account.Points {
		amount = account.Points
	}
	account.Points -= amount
	f.append(account.ID, -amount, models.TransactionTypeAdjusted, description, &orderID)
	return amount, nil
}

func (f *fakeStore) RedeemPointsTx(_ context.Context, userID string, points int64, description string) (int64, error) {
	account, ok := f.accounts[userID]
	if !ok || account.Points < points {
		return 0, models.ErrInsufficientPoints
	}
	account.Points -= points
	f.append(account.ID, -points, models.TransactionTypeRedeemed, description, nil)
	return account.Points, nil
}

func (f *fakeStore) RefundPointsTx(_ context.Context, userID string, points int64, description string) (int64, error) {
	account, ok := f.accounts[userID]
	if !ok {
		return 0, models.ErrAccountNotFound
	}
	account.Points += points
	f.append(account.ID, points, models.TransactionTypeAdjusted, description, nil)
	return account.Points, nil
}

// CouponStore

func (f *fakeStore) CreateCoupon(_ context.Context, coupon *models.Coupon) error {
	f.coupons[coupon.ID] = coupon
	return nil
}

func (f *fakeStore) GetCouponByID(_ context.Context, id string) (*models.Coupon, error) {
	coupon, ok := f.coupons[id]
	if !ok {
		return nil, models.ErrCouponNotFound
	}
	return coupon, nil
}

func (f *fakeStore) ListCoupons(_ context.Context) ([]models.Coupon, error) {
	var out []models.Coupon
	for _, c := range f.coupons {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeStore) DeleteCoupon(_ context.Context, id string) error {
	delete(f.coupons, id)
	return nil
}

func (f *fakeStore) PurchaseCouponTx(_ context.Context, userID string, coupon *models.Coupon, uc *models.UserCoupon, description string) (int64, error) {
	account, ok := f.accounts[userID]
	if !ok || account.Points < coupon.PointsCost {
		return 0, models.ErrInsufficientPoints
	}
	if f.failPurchaseOnce {
		f.failPurchaseOnce = false
		return 0, errors.New("insert user coupon: connection reset")
	}
	account.Points -= coupon.PointsCost
	f.append(account.ID, -coupon.PointsCost, models.TransactionTypeRedeemed, description, nil)
	f.userCoupons[uc.ID] = uc
	return account.Points, nil
}

func (f *fakeStore) RefundAndDeleteHolderTx(_ context.Context, userCouponID, userID string, points int64, description string) (bool, error) {
	if f.failHolderDeleteOnce == userCouponID {
		f.failHolderDeleteOnce = ""
		return false, errors.New("delete user coupon: connection reset")
	}
	account, ok := f.accounts[userID]
	if !ok {
		delete(f.userCoupons, userCouponID)
		return false, nil
	}
	account.Points += points
	f.append(account.ID, points, models.TransactionTypeAdjusted, description, nil)
	delete(f.userCoupons, userCouponID)
	return true, nil
}

func (f *fakeStore) GetUserCouponByID(_ context.Context, id string) (*models.UserCoupon, error) {
	uc, ok := f.userCoupons[id]
	if !ok {
		return nil, models.ErrUserCouponNotFound
	}
	return uc, nil
}

func (f *fakeStore) GetUserCouponsByUserID(_ context.Context, userID string) ([]models.UserCoupon, error) {
	var out []models.UserCoupon
	for _, uc := range f.userCoupons {
		if uc.UserID == userID {
			out = append(out, *uc)
		}
	}
	return out, nil
}

func (f *fakeStore) ListUnusedUserCouponsByCoupon(_ context.Context, couponID string) ([]models.UserCoupon, error) {
	var out []models.UserCoupon
	for _, uc := range f.userCoupons {
		if uc.CouponID == couponID && !uc.IsUsed {
			out = append(out, *uc)
		}
	}
	return out, nil
}


// OrderStore

func (f *fakeStore) GetMenuItemByID(_ context.Context, id string) (*models.MenuItem, error) {
	item, ok := f.menu[id]
	if !ok {
		return nil, models.ErrMenuItemNotFound
	}
	return item, nil
}

func (f *fakeStore) GetMenuItemsByIDs(_ context.Context, ids []string) ([]models.MenuItem, error) {
	var out []models.MenuItem
	for _, id := range ids {
		if item, ok := f.menu[id]; ok {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateOrderTx(_ context.Context, order *models.Order, items []models.OrderItem, task *models.KitchenTask) error {
	f.orders[order.ID] = order
	f.orderItems[order.ID] = items
	f.tasks[task.ID] = task
	f.taskByOrder[order.ID] = task.ID
	return nil
}

func (f *fakeStore) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeStore) GetOrderItemsByOrderID(_ context.Context, orderID string) ([]models.OrderItem, error) {
	return f.orderItems[orderID], nil
}

func (f *fakeStore) GetOrdersByUserID(_ context.Context, userID string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) GetKitchenTaskByOrderID(_ context.Context, orderID string) (*models.KitchenTask, error) {
	taskID, ok := f.taskByOrder[orderID]
	if !ok {
		return nil, models.ErrTaskNotFound
	}
	return f.tasks[taskID], nil
}

func (f *fakeStore) CancelOrderTx(_ context.Context, orderID string) (*models.Order, bool, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, false, models.ErrOrderNotFound
	}
	if order.Status.Terminal() {
		return order, false, nil
	}
	order.Status = models.OrderStatusCancelled
	return order, true, nil
}

// KitchenStore

func (f *fakeStore) GetKitchenTaskByID(_ context.Context, id string) (*models.KitchenTask, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, models.ErrTaskNotFound
	}
	return task, nil
}

func (f *fakeStore) ApplyKitchenTransitionTx(_ context.Context, taskID string, newStatus models.KitchenStatus, orderStatus models.OrderStatus, workerID string) (*models.KitchenTask, *models.Order, models.KitchenStatus, error) {
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, nil, "", models.ErrTaskNotFound
	}
	order, ok := f.orders[task.OrderID]
	if !ok {
		return nil, nil, "", models.ErrOrderNotFound
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, nil, "", models.ErrOrderCancelled
	}
	prev := task.Status
	task.Status = newStatus
	if workerID != "" {
		task.AssignedWorkerID = &workerID
	}
	if orderStatus != "" {
		order.Status = orderStatus
	}
	return task, order, prev, nil
}

func (f *fakeStore) UpdateKitchenTaskNotes(_ context.Context, taskID, notes string) (*models.KitchenTask, error) {
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, models.ErrTaskNotFound
	}
	task.Notes = notes
	return task, nil
}

func (f *fakeStore) ListOpenKitchenTasks(_ context.Context) ([]models.KitchenTask, error) {
	var out []models.KitchenTask
	for _, task := range f.tasks {
		if task.Status == models.KitchenStatusCompleted {
			continue
		}
		if order, ok := f.orders[task.OrderID]; ok && order.Status == models.OrderStatusCancelled {
			continue
		}
		out = append(out, *task)
	}
	return out, nil
}

// PaymentStore

func (f *fakeStore) CreatePayment(_ context.Context, payment *models.Payment) error {
	f.payments[payment.ID] = payment
	return nil
}

func (f *fakeStore) GetPaymentByID(_ context.Context, id string) (*models.Payment, error) {
	payment, ok := f.payments[id]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	return payment, nil
}

func (f *fakeStore) ConfirmPaymentTx(_ context.Context, params store.ConfirmPaymentParams) (string, bool, error) {
	payment, ok := f.payments[params.PaymentID]
	if !ok {
		return "", false, models.ErrPaymentNotFound
	}
	if payment.Status == models.PaymentStatusSucceeded {
		orderID := ""
		if payment.OrderID != nil {
			orderID = *payment.OrderID
		}
		return orderID, true, nil
	}
	if params.UserCouponID != "" {
		uc, ok := f.userCoupons[params.UserCouponID]
		if !ok {
			return "", false, models.ErrUserCouponNotFound
		}
		if uc.IsUsed {
			return "", false, models.ErrCouponAlreadyUsed
		}
		uc.IsUsed = true
	}
	f.orders[params.Order.ID] = params.Order
	f.orderItems[params.Order.ID] = params.Items
	f.tasks[params.Task.ID] = params.Task
	f.taskByOrder[params.Order.ID] = params.Task.ID
	payment.Status = models.PaymentStatusSucceeded
	payment.OrderID = &params.Order.ID
	return params.Order.ID, false, nil
}

// fakeEvents records published domain events.
type fakeEvents struct {
	placed    []*models.OrderPlacedEvent
	cancelled []*models.OrderCancelledEvent
	kitchen   []*models.KitchenStatusChangedEvent
	awarded   []*models.LoyaltyPointsAwardedEvent
	confirmed []*models.PaymentConfirmedEvent
}

func (f *fakeEvents) PublishOrderPlaced(_ context.Context, event *models.OrderPlacedEvent) error {
	f.placed = append(f.placed, event)
	return nil
}

func (f *fakeEvents) PublishOrderCancelled(_ context.Context, event *models.OrderCancelledEvent) error {
	f.cancelled = append(f.cancelled, event)
	return nil
}

func (f *fakeEvents) PublishKitchenStatusChanged(_ context.Context, event *models.KitchenStatusChangedEvent) error {
	f.kitchen = append(f.kitchen, event)
	return nil
}

func (f *fakeEvents) PublishLoyaltyPointsAwarded(_ context.Context, event *models.LoyaltyPointsAwardedEvent) error {
	f.awarded = append(f.awarded, event)
	return nil
}

func (f *fakeEvents) PublishPaymentConfirmed(_ context.Context, event *models.PaymentConfirmedEvent) error {
	f.confirmed = append(f.confirmed, event)
	return nil
}

// fakeBoardCache is an in-memory kitchen board projection.
type fakeBoardCache struct {
	entries []models.KitchenBoardEntry
	err     error
}

func (f *fakeBoardCache) GetBoard(_ context.Context) ([]models.KitchenBoardEntry, error) {
	return f.entries, f.err
}

// fakeWebhookCache is an in-memory dedup filter.
type fakeWebhookCache struct {
	seen map[string]bool
}

func newFakeWebhookCache() *fakeWebhookCache {
	return &fakeWebhookCache{seen: make(map[string]bool)}
}

func (f *fakeWebhookCache) WebhookSeen(_ context.Context, paymentID string) (bool, error) {
	return f.seen[paymentID], nil
}

func (f *fakeWebhookCache) MarkWebhookSeen(_ context.Context, paymentID string, _ time.Duration) (bool, error) {
	if f.seen[paymentID] {
		return false, nil
	}
	f.seen[paymentID] = true
	return true, nil
}

var (
	_ LedgerStore  = (*fakeStore)(nil)
	_ CouponStore  = (*fakeStore)(nil)
	_ OrderStore   = (*fakeStore)(nil)
	_ KitchenStore = (*fakeStore)(nil)
	_ PaymentStore = (*fakeStore)(nil)
	_ EventSink    = (*fakeEvents)(nil)
	_ WebhookCache = (*fakeWebhookCache)(nil)
	_ BoardCache   = (*fakeBoardCache)(nil)
)
