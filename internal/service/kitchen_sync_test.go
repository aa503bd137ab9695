package service

import (
	"context"
	"errors"
	"testing"

	"campus-eats/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrderWithTask(f *fakeStore, orderID, userID string, total int64) (order *models.Order, task *models.KitchenTask) {
	order = &models.Order{
		ID:       orderID,
		UserID:   userID,
		Status:   models.OrderStatusPending,
		Subtotal: total,
		Total:    total,
	}
	task = &models.KitchenTask{
		ID:      "task-" + orderID,
		OrderID: orderID,
		Status:  models.KitchenStatusNotStarted,
	}
	f.orders[orderID] = order
	f.tasks[task.ID] = task
	f.taskByOrder[orderID] = task.ID
	return order, task
}

func newTestKitchen(f *fakeStore, events *fakeEvents) *KitchenTaskSync {
	ledger := NewLoyaltyLedger(f, events, 1000)
	return NewKitchenTaskSync(f, ledger, events, nil)
}

func TestUpdateStatusInvalidInput(t *testing.T) {
	f := newFakeStore()
	kitchen := newTestKitchen(f, &fakeEvents{})
	seedOrderWithTask(f, "order-1", "user-1", 5000)

	_, err := kitchen.UpdateStatus(context.Background(), "task-order-1", "burning", "w-1")
	assert.ErrorIs(t, err, models.ErrInvalidStatus)
}

func TestUpdateStatusParsesLooseInput(t *testing.T) {
	f := newFakeStore()
	kitchen := newTestKitchen(f, &fakeEvents{})
	seedOrderWithTask(f, "order-1", "user-1", 500)

	task, err := kitchen.UpdateStatus(context.Background(), "task-order-1", "not started", "w-1")
	require.NoError(t, err)
	assert.Equal(t, models.KitchenStatusNotStarted, task.Status)
}

func TestUpdateStatusMirrorsOrder(t *testing.T) {
	f := newFakeStore()
	events := &fakeEvents{}
	kitchen := newTestKitchen(f, events)
	order, _ := seedOrderWithTask(f, "order-1", "user-1", 5000)

	task, err := kitchen.UpdateStatus(context.Background(), "task-order-1", "PREPARING", "w-1")
	require.NoError(t, err)
	assert.Equal(t, models.KitchenStatusPreparing, task.Status)
	assert.Equal(t, models.OrderStatusPreparing, order.Status)
	require.NotNil(t, task.AssignedWorkerID)
	assert.Equal(t, "w-1", *task.AssignedWorkerID)

	// Ready is a kitchen-only state, the order stays in Preparing.
	task, err = kitchen.UpdateStatus(context.Background(), "task-order-1", "READY", "w-1")
	require.NoError(t, err)
	assert.Equal(t, models.KitchenStatusReady, task.Status)
	assert.Equal(t, models.OrderStatusPreparing, order.Status)

	task, err = kitchen.UpdateStatus(context.Background(), "task-order-1", "COMPLETED", "w-1")
	require.NoError(t, err)
	assert.Equal(t, models.KitchenStatusCompleted, task.Status)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)

	require.Len(t, events.kitchen, 3)
	assert.Equal(t, models.KitchenStatusNotStarted, events.kitchen[0].OldStatus)
	assert.Equal(t, models.KitchenStatusPreparing, events.kitchen[0].NewStatus)
}

func TestUpdateStatusRejectsCancelledOrder(t *testing.T) {
	f := newFakeStore()
	kitchen := newTestKitchen(f, &fakeEvents{})
	order, _ := seedOrderWithTask(f, "order-1", "user-1", 5000)
	order.Status = models.OrderStatusCancelled

	_, err := kitchen.UpdateStatus(context.Background(), "task-order-1", "PREPARING", "w-1")
	assert.ErrorIs(t, err, models.ErrOrderCancelled)
}

func TestUpdateStatusAwardsPointsOnce(t *testing.T) {
	f := newFakeStore()
	events := &fakeEvents{}
	kitchen := newTestKitchen(f, events)
	order, _ := seedOrderWithTask(f, "order-1", "user-1", 5000)

	_, err := kitchen.UpdateStatus(context.Background(), "task-order-1", "PREPARING", "w-1")
	require.NoError(t, err)

	account := f.accounts["user-1"]
	require.NotNil(t, account)
	assert.Equal(t, int64(5), account.Points)
	assert.True(t, order.LoyaltyPointsAwarded)

	// Further transitions never award again.
	_, err = kitchen.UpdateStatus(context.Background(), "task-order-1", "READY", "w-1")
	require.NoError(t, err)
	_, err = kitchen.UpdateStatus(context.Background(), "task-order-1", "COMPLETED", "w-1")
	require.NoError(t, err)

	assert.Equal(t, int64(5), account.Points)
	assert.Len(t, events.awarded, 1)
	assert.Equal(t, "order-1", events.awarded[0].OrderID)
}

func TestUpdateStatusNoAwardForTinyOrder(t *testing.T) {
	f := newFakeStore()
	kitchen := newTestKitchen(f, &fakeEvents{})
	seedOrderWithTask(f, "order-1", "user-1", 900) // below one point

	_, err := kitchen.UpdateStatus(context.Background(), "task-order-1", "PREPARING", "w-1")
	require.NoError(t, err)
	assert.Nil(t, f.accounts["user-1"])
}

func TestUpdateNotes(t *testing.T) {
	f := newFakeStore()
	kitchen := newTestKitchen(f, &fakeEvents{})
	seedOrderWithTask(f, "order-1", "user-1", 5000)

	task, err := kitchen.UpdateNotes(context.Background(), "task-order-1", "no onions")
	require.NoError(t, err)
	assert.Equal(t, "no onions", task.Notes)
}

func TestBoardPrefersPopulatedCache(t *testing.T) {
	f := newFakeStore()
	ledger := NewLoyaltyLedger(f, &fakeEvents{}, 1000)
	cache := &fakeBoardCache{entries: []models.KitchenBoardEntry{
		{TaskID: "task-order-1", OrderID: "order-1", Status: models.KitchenStatusPreparing},
	}}
	kitchen := NewKitchenTaskSync(f, ledger, &fakeEvents{}, cache)

	entries, source, err := kitchen.Board(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cache", source)
	require.Len(t, entries, 1)
	assert.Equal(t, models.KitchenStatusPreparing, entries[0].Status)
}

func TestBoardFallsBackWhenCacheEmpty(t *testing.T) {
	f := newFakeStore()
	ledger := NewLoyaltyLedger(f, &fakeEvents{}, 1000)
	seedOrderWithTask(f, "order-1", "user-1", 1000)

	// A flushed cache looks like an empty board; the DB has the truth.
	kitchen := NewKitchenTaskSync(f, ledger, &fakeEvents{}, &fakeBoardCache{})

	entries, source, err := kitchen.Board(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "db", source)
	require.Len(t, entries, 1)
	assert.Equal(t, "order-1", entries[0].OrderID)
	assert.Equal(t, "task-order-1", entries[0].TaskID)
}

func TestBoardFallsBackWhenCacheErrors(t *testing.T) {
	f := newFakeStore()
	ledger := NewLoyaltyLedger(f, &fakeEvents{}, 1000)
	seedOrderWithTask(f, "order-1", "user-1", 1000)

	cache := &fakeBoardCache{err: errors.New("connection refused")}
	kitchen := NewKitchenTaskSync(f, ledger, &fakeEvents{}, cache)

	entries, source, err := kitchen.Board(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "db", source)
	require.Len(t, entries, 1)
}

func TestOpenTasksExcludesDone(t *testing.T) {
	f := newFakeStore()
	kitchen := newTestKitchen(f, &fakeEvents{})
	seedOrderWithTask(f, "order-1", "user-1", 1000)
	_, done := seedOrderWithTask(f, "order-2", "user-1", 1000)
	done.Status = models.KitchenStatusCompleted
	cancelled, _ := seedOrderWithTask(f, "order-3", "user-1", 1000)
	cancelled.Status = models.OrderStatusCancelled

	tasks, err := kitchen.OpenTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "order-1", tasks[0].OrderID)
}
