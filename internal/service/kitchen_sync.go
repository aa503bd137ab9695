package service

import (
	"context"
	"errors"

	"campus-eats/internal/models"
	"campus-eats/internal/util"

	"go.uber.org/zap"
)

// KitchenTaskSync advances kitchen tasks and mirrors their status onto the
// owning order. The first transition away from NotStarted triggers the
// one-time loyalty award for the order.
type KitchenTaskSync struct {
	store  KitchenStore
	ledger *LoyaltyLedger
	events EventSink
	board  BoardCache
	logger *zap.Logger
}

// NewKitchenTaskSync creates a new kitchen task sync
func NewKitchenTaskSync(store KitchenStore, ledger *LoyaltyLedger, events EventSink, board BoardCache) *KitchenTaskSync {
	return &KitchenTaskSync{
		store:  store,
		ledger: ledger,
		events: events,
		board:  board,
		logger: util.GetLogger(),
	}
}

// mirrorStatus maps a kitchen status onto the order status it implies.
// Ready means ready-for-pickup in the UI and leaves the order in Preparing,
// so it maps to no change, as does NotStarted.
func mirrorStatus(status models.KitchenStatus) models.OrderStatus {
	switch status {
	case models.KitchenStatusPreparing:
		return models.OrderStatusPreparing
	case models.KitchenStatusCompleted:
		return models.OrderStatusCompleted
	case models.KitchenStatusNotStarted, models.KitchenStatusReady:
		return ""
	}
	return ""
}

// UpdateStatus advances a kitchen task. The raw status string is parsed
// case-insensitively; garbage fails with ErrInvalidStatus. A task whose order
// is Cancelled rejects every transition so a cancelled order cannot be
// revived. On the first transition away from NotStarted the order's loyalty
// points are awarded, exactly once: the ledger refuses a second Earned entry
// for the same order, and the award never fails the transition itself.
func (k *KitchenTaskSync) UpdateStatus(ctx context.Context, taskID, rawStatus, workerID string) (*models.KitchenTask, error) {
	ctx, span := util.StartSpan(ctx, "KitchenTaskSync.UpdateStatus")
	defer span.End()

	newStatus, err := models.ParseKitchenStatus(rawStatus)
	if err != nil {
		util.KitchenTransitionsRejected.WithLabelValues("invalid_status").Inc()
		return nil, err
	}

	task, order, prev, err := k.store.ApplyKitchenTransitionTx(ctx, taskID, newStatus, mirrorStatus(newStatus), workerID)
	if err != nil {
		if errors.Is(err, models.ErrOrderCancelled) {
			util.KitchenTransitionsRejected.WithLabelValues("order_cancelled").Inc()
		}
		return nil, err
	}

	util.KitchenTransitionsTotal.WithLabelValues(string(newStatus)).Inc()
	k.logger.Info("Kitchen task advanced",
		zap.String("task_id", taskID),
		zap.String("order_id", order.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(newStatus)))

	if newStatus != models.KitchenStatusNotStarted && !order.LoyaltyPointsAwarded {
		if _, err := k.ledger.Award(ctx, order.UserID, order.ID, order.Total); err != nil {
			k.logger.Error("Failed to award points for order",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
	}

	event := &models.KitchenStatusChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypeKitchenStatusChanged),
		TaskID:    task.ID,
		OrderID:   order.ID,
		OldStatus: prev,
		NewStatus: newStatus,
		WorkerID:  workerID,
		Notes:     task.Notes,
	}
	if err := k.events.PublishKitchenStatusChanged(ctx, event); err != nil {
		k.logger.Error("Failed to publish KitchenStatusChanged event", zap.Error(err))
	}

	return task, nil
}

// UpdateNotes updates a task's free-text notes. No state-machine constraint
// applies.
func (k *KitchenTaskSync) UpdateNotes(ctx context.Context, taskID, notes string) (*models.KitchenTask, error) {
	ctx, span := util.StartSpan(ctx, "KitchenTaskSync.UpdateNotes")
	defer span.End()

	return k.store.UpdateKitchenTaskNotes(ctx, taskID, notes)
}

// GetTask retrieves a kitchen task by ID
func (k *KitchenTaskSync) GetTask(ctx context.Context, taskID string) (*models.KitchenTask, error) {
	return k.store.GetKitchenTaskByID(ctx, taskID)
}

// OpenTasks retrieves the kitchen's current queue from the database. The
// Redis board cache is the fast path; this is the authoritative fallback.
func (k *KitchenTaskSync) OpenTasks(ctx context.Context) ([]models.KitchenTask, error) {
	return k.store.ListOpenKitchenTasks(ctx)
}

// Board serves the kitchen display board. The Redis projection is preferred,
// but an empty one is indistinguishable from a flushed cache the worker has
// not repopulated yet, so empty or failing reads fall back to the database.
func (k *KitchenTaskSync) Board(ctx context.Context) ([]models.KitchenBoardEntry, string, error) {
	if k.board != nil {
		entries, err := k.board.GetBoard(ctx)
		if err == nil && len(entries) > 0 {
			return entries, "cache", nil
		}
		if err != nil {
			k.logger.Warn("Kitchen board cache unavailable", zap.Error(err))
		}
	}

	tasks, err := k.store.ListOpenKitchenTasks(ctx)
	if err != nil {
		return nil, "", err
	}
	entries := make([]models.KitchenBoardEntry, 0, len(tasks))
	for _, task := range tasks {
		entries = append(entries, models.KitchenBoardEntry{
			TaskID:    task.ID,
			OrderID:   task.OrderID,
			Status:    task.Status,
			Notes:     task.Notes,
			UpdatedAt: task.UpdatedAt,
		})
	}
	return entries, "db", nil
}
