package worker

import (
	"context"
	"log"

	"campus-eats/internal/broker"
	"campus-eats/internal/models"
	"campus-eats/internal/redisclient"
)

// BoardWorker keeps the Redis kitchen display board in sync with domain
// events: new orders add an entry, kitchen transitions update it, and
// completion or cancellation removes it.
type BoardWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	redis        *redisclient.Client
}

// NewBoardWorker creates a new board worker
func NewBoardWorker(consumer *broker.Consumer, redis *redisclient.Client) *BoardWorker {
	w := &BoardWorker{
		consumer: consumer,
		redis:    redis,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	eventHandler.OnOrderCancelled(w.handleOrderCancelled)
	eventHandler.OnKitchenStatusChanged(w.handleKitchenStatusChanged)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *BoardWorker) Start(ctx context.Context) error {
	log.Println("Starting kitchen board worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *BoardWorker) Stop() error {
	log.Println("Stopping kitchen board worker...")
	return w.consumer.Close()
}

func (w *BoardWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return w.redis.SetBoardEntry(ctx, &models.KitchenBoardEntry{
		TaskID:    event.TaskID,
		OrderID:   event.OrderID,
		Status:    models.KitchenStatusNotStarted,
		UpdatedAt: event.Timestamp,
	})
}

func (w *BoardWorker) handleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	board, err := w.redis.GetBoard(ctx)
	if err != nil {
		return err
	}
	for _, entry := range board {
		if entry.OrderID == event.OrderID {
			return w.redis.RemoveBoardEntry(ctx, entry.TaskID)
		}
	}
	return nil
}

func (w *BoardWorker) handleKitchenStatusChanged(ctx context.Context, event *models.KitchenStatusChangedEvent) error {
	if event.NewStatus == models.KitchenStatusCompleted {
		return w.redis.RemoveBoardEntry(ctx, event.TaskID)
	}
	return w.redis.SetBoardEntry(ctx, &models.KitchenBoardEntry{
		TaskID:    event.TaskID,
		OrderID:   event.OrderID,
		Status:    event.NewStatus,
		Notes:     event.Notes,
		UpdatedAt: event.Timestamp,
	})
}
