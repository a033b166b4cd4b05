package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"inventory-billing/internal/models"
	"inventory-billing/internal/util"
)

// EventPublisher handles publishing domain events. Inventory and billing
// events go to separate topics.
type EventPublisher struct {
	inventory *Producer
	billing   *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(inventory, billing *Producer) *EventPublisher {
	return &EventPublisher{inventory: inventory, billing: billing}
}

// PublishStockDeducted publishes a StockDeducted event
func (ep *EventPublisher) PublishStockDeducted(ctx context.Context, event *models.StockDeductedEvent) error {
	key := fmt.Sprintf("dish-%d", event.DishID)
	return ep.inventory.PublishEvent(ctx, key, event)
}

// PublishStockDeductFailed publishes a StockDeductFailed event
func (ep *EventPublisher) PublishStockDeductFailed(ctx context.Context, event *models.StockDeductFailedEvent) error {
	key := fmt.Sprintf("dish-%d", event.DishID)
	return ep.inventory.PublishEvent(ctx, key, event)
}

// PublishLowStockAlert publishes a LowStockAlert event
func (ep *EventPublisher) PublishLowStockAlert(ctx context.Context, event *models.LowStockAlertEvent) error {
	key := fmt.Sprintf("ingredient-%d", event.IngredientID)
	return ep.inventory.PublishEvent(ctx, key, event)
}

// PublishStockReceived publishes a StockReceived event
func (ep *EventPublisher) PublishStockReceived(ctx context.Context, event *models.StockReceivedEvent) error {
	key := fmt.Sprintf("purchase-order-%d", event.PurchaseOrderID)
	return ep.inventory.PublishEvent(ctx, key, event)
}

// PublishTransferCreated publishes a TransferCreated event
func (ep *EventPublisher) PublishTransferCreated(ctx context.Context, event *models.TransferCreatedEvent) error {
	key := fmt.Sprintf("batch-%d", event.StockBatchID)
	return ep.inventory.PublishEvent(ctx, key, event)
}

// PublishBillGenerated publishes a BillGenerated event
func (ep *EventPublisher) PublishBillGenerated(ctx context.Context, event *models.BillGeneratedEvent) error {
	key := fmt.Sprintf("purchase-order-%d", event.PurchaseOrderID)
	return ep.billing.PublishEvent(ctx, key, event)
}

// PublishPaymentRecorded publishes a PaymentRecorded event
func (ep *EventPublisher) PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error {
	key := fmt.Sprintf("bill-%d", event.BillID)
	return ep.billing.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming events to registered callbacks
type EventHandler struct {
	logger            *zap.Logger
	onDishSaleRequest func(context.Context, *models.DishSaleRequestedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnDishSaleRequested registers a handler for DishSaleRequested events
func (eh *EventHandler) OnDishSaleRequested(handler func(context.Context, *models.DishSaleRequestedEvent) error) {
	eh.onDishSaleRequest = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeDishSaleRequested:
		if eh.onDishSaleRequest != nil {
			var event models.DishSaleRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal DishSaleRequested event: %w", err)
			}
			return eh.onDishSaleRequest(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
