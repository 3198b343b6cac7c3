package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"listing-edge-service/internal/contextkeys"
	"listing-edge-service/internal/contracts"
	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"
	"listing-edge-service/internal/core/port/usecases_port"
	"listing-edge-service/pkg/rabbitmq/rabbitmq_common"
	"listing-edge-service/pkg/rabbitmq/rabbitmq_consumer"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// InvalidationEventDTO - тело события инвалидации из шины
type InvalidationEventDTO struct {
	Reason    string `json:"reason"`
	ListingID string `json:"listing_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// InvalidationConsumerAdapter - входящий адаптер: слушает очередь событий
// инвалидации и дергает use case выборочного сброса кэша выдачи
type InvalidationConsumerAdapter struct {
	consumer *rabbitmq_consumer.Consumer
	useCase  usecases_port.InvalidateListingsUseCase
	logger   port.LoggerPort
}

func NewInvalidationConsumerAdapter(
	consumerCfg rabbitmq_consumer.ConsumerConfig,
	useCase usecases_port.InvalidateListingsUseCase,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*InvalidationConsumerAdapter, error) {

	adapter := &InvalidationConsumerAdapter{
		useCase: useCase,
		logger:  logger,
	}

	// Логгер pkg-уровня с контекстом нашего компонента
	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_consumer", "consumer_tag": consumerCfg.ConsumerTag})
	consumerCfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewConsumer(consumerCfg, adapter.messageHandler, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for invalidation events: %w", err)
	}
	adapter.consumer = consumer

	return adapter, nil
}

func (a *InvalidationConsumerAdapter) messageHandler(d amqp.Delivery) error {
	traceID, _ := d.Headers["x-trace-id"].(string)
	if traceID == "" {
		traceID = uuid.New().String()
	}

	msgLogger := a.logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"message_id":   d.MessageId,
		"adapter_name": "InvalidationConsumerAdapter",
	})

	ctx := context.Background()
	ctx = contextkeys.ContextWithLogger(ctx, msgLogger)
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)

	// Валидация по схеме
	eventType, _ := d.Headers["event-type"].(string)
	eventVersion, _ := d.Headers["event-version"].(string)
	if err := contracts.ValidateEvent(eventType, eventVersion, d.Body); err != nil {
		msgLogger.Error("Message failed schema validation. Rejecting.", err, nil)
		return err
	}

	var dto InvalidationEventDTO
	if err := json.Unmarshal(d.Body, &dto); err != nil {
		return fmt.Errorf("failed to unmarshal invalidation event: %w", err)
	}

	event := domain.InvalidationEvent{
		Reason:    dto.Reason,
		ListingID: dto.ListingID,
		UserID:    dto.UserID,
	}

	msgLogger.Info("Processing invalidation event", port.Fields{
		"reason":     event.Reason,
		"listing_id": event.ListingID,
	})

	if err := a.useCase.Execute(ctx, event); err != nil {
		msgLogger.Error("Invalidation failed, message will be retried.", err, nil)
		return err
	}

	return nil
}

// Start блокируется до отмены контекста или обрыва соединения
func (a *InvalidationConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

func (a *InvalidationConsumerAdapter) Close() error {
	return a.consumer.Close()
}
