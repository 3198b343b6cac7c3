package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"listing-edge-service/internal/contextkeys"
	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"
	"listing-edge-service/pkg/rabbitmq/rabbitmq_producer"

	amqp "github.com/rabbitmq/amqp091-go"
)

// GateReporterAdapter публикует отчеты offline-шлюза в шину событий
type GateReporterAdapter struct {
	producer   *rabbitmq_producer.Publisher
	routingKey string
}

func NewGateReporterAdapter(producer *rabbitmq_producer.Publisher, routingKey string) (*GateReporterAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("rabbitmq adapter: routingKey cannot be empty")
	}
	return &GateReporterAdapter{
		producer:   producer,
		routingKey: routingKey,
	}, nil
}

func (a *GateReporterAdapter) ReportActivation(ctx context.Context, report domain.ActivationReport) error {
	logger := contextkeys.LoggerFromContext(ctx)
	adapterLogger := logger.WithFields(port.Fields{
		"component":   "GateReporterAdapter",
		"routing_key": a.routingKey,
	})

	body, _ := json.Marshal(report)

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent, // Переживает перезапуск брокера
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			"event-type":    "CacheActivationReportEvent",
			"event-version": "1.0.0",
		},
	}

	traceID := contextkeys.TraceIDFromContext(ctx)
	if traceID != "" {
		msg.Headers["x-trace-id"] = traceID
	}

	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	adapterLogger.Info("Publishing cache activation report", port.Fields{
		"generations":    report.Generations,
		"dropped_stores": report.DroppedStores,
	})
	if err := a.producer.Publish(publishCtx, a.routingKey, msg); err != nil {
		adapterLogger.Error("Failed to publish activation report", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to publish activation report: %w", err)
	}

	return nil
}
