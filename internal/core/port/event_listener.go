package port

import "context"

// EventListenerPort - входящий слушатель событий (rabbitmq-консьюмер)
type EventListenerPort interface {
	// Start блокируется до отмены контекста или фатальной ошибки
	Start(ctx context.Context) error

	Close() error
}
