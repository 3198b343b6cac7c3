package port

import "context"

// ImageWarmerPort прогревает кэш изображений после успешной загрузки страницы.
// Чисто рекомендательная операция: ошибки глотаются, ответ пользователю
// от нее не зависит.
type ImageWarmerPort interface {
	WarmImages(ctx context.Context, urls []string)
}
