package session

import (
	"context"
	"sync"

	"listing-edge-service/internal/core/port"
)

// Настройки срабатывания по умолчанию: любая видимая часть сентинела
// плюс упреждающий запас в 200px до входа в viewport.
const (
	DefaultVisibilityThreshold = 0.0
	DefaultTriggerMarginPx     = 200
)

// SentinelEvent - одно наблюдение сентинел-элемента, присланное слоем
// отображения (аналог колбэка IntersectionObserver)
type SentinelEvent struct {
	// Visible - пересекает ли сентинел viewport
	Visible bool
	// Ratio - доля видимой площади сентинела (0..1)
	Ratio float64
	// DistancePx - расстояние от сентинела до нижней границы viewport;
	// 0, если уже виден
	DistancePx int
}

// Состояния триггера. Переходы гоняют события наблюдения и завершение фетча.
type triggerState int

const (
	// взведен: следующий "вход в видимость" запускает загрузку
	triggerArmed triggerState = iota
	// выстрелил: запрос в полете, повторные наблюдения игнорируются
	triggerPending
	// запрос завершился, ждем нового наблюдения сентинела для взвода
	triggerCooldown
	// наблюдатель отключен, все события игнорируются
	triggerDisconnected
)

// ScrollTrigger - триггер бесконечной прокрутки.
//
// Срабатывает ровно один раз на переход сентинела в видимость: пока
// запрос в полете, повторные события ничего не делают. После завершения
// запроса (успех или ошибка) триггер взводится заново только после
// нового наблюдения сентинела.
type ScrollTrigger struct {
	mu sync.Mutex

	controller *PaginationController
	logger     port.LoggerPort

	state     triggerState
	threshold float64
	marginPx  int

	// был ли сентинел видим в прошлом событии - нужен, чтобы отличать
	// переход в видимость от "все еще виден"
	wasVisible bool
}

func NewScrollTrigger(controller *PaginationController, logger port.LoggerPort, threshold float64, marginPx int) *ScrollTrigger {
	if threshold < 0 || threshold > 1 {
		threshold = DefaultVisibilityThreshold
	}
	if marginPx < 0 {
		marginPx = DefaultTriggerMarginPx
	}
	return &ScrollTrigger{
		controller: controller,
		logger:     logger,
		state:      triggerArmed,
		threshold:  threshold,
		marginPx:   marginPx,
	}
}

// effectiveVisible: сентинел считается "в зоне срабатывания", когда он
// пересек порог видимости либо приблизился на упреждающий запас
func (t *ScrollTrigger) effectiveVisible(ev SentinelEvent) bool {
	if ev.Visible && ev.Ratio >= t.threshold {
		return true
	}
	return !ev.Visible && ev.DistancePx >= 0 && ev.DistancePx <= t.marginPx
}

// Observe обрабатывает одно наблюдение сентинела.
// Возвращает true, если наблюдение запустило загрузку следующей страницы.
func (t *ScrollTrigger) Observe(ctx context.Context, ev SentinelEvent) bool {
	t.mu.Lock()

	if t.state == triggerDisconnected {
		t.mu.Unlock()
		return false
	}

	visible := t.effectiveVisible(ev)

	// Любое новое наблюдение после завершения фетча взводит триггер.
	// wasVisible при этом не трогаем: пока сентинел висит в viewport,
	// нового "входа в видимость" нет, и повторный выстрел не положен
	if t.state == triggerCooldown {
		t.state = triggerArmed
	}

	entering := visible && !t.wasVisible
	t.wasVisible = visible

	if t.state != triggerArmed || !entering {
		t.mu.Unlock()
		return false
	}

	if !t.controller.HasNextPage() || t.controller.IsFetching() {
		t.mu.Unlock()
		return false
	}

	t.state = triggerPending
	t.mu.Unlock()

	t.logger.Debug("Sentinel entered trigger zone, fetching next page", port.Fields{
		"ratio":       ev.Ratio,
		"distance_px": ev.DistancePx,
	})

	started, err := t.controller.FetchNextPage(ctx)

	t.mu.Lock()
	if t.state == triggerPending {
		t.state = triggerCooldown
	}
	t.mu.Unlock()

	if err != nil {
		// Ошибку уже залогировал контроллер; триггер просто ушел в cooldown
		return started
	}
	return started
}

// FetchCompleted дергается, когда загрузка ушла в фон и завершилась
// мимо Observe (например, refetch по кнопке). Переводит pending в cooldown.
func (t *ScrollTrigger) FetchCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == triggerPending {
		t.state = triggerCooldown
	}
}

// Disconnect отключает триггер насовсем (teardown сессии)
func (t *ScrollTrigger) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = triggerDisconnected
}
