package rest

import (
	"net/http"

	"listing-edge-service/internal/contextkeys"
	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"
	"listing-edge-service/internal/core/session"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SessionHandler обслуживает жизненный цикл поисковых сессий
type SessionHandler struct {
	registry *session.Registry
}

func NewSessionHandler(registry *session.Registry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

func (h *SessionHandler) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	idStr := chi.URLParam(r, "sessionID")
	id, err := uuid.Parse(idStr)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid session id")
		return nil, false
	}
	s, ok := h.registry.Get(id)
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}

// CreateSession обрабатывает POST /api/v1/sessions.
// Создает сессию и сразу запускает загрузку первой страницы.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context())

	var req CreateSessionRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sortKey, err := domain.ParseSortKey(req.SortKey)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s := h.registry.Create(req.Filters.toDomain(), sortKey)

	logger.Info("Search session created", port.Fields{
		"session_id": s.ID.String(),
		"sort_key":   string(sortKey),
	})

	// Первая страница грузится синхронно: слой отображения сразу
	// получает либо данные, либо состояние ошибки
	if _, err := s.FetchNextPage(r.Context()); err != nil {
		logger.Warn("Initial page load failed", port.Fields{
			"session_id": s.ID.String(),
			"error":      err.Error(),
		})
	}

	RespondWithJSON(w, http.StatusCreated, toSessionState(s.Snapshot()))
}

// GetSession обрабатывает GET /api/v1/sessions/{sessionID}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	RespondWithJSON(w, http.StatusOK, toSessionState(s.Snapshot()))
}

// UpdateFilters обрабатывает PATCH /api/v1/sessions/{sessionID}/filters.
// Изменение проходит через дебаунс: быстрые последовательные правки
// схлопываются в один перезапуск выдачи.
func (h *SessionHandler) UpdateFilters(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context())

	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req UpdateFiltersRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.UpdateFilters(req.Filters.toDomain())

	logger.Debug("Session filters updated", port.Fields{
		"session_id": s.ID.String(),
	})

	// 202: коммит произойдет после дебаунс-окна
	RespondWithJSON(w, http.StatusAccepted, toSessionState(s.Snapshot()))
}

// UpdateSort обрабатывает PATCH /api/v1/sessions/{sessionID}/sort.
// Сортировка коммитится немедленно, без дебаунса.
func (h *SessionHandler) UpdateSort(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req UpdateSortRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sortKey, err := domain.ParseSortKey(req.SortKey)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.SetSort(sortKey)
	RespondWithJSON(w, http.StatusOK, toSessionState(s.Snapshot()))
}

// ObserveSentinel обрабатывает POST /api/v1/sessions/{sessionID}/sentinel.
// Слой отображения шлет сюда наблюдения сентинел-элемента; триггер сам
// решает, пора ли подгружать следующую страницу.
func (h *SessionHandler) ObserveSentinel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req SentinelEventRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	triggered := s.HandleVisibility(r.Context(), session.SentinelEvent{
		Visible:    req.Visible,
		Ratio:      req.Ratio,
		DistancePx: req.DistancePx,
	})

	RespondWithJSON(w, http.StatusOK, SentinelResponse{
		Triggered: triggered,
		State:     toSessionState(s.Snapshot()),
	})
}

// FetchNextPage обрабатывает POST /api/v1/sessions/{sessionID}/next-page.
// Явный запрос следующей страницы мимо сентинела (кнопка "показать еще").
func (h *SessionHandler) FetchNextPage(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context())

	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	if _, err := s.FetchNextPage(r.Context()); err != nil {
		logger.Warn("Next page load failed", port.Fields{
			"session_id": s.ID.String(),
			"error":      err.Error(),
		})
	}

	RespondWithJSON(w, http.StatusOK, toSessionState(s.Snapshot()))
}

// Refetch обрабатывает POST /api/v1/sessions/{sessionID}/refetch.
// Повтор после ошибки: сбрасывает состояние ошибки и пробует ту же страницу.
func (h *SessionHandler) Refetch(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context())

	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	if _, err := s.Refetch(r.Context()); err != nil {
		logger.Warn("Refetch failed", port.Fields{
			"session_id": s.ID.String(),
			"error":      err.Error(),
		})
	}

	RespondWithJSON(w, http.StatusOK, toSessionState(s.Snapshot()))
}

// DeleteSession обрабатывает DELETE /api/v1/sessions/{sessionID}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "sessionID")
	id, err := uuid.Parse(idStr)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if !h.registry.Delete(id) {
		WriteJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
