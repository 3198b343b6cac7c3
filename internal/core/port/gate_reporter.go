package port

import (
	"context"
	"listing-edge-service/internal/core/domain"
)

// GateReporterPort публикует отчеты offline-шлюза (активация, сборка мусора
// поколений) в шину событий для мониторинга
type GateReporterPort interface {
	ReportActivation(ctx context.Context, report domain.ActivationReport) error
}
