package port

import "context"

// MapsConfigPort - конфигурация карт с upstream (/api/config/maps).
// Используется только классификацией запросов в offline-шлюзе
// (allowlist хостов картинок карт), ядро пайплайна ее не трогает.
type MapsConfigPort interface {
	// ImageHosts возвращает список хостов тайлов/статики карт
	ImageHosts(ctx context.Context) ([]string, error)
}
