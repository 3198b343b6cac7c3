package port

// Fields - структурированные данные для записи в лог
type Fields map[string]interface{}

// LoggerPort - контракт системы логирования. Реализации: slog (stdout),
// fluent bit, мультилоггер поверх них.
type LoggerPort interface {
	Debug(msg string, fields Fields)

	Info(msg string, fields Fields)

	Warn(msg string, fields Fields)

	Error(msg string, err error, fields Fields)

	// WithFields возвращает новый логгер с уже добавленными полями
	WithFields(fields Fields) LoggerPort
}
