package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// UpstreamConfig - адрес upstream property API
type UpstreamConfig struct {
	BaseURL string // например http://property-api:8080
}

// RabbitMQConfig хранит конфигурацию для RabbitMQ
type RabbitMQConfig struct {
	Enabled bool
	URL     string
}

// DBconfig - база для персистентного dynamic-кэша шлюза
type DBconfig struct {
	Enabled bool
	URL     string
}

type RESTconfig struct {
	PORT string
}

// FluentBitConfig - отправка логов в Fluent Bit
type FluentBitConfig struct {
	Enabled bool
	Host    string
	Port    int
	Level   string
}

type StdoutLoggerConfig struct {
	Level string
}

// AppConfig хранит всю конфигурацию приложения
type AppConfig struct {
	AppName      string
	Upstream     UpstreamConfig
	Database     DBconfig
	RabbitMQ     RabbitMQConfig
	Rest         RESTconfig
	FluentBit    FluentBitConfig
	StdoutLogger StdoutLoggerConfig
}

// LoadConfig загружает конфигурацию из переменных окружения (.env - опционально)
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		// .env может отсутствовать (docker/k8s задают окружение сами)
		log.Printf("Info: could not load .env file: %v\n", err)
	}

	cfg := &AppConfig{}

	cfg.AppName = os.Getenv("APP_NAME")
	if cfg.AppName == "" {
		cfg.AppName = "listing-edge-service"
	}

	cfg.Upstream.BaseURL = os.Getenv("UPSTREAM_API_URL")
	if cfg.Upstream.BaseURL == "" {
		return nil, fmt.Errorf("UPSTREAM_API_URL environment variable is required")
	}
	// Постоянное хранилище dynamic-кэша - опциональное
	cfg.Database.URL = os.Getenv("DATABASE_URL")
	cfg.Database.Enabled = cfg.Database.URL != ""

	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
	cfg.RabbitMQ.Enabled = cfg.RabbitMQ.URL != ""

	cfg.Rest.PORT = os.Getenv("PORT")
	if cfg.Rest.PORT == "" {
		cfg.Rest.PORT = "8080"
	}

	cfg.StdoutLogger.Level = os.Getenv("LOG_LEVEL")
	if cfg.StdoutLogger.Level == "" {
		cfg.StdoutLogger.Level = "info"
	}

	cfg.FluentBit.Enabled = os.Getenv("FLUENTBIT_ENABLED") == "true"
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			return nil, fmt.Errorf("FLUENTBIT_HOST is required when FLUENTBIT_ENABLED=true")
		}
		portStr := os.Getenv("FLUENTBIT_PORT")
		if portStr == "" {
			portStr = "24224"
		}
		cfg.FluentBit.Port, err = strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid FLUENTBIT_PORT %q: %w", portStr, err)
		}
		cfg.FluentBit.Level = os.Getenv("FLUENTBIT_LOG_LEVEL")
		if cfg.FluentBit.Level == "" {
			cfg.FluentBit.Level = "info"
		}
	}

	return cfg, nil
}
