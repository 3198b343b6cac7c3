package internal

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"listing-edge-service/internal/adapters/cachestore"
	"listing-edge-service/internal/adapters/images"
	"listing-edge-service/internal/adapters/listingapi"
	logger_adapter "listing-edge-service/internal/adapters/logger"
	"listing-edge-service/internal/adapters/mapsconfig"
	"listing-edge-service/internal/adapters/offlinegate"
	postgres_adapter "listing-edge-service/internal/adapters/postgres"
	rabbitmq_adapter "listing-edge-service/internal/adapters/rabbitmq"
	"listing-edge-service/internal/adapters/rest"
	"listing-edge-service/internal/adapters/resultcache"
	"listing-edge-service/internal/configs"
	"listing-edge-service/internal/constants"
	"listing-edge-service/internal/core/port"
	"listing-edge-service/internal/core/session"
	"listing-edge-service/internal/core/usecase"

	fluentlogger "listing-edge-service/pkg/fluent_logger"
	"listing-edge-service/pkg/postgres"
	"listing-edge-service/pkg/rabbitmq/rabbitmq_common"
	"listing-edge-service/pkg/rabbitmq/rabbitmq_consumer"
	"listing-edge-service/pkg/rabbitmq/rabbitmq_producer"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/jackc/pgx/v5/pgxpool"
)

// App – структура приложения
type App struct {
	config       *configs.AppConfig
	dbPool       *pgxpool.Pool
	apiServer    *rest.Server
	fluentClient *fluent.Fluent
	logger       port.LoggerPort

	registry    *session.Registry
	resultCache *resultcache.MemoryCacheAdapter
	gateway     *offlinegate.Gateway
	mapsClient  *mapsconfig.Client

	invalidationListener port.EventListenerPort
	reportsProducer      *rabbitmq_producer.Publisher
	connManager          *rabbitmq_common.ConnectionManager
}

// NewApp создает новый экземпляр приложения.
// Это "Composition Root", где все зависимости создаются и связываются.
func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	// --- 1. ИНИЦИАЛИЗАЦИЯ ЛОГГЕРОВ ---
	var activeLoggers []port.LoggerPort

	slogCfg := logger_adapter.SlogConfig{
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		IsJSON:   false,
		UseColor: true,
	}
	stdoutLogger := logger_adapter.NewSlogAdapter(slogCfg)
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{
		"service_name": appConfig.AppName,
	})

	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	// --- 2. ИСХОДЯЩИЕ АДАПТЕРЫ (upstream property API) ---
	listingFetcher, err := listingapi.NewListingAPIAdapter(appConfig.Upstream.BaseURL)
	if err != nil {
		appLogger.Error("Failed to create listing API adapter", err, nil)
		return nil, fmt.Errorf("failed to create listing API adapter: %w", err)
	}
	favoritesClient := listingapi.NewFavoritesClient(appConfig.Upstream.BaseURL)
	mapsClient := mapsconfig.NewClient(appConfig.Upstream.BaseURL)
	appLogger.Info("Upstream API adapters initialized.", nil)

	// --- 3. КЭШИ ---
	resultCache := resultcache.NewMemoryCacheAdapter(baseLogger)

	// Хранилища offline-шлюза: по умолчанию все в памяти; при наличии БД
	// dynamic-поколение переезжает в postgres и переживает рестарты
	var gateStorage port.CacheStoragePort = cachestore.NewMemoryStorage()
	var dbPool *pgxpool.Pool
	if appConfig.Database.Enabled {
		dbPool, err = postgres.NewClient(context.Background(), postgres.Config{DatabaseURL: appConfig.Database.URL})
		if err != nil {
			appLogger.Error("Failed to connect to PostgreSQL", err, nil)
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		appLogger.Info("Successfully connected to PostgreSQL pool!", nil)

		persistentStorage, err := postgres_adapter.NewPostgresCacheStorageAdapter(context.Background(), dbPool)
		if err != nil {
			appLogger.Error("Failed to create postgres cache storage adapter", err, nil)
			dbPool.Close()
			return nil, fmt.Errorf("failed to create postgres cache storage adapter: %w", err)
		}
		gateStorage = cachestore.NewHybridStorage(
			cachestore.NewMemoryStorage(),
			persistentStorage,
			[]string{constants.DynamicCacheName},
		)
	}
	appLogger.Info("Cache storages initialized.", port.Fields{"persistent_dynamic": appConfig.Database.Enabled})

	imageWarmer := images.NewPrefetcherAdapter(gateStorage, baseLogger)

	// --- 4. RABBITMQ (опционально) ---
	var (
		connManager          *rabbitmq_common.ConnectionManager
		reportsProducer      *rabbitmq_producer.Publisher
		gateReporter         port.GateReporterPort
		invalidationListener port.EventListenerPort
	)

	invalidateUseCase := usecase.NewInvalidateListingsUseCase(resultCache)

	if appConfig.RabbitMQ.Enabled {
		connManagerLogger := baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"})
		connManager, err = rabbitmq_common.NewManager(appConfig.RabbitMQ.URL, rabbitmq_adapter.NewPkgLoggerBridge(connManagerLogger))
		if err != nil {
			appLogger.Error("Failed to create connection manager", err, nil)
			return nil, fmt.Errorf("failed to create connection manager: %w", err)
		}
		appLogger.Info("RabbitMQ Connection Manager initialized.", nil)

		producerLogger := baseLogger.WithFields(port.Fields{"component": "rabbitmq_producer"})
		producerCfg := rabbitmq_producer.PublisherConfig{
			Config:                   rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL, Logger: rabbitmq_adapter.NewPkgLoggerBridge(producerLogger)},
			ExchangeName:             constants.ListingEventsExchange,
			ExchangeType:             "direct",
			DurableExchange:          true,
			DeclareExchangeIfMissing: true,
		}
		reportsProducer, err = rabbitmq_producer.NewPublisher(producerCfg, connManager)
		if err != nil {
			appLogger.Error("Failed to create event producer", err, nil)
			return nil, fmt.Errorf("failed to create event producer: %w", err)
		}
		gateReporter, _ = rabbitmq_adapter.NewGateReporterAdapter(reportsProducer, constants.RoutingKeyCacheReports)

		consumerCfg := rabbitmq_consumer.ConsumerConfig{
			Config:              rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
			QueueName:           constants.QueueListingInvalidation,
			DurableQueue:        true,
			DeclareQueue:        true,
			ExchangeNameForBind: constants.ListingEventsExchange,
			RoutingKeyForBind:   constants.RoutingKeyListingInvalidation,
			PrefetchCount:       1,
			ConsumerTag:         "listing-invalidation-adapter",

			EnableRetryMechanism: true,
			RetryExchange:        constants.QueueListingInvalidation + "_retry_ex",
			RetryQueue:           constants.QueueListingInvalidation + "_retry_wait_10s",
			RetryTTL:             10000, // 10 секунд

			FinalDLXExchange:   constants.FinalDLXExchange,
			FinalDLQ:           constants.FinalDLQ,
			FinalDLQRoutingKey: constants.FinalDLQRoutingKey,
			MaxRetries:         3,
		}
		invalidationListener, err = rabbitmq_adapter.NewInvalidationConsumerAdapter(consumerCfg, invalidateUseCase, baseLogger, connManager)
		if err != nil {
			appLogger.Error("Failed to create invalidation listener", err, nil)
			return nil, err
		}
		appLogger.Info("Invalidation Events Listener initialized.", nil)
	}

	// --- 5. OFFLINE-ШЛЮЗ ---
	classifier := offlinegate.NewClassifier(
		constants.KnownImageHosts,
		constants.APIPathPrefixes,
		constants.ImageExtensions,
		constants.StaticExtensions,
	)
	gateway, err := offlinegate.NewGateway(gateStorage, classifier, appConfig.Upstream.BaseURL, gateReporter, baseLogger)
	if err != nil {
		appLogger.Error("Failed to create offline gateway", err, nil)
		return nil, fmt.Errorf("failed to create offline gateway: %w", err)
	}

	// --- 6. USE CASES И СЕССИИ ---
	warmImagesUseCase := usecase.NewWarmImagesUseCase(imageWarmer, 4)
	findListingsUseCase := usecase.NewFindListingsUseCase(listingFetcher, resultCache, warmImagesUseCase)
	toggleFavoriteUseCase := usecase.NewToggleFavoriteUseCase(favoritesClient, resultCache)

	registry := session.NewRegistry(listingFetcher, resultCache, imageWarmer, baseLogger, 0, session.DefaultDebounceInterval)
	appLogger.Info("All use cases initialized.", nil)

	// --- 7. REST API SERVER ---
	sessionHandlers := rest.NewSessionHandler(registry)
	listingHandlers := rest.NewListingHandler(findListingsUseCase, toggleFavoriteUseCase)

	apiServer := rest.NewServer(appConfig.Rest.PORT, sessionHandlers, listingHandlers, gateway, baseLogger)
	appLogger.Info("REST API server configured.", nil)

	application := &App{
		config:       appConfig,
		dbPool:       dbPool,
		apiServer:    apiServer,
		fluentClient: fluentClient,
		logger:       appLogger,

		registry:    registry,
		resultCache: resultCache,
		gateway:     gateway,
		mapsClient:  mapsClient,

		invalidationListener: invalidationListener,
		reportsProducer:      reportsProducer,
		connManager:          connManager,
	}

	return application, nil
}

// Run запускает все компоненты приложения и управляет их жизненным циклом.
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())

	var wg sync.WaitGroup

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		a.logger.Info("Waiting for background processes to finish...", nil)
		wg.Wait()
		a.logger.Info("All background processes finished.", nil)

		if a.apiServer != nil {
			if err := a.apiServer.Stop(context.Background()); err != nil {
				a.logger.Error("Error during API server shutdown", err, nil)
			}
		}

		if a.invalidationListener != nil {
			if err := a.invalidationListener.Close(); err != nil {
				a.logger.Error("Error closing invalidation listener", err, nil)
			}
		}

		if a.reportsProducer != nil {
			if err := a.reportsProducer.Close(); err != nil {
				a.logger.Error("Error closing event producer", err, nil)
			}
		}

		if a.connManager != nil {
			if err := a.connManager.Close(); err != nil {
				a.logger.Error("Error closing RabbitMQ connection", err, nil)
			}
		}

		a.resultCache.Close()

		if a.dbPool != nil {
			a.dbPool.Close()
			a.logger.Info("PostgreSQL pool closed.", nil)
		}

		a.logger.Info("Application shut down gracefully.", nil)

		if a.fluentClient != nil {
			if err := a.fluentClient.Close(); err != nil {
				// Логируем в stdout, так как fluent может быть уже недоступен
				fmt.Printf("ERROR: Error closing fluent client: %v\n", err)
			}
		}
	}()

	a.logger.Info("Application is starting...", nil)

	// Прогрев обязательных ассетов и смена поколения кэшей.
	// Неуспешный install не фатален: шлюз останется прозрачным прокси.
	if err := a.gateway.Run(appCtx); err != nil {
		a.logger.Warn("Offline gateway install/activate failed, serving in pass-through mode", port.Fields{
			"error": err.Error(),
		})
	}

	// Хосты картинок из maps-конфигурации пополняют классификатор шлюза
	if hosts, err := a.mapsClient.ImageHosts(appCtx); err == nil {
		a.gateway.AddImageHosts(hosts)
	} else {
		a.logger.Warn("Failed to load maps image hosts", port.Fields{"error": err.Error()})
	}

	errorsCh := make(chan error, 1)

	// Янитор сессий
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.registry.Run(appCtx)
	}()

	if a.invalidationListener != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			listenerLogger := a.logger.WithFields(port.Fields{"listener_name": "Invalidation Events Listener"})
			listenerLogger.Info("Starting listener...", nil)

			if err := a.invalidationListener.Start(appCtx); err != nil {
				listenerLogger.Error("Listener stopped with an unexpected error", err, nil)
				errorsCh <- fmt.Errorf("invalidation listener error: %w", err)
			} else {
				listenerLogger.Info("Listener stopped gracefully due to context cancellation.", nil)
			}
		}()
	}

	go func() {
		a.logger.Info("Starting HTTP server...", port.Fields{"port": a.config.Rest.PORT})
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			errorsCh <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	a.logger.Info("Application running. Waiting for signals or server error...", nil)
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received OS signal, shutting down...", port.Fields{"signal": receivedSignal.String()})
	case err := <-errorsCh:
		a.logger.Error("A critical component failed, shutting down", err, nil)
	case <-appCtx.Done():
		a.logger.Warn("Context was cancelled unexpectedly, shutting down...", nil)
	}

	cancelApp()

	return nil
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}
