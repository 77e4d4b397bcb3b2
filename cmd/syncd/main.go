package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"suppliersync/internal/api"
	"suppliersync/internal/config"
	"suppliersync/internal/database"
	"suppliersync/internal/events"
	"suppliersync/internal/export"
	"suppliersync/internal/logging"
	"suppliersync/internal/metrics"
	"suppliersync/internal/notify"
	"suppliersync/internal/reconcile"
	"suppliersync/internal/repository"
	"suppliersync/internal/supplier"
	"suppliersync/internal/textnorm"
	"suppliersync/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	suppliers, err := loadSuppliers(&logger)
	if err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	tokenCache, redisCloser := initTokens(cfg, suppliers, &logger)
	if redisCloser != nil {
		defer redisCloser.Close()
	}

	clients := buildClients(cfg, suppliers, tokenCache, &logger)
	orderClients := make(map[string]reconcile.SupplierOrders, len(clients))
	workerClients := make(map[string]worker.SupplierAPI, len(clients))
	for code, c := range clients {
		orderClients[code] = c
		workerClients[code] = c
	}

	bus := events.NewEventBus()
	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		metrics.SubscribeJobs(bus)
	}

	if cfg.Telegram.Enabled {
		notifier, err := notify.NewTelegramNotifier(cfg.Telegram, &logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, continuing without alerts")
		} else {
			notifier.Subscribe(bus)
		}
	}

	retry := worker.PolicyFromConfig(cfg.Retry)
	features := worker.Features{
		BatchSize:           cfg.Sync.BatchSize,
		LegacyOrderPipeline: cfg.Sync.LegacyOrderPipeline,
	}

	orchestrator := worker.NewOrchestrator(db, workerClients, tokenCache, retry, features, textnorm.Normalize, &logger)
	manager := worker.NewJobManager(db, orchestrator, bus, cfg.ParamDefaults(), cfg.Sync.StaleTTL(), cfg.Sync.StartupGrace(), &logger)
	engine := reconcile.NewEngine(db, orderClients, bus, &logger)
	exporter := export.NewExporter(db, cfg.Exports.Path, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, &logger)

	var httpServer *api.HTTPServer
	if cfg.API.Enabled {
		handlers := api.NewHandlers(manager, db, engine, exporter, retry, &logger)
		httpServer = api.NewHTTPServer(cfg.API, handlers, &logger)
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	}

	logger.Info().
		Int("suppliers", len(clients)).
		Bool("api", cfg.API.Enabled).
		Msg("suppliersync started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	// дожидаемся бегущих джоб, чекпоинты уже в базе
	manager.Wait()

	logger.Info().Msg("suppliersync stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "syncd").Logger()

	return cfg, logger, closer, nil
}

func loadSuppliers(logger *zerolog.Logger) ([]config.SupplierConfig, error) {
	suppliersPath := os.Getenv("SUPPLIERS_PATH")
	if suppliersPath == "" {
		suppliersPath = "configs/suppliers.yaml"
	}

	data, err := os.ReadFile(suppliersPath)
	if err != nil {
		logger.Error().Err(err).Str("suppliers_path", suppliersPath).Msg("read suppliers")
		return nil, err
	}

	var suppliersConfig struct {
		Suppliers []config.SupplierConfig `yaml:"suppliers"`
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &suppliersConfig); err != nil {
		logger.Error().Err(err).Str("suppliers_path", suppliersPath).Msg("parse suppliers")
		return nil, err
	}

	if err := config.ValidateSuppliers(suppliersConfig.Suppliers); err != nil {
		return nil, fmt.Errorf("suppliers config: %w", err)
	}

	return suppliersConfig.Suppliers, nil
}

// initTokens собирает токен-кеш поверх redis с фоллбеком на память.
func initTokens(cfg *config.Config, suppliers []config.SupplierConfig, logger *zerolog.Logger) (*repository.TokenCache, io.Closer) {
	keys := make(map[string]string, len(suppliers))
	for _, s := range suppliers {
		if s.Disabled {
			continue
		}
		keys[s.Code] = s.APIKey
	}

	memory := repository.NewMemoryTokenRepository(0)

	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, tokens stay in memory")
		return repository.NewTokenCache(memory, keys, 0), nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	redisRepo := repository.NewRedisTokenRepository(redisClient, 0)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, starting in fallback mode")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	failover := repository.NewFailoverTokenRepository(redisRepo, memory, logger)
	return repository.NewTokenCache(failover, keys, 0), redisClient
}

func buildClients(cfg *config.Config, suppliers []config.SupplierConfig, tokens supplier.TokenSource, logger *zerolog.Logger) map[string]*supplier.Client {
	clients := make(map[string]*supplier.Client)
	for _, s := range suppliers {
		if s.Disabled {
			logger.Info().Str("supplier", s.Code).Msg("supplier disabled, skipping")
			continue
		}
		clients[s.Code] = supplier.NewClient(s.BaseURL, s.Code, s.Account, tokens, cfg.Sync.CallDelay(), logger)
		logger.Info().Str("supplier", s.Code).Str("base_url", s.BaseURL).Msg("supplier client ready")
	}
	return clients
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
