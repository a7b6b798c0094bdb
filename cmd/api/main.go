package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/saludbioskin/chatbot-engine/internal/api/router"
	"github.com/saludbioskin/chatbot-engine/internal/appointment"
	"github.com/saludbioskin/chatbot-engine/internal/calendar"
	"github.com/saludbioskin/chatbot-engine/internal/channels/whatsapp"
	"github.com/saludbioskin/chatbot-engine/internal/config"
	"github.com/saludbioskin/chatbot-engine/internal/conversation"
	"github.com/saludbioskin/chatbot-engine/internal/notify"
	"github.com/saludbioskin/chatbot-engine/internal/observability/metrics"
	"github.com/saludbioskin/chatbot-engine/internal/storage"
	"github.com/saludbioskin/chatbot-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		logger.Warn("unknown clinic timezone, using UTC", "timezone", cfg.ClinicTimezone)
		loc = time.UTC
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		logger.Warn("database unreachable at startup, fallback store will absorb writes", "error", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable, history cache disabled", "error", err)
			redisClient = nil
		}
	}

	var llm conversation.LLMClient
	if cfg.GeminiAPIKey != "" {
		gemini, err := conversation.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("gemini client unavailable, replies degrade to apology", "error", err)
		} else {
			defer gemini.Close()
			llm = gemini
		}
	} else {
		logger.Warn("GEMINI_API_KEY not set, replies degrade to apology")
	}

	engineMetrics := metrics.NewEngineMetrics(nil)

	primary := conversation.NewPostgresStore(db)
	fallback := conversation.NewFallbackStore()
	store := conversation.NewFailoverStore(primary, fallback, cfg.StoreTimeout, 15*time.Second, logger)

	waClient := whatsapp.NewClient(cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneNumberID, cfg.WhatsAppAPIBase, logger)
	calClient := calendar.NewClient(cfg.CalendarBaseURL, cfg.CalendarAPIKey, cfg.CalendarTimeout, logger)
	machine := appointment.NewMachine(calClient, cfg.MaxSlotAttempts, loc, logger)
	notifier := notify.NewService(waClient, cfg.StaffRoster, logger)

	engine := conversation.NewEngine(conversation.EngineDeps{
		Store:        store,
		Degraded:     store.Degraded,
		Classifier:   conversation.NewClassifier(llm, cfg.LLMTimeout, logger),
		Replies:      conversation.NewReplySynthesizer(llm, cfg.LLMTimeout, logger),
		Machine:      machine,
		Sender:       waClient,
		Notifier:     notifier,
		Cache:        conversation.NewHistoryCache(redisClient, cfg.HistoryLimit),
		Metrics:      engineMetrics,
		HistoryLimit: cfg.HistoryLimit,
		Logger:       logger,
	})

	governor := storage.NewGovernor(db, storage.Config{
		MaxStorageMB:          int(cfg.MaxStorageMB),
		CleanupThreshold:      cfg.CleanupThreshold,
		MaxMessagesPerSession: cfg.MaxMessagesPerSess,
		MaxSessionIdleDays:    cfg.MaxSessionIdleDays,
	}, logger)

	webhookHandler := conversation.NewHandler(engine, cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret, logger)
	adminHandler := storage.NewHandler(governor, primary, store.Degraded, logger)

	handler := router.New(&router.Config{
		Logger:          logger,
		WebhookHandler:  webhookHandler,
		AdminHandler:    adminHandler,
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  promhttp.Handler(),
	})

	bgCtx, cancelBackground := context.WithCancel(context.Background())
	go governor.RunLoop(bgCtx, cfg.GovernorInterval)
	go store.RunResyncLoop(bgCtx, cfg.ResyncInterval)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancelBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("server stopped")
}
