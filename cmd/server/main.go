package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	botdispatcher "github.com/region23/barbershop/internal/bot"
	"github.com/region23/barbershop/internal/bot/service"
	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/client"
	"github.com/region23/barbershop/internal/config"
	"github.com/region23/barbershop/internal/middleware"
	"github.com/region23/barbershop/internal/scheduler"
	"github.com/region23/barbershop/internal/scheduler/memory"
	"github.com/region23/barbershop/internal/server"
	"github.com/region23/barbershop/internal/storage/sqlite"
	"github.com/region23/barbershop/pkg/logger"
)

const (
	// Лимиты обновлений Telegram: на чат в минуту и глобально в секунду
	chatUpdatesPerMinute    = 30
	globalUpdatesPerSecond  = 30
	shutdownTimeout         = 30 * time.Second
	telegramRequestsTimeout = 15 * time.Second
	sessionCleanupInterval  = 10 * time.Minute
	sessionIdleTTL          = 24 * time.Hour
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.LevelInfo).Fatal("Failed to load config", logger.Error(err))
	}

	// Инициализируем логгер
	log := logger.New(logger.ParseLevel(cfg.LogLevel))
	log.Info("Starting barbershop booking service",
		logger.String("version", server.Version),
		logger.String("port", cfg.Server.Port))

	// Инициализируем хранилище
	store, err := sqlite.New(cfg.Database.Path, sqlite.WithBusyTimeout(cfg.Database.ConnTimeout))
	if err != nil {
		log.Fatal("Failed to initialize storage", logger.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage", logger.Error(err))
		}
	}()
	log.Info("Storage initialized", logger.String("path", cfg.Database.Path))

	clock := calendar.SystemClock{}

	// Очистка прошедших записей по расписанию
	cleanup := scheduler.NewCleanupJob(store, clock, cfg.Schedule.CleanupAfterDays, log)
	if err := cleanup.Start(cfg.Schedule.CleanupCron); err != nil {
		log.Fatal("Failed to start cleanup job", logger.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	serverOpts := []server.Option{server.WithClock(clock)}

	var reminders *memory.MemoryScheduler
	var chatLimiter *middleware.ChatRateLimiter
	var botService *service.Service
	if cfg.Telegram.Enabled {
		telegramBot, err := tgbot.New(cfg.Telegram.Token)
		if err != nil {
			log.Fatal("Failed to create Telegram bot", logger.Error(err))
		}
		log.Info("Telegram bot created")

		reminders = memory.NewMemoryScheduler(service.NewReminderNotifier(telegramBot, log), store, log)
		if err := reminders.ReschedulePending(ctx); err != nil {
			log.Error("Failed to reschedule pending reminders", logger.Error(err))
		} else {
			log.Info("Pending reminders rescheduled", logger.Int("active", reminders.ActiveCount()))
		}

		bookingClient := client.New(cfg.Client.BaseURL,
			client.WithTimeout(cfg.Client.Timeout),
			client.WithLogger(log))

		botService = service.NewService(telegramBot, bookingClient, cfg, log,
			service.WithClock(clock),
			service.WithReminders(store, reminders))
		botService.StartSessionCleanup(sessionCleanupInterval, sessionIdleTTL)

		chatLimiter = middleware.NewChatRateLimiter(chatUpdatesPerMinute, globalUpdatesPerSecond, log)
		dispatcher := botdispatcher.NewDispatcher(botService, chatLimiter, log)
		serverOpts = append(serverOpts,
			server.WithWebhook(dispatcher.WebhookHandler()),
			server.WithReminders(reminders))

		if err := setupWebhook(ctx, telegramBot, cfg.Telegram, log); err != nil {
			log.Fatal("Failed to setup webhook", logger.Error(err))
		}
	}

	// Создаем HTTP сервер
	srv, err := server.New(cfg, store, log, serverOpts...)
	if err != nil {
		log.Fatal("Failed to create HTTP server", logger.Error(err))
	}

	// Start блокируется до сигнала завершения
	if err := srv.Start(ctx); err != nil {
		log.Error("Server error", logger.Error(err))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if reminders != nil {
		if err := reminders.Stop(); err != nil {
			log.Error("Failed to stop reminder scheduler", logger.Error(err))
		}
	}
	if chatLimiter != nil {
		chatLimiter.Close()
	}
	if botService != nil {
		botService.Close()
	}
	if err := cleanup.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop cleanup job", logger.Error(err))
	}

	log.Info("Server stopped gracefully")
}

// setupWebhook настраивает webhook для Telegram бота
func setupWebhook(ctx context.Context, bot *tgbot.Bot, cfg config.TelegramConfig, log *logger.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, telegramRequestsTimeout)
	defer cancel()

	// Удаляем существующий webhook
	if _, err := bot.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
		log.Warn("Failed to delete existing webhook", logger.Error(err))
	}

	params := &tgbot.SetWebhookParams{
		URL:         cfg.WebhookURL,
		SecretToken: cfg.SecretToken,
	}
	if _, err := bot.SetWebhook(ctx, params); err != nil {
		return err
	}

	log.Info("Webhook configured", logger.String("url", cfg.WebhookURL))
	return nil
}
