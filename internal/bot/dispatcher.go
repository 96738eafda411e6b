package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/region23/barbershop/internal/bot/handlers"
	"github.com/region23/barbershop/internal/bot/service"
	"github.com/region23/barbershop/internal/middleware"
	"github.com/region23/barbershop/internal/validation"
	"github.com/region23/barbershop/pkg/logger"
)

// Команды бота
const (
	CommandStart  = "/start"
	CommandBook   = "/agendar"
	CommandCancel = "/cancelar"
)

const (
	defaultUpdateTimeout = 30 * time.Second
	maxUpdateBytes       = 1 << 20
)

// Dispatcher управляет обработкой входящих обновлений от Telegram
type Dispatcher struct {
	service *service.Service
	limiter *middleware.ChatRateLimiter
	logger  *logger.Logger

	updateTimeout time.Duration

	startHandler    *handlers.StartHandler
	callbackHandler *handlers.CallbackHandler
	contactHandler  *handlers.ContactHandler
	formHandler     *handlers.FormHandler
	defaultHandler  *handlers.DefaultHandler
}

// NewDispatcher создает новый диспетчер обновлений. limiter может быть nil.
func NewDispatcher(svc *service.Service, limiter *middleware.ChatRateLimiter, log *logger.Logger) *Dispatcher {
	form := handlers.NewFormHandler(svc)
	return &Dispatcher{
		service:         svc,
		limiter:         limiter,
		logger:          log,
		updateTimeout:   defaultUpdateTimeout,
		startHandler:    handlers.NewStartHandler(svc),
		callbackHandler: handlers.NewCallbackHandler(svc),
		contactHandler:  handlers.NewContactHandler(svc, form),
		formHandler:     form,
		defaultHandler:  handlers.NewDefaultHandler(svc),
	}
}

// updateChatID возвращает чат обновления или 0 для неподдерживаемых типов
func updateChatID(update *models.Update) int64 {
	switch {
	case update.CallbackQuery != nil:
		return handlers.ChatID(update.CallbackQuery)
	case update.Message != nil:
		return update.Message.Chat.ID
	default:
		return 0
	}
}

// command извлекает команду из текста, отбрасывая аргументы и @имя_бота
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd)
}

// HandleUpdate обрабатывает входящее обновление от Telegram
func (d *Dispatcher) HandleUpdate(ctx context.Context, update *models.Update) {
	chatID := updateChatID(update)
	if err := validation.ValidateChatID(chatID); err != nil {
		d.logger.Debug("Received unsupported update type", logger.Int64("update_id", update.ID))
		return
	}

	if d.limiter != nil && !d.limiter.AllowChat(chatID) {
		return
	}

	// Обрабатываем callback query от inline кнопок
	if update.CallbackQuery != nil {
		d.logger.Debug("Received callback query",
			logger.Int64("chat_id", chatID),
			logger.String("data", update.CallbackQuery.Data))
		d.callbackHandler.Handle(ctx, update)
		return
	}

	msg := update.Message
	d.logger.Debug("Received message", logger.Int64("chat_id", chatID))

	if msg.Contact != nil {
		d.contactHandler.Handle(ctx, update)
		return
	}

	switch command(msg.Text) {
	case CommandStart:
		d.startHandler.HandleStart(ctx, update)
		return
	case CommandBook:
		d.startHandler.HandleBook(ctx, update)
		return
	case CommandCancel:
		d.startHandler.HandleCancel(ctx, update)
		return
	case "":
		if msg.Text != "" && d.service.Session(chatID).Step() != service.StepNone {
			d.formHandler.Handle(ctx, update)
			return
		}
	}

	// Все остальные сообщения
	d.defaultHandler.Handle(ctx, update)
}

// WebhookHandler принимает обновления Telegram по HTTP. Проверку
// секретного заголовка выполняет HTTP сервер.
func (d *Dispatcher) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var update models.Update
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&update); err != nil {
			d.logger.Warn("Failed to decode update", logger.Error(err))
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), d.updateTimeout)
		defer cancel()

		d.HandleUpdate(ctx, &update)

		// Отвечаем Telegram что запрос обработан
		w.WriteHeader(http.StatusOK)
	})
}
