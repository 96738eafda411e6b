package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/region23/barbershop/internal/booking"
	"github.com/region23/barbershop/internal/bot/keyboard"
	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/config"
	"github.com/region23/barbershop/internal/scheduler"
	"github.com/region23/barbershop/internal/storage"
	"github.com/region23/barbershop/internal/storage/models"
	"github.com/region23/barbershop/pkg/errors"
	"github.com/region23/barbershop/pkg/logger"
)

// Тексты диалога
const (
	MessageWelcome      = "Olá! Bem-vindo à barbearia. Use /agendar para marcar um horário."
	MessageChooseDate   = "Escolha uma data:"
	MessageAskName      = "Digite seu nome:"
	MessageAskPhone     = "Digite seu telefone com DDD ou envie seu contato:"
	MessageAskNotes     = "Alguma observação? Envie \"-\" para pular."
	MessageCancelled    = "Agendamento cancelado."
	MessageNothingOpen  = "Nenhum agendamento em andamento. Use /agendar."
	MessageHelp         = "Use /agendar para marcar um horário ou /cancelar para desistir."
	MessageNoFreeSlots  = "Não há horários livres em %s. Escolha outra data."
	MessageSlotsForDate = "Horários para %s:"
)

const defaultSendTimeout = 10 * time.Second

// Messenger подмножество Bot API, которым пользуется сервис.
// *bot.Bot реализует его напрямую.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// Service представляет основной сервис Telegram бота
type Service struct {
	messenger Messenger
	client    booking.BookingClient
	reminders storage.ReminderRepository
	scheduler scheduler.ReminderScheduler
	config    *config.Config
	clock     calendar.Clock
	logger    *logger.Logger

	sendTimeout time.Duration

	mu       sync.Mutex
	sessions map[int64]*Session

	done      chan struct{}
	closeOnce sync.Once
}

// Option настраивает Service
type Option func(*Service)

// WithClock подменяет источник текущего времени
func WithClock(c calendar.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithReminders включает напоминания о записи
func WithReminders(repo storage.ReminderRepository, sched scheduler.ReminderScheduler) Option {
	return func(s *Service) {
		s.reminders = repo
		s.scheduler = sched
	}
}

// NewService создает новый экземпляр сервиса бота
func NewService(messenger Messenger, client booking.BookingClient, cfg *config.Config, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		messenger:   messenger,
		client:      client,
		config:      cfg,
		clock:       calendar.SystemClock{},
		logger:      log,
		sendTimeout: defaultSendTimeout,
		sessions:    make(map[int64]*Session),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session возвращает сессию чата, создавая ее при первом обращении
func (s *Service) Session(chatID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if session, ok := s.sessions[chatID]; ok {
		session.lastSeen = now
		return session
	}

	session := &Session{ChatID: chatID, lastSeen: now}
	session.Widget = booking.NewWidget(s.client, s.client, s.clock, s.logger,
		booking.WithWindowMonths(s.config.Schedule.BookingWindowMonths))
	s.subscribe(session)
	s.sessions[chatID] = session

	s.logger.Debug("Chat session created", logger.Int64("chat_id", chatID))
	return session
}

// EvictIdle удаляет сессии без открытого окна записи и без шага формы,
// к которым не обращались с cutoff. Вернувшийся чат начинает с выбора
// даты. Возвращает число удаленных сессий.
func (s *Service) EvictIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted int
	for chatID, session := range s.sessions {
		if !session.lastSeen.Before(cutoff) {
			continue
		}
		if session.Step() != StepNone || session.Widget.SelectionState() != booking.StateIdle {
			continue
		}
		delete(s.sessions, chatID)
		evicted++
	}

	if evicted > 0 {
		s.logger.Debug("Evicted idle chat sessions",
			logger.Int("evicted_count", evicted),
			logger.Int("remaining_count", len(s.sessions)))
	}
	return evicted
}

// StartSessionCleanup каждые interval удаляет сессии, простаивающие
// дольше ttl. Останавливается через Close.
func (s *Service) StartSessionCleanup(interval, ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.EvictIdle(s.clock.Now().Add(-ttl))
			case <-s.done:
				return
			}
		}
	}()
}

// Close останавливает фоновую очистку сессий
func (s *Service) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Logger возвращает логгер сервиса
func (s *Service) Logger() *logger.Logger {
	return s.logger
}

// SessionCount возвращает число активных сессий
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// subscribe отображает события виджета в сообщения чата
func (s *Service) subscribe(session *Session) {
	chatID := session.ChatID
	w := session.Widget

	w.On(booking.EventSlots, func(ev booking.Event) {
		text := fmt.Sprintf(MessageSlotsForDate, calendar.FormatDisplay(ev.Date))
		if ev.Evaluation.FreeCount() == 0 {
			text = fmt.Sprintf(MessageNoFreeSlots, calendar.FormatDisplay(ev.Date))
		}
		s.render(chatID, text, keyboard.CreateSlotSelectionKeyboard(ev.Evaluation))
	})

	w.On(booking.EventClosedDay, func(ev booking.Event) {
		s.render(chatID, ev.Message+"\n"+MessageChooseDate,
			keyboard.CreateDateSelectionKeyboard(w.Bounds().Dates()))
	})

	w.On(booking.EventFetchFailed, func(ev booking.Event) {
		s.render(chatID, ev.Message, nil)
	})

	w.On(booking.EventSelectionOpened, func(ev booking.Event) {
		session.SetStep(StepName)
		s.render(chatID, ev.Recap+"\n\n"+MessageAskName, keyboard.CreateCancelKeyboard())
	})

	w.On(booking.EventSelectionClosed, func(ev booking.Event) {
		session.SetStep(StepNone)
	})

	w.On(booking.EventNotification, func(ev booking.Event) {
		s.render(chatID, ev.Message, nil)
	})
}

// render отправляет сообщение из обработчика события. Ошибка отправки
// только логируется.
func (s *Service) render(chatID int64, text string, markup tgmodels.ReplyMarkup) {
	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()

	if err := s.SendMessage(ctx, chatID, text, markup); err != nil {
		s.logger.Error("Failed to render widget event",
			logger.Int64("chat_id", chatID),
			logger.Error(err))
	}
}

// SendMessage отправляет сообщение с клавиатурой
func (s *Service) SendMessage(ctx context.Context, chatID int64, text string, markup tgmodels.ReplyMarkup) error {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}

	if _, err := s.messenger.SendMessage(ctx, params); err != nil {
		return errors.ErrTelegramAPI.WithError(err).WithContext(map[string]interface{}{
			"chat_id": chatID,
		})
	}
	return nil
}

// SendSimpleMessage отправляет простое текстовое сообщение
func (s *Service) SendSimpleMessage(ctx context.Context, chatID int64, text string) error {
	return s.SendMessage(ctx, chatID, text, nil)
}

// AnswerCallbackQuery отвечает на callback query
func (s *Service) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	_, err := s.messenger.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	})
	if err != nil {
		return errors.ErrTelegramAPI.WithError(err)
	}
	return nil
}

// ShowDates отправляет клавиатуру дат окна записи
func (s *Service) ShowDates(ctx context.Context, chatID int64) error {
	dates := s.Session(chatID).Widget.Bounds().Dates()
	return s.SendMessage(ctx, chatID, MessageChooseDate, keyboard.CreateDateSelectionKeyboard(dates))
}

// ScheduleReminder сохраняет и планирует напоминание за ReminderMins
// минут до начала слота. Напоминание в прошлом не планируется.
func (s *Service) ScheduleReminder(ctx context.Context, chatID int64, slot booking.SelectedSlot) error {
	mins := s.config.Telegram.ReminderMins
	if s.scheduler == nil || s.reminders == nil || mins <= 0 {
		return nil
	}

	startsAt, err := slot.Time.At(slot.Date, time.Local)
	if err != nil {
		return errors.Wrap(err, errors.ErrValidation.Code, "horário do lembrete inválido")
	}

	remindAt := startsAt.Add(-time.Duration(mins) * time.Minute)
	if !remindAt.After(s.clock.Now()) {
		s.logger.Debug("Reminder time already passed, skipping",
			logger.Int64("chat_id", chatID),
			logger.String("date", string(slot.Date)),
			logger.String("time", string(slot.Time)))
		return nil
	}

	reminder := &models.Reminder{
		AppointmentKey: models.AppointmentKey(slot.Date, slot.Time),
		ChatID:         chatID,
		RemindAt:       remindAt,
	}
	if err := s.reminders.SaveReminder(ctx, reminder); err != nil {
		return fmt.Errorf("failed to save reminder: %w", err)
	}
	if err := s.scheduler.Schedule(ctx, reminder); err != nil {
		return fmt.Errorf("failed to schedule reminder: %w", err)
	}

	s.logger.Info("Reminder scheduled",
		logger.Int64("chat_id", chatID),
		logger.String("reminder_id", reminder.ID),
		logger.String("remind_at", remindAt.Format(time.RFC3339)))
	return nil
}
