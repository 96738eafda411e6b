package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgmodels "github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/region23/barbershop/internal/booking"
	"github.com/region23/barbershop/internal/bot/handlers"
	"github.com/region23/barbershop/internal/bot/keyboard"
	"github.com/region23/barbershop/internal/bot/service"
	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/middleware"
	"github.com/region23/barbershop/internal/storage/models"
	"github.com/region23/barbershop/internal/testutils"
)

const chatID int64 = 42

// fakeBackend имитирует API записи в памяти
type fakeBackend struct {
	mu       sync.Mutex
	slots    []calendar.TimeSlot
	occupied map[calendar.CalendarDate][]calendar.TimeSlot
	reject   string
	requests []*booking.ReservationRequest
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		slots:    []calendar.TimeSlot{"09:00", "10:00", "11:00"},
		occupied: map[calendar.CalendarDate][]calendar.TimeSlot{"2024-03-12": {"10:00"}},
	}
}

func (b *fakeBackend) FetchAvailability(ctx context.Context, date calendar.CalendarDate) (*booking.DailyAvailability, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if date == "2024-03-17" {
		return &booking.DailyAvailability{Date: date, Slots: []calendar.TimeSlot{}, Occupied: []calendar.TimeSlot{}}, nil
	}
	occupied := append([]calendar.TimeSlot{}, b.occupied[date]...)
	return &booking.DailyAvailability{Date: date, Slots: b.slots, Occupied: occupied}, nil
}

func (b *fakeBackend) SendReservation(ctx context.Context, req *booking.ReservationRequest) (*booking.ReservationResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	if b.reject != "" {
		return &booking.ReservationResult{Success: false, Message: b.reject}, nil
	}
	b.occupied[req.Date] = append(b.occupied[req.Date], req.Time)
	return &booking.ReservationResult{Success: true, Message: "Agendamento realizado!"}, nil
}

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []*models.Reminder
}

func (s *recordingScheduler) Schedule(ctx context.Context, r *models.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, r)
	return nil
}

func (s *recordingScheduler) Cancel(ctx context.Context, id string) error { return nil }

func (s *recordingScheduler) ReschedulePending(ctx context.Context) error { return nil }

func (s *recordingScheduler) Stop() error { return nil }

type harness struct {
	dispatcher *Dispatcher
	service    *service.Service
	messenger  *testutils.FakeMessenger
	backend    *fakeBackend
	scheduler  *recordingScheduler
}

func newHarness(t *testing.T, limiter *middleware.ChatRateLimiter) *harness {
	t.Helper()
	h := &harness{
		messenger: &testutils.FakeMessenger{},
		backend:   newFakeBackend(),
		scheduler: &recordingScheduler{},
	}
	log := testutils.SetupTestLogger()
	h.service = service.NewService(h.messenger, h.backend, testutils.TestConfig(), log,
		service.WithClock(testutils.ClockAt(2024, 3, 11, 10, 30)),
		service.WithReminders(testutils.SetupTestDB(t), h.scheduler))
	h.dispatcher = NewDispatcher(h.service, limiter, log)
	return h
}

func (h *harness) text(s string) {
	h.dispatcher.HandleUpdate(context.Background(), &tgmodels.Update{
		ID: 1,
		Message: &tgmodels.Message{
			ID:   1,
			Chat: tgmodels.Chat{ID: chatID},
			Text: s,
		},
	})
}

func (h *harness) callback(data string) {
	h.dispatcher.HandleUpdate(context.Background(), &tgmodels.Update{
		ID: 2,
		CallbackQuery: &tgmodels.CallbackQuery{
			ID:   "cb-" + data,
			From: tgmodels.User{ID: chatID},
			Message: tgmodels.MaybeInaccessibleMessage{
				Message: &tgmodels.Message{ID: 1, Chat: tgmodels.Chat{ID: chatID}},
			},
			Data: data,
		},
	})
}

func (h *harness) step() service.FormStep {
	return h.service.Session(chatID).Step()
}

func TestDispatcher_FullBookingFlow(t *testing.T) {
	h := newHarness(t, nil)

	h.text("/start")
	texts := h.messenger.Texts()
	require.Len(t, texts, 2)
	assert.Equal(t, service.MessageWelcome, texts[0])
	assert.Equal(t, service.MessageChooseDate, texts[1])

	dates, ok := h.messenger.Last().ReplyMarkup.(*tgmodels.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "DATE:2024-03-11", dates.InlineKeyboard[0][0].CallbackData)

	h.callback("DATE:2024-03-12")
	last := h.messenger.Last()
	assert.Equal(t, "Horários para 12/03/2024:", last.Text)
	slots, ok := last.ReplyMarkup.(*tgmodels.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "SLOT:2024-03-12-09:00", slots.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, keyboard.ActionNoop, slots.InlineKeyboard[0][1].CallbackData)

	h.callback("SLOT:2024-03-12-09:00")
	assert.Equal(t, service.StepName, h.step())
	assert.True(t, strings.HasPrefix(h.messenger.Last().Text, "Agendando para: 12/03/2024 às 09:00"))

	h.text("  João da Silva ")
	assert.Equal(t, service.StepPhone, h.step())
	assert.Equal(t, service.MessageAskPhone, h.messenger.Last().Text)

	h.text("11987654321")
	assert.Equal(t, service.StepNotes, h.step())

	h.text("-")
	assert.Equal(t, service.StepConfirm, h.step())
	assert.Equal(t, "Agendando para: 12/03/2024 às 09:00\nNome: João da Silva\nTelefone: (11) 98765-4321",
		h.messenger.Last().Text)

	h.messenger.Reset()
	h.callback(keyboard.ActionConfirm)

	require.Len(t, h.backend.requests, 1)
	req := h.backend.requests[0]
	assert.Equal(t, calendar.CalendarDate("2024-03-12"), req.Date)
	assert.Equal(t, calendar.TimeSlot("09:00"), req.Time)
	assert.Equal(t, "João da Silva", req.CustomerName)
	assert.Equal(t, "(11) 98765-4321", req.CustomerPhone)
	assert.Empty(t, req.Notes)

	assert.Equal(t, service.StepNone, h.step())
	texts = h.messenger.Texts()
	require.Len(t, texts, 2)
	assert.Equal(t, booking.MessageConfirmed, texts[0])
	assert.Equal(t, "Horários para 12/03/2024:", texts[1])

	// После обновления забронированный слот заблокирован
	refreshed := h.messenger.Last().ReplyMarkup.(*tgmodels.InlineKeyboardMarkup)
	assert.Equal(t, keyboard.ActionNoop, refreshed.InlineKeyboard[0][0].CallbackData)

	require.Len(t, h.scheduler.scheduled, 1)
	assert.Equal(t, "2024-03-12-09:00", h.scheduler.scheduled[0].AppointmentKey)
}

func TestDispatcher_RejectionKeepsConfirmStep(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.reject = "Horário indisponível."

	h.callback("DATE:2024-03-12")
	h.callback("SLOT:2024-03-12-11:00")
	h.text("Maria")
	h.text("(21) 3456-7890")
	h.text("Corte e barba")
	require.Equal(t, service.StepConfirm, h.step())

	h.callback(keyboard.ActionConfirm)

	assert.Equal(t, "Horário indisponível.", h.messenger.Last().Text)
	assert.Equal(t, service.StepConfirm, h.step())
	assert.Equal(t, "Corte e barba", h.backend.requests[0].Notes)
	assert.Empty(t, h.scheduler.scheduled)

	_, open := h.service.Session(chatID).Widget.Selected()
	assert.True(t, open)
}

func TestDispatcher_InvalidPhoneStaysOnStep(t *testing.T) {
	h := newHarness(t, nil)

	h.callback("DATE:2024-03-12")
	h.callback("SLOT:2024-03-12-09:00")
	h.text("Maria")
	h.text("1234")

	assert.Equal(t, booking.MessageInvalidPhone, h.messenger.Last().Text)
	assert.Equal(t, service.StepPhone, h.step())
}

func TestDispatcher_ContactShare(t *testing.T) {
	h := newHarness(t, nil)

	h.callback("DATE:2024-03-12")
	h.callback("SLOT:2024-03-12-09:00")
	h.text("Maria")

	h.dispatcher.HandleUpdate(context.Background(), &tgmodels.Update{
		ID: 3,
		Message: &tgmodels.Message{
			ID:      2,
			Chat:    tgmodels.Chat{ID: chatID},
			Contact: &tgmodels.Contact{PhoneNumber: "+5511987654321", FirstName: "Maria"},
		},
	})

	assert.Equal(t, service.StepNotes, h.step())
	assert.Equal(t, "(11) 98765-4321", h.service.Session(chatID).Widget.Form().Phone)
}

func TestDispatcher_ClosedDay(t *testing.T) {
	h := newHarness(t, nil)

	h.callback("DATE:2024-03-17")

	assert.Equal(t, booking.MessageClosedDay+"\n"+service.MessageChooseDate, h.messenger.Last().Text)
	assert.Equal(t, service.StepNone, h.step())
}

func TestDispatcher_BlockedAndUnknownCallbacks(t *testing.T) {
	h := newHarness(t, nil)

	h.callback(keyboard.ActionNoop)
	h.callback("SLOT:2024-03-12-09:00")
	h.callback("whatever")

	answers := h.messenger.Answers()
	require.Len(t, answers, 3)
	assert.Equal(t, handlers.AnswerSlotBlocked, answers[0].Text)
	// Дата еще не загружена, слот выбрать нельзя
	assert.Equal(t, handlers.AnswerExpired, answers[1].Text)
	assert.Equal(t, handlers.AnswerInvalidChoice, answers[2].Text)
	assert.Empty(t, h.messenger.Messages())
}

func TestDispatcher_OutOfWindowDate(t *testing.T) {
	h := newHarness(t, nil)

	h.callback("DATE:2024-05-01")
	assert.Equal(t, handlers.AnswerExpired, h.messenger.Last().Text)
}

func TestDispatcher_CancelCommand(t *testing.T) {
	h := newHarness(t, nil)

	h.text("/cancelar")
	assert.Equal(t, service.MessageNothingOpen, h.messenger.Last().Text)

	h.callback("DATE:2024-03-12")
	h.callback("SLOT:2024-03-12-09:00")
	h.text("/cancelar@barbearia_bot")

	assert.Equal(t, service.MessageCancelled, h.messenger.Last().Text)
	assert.Equal(t, service.StepNone, h.step())
	assert.Equal(t, booking.StateIdle, h.service.Session(chatID).Widget.SelectionState())
}

func TestDispatcher_CancelButton(t *testing.T) {
	h := newHarness(t, nil)

	h.callback("DATE:2024-03-12")
	h.callback("SLOT:2024-03-12-09:00")
	h.callback(keyboard.ActionCancel)

	assert.Equal(t, service.MessageCancelled, h.messenger.Last().Text)
	assert.Equal(t, service.StepNone, h.step())
}

func TestDispatcher_TextWithoutFormShowsHelp(t *testing.T) {
	h := newHarness(t, nil)

	h.text("oi")
	h.text("/desconhecido")

	assert.Equal(t, []string{service.MessageHelp, service.MessageHelp}, h.messenger.Texts())
}

func TestDispatcher_ChatRateLimit(t *testing.T) {
	limiter := middleware.NewChatRateLimiter(1, 100, testutils.SetupTestLogger())
	defer limiter.Close()
	h := newHarness(t, limiter)

	h.text("oi")
	h.text("oi")

	assert.Len(t, h.messenger.Texts(), 1)
}

func TestDispatcher_IgnoresUnsupportedUpdates(t *testing.T) {
	h := newHarness(t, nil)

	h.dispatcher.HandleUpdate(context.Background(), &tgmodels.Update{ID: 9})

	assert.Empty(t, h.messenger.Messages())
	assert.Equal(t, 0, h.service.SessionCount())
}

func TestCommand(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/start", CommandStart},
		{"/start@barbearia_bot", CommandStart},
		{"/Agendar amanhã", CommandBook},
		{"olá", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, command(tt.text), tt.text)
	}
}

func TestWebhookHandler(t *testing.T) {
	h := newHarness(t, nil)
	handler := h.dispatcher.WebhookHandler()

	body := `{"update_id":10,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"/start"}}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, h.messenger.Texts(), service.MessageWelcome)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
