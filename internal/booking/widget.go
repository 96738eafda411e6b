package booking

import (
	"context"
	"sync"
	"time"

	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/pkg/errors"
	"github.com/region23/barbershop/pkg/logger"
	"github.com/region23/barbershop/pkg/metrics"
)

// Widget связывает выбор даты, классификацию слотов, окно записи и
// отправку брони. Один экземпляр обслуживает одну UI-сессию; рендеринг
// выполняет адаптер, подписанный через On.
type Widget struct {
	fetcher      AvailabilityFetcher
	sender       ReservationSender
	clock        calendar.Clock
	logger       *logger.Logger
	windowMonths int

	mu         sync.Mutex
	active     calendar.CalendarDate
	evaluation *Evaluation
	selection  Selection

	hmu      sync.RWMutex
	handlers map[EventType][]Handler
}

// Option настраивает Widget
type Option func(*Widget)

// WithWindowMonths задает длину окна записи в месяцах
func WithWindowMonths(months int) Option {
	return func(w *Widget) {
		if months > 0 {
			w.windowMonths = months
		}
	}
}

// NewWidget создает виджет записи
func NewWidget(fetcher AvailabilityFetcher, sender ReservationSender, clock calendar.Clock, log *logger.Logger, opts ...Option) *Widget {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}

	w := &Widget{
		fetcher:      fetcher,
		sender:       sender,
		clock:        clock,
		logger:       log,
		windowMonths: 1,
		handlers:     make(map[EventType][]Handler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// On подписывает обработчик на событие
func (w *Widget) On(eventType EventType, handler Handler) {
	w.hmu.Lock()
	defer w.hmu.Unlock()
	w.handlers[eventType] = append(w.handlers[eventType], handler)
}

func (w *Widget) emit(event Event) {
	w.hmu.RLock()
	handlers := append([]Handler(nil), w.handlers[event.Type]...)
	w.hmu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

func (w *Widget) notify(severity Severity, message string) {
	w.emit(Event{Type: EventNotification, Severity: severity, Message: message})
}

// Bounds возвращает границы выбора даты
func (w *Widget) Bounds() calendar.DateBounds {
	return calendar.DateBounds{
		Min: calendar.Today(w.clock),
		Max: calendar.WindowEnd(w.clock, w.windowMonths),
	}
}

// ActiveDate возвращает активную дату
func (w *Widget) ActiveDate() calendar.CalendarDate {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Evaluation возвращает последнюю классификацию активной даты
func (w *Widget) Evaluation() (*Evaluation, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.evaluation == nil {
		return nil, false
	}
	eval := *w.evaluation
	return &eval, true
}

// Selected возвращает выбранный слот, если окно открыто
func (w *Widget) Selected() (SelectedSlot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selection.Slot()
}

// SelectionState возвращает состояние окна записи
func (w *Widget) SelectionState() SelectionState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selection.State()
}

// Form возвращает сохраненный ввод окна
func (w *Widget) Form() Form {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selection.Form()
}

// UpdateForm сохраняет частичный ввод без отправки
func (w *Widget) UpdateForm(form Form) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selection.SetForm(form)
}

// ChangeDate делает дату активной и загружает ее доступность.
// Ответ, пришедший после смены активной даты, отбрасывается с ErrStaleResponse.
func (w *Widget) ChangeDate(ctx context.Context, date calendar.CalendarDate) (*Evaluation, error) {
	bounds := w.Bounds()
	if !bounds.Contains(date) {
		return nil, errors.ErrDateOutOfWindow.WithContext(map[string]interface{}{
			"date": string(date),
			"min":  string(bounds.Min),
			"max":  string(bounds.Max),
		})
	}

	w.mu.Lock()
	w.active = date
	w.evaluation = nil
	w.mu.Unlock()

	return w.load(ctx, date)
}

// Refresh повторно загружает активную дату
func (w *Widget) Refresh(ctx context.Context) (*Evaluation, error) {
	date := w.ActiveDate()
	if date == "" {
		return nil, errors.ErrNoActiveDate
	}
	return w.load(ctx, date)
}

func (w *Widget) load(ctx context.Context, date calendar.CalendarDate) (*Evaluation, error) {
	w.emit(Event{Type: EventLoading, Date: date})
	w.logger.Debug("Fetching availability", logger.String("date", string(date)))

	avail, err := w.fetcher.FetchAvailability(ctx, date)
	if err == nil && avail == nil {
		err = errors.ErrNetwork.WithContext("empty availability response")
	}

	respDate := date
	if err == nil && avail.Date != "" {
		respDate = avail.Date
	}

	w.mu.Lock()
	if w.active != respDate {
		active := w.active
		w.mu.Unlock()
		metrics.RecordAvailabilityFetch("stale")
		w.logger.Debug("Discarding stale availability response",
			logger.String("response_date", string(respDate)),
			logger.String("active_date", string(active)))
		return nil, errors.ErrStaleResponse.WithContext(map[string]interface{}{
			"response_date": string(respDate),
			"active_date":   string(active),
		})
	}

	if err != nil {
		w.evaluation = nil
		w.mu.Unlock()
		metrics.RecordAvailabilityFetch("error")
		w.logger.Warn("Failed to fetch availability", logger.String("date", string(date)), logger.Error(err))
		w.emit(Event{Type: EventFetchFailed, Date: date, Message: MessageLoadFailed, Severity: SeverityError, Err: err})
		return nil, err
	}

	eval := Evaluate(date, avail.Slots, avail.Occupied, w.clock.Now())
	w.evaluation = &eval
	w.mu.Unlock()

	if eval.Closed {
		metrics.RecordAvailabilityFetch("closed")
		w.emit(Event{Type: EventClosedDay, Date: date, Evaluation: &eval, Message: MessageClosedDay, Severity: SeverityInfo})
		return &eval, nil
	}

	metrics.RecordAvailabilityFetch("ok")
	for _, d := range eval.Decisions {
		metrics.RecordSlotDecision(string(d.Status), string(d.Reason))
	}
	w.emit(Event{Type: EventSlots, Date: date, Evaluation: &eval})
	return &eval, nil
}

// Select открывает окно записи для свободного слота активной даты.
// Открытое окно перезаписывается.
func (w *Widget) Select(date calendar.CalendarDate, t calendar.TimeSlot) error {
	w.mu.Lock()
	if date != w.active || w.evaluation == nil {
		w.mu.Unlock()
		return errors.ErrSlotNotSelectable.WithContext(map[string]interface{}{
			"date":   string(date),
			"time":   string(t),
			"reason": "date is not active",
		})
	}

	decision, ok := w.evaluation.Decision(t)
	if !ok || !decision.Free() {
		w.mu.Unlock()
		return errors.ErrSlotNotSelectable.WithContext(map[string]interface{}{
			"date":   string(date),
			"time":   string(t),
			"reason": string(decision.Reason),
		})
	}

	w.selection.Open(date, t)
	recap := w.selection.Recap()
	w.mu.Unlock()

	w.emit(Event{Type: EventSelectionOpened, Date: date, Time: t, Recap: recap})
	return nil
}

// Cancel закрывает окно записи. Повторный вызов безопасен.
func (w *Widget) Cancel() {
	w.mu.Lock()
	wasOpen := w.selection.State() == StateSelecting
	w.selection.Close()
	w.mu.Unlock()

	if wasOpen {
		w.emit(Event{Type: EventSelectionClosed})
	}
}

// Submit проверяет форму и отправляет бронь выбранного слота.
//
// Невалидная форма возвращает ErrValidation без обращения к серверу.
// Пока отправка сессии не завершилась, повторный вызов возвращает
// ErrSubmissionInFlight. При отказе сервера возвращаются и результат,
// и ErrBusinessRejection с сообщением сервера; окно остается открытым.
func (w *Widget) Submit(ctx context.Context, form Form) (*ReservationResult, error) {
	w.mu.Lock()
	slot, open := w.selection.Slot()
	if !open {
		w.mu.Unlock()
		return nil, errors.ErrNoSelection
	}
	if w.selection.InFlight() {
		w.mu.Unlock()
		metrics.RecordReservation("in_flight")
		w.notify(SeverityInfo, MessageAlreadySending)
		return nil, errors.ErrSubmissionInFlight
	}

	w.selection.SetForm(form)
	if err := ValidateForm(form); err != nil {
		w.mu.Unlock()
		metrics.RecordReservation("validation_error")
		if appErr, ok := errors.GetAppError(err); ok {
			w.notify(SeverityError, appErr.Message)
		}
		return nil, err
	}

	session, _ := w.selection.beginSubmit()
	req := NewReservationRequest(slot, form)
	w.mu.Unlock()

	w.logger.Info("Submitting reservation",
		logger.String("date", string(req.Date)),
		logger.String("time", string(req.Time)))

	start := time.Now()
	result, err := w.sender.SendReservation(ctx, req)
	metrics.ReservationDuration.Observe(time.Since(start).Seconds())
	if err == nil && result == nil {
		err = errors.ErrNetwork.WithContext("empty reservation response")
	}

	w.mu.Lock()
	current := w.selection.endSubmit(session)

	if err != nil {
		w.mu.Unlock()
		metrics.RecordReservation("network_error")
		w.logger.Warn("Reservation transport failed", logger.Error(err))
		w.notify(SeverityError, MessageConnection)
		if !errors.Is(err, errors.ErrNetwork) {
			err = errors.ErrNetwork.WithError(err)
		}
		return nil, err
	}

	if !result.Success {
		w.mu.Unlock()
		metrics.RecordReservation("rejected")
		message := result.Message
		if message == "" {
			message = MessageRejected
		}
		w.logger.Info("Reservation rejected", logger.String("message", message))
		w.notify(SeverityError, message)
		return result, errors.ErrBusinessRejection.WithMessage(message)
	}

	if current {
		w.selection.Close()
	}
	w.mu.Unlock()

	metrics.RecordReservation("success")
	w.logger.Info("Reservation confirmed",
		logger.String("date", string(req.Date)),
		logger.String("time", string(req.Time)))

	if current {
		w.emit(Event{Type: EventSelectionClosed, Date: req.Date, Time: req.Time})
	}
	w.notify(SeveritySuccess, MessageConfirmed)

	if _, err := w.Refresh(ctx); err != nil && !errors.Is(err, errors.ErrStaleResponse) {
		w.logger.Warn("Failed to refresh availability after reservation", logger.Error(err))
	}

	return result, nil
}
