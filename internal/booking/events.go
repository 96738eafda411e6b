package booking

import (
	"github.com/region23/barbershop/internal/calendar"
)

// EventType тип события виджета
type EventType string

const (
	EventLoading         EventType = "loading"
	EventClosedDay       EventType = "closed_day"
	EventSlots           EventType = "slots"
	EventFetchFailed     EventType = "fetch_failed"
	EventSelectionOpened EventType = "selection_opened"
	EventSelectionClosed EventType = "selection_closed"
	EventNotification    EventType = "notification"
)

// Severity важность уведомления
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Event данные события. Заполняются только поля, относящиеся к Type.
type Event struct {
	Type       EventType
	Date       calendar.CalendarDate
	Time       calendar.TimeSlot
	Evaluation *Evaluation
	Recap      string
	Message    string
	Severity   Severity
	Err        error
}

// Handler обработчик событий. Вызывается синхронно, без удержания
// внутренних блокировок виджета.
type Handler func(Event)
