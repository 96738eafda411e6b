package booking

import (
	"github.com/region23/barbershop/internal/calendar"
)

// SelectionState состояние окна записи
type SelectionState int

const (
	StateIdle SelectionState = iota
	StateSelecting
)

// String реализует fmt.Stringer
func (s SelectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	default:
		return "unknown"
	}
}

// SelectedSlot выбранная пользователем пара (дата, время)
type SelectedSlot struct {
	Date calendar.CalendarDate `json:"date"`
	Time calendar.TimeSlot     `json:"time"`
}

// Selection хранит единственный выбранный слот и форму.
// Каждое открытие начинает новую сессию окна, флаг отправки
// относится к конкретной сессии. Не потокобезопасна, синхронизацию
// обеспечивает Widget.
type Selection struct {
	state    SelectionState
	slot     SelectedSlot
	form     Form
	session  uint64
	inFlight bool
}

// State возвращает текущее состояние
func (s *Selection) State() SelectionState {
	return s.state
}

// Open выбирает слот, перезаписывая предыдущий выбор
func (s *Selection) Open(date calendar.CalendarDate, t calendar.TimeSlot) {
	s.session++
	s.state = StateSelecting
	s.slot = SelectedSlot{Date: date, Time: t}
	s.form = Form{}
	s.inFlight = false
}

// Close очищает выбор и форму. Повторный вызов ничего не меняет.
func (s *Selection) Close() {
	s.state = StateIdle
	s.slot = SelectedSlot{}
	s.form = Form{}
	s.inFlight = false
}

// Slot возвращает выбранный слот, если окно открыто
func (s *Selection) Slot() (SelectedSlot, bool) {
	if s.state != StateSelecting {
		return SelectedSlot{}, false
	}
	return s.slot, true
}

// Recap возвращает резюме выбора или пустую строку
func (s *Selection) Recap() string {
	if s.state != StateSelecting {
		return ""
	}
	return calendar.Recap(s.slot.Date, s.slot.Time)
}

// Form возвращает введенные данные
func (s *Selection) Form() Form {
	return s.form
}

// SetForm сохраняет ввод пользователя, пока окно открыто
func (s *Selection) SetForm(form Form) {
	if s.state == StateSelecting {
		s.form = form
	}
}

// InFlight сообщает, что отправка текущей сессии еще не завершилась
func (s *Selection) InFlight() bool {
	return s.inFlight
}

func (s *Selection) beginSubmit() (uint64, bool) {
	if s.state != StateSelecting || s.inFlight {
		return 0, false
	}
	s.inFlight = true
	return s.session, true
}

// endSubmit снимает флаг и сообщает, осталась ли сессия открытой
func (s *Selection) endSubmit(session uint64) bool {
	if s.session != session || s.state != StateSelecting {
		return false
	}
	s.inFlight = false
	return true
}
