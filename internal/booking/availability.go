package booking

import (
	"time"

	"github.com/region23/barbershop/internal/calendar"
)

// DailyAvailability ответ сервера для одной даты.
// Пустой Slots означает, что в этот день заведение закрыто.
type DailyAvailability struct {
	Date     calendar.CalendarDate `json:"-"`
	Slots    []calendar.TimeSlot   `json:"slots"`
	Occupied []calendar.TimeSlot   `json:"ocupados"`
}

// Closed сообщает, что на дату не предложено ни одного слота
func (a *DailyAvailability) Closed() bool {
	return len(a.Slots) == 0
}

// SlotStatus статус слота после классификации
type SlotStatus string

const (
	SlotFree    SlotStatus = "free"
	SlotBlocked SlotStatus = "blocked"
)

// BlockReason причина блокировки слота
type BlockReason string

const (
	ReasonNone     BlockReason = ""
	ReasonOccupied BlockReason = "occupied"
	ReasonElapsed  BlockReason = "elapsed"
)

// SlotDecision классификация одного предложенного слота
type SlotDecision struct {
	Time   calendar.TimeSlot `json:"time"`
	Status SlotStatus        `json:"status"`
	Reason BlockReason       `json:"reason,omitempty"`
}

// Free сообщает, что слот можно выбрать
func (d SlotDecision) Free() bool {
	return d.Status == SlotFree
}

// Evaluation результат классификации дня. Для закрытого дня
// Decisions пуст, а Closed выставлен.
type Evaluation struct {
	Date      calendar.CalendarDate `json:"date"`
	Closed    bool                  `json:"closed"`
	Decisions []SlotDecision        `json:"decisions"`
}

// Decision ищет решение по точному совпадению строки слота
func (e *Evaluation) Decision(t calendar.TimeSlot) (SlotDecision, bool) {
	for _, d := range e.Decisions {
		if d.Time == t {
			return d, true
		}
	}
	return SlotDecision{}, false
}

// FreeCount возвращает число свободных слотов
func (e *Evaluation) FreeCount() int {
	n := 0
	for _, d := range e.Decisions {
		if d.Free() {
			n++
		}
	}
	return n
}

// Evaluate классифицирует слоты даты с учетом занятости и текущего времени.
//
// Занятый слот блокируется всегда. На сегодняшнюю дату слот считается
// прошедшим, если его (час, минута) <= (час, минута) now. Если применимы
// оба правила, причиной указывается occupied. Слот, время которого не
// разбирается, проверяется только на занятость.
func Evaluate(date calendar.CalendarDate, offered, occupied []calendar.TimeSlot, now time.Time) Evaluation {
	eval := Evaluation{Date: date}
	if len(offered) == 0 {
		eval.Closed = true
		return eval
	}

	taken := make(map[calendar.TimeSlot]struct{}, len(occupied))
	for _, t := range occupied {
		taken[t] = struct{}{}
	}

	isToday := date == calendar.Canonicalize(now)
	nowMinutes := now.Hour()*60 + now.Minute()

	eval.Decisions = make([]SlotDecision, 0, len(offered))
	for _, t := range offered {
		decision := SlotDecision{Time: t, Status: SlotFree}

		if _, ok := taken[t]; ok {
			decision.Status = SlotBlocked
			decision.Reason = ReasonOccupied
		} else if isToday {
			if h, m, err := t.Clock(); err == nil && h*60+m <= nowMinutes {
				decision.Status = SlotBlocked
				decision.Reason = ReasonElapsed
			}
		}

		eval.Decisions = append(eval.Decisions, decision)
	}

	return eval
}
