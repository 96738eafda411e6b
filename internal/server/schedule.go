package server

import (
	"strings"
	"time"

	"github.com/region23/barbershop/internal/booking"
	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/config"
	"github.com/region23/barbershop/internal/storage/models"
	"github.com/region23/barbershop/internal/validation"
	"github.com/region23/barbershop/pkg/errors"
)

// MinNameLength минимальная длина имени при записи на сервере
const MinNameLength = 3

// Schedule определяет, какие слоты предлагаются в каждую дату
type Schedule struct {
	slots        []calendar.TimeSlot
	offered      map[calendar.TimeSlot]bool
	closed       map[time.Weekday]bool
	windowMonths int
	clock        calendar.Clock
}

// NewSchedule создает расписание из конфигурации
func NewSchedule(cfg config.ScheduleConfig, clock calendar.Clock) (*Schedule, error) {
	closed, err := cfg.ClosedDays()
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = calendar.SystemClock{}
	}

	slots := cfg.OfferedSlots()
	offered := make(map[calendar.TimeSlot]bool, len(slots))
	for _, s := range slots {
		offered[s] = true
	}

	windowMonths := cfg.BookingWindowMonths
	if windowMonths <= 0 {
		windowMonths = 1
	}

	return &Schedule{
		slots:        slots,
		offered:      offered,
		closed:       closed,
		windowMonths: windowMonths,
		clock:        clock,
	}, nil
}

// OfferedSlots возвращает слоты даты; в выходной день список пуст
func (s *Schedule) OfferedSlots(date calendar.CalendarDate) []calendar.TimeSlot {
	day, err := date.Time(time.Local)
	if err != nil || s.closed[day.Weekday()] {
		return []calendar.TimeSlot{}
	}
	return append([]calendar.TimeSlot(nil), s.slots...)
}

// Offers проверяет, предлагается ли слот в эту дату
func (s *Schedule) Offers(date calendar.CalendarDate, t calendar.TimeSlot) bool {
	day, err := date.Time(time.Local)
	if err != nil || s.closed[day.Weekday()] {
		return false
	}
	return s.offered[t]
}

// ValidateReservation проверяет запрос записи и собирает из него запись.
// Порядок проверок: полнота, имя, телефон, дата, время, расписание.
func (s *Schedule) ValidateReservation(req booking.ReservationRequest) (*models.Appointment, error) {
	if req.Date == "" || req.Time == "" || strings.TrimSpace(req.CustomerName) == "" {
		return nil, errors.ErrIncompleteRequest
	}

	name := strings.TrimSpace(req.CustomerName)
	if err := validation.ValidateCustomerName(name, MinNameLength); err != nil {
		return nil, err
	}
	if err := validation.ValidatePhoneDigits(req.CustomerPhone); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	date, err := validation.ValidateDate(string(req.Date), s.clock)
	if err != nil {
		return nil, err
	}
	slot, err := validation.ValidateTime(string(req.Time))
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateSlotNotElapsed(date, slot, now); err != nil {
		return nil, err
	}

	if date > calendar.WindowEnd(s.clock, s.windowMonths) {
		return nil, errors.ErrDateOutOfWindow.WithContext(map[string]interface{}{
			"date": string(date),
		})
	}
	if !s.Offers(date, slot) {
		return nil, errors.ErrSlotNotOffered.WithContext(map[string]interface{}{
			"date": string(date),
			"time": string(slot),
		})
	}

	return &models.Appointment{
		Date:          date,
		Time:          slot,
		CustomerName:  name,
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Notes:         strings.TrimSpace(req.Notes),
	}, nil
}
