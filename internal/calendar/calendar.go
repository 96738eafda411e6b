// Package calendar содержит канонические даты и время слотов, а также
// границы окна записи, вычисляемые от локальных часов.
package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/region23/barbershop/pkg/errors"
)

const (
	// DateLayout каноническая форма даты YYYY-MM-DD
	DateLayout = "2006-01-02"
	// TimeLayout каноническая форма слота HH:MM (24 часа)
	TimeLayout = "15:04"
)

var (
	dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRegex = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// CalendarDate дата в канонической форме YYYY-MM-DD без часового пояса.
// Сравнивается только как строка.
type CalendarDate string

// TimeSlot время слота в канонической форме HH:MM.
// Слоты равны только при точном совпадении строк.
type TimeSlot string

// ParseDate строго разбирает дату YYYY-MM-DD
func ParseDate(s string) (CalendarDate, error) {
	if !dateRegex.MatchString(s) {
		return "", errors.ErrInvalidDate.WithContext(map[string]interface{}{
			"date":   s,
			"reason": "data deve estar no formato YYYY-MM-DD",
		})
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", errors.ErrInvalidDate.WithError(err).WithContext(map[string]interface{}{
			"date": s,
		})
	}
	return CalendarDate(s), nil
}

// ParseTimeSlot строго разбирает время HH:MM
func ParseTimeSlot(s string) (TimeSlot, error) {
	if !timeRegex.MatchString(s) {
		return "", errors.ErrInvalidTime.WithContext(map[string]interface{}{
			"time":   s,
			"reason": "horário deve estar no formato HH:MM",
		})
	}
	if _, err := time.Parse(TimeLayout, s); err != nil {
		return "", errors.ErrInvalidTime.WithError(err).WithContext(map[string]interface{}{
			"time": s,
		})
	}
	return TimeSlot(s), nil
}

// String реализует fmt.Stringer
func (d CalendarDate) String() string { return string(d) }

// Time возвращает полночь даты в указанной зоне
func (d CalendarDate) Time(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, string(d), loc)
}

// String реализует fmt.Stringer
func (t TimeSlot) String() string { return string(t) }

// Clock возвращает час и минуту слота
func (t TimeSlot) Clock() (hour, minute int, err error) {
	parts := strings.SplitN(string(t), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("slot %q: missing separator", string(t))
	}
	if hour, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("slot %q: hour: %w", string(t), err)
	}
	if minute, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("slot %q: minute: %w", string(t), err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("slot %q: out of range", string(t))
	}
	return hour, minute, nil
}

// At возвращает момент начала слота в дату d
func (t TimeSlot) At(d CalendarDate, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, string(d)+" "+string(t), loc)
}

// Clock источник текущего времени
type Clock interface {
	Now() time.Time
}

// SystemClock локальные системные часы
type SystemClock struct{}

// Now реализует Clock
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock часы, всегда возвращающие одно значение (для тестов)
type FixedClock time.Time

// Now реализует Clock
func (c FixedClock) Now() time.Time { return time.Time(c) }

// Canonicalize приводит момент времени к локальной календарной дате
func Canonicalize(t time.Time) CalendarDate {
	return CalendarDate(t.Format(DateLayout))
}

// Today возвращает текущую локальную дату
func Today(c Clock) CalendarDate {
	return Canonicalize(c.Now())
}

// AddMonthsClamped прибавляет календарные месяцы. Если в целевом месяце
// меньше дней, день месяца прижимается к последнему (31 янв + 1 = 29 фев).
func AddMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := time.Date(target.Year(), target.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// BookingWindowEnd возвращает today() + 1 календарный месяц
func BookingWindowEnd(c Clock) CalendarDate {
	return WindowEnd(c, 1)
}

// WindowEnd возвращает today() + months календарных месяцев
func WindowEnd(c Clock, months int) CalendarDate {
	return Canonicalize(AddMonthsClamped(c.Now(), months))
}

// DateBounds границы выбора даты (включительно)
type DateBounds struct {
	Min CalendarDate `json:"min"`
	Max CalendarDate `json:"max"`
}

// Bounds возвращает границы окна записи на один месяц
func Bounds(c Clock) DateBounds {
	return DateBounds{Min: Today(c), Max: BookingWindowEnd(c)}
}

// Contains проверяет, что дата внутри окна. Канонические даты
// сравниваются лексикографически.
func (b DateBounds) Contains(d CalendarDate) bool {
	return d >= b.Min && d <= b.Max
}

// Dates перечисляет все даты окна по порядку
func (b DateBounds) Dates() []CalendarDate {
	start, err := b.Min.Time(time.UTC)
	if err != nil {
		return nil
	}
	var dates []CalendarDate
	for d := start; ; d = d.AddDate(0, 0, 1) {
		cd := Canonicalize(d)
		if cd > b.Max {
			break
		}
		dates = append(dates, cd)
	}
	return dates
}

// FormatDisplay переставляет дату в порядок день/месяц/год
func FormatDisplay(d CalendarDate) string {
	parts := strings.Split(string(d), "-")
	if len(parts) != 3 {
		return string(d)
	}
	return parts[2] + "/" + parts[1] + "/" + parts[0]
}

// FormatShort возвращает день/месяц для кнопок выбора даты
func FormatShort(d CalendarDate) string {
	parts := strings.Split(string(d), "-")
	if len(parts) != 3 {
		return string(d)
	}
	return parts[2] + "/" + parts[1]
}

// Recap человекочитаемое резюме выбранного слота
func Recap(d CalendarDate, t TimeSlot) string {
	return fmt.Sprintf("Agendando para: %s às %s", FormatDisplay(d), t)
}

// DatesInWindow перечисляет даты от сегодня до конца окна записи
func DatesInWindow(c Clock) []CalendarDate {
	return Bounds(c).Dates()
}
