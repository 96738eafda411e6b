package keyboard

import (
	"strings"
	"time"

	tgmodels "github.com/go-telegram/bot/models"

	"github.com/region23/barbershop/internal/booking"
	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/storage/models"
)

// Префиксы и значения callback data
const (
	PrefixDate = "DATE:"
	PrefixSlot = "SLOT:"

	ActionConfirm = "CONFIRM"
	ActionCancel  = "CANCEL"
	ActionDates   = "DATES"
	ActionNoop    = "NOOP"
)

const (
	datesPerRow = 4
	slotsPerRow = 3
)

var weekdayNames = map[time.Weekday]string{
	time.Sunday:    "Dom",
	time.Monday:    "Seg",
	time.Tuesday:   "Ter",
	time.Wednesday: "Qua",
	time.Thursday:  "Qui",
	time.Friday:    "Sex",
	time.Saturday:  "Sáb",
}

// CreateContactKeyboard создает клавиатуру для отправки телефона контактом
func CreateContactKeyboard() *tgmodels.ReplyKeyboardMarkup {
	return &tgmodels.ReplyKeyboardMarkup{
		Keyboard: [][]tgmodels.KeyboardButton{
			{
				{
					Text:           "Enviar meu telefone",
					RequestContact: true,
				},
			},
		},
		OneTimeKeyboard: true,
		ResizeKeyboard:  true,
	}
}

// CreateRemoveKeyboard создает объект для удаления клавиатуры
func CreateRemoveKeyboard() *tgmodels.ReplyKeyboardRemove {
	return &tgmodels.ReplyKeyboardRemove{
		RemoveKeyboard: true,
	}
}

// DateLabel подпись кнопки даты: день недели и день/месяц
func DateLabel(d calendar.CalendarDate) string {
	t, err := d.Time(time.Local)
	if err != nil {
		return string(d)
	}
	return weekdayNames[t.Weekday()] + " " + calendar.FormatShort(d)
}

// CreateDateSelectionKeyboard создает inline клавиатуру для выбора даты.
// Даты идут строками по datesPerRow кнопок.
func CreateDateSelectionKeyboard(dates []calendar.CalendarDate) *tgmodels.InlineKeyboardMarkup {
	var rows [][]tgmodels.InlineKeyboardButton
	var row []tgmodels.InlineKeyboardButton

	for _, d := range dates {
		row = append(row, tgmodels.InlineKeyboardButton{
			Text:         DateLabel(d),
			CallbackData: PrefixDate + string(d),
		})
		if len(row) == datesPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return &tgmodels.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// SlotLabel подпись кнопки слота. Заблокированные слоты помечаются
// причиной блокировки.
func SlotLabel(d booking.SlotDecision) string {
	switch d.Reason {
	case booking.ReasonOccupied:
		return "✖ " + string(d.Time)
	case booking.ReasonElapsed:
		return "⌛ " + string(d.Time)
	default:
		return string(d.Time)
	}
}

// CreateSlotSelectionKeyboard создает inline клавиатуру слотов дня.
// Свободный слот несет ключ записи, заблокированный ведет в NOOP.
func CreateSlotSelectionKeyboard(eval *booking.Evaluation) *tgmodels.InlineKeyboardMarkup {
	var rows [][]tgmodels.InlineKeyboardButton
	var row []tgmodels.InlineKeyboardButton

	for _, d := range eval.Decisions {
		data := ActionNoop
		if d.Free() {
			data = PrefixSlot + models.AppointmentKey(eval.Date, d.Time)
		}
		row = append(row, tgmodels.InlineKeyboardButton{
			Text:         SlotLabel(d),
			CallbackData: data,
		})
		if len(row) == slotsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, []tgmodels.InlineKeyboardButton{
		{Text: "« Outra data", CallbackData: ActionDates},
	})

	return &tgmodels.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// CreateConfirmKeyboard создает клавиатуру подтверждения записи
func CreateConfirmKeyboard() *tgmodels.InlineKeyboardMarkup {
	return &tgmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgmodels.InlineKeyboardButton{
			{
				{Text: "Confirmar", CallbackData: ActionConfirm},
				{Text: "Cancelar", CallbackData: ActionCancel},
			},
		},
	}
}

// CreateCancelKeyboard создает клавиатуру с единственной кнопкой отмены
func CreateCancelKeyboard() *tgmodels.InlineKeyboardMarkup {
	return &tgmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgmodels.InlineKeyboardButton{
			{
				{Text: "Cancelar", CallbackData: ActionCancel},
			},
		},
	}
}

// ParseDateCallback извлекает дату из "DATE:<YYYY-MM-DD>"
func ParseDateCallback(data string) (calendar.CalendarDate, bool) {
	raw, ok := strings.CutPrefix(data, PrefixDate)
	if !ok {
		return "", false
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return "", false
	}
	return d, true
}

// ParseSlotCallback извлекает дату и время из "SLOT:<ключ записи>"
func ParseSlotCallback(data string) (calendar.CalendarDate, calendar.TimeSlot, bool) {
	raw, ok := strings.CutPrefix(data, PrefixSlot)
	if !ok {
		return "", "", false
	}
	d, t, err := models.ParseKey(raw)
	if err != nil {
		return "", "", false
	}
	return d, t, true
}
