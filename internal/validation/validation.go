package validation

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/pkg/errors"
)

// Минимальные длины полей формы
const (
	MinMaskedPhoneLength = 14
	MinPhoneDigits       = 10
	MaxPhoneDigits       = 11
	MaxUserNameLength    = 100
)

var maskedPhoneRegex = regexp.MustCompile(`^\(\d{2}\) \d{4,5}-\d{4}$`)

// PhoneDigits оставляет в строке только цифры
func PhoneDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatPhone накладывает маску телефона на ввод пользователя.
// Лишние цифры после одиннадцатой отбрасываются, неполный ввод
// получает частичную маску.
func FormatPhone(raw string) string {
	digits := PhoneDigits(raw)
	if len(digits) > MaxPhoneDigits {
		digits = digits[:MaxPhoneDigits]
	}

	switch n := len(digits); {
	case n <= 2:
		return digits
	case n <= 6:
		return "(" + digits[:2] + ") " + digits[2:]
	case n == 10:
		return "(" + digits[:2] + ") " + digits[2:6] + "-" + digits[6:]
	default:
		return "(" + digits[:2] + ") " + digits[2:7] + "-" + digits[7:]
	}
}

// ValidateMaskedPhone проверяет телефон после маски: (XX) XXXX-XXXX или (XX) XXXXX-XXXX
func ValidateMaskedPhone(phone string) error {
	if phone == "" {
		return errors.ErrInvalidPhoneNumber.WithContext("telefone não pode ser vazio")
	}

	if utf8.RuneCountInString(phone) < MinMaskedPhoneLength || !maskedPhoneRegex.MatchString(phone) {
		return errors.ErrInvalidPhoneNumber.WithContext(map[string]interface{}{
			"phone":  phone,
			"reason": "formato esperado (XX) XXXXX-XXXX",
		})
	}

	return nil
}

// ValidatePhoneDigits проверяет, что в телефоне не меньше MinPhoneDigits цифр
func ValidatePhoneDigits(phone string) error {
	if len(PhoneDigits(phone)) < MinPhoneDigits {
		return errors.ErrInvalidPhoneNumber.WithContext(map[string]interface{}{
			"phone":  phone,
			"reason": "mínimo de 10 dígitos",
		})
	}
	return nil
}

// ValidateCustomerName проверяет имя клиента после обрезки пробелов
func ValidateCustomerName(name string, minLen int) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.ErrInvalidUserName.WithMessage("Nome é obrigatório.")
	}

	length := utf8.RuneCountInString(trimmed)
	if length < minLen {
		return errors.ErrInvalidUserName.WithContext(map[string]interface{}{
			"name":    trimmed,
			"min_len": minLen,
		})
	}

	if length > MaxUserNameLength {
		return errors.ErrInvalidUserName.WithMessage("Nome muito longo.").WithContext(map[string]interface{}{
			"max_len": MaxUserNameLength,
		})
	}

	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return errors.ErrInvalidUserName.WithMessage("Nome contém caracteres inválidos.")
		}
	}

	return nil
}

// ValidateDate валидирует дату в формате YYYY-MM-DD и запрещает прошлые даты
func ValidateDate(dateStr string, clock calendar.Clock) (calendar.CalendarDate, error) {
	if dateStr == "" {
		return "", errors.ErrInvalidDate.WithContext("data não pode ser vazia")
	}

	date, err := calendar.ParseDate(dateStr)
	if err != nil {
		return "", err
	}

	if date < calendar.Today(clock) {
		return "", errors.ErrPastDate.WithContext(map[string]interface{}{
			"date": dateStr,
		})
	}

	return date, nil
}

// ValidateTime валидирует время в формате HH:MM
func ValidateTime(timeStr string) (calendar.TimeSlot, error) {
	if timeStr == "" {
		return "", errors.ErrInvalidTime.WithContext("horário não pode ser vazio")
	}
	return calendar.ParseTimeSlot(timeStr)
}

// ValidateSlotNotElapsed на сегодняшнюю дату требует, чтобы слот был
// строго позже текущей минуты
func ValidateSlotNotElapsed(date calendar.CalendarDate, slot calendar.TimeSlot, now time.Time) error {
	if date != calendar.Canonicalize(now) {
		return nil
	}

	hour, minute, err := slot.Clock()
	if err != nil {
		return errors.ErrInvalidTime.WithError(err)
	}

	if hour*60+minute <= now.Hour()*60+now.Minute() {
		return errors.ErrSlotElapsed.WithContext(map[string]interface{}{
			"date": string(date),
			"time": string(slot),
		})
	}
	return nil
}

// ValidateChatID валидирует Telegram Chat ID
func ValidateChatID(chatID int64) error {
	if chatID == 0 {
		return errors.New("INVALID_CHAT_ID", "Chat ID não pode ser zero")
	}
	return nil
}
