package booking

import (
	"strings"

	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/validation"
	"github.com/region23/barbershop/pkg/errors"
)

// ReservationRequest тело POST /agendar
type ReservationRequest struct {
	Date          calendar.CalendarDate `json:"data"`
	Time          calendar.TimeSlot     `json:"horario"`
	CustomerName  string                `json:"nome"`
	CustomerPhone string                `json:"telefone"`
	Notes         string                `json:"observacoes,omitempty"`
}

// ReservationResult ответ POST /agendar
type ReservationResult struct {
	Success bool   `json:"sucesso"`
	Message string `json:"mensagem,omitempty"`
}

// Form данные клиента, введенные в окне записи
type Form struct {
	Name  string
	Phone string
	Notes string
}

// Сообщения для уведомлений пользователя
const (
	MessageNameRequired   = "Por favor, digite seu nome."
	MessageInvalidPhone   = "Por favor, digite um telefone válido."
	MessageConnection     = "Erro de conexão com o servidor."
	MessageLoadFailed     = "Erro ao carregar horários."
	MessageConfirmed      = "Agendamento Confirmado!"
	MessageRejected       = "Não foi possível agendar."
	MessageClosedDay      = "Não abrimos neste dia."
	MessageAlreadySending = "Aguarde, seu agendamento está sendo enviado."
)

// ValidateForm проверяет форму до обращения к серверу: имя не пустое,
// телефон в маске (XX) XXXX-XXXX или длиннее
func ValidateForm(form Form) error {
	if strings.TrimSpace(form.Name) == "" {
		return errors.ErrValidation.WithMessage(MessageNameRequired).WithContext(map[string]interface{}{
			"field": "nome",
		})
	}

	if err := validation.ValidateMaskedPhone(form.Phone); err != nil {
		return errors.ErrValidation.WithMessage(MessageInvalidPhone).WithError(err).WithContext(map[string]interface{}{
			"field": "telefone",
		})
	}

	return nil
}

// NewReservationRequest собирает запрос из выбранного слота и формы
func NewReservationRequest(slot SelectedSlot, form Form) *ReservationRequest {
	return &ReservationRequest{
		Date:          slot.Date,
		Time:          slot.Time,
		CustomerName:  strings.TrimSpace(form.Name),
		CustomerPhone: form.Phone,
		Notes:         strings.TrimSpace(form.Notes),
	}
}
