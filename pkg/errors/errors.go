package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError представляет ошибку приложения с кодом и контекстом
type AppError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
	Context interface{} `json:"context,omitempty"`
}

// Error реализует интерфейс error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap позволяет использовать errors.Is и errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по коду, поэтому производные копии
// (WithError, WithContext) совпадают с предопределенными значениями
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithContext добавляет контекст к ошибке
func (e *AppError) WithContext(ctx interface{}) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Context: ctx,
	}
}

// WithError добавляет underlying ошибку
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
		Context: e.Context,
	}
}

// WithMessage заменяет сообщение, сохраняя код
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
		Context: e.Context,
	}
}

// Предопределенные ошибки
var (
	// Ошибки клиентского ядра
	ErrNetwork = &AppError{
		Code:    "NETWORK_ERROR",
		Message: "falha de comunicação com o servidor",
	}

	ErrValidation = &AppError{
		Code:    "VALIDATION_ERROR",
		Message: "dados do cliente inválidos",
	}

	ErrBusinessRejection = &AppError{
		Code:    "BUSINESS_REJECTION",
		Message: "agendamento recusado pelo servidor",
	}

	ErrSlotNotSelectable = &AppError{
		Code:    "SLOT_NOT_SELECTABLE",
		Message: "horário não está livre",
	}

	ErrNoSelection = &AppError{
		Code:    "NO_SELECTION",
		Message: "nenhum horário selecionado",
	}

	ErrSubmissionInFlight = &AppError{
		Code:    "SUBMISSION_IN_FLIGHT",
		Message: "agendamento já está sendo enviado",
	}

	ErrStaleResponse = &AppError{
		Code:    "STALE_RESPONSE",
		Message: "resposta para uma data que não está mais ativa",
	}

	ErrDateOutOfWindow = &AppError{
		Code:    "DATE_OUT_OF_WINDOW",
		Message: "data fora da janela de agendamento",
	}

	ErrNoActiveDate = &AppError{
		Code:    "NO_ACTIVE_DATE",
		Message: "nenhuma data selecionada",
	}

	// Ошибки записи
	ErrSlotTaken = &AppError{
		Code:    "SLOT_TAKEN",
		Message: "Horário indisponível.",
	}

	ErrSlotNotOffered = &AppError{
		Code:    "SLOT_NOT_OFFERED",
		Message: "Horário não oferecido nesta data.",
	}

	ErrSlotElapsed = &AppError{
		Code:    "SLOT_ELAPSED",
		Message: "Este horário já passou!",
	}

	ErrPastDate = &AppError{
		Code:    "PAST_DATE",
		Message: "Não é possível agendar no passado!",
	}

	ErrAppointmentNotFound = &AppError{
		Code:    "APPOINTMENT_NOT_FOUND",
		Message: "Agendamento não encontrado",
	}

	ErrQueueEmpty = &AppError{
		Code:    "QUEUE_EMPTY",
		Message: "fila de atendimento vazia",
	}

	ErrIncompleteRequest = &AppError{
		Code:    "INCOMPLETE_REQUEST",
		Message: "Dados incompletos!",
	}

	// Ошибки валидации
	ErrInvalidDate = &AppError{
		Code:    "INVALID_DATE",
		Message: "Formato de data inválido.",
	}

	ErrInvalidTime = &AppError{
		Code:    "INVALID_TIME",
		Message: "Formato de horário inválido.",
	}

	ErrInvalidPhoneNumber = &AppError{
		Code:    "INVALID_PHONE_NUMBER",
		Message: "Telefone inválido.",
	}

	ErrInvalidUserName = &AppError{
		Code:    "INVALID_USER_NAME",
		Message: "Nome muito curto.",
	}

	// Системные ошибки
	ErrDatabase = &AppError{
		Code:    "DATABASE_ERROR",
		Message: "erro de banco de dados",
	}

	ErrConfigurationInvalid = &AppError{
		Code:    "CONFIGURATION_INVALID",
		Message: "configuração inválida",
	}

	ErrTelegramAPI = &AppError{
		Code:    "TELEGRAM_API",
		Message: "erro da API do Telegram",
	}
)

// New создает новую ошибку приложения
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap оборачивает обычную ошибку в AppError
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// GetAppError извлекает AppError из цепочки ошибок
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf возвращает код ошибки или пустую строку
func CodeOf(err error) string {
	if appErr, ok := GetAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// Is проксирует стандартный errors.Is, чтобы не импортировать оба пакета
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
