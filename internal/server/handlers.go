package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/region23/barbershop/internal/booking"
	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/pkg/errors"
	"github.com/region23/barbershop/pkg/logger"
	"github.com/region23/barbershop/pkg/metrics"
)

// Сообщения API
const (
	MessageReserved      = "Agendamento realizado!"
	MessageInternalError = "Erro interno. Tente novamente."
)

// availabilityResponse тело GET /api/horarios/{date}
type availabilityResponse struct {
	Slots    []calendar.TimeSlot `json:"slots"`
	Ocupados []calendar.TimeSlot `json:"ocupados"`
}

// handleAvailability возвращает предлагаемые и занятые слоты даты
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	date, err := calendar.ParseDate(mux.Vars(r)["date"])
	if err != nil {
		s.securityLogger.LogValidationError(r, "date", mux.Vars(r)["date"], err.Error())
		s.writeError(w, err)
		return
	}

	occupied, err := s.store.OccupiedTimes(r.Context(), date)
	if err != nil {
		s.logger.Error("Failed to load occupied times",
			logger.String("date", string(date)),
			logger.Error(err))
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, availabilityResponse{
		Slots:    s.schedule.OfferedSlots(date),
		Ocupados: occupied,
	})
}

// handleReserve создает запись POST /agendar
func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req booking.ReservationRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.securityLogger.LogValidationError(r, "body", nil, err.Error())
		metrics.RecordAppointmentRejected(errors.ErrIncompleteRequest.Code)
		s.writeError(w, errors.ErrIncompleteRequest.WithError(err))
		return
	}

	appointment, err := s.schedule.ValidateReservation(req)
	if err != nil {
		metrics.RecordAppointmentRejected(errors.CodeOf(err))
		s.logger.Info("Reservation rejected",
			logger.String("date", string(req.Date)),
			logger.String("time", string(req.Time)),
			logger.String("code", errors.CodeOf(err)))
		s.writeError(w, err)
		return
	}

	if err := s.store.CreateAppointment(r.Context(), appointment); err != nil {
		metrics.RecordAppointmentRejected(errors.CodeOf(err))
		if !errors.Is(err, errors.ErrSlotTaken) {
			s.logger.Error("Failed to create appointment", logger.Error(err))
		}
		s.writeError(w, err)
		return
	}

	metrics.AppointmentsCreated.Inc()
	s.logger.Info("Appointment created",
		logger.String("key", appointment.Key()),
		logger.String("customer", appointment.CustomerName))

	writeJSON(w, http.StatusCreated, booking.ReservationResult{
		Success: true,
		Message: MessageReserved,
	})
}

// statusFor сопоставляет коду ошибки HTTP статус
func statusFor(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrSlotTaken.Code:
		return http.StatusConflict
	case errors.ErrAppointmentNotFound.Code, errors.ErrQueueEmpty.Code:
		return http.StatusNotFound
	case errors.ErrIncompleteRequest.Code,
		errors.ErrInvalidDate.Code,
		errors.ErrInvalidTime.Code,
		errors.ErrInvalidUserName.Code,
		errors.ErrInvalidPhoneNumber.Code,
		errors.ErrPastDate.Code,
		errors.ErrSlotElapsed.Code,
		errors.ErrSlotNotOffered.Code,
		errors.ErrDateOutOfWindow.Code:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает {sucesso:false, mensagem}. Внутренние ошибки
// не раскрывают подробностей.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)

	message := MessageInternalError
	if appErr, ok := errors.GetAppError(err); ok && status != http.StatusInternalServerError {
		message = appErr.Message
	}
	if status == http.StatusInternalServerError {
		code := errors.CodeOf(err)
		if code == "" {
			code = "unknown"
		}
		metrics.RecordError("server", code)
	}

	writeJSON(w, status, booking.ReservationResult{Success: false, Message: message})
}

// writeJSON кодирует ответ в JSON
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
