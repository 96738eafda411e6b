package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/storage/models"
	"github.com/region23/barbershop/pkg/errors"
	"github.com/region23/barbershop/pkg/logger"
	"github.com/region23/barbershop/pkg/metrics"
)

// adminListResponse тело GET /admin/agendamentos
type adminListResponse struct {
	Hoje    []*models.Appointment `json:"hoje"`
	Futuros []*models.Appointment `json:"futuros"`
	Fila    []*models.QueueEntry  `json:"fila"`
}

// adminResult ответ на действие администратора
type adminResult struct {
	Success     bool                `json:"sucesso"`
	Message     string              `json:"mensagem,omitempty"`
	Appointment *models.Appointment `json:"agendamento,omitempty"`
	Entry       *models.QueueEntry  `json:"cliente,omitempty"`
}

// moveRequest тело POST /admin/editar/{chave}
type moveRequest struct {
	Date calendar.CalendarDate `json:"data"`
	Time calendar.TimeSlot     `json:"horario"`
}

// handleAdminList возвращает ожидаемые записи на сегодня, остальные
// записи и очередь обслуживания
func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	appointments, err := s.store.ListAppointments(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	queue, err := s.store.ListQueue(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.SetQueueSize(len(queue))

	today := calendar.Today(s.clock)
	resp := adminListResponse{
		Hoje:    []*models.Appointment{},
		Futuros: []*models.Appointment{},
		Fila:    queue,
	}
	if resp.Fila == nil {
		resp.Fila = []*models.QueueEntry{}
	}
	for _, a := range appointments {
		if a.Date == today {
			resp.Hoje = append(resp.Hoje, a)
		} else {
			resp.Futuros = append(resp.Futuros, a)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// keyFromPath разбирает {chave} маршрута
func keyFromPath(r *http.Request) (calendar.CalendarDate, calendar.TimeSlot, error) {
	key := mux.Vars(r)["chave"]
	date, t, err := models.ParseKey(key)
	if err != nil {
		return "", "", errors.ErrInvalidDate.WithError(err).WithContext(map[string]interface{}{
			"key": key,
		})
	}
	return date, t, nil
}

// handleCheckIn переводит клиента из записи в очередь
func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	date, t, err := keyFromPath(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	entry, err := s.store.CheckIn(r.Context(), date, t)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.refreshQueueSize(r)

	s.logger.Info("Customer checked in",
		logger.String("key", entry.AppointmentKey),
		logger.Int64("position", entry.Position))
	writeJSON(w, http.StatusOK, adminResult{Success: true, Entry: entry})
}

// handleServeNext вызывает следующего клиента из очереди
func (s *Server) handleServeNext(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.DequeueNext(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.refreshQueueSize(r)

	s.logger.Info("Serving customer",
		logger.String("key", entry.AppointmentKey),
		logger.String("customer", entry.CustomerName))
	writeJSON(w, http.StatusOK, adminResult{Success: true, Entry: entry})
}

// handleCancel отменяет запись и освобождает слот
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	date, t, err := keyFromPath(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	key := models.AppointmentKey(date, t)
	pending := s.appointmentReminders(r, key)

	if err := s.store.CancelAppointment(r.Context(), date, t); err != nil {
		s.writeError(w, err)
		return
	}
	metrics.AppointmentsCancelled.Inc()

	for _, reminder := range pending {
		if err := s.reminders.Cancel(r.Context(), reminder.ID); err != nil {
			s.logger.Warn("Failed to cancel reminder",
				logger.String("reminder_id", reminder.ID),
				logger.Error(err))
		}
	}

	s.logger.Info("Appointment cancelled", logger.String("key", key))
	writeJSON(w, http.StatusOK, adminResult{Success: true})
}

// handleEdit переносит запись на другую дату или время
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	fromDate, fromTime, err := keyFromPath(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req moveRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(w, errors.ErrIncompleteRequest.WithError(err))
		return
	}
	toDate, err := calendar.ParseDate(string(req.Date))
	if err != nil {
		s.writeError(w, err)
		return
	}
	toTime, err := calendar.ParseTimeSlot(string(req.Time))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !s.schedule.Offers(toDate, toTime) {
		s.writeError(w, errors.ErrSlotNotOffered)
		return
	}

	moved, err := s.store.MoveAppointment(r.Context(), fromDate, fromTime, toDate, toTime)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Schedule с тем же ID заменяет таймер старого времени
	for _, reminder := range s.appointmentReminders(r, moved.Key()) {
		if err := s.reminders.Schedule(r.Context(), reminder); err != nil {
			s.logger.Warn("Failed to reschedule reminder",
				logger.String("reminder_id", reminder.ID),
				logger.Error(err))
		}
	}

	s.logger.Info("Appointment moved",
		logger.String("from", models.AppointmentKey(fromDate, fromTime)),
		logger.String("to", moved.Key()))
	writeJSON(w, http.StatusOK, adminResult{
		Success:     true,
		Message:     "Agendamento movido para " + moved.GetFormattedDateTime(),
		Appointment: moved,
	})
}

// appointmentReminders возвращает неотправленные напоминания записи или
// nil, если планировщик не подключен
func (s *Server) appointmentReminders(r *http.Request, key string) []*models.Reminder {
	if s.reminders == nil {
		return nil
	}
	pending, err := s.store.GetAppointmentReminders(r.Context(), key)
	if err != nil {
		s.logger.Warn("Failed to load appointment reminders",
			logger.String("key", key),
			logger.Error(err))
		return nil
	}
	return pending
}

func (s *Server) refreshQueueSize(r *http.Request) {
	queue, err := s.store.ListQueue(r.Context())
	if err != nil {
		s.logger.Warn("Failed to refresh queue size", logger.Error(err))
		return
	}
	metrics.SetQueueSize(len(queue))
}
