package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/region23/barbershop/internal/storage/models"
	"github.com/region23/barbershop/internal/testutils"
)

func (ts *testServer) book(t *testing.T, date, slot, name string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/agendar", reservation(date, slot, name, "(82) 98712-6184"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

type adminList struct {
	Hoje    []models.Appointment `json:"hoje"`
	Futuros []models.Appointment `json:"futuros"`
	Fila    []models.QueueEntry  `json:"fila"`
}

func (ts *testServer) list(t *testing.T) adminList {
	t.Helper()
	rec := ts.do(t, http.MethodGet, "/admin/agendamentos", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body adminList
	decode(t, rec, &body)
	return body
}

func TestAdmin_ListSplitsTodayAndFuture(t *testing.T) {
	ts := newTestServer(t)
	ts.book(t, "2024-03-12", "09:00", "Amanhã")
	ts.book(t, "2024-03-11", "15:00", "Tarde")
	ts.book(t, "2024-03-11", "11:00", "Manhã")

	body := ts.list(t)
	require.Len(t, body.Hoje, 2)
	assert.Equal(t, "Manhã", body.Hoje[0].CustomerName)
	assert.Equal(t, "Tarde", body.Hoje[1].CustomerName)
	require.Len(t, body.Futuros, 1)
	assert.Equal(t, "Amanhã", body.Futuros[0].CustomerName)
	assert.NotNil(t, body.Fila)
	assert.Empty(t, body.Fila)
}

func TestAdmin_CheckInAndServe(t *testing.T) {
	ts := newTestServer(t)
	ts.book(t, "2024-03-11", "11:00", "Primeiro")
	ts.book(t, "2024-03-11", "12:00", "Segundo")

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/admin/checkin/2024-03-11-11:00", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/admin/checkin/2024-03-11-12:00", nil).Code)

	body := ts.list(t)
	assert.Empty(t, body.Hoje)
	require.Len(t, body.Fila, 2)
	assert.Equal(t, "Primeiro", body.Fila[0].CustomerName)

	// Пришедший клиент продолжает занимать слот
	occupied, err := ts.store.OccupiedTimes(testutils.TestContext(), "2024-03-11")
	require.NoError(t, err)
	assert.Len(t, occupied, 2)

	rec := ts.do(t, http.MethodPost, "/admin/atender", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var served struct {
		Sucesso bool              `json:"sucesso"`
		Cliente models.QueueEntry `json:"cliente"`
	}
	decode(t, rec, &served)
	assert.Equal(t, "Primeiro", served.Cliente.CustomerName)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/admin/atender", nil).Code)

	rec = ts.do(t, http.MethodPost, "/admin/atender", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_CheckInErrors(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/admin/checkin/bogus", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/admin/checkin/2024-03-11-11:00", nil).Code)
}

func TestAdmin_CancelFreesSlot(t *testing.T) {
	ts := newTestServer(t)
	ts.book(t, "2024-03-12", "14:00", "João")

	rec := ts.do(t, http.MethodPost, "/admin/cancelar/2024-03-12-14:00", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/admin/cancelar/2024-03-12-14:00", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.book(t, "2024-03-12", "14:00", "Maria")
}

func TestAdmin_Edit(t *testing.T) {
	ts := newTestServer(t)
	ts.book(t, "2024-03-12", "14:00", "João")
	ts.book(t, "2024-03-12", "15:00", "Maria")

	move := func(key, date, slot string) int {
		return ts.do(t, http.MethodPost, "/admin/editar/"+key, map[string]string{"data": date, "horario": slot}).Code
	}

	assert.Equal(t, http.StatusConflict, move("2024-03-12-14:00", "2024-03-12", "15:00"))
	assert.Equal(t, http.StatusBadRequest, move("2024-03-12-14:00", "2024-03-12", "13:00"))
	assert.Equal(t, http.StatusBadRequest, move("2024-03-12-14:00", "12/03/2024", "16:00"))
	assert.Equal(t, http.StatusNotFound, move("2024-03-12-10:00", "2024-03-13", "16:00"))
	rec := ts.do(t, http.MethodPost, "/admin/editar/2024-03-12-14:00", map[string]string{"data": "2024-03-13", "horario": "16:00"})
	require.Equal(t, http.StatusOK, rec.Code)
	var result adminResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "Agendamento movido para 13/03/2024 16:00", result.Message)

	moved, err := ts.store.GetAppointment(testutils.TestContext(), "2024-03-13", "16:00")
	require.NoError(t, err)
	assert.Equal(t, "João", moved.CustomerName)

	// Старый слот снова свободен
	ts.book(t, "2024-03-12", "14:00", "Ana")
}

type recordingReminders struct {
	mu        sync.Mutex
	scheduled map[string]*models.Reminder
	cancelled []string
}

func newRecordingReminders() *recordingReminders {
	return &recordingReminders{scheduled: make(map[string]*models.Reminder)}
}

func (r *recordingReminders) Schedule(ctx context.Context, reminder *models.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled[reminder.ID] = reminder
	return nil
}

func (r *recordingReminders) Cancel(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scheduled, id)
	r.cancelled = append(r.cancelled, id)
	return nil
}

func (r *recordingReminders) ReschedulePending(ctx context.Context) error { return nil }

func (r *recordingReminders) Stop() error { return nil }

func TestAdmin_CancelAndEditUpdateReminders(t *testing.T) {
	reminders := newRecordingReminders()
	ts := newTestServer(t, WithReminders(reminders))
	ctx := testutils.TestContext()

	ts.book(t, "2024-03-12", "14:00", "João")
	ts.book(t, "2024-03-12", "15:00", "Maria")
	forCancel := &models.Reminder{AppointmentKey: "2024-03-12-14:00", ChatID: 1, RemindAt: time.Date(2024, 3, 12, 13, 0, 0, 0, time.Local)}
	forMove := &models.Reminder{AppointmentKey: "2024-03-12-15:00", ChatID: 2, RemindAt: time.Date(2024, 3, 12, 14, 0, 0, 0, time.Local)}
	for _, r := range []*models.Reminder{forCancel, forMove} {
		require.NoError(t, ts.store.SaveReminder(ctx, r))
		require.NoError(t, reminders.Schedule(ctx, r))
	}

	rec := ts.do(t, http.MethodPost, "/admin/cancelar/2024-03-12-14:00", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{forCancel.ID}, reminders.cancelled)

	rec = ts.do(t, http.MethodPost, "/admin/editar/2024-03-12-15:00", map[string]string{"data": "2024-03-13", "horario": "16:00"})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, reminders.scheduled, 1)
	live := reminders.scheduled[forMove.ID]
	require.NotNil(t, live)
	assert.Equal(t, "2024-03-13-16:00", live.AppointmentKey)
	assert.True(t, live.RemindAt.Equal(time.Date(2024, 3, 13, 15, 0, 0, 0, time.Local)), live.RemindAt)

	pending, err := ts.store.GetPendingReminders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "2024-03-13-16:00", pending[0].AppointmentKey)
}
