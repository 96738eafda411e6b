package booking

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/pkg/errors"
	"github.com/region23/barbershop/pkg/logger"
)

// fakeFetcher отдает заранее заданную доступность; gate позволяет
// задержать ответ для конкретной даты
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[calendar.CalendarDate]*DailyAvailability
	errs      map[calendar.CalendarDate]error
	gates     map[calendar.CalendarDate]chan struct{}
	calls     []calendar.CalendarDate
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[calendar.CalendarDate]*DailyAvailability),
		errs:      make(map[calendar.CalendarDate]error),
		gates:     make(map[calendar.CalendarDate]chan struct{}),
	}
}

func (f *fakeFetcher) set(date calendar.CalendarDate, slots, occupied []calendar.TimeSlot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[date] = &DailyAvailability{Date: date, Slots: slots, Occupied: occupied}
}

func (f *fakeFetcher) FetchAvailability(ctx context.Context, date calendar.CalendarDate) (*DailyAvailability, error) {
	f.mu.Lock()
	f.calls = append(f.calls, date)
	gate := f.gates[date]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[date]; err != nil {
		return nil, err
	}
	resp, ok := f.responses[date]
	if !ok {
		return &DailyAvailability{Date: date}, nil
	}
	copied := *resp
	copied.Occupied = append([]calendar.TimeSlot(nil), resp.Occupied...)
	return &copied, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSender struct {
	mu       sync.Mutex
	result   *ReservationResult
	err      error
	requests []*ReservationRequest
	started  chan struct{}
	release  chan struct{}
	onSend   func(req *ReservationRequest)
}

func (s *fakeSender) SendReservation(ctx context.Context, req *ReservationRequest) (*ReservationResult, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	started, release, onSend := s.started, s.release, s.onSend
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if onSend != nil {
		onSend(req)
	}
	return s.result, s.err
}

func (s *fakeSender) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) attach(w *Widget) {
	for _, et := range []EventType{EventLoading, EventClosedDay, EventSlots, EventFetchFailed,
		EventSelectionOpened, EventSelectionClosed, EventNotification} {
		w.On(et, r.record)
	}
}

func (r *eventRecorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ofType(et EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == et {
			out = append(out, e)
		}
	}
	return out
}

var (
	validForm = Form{Name: "João Silva", Phone: "(82) 98712-6184", Notes: "degradê"}
	testNow   = time.Date(2024, 3, 5, 14, 30, 0, 0, time.Local)
)

func setupWidget(t *testing.T) (*Widget, *fakeFetcher, *fakeSender, *eventRecorder) {
	t.Helper()
	fetcher := newFakeFetcher()
	sender := &fakeSender{result: &ReservationResult{Success: true}}
	w := NewWidget(fetcher, sender, calendar.FixedClock(testNow), logger.Nop())
	rec := &eventRecorder{}
	rec.attach(w)
	return w, fetcher, sender, rec
}

func TestWidget_Bounds(t *testing.T) {
	w, _, _, _ := setupWidget(t)
	assert.Equal(t, calendar.DateBounds{Min: "2024-03-05", Max: "2024-04-05"}, w.Bounds())

	wide := NewWidget(newFakeFetcher(), &fakeSender{}, calendar.FixedClock(testNow), nil, WithWindowMonths(2))
	assert.Equal(t, calendar.CalendarDate("2024-05-05"), wide.Bounds().Max)
}

func TestWidget_ChangeDate_RendersSlots(t *testing.T) {
	w, fetcher, _, rec := setupWidget(t)
	fetcher.set("2024-03-10", []calendar.TimeSlot{"09:00", "10:00"}, []calendar.TimeSlot{"09:00"})

	eval, err := w.ChangeDate(context.Background(), "2024-03-10")
	require.NoError(t, err)

	assert.Equal(t, []SlotDecision{
		{Time: "09:00", Status: SlotBlocked, Reason: ReasonOccupied},
		{Time: "10:00", Status: SlotFree},
	}, eval.Decisions)
	assert.Equal(t, calendar.CalendarDate("2024-03-10"), w.ActiveDate())

	require.Len(t, rec.ofType(EventLoading), 1)
	slots := rec.ofType(EventSlots)
	require.Len(t, slots, 1)
	assert.Equal(t, eval.Decisions, slots[0].Evaluation.Decisions)
}

func TestWidget_ChangeDate_ClosedDay(t *testing.T) {
	w, fetcher, _, rec := setupWidget(t)
	fetcher.set("2024-03-10", nil, nil)

	eval, err := w.ChangeDate(context.Background(), "2024-03-10")
	require.NoError(t, err)

	assert.True(t, eval.Closed)
	assert.Empty(t, eval.Decisions)
	assert.Len(t, rec.ofType(EventClosedDay), 1)
	assert.Empty(t, rec.ofType(EventSlots))
}

func TestWidget_ChangeDate_OutOfWindow(t *testing.T) {
	w, fetcher, _, _ := setupWidget(t)

	for _, date := range []calendar.CalendarDate{"2024-03-04", "2024-04-06"} {
		_, err := w.ChangeDate(context.Background(), date)
		assert.True(t, errors.Is(err, errors.ErrDateOutOfWindow), date)
	}
	assert.Equal(t, 0, fetcher.callCount())
}

func TestWidget_ChangeDate_FetchFailureShowsError(t *testing.T) {
	w, fetcher, _, rec := setupWidget(t)
	fetcher.set("2024-03-10", []calendar.TimeSlot{"09:00"}, nil)
	_, err := w.ChangeDate(context.Background(), "2024-03-10")
	require.NoError(t, err)

	fetcher.errs["2024-03-10"] = errors.ErrNetwork.WithError(stderrors.New("connection refused"))
	_, err = w.Refresh(context.Background())

	assert.True(t, errors.Is(err, errors.ErrNetwork))
	_, ok := w.Evaluation()
	assert.False(t, ok, "previous data must not be kept after a failed fetch")
	failed := rec.ofType(EventFetchFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, MessageLoadFailed, failed[0].Message)
}

func TestWidget_EveryChangeFetchesFresh(t *testing.T) {
	w, _, _, _ := setupWidget(t)
	ctx := context.Background()

	_, _ = w.ChangeDate(ctx, "2024-03-10")
	_, _ = w.ChangeDate(ctx, "2024-03-10")
	_, _ = w.Refresh(ctx)

	assert.Equal(t, 3, w.fetcher.(*fakeFetcher).callCount())
}

func TestWidget_StaleResponseIsDiscarded(t *testing.T) {
	w, fetcher, _, rec := setupWidget(t)
	fetcher.set("2024-03-10", []calendar.TimeSlot{"09:00"}, nil)
	fetcher.set("2024-03-11", []calendar.TimeSlot{"15:00", "16:00"}, []calendar.TimeSlot{"15:00"})
	gate := make(chan struct{})
	fetcher.gates["2024-03-10"] = gate

	done := make(chan error, 1)
	go func() {
		_, err := w.ChangeDate(context.Background(), "2024-03-10")
		done <- err
	}()

	require.Eventually(t, func() bool { return fetcher.callCount() == 1 }, time.Second, time.Millisecond)

	evalB, err := w.ChangeDate(context.Background(), "2024-03-11")
	require.NoError(t, err)

	close(gate)
	staleErr := <-done
	assert.True(t, errors.Is(staleErr, errors.ErrStaleResponse))

	current, ok := w.Evaluation()
	require.True(t, ok)
	assert.Equal(t, calendar.CalendarDate("2024-03-11"), current.Date)
	assert.Equal(t, evalB.Decisions, current.Decisions)

	for _, e := range rec.ofType(EventSlots) {
		assert.Equal(t, calendar.CalendarDate("2024-03-11"), e.Date, "grid for the active date must not be overwritten")
	}
}

func TestWidget_StaleFailureIsDiscarded(t *testing.T) {
	w, fetcher, _, rec := setupWidget(t)
	fetcher.errs["2024-03-10"] = errors.ErrNetwork
	gate := make(chan struct{})
	fetcher.gates["2024-03-10"] = gate

	done := make(chan error, 1)
	go func() {
		_, err := w.ChangeDate(context.Background(), "2024-03-10")
		done <- err
	}()
	require.Eventually(t, func() bool { return fetcher.callCount() == 1 }, time.Second, time.Millisecond)

	_, err := w.ChangeDate(context.Background(), "2024-03-11")
	require.NoError(t, err)
	close(gate)

	assert.True(t, errors.Is(<-done, errors.ErrStaleResponse))
	assert.Empty(t, rec.ofType(EventFetchFailed))
}

func TestWidget_Select(t *testing.T) {
	w, fetcher, _, rec := setupWidget(t)
	fetcher.set("2024-03-05", []calendar.TimeSlot{"14:00", "15:00", "16:00"}, []calendar.TimeSlot{"16:00"})
	_, err := w.ChangeDate(context.Background(), "2024-03-05")
	require.NoError(t, err)

	// Прошедший и занятый слоты выбрать нельзя
	assert.True(t, errors.Is(w.Select("2024-03-05", "14:00"), errors.ErrSlotNotSelectable))
	assert.True(t, errors.Is(w.Select("2024-03-05", "16:00"), errors.ErrSlotNotSelectable))
	assert.True(t, errors.Is(w.Select("2024-03-05", "17:00"), errors.ErrSlotNotSelectable))
	assert.True(t, errors.Is(w.Select("2024-03-06", "15:00"), errors.ErrSlotNotSelectable))

	require.NoError(t, w.Select("2024-03-05", "15:00"))
	assert.Equal(t, StateSelecting, w.SelectionState())

	opened := rec.ofType(EventSelectionOpened)
	require.Len(t, opened, 1)
	assert.Equal(t, "Agendando para: 05/03/2024 às 15:00", opened[0].Recap)
}

func TestWidget_CancelIsIdempotent(t *testing.T) {
	w, fetcher, _, rec := setupWidget(t)
	fetcher.set("2024-03-10", []calendar.TimeSlot{"09:00"}, nil)
	_, err := w.ChangeDate(context.Background(), "2024-03-10")
	require.NoError(t, err)
	require.NoError(t, w.Select("2024-03-10", "09:00"))
	w.UpdateForm(Form{Name: "Ana"})

	w.Cancel()
	w.Cancel()

	assert.Equal(t, StateIdle, w.SelectionState())
	assert.Equal(t, Form{}, w.Form())
	assert.Len(t, rec.ofType(EventSelectionClosed), 1)
}

func selectSlot(t *testing.T, w *Widget, fetcher *fakeFetcher) {
	t.Helper()
	fetcher.set("2024-03-10", []calendar.TimeSlot{"09:00", "10:00"}, nil)
	_, err := w.ChangeDate(context.Background(), "2024-03-10")
	require.NoError(t, err)
	require.NoError(t, w.Select("2024-03-10", "10:00"))
}

func TestWidget_SubmitSuccess(t *testing.T) {
	w, fetcher, sender, rec := setupWidget(t)
	selectSlot(t, w, fetcher)
	sender.onSend = func(req *ReservationRequest) {
		fetcher.set(req.Date, []calendar.TimeSlot{"09:00", "10:00"}, []calendar.TimeSlot{req.Time})
	}
	callsBefore := fetcher.callCount()

	result, err := w.Submit(context.Background(), validForm)
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.Equal(t, 1, sender.requestCount())
	assert.Equal(t, &ReservationRequest{
		Date:          "2024-03-10",
		Time:          "10:00",
		CustomerName:  "João Silva",
		CustomerPhone: "(82) 98712-6184",
		Notes:         "degradê",
	}, sender.requests[0])

	assert.Equal(t, StateIdle, w.SelectionState())
	_, selected := w.Selected()
	assert.False(t, selected)

	assert.Equal(t, callsBefore+1, fetcher.callCount(), "a fresh fetch must follow a successful reservation")
	eval, ok := w.Evaluation()
	require.True(t, ok)
	assert.Equal(t, ReasonOccupied, decisionFor(t, *eval, "10:00").Reason)

	notes := rec.ofType(EventNotification)
	require.NotEmpty(t, notes)
	assert.Equal(t, SeveritySuccess, notes[len(notes)-1].Severity)
	assert.Equal(t, MessageConfirmed, notes[len(notes)-1].Message)
}

func TestWidget_SubmitValidationNeverContactsServer(t *testing.T) {
	w, fetcher, sender, rec := setupWidget(t)
	selectSlot(t, w, fetcher)

	form := Form{Name: "João", Phone: "(82) 9871"}
	_, err := w.Submit(context.Background(), form)

	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Equal(t, 0, sender.requestCount())
	assert.Equal(t, StateSelecting, w.SelectionState())
	assert.Equal(t, form, w.Form(), "input must be kept for correction")

	notes := rec.ofType(EventNotification)
	require.Len(t, notes, 1)
	assert.Equal(t, MessageInvalidPhone, notes[0].Message)
}

func TestWidget_SubmitBusinessRejectionKeepsModal(t *testing.T) {
	w, fetcher, sender, rec := setupWidget(t)
	selectSlot(t, w, fetcher)
	sender.result = &ReservationResult{Success: false, Message: "Horário indisponível."}
	callsBefore := fetcher.callCount()

	result, err := w.Submit(context.Background(), validForm)

	assert.True(t, errors.Is(err, errors.ErrBusinessRejection))
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, StateSelecting, w.SelectionState())
	assert.Equal(t, validForm, w.Form())
	assert.Equal(t, callsBefore, fetcher.callCount())

	notes := rec.ofType(EventNotification)
	require.Len(t, notes, 1)
	assert.Equal(t, "Horário indisponível.", notes[0].Message)
	assert.Equal(t, SeverityError, notes[0].Severity)
}

func TestWidget_SubmitTransportFailureKeepsModal(t *testing.T) {
	w, fetcher, sender, rec := setupWidget(t)
	selectSlot(t, w, fetcher)
	sender.result = nil
	sender.err = stderrors.New("dial tcp: connection refused")

	_, err := w.Submit(context.Background(), validForm)

	assert.True(t, errors.Is(err, errors.ErrNetwork))
	assert.Equal(t, StateSelecting, w.SelectionState())
	assert.Equal(t, 1, sender.requestCount(), "no automatic retry")

	notes := rec.ofType(EventNotification)
	require.Len(t, notes, 1)
	assert.Equal(t, MessageConnection, notes[0].Message)

	// Повторная отправка пользователем допускается
	sender.err = nil
	sender.result = &ReservationResult{Success: true}
	_, err = w.Submit(context.Background(), validForm)
	require.NoError(t, err)
	assert.Equal(t, 2, sender.requestCount())
}

func TestWidget_SubmitWithoutSelection(t *testing.T) {
	w, _, sender, _ := setupWidget(t)

	_, err := w.Submit(context.Background(), validForm)
	assert.True(t, errors.Is(err, errors.ErrNoSelection))
	assert.Equal(t, 0, sender.requestCount())
}

func TestWidget_SecondSubmitWhileInFlightIsRejected(t *testing.T) {
	w, fetcher, sender, _ := setupWidget(t)
	selectSlot(t, w, fetcher)
	sender.started = make(chan struct{}, 1)
	sender.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background(), validForm)
		done <- err
	}()
	<-sender.started

	_, err := w.Submit(context.Background(), validForm)
	assert.True(t, errors.Is(err, errors.ErrSubmissionInFlight))

	close(sender.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, sender.requestCount())
}

func TestWidget_HandlersMayCallBack(t *testing.T) {
	w, fetcher, _, _ := setupWidget(t)
	fetcher.set("2024-03-10", []calendar.TimeSlot{"09:00"}, nil)

	// Обработчик выбирает слот прямо из события отрисовки
	w.On(EventSlots, func(e Event) {
		_ = w.Select(e.Date, "09:00")
	})

	_, err := w.ChangeDate(context.Background(), "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, StateSelecting, w.SelectionState())
}
