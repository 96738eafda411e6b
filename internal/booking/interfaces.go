package booking

import (
	"context"

	"github.com/region23/barbershop/internal/calendar"
)

// AvailabilityFetcher загружает доступность одной даты.
// Каждый вызов выполняет новый запрос, ответы не кешируются.
type AvailabilityFetcher interface {
	FetchAvailability(ctx context.Context, date calendar.CalendarDate) (*DailyAvailability, error)
}

// ReservationSender отправляет запрос на запись
type ReservationSender interface {
	SendReservation(ctx context.Context, req *ReservationRequest) (*ReservationResult, error)
}

// BookingClient объединяет обе операции транспорта
type BookingClient interface {
	AvailabilityFetcher
	ReservationSender
}
