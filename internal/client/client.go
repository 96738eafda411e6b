// Package client реализует HTTP транспорт виджета записи:
// GET /api/horarios/{date} и POST /agendar.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/region23/barbershop/internal/booking"
	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/pkg/errors"
	"github.com/region23/barbershop/pkg/logger"
)

const (
	availabilityPath = "/api/horarios/"
	reservationPath  = "/agendar"

	// ограничение на размер тела ответа
	maxResponseBytes = 1 << 20
)

// Client HTTP клиент бэкенда записи
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

var _ booking.BookingClient = (*Client)(nil)

// Option настраивает Client
type Option func(*Client)

// WithHTTPClient задает собственный http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout задает таймаут запросов
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger задает логгер
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		c.logger = log
	}
}

// New создает клиент. baseURL без завершающего слеша, например http://localhost:8080
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// availabilityResponse ответ GET /api/horarios/{date}
type availabilityResponse struct {
	Slots    []string `json:"slots"`
	Occupied []string `json:"ocupados"`
}

// FetchAvailability загружает предложенные и занятые слоты даты.
// Ошибка транспорта, статус не 2xx или некорректный JSON дают ErrNetwork.
func (c *Client) FetchAvailability(ctx context.Context, date calendar.CalendarDate) (*booking.DailyAvailability, error) {
	endpoint := c.baseURL + availabilityPath + url.PathEscape(string(date))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.ErrNetwork.WithError(fmt.Errorf("client: create availability request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.ErrNetwork.WithError(fmt.Errorf("client: availability request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.ErrNetwork.WithContext(map[string]interface{}{
			"status": resp.StatusCode,
			"body":   strings.TrimSpace(string(body)),
			"date":   string(date),
		})
	}

	var payload availabilityResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, errors.ErrNetwork.WithError(fmt.Errorf("client: decode availability: %w", err))
	}

	slots, err := parseSlots(payload.Slots)
	if err != nil {
		return nil, errors.ErrNetwork.WithError(fmt.Errorf("client: slots: %w", err))
	}
	occupied, err := parseSlots(payload.Occupied)
	if err != nil {
		return nil, errors.ErrNetwork.WithError(fmt.Errorf("client: ocupados: %w", err))
	}

	c.logger.Debug("Availability fetched",
		logger.String("date", string(date)),
		logger.Int("slots", len(slots)),
		logger.Int("occupied", len(occupied)))

	return &booking.DailyAvailability{
		Date:     date,
		Slots:    slots,
		Occupied: occupied,
	}, nil
}

// SendReservation отправляет бронь. Тело ответа разбирается при любом
// статусе: сервер отвечает 400/409 с sucesso=false и сообщением.
func (c *Client) SendReservation(ctx context.Context, r *booking.ReservationRequest) (*booking.ReservationResult, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, errors.ErrNetwork.WithError(fmt.Errorf("client: encode reservation: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+reservationPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.ErrNetwork.WithError(fmt.Errorf("client: create reservation request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.ErrNetwork.WithError(fmt.Errorf("client: reservation request failed: %w", err))
	}
	defer resp.Body.Close()

	var result booking.ReservationResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&result); err != nil {
		return nil, errors.ErrNetwork.WithError(fmt.Errorf("client: decode reservation response (status %d): %w", resp.StatusCode, err))
	}

	c.logger.Debug("Reservation response",
		logger.Int("status", resp.StatusCode),
		logger.Bool("success", result.Success))

	return &result, nil
}

// parseSlots проверяет каноническую форму HH:MM. Отсутствующий список
// считается пустым.
func parseSlots(raw []string) ([]calendar.TimeSlot, error) {
	slots := make([]calendar.TimeSlot, 0, len(raw))
	for _, s := range raw {
		slot, err := calendar.ParseTimeSlot(s)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}
