package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/region23/barbershop/pkg/logger"
	"github.com/region23/barbershop/pkg/metrics"
)

func TestRateLimiter_PerKey(t *testing.T) {
	limiter := NewRateLimiter(5, time.Minute, logger.Nop())
	defer limiter.Close()

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow("10.0.0.1"), "request %d within limit", i)
	}
	assert.False(t, limiter.Allow("10.0.0.1"))

	// У другого ключа свой лимит
	assert.True(t, limiter.Allow("10.0.0.2"))
	assert.Equal(t, 2, limiter.Size())
}

func TestRateLimiter_CleanupRemovesIdle(t *testing.T) {
	limiter := NewRateLimiter(5, time.Minute, logger.Nop())
	defer limiter.Close()

	limiter.Allow("idle")
	limiter.cleanup(time.Now().Add(time.Second))

	assert.Equal(t, 0, limiter.Size())
}

func TestRateLimiter_CloseIsIdempotent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute, logger.Nop())
	limiter.Close()
	assert.NotPanics(t, limiter.Close)
}

func TestChatRateLimiter_ChatLimit(t *testing.T) {
	limiter := NewChatRateLimiter(1, 10, logger.Nop())
	defer limiter.Close()

	assert.True(t, limiter.AllowChat(12345))
	assert.False(t, limiter.AllowChat(12345), "second update in the same minute")
	assert.True(t, limiter.AllowChat(67890))
}

func TestChatRateLimiter_GlobalLimit(t *testing.T) {
	limiter := NewChatRateLimiter(10, 2, logger.Nop())
	defer limiter.Close()

	assert.True(t, limiter.AllowChat(1))
	assert.True(t, limiter.AllowChat(2))
	assert.False(t, limiter.AllowChat(3))
}

func TestHTTPRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute, logger.Nop())
	defer limiter.Close()

	handler := HTTPRateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/agendar", nil)
	req.RemoteAddr = "192.168.1.1:5000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Тело читается клиентом как ответ на бронирование
	var body struct {
		Sucesso  bool   `json:"sucesso"`
		Mensagem string `json:"mensagem"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Sucesso)
	assert.Equal(t, MessageTooManyRequests, body.Mensagem)
}

func TestGetRealIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"remote addr", nil, "192.168.1.1:12345", "192.168.1.1"},
		{"remote addr without port", nil, "192.168.1.1", "192.168.1.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.2"}, "10.0.0.1:80", "203.0.113.2"},
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "203.0.113.3", "X-Real-IP": "203.0.113.2"}, "10.0.0.1:80", "203.0.113.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetRealIP(req))
		})
	}
}

func TestPrometheusMiddleware_UsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(PrometheusMiddleware)
	router.HandleFunc("/api/horarios/{date}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/horarios/{date}", "418")
	before := testutil.ToFloat64(counter)

	for _, date := range []string{"2024-03-10", "2024-03-11"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/horarios/"+date, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestResponseWriter_KeepsFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	assert.Equal(t, http.StatusOK, rw.Status())
	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusCreated, rw.Status())
	assert.Same(t, rec, rw.Unwrap())
}
