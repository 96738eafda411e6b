package server

import (
	"net/http"
	"time"

	"github.com/region23/barbershop/internal/middleware"
	"github.com/region23/barbershop/pkg/logger"
)

// loggingMiddleware логирует HTTP запросы
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		s.logger.Info("HTTP request completed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.String("ip", middleware.GetRealIP(r)),
			logger.Int("status_code", wrapped.Status()),
			logger.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

// securityHeadersMiddleware добавляет заголовки безопасности
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		next.ServeHTTP(w, r)
	})
}

// requestValidationMiddleware ограничивает размер тела и требует
// Content-Type у POST запросов с телом
func (s *Server) requestValidationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > maxBodyBytes {
			s.securityLogger.LogBlockedRequest(r, "request_too_large")
			http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
			return
		}

		if r.Method == http.MethodPost && r.ContentLength != 0 && r.Header.Get("Content-Type") == "" {
			s.securityLogger.LogBlockedRequest(r, "missing_content_type")
			http.Error(w, "Content-Type header is required", http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// adminAuditMiddleware записывает действия в панели администратора
func (s *Server) adminAuditMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := middleware.NewResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		if r.Method != http.MethodGet {
			s.securityLogger.LogAdminAction(r, wrapped.Status())
		}
	})
}
