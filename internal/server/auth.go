package server

import (
	"crypto/subtle"
	"net/http"
)

// telegramSecretHeader заголовок с секретом webhook, который Telegram
// повторяет из setWebhook
const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// webhookAuthMiddleware проверяет секрет Telegram webhook.
// Пустой TELEGRAM_SECRET_TOKEN отключает проверку.
func (s *Server) webhookAuthMiddleware(next http.Handler) http.Handler {
	secret := s.config.Telegram.SecretToken

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if secret == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get(telegramSecretHeader)
		if got == "" {
			s.securityLogger.LogFailedAuth(r, "missing_secret_token")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			s.securityLogger.LogFailedAuth(r, "invalid_secret_token")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
