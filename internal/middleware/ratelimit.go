package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/region23/barbershop/pkg/logger"
)

// MessageTooManyRequests текст ответа при превышении лимита
const MessageTooManyRequests = "Muitas requisições. Tente novamente em instantes."

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter ограничивает частоту запросов по ключу (IP, chat ID)
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	logger   *logger.Logger

	cleanupInterval time.Duration
	idleTTL         time.Duration
	done            chan struct{}
	closeOnce       sync.Once
}

// NewRateLimiter создает limiter на requests запросов за period
func NewRateLimiter(requests int, period time.Duration, log *logger.Logger) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	rl := &RateLimiter{
		limiters:        make(map[string]*limiterEntry),
		limit:           rate.Limit(float64(requests) / period.Seconds()),
		burst:           requests,
		logger:          log,
		cleanupInterval: 5 * time.Minute,
		idleTTL:         10 * time.Minute,
		done:            make(chan struct{}),
	}

	go rl.cleanupRoutine()

	return rl
}

// getLimiter возвращает limiter ключа, создавая его при первом обращении
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Allow проверяет, разрешен ли запрос для данного ключа
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Size возвращает число отслеживаемых ключей
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now().Add(-rl.idleTTL))
		case <-rl.done:
			return
		}
	}
}

// cleanup удаляет limiters, не использовавшиеся с cutoff
func (rl *RateLimiter) cleanup(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	var cleaned int
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			cleaned++
		}
	}

	if cleaned > 0 {
		rl.logger.Debug("Cleaned up rate limiters",
			logger.Int("cleaned_count", cleaned),
			logger.Int("remaining_count", len(rl.limiters)))
	}
}

// Close останавливает фоновую очистку
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.done) })
}

// HTTPRateLimitMiddleware ограничивает запросы по IP. Ответ 429 содержит
// JSON в формате POST /agendar, чтобы клиент показал сообщение.
func HTTPRateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetRealIP(r)

			if !limiter.Allow(key) {
				limiter.logger.Warn("Rate limit exceeded",
					logger.String("ip", key),
					logger.String("path", r.URL.Path),
					logger.String("user_agent", r.UserAgent()))

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"sucesso":  false,
					"mensagem": MessageTooManyRequests,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ChatRateLimiter ограничивает обновления Telegram по чатам и глобально
type ChatRateLimiter struct {
	chatLimiter   *RateLimiter
	globalLimiter *rate.Limiter
	logger        *logger.Logger
}

// NewChatRateLimiter создает limiter для Telegram бота
func NewChatRateLimiter(chatRequestsPerMinute, globalRequestsPerSecond int, log *logger.Logger) *ChatRateLimiter {
	if globalRequestsPerSecond <= 0 {
		globalRequestsPerSecond = 1
	}
	return &ChatRateLimiter{
		chatLimiter:   NewRateLimiter(chatRequestsPerMinute, time.Minute, log),
		globalLimiter: rate.NewLimiter(rate.Limit(globalRequestsPerSecond), globalRequestsPerSecond),
		logger:        log,
	}
}

// AllowChat проверяет, можно ли обработать обновление чата
func (crl *ChatRateLimiter) AllowChat(chatID int64) bool {
	if !crl.globalLimiter.Allow() {
		crl.logger.Warn("Global rate limit exceeded", logger.Int64("chat_id", chatID))
		return false
	}

	if !crl.chatLimiter.Allow("chat_" + strconv.FormatInt(chatID, 10)) {
		crl.logger.Warn("Chat rate limit exceeded", logger.Int64("chat_id", chatID))
		return false
	}

	return true
}

// Close освобождает ресурсы
func (crl *ChatRateLimiter) Close() {
	crl.chatLimiter.Close()
}

// GetRealIP извлекает IP клиента с учетом прокси
func GetRealIP(r *http.Request) string {
	headers := []string{
		"CF-Connecting-IP",
		"X-Forwarded-For",
		"X-Real-IP",
	}

	for _, header := range headers {
		ip := r.Header.Get(header)
		if ip == "" {
			continue
		}
		// X-Forwarded-For может содержать цепочку адресов
		if header == "X-Forwarded-For" {
			ip = strings.Split(ip, ",")[0]
		}
		return strings.TrimSpace(ip)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
