package middleware

import (
	"net/http"
	"sync"
	"time"

	"tallerpagos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ventana tracks request counts per IP within a fixed window.
type ventana struct {
	count     int
	windowEnd time.Time
	mu        sync.Mutex
}

// limiterMap is a purgeable per-IP window registry.
type limiterMap struct {
	mu      sync.Mutex
	entries map[string]*ventana
}

func newLimiterMap() *limiterMap {
	return &limiterMap{entries: make(map[string]*ventana)}
}

func (m *limiterMap) get(ip string) *ventana {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[ip]
	if !ok {
		v = &ventana{}
		m.entries[ip] = v
	}
	return v
}

func (m *limiterMap) purge(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for ip, v := range m.entries {
		v.mu.Lock()
		if now.After(v.windowEnd) {
			delete(m.entries, ip)
			purged++
		}
		v.mu.Unlock()
	}
	return purged
}

var (
	loginMap = newLimiterMap()
	apiMap   = newLimiterMap()
)

// allow counts one request against the IP's window.
func allow(m *limiterMap, ip string, limit int, window time.Duration) bool {
	v := m.get(ip)
	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now()
	if now.After(v.windowEnd) {
		v.count = 0
		v.windowEnd = now.Add(window)
	}
	v.count++
	return v.count <= limit
}

// LoginRateLimiter limits login attempts to 20 per minute per IP.
func LoginRateLimiter() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !allow(loginMap, c.ClientIP(), 20, time.Minute) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiados intentos de login. Intente en 1 minuto."))
			return
		}
		c.Next()
	}
}

// RateLimiter returns a general-purpose fixed-window rate limiter.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !allow(apiMap, c.ClientIP(), limit, window) {
			c.Header("Retry-After", time.Now().Add(window).Format(time.RFC1123))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
			return
		}
		c.Next()
	}
}

// ── Purge goroutine ───────────────────────────────────────────────────────────
// Periodically removes expired entries from both limiter maps so IPs that
// never return don't accumulate.

const purgeInterval = 5 * time.Minute

func init() {
	go purgeExpiredEntries()
}

func purgeExpiredEntries() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		purgedLogin := loginMap.purge(now)
		purgedAPI := apiMap.purge(now)
		if purgedLogin > 0 || purgedAPI > 0 {
			log.Debug().
				Int("login_entries_purged", purgedLogin).
				Int("api_entries_purged", purgedAPI).
				Msg("rate limiter maps purged")
		}
	}
}
