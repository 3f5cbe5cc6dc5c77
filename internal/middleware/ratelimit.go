package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limitTier int

const (
	tierGeneral limitTier = iota
	tierAuth
	tierBulk
	tierCount
)

const (
	clientIdleTTL  = 10 * time.Minute
	sweepThreshold = 1000
)

// RateLimits holds requests per minute for each tier. Non-positive values
// fall back to the defaults.
type RateLimits struct {
	General int
	Auth    int
	Bulk    int
}

func (l RateLimits) withDefaults() RateLimits {
	if l.General <= 0 {
		l.General = 100
	}
	if l.Auth <= 0 {
		l.Auth = 10
	}
	if l.Bulk <= 0 {
		l.Bulk = 20
	}
	return l
}

func (l RateLimits) rpm(tier limitTier) int {
	switch tier {
	case tierAuth:
		return l.Auth
	case tierBulk:
		return l.Bulk
	default:
		return l.General
	}
}

type clientBuckets struct {
	tiers    [tierCount]*rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware throttles per client address. Login and refresh share
// the auth tier; bulk trash operations, exports and job submissions share
// the bulk tier so one caller cannot flood the job worker.
type RateLimitMiddleware struct {
	limits  RateLimits
	mu      sync.Mutex
	clients map[string]*clientBuckets
	now     func() time.Time
}

func NewRateLimitMiddleware(limits RateLimits) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limits:  limits.withDefaults(),
		clients: map[string]*clientBuckets{},
		now:     time.Now,
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isMonitoringPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		tier := classifyRequest(r)
		if !m.allow(ClientIP(r), tier) {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(m.limits.rpm(tier))))
			writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func classifyRequest(r *http.Request) limitTier {
	path := strings.ToLower(strings.TrimSuffix(r.URL.Path, "/"))
	switch {
	case strings.HasPrefix(path, "/api/v1/auth"):
		return tierAuth
	case strings.HasPrefix(path, "/api/v1/trash/bulk/"),
		path == "/api/v1/trash/export",
		path == "/api/v1/trash/expire",
		r.Method == http.MethodPost && path == "/api/v1/trash/jobs":
		return tierBulk
	default:
		return tierGeneral
	}
}

func (m *RateLimitMiddleware) allow(clientIP string, tier limitTier) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	buckets, exists := m.clients[clientIP]
	if !exists {
		if len(m.clients) >= sweepThreshold {
			m.sweepLocked(now)
		}
		buckets = &clientBuckets{}
		m.clients[clientIP] = buckets
	}
	buckets.lastSeen = now

	if buckets.tiers[tier] == nil {
		rpm := m.limits.rpm(tier)
		buckets.tiers[tier] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
	}
	return buckets.tiers[tier].AllowN(now, 1)
}

func (m *RateLimitMiddleware) sweepLocked(now time.Time) {
	cutoff := now.Add(-clientIdleTTL)
	for ip, buckets := range m.clients {
		if buckets.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

// retryAfterSeconds is the time until one token is back, at least a second.
func retryAfterSeconds(rpm int) int {
	if rpm <= 0 {
		return 60
	}
	return max(1, int(math.Ceil(60/float64(rpm))))
}

// Health checks and metric scrapes are never throttled.
func isMonitoringPath(path string) bool {
	return path == "/health" || path == "/metrics"
}

// ClientIP resolves the caller address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote == "" {
		return "unknown"
	}
	return remote
}
