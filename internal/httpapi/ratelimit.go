package httpapi

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit caps requests per client IP. A zero Requests disables it.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// ipLimiter hands each client address a token bucket holding Requests tokens
// that refills over Window. Idle buckets are swept once per window.
type ipLimiter struct {
	mu        sync.Mutex
	every     rate.Limit
	burst     int
	window    time.Duration
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

func newIPLimiter(cfg RateLimit, now func() time.Time) *ipLimiter {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &ipLimiter{
		every:     rate.Every(cfg.Window / time.Duration(cfg.Requests)),
		burst:     cfg.Requests,
		window:    cfg.Window,
		visitors:  make(map[string]*visitor),
		lastSweep: now(),
		now:       now,
	}
}

// allow reports whether ip may proceed and, if not, how long until it may.
func (l *ipLimiter) allow(ip string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.window {
		for key, v := range l.visitors {
			if now.Sub(v.seen) >= l.window {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[ip] = v
	}
	v.seen = now

	reservation := v.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	reservation.CancelAt(now)
	return false, delay
}

// rateLimitMiddleware answers 429 once a client exhausts its allowance. The
// client is identified by the connection's remote address.
func rateLimitMiddleware(limiter *ipLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		ok, retryAfter := limiter.allow(ip)
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			writeEnvelope(w, http.StatusTooManyRequests, failure(r, "too many requests, please try again later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
