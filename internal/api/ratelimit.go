package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter applies a token bucket per client key and evicts buckets that
// have been idle for idleTTL.
type clientLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	byKey   map[string]*clientBucket
	hits    uint64
	idleTTL time.Duration
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newClientLimiter returns nil, which allows everything, unless both rps and
// burst are positive.
func newClientLimiter(rps float64, burst int) *clientLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &clientLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		byKey:   make(map[string]*clientBucket),
		idleTTL: 10 * time.Minute,
	}
}

func (l *clientLimiter) allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byKey[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}

// clientKey identifies the caller by bearer token when it matches the
// configured one, else by remote IP. Unverified tokens never pick a bucket.
func (s *Server) clientKey(r *http.Request) string {
	if token, err := bearerToken(r); err == nil && validToken(token, s.config.Token) {
		return "token:" + token
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "ip:unknown"
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return "ip:" + remote
	}
	return "ip:" + host
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(s.clientKey(r), time.Now()) {
			w.Header().Set("Retry-After", "1")
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
