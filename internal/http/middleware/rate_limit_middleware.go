package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/http/response"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
	"github.com/sandeepkv93/live-voting-service/internal/security"
)

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
	ResetAt    time.Time
}

// RateLimitPolicy admits Limit requests per key in each aligned Window.
type RateLimitPolicy struct {
	Limit  int
	Window time.Duration
}

func (p RateLimitPolicy) normalized() RateLimitPolicy {
	if p.Limit <= 0 {
		p.Limit = 1
	}
	if p.Window <= 0 {
		p.Window = time.Minute
	}
	return p
}

type Limiter interface {
	Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error)
}

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

// PolicyFunc is consulted on every decision so limits can change at runtime.
type PolicyFunc func() RateLimitPolicy

// PerMinute builds a PolicyFunc from a limit source such as the settings
// snapshot.
func PerMinute(limit func() int) PolicyFunc {
	return func() RateLimitPolicy {
		return RateLimitPolicy{Limit: limit(), Window: time.Minute}
	}
}

type RateLimiter struct {
	limiter Limiter
	policy  PolicyFunc
	mode    FailureMode
	scope   string
	keyFunc func(r *http.Request) string
}

// NewRateLimiter limits each client address to a fixed number of requests per
// window using an in-process limiter.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	policy := RateLimitPolicy{Limit: limit, Window: window}
	return NewDynamicRateLimiter(NewLocalFixedWindowLimiter(), func() RateLimitPolicy { return policy }, FailClosed, "local", nil)
}

func NewDynamicRateLimiter(
	limiter Limiter,
	policy PolicyFunc,
	mode FailureMode,
	scope string,
	keyFunc func(r *http.Request) string,
) *RateLimiter {
	if scope == "" {
		scope = "api"
	}
	if keyFunc == nil {
		keyFunc = clientIPKey
	}
	if mode != FailOpen {
		mode = FailClosed
	}
	return &RateLimiter{
		limiter: limiter,
		policy:  policy,
		mode:    mode,
		scope:   scope,
		keyFunc: keyFunc,
	}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy := rl.policy().normalized()
			key := rl.keyFunc(r)
			if key == "" {
				key = clientIPKey(r)
			}
			keyType := rateLimitKeyType(key)

			decision, err := rl.limiter.Allow(r.Context(), key, policy)
			switch {
			case err != nil && rl.mode == FailOpen:
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "backend_error", string(rl.mode), keyType)
				slog.WarnContext(r.Context(), "rate limiter backend unavailable, allowing request", "scope", rl.scope, "error", err)
				next.ServeHTTP(w, r)
			case err != nil:
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "backend_error", string(rl.mode), keyType)
				observability.RecordRateLimitRetryAfter(r.Context(), rl.scope, "backend", policy.Window)
				writeRateLimitHeaders(w.Header(), policy.Limit, 0, time.Now().Add(policy.Window))
				response.RetryLater(w, r, policy.Window, "RATE_LIMITED", "too many requests", nil)
			case !decision.Allowed:
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "deny", string(rl.mode), keyType)
				observability.RecordRateLimitRetryAfter(r.Context(), rl.scope, "window", decision.RetryAfter)
				writeRateLimitHeaders(w.Header(), policy.Limit, 0, decision.ResetAt)
				response.RetryLater(w, r, decision.RetryAfter, "RATE_LIMITED", "too many requests", nil)
			default:
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "allow", string(rl.mode), keyType)
				writeRateLimitHeaders(w.Header(), policy.Limit, decision.Remaining, decision.ResetAt)
				next.ServeHTTP(w, r)
			}
		})
	}
}

// ParticipantOrIPKeyFunc keys authenticated participants by their id so
// voters behind one venue NAT do not share a budget.
func ParticipantOrIPKeyFunc(jwtMgr *security.JWTManager) func(r *http.Request) string {
	return func(r *http.Request) string {
		if jwtMgr == nil {
			return clientIPKey(r)
		}
		raw, _ := security.CredentialFromRequest(r)
		if raw == "" {
			return clientIPKey(r)
		}
		claims, err := jwtMgr.ParseParticipantToken(raw)
		if err != nil {
			return clientIPKey(r)
		}
		return "sub:" + claims.Subject
	}
}

// LocalFixedWindowLimiter counts per key inside this process. Windows are
// aligned the same way as RedisFixedWindowLimiter so a node that loses Redis
// keeps roughly the same budget.
type LocalFixedWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]localWindow
	now     func() time.Time
	sweepAt time.Time
}

type localWindow struct {
	start time.Time
	count int
}

func NewLocalFixedWindowLimiter() *LocalFixedWindowLimiter {
	return &LocalFixedWindowLimiter{windows: make(map[string]localWindow), now: time.Now}
}

func (l *LocalFixedWindowLimiter) Allow(_ context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	policy = policy.normalized()
	now := l.now()
	start := now.Truncate(policy.Window)
	resetAt := start.Add(policy.Window)

	l.mu.Lock()
	defer l.mu.Unlock()
	if now.After(l.sweepAt) {
		for k, w := range l.windows {
			if w.start.Before(start) {
				delete(l.windows, k)
			}
		}
		l.sweepAt = resetAt
	}

	w := l.windows[key]
	if !w.start.Equal(start) {
		w = localWindow{start: start}
	}
	if w.count >= policy.Limit {
		return Decision{RetryAfter: resetAt.Sub(now), ResetAt: resetAt}, nil
	}
	w.count++
	l.windows[key] = w
	return Decision{Allowed: true, Remaining: policy.Limit - w.count, ResetAt: resetAt}, nil
}

func clientIPKey(r *http.Request) string {
	ip := parseRequestIP(r)
	if ip != nil {
		return ip.String()
	}
	return r.RemoteAddr
}

func writeRateLimitHeaders(h http.Header, limit, remaining int, resetAt time.Time) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(max(limit, 0)))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

func rateLimitKeyType(key string) string {
	if strings.HasPrefix(key, "sub:") {
		return "subject"
	}
	return "ip"
}
