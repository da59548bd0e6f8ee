package httpx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"time"
)

// RateLimiter admits requests per key over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, rule rateRule) rateDecision
	Close()
}

// rateRule names a limit. The name labels metrics and prefixes limiter keys,
// so two rules never share a counter.
type rateRule struct {
	name   string
	limit  int
	window time.Duration
}

func (r rateRule) windowOrDefault() time.Duration {
	if r.window <= 0 {
		return rateWindowDefault
	}
	return r.window
}

// rateDecision reports the requests counted in the current window, including
// this one when it was admitted. resetAt is when the oldest counted request
// leaves the window.
type rateDecision struct {
	allowed bool
	count   int
	resetAt time.Time
}

// rateKey identifies who is being limited: a client address, a login account
// or an authenticated user.
type rateKey struct {
	scope string
	id    string
}

func (k rateKey) String() string { return k.scope + ":" + k.id }

type rateRules struct {
	register     rateRule
	loginIP      rateRule
	loginAccount rateRule
	userRead     rateRule
	userWrite    rateRule
}

func newRateRules(opts Options) rateRules {
	orDefault := func(v, def int) int {
		if v == 0 {
			return def
		}
		return v
	}
	return rateRules{
		register:     rateRule{name: "register", limit: orDefault(opts.RegisterLimit, rateLimitRegister), window: rateWindowDefault},
		loginIP:      rateRule{name: "login_ip", limit: orDefault(opts.LoginLimit, rateLimitLogin), window: rateWindowDefault},
		loginAccount: rateRule{name: "login_account", limit: orDefault(opts.LoginAccountLimit, rateLimitLoginAccount), window: loginAccountWindow},
		userRead:     rateRule{name: "user_read", limit: rateLimitUserRead, window: rateWindowDefault},
		userWrite:    rateRule{name: "user_write", limit: rateLimitUserWrite, window: rateWindowDefault},
	}
}

// admit consumes one request from key under rule. On rejection it answers
// 429 and returns false.
func (r *Router) admit(w http.ResponseWriter, req *http.Request, rule rateRule, key rateKey) bool {
	if rule.limit <= 0 || r.limiter == nil {
		return true
	}
	decision := r.limiter.Allow(req.Context(), rule.name+"|"+key.String(), rule)
	r.applyRateHeaders(w, rule, decision)
	if decision.allowed {
		return true
	}
	r.metrics.recordRateLimitHit(rule.name, key.scope)
	r.logger.WarnContext(req.Context(), "rate limit exceeded", "rule", rule.name, "scope", key.scope)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	return false
}

func (r *Router) limitBy(rule rateRule, keyFn func(*http.Request) rateKey, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !r.admit(w, req, rule, keyFn(req)) {
			return
		}
		next(w, req)
	}
}

// authed requires a bearer token and then limits the caller under rule.
func (r *Router) authed(rule rateRule, next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(r.limitBy(rule, userRateKey, next))
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, rule rateRule, decision rateDecision) {
	remaining := rule.limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(rule.limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if decision.resetAt.IsZero() {
		return
	}
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.resetAt.Unix(), 10))
	if !decision.allowed {
		wait := time.Until(decision.resetAt)
		secs := int(wait / time.Second)
		if wait%time.Second > 0 {
			secs++
		}
		if secs < 1 {
			secs = 1
		}
		headers.Set("Retry-After", strconv.Itoa(secs))
	}
}

func ipRateKey(req *http.Request) rateKey {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return rateKey{scope: "ip", id: host}
}

// accountRateKey keys login attempts on the normalized email. The address is
// hashed so it never appears in limiter storage.
func accountRateKey(email string) rateKey {
	sum := sha256.Sum256([]byte(email))
	return rateKey{scope: "account", id: hex.EncodeToString(sum[:12])}
}

func userRateKey(req *http.Request) rateKey {
	if info, ok := authInfoFromContext(req.Context()); ok && info.UserID > 0 {
		return rateKey{scope: "user", id: strconv.FormatInt(info.UserID, 10)}
	}
	return ipRateKey(req)
}
