package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Mutairu-Lawal/pro-manage/internal/domain"
	"github.com/Mutairu-Lawal/pro-manage/internal/service/auth"
)

// AuthService covers registration, login and profile lookups.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Profile(ctx context.Context, userID int64) (auth.Profile, error)
}

// TeamService covers team creation, listing and invitations.
type TeamService interface {
	Create(ctx context.Context, ownerID int64, name string) (*domain.Team, error)
	ListOwned(ctx context.Context, ownerID int64) ([]domain.Team, error)
	Invite(ctx context.Context, callerID, teamID int64) (*domain.Team, error)
}

// Authenticator resolves an Authorization header to a user id.
type Authenticator interface {
	Authenticate(header string) (int64, error)
}

// Options tunes the router. Zero values select defaults.
type Options struct {
	RegisterLimit     int
	LoginLimit        int
	LoginAccountLimit int
	Registerer        prometheus.Registerer
	Gatherer          prometheus.Gatherer
	Health            func(context.Context) error
	Now               func() time.Time
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     AuthService
	team     TeamService
	gate     Authenticator
	limiter  RateLimiter
	rules    rateRules
	metrics  *httpMetrics
	gatherer prometheus.Gatherer
	health   func(context.Context) error
	now      func() time.Time
}

const (
	rateWindowDefault     = time.Minute
	loginAccountWindow    = 15 * time.Minute
	rateLimitRegister     = 5
	rateLimitLogin        = 12
	rateLimitLoginAccount = 10
	rateLimitUserWrite    = 60
	rateLimitUserRead     = 120
	healthCheckTimeout    = 2 * time.Second
	maxBodyBytes          = 1 << 20
	welcomeMessage        = "Welcome to proManage api end point"
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc AuthService, teamSvc TeamService, gate Authenticator, limiter RateLimiter, opts Options) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		auth:     authSvc,
		team:     teamSvc,
		gate:     gate,
		limiter:  limiter,
		rules:    newRateRules(opts),
		gatherer: opts.Gatherer,
		health:   opts.Health,
		now:      opts.Now,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.now == nil {
		r.now = time.Now
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if r.gatherer == nil {
		r.gatherer = prometheus.DefaultGatherer
	}
	r.metrics = newHTTPMetrics(reg)
	r.register()
	return r
}

// ServeHTTP applies response hardening headers and delegates to the mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	headers := w.Header()
	headers.Set("X-Content-Type-Options", "nosniff")
	headers.Set("X-Frame-Options", "DENY")
	headers.Set("Referrer-Policy", "no-referrer")
	headers.Set("Access-Control-Allow-Origin", "*")
	if req.Method == http.MethodOptions && req.Header.Get("Access-Control-Request-Method") != "" {
		headers.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		headers.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	metricsHandler := promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})

	r.mux.HandleFunc("/{$}", r.audit("/", r.handleWelcome))
	r.mux.HandleFunc("/", r.audit("unmatched", r.handleNotFound))
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", metricsHandler)
	r.mux.HandleFunc("/auth/register", r.audit("/auth/register", r.limitBy(r.rules.register, ipRateKey, r.handleRegister)))
	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.limitBy(r.rules.loginIP, ipRateKey, r.handleLogin)))
	r.mux.HandleFunc("/auth/profile", r.audit("/auth/profile", r.authed(r.rules.userRead, r.handleProfile)))
	r.mux.HandleFunc("/teams", r.audit("/teams", r.authed(r.rules.userWrite, r.handleTeams)))
	r.mux.HandleFunc("/teams/{id}/invite", r.audit("/teams/{id}/invite", r.authed(r.rules.userWrite, r.handleInvite)))
	r.mux.HandleFunc("/projects", r.audit("/projects", r.authed(r.rules.userWrite, r.handleProjects)))
	r.mux.HandleFunc("/tasks", r.audit("/tasks", r.authed(r.rules.userWrite, r.handleTasks)))
	r.mux.HandleFunc("/tasks/{id}", r.audit("/tasks/{id}", r.authed(r.rules.userWrite, r.handleTask)))
}

func (r *Router) handleWelcome(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(welcomeMessage))
}

func (r *Router) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "page not found")
}

type userResponse struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload registerRequest
	if !decodeJSON(w, req, &payload) {
		return
	}
	if err := payload.normalize(); err != nil {
		writeValidationError(w, err)
		return
	}
	user, err := r.auth.Register(req.Context(), auth.RegisterInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Role:     payload.Role,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User created",
		"user": userResponse{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			Role:      user.Role,
			CreatedAt: user.CreatedAt,
		},
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload loginRequest
	if !decodeJSON(w, req, &payload) {
		return
	}
	if err := payload.normalize(); err != nil {
		writeValidationError(w, err)
		return
	}
	if !r.admit(w, req, r.rules.loginAccount, accountRateKey(payload.Email)) {
		return
	}
	token, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (r *Router) handleProfile(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	userID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	profile, err := r.auth.Profile(req.Context(), userID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (r *Router) handleTeams(w http.ResponseWriter, req *http.Request) {
	userID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		teams, err := r.team.ListOwned(req.Context(), userID)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, teams)
	case http.MethodPost:
		var payload teamRequest
		if !decodeJSON(w, req, &payload) {
			return
		}
		if err := payload.normalize(); err != nil {
			writeValidationError(w, err)
			return
		}
		team, err := r.team.Create(req.Context(), userID, payload.Name)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"message": "Team Created", "team": team})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleInvite(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	userID, ok := r.callerID(w, req)
	if !ok {
		return
	}
	teamID, ok := parsePositiveID(req.PathValue("id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid team ID")
		return
	}
	if _, err := r.team.Invite(req.Context(), userID, teamID); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Invitation sent for team ID: %d", teamID)})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.health != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.health(ctx); err != nil {
			status = "degraded"
			r.logger.WarnContext(ctx, "store health check failed", "error", err)
			components["store"] = map[string]any{"status": "down"}
		} else {
			components["store"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  r.now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, req *http.Request, dst any) bool {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeValidationError(w http.ResponseWriter, err error) {
	var fields validationErrors
	if !errors.As(err, &fields) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":  "validation failed",
		"fields": fields,
	})
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		reqID := strings.TrimSpace(req.Header.Get("X-Request-ID"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		spanCtx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		spanCtx, span := otel.Tracer("promanage/http").Start(spanCtx, req.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", req.Method),
				attribute.String("http.route", route),
				attribute.String("request.id", reqID),
			),
		)
		defer span.End()
		req = req.WithContext(spanCtx)

		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.metrics.recordRequest(req.Method, route, status, duration)
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
			"request_id", reqID,
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.ErrorContext(ctx, "http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.WarnContext(ctx, "http_request", fields...)
		default:
			r.logger.InfoContext(ctx, "http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
