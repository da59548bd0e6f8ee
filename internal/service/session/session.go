// Package session issues and verifies the bearer tokens that prove a prior
// login.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	jwtpkg "github.com/Mutairu-Lawal/pro-manage/pkg/jwt"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 30 * time.Minute

var (
	// ErrMalformed means the token could not be parsed.
	ErrMalformed = errors.New("session: malformed token")
	// ErrBadSignature means the token was not signed with the service secret.
	ErrBadSignature = errors.New("session: bad signature")
	// ErrExpired means the token is past its expiry.
	ErrExpired = errors.New("session: token expired")
	// ErrUnauthorized is the single failure the gate reports.
	ErrUnauthorized = errors.New("session: unauthorized")
)

// Service signs and verifies tokens with a process-wide secret.
type Service struct {
	secret string
	ttl    time.Duration
	now    func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service. A non-positive ttl selects DefaultTTL.
func New(secret string, ttl time.Duration, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, errors.New("session: signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Service{secret: secret, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL reports the token lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue returns a signed token for userID.
func (s *Service) Issue(userID int64) (string, error) {
	token, err := jwtpkg.GenerateToken(userID, s.secret, s.now(), s.ttl)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks the token signature and expiry and returns the embedded user
// id. It does not confirm the user still exists.
//
// exp is stored in whole seconds, floored from issue time plus TTL, and a
// token is expired once now >= exp. A token issued mid-second therefore
// lives slightly less than the TTL, and one issued on a whole second is
// already rejected at exactly issuedAt+TTL.
func (s *Service) Verify(token string) (int64, error) {
	claims, err := jwtpkg.Parse(token, s.secret, s.now)
	switch {
	case err == nil:
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return 0, ErrExpired
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
		return 0, ErrBadSignature
	default:
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if claims.UserID <= 0 {
		return 0, ErrMalformed
	}
	return claims.UserID, nil
}

// Gate resolves an Authorization header to a user id.
type Gate struct {
	sessions *Service
}

// NewGate constructs a Gate over sessions.
func NewGate(sessions *Service) *Gate {
	return &Gate{sessions: sessions}
}

// Authenticate expects "Bearer <token>". Every failure is reported as
// ErrUnauthorized.
func (g *Gate) Authenticate(header string) (int64, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return 0, ErrUnauthorized
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, ErrUnauthorized
	}
	userID, err := g.sessions.Verify(token)
	if err != nil {
		return 0, ErrUnauthorized
	}
	return userID, nil
}
