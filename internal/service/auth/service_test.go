package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Mutairu-Lawal/pro-manage/internal/domain"
	"github.com/Mutairu-Lawal/pro-manage/internal/repository"
	"github.com/Mutairu-Lawal/pro-manage/pkg/crypto"
)

type stubUserRepository struct {
	users     []domain.User
	createErr error
	lookupErr error
}

func (s *stubUserRepository) CreateUser(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	for _, u := range s.users {
		if domain.EmailMatches(u.Email, in.Email) {
			return nil, repository.ErrDuplicateEmail
		}
	}
	user := domain.User{
		ID:           int64(len(s.users) + 1),
		Name:         in.Name,
		Email:        in.Email,
		Role:         in.Role,
		PasswordHash: in.PasswordHash,
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	s.users = append(s.users, user)
	return &user, nil
}

func (s *stubUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	for _, u := range s.users {
		if domain.EmailMatches(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

type stubIssuer struct{ issued []int64 }

func (s *stubIssuer) Issue(userID int64) (string, error) {
	s.issued = append(s.issued, userID)
	return "token-for-user", nil
}

func newTestService(repo *stubUserRepository) (*Service, *stubIssuer) {
	issuer := &stubIssuer{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(repo, issuer, log, bcrypt.MinCost), issuer
}

func TestRegisterHashesPasswordAndDefaultsRole(t *testing.T) {
	repo := &stubUserRepository{}
	svc, _ := newTestService(repo)

	user, err := svc.Register(context.Background(), RegisterInput{Name: "ada", Email: "ada@example.com", Password: "Str0ng!pass"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID != 1 || user.Role != domain.RoleMember {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.PasswordHash == "Str0ng!pass" || !strings.HasPrefix(user.PasswordHash, "$2") {
		t.Fatalf("expected bcrypt hash, got %q", user.PasswordHash)
	}
	if !crypto.VerifyPassword(user.PasswordHash, "Str0ng!pass") {
		t.Fatalf("stored hash does not verify")
	}
}

func TestRegisterRejectsDuplicateAndInvalidRole(t *testing.T) {
	repo := &stubUserRepository{}
	svc, _ := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Name: "ada", Email: "ada@example.com", Password: "pw", Role: "owner"}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Name: "ada", Email: "ada@example.com", Password: "pw", Role: "admin"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Name: "ada2", Email: "Ada@Example.com", Password: "pw"}); !errors.Is(err, repository.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected one stored user, got %d", len(repo.users))
	}
}

func TestRegisterPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("disk gone")
	svc, _ := newTestService(&stubUserRepository{lookupErr: boom})
	if _, err := svc.Register(context.Background(), RegisterInput{Name: "ada", Email: "ada@example.com", Password: "pw"}); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestLoginIssuesTokenForValidCredentials(t *testing.T) {
	repo := &stubUserRepository{}
	svc, issuer := newTestService(repo)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Name: "ada", Email: "ada@example.com", Password: "Str0ng!pass"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token, err := svc.Login(ctx, "ADA@example.com", "Str0ng!pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token != "token-for-user" || len(issuer.issued) != 1 || issuer.issued[0] != user.ID {
		t.Fatalf("unexpected issuance %q %v", token, issuer.issued)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	repo := &stubUserRepository{}
	svc, issuer := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Name: "ada", Email: "ada@example.com", Password: "Str0ng!pass"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, wrongPassword := svc.Login(ctx, "ada@example.com", "nope")
	_, unknownEmail := svc.Login(ctx, "bob@example.com", "Str0ng!pass")
	if !errors.Is(wrongPassword, ErrInvalidCredentials) || !errors.Is(unknownEmail, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v and %v", wrongPassword, unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("failure messages differ: %q vs %q", wrongPassword, unknownEmail)
	}
	if len(issuer.issued) != 0 {
		t.Fatalf("no token should be issued")
	}
}

func TestProfile(t *testing.T) {
	repo := &stubUserRepository{}
	svc, _ := newTestService(repo)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Name: "ada", Email: "ada@example.com", Password: "pw", Role: "Manager"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	profile, err := svc.Profile(ctx, user.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Name != "ada" || profile.Email != "ada@example.com" || profile.Role != domain.RoleManager {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if _, err := svc.Profile(ctx, 99); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewPreparesDummyHash(t *testing.T) {
	svc, _ := newTestService(&stubUserRepository{})
	if !strings.HasPrefix(svc.dummyHash, "$2") {
		t.Fatalf("expected bcrypt dummy hash at construction, got %q", svc.dummyHash)
	}
	if cost, err := bcrypt.Cost([]byte(svc.dummyHash)); err != nil || cost != bcrypt.MinCost {
		t.Fatalf("dummy hash should use the configured cost, got %d %v", cost, err)
	}
	if crypto.VerifyPassword(svc.dummyHash, "Str0ng!pass") {
		t.Fatalf("dummy hash must not match user passwords")
	}
}
