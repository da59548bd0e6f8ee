// Package jsondoc implements the user and team repositories on top of the
// single-document store. Lookups are linear scans in document order.
package jsondoc

import (
	"context"
	"fmt"
	"time"

	"github.com/Mutairu-Lawal/pro-manage/internal/domain"
	"github.com/Mutairu-Lawal/pro-manage/internal/repository"
	"github.com/Mutairu-Lawal/pro-manage/internal/store"
)

// DocumentStore is the subset of store.Store the repositories need.
type DocumentStore interface {
	Load(ctx context.Context) (store.Document, error)
	Update(ctx context.Context, fn func(doc *store.Document) error) error
}

// Repository implements persistence interfaces over a DocumentStore.
type Repository struct {
	store DocumentStore
	now   func() time.Time
}

// Option customises a Repository.
type Option func(*Repository)

// WithClock overrides the clock used for createdAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a Repository.
func New(s DocumentStore, opts ...Option) *Repository {
	r := &Repository{store: s, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	_ repository.UserRepository = (*Repository)(nil)
	_ repository.TeamRepository = (*Repository)(nil)
)

// CreateUser appends a user with the next id. The email is checked against
// every stored user inside the same exclusive section as the write.
func (r *Repository) CreateUser(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	var created domain.User
	err := r.store.Update(ctx, func(doc *store.Document) error {
		for _, u := range doc.Users {
			if domain.EmailMatches(u.Email, in.Email) {
				return repository.ErrDuplicateEmail
			}
		}
		created = domain.User{
			ID:           nextUserID(doc.Users),
			Name:         in.Name,
			Email:        in.Email,
			Role:         in.Role,
			PasswordHash: in.PasswordHash,
			CreatedAt:    r.now().UTC(),
		}
		doc.Users = append(doc.Users, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetUserByEmail finds a user by email, ignoring case.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	doc, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range doc.Users {
		if domain.EmailMatches(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

// GetUserByID finds a user by id.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	doc, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range doc.Users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

// CreateTeam appends a team owned by in.OwnerID, who becomes its sole admin
// member. The owner must exist when the write happens.
func (r *Repository) CreateTeam(ctx context.Context, in domain.NewTeam) (*domain.Team, error) {
	var created domain.Team
	err := r.store.Update(ctx, func(doc *store.Document) error {
		if !hasUser(doc.Users, in.OwnerID) {
			return fmt.Errorf("team owner %d: %w", in.OwnerID, repository.ErrNotFound)
		}
		created = domain.Team{
			ID:        nextTeamID(doc.Teams),
			Name:      in.Name,
			OwnerID:   in.OwnerID,
			Members:   []domain.Member{{UserID: in.OwnerID, Role: domain.RoleAdmin}},
			CreatedAt: r.now().UTC(),
		}
		doc.Teams = append(doc.Teams, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetTeamByID finds a team by id.
func (r *Repository) GetTeamByID(ctx context.Context, id int64) (*domain.Team, error) {
	doc, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range doc.Teams {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListTeamsByOwner returns the teams owned by ownerID in document order.
func (r *Repository) ListTeamsByOwner(ctx context.Context, ownerID int64) ([]domain.Team, error) {
	doc, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	teams := make([]domain.Team, 0)
	for _, t := range doc.Teams {
		if t.OwnerID == ownerID {
			teams = append(teams, t)
		}
	}
	return teams, nil
}

func hasUser(users []domain.User, id int64) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func nextUserID(users []domain.User) int64 {
	var maxID int64
	for _, u := range users {
		if u.ID > maxID {
			maxID = u.ID
		}
	}
	return maxID + 1
}

func nextTeamID(teams []domain.Team) int64 {
	var maxID int64
	for _, t := range teams {
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	return maxID + 1
}
