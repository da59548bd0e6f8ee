package repository

import (
	"context"

	"github.com/Mutairu-Lawal/pro-manage/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.NewUser) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
}

// TeamRepository manages teams and their initial membership.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team domain.NewTeam) (*domain.Team, error)
	GetTeamByID(ctx context.Context, id int64) (*domain.Team, error)
	ListTeamsByOwner(ctx context.Context, ownerID int64) ([]domain.Team, error)
}
