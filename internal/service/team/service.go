package team

import (
	"context"
	"errors"

	"log/slog"

	"github.com/Mutairu-Lawal/pro-manage/internal/domain"
	"github.com/Mutairu-Lawal/pro-manage/internal/repository"
)

// ErrNotOwner is returned when a caller acts on a team they do not own.
var ErrNotOwner = errors.New("team: caller is not the owner")

var errInvalidTeamName = errors.New("team name is required")

// Service handles team workflows.
type Service struct {
	repo   repository.TeamRepository
	logger *slog.Logger
}

// New constructs a Service with default logging.
func New(repo repository.TeamRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Create registers a team for the owner, who becomes its admin member.
func (s *Service) Create(ctx context.Context, ownerID int64, name string) (*domain.Team, error) {
	if name == "" {
		return nil, errInvalidTeamName
	}
	team, err := s.repo.CreateTeam(ctx, domain.NewTeam{Name: name, OwnerID: ownerID})
	if err != nil {
		return nil, err
	}
	s.logger.Info("team created", "team_id", team.ID, "owner_id", ownerID)
	return team, nil
}

// ListOwned returns the teams owned by ownerID.
func (s *Service) ListOwned(ctx context.Context, ownerID int64) ([]domain.Team, error) {
	return s.repo.ListTeamsByOwner(ctx, ownerID)
}

// Invite acknowledges an invitation to teamID. Membership is not changed;
// only the team owner may invite.
func (s *Service) Invite(ctx context.Context, callerID, teamID int64) (*domain.Team, error) {
	team, err := s.repo.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.OwnerID != callerID {
		return nil, ErrNotOwner
	}
	s.logger.Info("team invitation acknowledged", "team_id", teamID, "user_id", callerID)
	return team, nil
}
