package team

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Mutairu-Lawal/pro-manage/internal/domain"
	"github.com/Mutairu-Lawal/pro-manage/internal/repository"
)

type stubTeamRepository struct {
	owners map[int64]bool
	teams  []domain.Team
}

func (s *stubTeamRepository) CreateTeam(ctx context.Context, in domain.NewTeam) (*domain.Team, error) {
	if !s.owners[in.OwnerID] {
		return nil, repository.ErrNotFound
	}
	team := domain.Team{
		ID:      int64(len(s.teams) + 1),
		Name:    in.Name,
		OwnerID: in.OwnerID,
		Members: []domain.Member{{UserID: in.OwnerID, Role: domain.RoleAdmin}},
	}
	s.teams = append(s.teams, team)
	return &team, nil
}

func (s *stubTeamRepository) GetTeamByID(ctx context.Context, id int64) (*domain.Team, error) {
	for _, t := range s.teams {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubTeamRepository) ListTeamsByOwner(ctx context.Context, ownerID int64) ([]domain.Team, error) {
	teams := []domain.Team{}
	for _, t := range s.teams {
		if t.OwnerID == ownerID {
			teams = append(teams, t)
		}
	}
	return teams, nil
}

func newTestService() (*Service, *stubTeamRepository) {
	repo := &stubTeamRepository{owners: map[int64]bool{1: true, 2: true}}
	return New(repo, slog.New(slog.NewTextHandler(io.Discard, nil))), repo
}

func TestCreateAndListOwned(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	team, err := svc.Create(ctx, 1, "core")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if team.ID != 1 || team.OwnerID != 1 || len(team.Members) != 1 || team.Members[0].Role != domain.RoleAdmin {
		t.Fatalf("unexpected team %+v", team)
	}
	if _, err := svc.Create(ctx, 2, "other"); err != nil {
		t.Fatalf("create: %v", err)
	}

	teams, err := svc.ListOwned(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(teams) != 1 || teams[0].Name != "core" {
		t.Fatalf("unexpected teams %+v", teams)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Create(context.Background(), 1, ""); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if _, err := svc.Create(context.Background(), 9, "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown owner, got %v", err)
	}
}

func TestInviteRequiresOwnership(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	team, err := svc.Create(ctx, 1, "core")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Invite(ctx, 1, team.ID); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if _, err := svc.Invite(ctx, 2, team.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := svc.Invite(ctx, 1, 42); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(repo.teams[0].Members) != 1 {
		t.Fatalf("invite must not change membership")
	}
}
