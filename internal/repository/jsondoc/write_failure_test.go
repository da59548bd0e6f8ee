package jsondoc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/Mutairu-Lawal/pro-manage/internal/domain"
	"github.com/Mutairu-Lawal/pro-manage/internal/store"
	"github.com/pashagolub/pgxmock/v4"
)

const seededDoc = `{"users":[{"id":1,"name":"ada","email":"ada@example.com","role":"member","password":"hash","createdAt":"2024-01-01T00:00:00Z"}],"teams":[]}`

var quiet = store.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

func newPostgresRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock: %v", err)
	}
	t.Cleanup(mock.Close)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO documents`)).
		WithArgs("promanage", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	s, err := store.Open(context.Background(), store.NewPostgresBackend(mock, "promanage"), quiet)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return New(s, WithClock(func() time.Time { return fixedNow })), mock
}

// expectFailedCommit queues a transaction whose mutation succeeds but whose
// commit is lost.
func expectFailedCommit(mock pgxmock.PgxPoolIface) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT body FROM documents WHERE name = $1 FOR UPDATE`)).
		WithArgs("promanage").
		WillReturnRows(pgxmock.NewRows([]string{"body"}).AddRow([]byte(seededDoc)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE documents SET body = $2`)).
		WithArgs("promanage", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit().WillReturnError(errors.New("connection reset by peer"))
}

func TestPostgresCommitFailureReturnsNoUser(t *testing.T) {
	repo, mock := newPostgresRepo(t)
	expectFailedCommit(mock)

	u, err := repo.CreateUser(context.Background(), newUser("bob@example.com"))
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if u != nil {
		t.Fatalf("expected no user after a failed commit, got %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresCommitFailureReturnsNoTeam(t *testing.T) {
	repo, mock := newPostgresRepo(t)
	expectFailedCommit(mock)

	team, err := repo.CreateTeam(context.Background(), domain.NewTeam{Name: "core", OwnerID: 1})
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if team != nil {
		t.Fatalf("expected no team after a failed commit, got %+v", team)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// blockedRenameBackend lets the mutation run and then turns the document path
// into a non-empty directory, so the atomic rename that persists it fails.
type blockedRenameBackend struct {
	*store.FileBackend
}

func (b blockedRenameBackend) Update(ctx context.Context, fn func(current []byte) ([]byte, error)) error {
	return b.FileBackend.Update(ctx, func(current []byte) ([]byte, error) {
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		path := b.Path()
		if err := os.Remove(path); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Join(path, "occupied"), 0o755); err != nil {
			return nil, err
		}
		return next, nil
	})
}

func newBlockedFileRepo(t *testing.T) *Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.json")
	if err := os.WriteFile(path, []byte(seededDoc), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	fb, err := store.NewFileBackend(path, false)
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	s, err := store.Open(context.Background(), blockedRenameBackend{fb}, quiet)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return New(s, WithClock(func() time.Time { return fixedNow }))
}

func TestFileWriteFailureReturnsNoUser(t *testing.T) {
	repo := newBlockedFileRepo(t)
	u, err := repo.CreateUser(context.Background(), newUser("bob@example.com"))
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if u != nil {
		t.Fatalf("expected no user after a failed write, got %+v", u)
	}
}

func TestFileWriteFailureReturnsNoTeam(t *testing.T) {
	repo := newBlockedFileRepo(t)
	team, err := repo.CreateTeam(context.Background(), domain.NewTeam{Name: "core", OwnerID: 1})
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if team != nil {
		t.Fatalf("expected no team after a failed write, got %+v", team)
	}
}
