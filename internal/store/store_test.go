package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Mutairu-Lawal/pro-manage/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.json")
	backend, err := NewFileBackend(path, true)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	s, err := Open(context.Background(), backend, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestOpenSeedsEmptyDocument(t *testing.T) {
	s, path := newTestStore(t)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read seed: %v", err)
	}
	if string(raw) != `{"users":[],"teams":[]}` {
		t.Fatalf("unexpected seed %s", raw)
	}
	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Users == nil || doc.Teams == nil || len(doc.Users) != 0 || len(doc.Teams) != 0 {
		t.Fatalf("expected empty collections, got %+v", doc)
	}
}

func TestOpenKeepsExistingDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	existing := `{"users":[{"id":4,"name":"ada","email":"ada@example.com","role":"admin","password":"x","createdAt":"2024-01-01T00:00:00Z"}],"teams":[]}`
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	backend, err := NewFileBackend(path, false)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	s, err := Open(context.Background(), backend)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Users) != 1 || doc.Users[0].ID != 4 || doc.Users[0].Role != domain.RoleAdmin {
		t.Fatalf("unexpected users %+v", doc.Users)
	}
}

func TestReplaceThenLoadRoundTrips(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	doc := Document{
		Users: []domain.User{{ID: 1, Name: "ada", Email: "ada@example.com", Role: domain.RoleMember, PasswordHash: "hash"}},
		Teams: []domain.Team{{ID: 1, Name: "core", OwnerID: 1, Members: []domain.Member{{UserID: 1, Role: domain.RoleAdmin}}}},
	}
	if err := s.Replace(ctx, doc); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Users) != 1 || got.Users[0].Email != "ada@example.com" || got.Users[0].PasswordHash != "hash" {
		t.Fatalf("unexpected users %+v", got.Users)
	}
	if len(got.Teams) != 1 || !got.Teams[0].HasMember(1) || got.Teams[0].OwnerID != 1 {
		t.Fatalf("unexpected teams %+v", got.Teams)
	}
}

func TestLoadReadsLegacyKeys(t *testing.T) {
	s, path := newTestStore(t)
	legacy := `{"usersDB":[{"id":2,"name":"bob","email":"bob@example.com","role":"member","password":"x","createdAt":"2024-01-01T00:00:00Z"}],"teamsDB":[]}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Users) != 1 || doc.Users[0].ID != 2 {
		t.Fatalf("expected legacy user, got %+v", doc.Users)
	}

	if err := s.Replace(context.Background(), doc); err != nil {
		t.Fatalf("replace: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), "usersDB") || !strings.Contains(string(raw), `"users":[`) {
		t.Fatalf("expected current keys on write, got %s", raw)
	}
}

func TestLoadUnavailable(t *testing.T) {
	cases := map[string]func(path string) error{
		"missing": os.Remove,
		"invalid json": func(path string) error {
			return os.WriteFile(path, []byte("{not json"), 0o644)
		},
		"null document": func(path string) error {
			return os.WriteFile(path, []byte("null"), 0o644)
		},
		"array document": func(path string) error {
			return os.WriteFile(path, []byte("[]"), 0o644)
		},
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			s, path := newTestStore(t)
			if err := corrupt(path); err != nil {
				t.Fatalf("prepare: %v", err)
			}
			if _, err := s.Load(context.Background()); !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected ErrUnavailable, got %v", err)
			}
			if err := s.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected ping to fail with ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestUpdateAbortsOnMutatorError(t *testing.T) {
	s, path := newTestStore(t)
	before, _ := os.ReadFile(path)

	sentinel := errors.New("rejected")
	err := s.Update(context.Background(), func(doc *Document) error {
		doc.Users = append(doc.Users, domain.User{ID: 1})
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("expected mutator error unchanged, got %v", err)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Fatalf("document changed after aborted update: %s", after)
	}
}

func TestConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Update(ctx, func(doc *Document) error {
				doc.Users = append(doc.Users, domain.User{ID: int64(len(doc.Users) + 1)})
				return nil
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	doc, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Users) != writers {
		t.Fatalf("expected %d users, got %d", writers, len(doc.Users))
	}
	for i, u := range doc.Users {
		if u.ID != int64(i+1) {
			t.Fatalf("expected sequential ids, got %d at %d", u.ID, i)
		}
	}
}

func TestUpdateHonoursCancelledContext(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.writers.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer s.writers.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Update(ctx, func(*Document) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMetricsRecordOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	path := filepath.Join(t.TempDir(), "db.json")
	backend, err := NewFileBackend(path, false)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	s, err := Open(context.Background(), backend, WithRegisterer(reg))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	_ = os.Remove(path)
	_, _ = s.Load(context.Background())

	if got := testutil.ToFloat64(s.metrics.operations.WithLabelValues("load", "ok")); got != 1 {
		t.Fatalf("expected one successful load, got %v", got)
	}
	if got := testutil.ToFloat64(s.metrics.operations.WithLabelValues("load", "error")); got != 1 {
		t.Fatalf("expected one failed load, got %v", got)
	}

	// A second store on the same registry reuses the collectors.
	other, err := Open(context.Background(), backend, WithRegisterer(reg))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if other.metrics.operations != s.metrics.operations {
		t.Fatalf("expected shared collectors")
	}
}
