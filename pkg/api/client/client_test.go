package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewNormalisesBaseURL(t *testing.T) {
	cli, err := New(" localhost:3030/ ")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cli.baseURL != "http://localhost:3030" {
		t.Fatalf("unexpected base url %q", cli.baseURL)
	}
	cli, err = New("")
	if err != nil || cli.baseURL != DefaultBaseURL {
		t.Fatalf("expected default base url, got %q %v", cli.baseURL, err)
	}
}

func TestLoginAndProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode login body: %v", err)
			}
			if body["email"] != "ada@example.com" || body["password"] != "Str0ng!pass" {
				t.Errorf("unexpected credentials %v", body)
			}
			_, _ = w.Write([]byte(`{"token":"tok"}`))
		case "/auth/profile":
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Errorf("unexpected authorization header %q", got)
			}
			_, _ = w.Write([]byte(`{"name":"ada","email":"ada@example.com","role":"member","createdAt":"2024-01-01T00:00:00Z"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cli, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	token, err := cli.Login(ctx, "ada@example.com", "Str0ng!pass")
	if err != nil || token != "tok" {
		t.Fatalf("login: %q %v", token, err)
	}
	profile, err := cli.Profile(ctx, token)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Name != "ada" || profile.Role != "member" || profile.CreatedAt.Year() != 2024 {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestCreateTeamDecodesMembers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/teams" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"Team Created","team":{"id":3,"name":"core","owner":1,"member":[{"1":"admin"}],"createdAt":"2024-01-01T00:00:00Z"}}`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	team, err := cli.CreateTeam(context.Background(), "tok", "core")
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	if team.ID != 3 || team.OwnerID != 1 || len(team.Members) != 1 || team.Members[0]["1"] != "admin" {
		t.Fatalf("unexpected team %+v", team)
	}
}

func TestAPIErrorCarriesValidationFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"validation failed","fields":[{"field":"email","message":"must be a valid email address"}]}`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	_, err := cli.Register(context.Background(), RegisterInput{Name: "ada", Email: "nope", Password: "x"})
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || len(apiErr.Fields) != 1 || apiErr.Fields[0].Field != "email" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if !strings.Contains(apiErr.Error(), "email: must be a valid email address") {
		t.Fatalf("unexpected message %q", apiErr.Error())
	}
}

func TestAPIErrorFallsBackToMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"too many requests"}`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	_, err := cli.ListTeams(context.Background(), "tok")
	var apiErr APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests || apiErr.Message != "too many requests" {
		t.Fatalf("unexpected error %v", err)
	}
}
