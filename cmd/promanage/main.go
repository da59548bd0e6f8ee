package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"golang.org/x/term"

	apiclient "github.com/Mutairu-Lawal/pro-manage/pkg/api/client"
)

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
}

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "register":
		err = commandRegister(args)
	case "login":
		err = commandLogin(args)
	case "logout":
		err = commandLogout()
	case "profile":
		err = commandProfile(args)
	case "team":
		err = commandTeam(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	role := fs.String("role", "", "Role (member|manager|admin)")
	apiBase := fs.String("api", "", "API base URL (default "+apiclient.DefaultBaseURL+")")
	fs.Parse(args)

	if strings.TrimSpace(*name) == "" {
		return errors.New("--name is required")
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := readSecret(*password)
	if err != nil {
		return err
	}

	cfg, _ := loadConfig()
	cfg.applyBase(*apiBase)
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	user, err := client.Register(ctx, apiclient.RegisterInput{Name: *name, Email: *email, Password: secret, Role: *role})
	if err != nil {
		return err
	}
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("user created: %d (%s, %s)\n", user.ID, user.Email, user.Role)
	return nil
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+apiclient.DefaultBaseURL+")")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := readSecret(*password)
	if err != nil {
		return err
	}

	cfg, _ := loadConfig()
	cfg.applyBase(*apiBase)
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	token, err := client.Login(ctx, *email, secret)
	if err != nil {
		return err
	}
	cfg.AccessToken = token
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("login successful")
	return nil
}

func commandLogout() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.AccessToken = ""
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func commandProfile(args []string) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	fs.Parse(args)

	cfg, token, err := requireLogin()
	if err != nil {
		return err
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	profile, err := client.Profile(ctx, token)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\t%s\t%s\n", profile.Name, profile.Email, profile.Role, profile.CreatedAt.Format(time.RFC3339))
	return nil
}

func commandTeam(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: promanage team [list|create|invite]")
	}
	sub := args[0]
	switch sub {
	case "list":
		return teamList(args[1:])
	case "create":
		return teamCreate(args[1:])
	case "invite":
		return teamInvite(args[1:])
	default:
		return fmt.Errorf("unknown team command: %s", sub)
	}
}

func teamList(args []string) error {
	fs := flag.NewFlagSet("team list", flag.ExitOnError)
	limit := fs.Int("limit", 0, "Maximum number of teams to display")
	fs.Parse(args)

	cfg, token, err := requireLogin()
	if err != nil {
		return err
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	teams, err := client.ListTeams(ctx, token)
	if err != nil {
		return err
	}
	count := len(teams)
	if *limit > 0 && *limit < count {
		count = *limit
	}
	for i := 0; i < count; i++ {
		t := teams[i]
		fmt.Printf("%d\t%s\t%d members\t%s\n", t.ID, t.Name, len(t.Members), t.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func teamCreate(args []string) error {
	fs := flag.NewFlagSet("team create", flag.ExitOnError)
	name := fs.String("name", "", "Team name")
	fs.Parse(args)

	if strings.TrimSpace(*name) == "" {
		return errors.New("--name is required")
	}
	cfg, token, err := requireLogin()
	if err != nil {
		return err
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	team, err := client.CreateTeam(ctx, token, *name)
	if err != nil {
		return err
	}
	fmt.Printf("team created: %d (%s)\n", team.ID, team.Name)
	return nil
}

func teamInvite(args []string) error {
	fs := flag.NewFlagSet("team invite", flag.ExitOnError)
	teamID := fs.Int64("team", 0, "Team identifier")
	fs.Parse(args)

	if *teamID <= 0 {
		return errors.New("--team is required")
	}
	cfg, token, err := requireLogin()
	if err != nil {
		return err
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	msg, err := client.InviteToTeam(ctx, token, *teamID)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func readSecret(flagValue string) (string, error) {
	secret := strings.TrimSpace(flagValue)
	if secret != "" {
		return secret, nil
	}
	fmt.Print("Password: ")
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

func requireLogin() (cliConfig, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cliConfig{}, "", err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return cliConfig{}, "", errors.New("please login first using 'promanage login'")
	}
	return cfg, token, nil
}

func (c *cliConfig) applyBase(flagValue string) {
	if strings.TrimSpace(flagValue) != "" {
		c.APIBaseURL = flagValue
	} else if c.APIBaseURL == "" {
		c.APIBaseURL = apiclient.DefaultBaseURL
	}
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: apiclient.DefaultBaseURL}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = apiclient.DefaultBaseURL
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "promanage", "config.json"), nil
}

func printUsage() {
	fmt.Printf("promanage CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	promanage register --name <name> --email user@example.com [--password secret] [--role member|manager|admin] [--api http://localhost:3030]
	promanage login --email user@example.com [--password secret] [--api http://localhost:3030]
	promanage logout
	promanage profile
	promanage team list [--limit N]
	promanage team create --name <name>
	promanage team invite --team <team-id>
	promanage version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
