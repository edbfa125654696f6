//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/profiles-api/apiserver/config"
	"github.com/profiles-api/apiserver/internal/db"
	"github.com/profiles-api/apiserver/internal/server"
	"go.uber.org/zap"
)

const (
	serverPort = 18080
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setTestEnv()

	if err := dockerCompose(ctx, root, "up", "-d", "postgres"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestAccountLifecycle(t *testing.T) {
	suffix := time.Now().UnixNano()
	adminEmail := fmt.Sprintf("admin_%d@Example.COM", suffix)
	userEmail := fmt.Sprintf("user_%d@example.com", suffix)
	password := "testpass123!"

	adminToken, admin, err := register(adminEmail, "Test Admin", password)
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	if want := fmt.Sprintf("admin_%d@example.com", suffix); admin.Email != want {
		t.Fatalf("unexpected normalized email: got %q want %q", admin.Email, want)
	}

	status, _, err := call(http.MethodGet, "/accounts", adminToken, nil)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 before promotion, got %d", status)
	}

	if err := promoteToSuperuser(admin.ID); err != nil {
		t.Fatalf("promote account: %v", err)
	}

	_, user, err := register(userEmail, "Test User", password)
	if err != nil {
		t.Fatalf("register user: %v", err)
	}

	status, body, err := call(http.MethodGet, fmt.Sprintf("/accounts/%d", user.ID), adminToken, nil)
	if err != nil || status != http.StatusOK {
		t.Fatalf("get account: status %d err %v body %s", status, err, body)
	}

	userPath := fmt.Sprintf("/accounts/%d", user.ID)
	status, body, err = call(http.MethodPost, userPath+"/permissions", adminToken, map[string]string{"permission": "accounts.view_account"})
	if err != nil || status != http.StatusOK {
		t.Fatalf("grant permission: status %d err %v body %s", status, err, body)
	}
	var granted accountResponse
	if err := json.Unmarshal(body, &granted); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if len(granted.Permissions) != 1 || granted.Permissions[0] != "accounts.view_account" {
		t.Fatalf("unexpected permissions: %v", granted.Permissions)
	}

	status, body, err = call(http.MethodPost, userPath+"/deactivate", adminToken, nil)
	if err != nil || status != http.StatusOK {
		t.Fatalf("deactivate: status %d err %v body %s", status, err, body)
	}

	if _, _, err := login(userEmail, password); err == nil {
		t.Fatalf("expected login of deactivated account to fail")
	}

	status, body, err = call(http.MethodDelete, userPath, adminToken, nil)
	if err != nil || status != http.StatusNoContent {
		t.Fatalf("delete: status %d err %v body %s", status, err, body)
	}

	status, _, err = call(http.MethodGet, userPath, adminToken, nil)
	if err != nil {
		t.Fatalf("get deleted account: %v", err)
	}
	if status != http.StatusNotFound {
		t.Fatalf("expected deleted account to be missing, got %d", status)
	}
}

func TestDuplicateEmailRejected(t *testing.T) {
	email := fmt.Sprintf("dup_%d@example.com", time.Now().UnixNano())
	if _, _, err := register(email, "First", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}

	status, _, err := call(http.MethodPost, "/auth/register", "", map[string]string{
		"email":    strings.Replace(email, "example.com", "EXAMPLE.com", 1),
		"name":     "Second",
		"password": "pw",
	})
	if err != nil {
		t.Fatalf("register duplicate: %v", err)
	}
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
}

type accountResponse struct {
	ID          int      `json:"id"`
	Email       string   `json:"email"`
	IsSuperuser bool     `json:"is_superuser"`
	Permissions []string `json:"permissions"`
}

type authResponse struct {
	Token string          `json:"token"`
	User  accountResponse `json:"user"`
}

func call(method, path, token string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func authenticate(path string, payload map[string]string, wantStatus int) (string, accountResponse, error) {
	status, body, err := call(http.MethodPost, path, "", payload)
	if err != nil {
		return "", accountResponse{}, err
	}
	if status != wantStatus {
		return "", accountResponse{}, fmt.Errorf("%s status %d: %s", path, status, strings.TrimSpace(string(body)))
	}

	var parsed authResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", accountResponse{}, err
	}
	if parsed.Token == "" {
		return "", accountResponse{}, fmt.Errorf("missing token in %s response", path)
	}
	return parsed.Token, parsed.User, nil
}

func register(email, name, password string) (string, accountResponse, error) {
	return authenticate("/auth/register", map[string]string{
		"email":    email,
		"name":     name,
		"password": password,
	}, http.StatusCreated)
}

func login(email, password string) (string, accountResponse, error) {
	return authenticate("/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusOK)
}

func openDB() (*sqlx.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return sqlx.Open("postgres", db.PostgresURL(cfg.Database))
}

func promoteToSuperuser(id int) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = conn.ExecContext(ctx, "UPDATE accounts SET is_staff = TRUE, is_superuser = TRUE, updated_at = NOW() WHERE id = $1", id)
	return err
}

func waitForPostgres(ctx context.Context) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.PostgresURL(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setTestEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("STORE_BACKEND", config.StoreBackendPostgres)
	_ = os.Setenv("MQ_BACKEND", config.MQBackendNone)
	_ = os.Setenv("AUTH_RATE_LIMIT", "1000")
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "profiles")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "profiles_db")
	_ = os.Setenv("DB_USE_SSL", "false")
}

func startServer(ctx context.Context) (*server.Server, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	srv, err := server.New(ctx, cfg, zap.NewNop())
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
