package database

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stwalsh4118/realty/internal/config"
	"github.com/stwalsh4118/realty/internal/logger"
)

// getTestConfig returns configuration for a local PostgreSQL instance.
func getTestConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		URL:      os.Getenv("DATABASE_URL"),
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		Name:     getEnvOrDefault("DB_NAME", "realty"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		PoolMin:  2,
		PoolMax:  5,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func TestMigrationURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@h:5432/db?sslmode=disable", "pgx5://u:p@h:5432/db?sslmode=disable"},
		{"postgresql://u:p@h/db", "pgx5://u:p@h/db"},
		{"pgx5://u:p@h/db", "pgx5://u:p@h/db"},
	}

	for _, tt := range tests {
		if got := MigrationURL(tt.in); got != tt.want {
			t.Errorf("MigrationURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEmbeddedMigrations_ArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("Failed to read embedded migrations: %v", err)
	}

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
			down := strings.TrimSuffix(e.Name(), ".up.sql") + ".down.sql"
			if _, err := fs.Stat(migrationFiles, "migrations/"+down); err != nil {
				t.Errorf("Missing down migration for %s", e.Name())
			}
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Errorf("Expected paired migrations, got %d up and %d down", ups, downs)
	}
}

func TestNewPostgresPool_Success(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := NewPostgresPool(ctx, getTestConfig())
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	defer db.Close()

	if db.Pool == nil {
		t.Error("Expected Pool to be initialized")
	}
	if db.Stats() == nil {
		t.Error("Expected stats to be available")
	}
}

func TestNewPostgresPool_InvalidHost(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	cfg := getTestConfig()
	cfg.URL = ""
	cfg.Host = "invalid-host-that-does-not-exist"

	if _, err := NewPostgresPool(ctx, cfg); err == nil {
		t.Error("Expected error when connecting to invalid host")
	}
}

func TestPing_AfterClose(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := NewPostgresPool(ctx, getTestConfig())
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}

	db.Close()
	// Close multiple times should not panic
	db.Close()

	if err := db.Ping(ctx); err == nil {
		t.Error("Expected ping to fail after pool is closed")
	}
}

func TestMigrator_UpIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	mg, err := NewMigrator(getTestConfig(), logger.Nop())
	if err != nil {
		t.Fatalf("Failed to create migrator: %v", err)
	}
	defer mg.Close()

	if err := mg.Up(); err != nil {
		t.Fatalf("First Up failed: %v", err)
	}
	if err := mg.Up(); err != nil {
		t.Fatalf("Second Up should be a no-op, got %v", err)
	}

	status, err := mg.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Version < 2 || status.Dirty {
		t.Errorf("Expected clean version >= 2, got %+v", status)
	}
}

func TestMigrator_DownRejectsZeroSteps(t *testing.T) {
	mg := &Migrator{log: logger.Nop()}
	if err := mg.Down(0); err == nil {
		t.Error("Expected error for zero steps")
	}
}
