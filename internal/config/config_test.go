package config_test

import (
	"testing"

	"github.com/docvault/docfs/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DB_DATABASE", "docfs")
	t.Setenv("DB_APP_USER", "docfs_app")
	t.Setenv("AUTHZ_URL", "http://localhost:8080")
	t.Setenv("AUTHZ_CLIENT_ID", "client")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "3000" {
		t.Errorf("Expected default port 3000, got %s", cfg.Port)
	}
	if cfg.DBType != "mysql" {
		t.Errorf("Expected default db type mysql, got %s", cfg.DBType)
	}
	if cfg.StorageMethod != "db" {
		t.Errorf("Expected default storage method db, got %s", cfg.StorageMethod)
	}
	if cfg.StorageFanout != 4000 {
		t.Errorf("Expected default fanout 4000, got %d", cfg.StorageFanout)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORAGE_METHOD", "fs")
	t.Setenv("STORAGE_ROOT", "/var/lib/docfs")
	t.Setenv("STORAGE_FANOUT", "500")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StorageMethod != "fs" || cfg.StorageRoot != "/var/lib/docfs" || cfg.StorageFanout != 500 {
		t.Errorf("Unexpected storage config: %+v", cfg)
	}
}

func TestLoadValidation(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_DATABASE", "")
	if _, err := config.Load(); err == nil {
		t.Error("Expected error for missing DB_DATABASE")
	}

	setRequiredEnv(t)
	t.Setenv("STORAGE_METHOD", "tape")
	if _, err := config.Load(); err == nil {
		t.Error("Expected error for unknown storage method")
	}

	setRequiredEnv(t)
	t.Setenv("STORAGE_METHOD", "fs")
	if _, err := config.Load(); err == nil {
		t.Error("Expected error for fs storage without a root")
	}

	// sqlite skips the user requirement.
	setRequiredEnv(t)
	t.Setenv("STORAGE_METHOD", "db")
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DB_APP_USER", "")
	if _, err := config.Load(); err != nil {
		t.Errorf("Expected sqlite to pass without an app user, got %v", err)
	}
}
