package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("server address = %q", cfg.Server.Address)
	}
	if cfg.JWT.Expiration != time.Hour {
		t.Errorf("jwt expiration = %v", cfg.JWT.Expiration)
	}
	if cfg.Session.LookupTimeout != 5*time.Second {
		t.Errorf("lookup timeout = %v", cfg.Session.LookupTimeout)
	}
	if cfg.Program.TotalWeeks != 12 {
		t.Errorf("total weeks = %d", cfg.Program.TotalWeeks)
	}
	if cfg.Database.Driver != "mongo" || !cfg.Session.RequireConfirmedEmail {
		t.Errorf("database driver = %q, require confirmed = %v", cfg.Database.Driver, cfg.Session.RequireConfirmedEmail)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("server:\n  address: \":9090\"\njwt:\n  secret: from-file\n  expiration: 30m\nprogram:\n  total_weeks: 8\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("ADMIN_EMAIL", "root@portal.io")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Address != ":9090" {
		t.Errorf("server address = %q", cfg.Server.Address)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Errorf("jwt secret = %q, env should win", cfg.JWT.Secret)
	}
	if cfg.JWT.Expiration != 30*time.Minute {
		t.Errorf("jwt expiration = %v", cfg.JWT.Expiration)
	}
	if cfg.Admin.Email != "root@portal.io" {
		t.Errorf("admin email = %q", cfg.Admin.Email)
	}
	if cfg.Program.TotalWeeks != 8 {
		t.Errorf("total weeks = %d", cfg.Program.TotalWeeks)
	}
}
