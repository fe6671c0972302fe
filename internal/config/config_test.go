package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `{"debug": true, "database": {"path": "data/ordenes.db"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Backend != "local" || cfg.Catalog.Backend != "sqlite" || cfg.Renderer.Backend != "html" {
		t.Fatalf("unexpected backends: %+v %+v %+v", cfg.Storage, cfg.Catalog, cfg.Renderer)
	}
	if cfg.Finalization.RenderAttempts != 3 || cfg.Finalization.UploadAttempts != 3 {
		t.Fatalf("unexpected attempts: %+v", cfg.Finalization)
	}
	initial, max := cfg.Finalization.Backoff()
	if initial != 500*time.Millisecond || max != 5*time.Second {
		t.Fatalf("unexpected backoff: %v %v", initial, max)
	}
	if len(cfg.Finalization.RequiredEvidencePhases) != 0 {
		t.Fatalf("expected no required phases by default, got %v", cfg.Finalization.RequiredEvidencePhases)
	}
	if cfg.Events.SubjectPrefix != "ordenes" {
		t.Fatalf("unexpected subject prefix: %q", cfg.Events.SubjectPrefix)
	}
	if cfg.SignedURLTTL() != 24*time.Hour {
		t.Fatalf("unexpected signed url ttl: %v", cfg.SignedURLTTL())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `{"database": {"path": "data/ordenes.db"}, "jwt": {"secret": "file-secret"}}`)

	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "ordenes-docs")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("REQUIRED_EVIDENCE_PHASES", "before, after")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.JWT.Secret != "env-secret" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Storage.Backend != "s3" || cfg.Storage.Bucket != "ordenes-docs" {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	if !cfg.Events.Enabled || cfg.Events.URL != "nats://localhost:4222" {
		t.Fatalf("unexpected events: %+v", cfg.Events)
	}
	phases := cfg.Finalization.RequiredEvidencePhases
	if len(phases) != 2 || phases[0] != "BEFORE" || phases[1] != "AFTER" {
		t.Fatalf("unexpected phases: %v", phases)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing database", `{"debug": true}`},
		{"production without secret", `{"database": {"path": "x.db"}}`},
		{"s3 without bucket", `{"debug": true, "database": {"path": "x.db"}, "storage": {"backend": "s3"}}`},
		{"unknown catalog", `{"debug": true, "database": {"path": "x.db"}, "catalog": {"backend": "mongo"}}`},
		{"remote renderer without url", `{"debug": true, "database": {"path": "x.db"}, "renderer": {"backend": "remote"}}`},
		{"unknown phase", `{"debug": true, "database": {"path": "x.db"}, "finalization": {"requiredEvidencePhases": ["LATER"]}}`},
		{"backoff inverted", `{"debug": true, "database": {"path": "x.db"}, "finalization": {"initialBackoffMs": 900, "maxBackoffMs": 100}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("DATABASE_PATH", "data/env.db")
	t.Setenv("DEBUG", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetDatabasePath() != "data/env.db" || !cfg.Debug {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
