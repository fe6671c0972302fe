package awscfg

import (
	"context"
	"testing"

	appconfig "ordenapp/internal/config"
)

func TestLoad_StaticCredentialsAndEndpoint(t *testing.T) {
	cfg, err := Load(context.Background(), appconfig.AWS{
		Region:          "sa-east-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "local",
		SecretAccessKey: "local",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Region != "sa-east-1" {
		t.Fatalf("expected region sa-east-1, got %s", cfg.Region)
	}
	if cfg.BaseEndpoint == nil || *cfg.BaseEndpoint != "http://localhost:4566" {
		t.Fatalf("expected base endpoint, got %v", cfg.BaseEndpoint)
	}

	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "local" || creds.SecretAccessKey != "local" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}
