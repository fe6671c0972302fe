// Package config handles external configuration loading from JSON and environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Debug         bool          `json:"debug"`
	PublicBaseURL string        `json:"publicBaseUrl"`
	Server        Server        `json:"server"`
	Database      Database      `json:"database"`
	JWT           JWT           `json:"jwt"`
	Storage       Storage       `json:"storage"`
	AWS           AWS           `json:"aws"`
	Catalog       Catalog       `json:"catalog"`
	Renderer      Renderer      `json:"renderer"`
	Notifications Notifications `json:"notifications"`
	Events        Events        `json:"events"`
	Finalization  Finalization  `json:"finalization"`
}

// Server holds HTTP server configuration
type Server struct {
	Port         int    `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"readTimeout"`
	WriteTimeout int    `json:"writeTimeout"`
	MaxUploadMB  int    `json:"maxUploadMb"`
}

// Database holds database configuration
type Database struct {
	Path string `json:"path"`
}

// JWT holds the settings used to verify tokens issued by the identity service
type JWT struct {
	Secret string `json:"secret"`
	Issuer string `json:"issuer"`
}

// Storage selects and configures the object store backend
type Storage struct {
	Backend           string `json:"backend"` // local, s3
	LocalDir          string `json:"localDir"`
	PublicBaseURL     string `json:"publicBaseUrl"`
	Bucket            string `json:"bucket"`
	Prefix            string `json:"prefix"`
	SignedURLTTLHours int    `json:"signedUrlTtlHours"`
}

// AWS holds shared AWS SDK settings
type AWS struct {
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
}

// Catalog selects where service type activities are read from
type Catalog struct {
	Backend           string `json:"backend"` // sqlite, dynamodb
	ServiceTypesTable string `json:"serviceTypesTable"`
	ActivitiesTable   string `json:"activitiesTable"`
}

// Renderer configures document generation
type Renderer struct {
	Backend    string `json:"backend"` // html, remote
	RemoteURL  string `json:"remoteUrl"`
	TemplateID string `json:"templateId"`
}

// Notifications holds SMTP configuration
type Notifications struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

// Events holds NATS configuration
type Events struct {
	Enabled       bool   `json:"enabled"`
	URL           string `json:"url"`
	SubjectPrefix string `json:"subjectPrefix"`
}

// Finalization tunes retries and timeouts of the finalization pipeline
type Finalization struct {
	RenderAttempts         int      `json:"renderAttempts"`
	UploadAttempts         int      `json:"uploadAttempts"`
	InitialBackoffMs       int      `json:"initialBackoffMs"`
	MaxBackoffMs           int      `json:"maxBackoffMs"`
	RenderTimeoutSeconds   int      `json:"renderTimeoutSeconds"`
	UploadTimeoutSeconds   int      `json:"uploadTimeoutSeconds"`
	NotifyTimeoutSeconds   int      `json:"notifyTimeoutSeconds"`
	RequiredEvidencePhases []string `json:"requiredEvidencePhases"`
}

// Load reads configuration from the specified JSON file and overrides with environment variables
func Load(configPath string) (*Config, error) {
	var cfg Config

	cleanPath := filepath.Clean(configPath)

	data, err := os.ReadFile(cleanPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	// If file doesn't exist, we continue with empty config and rely on Env Vars

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides overrides config values with environment variables if set
func (c *Config) applyEnvOverrides() {
	if debug := os.Getenv("DEBUG"); debug != "" {
		c.Debug = debug == "true" || debug == "1"
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	if base := os.Getenv("PUBLIC_BASE_URL"); base != "" {
		c.PublicBaseURL = base
	}

	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}

	// JWT secret (critical for production)
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}

	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		c.Storage.Bucket = bucket
	}

	// Same variable names the AWS SDK uses
	if region := os.Getenv("AWS_REGION"); region != "" {
		c.AWS.Region = region
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		c.AWS.Endpoint = endpoint
	}
	if key := os.Getenv("AWS_ACCESS_KEY_ID"); key != "" {
		c.AWS.AccessKeyID = key
	}
	if secret := os.Getenv("AWS_SECRET_ACCESS_KEY"); secret != "" {
		c.AWS.SecretAccessKey = secret
	}

	if backend := os.Getenv("CATALOG_BACKEND"); backend != "" {
		c.Catalog.Backend = backend
	}

	if url := os.Getenv("RENDERER_URL"); url != "" {
		c.Renderer.Backend = "remote"
		c.Renderer.RemoteURL = url
	}

	if host := os.Getenv("SMTP_HOST"); host != "" {
		c.Notifications.Enabled = true
		c.Notifications.Host = host
	}
	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		c.Notifications.Password = pass
	}

	if url := os.Getenv("NATS_URL"); url != "" {
		c.Events.Enabled = true
		c.Events.URL = url
	}

	if phases := os.Getenv("REQUIRED_EVIDENCE_PHASES"); phases != "" {
		c.Finalization.RequiredEvidencePhases = splitList(phases)
	}
}

// applyDefaults fills values left empty by both the file and the environment
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 120
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 15
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "data/files"
	}
	if c.Storage.SignedURLTTLHours == 0 {
		c.Storage.SignedURLTTLHours = 24
	}
	if c.AWS.Region == "" {
		c.AWS.Region = "us-east-1"
	}
	if c.Catalog.Backend == "" {
		c.Catalog.Backend = "sqlite"
	}
	if c.Catalog.ServiceTypesTable == "" {
		c.Catalog.ServiceTypesTable = "service_types"
	}
	if c.Catalog.ActivitiesTable == "" {
		c.Catalog.ActivitiesTable = "activity_definitions"
	}
	if c.Renderer.Backend == "" {
		c.Renderer.Backend = "html"
	}
	if c.Renderer.TemplateID == "" {
		c.Renderer.TemplateID = "service_report"
	}
	if c.Notifications.Port == 0 {
		c.Notifications.Port = 587
	}
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = "ordenes"
	}

	f := &c.Finalization
	if f.RenderAttempts == 0 {
		f.RenderAttempts = 3
	}
	if f.UploadAttempts == 0 {
		f.UploadAttempts = 3
	}
	if f.InitialBackoffMs == 0 {
		f.InitialBackoffMs = 500
	}
	if f.MaxBackoffMs == 0 {
		f.MaxBackoffMs = 5000
	}
	if f.RenderTimeoutSeconds == 0 {
		f.RenderTimeoutSeconds = 30
	}
	if f.UploadTimeoutSeconds == 0 {
		f.UploadTimeoutSeconds = 30
	}
	if f.NotifyTimeoutSeconds == 0 {
		f.NotifyTimeoutSeconds = 10
	}
}

// validate checks that all required configuration values are present
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	cleanDBPath := filepath.Clean(c.Database.Path)
	if !filepath.IsLocal(cleanDBPath) && !filepath.IsAbs(cleanDBPath) {
		return fmt.Errorf("invalid database path: potential path traversal detected")
	}

	if c.JWT.Secret == "" || c.JWT.Secret == "CHANGE_THIS_SECRET_IN_PRODUCTION" {
		if !c.Debug {
			return fmt.Errorf("JWT secret must be changed for production")
		}
	}

	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	switch c.Catalog.Backend {
	case "sqlite", "dynamodb":
	default:
		return fmt.Errorf("unknown catalog backend: %s", c.Catalog.Backend)
	}

	switch c.Renderer.Backend {
	case "html":
	case "remote":
		if c.Renderer.RemoteURL == "" {
			return fmt.Errorf("renderer url is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown renderer backend: %s", c.Renderer.Backend)
	}

	if c.Notifications.Enabled && c.Notifications.From == "" {
		return fmt.Errorf("notifications sender address is required")
	}

	if c.Events.Enabled && c.Events.URL == "" {
		return fmt.Errorf("events url is required when events are enabled")
	}

	f := c.Finalization
	if f.RenderAttempts < 1 || f.UploadAttempts < 1 {
		return fmt.Errorf("finalization attempts must be at least 1")
	}
	if f.MaxBackoffMs < f.InitialBackoffMs {
		return fmt.Errorf("finalization max backoff must not be lower than the initial backoff")
	}
	for _, p := range f.RequiredEvidencePhases {
		switch p {
		case "BEFORE", "DURING", "AFTER":
		default:
			return fmt.Errorf("unknown evidence phase: %s", p)
		}
	}

	return nil
}

// Address returns the full server address (host:port)
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetDatabasePath returns the cleaned and validated database path
func (c *Config) GetDatabasePath() string {
	return filepath.Clean(c.Database.Path)
}

// SignedURLTTL returns how long signed document links stay valid
func (c *Config) SignedURLTTL() time.Duration {
	return time.Duration(c.Storage.SignedURLTTLHours) * time.Hour
}

// Backoff returns the initial and maximum retry backoff
func (f Finalization) Backoff() (time.Duration, time.Duration) {
	return time.Duration(f.InitialBackoffMs) * time.Millisecond, time.Duration(f.MaxBackoffMs) * time.Millisecond
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
