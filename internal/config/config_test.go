package config

import (
	"testing"
	"time"
)

var allEnvVars = []string{
	"VAULTD_DATABASE_URL", "VAULTD_HTTP_ADDR", "VAULTD_NATS_URL",
	"VAULTD_JWT_SECRET", "VAULTD_KEY_ENCRYPTION_KEY",
	"VAULTD_TOKEN_TTL", "VAULTD_DEV_FAUCET",
	"VAULTD_SWEEP_INTERVAL", "VAULTD_SWEEPER_WALLET",
	"VAULTD_ARCHIVE_INTERVAL", "VAULTD_ARCHIVE_S3_BUCKET",
	"VAULTD_ARCHIVE_S3_ENDPOINT", "VAULTD_ARCHIVE_S3_REGION",
	"VAULTD_ARCHIVE_S3_KEY", "VAULTD_ARCHIVE_GIT_REPO",
	"VAULTD_ARCHIVE_GIT_FILE", "VAULTD_ARCHIVE_GIT_BRANCH",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name         string
		env          map[string]string
		wantErr      bool
		wantHTTPAddr string
		wantNATSURL  string
	}{
		{
			name:    "MissingDatabaseURL",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:         "Defaults",
			env:          map[string]string{"VAULTD_DATABASE_URL": "postgres://localhost/vaultd"},
			wantHTTPAddr: ":8080",
		},
		{
			name: "CustomAddresses",
			env: map[string]string{
				"VAULTD_DATABASE_URL": "postgres://db:5432/vaultd",
				"VAULTD_HTTP_ADDR":    ":3000",
				"VAULTD_NATS_URL":     "nats://localhost:4222",
			},
			wantHTTPAddr: ":3000",
			wantNATSURL:  "nats://localhost:4222",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.DatabaseURL != tc.env["VAULTD_DATABASE_URL"] {
				t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, tc.env["VAULTD_DATABASE_URL"])
			}
			if cfg.HTTPAddr != tc.wantHTTPAddr {
				t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, tc.wantHTTPAddr)
			}
			if cfg.NATSURL != tc.wantNATSURL {
				t.Errorf("NATSURL = %q, want %q", cfg.NATSURL, tc.wantNATSURL)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("VAULTD_DATABASE_URL", "postgres://localhost/vaultd")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", cfg.TokenTTL)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval = %v, want 30s", cfg.SweepInterval)
	}
	if cfg.SweeperWallet != "sweeper" {
		t.Errorf("SweeperWallet = %q, want %q", cfg.SweeperWallet, "sweeper")
	}
	if cfg.ArchiveInterval != 3*time.Minute {
		t.Errorf("ArchiveInterval = %v, want 3m", cfg.ArchiveInterval)
	}
	if cfg.ArchiveS3Region != "us-east-1" {
		t.Errorf("ArchiveS3Region = %q, want %q", cfg.ArchiveS3Region, "us-east-1")
	}
	if cfg.ArchiveS3Key != "vaultd/ledger.jsonl" {
		t.Errorf("ArchiveS3Key = %q, want %q", cfg.ArchiveS3Key, "vaultd/ledger.jsonl")
	}
	if cfg.ArchiveGitFile != "ledger.jsonl" {
		t.Errorf("ArchiveGitFile = %q, want %q", cfg.ArchiveGitFile, "ledger.jsonl")
	}
	if cfg.ArchiveGitBranch != "main" {
		t.Errorf("ArchiveGitBranch = %q, want %q", cfg.ArchiveGitBranch, "main")
	}
	if cfg.DevFaucet {
		t.Error("DevFaucet should default to false")
	}
}

func TestLoadCustom(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("VAULTD_DATABASE_URL", "postgres://localhost/vaultd")
	t.Setenv("VAULTD_JWT_SECRET", "hunter2")
	t.Setenv("VAULTD_KEY_ENCRYPTION_KEY", "kek-secret")
	t.Setenv("VAULTD_TOKEN_TTL", "1h")
	t.Setenv("VAULTD_DEV_FAUCET", "true")
	t.Setenv("VAULTD_SWEEP_INTERVAL", "5m")
	t.Setenv("VAULTD_SWEEPER_WALLET", "janitor")
	t.Setenv("VAULTD_ARCHIVE_INTERVAL", "10m")
	t.Setenv("VAULTD_ARCHIVE_S3_BUCKET", "my-bucket")
	t.Setenv("VAULTD_ARCHIVE_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("VAULTD_ARCHIVE_S3_REGION", "eu-west-1")
	t.Setenv("VAULTD_ARCHIVE_S3_KEY", "custom/key.jsonl")
	t.Setenv("VAULTD_ARCHIVE_GIT_REPO", "/tmp/repo")
	t.Setenv("VAULTD_ARCHIVE_GIT_FILE", "custom.jsonl")
	t.Setenv("VAULTD_ARCHIVE_GIT_BRANCH", "backup")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.JWTSecret != "hunter2" {
		t.Errorf("JWTSecret = %q", cfg.JWTSecret)
	}
	if cfg.KeyEncryptionKey != "kek-secret" {
		t.Errorf("KeyEncryptionKey = %q", cfg.KeyEncryptionKey)
	}
	if cfg.TokenTTL != time.Hour {
		t.Errorf("TokenTTL = %v, want 1h", cfg.TokenTTL)
	}
	if !cfg.DevFaucet {
		t.Error("DevFaucet should be enabled")
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Errorf("SweepInterval = %v, want 5m", cfg.SweepInterval)
	}
	if cfg.SweeperWallet != "janitor" {
		t.Errorf("SweeperWallet = %q", cfg.SweeperWallet)
	}
	if cfg.ArchiveInterval != 10*time.Minute {
		t.Errorf("ArchiveInterval = %v, want 10m", cfg.ArchiveInterval)
	}
	if cfg.ArchiveS3Bucket != "my-bucket" {
		t.Errorf("ArchiveS3Bucket = %q", cfg.ArchiveS3Bucket)
	}
	if cfg.ArchiveS3Endpoint != "http://minio:9000" {
		t.Errorf("ArchiveS3Endpoint = %q", cfg.ArchiveS3Endpoint)
	}
	if cfg.ArchiveS3Region != "eu-west-1" {
		t.Errorf("ArchiveS3Region = %q", cfg.ArchiveS3Region)
	}
	if cfg.ArchiveGitRepo != "/tmp/repo" {
		t.Errorf("ArchiveGitRepo = %q", cfg.ArchiveGitRepo)
	}
}

func TestLoadInvalidInterval(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("VAULTD_DATABASE_URL", "postgres://localhost/vaultd")
	t.Setenv("VAULTD_SWEEP_INTERVAL", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid VAULTD_SWEEP_INTERVAL")
	}
}

func TestLoadSweepDisabled(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("VAULTD_DATABASE_URL", "postgres://localhost/vaultd")
	t.Setenv("VAULTD_SWEEP_INTERVAL", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SweepInterval != 0 {
		t.Errorf("SweepInterval = %v, want 0 (disabled)", cfg.SweepInterval)
	}
}

func TestEnvOrDefault(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"EmptyUsesDefault", "TEST_ENVDEFAULT_EMPTY", "", "default-val", "default-val"},
		{"SetUsesEnv", "TEST_ENVDEFAULT_SET", "custom", "default-val", "custom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envVal)
			got := envOrDefault(tc.key, tc.fallback)
			if got != tc.want {
				t.Errorf("envOrDefault(%q, %q) = %q, want %q", tc.key, tc.fallback, got, tc.want)
			}
		})
	}
}
