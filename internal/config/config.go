package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DatabaseURL string // VAULTD_DATABASE_URL (required)
	HTTPAddr    string // VAULTD_HTTP_ADDR (default ":8080")
	NATSURL     string // VAULTD_NATS_URL (optional, empty = no events)
	JWTSecret   string // VAULTD_JWT_SECRET (optional, empty = auth disabled)

	// KeyEncryptionKey seals generated agent keys at rest. Empty disables
	// the key generation endpoint.
	KeyEncryptionKey string // VAULTD_KEY_ENCRYPTION_KEY

	// TokenTTL bounds tokens minted by the serve process.
	TokenTTL time.Duration // VAULTD_TOKEN_TTL (default 24h)

	// DevFaucet enables the unauthenticated balance faucet. Never set it
	// outside development.
	DevFaucet bool // VAULTD_DEV_FAUCET ("true" enables)

	// Sweeper settings
	SweepInterval time.Duration // VAULTD_SWEEP_INTERVAL (default 30s; 0 = disabled)
	SweeperWallet string        // VAULTD_SWEEPER_WALLET (default "sweeper")

	// Archive settings
	ArchiveInterval   time.Duration // VAULTD_ARCHIVE_INTERVAL (default 3m; 0 = disabled)
	ArchiveS3Bucket   string        // VAULTD_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string        // VAULTD_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // VAULTD_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Key      string        // VAULTD_ARCHIVE_S3_KEY (default "vaultd/ledger.jsonl")
	ArchiveGitRepo    string        // VAULTD_ARCHIVE_GIT_REPO (enables git when set; path to clone)
	ArchiveGitFile    string        // VAULTD_ARCHIVE_GIT_FILE (default "ledger.jsonl")
	ArchiveGitBranch  string        // VAULTD_ARCHIVE_GIT_BRANCH (default "main")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:       os.Getenv("VAULTD_DATABASE_URL"),
		HTTPAddr:          envOrDefault("VAULTD_HTTP_ADDR", ":8080"),
		NATSURL:           os.Getenv("VAULTD_NATS_URL"),
		JWTSecret:         os.Getenv("VAULTD_JWT_SECRET"),
		KeyEncryptionKey:  os.Getenv("VAULTD_KEY_ENCRYPTION_KEY"),
		DevFaucet:         os.Getenv("VAULTD_DEV_FAUCET") == "true",
		SweeperWallet:     envOrDefault("VAULTD_SWEEPER_WALLET", "sweeper"),
		ArchiveS3Bucket:   os.Getenv("VAULTD_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("VAULTD_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("VAULTD_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Key:      envOrDefault("VAULTD_ARCHIVE_S3_KEY", "vaultd/ledger.jsonl"),
		ArchiveGitRepo:    os.Getenv("VAULTD_ARCHIVE_GIT_REPO"),
		ArchiveGitFile:    envOrDefault("VAULTD_ARCHIVE_GIT_FILE", "ledger.jsonl"),
		ArchiveGitBranch:  envOrDefault("VAULTD_ARCHIVE_GIT_BRANCH", "main"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("VAULTD_DATABASE_URL is required")
	}

	var err error
	if c.TokenTTL, err = durationEnv("VAULTD_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if c.SweepInterval, err = durationEnv("VAULTD_SWEEP_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if c.ArchiveInterval, err = durationEnv("VAULTD_ARCHIVE_INTERVAL", 3*time.Minute); err != nil {
		return nil, err
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
