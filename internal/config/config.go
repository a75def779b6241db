// Package config loads gateway configuration from the environment the
// way the teacher's config package does: godotenv for an optional
// .env file, typed getEnv* helpers with defaults, and a Validate step
// that fails fast on missing production secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ShadowAccountPolicy binds one shadow account number to its copy-rule
// inputs read from the environment (full CopyRule rows still live in
// the reference cache's seed file; this is only the session-routing
// half: which FIX session a shadow account's orders go out on).
type ShadowAccountPolicy struct {
	AccountNumber string
	SessionID     string
	Route         string
}

// Config holds all gateway configuration.
type Config struct {
	Environment string

	// Primary drop-copy session this gateway consumes.
	PrimarySession          string
	DropCopySenderCompID    string
	DropCopyTargetCompID    string
	PrimaryAccount          string

	// Shadow order-entry sessions this gateway emits onto.
	ShadowSessions  []string
	ShadowAccounts  []string
	ShadowPolicies  []ShadowAccountPolicy

	ClOrdIDPrefix string

	LogonUsername string
	logonPassword string // decrypted only on demand via LogonPassword()

	LocateTimeoutSeconds int
	WorkerPoolSize       int

	MetricsAddr           string
	ReferenceDataSeedPath string
	LocateRiskWebhookURL  string

	OpsAlertTelegramBotToken string
	OpsAlertTelegramChatID   string

	PostgresDSN string
	RedisAddr   string

	MasterEncryptionKey string

	credentials *credentialCodec
}

// Load reads configuration from the process environment, optionally
// seeded by a .env file in the working directory (absence is not an
// error, matching the teacher's godotenv.Load() usage).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),

		PrimarySession:       getEnv("PRIMARY_SESSION", ""),
		DropCopySenderCompID: getEnv("DROPCOPY_SENDER_COMP_ID", ""),
		DropCopyTargetCompID: getEnv("DROPCOPY_TARGET_COMP_ID", ""),
		PrimaryAccount:       getEnv("PRIMARY_ACCOUNT", ""),

		ShadowSessions: getEnvAsSlice("SHADOW_SESSIONS", nil, ","),
		ShadowAccounts: getEnvAsSlice("SHADOW_ACCOUNTS", nil, ","),

		ClOrdIDPrefix: getEnv("CLORDID_PREFIX", "COPY-"),

		LogonUsername: getEnv("LOGON_USERNAME", ""),
		logonPassword: getEnv("LOGON_PASSWORD", ""),

		LocateTimeoutSeconds: getEnvAsInt("LOCATE_TIMEOUT_SECONDS", 30),
		WorkerPoolSize:       getEnvAsInt("WORKER_POOL_SIZE", 8),

		MetricsAddr:           getEnv("METRICS_ADDR", ":9102"),
		ReferenceDataSeedPath: getEnv("REFERENCE_DATA_SEED_PATH", "./configs/reference_seed.yaml"),
		LocateRiskWebhookURL:  getEnv("LOCATE_RISK_WEBHOOK_URL", ""),

		OpsAlertTelegramBotToken: getEnv("OPS_ALERT_TELEGRAM_BOT_TOKEN", ""),
		OpsAlertTelegramChatID:   getEnv("OPS_ALERT_TELEGRAM_CHAT_ID", ""),

		PostgresDSN: getEnv("POSTGRES_DSN", ""),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),

		MasterEncryptionKey: getEnv("MASTER_ENCRYPTION_KEY", ""),
	}

	cfg.ShadowPolicies = buildShadowPolicies(cfg.ShadowAccounts, cfg.ShadowSessions)

	if cfg.MasterEncryptionKey != "" {
		codec, err := newCredentialCodec(cfg.MasterEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("building credential codec: %w", err)
		}
		cfg.credentials = codec
		encrypted, err := codec.encrypt(cfg.logonPassword)
		if err != nil {
			return nil, fmt.Errorf("encrypting logon password at rest: %w", err)
		}
		cfg.logonPassword = encrypted
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildShadowPolicies zips parallel SHADOW_ACCOUNTS/SHADOW_SESSIONS env
// lists into policies; a shorter sessions list reuses its last entry
// for the remaining accounts (single order-entry session, many shadow
// accounts is the common deployment shape).
func buildShadowPolicies(accounts, sessions []string) []ShadowAccountPolicy {
	if len(accounts) == 0 {
		return nil
	}
	policies := make([]ShadowAccountPolicy, 0, len(accounts))
	for i, acct := range accounts {
		sessionID := ""
		if len(sessions) > 0 {
			idx := i
			if idx >= len(sessions) {
				idx = len(sessions) - 1
			}
			sessionID = sessions[idx]
		}
		policies = append(policies, ShadowAccountPolicy{
			AccountNumber: strings.TrimSpace(acct),
			SessionID:     strings.TrimSpace(sessionID),
		})
	}
	return policies
}

// LogonPassword returns the plaintext order-entry session password,
// decrypting it from the at-rest ciphertext if a master encryption key
// was configured; the plaintext is never cached beyond the caller's use.
func (c *Config) LogonPassword() (string, error) {
	if c.credentials == nil {
		return c.logonPassword, nil
	}
	return c.credentials.decrypt(c.logonPassword)
}

// Validate fails fast on missing required production settings, the
// same pattern the teacher's Config.Validate uses.
func (c *Config) Validate() error {
	if c.PrimarySession == "" {
		return fmt.Errorf("PRIMARY_SESSION is required")
	}
	if len(c.ShadowAccounts) == 0 {
		return fmt.Errorf("SHADOW_ACCOUNTS must name at least one shadow account")
	}
	if c.Environment == "production" {
		if c.MasterEncryptionKey == "" {
			return fmt.Errorf("MASTER_ENCRYPTION_KEY is required in production")
		}
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required in production")
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	v := getEnv(key, "")
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	v := getEnv(key, "")
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
