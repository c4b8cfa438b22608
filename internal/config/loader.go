package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies STXIDX_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known STXIDX_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.APIURL, "STXIDX_CHAIN_API_URL")
	setStr(&cfg.Chain.APIKey, "STXIDX_CHAIN_API_KEY")
	setStr(&cfg.Chain.Sender, "STXIDX_CHAIN_SENDER")
	setStr(&cfg.Chain.Address, "STXIDX_CHAIN_CONTRACT_ADDRESS")
	setStr(&cfg.Chain.RoundsContract, "STXIDX_CHAIN_ROUNDS_CONTRACT")
	setStr(&cfg.Chain.PoolsContract, "STXIDX_CHAIN_POOLS_CONTRACT")
	setDuration(&cfg.Chain.Timeout, "STXIDX_CHAIN_TIMEOUT")

	// ── Reconcile ──
	setDuration(&cfg.Reconcile.Interval, "STXIDX_RECONCILE_INTERVAL")
	setInt(&cfg.Reconcile.FetchConcurrency, "STXIDX_RECONCILE_FETCH_CONCURRENCY")
	setBool(&cfg.Reconcile.Placeholders, "STXIDX_RECONCILE_PLACEHOLDERS")

	// ── Server ──
	setInt(&cfg.Server.Port, "STXIDX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "STXIDX_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.ChainhookSecret, "STXIDX_SERVER_CHAINHOOK_SECRET")
	setInt(&cfg.Server.RateLimit, "STXIDX_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "STXIDX_SERVER_RATE_LIMIT_WINDOW")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "STXIDX_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "STXIDX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "STXIDX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "STXIDX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "STXIDX_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "STXIDX_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "STXIDX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "STXIDX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "STXIDX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "STXIDX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "STXIDX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "STXIDX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "STXIDX_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "STXIDX_POSTGRES_POOL_MAX_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "STXIDX_POSTGRES_RUN_MIGRATIONS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "STXIDX_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Retention, "STXIDX_ARCHIVE_RETENTION")
	setDuration(&cfg.Archive.Interval, "STXIDX_ARCHIVE_INTERVAL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "STXIDX_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "STXIDX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "STXIDX_S3_REGION")
	setStr(&cfg.S3.Bucket, "STXIDX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "STXIDX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "STXIDX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "STXIDX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "STXIDX_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.Title, "STXIDX_NOTIFY_TITLE")
	setStr(&cfg.Notify.TelegramToken, "STXIDX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "STXIDX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "STXIDX_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "STXIDX_LOG_LEVEL")
	setStr(&cfg.LogFormat, "STXIDX_LOG_FORMAT")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
