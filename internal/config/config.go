package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBackendDatabase = "database"
	StoreBackendMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// MaxActionBodyBytes caps POST /api/actions bodies, including base64 source images.
	MaxActionBodyBytes int64

	Observability ObservabilityConfig

	StoreBackend      string
	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Ledger    LedgerConfig
	Assets    AssetConfig
	Gateway   GatewayConfig
	Auth      AuthConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Alert     AlertConfig
	Bootstrap BootstrapConfig
	Reconcile ReconcileConfig

	FeaturesPath string
}

type LedgerConfig struct {
	BalancePolicy     string
	AdjustmentLogging string
}

type AssetConfig struct {
	Backend       string
	Bucket        string
	SigningKey    string
	PublicBaseURL string
	FreshTTL      time.Duration
	HistoryTTL    time.Duration

	S3 S3Config

	GCSCredentialsFile string
	GCSSignerEmail     string

	AzureAccount string
	AzureKey     string
}

type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

type GatewayConfig struct {
	Mode         string
	BaseURL      string
	APIKey       string
	StageTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled          bool
	ActionsPerMinute float64
	Burst            int
	SessionLockTTL   time.Duration
}

// BootstrapConfig seeds an approved admin account on startup when AdminEmail is set.
type BootstrapConfig struct {
	AdminEmail string
	AdminGrant int64
}

type ObservabilityConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OtelEndpoint  string
	OtelProtocol  string
	SamplingRatio float64
}

// ReconcileConfig drives the background sweep that checks every account for ledger drift.
type ReconcileConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
	Timeout   time.Duration
}

type AlertConfig struct {
	SlackWebhookURL string
	SlackChannel    string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	redisAddr := strings.TrimSpace(getenv("REDIS_ADDR", ""))

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "atelier"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),

		MaxActionBodyBytes: int64(getenvInt("ACTION_MAX_BODY_BYTES", 16<<20)),

		Observability: ObservabilityConfig{
			LogLevel:      strings.ToLower(getenv("LOG_LEVEL", "info")),
			LogFormat:     strings.ToLower(getenv("LOG_FORMAT", "json")),
			OtelEnabled:   getenvBool("OTEL_ENABLED", false),
			OtelEndpoint:  getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			OtelProtocol:  strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		StoreBackend:      normalizeStoreBackend(getenv("STORE_BACKEND", StoreBackendDatabase)),
		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "atelier"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "atelier.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		Ledger: LedgerConfig{
			BalancePolicy:     strings.ToLower(getenv("LEDGER_BALANCE_POLICY", "allow_negative")),
			AdjustmentLogging: strings.ToLower(getenv("LEDGER_ADJUSTMENT_LOGGING", "symmetric")),
		},
		Assets: AssetConfig{
			Backend:       strings.ToLower(getenv("ASSET_BACKEND", "local")),
			Bucket:        strings.TrimSpace(getenv("ASSET_BUCKET", "atelier-artifacts")),
			SigningKey:    strings.TrimSpace(getenv("ASSET_SIGNING_KEY", "")),
			PublicBaseURL: strings.TrimRight(getenv("ASSET_PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			FreshTTL:      getenvDuration("ASSET_FRESH_TTL", time.Hour),
			HistoryTTL:    getenvDuration("ASSET_HISTORY_TTL", 7*24*time.Hour),
			S3: S3Config{
				Region:          getenv("S3_REGION", "us-east-1"),
				Endpoint:        strings.TrimSpace(getenv("S3_ENDPOINT", "")),
				AccessKeyID:     strings.TrimSpace(getenv("S3_ACCESS_KEY_ID", "")),
				SecretAccessKey: strings.TrimSpace(getenv("S3_SECRET_ACCESS_KEY", "")),
				ForcePathStyle:  getenvBool("S3_FORCE_PATH_STYLE", false),
			},
			GCSCredentialsFile: strings.TrimSpace(getenv("GCS_CREDENTIALS_FILE", "")),
			GCSSignerEmail:     strings.TrimSpace(getenv("GCS_SIGNER_EMAIL", "")),
			AzureAccount:       strings.TrimSpace(getenv("AZURE_STORAGE_ACCOUNT", "")),
			AzureKey:           strings.TrimSpace(getenv("AZURE_STORAGE_KEY", "")),
		},
		Gateway: GatewayConfig{
			Mode:         strings.ToLower(getenv("GATEWAY_MODE", "fake")),
			BaseURL:      strings.TrimRight(getenv("GATEWAY_BASE_URL", ""), "/"),
			APIKey:       strings.TrimSpace(getenv("GATEWAY_API_KEY", "")),
			StageTimeout: getenvDuration("GATEWAY_STAGE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
			Issuer:    strings.TrimSpace(getenv("AUTH_JWT_ISSUER", "")),
		},
		Redis: RedisConfig{
			Addr:     redisAddr,
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:          getenvBool("RATE_LIMIT_ENABLED", redisAddr != ""),
			ActionsPerMinute: getenvFloat("RATE_LIMIT_ACTIONS_PER_MINUTE", 30),
			Burst:            getenvInt("RATE_LIMIT_BURST", 5),
			SessionLockTTL:   getenvDuration("CHAT_SESSION_LOCK_TTL", 2*time.Minute),
		},
		Alert: AlertConfig{
			SlackWebhookURL: strings.TrimSpace(getenv("ALERT_SLACK_WEBHOOK_URL", "")),
			SlackChannel:    strings.TrimSpace(getenv("ALERT_SLACK_CHANNEL", "")),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail: strings.ToLower(strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_EMAIL", ""))),
			AdminGrant: int64(getenvInt("BOOTSTRAP_ADMIN_GRANT", 100000)),
		},
		Reconcile: ReconcileConfig{
			Enabled:   getenvBool("RECONCILE_ENABLED", true),
			Interval:  getenvDuration("RECONCILE_INTERVAL", time.Hour),
			BatchSize: getenvInt("RECONCILE_BATCH_SIZE", 100),
			Timeout:   getenvDuration("RECONCILE_TIMEOUT", 5*time.Minute),
		},
		FeaturesPath: strings.TrimSpace(getenv("FEATURES_CONFIG_PATH", "")),
	}

	return cfg
}

func (c Config) UsesDatabase() bool {
	return c.StoreBackend == StoreBackendDatabase
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func normalizeStoreBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StoreBackendMemory:
		return StoreBackendMemory
	default:
		return StoreBackendDatabase
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
