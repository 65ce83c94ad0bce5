package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config captures application runtime configuration. Values come from an
// optional YAML file and the environment; the environment wins.
type Config struct {
	App         AppConfig         `yaml:"app"`
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Auth        AuthConfig        `yaml:"auth"`
	Batch       BatchConfig       `yaml:"batch"`
	Assets      AssetsConfig      `yaml:"assets"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Log         LogConfig         `yaml:"log"`
}

type AppConfig struct {
	Name string `yaml:"name" env:"APP_NAME" env-default:"WalletService"`
	Env  string `yaml:"env"  env:"APP_ENV"  env-default:"development"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"             env:"PORT"                    env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"        env-default:"10s"`
	BodyLimitBytes  int           `yaml:"body_limit_bytes" env:"SERVER_BODY_LIMIT_BYTES" env-default:"10485760"`
}

type DatabaseConfig struct {
	URL         string `yaml:"url"          env:"DATABASE_URL"`
	MaxConns    int32  `yaml:"max_conns"    env:"DATABASE_MAX_CONNS"    env-default:"20"`
	MinConns    int32  `yaml:"min_conns"    env:"DATABASE_MIN_CONNS"    env-default:"2"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"DATABASE_AUTO_MIGRATE" env-default:"true"`
}

type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	Issuer    string        `yaml:"issuer"     env:"AUTH_JWT_ISSUER" env-default:"wallet-service"`
	AccessTTL time.Duration `yaml:"access_ttl" env:"AUTH_ACCESS_TTL" env-default:"1h"`
}

// BatchConfig bounds the CSV pipelines.
type BatchConfig struct {
	UploadDir          string        `yaml:"upload_dir"            env:"BATCH_UPLOAD_DIR"            env-default:"./uploads"`
	MaxRows            int           `yaml:"max_rows"              env:"BATCH_MAX_ROWS"              env-default:"5000"`
	RowTimeout         time.Duration `yaml:"row_timeout"           env:"BATCH_ROW_TIMEOUT"           env-default:"10s"`
	ParseTimeout       time.Duration `yaml:"parse_timeout"         env:"BATCH_PARSE_TIMEOUT"         env-default:"30s"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute" env:"BATCH_RATE_LIMIT_PER_MINUTE" env-default:"10"`
}

// AssetsConfig selects where wallet logo and cover images are stored.
type AssetsConfig struct {
	Backend       string `yaml:"backend"         env:"ASSETS_BACKEND"         env-default:"disk"`
	Bucket        string `yaml:"bucket"          env:"ASSETS_BUCKET"`
	Region        string `yaml:"region"          env:"ASSETS_REGION"          env-default:"us-east-1"`
	PublicBaseURL string `yaml:"public_base_url" env:"ASSETS_PUBLIC_BASE_URL" env-default:"http://localhost:8080/assets"`
	Dir           string `yaml:"dir"             env:"ASSETS_DIR"             env-default:"./assets"`
}

type IdempotencyConfig struct {
	TTL time.Duration `yaml:"ttl" env:"IDEMPOTENCY_TTL" env-default:"24h"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// Load reads configuration from CONFIG_PATH (when the file exists) and the
// environment, then validates it.
func Load() (Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the settings that have no sensible default.
func (c Config) Validate() error {
	if !c.IsDev() {
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.App.Env)
		}
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.App.Env)
		}
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}
	switch c.Assets.Backend {
	case "disk":
	case "s3":
		if c.Assets.Bucket == "" {
			return fmt.Errorf("ASSETS_BUCKET must be set for the s3 asset backend")
		}
	default:
		return fmt.Errorf("unknown ASSETS_BACKEND %q", c.Assets.Backend)
	}
	if c.Batch.MaxRows <= 0 {
		return fmt.Errorf("BATCH_MAX_ROWS must be > 0 (got %d)", c.Batch.MaxRows)
	}
	if c.Batch.RowTimeout <= 0 || c.Batch.ParseTimeout <= 0 {
		return fmt.Errorf("batch timeouts must be positive")
	}
	return nil
}

// IsDev reports whether the service runs without mandatory backing stores.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.App.Env) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Server.Port, ":") {
		return c.Server.Port
	}
	return fmt.Sprintf(":%s", c.Server.Port)
}
