package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	Grading   GradingConfig   `mapstructure:"grading"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	MigrateOnly bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string `mapstructure:"driver"` // mysql | sqlite
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	// SQLitePath is used when Driver is sqlite; ":memory:" is accepted.
	SQLitePath string `mapstructure:"sqlite_path"`
	LogLevel   string `mapstructure:"log_level"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type                 string `mapstructure:"type"`
	LocalPath            string `mapstructure:"local_path"`
	LocalUploadURL       string `mapstructure:"local_upload_url"`
	MinioEndpoint        string `mapstructure:"minio_endpoint"`
	MinioAccessID        string `mapstructure:"minio_access_key"`
	MinioSecret          string `mapstructure:"minio_secret_key"`
	MinioBucket          string `mapstructure:"minio_bucket"`
	MinioSecure          bool   `mapstructure:"minio_secure"`
	OSSEndpoint          string `mapstructure:"oss_endpoint"`
	OSSAccessKey         string `mapstructure:"oss_access_key"`
	OSSSecretKey         string `mapstructure:"oss_secret_key"`
	OSSBucket            string `mapstructure:"oss_bucket"`
	PresignExpiryMinutes int    `mapstructure:"presign_expiry_minutes"`
	MaxUploadMB          int64  `mapstructure:"max_upload_mb"`
}

// LogConfig 日志输出与滚动设置，Level 为空时按 server.mode 决定
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// GradingConfig holds the grading policy knobs of the assessment engine.
type GradingConfig struct {
	PassingScore           float64 `mapstructure:"passing_score"`
	ReviewedAttemptLimit   int     `mapstructure:"reviewed_attempt_limit"`
	SummaryCacheTTLSeconds int     `mapstructure:"summary_cache_ttl_seconds"`
	UnlockOnExhausted      bool    `mapstructure:"unlock_on_exhausted"`
	DefaultCombineStrategy string  `mapstructure:"default_combine_strategy"`
	LegacyTitleOrdering    bool    `mapstructure:"legacy_title_ordering"`
}

// SummaryCacheTTL returns the grade summary cache window, never above 5s.
func (g GradingConfig) SummaryCacheTTL() time.Duration {
	ttl := g.SummaryCacheTTLSeconds
	if ttl < 0 {
		ttl = 0
	}
	if ttl > 5 {
		ttl = 5
	}
	return time.Duration(ttl) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("storage.local_upload_url", "/api/uploads")
	v.SetDefault("storage.presign_expiry_minutes", 15)
	v.SetDefault("storage.max_upload_mb", 50)
	v.SetDefault("grading.passing_score", 3.0)
	v.SetDefault("grading.reviewed_attempt_limit", 3)
	v.SetDefault("grading.summary_cache_ttl_seconds", 5)
	v.SetDefault("grading.unlock_on_exhausted", true)
	v.SetDefault("grading.default_combine_strategy", "mean")
	v.SetDefault("grading.legacy_title_ordering", true)
	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("COURSE_ENGINE")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Log
	v.BindEnv("log.level", "LOG_LEVEL")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Grading
	v.BindEnv("grading.unlock_on_exhausted", "GRADING_UNLOCK_ON_EXHAUSTED")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate checks settings that would otherwise fail late at request time.
func (c *Config) Validate() error {
	// 生产环境校验 JWT Secret 强度
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	if c.Grading.PassingScore < 0 || c.Grading.PassingScore > 5 {
		return fmt.Errorf("grading.passing_score %v outside [0,5]", c.Grading.PassingScore)
	}
	if c.Grading.ReviewedAttemptLimit < 1 {
		return fmt.Errorf("grading.reviewed_attempt_limit must be at least 1, got %d", c.Grading.ReviewedAttemptLimit)
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	return nil
}
