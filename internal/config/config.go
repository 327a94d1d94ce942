package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Mail      MailConfig      `mapstructure:"mail"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	FanOut    FanOutConfig    `mapstructure:"fanout"`
	Board     BoardConfig     `mapstructure:"board"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Environment  string        `mapstructure:"environment"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type WorkerConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxRetries   int           `mapstructure:"max_retries"`
	Queues       []string      `mapstructure:"queues"`
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	BCryptCost      int           `mapstructure:"bcrypt_cost"`
}

type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	RequestsPerMin  int           `mapstructure:"requests_per_minute"`
	BurstSize       int           `mapstructure:"burst_size"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// BaseURL prefixes notification links in emails.
	BaseURL string `mapstructure:"base_url"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

const (
	FanOutInline = "inline"
	FanOutAsync  = "async"
	FanOutQueue  = "queue"
)

type FanOutConfig struct {
	Mode string `mapstructure:"mode"`
}

type BoardConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// WarmLimit caps how many recently updated boards are cached at startup.
	WarmLimit int `mapstructure:"warm_limit"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"server.host":                    "HOST",
	"server.port":                    "PORT",
	"server.read_timeout":            "READ_TIMEOUT",
	"server.write_timeout":           "WRITE_TIMEOUT",
	"server.idle_timeout":            "IDLE_TIMEOUT",
	"server.environment":             "ENVIRONMENT",
	"server.cors_origins":            "CORS_ORIGINS",
	"database.driver":                "DB_DRIVER",
	"database.host":                  "DB_HOST",
	"database.port":                  "DB_PORT",
	"database.user":                  "DB_USER",
	"database.password":              "DB_PASSWORD",
	"database.name":                  "DB_NAME",
	"database.ssl_mode":              "DB_SSL_MODE",
	"database.sqlite_path":           "DB_SQLITE_PATH",
	"database.max_open_conns":        "DB_MAX_OPEN_CONNS",
	"database.max_idle_conns":        "DB_MAX_IDLE_CONNS",
	"database.conn_max_lifetime":     "DB_CONN_MAX_LIFETIME",
	"database.conn_max_idle_time":    "DB_CONN_MAX_IDLE_TIME",
	"redis.enabled":                  "REDIS_ENABLED",
	"redis.host":                     "REDIS_HOST",
	"redis.port":                     "REDIS_PORT",
	"redis.password":                 "REDIS_PASSWORD",
	"redis.db":                       "REDIS_DB",
	"redis.pool_size":                "REDIS_POOL_SIZE",
	"redis.min_idle_conns":           "REDIS_MIN_IDLE_CONNS",
	"redis.max_retries":              "REDIS_MAX_RETRIES",
	"redis.dial_timeout":             "REDIS_DIAL_TIMEOUT",
	"redis.read_timeout":             "REDIS_READ_TIMEOUT",
	"redis.write_timeout":            "REDIS_WRITE_TIMEOUT",
	"worker.concurrency":             "WORKER_CONCURRENCY",
	"worker.poll_interval":           "WORKER_POLL_INTERVAL",
	"worker.max_retries":             "WORKER_MAX_RETRIES",
	"auth.jwt_secret":                "JWT_SECRET",
	"auth.issuer":                    "JWT_ISSUER",
	"auth.access_token_ttl":          "ACCESS_TOKEN_TTL",
	"auth.refresh_token_ttl":         "REFRESH_TOKEN_TTL",
	"auth.bcrypt_cost":               "BCRYPT_COST",
	"rate_limit.enabled":             "RATE_LIMIT_ENABLED",
	"rate_limit.requests_per_minute": "RATE_LIMIT_RPM",
	"rate_limit.burst_size":          "RATE_LIMIT_BURST",
	"rate_limit.cleanup_interval":    "RATE_LIMIT_CLEANUP",
	"mail.enabled":                   "SMTP_ENABLED",
	"mail.host":                      "SMTP_HOST",
	"mail.port":                      "SMTP_PORT",
	"mail.username":                  "SMTP_USERNAME",
	"mail.password":                  "SMTP_PASSWORD",
	"mail.from":                      "SMTP_FROM",
	"mail.base_url":                  "APP_BASE_URL",
	"logging.level":                  "LOG_LEVEL",
	"fanout.mode":                    "FANOUT_MODE",
	"board.cache_ttl":                "BOARD_CACHE_TTL",
	"board.warm_limit":               "BOARD_WARM_LIMIT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "teamflow")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.sqlite_path", "teamflow.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 5)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.poll_interval", 5*time.Second)
	v.SetDefault("worker.max_retries", 3)
	v.SetDefault("worker.queues", []string{"high_priority", "default", "low_priority"})

	v.SetDefault("auth.jwt_secret", defaultJWTSecret)
	v.SetDefault("auth.issuer", "teamflow")
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 100)
	v.SetDefault("rate_limit.burst_size", 10)
	v.SetDefault("rate_limit.cleanup_interval", 10*time.Minute)

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.host", "localhost")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "teamflow@localhost")
	v.SetDefault("mail.base_url", "http://localhost:3000")

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("fanout.mode", FanOutAsync)
	v.SetDefault("board.cache_ttl", 30*time.Second)
	v.SetDefault("board.warm_limit", 50)
}

// LoadConfig reads defaults, then the optional file named by CONFIG_FILE,
// then environment variables.
func LoadConfig() (*Config, error) {
	return Load("")
}

// Load is LoadConfig with an explicit config file path. An empty path
// falls back to CONFIG_FILE.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	if err := v.BindEnv("config_file", "CONFIG_FILE"); err != nil {
		return nil, fmt.Errorf("bind CONFIG_FILE: %w", err)
	}

	if path == "" {
		path = v.GetString("config_file")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	c.FanOut.Mode = strings.ToLower(c.FanOut.Mode)
	switch c.FanOut.Mode {
	case FanOutInline, FanOutAsync:
	case FanOutQueue:
		if !c.Redis.Enabled {
			return fmt.Errorf("fanout mode %q requires redis", FanOutQueue)
		}
	default:
		return fmt.Errorf("unsupported fanout mode %q", c.FanOut.Mode)
	}

	if c.IsProduction() {
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("database password is required in production")
		}
		if c.Auth.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT secret must be set in production")
		}
	}
	return nil
}

func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
