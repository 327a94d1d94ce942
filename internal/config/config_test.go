package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv unsets every variable LoadConfig reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{"CONFIG_FILE"}
	for _, env := range envBindings {
		vars = append(vars, env)
	}
	for _, k := range vars {
		if old, ok := os.LookupEnv(k); ok {
			os.Unsetenv(k)
			t.Cleanup(func() { os.Setenv(k, old) })
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error with default config, got: %v", err)
	}

	if config.Server.Host != "localhost" {
		t.Errorf("Expected default host 'localhost', got %s", config.Server.Host)
	}
	if config.Server.Port != "8080" {
		t.Errorf("Expected default port '8080', got %s", config.Server.Port)
	}
	if config.Server.Environment != "development" {
		t.Errorf("Expected default environment 'development', got %s", config.Server.Environment)
	}
	if config.Database.Driver != "postgres" {
		t.Errorf("Expected default DB driver 'postgres', got %s", config.Database.Driver)
	}
	if config.Database.MaxOpenConns != 25 {
		t.Errorf("Expected default max open conns 25, got %d", config.Database.MaxOpenConns)
	}
	if config.Database.ConnMaxLifetime != time.Hour {
		t.Errorf("Expected default conn max lifetime 1h, got %v", config.Database.ConnMaxLifetime)
	}
	if config.Redis.Enabled {
		t.Error("Expected redis to be disabled by default")
	}
	if config.Auth.AccessTokenTTL != 15*time.Minute {
		t.Errorf("Expected default access token TTL 15m, got %v", config.Auth.AccessTokenTTL)
	}
	if config.Auth.BCryptCost != 12 {
		t.Errorf("Expected default bcrypt cost 12, got %d", config.Auth.BCryptCost)
	}
	if len(config.Worker.Queues) != 3 || config.Worker.Queues[0] != "high_priority" || config.Worker.Queues[2] != "low_priority" {
		t.Errorf("Expected queues polled high_priority first and low_priority last, got %v", config.Worker.Queues)
	}
	if config.FanOut.Mode != FanOutAsync {
		t.Errorf("Expected default fanout mode 'async', got %s", config.FanOut.Mode)
	}
	if config.Board.CacheTTL != 30*time.Second {
		t.Errorf("Expected default board cache TTL 30s, got %v", config.Board.CacheTTL)
	}
	if config.Logging.Level != "INFO" {
		t.Errorf("Expected default log level INFO, got %s", config.Logging.Level)
	}
}

func TestLoadConfig_CustomEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_SQLITE_PATH", "/tmp/teamflow.db")
	t.Setenv("DB_MAX_OPEN_CONNS", "50")
	t.Setenv("DB_CONN_MAX_LIFETIME", "2h")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_RPM", "200")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("FANOUT_MODE", "queue")
	t.Setenv("BOARD_CACHE_TTL", "1m")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if config.GetServerAddr() != "0.0.0.0:9090" {
		t.Errorf("Expected server addr '0.0.0.0:9090', got %s", config.GetServerAddr())
	}
	if config.Database.Driver != "sqlite" {
		t.Errorf("Expected normalised driver 'sqlite', got %s", config.Database.Driver)
	}
	if config.GetDatabaseDSN() != "/tmp/teamflow.db" {
		t.Errorf("Expected sqlite DSN to be the file path, got %s", config.GetDatabaseDSN())
	}
	if config.Database.MaxOpenConns != 50 {
		t.Errorf("Expected max open conns 50, got %d", config.Database.MaxOpenConns)
	}
	if config.Database.ConnMaxLifetime != 2*time.Hour {
		t.Errorf("Expected conn max lifetime 2h, got %v", config.Database.ConnMaxLifetime)
	}
	if config.GetRedisAddr() != "localhost:6380" {
		t.Errorf("Expected redis addr 'localhost:6380', got %s", config.GetRedisAddr())
	}
	if config.RateLimit.Enabled {
		t.Error("Expected rate limiting to be disabled")
	}
	if config.RateLimit.RequestsPerMin != 200 {
		t.Errorf("Expected 200 requests per minute, got %d", config.RateLimit.RequestsPerMin)
	}
	if config.Mail.Port != 2525 {
		t.Errorf("Expected SMTP port 2525, got %d", config.Mail.Port)
	}
	if config.FanOut.Mode != FanOutQueue {
		t.Errorf("Expected fanout mode 'queue', got %s", config.FanOut.Mode)
	}
	if config.Board.CacheTTL != time.Minute {
		t.Errorf("Expected board cache TTL 1m, got %v", config.Board.CacheTTL)
	}
}

func TestLoadConfig_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "teamflow.yaml")
	content := []byte("server:\n  port: \"7070\"\nlogging:\n  level: DEBUG\nfanout:\n  mode: inline\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "WARN")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if config.Server.Port != "7070" {
		t.Errorf("Expected port from file '7070', got %s", config.Server.Port)
	}
	if config.FanOut.Mode != FanOutInline {
		t.Errorf("Expected fanout mode from file 'inline', got %s", config.FanOut.Mode)
	}
	if config.Logging.Level != "WARN" {
		t.Errorf("Expected env to override file log level, got %s", config.Logging.Level)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for a missing config file")
	}
}

func TestLoadConfig_ProductionValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "a-real-secret")

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error when database password is missing in production")
	}
}

func TestLoadConfig_ProductionJWTValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DB_PASSWORD", "password")

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error when JWT secret is the default in production")
	}
}

func TestLoadConfig_ProductionSQLiteNeedsNoPassword(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "a-real-secret")

	if _, err := LoadConfig(); err != nil {
		t.Errorf("Expected sqlite production config to load, got: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"unknown driver", Config{Database: DatabaseConfig{Driver: "mysql"}, FanOut: FanOutConfig{Mode: FanOutInline}}, true},
		{"unknown fanout", Config{Database: DatabaseConfig{Driver: "sqlite"}, FanOut: FanOutConfig{Mode: "kafka"}}, true},
		{"queue without redis", Config{Database: DatabaseConfig{Driver: "sqlite"}, FanOut: FanOutConfig{Mode: FanOutQueue}}, true},
		{"queue with redis", Config{Database: DatabaseConfig{Driver: "sqlite"}, Redis: RedisConfig{Enabled: true}, FanOut: FanOutConfig{Mode: FanOutQueue}}, false},
		{"inline", Config{Database: DatabaseConfig{Driver: "postgres"}, FanOut: FanOutConfig{Mode: "INLINE"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

func TestConfig_GetDatabaseDSN(t *testing.T) {
	config := &Config{
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     "5432",
			User:     "testuser",
			Password: "testpass",
			Name:     "testdb",
			SSLMode:  "disable",
		},
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	if dsn := config.GetDatabaseDSN(); dsn != expected {
		t.Errorf("Expected DSN '%s', got '%s'", expected, dsn)
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		environment string
		expected    bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			config := &Config{Server: ServerConfig{Environment: tt.environment}}
			if result := config.IsProduction(); result != tt.expected {
				t.Errorf("Expected IsProduction() to return %v for environment '%s', got %v", tt.expected, tt.environment, result)
			}
		})
	}
}
