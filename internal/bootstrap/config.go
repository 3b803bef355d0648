package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"studyroom/internal/infra/setup"
)

// Config holds every setting of the api, gateway and migrate commands.
type Config struct {
	AppEnv      string
	LogLevel    string
	ServerPort  string
	GatewayPort string

	DB          setup.DBOptions
	AutoMigrate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	JWTSecret      string
	JWTExpiryHours int

	AgoraAppID          string
	AgoraAppCertificate string

	CORSAllowedOrigins []string
	RateLimitMax       int
	RateLimitWindow    time.Duration
	WorkerConcurrency  int
}

// LoadConfig reads .env (if present), then an optional studyroom.yaml (or the
// file named by CONFIG_FILE), then the environment, which wins.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("studyroom")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	}
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return configFrom(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("server_port", "8080")
	v.SetDefault("gateway_port", "8081")
	v.SetDefault("db_driver", setup.DriverMySQL)
	v.SetDefault("db_auto_migrate", true)
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_key_prefix", "sr:")
	v.SetDefault("jwt_expiry_hours", 24)
	v.SetDefault("cors_allowed_origins", "http://localhost:3000")
	v.SetDefault("rate_limit_max", 100)
	v.SetDefault("rate_limit_window", "1s")
	v.SetDefault("worker_concurrency", 10)
}

func configFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppEnv:      v.GetString("app_env"),
		LogLevel:    v.GetString("log_level"),
		ServerPort:  v.GetString("server_port"),
		GatewayPort: v.GetString("gateway_port"),
		DB: setup.DBOptions{
			Driver:   v.GetString("db_driver"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			Name:     v.GetString("db_name"),
			DSN:      v.GetString("db_dsn"),
		},
		AutoMigrate:         v.GetBool("db_auto_migrate"),
		RedisAddr:           v.GetString("redis_addr"),
		RedisPassword:       v.GetString("redis_password"),
		RedisDB:             v.GetInt("redis_db"),
		KeyPrefix:           v.GetString("redis_key_prefix"),
		JWTSecret:           v.GetString("jwt_secret"),
		JWTExpiryHours:      v.GetInt("jwt_expiry_hours"),
		AgoraAppID:          v.GetString("agora_app_id"),
		AgoraAppCertificate: v.GetString("agora_app_certificate"),
		CORSAllowedOrigins:  splitList(v.GetString("cors_allowed_origins")),
		RateLimitMax:        v.GetInt("rate_limit_max"),
		RateLimitWindow:     v.GetDuration("rate_limit_window"),
		WorkerConcurrency:   v.GetInt("worker_concurrency"),
	}

	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	cfg.DB.LogLevel = cfg.LogLevel
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NewLogger configures the process-wide logrus logger and returns it.
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.StandardLogger()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	return log
}
