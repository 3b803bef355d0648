package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported values for DBOptions.Driver.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DBOptions describes how to reach the relational store.
type DBOptions struct {
	Driver   string
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	// DSN overrides the pieces above when set (and is the file path for sqlite).
	DSN      string
	LogLevel string
}

// InitDB opens the database with the dialector matching opts.Driver and
// tunes the connection pool.
func InitDB(opts DBOptions) (*gorm.DB, error) {
	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	gormLogLevel := logger.Warn
	if opts.LogLevel == "debug" {
		gormLogLevel = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(gormLogLevel)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping %s: %w", opts.Driver, err)
	}
	logrus.WithField("driver", opts.Driver).Info("Database connected")
	return db, nil
}

func dialectorFor(opts DBOptions) (gorm.Dialector, error) {
	dsn := opts.DSN
	switch opts.Driver {
	case DriverMySQL, "":
		if dsn == "" {
			if opts.User == "" {
				return nil, fmt.Errorf("DB_USER must be set for mysql")
			}
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
				opts.User, opts.Password, orDefault(opts.Host, "127.0.0.1"), orDefault(opts.Port, "3306"), orDefault(opts.Name, "studyroom"))
		}
		return mysql.Open(dsn), nil
	case DriverPostgres:
		if dsn == "" {
			if opts.User == "" {
				return nil, fmt.Errorf("DB_USER must be set for postgres")
			}
			dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
				orDefault(opts.Host, "127.0.0.1"), orDefault(opts.Port, "5432"), opts.User, opts.Password, orDefault(opts.Name, "studyroom"))
		}
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(orDefault(dsn, "studyroom.db")), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", opts.Driver)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// InitRedis connects to Redis and verifies the connection with a PING.
func InitRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxConnAge:   30 * time.Minute,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	logrus.WithField("addr", addr).Info("Redis connected")
	return client, nil
}
