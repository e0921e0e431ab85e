// database/db.go - Database Connection (embedded sqlite or PostgreSQL)
package database

import (
	"errors"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"strings"
	"time"

	"superparty/config"
	"superparty/logging"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// Open connects to the configured database and runs migrations.
func Open(cfg *config.Config, appLogger *slog.Logger) (*gorm.DB, error) {
	log := logging.Default(appLogger).With("component", "database")

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseURL)
	case config.DriverSQLite:
		dialector = sqlite.Open(sqliteDSN(cfg.DBPath))
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DBDriver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}

	if cfg.DBDriver == config.DriverSQLite {
		// One writer keeps sqlite from reporting SQLITE_BUSY under load.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := RunMigrations(conn, log); err != nil {
		sqlDB.Close()
		return nil, err
	}

	log.Info("database ready", "driver", cfg.DBDriver)
	return conn, nil
}

// InitDB opens the process-wide connection used by the service entrypoint.
func InitDB(cfg *config.Config, appLogger *slog.Logger) error {
	conn, err := Open(cfg, appLogger)
	if err != nil {
		return err
	}
	db = conn
	return nil
}

// GetDB returns the database instance opened by InitDB.
func GetDB() *gorm.DB {
	return db
}

// CloseDB closes the process-wide connection.
func CloseDB() error {
	if db == nil {
		return nil
	}
	err := Close(db)
	db = nil
	return err
}

// Close closes the pool behind conn.
func Close(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("nil database")
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func gormLogLevel(level slog.Level) logger.LogLevel {
	switch {
	case level <= slog.LevelDebug:
		return logger.Info
	case level <= slog.LevelWarn:
		return logger.Warn
	default:
		return logger.Error
	}
}
