package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/devansh728/BYVS/internal/config"
)

// Connect opens the Postgres pool, over the Cloud SQL socket when an
// instance connection name is configured and over TCP otherwise.
func Connect(cfg config.Database, log *slog.Logger) (*gorm.DB, error) {
	if cfg.InstanceConnectionName != "" {
		log.Info("connecting to Cloud SQL via socket", slog.String("instance", cfg.InstanceConnectionName))
	} else {
		log.Info("connecting to PostgreSQL", slog.String("host", cfg.Host), slog.Int("port", cfg.Port))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info("database connected")
	return db, nil
}
