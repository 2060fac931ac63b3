package database

import (
	"fmt"
	"strings"
	"time"

	"autotrader/src/database/migrations"
	"autotrader/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MainDB is the read/write connection shared by the repositories.
var MainDB *gorm.DB

// Dialector picks the gorm driver for a DSN.
func Dialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// Open connects and tunes the pool without migrating.
func Open(config Config) (*gorm.DB, error) {
	db, err := gorm.Open(Dialector(config.DatabaseURLMain), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// Migrate creates the tables the trader writes and runs data migrations.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.TradeEvent{},
		&model.Exception{},
		&model.OHLCVCrypto1m{},
		&model.OHLCVCrypto1h{},
		&migrations.DataMigration{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations: %w", err)
	}
	return nil
}

// InitMainDB connects MainDB and migrates it. Call once at startup.
func InitMainDB() error {
	config := GetConfig()
	db, err := Open(config)
	if err != nil {
		return err
	}
	MainDB = db
	logrus.Info("[database] MainDB connection established")

	if err := Migrate(MainDB); err != nil {
		return err
	}
	logrus.Info("[database] MainDB migrations completed")
	return nil
}
