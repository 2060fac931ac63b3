package migrations

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DataMigration records data migrations that already ran.
type DataMigration struct {
	ID        string    `gorm:"primaryKey;size:200;column:id"`
	AppliedAt time.Time `gorm:"not null;column:applied_at"`
}

func (DataMigration) TableName() string { return "data_migrations" }

// RunOnce runs fn inside a transaction unless migrationID is recorded, and
// records it only after fn succeeds.
func RunOnce(db *gorm.DB, migrationID string, fn func(*gorm.DB) error) error {
	if db == nil {
		return nil
	}
	if migrationID == "" {
		return errors.New("migration id is empty")
	}
	if fn == nil {
		return fmt.Errorf("migration %q has nil fn", migrationID)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var m DataMigration
		err := tx.First(&m, "id = ?", migrationID).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check migration %q: %w", migrationID, err)
		}
		if err := fn(tx); err != nil {
			return fmt.Errorf("run migration %q: %w", migrationID, err)
		}
		if err := tx.Create(&DataMigration{ID: migrationID, AppliedAt: time.Now().UTC()}).Error; err != nil {
			return fmt.Errorf("record migration %q: %w", migrationID, err)
		}
		return nil
	})
}

// Run executes the data migrations in order. Append new ones at the bottom
// with a stable id.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return RunOnce(db, "00001_uppercase_trade_event_symbols", uppercaseTradeEventSymbols)
}

// uppercaseTradeEventSymbols normalises symbols written before they were
// upper-cased on the way in.
func uppercaseTradeEventSymbols(tx *gorm.DB) error {
	return tx.Exec(`UPDATE trade_events SET symbol = UPPER(symbol) WHERE symbol <> UPPER(symbol)`).Error
}
