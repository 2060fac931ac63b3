package model

import "time"

// Exception is a persisted failure that stopped or degraded a trading task.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Service string `gorm:"size:100;index" json:"service"` // e.g. "autotrader"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "executors"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "Task.Run"

	UserID string `gorm:"size:64;index" json:"user_id,omitempty"`
	Symbol string `gorm:"size:50" json:"symbol,omitempty"`

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`
	Level   string `gorm:"size:20;index" json:"level"` // warn | error | fatal

	// JSON encoded extra context.
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Exception) TableName() string {
	return "exceptions"
}
