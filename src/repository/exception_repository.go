package repository

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	"autotrader/src/database"
	"autotrader/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const ServiceName = "autotrader"

// ExceptionRepository handles persistence of system exceptions.
type ExceptionRepository struct {
	db *gorm.DB
}

func NewExceptionRepository() *ExceptionRepository {
	return &ExceptionRepository{db: database.MainDB}
}

func NewExceptionRepositoryWithDB(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create persists a new exception.
func (r *ExceptionRepository) Create(ctx context.Context, exc *model.Exception) error {
	logger.WithFields(logger.Fields{
		"service": exc.Service,
		"module":  exc.Module,
		"method":  exc.Method,
		"level":   exc.Level,
	}).Error("Persisting system exception")

	return r.db.WithContext(ctx).Create(exc).Error
}

// Capture logs err and persists it with a stack trace. A nil receiver only
// logs.
func (r *ExceptionRepository) Capture(
	ctx context.Context,
	module string,
	method string,
	level string,
	err error,
	contextData map[string]interface{},
) {
	if err == nil {
		return
	}

	var ctxJSON string
	if contextData != nil {
		if b, e := json.Marshal(contextData); e == nil {
			ctxJSON = string(b)
		}
	}
	exc := &model.Exception{
		Service:   ServiceName,
		Module:    module,
		Method:    method,
		Message:   err.Error(),
		Stack:     string(debug.Stack()),
		Level:     level,
		Context:   ctxJSON,
		CreatedAt: time.Now(),
	}
	if v, ok := contextData["user_id"].(string); ok {
		exc.UserID = v
	}
	if v, ok := contextData["symbol"].(string); ok {
		exc.Symbol = v
	}

	logger.WithFields(logger.Fields{
		"module": module,
		"method": method,
		"level":  level,
	}).WithError(err).Error("System exception captured")

	if r == nil || r.db == nil {
		return
	}
	if e := r.Create(ctx, exc); e != nil {
		logger.WithError(e).Error("Failed to persist exception")
	}
}
