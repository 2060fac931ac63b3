package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autotrader/src/database"
	"autotrader/src/model"
	"autotrader/src/position"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TradeEventRepository is the durable event log of the control loop.
type TradeEventRepository struct {
	db *gorm.DB
}

func NewTradeEventRepository() *TradeEventRepository {
	return NewTradeEventRepositoryWithDB(database.MainDB)
}

func NewTradeEventRepositoryWithDB(db *gorm.DB) *TradeEventRepository {
	return &TradeEventRepository{db: db}
}

// Record appends one event. Events are never updated.
func (r *TradeEventRepository) Record(ctx context.Context, event model.TradeEvent) error {
	event.ID = 0
	event.Symbol = strings.ToUpper(event.Symbol)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		logger.WithFields(logger.Fields{
			"repo":    "TradeEventRepository",
			"op":      "Record",
			"user_id": event.UserID,
			"symbol":  event.Symbol,
			"status":  event.Status,
		}).WithError(err).Error("failed to persist trade event")
		return fmt.Errorf("record trade event: %w", err)
	}
	return nil
}

type TradeEventFilter struct {
	UserID string
	Symbol string
	Status model.OrderStatus
	From   *time.Time
	To     *time.Time
}

// List returns matching events ordered by timestamp then id.
func (r *TradeEventRepository) List(ctx context.Context, f TradeEventFilter) ([]model.TradeEvent, error) {
	q := r.db.WithContext(ctx).Model(&model.TradeEvent{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Symbol != "" {
		q = q.Where("symbol = ?", strings.ToUpper(f.Symbol))
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("occurred_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("occurred_at <= ?", *f.To)
	}

	var events []model.TradeEvent
	if err := q.Order("occurred_at ASC, id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list trade events: %w", err)
	}
	return events, nil
}

// OpenPosition rebuilds the open position of a pair from its filled events.
func (r *TradeEventRepository) OpenPosition(ctx context.Context, userID, symbol string) (*model.Position, error) {
	events, err := r.List(ctx, TradeEventFilter{UserID: userID, Symbol: symbol, Status: model.OrderStatusFilled})
	if err != nil {
		return nil, err
	}
	return position.Rebuild(events)
}
