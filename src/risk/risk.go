package risk

import (
	"errors"
	"fmt"

	"autotrader/src/model"

	"github.com/shopspring/decimal"
)

var ErrInvalidThreshold = errors.New("risk: thresholds must be positive")

// Exit is a mandatory close decided by the risk manager.
type Exit struct {
	Reason model.ExitReason
	Return decimal.Decimal
	Price  float64
}

// Manager applies the stop-loss and take-profit rules to an open position.
// It holds no state and is safe to share between tasks.
type Manager struct {
	stopLoss   decimal.Decimal
	takeProfit decimal.Decimal
	sessions   SessionPolicy
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.StopLossPct <= 0 || cfg.TakeProfitPct <= 0 {
		return nil, fmt.Errorf("%w: stop_loss=%v take_profit=%v", ErrInvalidThreshold, cfg.StopLossPct, cfg.TakeProfitPct)
	}
	return &Manager{
		stopLoss:   decimal.NewFromFloat(cfg.StopLossPct),
		takeProfit: decimal.NewFromFloat(cfg.TakeProfitPct),
		sessions:   NewSessionPolicy(cfg),
	}, nil
}

// Sessions returns the entry policy configured alongside the thresholds.
func (m *Manager) Sessions() SessionPolicy {
	return m.sessions
}

// Evaluate returns the exit the position must take at currentPrice, or nil
// when it may be held. Stop-loss is checked before take-profit, so at most
// one reason is ever reported.
func (m *Manager) Evaluate(pos model.Position, currentPrice float64) *Exit {
	ret, ok := UnrealizedReturn(pos, currentPrice)
	if !ok {
		return nil
	}

	switch {
	case ret.LessThanOrEqual(m.stopLoss.Neg()):
		return &Exit{Reason: model.ExitStopLoss, Return: ret, Price: currentPrice}
	case ret.GreaterThanOrEqual(m.takeProfit):
		return &Exit{Reason: model.ExitTakeProfit, Return: ret, Price: currentPrice}
	default:
		return nil
	}
}

// UnrealizedReturn is (price-entry)/entry for longs and the inverse for
// shorts. ok is false when either price is not positive.
func UnrealizedReturn(pos model.Position, currentPrice float64) (decimal.Decimal, bool) {
	if pos.EntryPrice <= 0 || currentPrice <= 0 {
		return decimal.Zero, false
	}
	entry := decimal.NewFromFloat(pos.EntryPrice)
	price := decimal.NewFromFloat(currentPrice)

	ret := price.Sub(entry).Div(entry)
	if pos.Side == model.SideShort {
		ret = ret.Neg()
	}
	return ret, true
}
