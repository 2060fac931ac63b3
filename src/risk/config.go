package risk

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	StopLossPct   float64 `envconfig:"RISK_STOP_LOSS_PCT" default:"0.01"`
	TakeProfitPct float64 `envconfig:"RISK_TAKE_PROFIT_PCT" default:"0.02"`

	// Session policy for new entries. Exits are never gated.
	NoTradeWindow bool `envconfig:"RISK_NO_TRADE_WINDOW" default:"false"`
	SessionSizing bool `envconfig:"RISK_SESSION_SIZING" default:"false"`
}

func GetConfig() Config {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

// DefaultConfig returns the thresholds used when nothing is configured.
func DefaultConfig() Config {
	return Config{StopLossPct: 0.01, TakeProfitPct: 0.02}
}
