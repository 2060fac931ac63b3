package executors

import (
	"errors"
	"math"

	"autotrader/src/signal"
)

var ErrOracleRequired = errors.New("executors: oracle detector mode without an oracle")

// BuildDetector returns the detector for the configured mode and the
// confidence threshold the loop applies to its signals. Oracle signals carry
// the score as confidence, so their threshold never exceeds the oracle's buy
// threshold.
func BuildDetector(cfg Config, oracle signal.ScoringOracle) (signal.Detector, float64, error) {
	switch cfg.DetectorMode {
	case DetectorOracle:
		if oracle == nil {
			return nil, 0, ErrOracleRequired
		}
		oc := signal.DefaultOracleConfig()
		return signal.NewOracleDetector(oracle, oc), math.Min(cfg.ConfidenceThreshold, oc.BuyThreshold), nil
	case DetectorRules, "":
		return signal.NewRuleDetector(signal.DefaultRuleConfig()), cfg.ConfidenceThreshold, nil
	default:
		return nil, 0, ErrInvalidConfig
	}
}
