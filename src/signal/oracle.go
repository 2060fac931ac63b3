package signal

import (
	"errors"
	"fmt"

	"autotrader/src/model"
)

var ErrScoreOutOfRange = errors.New("signal: oracle score outside [0,1]")

// ScoringOracle maps a feature vector to the probability of an upward move.
type ScoringOracle interface {
	Score(features []float64) (float64, error)
}

type OracleConfig struct {
	MinLookback   int
	BuyThreshold  float64
	SellThreshold float64
}

func DefaultOracleConfig() OracleConfig {
	return OracleConfig{MinLookback: 50, BuyThreshold: 0.8, SellThreshold: 0.2}
}

// FeatureCount is the length of the vector produced by Features.
const FeatureCount = 6

// Features builds the oracle input from a window: MA ratio, momentum,
// volatility and 1/5/15 bar returns. ok is false for short windows.
func Features(window []model.Bar, cfg RuleConfig) ([]float64, bool) {
	closes := model.Closes(window)
	ind, ok := NewRuleDetector(cfg).Compute(closes)
	if !ok || ind.LongMA <= 0 {
		return nil, false
	}
	out := make([]float64, 0, FeatureCount)
	out = append(out, ind.ShortMA/ind.LongMA-1, ind.Momentum, ind.Volatility)
	for _, lag := range []int{1, 5, 15} {
		r, _ := Return(closes, lag)
		out = append(out, r)
	}
	return out, true
}

// OracleDetector emits signals from an external scoring function. Scores
// between the two thresholds are treated as no signal.
type OracleDetector struct {
	oracle   ScoringOracle
	cfg      OracleConfig
	features RuleConfig
	name     string
}

func NewOracleDetector(oracle ScoringOracle, cfg OracleConfig) *OracleDetector {
	rules := DefaultRuleConfig()
	if cfg.MinLookback > rules.MinLookback {
		rules.MinLookback = cfg.MinLookback
	}
	return &OracleDetector{oracle: oracle, cfg: cfg, features: rules, name: "Model Score"}
}

func (d *OracleDetector) Detect(window []model.Bar) (*model.Signal, error) {
	if len(window) < d.cfg.MinLookback {
		return nil, nil
	}
	features, ok := Features(window, d.features)
	if !ok {
		return nil, nil
	}
	p, err := d.oracle.Score(features)
	if err != nil {
		return nil, fmt.Errorf("score window: %w", err)
	}
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("%w: %v", ErrScoreOutOfRange, p)
	}

	last := window[len(window)-1]
	sig := &model.Signal{
		Symbol:         last.Symbol,
		ReferencePrice: last.Close,
		PatternName:    d.name,
		Timestamp:      last.Timestamp,
	}
	switch {
	case p >= d.cfg.BuyThreshold:
		sig.Action = model.ActionBuy
		sig.Confidence = p
	case p <= d.cfg.SellThreshold:
		sig.Action = model.ActionSell
		sig.Confidence = 1 - p
	default:
		return nil, nil
	}
	sig.Reason = fmt.Sprintf("up probability %.3f", p)
	return sig, nil
}
