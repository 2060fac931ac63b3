package signal

import (
	"fmt"
	"math"

	"autotrader/src/model"
)

const DefaultConfidenceThreshold = 0.90

// Detector turns a window of bars into at most one signal. Implementations
// must be pure: the same window always yields the same result.
type Detector interface {
	Detect(window []model.Bar) (*model.Signal, error)
}

type RuleConfig struct {
	MinLookback       int
	ShortMA           int
	LongMA            int
	MomentumLookback  int
	MomentumThreshold float64
	BreakoutLookback  int
	BreakoutMargin    float64
	BreakoutMomentum  float64
}

func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		MinLookback:       50,
		ShortMA:           20,
		LongMA:            50,
		MomentumLookback:  10,
		MomentumThreshold: 0.01,
		BreakoutLookback:  20,
		BreakoutMargin:    0.005,
		BreakoutMomentum:  0.015,
	}
}

// required is the number of bars every rule needs.
func (c RuleConfig) required() int {
	n := c.MinLookback
	for _, v := range []int{c.ShortMA, c.LongMA, c.MomentumLookback, c.BreakoutLookback} {
		if v > n {
			n = v
		}
	}
	return n
}

// RuleDetector recognises moving average crosses and range breakouts.
type RuleDetector struct {
	cfg RuleConfig
}

func NewRuleDetector(cfg RuleConfig) *RuleDetector {
	return &RuleDetector{cfg: cfg}
}

// Indicators are the values the rules are evaluated on.
type Indicators struct {
	ShortMA    float64
	LongMA     float64
	Momentum   float64
	Volatility float64
	Price      float64
	RecentHigh float64
	RecentLow  float64
}

// Compute derives the indicators from closes. ok is false when the window is
// too short or holds non-positive prices.
func (d *RuleDetector) Compute(closes []float64) (Indicators, bool) {
	c := d.cfg
	if len(closes) < c.required() {
		return Indicators{}, false
	}
	var ind Indicators
	var ok bool
	if ind.ShortMA, ok = SMA(closes, c.ShortMA); !ok {
		return Indicators{}, false
	}
	if ind.LongMA, ok = SMA(closes, c.LongMA); !ok {
		return Indicators{}, false
	}
	if ind.Momentum, ok = Momentum(closes, c.MomentumLookback); !ok {
		return Indicators{}, false
	}
	ind.Volatility, _ = Volatility(closes, c.ShortMA)

	last := len(closes) - 1
	ind.Price = closes[last]
	if ind.RecentHigh, ind.RecentLow, ok = MaxMin(closes[len(closes)-c.BreakoutLookback : last]); !ok {
		return Indicators{}, false
	}
	return ind, true
}

func (d *RuleDetector) Detect(window []model.Bar) (*model.Signal, error) {
	if len(window) == 0 {
		return nil, nil
	}
	ind, ok := d.Compute(model.Closes(window))
	if !ok {
		return nil, nil
	}

	last := window[len(window)-1]
	sig := &model.Signal{
		Symbol:         last.Symbol,
		ReferencePrice: ind.Price,
		Timestamp:      last.Timestamp,
	}
	c := d.cfg
	crossConfidence := math.Min(0.95, 0.85+math.Abs(ind.Momentum)*10)

	switch {
	case ind.ShortMA > ind.LongMA && ind.Momentum > c.MomentumThreshold:
		sig.Action = model.ActionBuy
		sig.PatternName = "Golden Cross"
		sig.Confidence = crossConfidence
		sig.Reason = fmt.Sprintf("SMA%d %.2f above SMA%d %.2f, momentum %.2f%%", c.ShortMA, ind.ShortMA, c.LongMA, ind.LongMA, ind.Momentum*100)
	case ind.ShortMA < ind.LongMA && ind.Momentum < -c.MomentumThreshold:
		sig.Action = model.ActionSell
		sig.PatternName = "Death Cross"
		sig.Confidence = crossConfidence
		sig.Reason = fmt.Sprintf("SMA%d %.2f below SMA%d %.2f, momentum %.2f%%", c.ShortMA, ind.ShortMA, c.LongMA, ind.LongMA, ind.Momentum*100)
	case ind.Price > ind.RecentHigh*(1+c.BreakoutMargin) && ind.Momentum > c.BreakoutMomentum:
		sig.Action = model.ActionBuy
		sig.PatternName = "Breakout"
		sig.Confidence = 0.92
		sig.Reason = fmt.Sprintf("price %.2f broke %d-bar high %.2f", ind.Price, c.BreakoutLookback, ind.RecentHigh)
	case ind.Price < ind.RecentLow*(1-c.BreakoutMargin) && ind.Momentum < -c.BreakoutMomentum:
		sig.Action = model.ActionSell
		sig.PatternName = "Breakdown"
		sig.Confidence = 0.91
		sig.Reason = fmt.Sprintf("price %.2f broke %d-bar low %.2f", ind.Price, c.BreakoutLookback, ind.RecentLow)
	default:
		return nil, nil
	}
	return sig, nil
}
