package executors

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"autotrader/src/signal"

	"github.com/kelseyhightower/envconfig"
)

const (
	DetectorRules  = "rules"
	DetectorOracle = "oracle"
)

var ErrInvalidConfig = errors.New("executors: invalid configuration")

type Config struct {
	UserID  string   `envconfig:"USER_ID" default:"default"`
	Symbols []string `envconfig:"SYMBOLS" default:"NIFTY"`

	DetectorMode        string  `envconfig:"DETECTOR_MODE" default:"rules"`
	ConfidenceThreshold float64 `envconfig:"CONFIDENCE_THRESHOLD" default:"0.90"`

	LotSize  float64            `envconfig:"LOT_SIZE" default:"1"`
	LotSizes map[string]float64 `envconfig:"LOT_SIZES"`

	WindowSize      int           `envconfig:"WINDOW_SIZE" default:"100"`
	HistoryBars     int           `envconfig:"HISTORY_BARS" default:"100"`
	HistoryInterval time.Duration `envconfig:"HISTORY_INTERVAL" default:"1m"`

	CadenceOpen      time.Duration `envconfig:"CADENCE_OPEN" default:"15s"`
	CadenceFlat      time.Duration `envconfig:"CADENCE_FLAT" default:"60s"`
	RetryBackoff     time.Duration `envconfig:"RETRY_BACKOFF" default:"5s"`
	FetchTimeout     time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`
	OrderTimeout     time.Duration `envconfig:"ORDER_TIMEOUT" default:"10s"`
	FillTimeout      time.Duration `envconfig:"FILL_TIMEOUT" default:"30s"`
	PollInterval     time.Duration `envconfig:"POLL_INTERVAL" default:"1s"`
	ReconcileTimeout time.Duration `envconfig:"RECONCILE_TIMEOUT" default:"15s"`
	LeaseTTL         time.Duration `envconfig:"LEASE_TTL" default:"2m"`
}

// DefaultConfig mirrors the envconfig defaults.
func DefaultConfig() Config {
	return Config{
		UserID:              "default",
		Symbols:             []string{"NIFTY"},
		DetectorMode:        DetectorRules,
		ConfidenceThreshold: signal.DefaultConfidenceThreshold,
		LotSize:             1,
		WindowSize:          100,
		HistoryBars:         100,
		HistoryInterval:     time.Minute,
		CadenceOpen:         15 * time.Second,
		CadenceFlat:         60 * time.Second,
		RetryBackoff:        5 * time.Second,
		FetchTimeout:        10 * time.Second,
		OrderTimeout:        10 * time.Second,
		FillTimeout:         30 * time.Second,
		PollInterval:        time.Second,
		ReconcileTimeout:    15 * time.Second,
		LeaseTTL:            2 * time.Minute,
	}
}

// LoadConfig reads the loop configuration from the environment. Errors are
// fatal configuration errors.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.DetectorMode = strings.ToLower(strings.TrimSpace(cfg.DetectorMode))
	for i, s := range cfg.Symbols {
		cfg.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	if len(cfg.LotSizes) > 0 {
		sizes := make(map[string]float64, len(cfg.LotSizes))
		for k, v := range cfg.LotSizes {
			sizes[strings.ToUpper(strings.TrimSpace(k))] = v
		}
		cfg.LotSizes = sizes
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	positive := map[string]time.Duration{
		"CADENCE_OPEN":      c.CadenceOpen,
		"CADENCE_FLAT":      c.CadenceFlat,
		"RETRY_BACKOFF":     c.RetryBackoff,
		"FETCH_TIMEOUT":     c.FetchTimeout,
		"ORDER_TIMEOUT":     c.OrderTimeout,
		"FILL_TIMEOUT":      c.FillTimeout,
		"POLL_INTERVAL":     c.PollInterval,
		"RECONCILE_TIMEOUT": c.ReconcileTimeout,
		"HISTORY_INTERVAL":  c.HistoryInterval,
	}
	for name, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.LotSize <= 0 {
		errs = append(errs, fmt.Errorf("LOT_SIZE must be positive, got %v", c.LotSize))
	}
	for sym, v := range c.LotSizes {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("LOT_SIZES[%s] must be positive, got %v", sym, v))
		}
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("CONFIDENCE_THRESHOLD must be in (0,1], got %v", c.ConfidenceThreshold))
	}
	if c.WindowSize <= 0 || c.HistoryBars < 0 {
		errs = append(errs, fmt.Errorf("WINDOW_SIZE must be positive and HISTORY_BARS not negative"))
	}
	if c.DetectorMode != DetectorRules && c.DetectorMode != DetectorOracle {
		errs = append(errs, fmt.Errorf("unknown DETECTOR_MODE %q", c.DetectorMode))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// LotFor returns the configured entry size of symbol.
func (c Config) LotFor(symbol string) float64 {
	if v, ok := c.LotSizes[strings.ToUpper(symbol)]; ok {
		return v
	}
	return c.LotSize
}
