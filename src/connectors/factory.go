package connectors

import (
	"errors"
	"fmt"

	"autotrader/src/marketdata"
	"autotrader/src/security"

	"golang.org/x/time/rate"
)

// SecretResolver turns a configured secret into its plain value.
type SecretResolver interface {
	Resolve(value string) (string, error)
}

// NewExecutionPort builds the venue selected by cfg.Mode. quoter prices the
// simulated fills and is required for replay. Configuration errors are
// returned before anything trades.
func NewExecutionPort(cfg Config, quoter marketdata.Quoter, secrets SecretResolver) (ExecutionPort, error) {
	switch cfg.Mode {
	case ModeRandom, "mock":
		return NewSimulatedVenue(quoter, cfg.SimBasePrice, cfg.SimSlippage, cfg.SimRejectRate, cfg.SimSeed), nil
	case ModeReplay, "paper":
		if quoter == nil {
			return nil, errors.New("connectors: replay venue needs a price quoter")
		}
		return NewPaperVenue(quoter, cfg.PaperBalance), nil
	case ModeLive, "phemex":
		if cfg.PhemexAPIKey == "" || cfg.PhemexAPISecret == "" {
			return nil, ErrMissingCredentials
		}
		secret := cfg.PhemexAPISecret
		if secrets == nil {
			c, err := security.NewCipherFromConfig()
			if err != nil {
				return nil, err
			}
			secrets = c
		}
		secret, err := secrets.Resolve(secret)
		if err != nil {
			return nil, fmt.Errorf("resolve phemex secret: %w", err)
		}
		limiter := rate.NewLimiter(rate.Limit(cfg.PhemexRateLimit), cfg.PhemexRateBurst)
		client := NewClient(cfg.PhemexAPIKey, secret, cfg.PhemexBaseURL, cfg.PhemexTimeout, limiter)
		return NewPhemexVenue(client, cfg.PhemexPosSide), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVenueMode, cfg.Mode)
	}
}
