package connectors

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	ModeRandom = "random"
	ModeReplay = "replay"
	ModeLive   = "live"
)

type Config struct {
	Mode string `envconfig:"VENUE_MODE" default:"random"`

	SimBasePrice  float64 `envconfig:"SIM_BASE_PRICE" default:"19500"`
	SimSlippage   float64 `envconfig:"SIM_SLIPPAGE" default:"5"`
	SimRejectRate float64 `envconfig:"SIM_REJECT_RATE" default:"0"`
	SimSeed       int64   `envconfig:"SIM_SEED" default:"0"`

	PaperBalance float64 `envconfig:"PAPER_BALANCE" default:"1000000"`

	PhemexBaseURL   string        `envconfig:"PHEMEX_BASE_URL" default:"https://testnet-api.phemex.com"`
	PhemexAPIKey    string        `envconfig:"PHEMEX_API_KEY"`
	PhemexAPISecret string        `envconfig:"PHEMEX_API_SECRET"`
	PhemexPosSide   string        `envconfig:"PHEMEX_POS_SIDE" default:"Merged"`
	PhemexTimeout   time.Duration `envconfig:"PHEMEX_TIMEOUT" default:"15s"`
	PhemexRateLimit float64       `envconfig:"PHEMEX_RATE_LIMIT" default:"10"`
	PhemexRateBurst int           `envconfig:"PHEMEX_RATE_BURST" default:"20"`
}

func LoadConfig() (Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return Config{}, fmt.Errorf("error processing env config: %w", err)
	}
	config.Mode = strings.ToLower(strings.TrimSpace(config.Mode))
	return config, nil
}
