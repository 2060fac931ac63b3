package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	KafkaBrokers      []string      `envconfig:"KAFKA_BROKERS"`
	KafkaTopic        string        `envconfig:"KAFKA_TOPIC" default:"autotrader.trade_events"`
	KafkaWriteTimeout time.Duration `envconfig:"KAFKA_WRITE_TIMEOUT" default:"10s"`
	KafkaMaxAttempts  int           `envconfig:"KAFKA_MAX_ATTEMPTS" default:"3"`
}

// Enabled reports whether events should also be streamed to Kafka.
func (c Config) Enabled() bool {
	return len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaBrokers[0]) != ""
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process events config: %w", err)
	}
	return cfg, nil
}
