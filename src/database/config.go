package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"debug"` // debug, info, warn, error
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"` // json or text
	EnableDB  bool   `envconfig:"ENABLE_DB" default:"true"`

	// postgres://... selects Postgres, anything else is a SQLite path or DSN.
	DatabaseURLMain string `envconfig:"DATABASE_URL_MAIN" default:"file:autotrader.db?_busy_timeout=5000"`
	GormLogLevel    int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
	MaxOpenConns    int    `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int    `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
