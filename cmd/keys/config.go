package keys

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Secret is encrypted when no argument is given on the command line.
	Secret string `envconfig:"KEYS_SECRET"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
