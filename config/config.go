// Package config loads process configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	LedgerGatewayURL string `env:"ESCROW_LEDGER_URL,notEmpty"`
	IPFSAPIURL       string `env:"IPFS_API_URL" envDefault:"http://127.0.0.1:5001"`
	PostgresDSN      string `env:"POSTGRES_DSN"`
	GasPayerAddr     string `env:"GAS_PAYER,notEmpty"`
	GasPayerKey      string `env:"GAS_PAYER_PRIV,notEmpty,unset"`
	HTTPTimeoutSec   int    `env:"ESCROW_HTTP_TIMEOUT_SEC" envDefault:"30"`
}

func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return c, nil
}
