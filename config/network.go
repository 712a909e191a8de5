package config

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// NetParams maps the configured network name to its chain parameters.
func (c *Config) NetParams() (*chaincfg.Params, error) {
	switch c.Network {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	}
	return nil, fmt.Errorf("%w: unknown network %q", ErrInvalidConfig, c.Network)
}
