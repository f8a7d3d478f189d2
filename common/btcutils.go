package common

import (
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

var ErrUnknownNetwork = errors.New("unknown bitcoin network, expect mainnet|testnet|regtest")

func IsValidBtcAddress(address string, cfg *chaincfg.Params) bool {
	addr, err := btcutil.DecodeAddress(address, cfg)
	if err != nil {
		return false
	}

	return addr.IsForNet(cfg)
}

// NetworkParams maps the configured network name onto btcd chain params.
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(name) {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, ErrUnknownNetwork
	}
}
