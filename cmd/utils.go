package cmd

import (
	"os"

	logger "github.com/sirupsen/logrus"

	btcrpc "github.com/TEENet-io/mintburn-bridge/btcman/rpc"
)

// FileExists reports whether path names a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// SetupBtcRpc connects to the bitcoind node the bitcoind indexer and the
// address watcher talk to.
func SetupBtcRpc(cfg btcrpc.RpcClientConfig) (*btcrpc.RpcClient, error) {
	r, err := btcrpc.NewRpcClient(&cfg)
	if err != nil {
		logger.WithFields(logger.Fields{
			"server": cfg.ServerAddr,
			"port":   cfg.Port,
		}).Errorf("failed to create btc rpc client: %v", err)
		return nil, err
	}
	return r, nil
}
