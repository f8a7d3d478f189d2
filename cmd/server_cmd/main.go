package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/TEENet-io/mintburn-bridge/cmd"
	"github.com/TEENet-io/mintburn-bridge/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "BRIDGE_CONFIG"
)

func main() {
	viper.AutomaticEnv()

	configPath := flag.String("config", viper.GetString(ENV_CONFIG_FILE_PATH), "bridge server configuration file (yaml, json or toml)")
	flag.Parse()

	bsc, err := cmd.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading bridge server configuration: %v\n", err)
		os.Exit(1)
	}
	logconfig.ConfigLogger(bsc.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Starting bridge server... press Ctrl+C to kill the server")
	if err := cmd.StartBridgeServerAndWait(ctx, bsc); err != nil {
		logger.Errorf("bridge server stopped: %v", err)
		os.Exit(1)
	}
	logger.Info("bridge server stopped")
}
