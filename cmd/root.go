package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"yieldctl/config"
	"yieldctl/pkg/app"
	"yieldctl/pkg/logger"
	"yieldctl/pkg/notify"
)

var (
	configPath     string
	metricsServeOn string
	metricsPushURL string
)

var rootCmd = &cobra.Command{
	Use:   "yieldctl",
	Short: "A CLI for submitting and tracking DeFi vault transactions",
	Long: `yieldctl submits vault operations (deposit, withdraw, stake, lock, borrow,
repay, claim) on EVM networks and follows each transaction to confirmation,
including wallet speed-ups and cancellations.

Examples:
  yieldctl deposit 1.5 USDC usdc-vault --network mainnet
  yieldctl withdraw 100 USDC usdc-vault --network mainnet --slippage 50
  yieldctl claim usdc-vault --network arbitrum
  yieldctl track 0xabc... --network mainnet
  yieldctl history`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is $HOME/.yieldctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&metricsServeOn, "metrics-addr", "", "Serve /metrics on this address while the command runs")
	rootCmd.PersistentFlags().StringVar(&metricsPushURL, "metrics-push", "", "Pushgateway URL to push metrics to on exit")
}

// loadApp reads configuration and assembles the application for a command
func loadApp(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if metricsServeOn != "" {
		cfg.Metrics.Addr = metricsServeOn
	}
	if metricsPushURL != "" {
		cfg.Metrics.PushURL = metricsPushURL
	}

	var notifier notify.Notifier = notify.NewConsole(os.Stdout)
	if jsonOutput {
		notifier = notify.Nop{}
	}

	return app.New(ctx, cfg, app.Options{
		Notifier: notifier,
		Log:      logger.Default(verbose, cfg.LogLevel),
	})
}

// signalContext is cancelled on interrupt or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v interface{}) {
	output, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(output))
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
