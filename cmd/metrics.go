package cmd

import (
	"errors"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"yieldctl/config"
	"yieldctl/pkg/metrics"
	"yieldctl/pkg/store"
)

var metricsAddr string

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Serve Prometheus metrics for operations run by other processes",
	Long: `Follow the operation transitions that other yieldctl processes publish to
redis and serve them as Prometheus metrics until interrupted.

Requires redis.url in the configuration. To expose the metrics of a single run
instead, pass --metrics-addr or --metrics-push to an action or track command.

Examples:
  yieldctl metrics --addr :9090
  yieldctl deposit 1 USDC usdc-vault --metrics-push http://localhost:9091`,
	Run: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)

	metricsCmd.Flags().StringVar(&metricsAddr, "addr", ":9090", "Address to serve /metrics on")
}

func runMetrics(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if cfg.Redis.URL == "" {
		printError(errors.New("redis.url is not configured; operations from other processes cannot be followed"))
		os.Exit(1)
	}

	rdb, err := store.DialRedis(cfg.Redis)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer rdb.Close()

	ctx, cancel := signalContext()
	defer cancel()

	color.Cyan("Serving metrics on %s/metrics (Ctrl+C to stop)\n", metricsAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return store.NewRedisMirror(rdb).Watch(gctx, recordTransition)
	})
	g.Go(func() error {
		return metrics.Serve(gctx, metricsAddr)
	})
	if err := g.Wait(); err != nil {
		printError(err)
		os.Exit(1)
	}

	color.Green("\n✓ Metrics server stopped.")
}

// recordTransition counts a run published by another process once it settles
func recordTransition(status store.OperationStatus) {
	if status.Settled() {
		metrics.OperationsSettled.WithLabelValues(string(status.Phase)).Inc()
	}
}
