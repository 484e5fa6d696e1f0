package cmd

import (
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"yieldctl/pkg/parser"
	"yieldctl/pkg/store"
)

var (
	trackNetwork  string
	trackNoNotify bool
)

var trackCmd = &cobra.Command{
	Use:   "track <tx-hash>...",
	Short: "Follow existing transactions to confirmation",
	Long: `Track one or more transactions that were already broadcast, following
speed-ups and cancellations until each one settles.

Examples:
  yieldctl track 0x5c50...e1f2 --network mainnet
  yieldctl track 0xaaa... 0xbbb... --network arbitrum`,
	Args: cobra.MinimumNArgs(1),
	Run:  runTrack,
}

func init() {
	rootCmd.AddCommand(trackCmd)

	trackCmd.Flags().StringVarP(&trackNetwork, "network", "n", "", "Network the transactions were sent on (REQUIRED)")
	trackCmd.Flags().BoolVar(&trackNoNotify, "no-notify", false, "Do not show transaction progress notifications")
	trackCmd.MarkFlagRequired("network")
}

func runTrack(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	hashes := make([]common.Hash, len(args))
	for i, arg := range args {
		hash, err := parser.ParseTxHash(arg)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		hashes[i] = hash
	}

	ctx, cancel := signalContext()
	defer cancel()

	application, err := loadApp(ctx, cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer application.Close()

	var (
		mu       sync.Mutex
		statuses = make([]store.OperationStatus, len(hashes))
		failed   bool
	)

	notifyUser := trackNotifies(len(hashes), trackNoNotify, jsonOutput)
	if len(hashes) > 1 && !jsonOutput {
		color.Cyan("Tracking %d transactions on %s...\n", len(hashes), trackNetwork)
	}

	// Each hash is tracked independently; one failure does not stop the others
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, hash := range hashes {
		g.Go(func() error {
			status, _, err := application.Track(gctx, trackNetwork, hash, notifyUser)

			mu.Lock()
			defer mu.Unlock()
			statuses[i] = status
			if err != nil {
				failed = true
				if !jsonOutput {
					color.Red("✗ %s: %v", hash.Hex(), err)
				}
			} else if !notifyUser && !jsonOutput {
				color.Green("✓ %s confirmed", hash.Hex())
			}
			return nil
		})
	}
	_ = g.Wait()
	application.Close()

	if jsonOutput {
		printJSON(statuses)
	} else {
		for _, status := range statuses {
			if status.Result != nil {
				fmt.Printf("  %s  block %d  %s\n", color.CyanString(status.Result.TxHash), status.Result.BlockNumber, statusColor(status.Phase))
			}
		}
	}

	if failed {
		os.Exit(1)
	}
}

// trackNotifies reports whether live notifications are shown. Concurrent
// spinners would share one terminal line, so several hashes print plain lines.
func trackNotifies(hashes int, noNotify, jsonOutput bool) bool {
	return hashes == 1 && !noNotify && !jsonOutput
}
