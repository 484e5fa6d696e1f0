package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"yieldctl/pkg/parser"
	"yieldctl/pkg/store"
	"yieldctl/pkg/tracker"
	"yieldctl/pkg/types"
)

var (
	network       string
	slippageBps   uint32
	recipientAddr string
	noNotify      bool
	noConfirm     bool
)

var actionDescriptions = map[types.Action]string{
	types.ActionDeposit:  "Deposit tokens into a vault",
	types.ActionWithdraw: "Withdraw tokens from a vault",
	types.ActionStake:    "Stake tokens in a vault",
	types.ActionLock:     "Lock tokens in a vault",
	types.ActionBorrow:   "Borrow tokens from a vault",
	types.ActionRepay:    "Repay borrowed tokens to a vault",
	types.ActionClaim:    "Claim rewards from a vault",
}

func init() {
	for _, a := range types.Actions {
		rootCmd.AddCommand(newActionCmd(a))
	}
}

func newActionCmd(a types.Action) *cobra.Command {
	use := fmt.Sprintf("%s <amount> <token> <vault>", a)
	example := fmt.Sprintf("  yieldctl %s 1.5 USDC usdc-vault --network mainnet", a)
	args := cobra.MinimumNArgs(3)
	if a == types.ActionClaim {
		use = "claim <vault>"
		example = "  yieldctl claim usdc-vault --network mainnet"
		args = cobra.MinimumNArgs(1)
	}

	c := &cobra.Command{
		Use:     use,
		Short:   actionDescriptions[a],
		Example: example,
		Args:    args,
		Run: func(cmd *cobra.Command, args []string) {
			runAction(cmd, a, args)
		},
	}

	c.Flags().StringVarP(&network, "network", "n", "", "Network to submit on (optional when one network is configured)")
	c.Flags().StringVar(&recipientAddr, "recipient", "", "Receiver of the vault operation (defaults to the sender)")
	c.Flags().BoolVar(&noNotify, "no-notify", false, "Do not show transaction progress notifications")
	c.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	if a == types.ActionWithdraw {
		c.Flags().Uint32Var(&slippageBps, "slippage", 50, "Slippage tolerance in basis points")
	}
	return c
}

func runAction(cmd *cobra.Command, a types.Action, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	req, err := parser.ParseActionCommand(a, strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	application, err := loadApp(ctx, cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer application.Close()

	req.Network = network
	if req.Network == "" {
		if names := application.Config.NetworkNames(); len(names) == 1 {
			req.Network = names[0]
		}
	}
	req.Slippage = slippageBps
	req.Recipient = recipientAddr

	if err := parser.ValidateRequest(req); err != nil {
		printError(err)
		os.Exit(1)
	}

	if !jsonOutput {
		displayRequest(req)
	}

	if !noConfirm && !jsonOutput {
		if !confirm(fmt.Sprintf("Proceed with %s?", a)) {
			fmt.Println("\nCancelled.")
			os.Exit(0)
		}
	}

	status, receipt, err := application.Execute(ctx, *req, !noNotify && !jsonOutput)
	// os.Exit skips deferred calls; close now so metrics are pushed
	application.Close()

	if jsonOutput {
		printJSON(status)
		if err != nil {
			os.Exit(1)
		}
		return
	}

	if err != nil {
		explainFailure(err, req.Network)
		os.Exit(1)
	}

	fmt.Printf("\n  Transaction:  %s\n", color.CyanString(receipt.TxHash.Hex()))
	fmt.Printf("  Block:        %d\n", receipt.BlockNumber.Uint64())
	fmt.Printf("  Gas Used:     %d\n", receipt.GasUsed)
	verb := string(a)
	printSuccess(color.GreenString("✓ %s completed", strings.ToUpper(verb[:1])+verb[1:]))
}

// explainFailure prints a failure with a hint for the outcomes users can act on
func explainFailure(err error, network string) {
	var stillPending *tracker.StillPendingError
	switch {
	case errors.Is(err, tracker.ErrTransactionCancelled):
		color.Yellow("\nThe transaction was cancelled in your wallet.\n")
	case errors.As(err, &stillPending):
		color.Yellow("\nThe transaction has not confirmed yet.\n")
		fmt.Println("You can keep following it with:")
		color.Cyan("  yieldctl track %s --network %s\n", stillPending.Hash.Hex(), network)
	default:
		printError(err)
	}
}

func displayRequest(req *types.TransactionRequest) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                  %s", strings.ToUpper(string(req.Action)))
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Network:           %s\n", color.CyanString(req.Network))
	fmt.Printf("  Vault:             %s\n", req.Vault)
	if req.Action != types.ActionClaim {
		fmt.Printf("  Amount:            %s %s\n", req.Amount.String(), color.YellowString(req.Token))
	}
	if req.Action == types.ActionWithdraw {
		fmt.Printf("  Slippage:          %.2f%%\n", float64(req.Slippage)/100)
	}
	if req.Recipient != "" {
		fmt.Printf("  Recipient:         %s\n", req.Recipient)
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func statusColor(phase store.Phase) string {
	switch phase {
	case store.PhaseFulfilled:
		return color.GreenString(string(phase))
	case store.PhasePending:
		return color.YellowString(string(phase))
	case store.PhaseRejected:
		return color.RedString(string(phase))
	default:
		return string(phase)
	}
}
