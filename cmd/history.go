package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"yieldctl/config"
	"yieldctl/pkg/store"
)

var (
	historyLimit int
	historyClear bool
)

var historyCmd = &cobra.Command{
	Use:   "history [operation-id]",
	Short: "List recently settled operations",
	Long: `List operations recorded in the local history file, most recent first,
or show a single operation by its ID.

Examples:
  yieldctl history
  yieldctl history --limit 5
  yieldctl history 3f2b9c1e-8a4d-4c55-9d0e-7f1a2b3c4d5e
  yieldctl history --clear`,
	Args: cobra.MaximumNArgs(1),
	Run:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of operations to show")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete the recorded history")
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load(configPath)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	journal, err := store.NewJournal(cfg.HistoryPath)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if historyClear {
		if err := journal.Clear(); err != nil {
			printError(err)
			os.Exit(1)
		}
		printSuccess(color.GreenString("✓ History cleared."))
		return
	}

	if len(args) == 1 {
		op, err := journal.Get(args[0])
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(op)
			return
		}
		displayOperation(op)
		return
	}

	operations := journal.List()
	if historyLimit > 0 && len(operations) > historyLimit {
		operations = operations[:historyLimit]
	}

	if jsonOutput {
		printJSON(operations)
		return
	}

	if len(operations) == 0 {
		color.Yellow("No operations recorded yet.\n")
		fmt.Printf("History is stored in %s\n", journal.GetFilePath())
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 150))
	color.Green("                                                            OPERATION HISTORY")
	fmt.Println(strings.Repeat("=", 150))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nID\tSTARTED\tOPERATION\tSTATUS\tTRANSACTION\tDETAIL")
	fmt.Fprintln(w, strings.Repeat("-", 150))

	for _, op := range operations {
		tx, detail := "-", ""
		if op.Result != nil {
			tx = truncateString(op.Result.TxHash, 20)
			detail = fmt.Sprintf("block %d", op.Result.BlockNumber)
		}
		if op.Error != "" {
			detail = truncateString(op.Error, 40)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			op.ID, op.StartedAt.Local().Format("2006-01-02 15:04:05"), op.Name, statusColor(op.Phase), tx, detail)
	}

	w.Flush()
	fmt.Println("\n" + strings.Repeat("=", 150) + "\n")
}

func displayOperation(op store.OperationStatus) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                  OPERATION DETAILS")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  ID:          %s\n", op.ID)
	fmt.Printf("  Operation:   %s\n", op.Name)
	fmt.Printf("  Status:      %s\n", statusColor(op.Phase))
	fmt.Printf("  Started:     %s\n", op.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if op.SettledAt != nil {
		fmt.Printf("  Settled:     %s\n", op.SettledAt.Local().Format("2006-01-02 15:04:05"))
	}
	if op.Result != nil {
		fmt.Printf("  Transaction: %s\n", color.CyanString(op.Result.TxHash))
		fmt.Printf("  Block:       %d\n", op.Result.BlockNumber)
		fmt.Printf("  Gas Used:    %d\n", op.Result.GasUsed)
	}
	if op.Error != "" {
		fmt.Printf("  Error:       %s\n", color.RedString(op.Error))
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
