package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"yieldctl/config"
)

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List configured networks and their vaults",
	Run:   runNetworks,
}

func init() {
	rootCmd.AddCommand(networksCmd)
}

type networkSummary struct {
	Name          string   `json:"name"`
	ChainID       int64    `json:"chain_id"`
	Confirmations uint64   `json:"tx_confirmations"`
	Notify        bool     `json:"notify_enabled"`
	CanSend       bool     `json:"can_send"`
	Vaults        []string `json:"vaults"`
}

func runNetworks(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load(configPath)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	summaries := make([]networkSummary, 0, len(cfg.Networks))
	for _, name := range cfg.NetworkNames() {
		n := cfg.Networks[name]
		vaults := make([]string, 0, len(n.Vaults))
		for v := range n.Vaults {
			vaults = append(vaults, v)
		}
		sort.Strings(vaults)

		summaries = append(summaries, networkSummary{
			Name:          name,
			ChainID:       n.ChainID,
			Confirmations: n.TxConfirmations,
			Notify:        n.Notify(),
			CanSend:       n.PrivateKey != "",
			Vaults:        vaults,
		})
	}

	if jsonOutput {
		printJSON(summaries)
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                                 CONFIGURED NETWORKS")
	fmt.Println(strings.Repeat("=", 90))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nNETWORK\tCHAIN ID\tCONFIRMATIONS\tNOTIFY\tMODE\tVAULTS")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for _, s := range summaries {
		mode := color.GreenString("send")
		if !s.CanSend {
			mode = color.YellowString("track-only")
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%t\t%s\t%s\n",
			s.Name, s.ChainID, s.Confirmations, s.Notify, mode, strings.Join(s.Vaults, ", "))
	}

	w.Flush()
	fmt.Println("\n" + strings.Repeat("=", 90) + "\n")
}
