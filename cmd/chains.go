package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List all supported chains",
	Long: `List every chain in the registry with its network id, native asset
and wallet family.

Examples:
  altverse-swap chains
  altverse-swap chains --json`,
	Run: runListChains,
}

func init() {
	rootCmd.AddCommand(chainsCmd)
}

func runListChains(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	chains := a.registry.Chains()

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(chains, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("                          SUPPORTED CHAINS")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	for _, chain := range chains {
		layer := ""
		if chain.IsLayer2 {
			layer = color.HiBlackString("  L2")
		}
		fmt.Printf("  %-12s  %-10s  network %-8d  %s wallet%s\n",
			color.YellowString(chain.ID),
			chain.NativeSymbol,
			chain.NetworkID,
			chain.Kind,
			layer)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Printf("\nTotal: %d chains\n\n", len(chains))
}
