package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"altverse-swap/pkg/types"
	"altverse-swap/pkg/wallet"
)

var (
	filterChain  string
	filterSymbol string
	withBalances bool
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List all supported tokens",
	Long: `List all tokens in the local registry: the native asset of every
supported chain plus any tokens loaded from the configured token list.

You can filter tokens by blockchain or symbol.

Examples:
  altverse-swap list-tokens
  altverse-swap list-tokens --chain solana
  altverse-swap list-tokens --symbol USDC`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by blockchain")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
	tokensCmd.Flags().BoolVar(&withBalances, "balances", false, "Merge wallet balances (requires --chain and a configured key)")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var tokens []types.Token
	if filterChain != "" {
		chain, err := a.registry.Chain(strings.ToLower(filterChain))
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if withBalances {
			if err := refreshChainBalances(a, chain); err != nil {
				printError(err)
				os.Exit(1)
			}
		}
		tokens = a.registry.Tokens(chain.ID)
	} else {
		if withBalances {
			printError(fmt.Errorf("--balances requires --chain"))
			os.Exit(1)
		}
		for _, chain := range a.registry.Chains() {
			tokens = append(tokens, a.registry.Tokens(chain.ID)...)
		}
	}

	if filterSymbol != "" {
		var filtered []types.Token
		for _, token := range tokens {
			if strings.Contains(strings.ToUpper(token.Ticker), strings.ToUpper(filterSymbol)) {
				filtered = append(filtered, token)
			}
		}
		tokens = filtered
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(tokens, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTokens(tokens)
	}
}

// refreshChainBalances connects the configured wallet for the chain and
// merges its balances into the registry before listing.
func refreshChainBalances(a *app, chain types.Chain) error {
	var (
		connector wallet.Connector
		err       error
	)

	switch chain.Kind {
	case types.WalletSolana:
		connector, err = wallet.NewSolanaConnector(a.cfg.Solana)
	case types.WalletEVM:
		connector, err = wallet.NewEVMConnector(a.cfg.EVM, chain.ID)
	default:
		return fmt.Errorf("no wallet support for chain '%s'", chain.ID)
	}
	if err != nil {
		return err
	}
	defer connector.Close()

	return a.registry.RefreshBalances(context.Background(), connector, connector.Address(), chain.ID)
}

func displayTokens(tokens []types.Token) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	// Group tokens by blockchain
	tokensByChain := make(map[string][]types.Token)
	for _, token := range tokens {
		tokensByChain[token.ChainID] = append(tokensByChain[token.ChainID], token)
	}

	// Sort chains alphabetically
	chains := make([]string, 0, len(tokensByChain))
	for chain := range tokensByChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	// Display tokens grouped by chain
	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range tokensByChain[chain] {
			address := token.Address
			if token.Native {
				address = "(native)"
			}

			// Truncate address if too long
			if len(address) > 40 {
				address = address[:37] + "..."
			}

			balance := ""
			if token.Balance != "" {
				balance = "  " + color.GreenString(token.Balance)
			}

			fmt.Printf("  %-10s  %2d decimals  %s%s\n",
				color.YellowString(token.Ticker),
				token.Decimals,
				color.HiBlackString(address),
				balance)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(tokens), len(chains))
}
