package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"altverse-swap/config"
	"altverse-swap/pkg/client"
	"altverse-swap/pkg/logger"
	"altverse-swap/pkg/notify"
	"altverse-swap/pkg/registry"
	"altverse-swap/pkg/session"
)

var rootCmd = &cobra.Command{
	Use:   "altverse-swap",
	Short: "A CLI for cross-chain token swaps",
	Long: `altverse-swap is a command-line tool for cross-chain token swaps. It keeps
a live quote for the pair you are pricing, guards that your wallet is on
the right network, and submits the transfer from a locally configured key.

Examples:
  altverse-swap swap 1 ETH to USDC --from-chain ethereum --to-chain base
  altverse-swap swap 100 USDC to SOL --from-chain polygon --to-chain solana --execute
  altverse-swap list-tokens
  altverse-swap chains
  altverse-swap status <deposit-address>`,
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
}

// app bundles the long-lived pieces every command needs.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *registry.Registry
	store    *session.Store
	notifier *notify.Center
	router   *client.RoutingClient
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Encoding)

	reg, err := registry.New(cfg.TokenListFile, log)
	if err != nil {
		return nil, err
	}

	store, err := session.NewStore(cfg.SessionFile, log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      log,
		registry: reg,
		store:    store,
		notifier: notify.NewCenter(log),
		router:   client.NewRoutingClient(cfg.JWTToken, cfg.ReferrerAddress, cfg.ReferrerFeeBps, log),
	}, nil
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
