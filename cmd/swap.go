package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"altverse-swap/pkg/notify"
	"altverse-swap/pkg/parser"
	"altverse-swap/pkg/quote"
	"altverse-swap/pkg/transfer"
	"altverse-swap/pkg/types"
	"altverse-swap/pkg/wallet"
)

const defaultSlippageBps = 100

var (
	fromChain     string
	toChain       string
	recipientAddr string
	slippagePct   string
	noConfirm     bool
	executeSwap   bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Price and submit a cross-chain token swap",
	Long: `Swap tokens across different blockchains.

The command fetches a live quote for the pair, shows the expected output
and the fee breakdown, and on confirmation either prints the deposit
address or, with --execute, submits the transfer from the configured key.

Examples:
  # Price a swap and print the deposit address
  altverse-swap swap 1 ETH to USDC --from-chain ethereum --to-chain base --recipient 0x123...

  # Submit the transfer from the configured wallet
  altverse-swap swap 100 USDC to SOL --from-chain polygon --to-chain solana --execute

  # Skip the confirmation prompt
  altverse-swap swap 0.5 ETH to USDC --from-chain ethereum --to-chain ethereum --execute --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVar(&fromChain, "from-chain", "ethereum", "Source blockchain")
	swapCmd.Flags().StringVar(&toChain, "to-chain", "", "Destination blockchain (defaults to the source chain)")
	swapCmd.Flags().StringVar(&recipientAddr, "recipient", "", "Recipient address (defaults to the connected wallet with --execute)")
	swapCmd.Flags().StringVar(&slippagePct, "slippage", types.SlippageAuto, "Slippage tolerance in percent, or 'auto'")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().BoolVar(&executeSwap, "execute", false, "Submit the transfer from the configured wallet")
}

// quoteAlerts routes quote failures into the notification center.
type quoteAlerts struct {
	center *notify.Center
}

func (q quoteAlerts) QuoteFailed(reason string) {
	q.center.Push(notify.StatusError, "Quote unavailable", reason)
}

func runSwap(cmd *cobra.Command, args []string) {
	commandStr := strings.Join(args, " ")
	swapReq, err := parser.ParseSwapCommand(commandStr)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx := context.Background()

	if toChain == "" {
		toChain = fromChain
	}

	sourceChain, err := a.registry.Chain(fromChain)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	destChain, err := a.registry.Chain(toChain)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	sourceToken, err := a.registry.Token(sourceChain.ID, parser.NormalizeTokenSymbol(swapReq.SourceTicker))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	destToken, err := a.registry.Token(destChain.ID, parser.NormalizeTokenSymbol(swapReq.DestTicker))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	a.store.SetSourceChain(&sourceChain)
	a.store.SetDestChain(&destChain)
	a.store.SetSourceToken(&sourceToken)
	a.store.SetDestToken(&destToken)
	a.store.SetSlippage(slippagePct)
	if recipientAddr != "" {
		a.store.SetRecipient(recipientAddr)
	}

	// Connect the configured wallet up front when executing so the
	// recipient and refund addresses can default to it.
	wallets := wallet.NewManager()
	defer wallets.Close()
	if executeSwap {
		if err := connectWallet(ctx, a, wallets, sourceChain); err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	if a.store.Preferences().Recipient == "" {
		if _, connected := a.store.ActiveWallet(); !connected {
			printError(fmt.Errorf("--recipient is required unless --execute connects a wallet"))
			os.Exit(1)
		}
	}

	// Price the pair.
	snap, err := priceSwap(a, swapReq.Amount, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if verbose {
		fmt.Printf("\nQuote snapshot:\n")
		snapJSON, _ := json.MarshalIndent(snap, "", "  ")
		fmt.Println(string(snapJSON))
	}

	if jsonOutput {
		output := map[string]interface{}{
			"source_amount":    swapReq.Amount,
			"source_token":     sourceToken.Ticker,
			"dest_token":       destToken.Ticker,
			"expected_output":  snap.Derived.ExpectedOutput,
			"protocol_fee_usd": snap.Derived.ProtocolFeeUSD,
			"total_fee_usd":    snap.Derived.TotalFeeUSD,
			"status":           "quote_generated",
		}
		if snap.Derived.ETASeconds != nil {
			output["time_estimate_sec"] = *snap.Derived.ETASeconds
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayQuote(snap, sourceToken, destToken)
	}

	if !noConfirm && !jsonOutput {
		if !confirmSwap() {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	if executeSwap {
		runTransfer(ctx, a, wallets, snap, jsonOutput)
		return
	}

	// Without --execute, reserve a deposit address and print manual
	// instructions the way a custodial flow would.
	deposit, err := a.router.CreateDeposit(ctx, a.requestBuilder()(a.store.InputTuple()))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		output := map[string]interface{}{
			"deposit_address": deposit.DepositAddress,
			"deposit_memo":    deposit.DepositMemo,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayDepositInstructions(deposit, swapReq.Amount, sourceToken.Ticker)
	fmt.Println("\nYou can monitor the swap status using:")
	color.Cyan("  altverse-swap status %s\n", deposit.DepositAddress)
}

// priceSwap drives the quote engine through one debounce/fetch cycle and
// returns the settled snapshot.
func priceSwap(a *app, amount string, jsonOutput bool) (quote.Snapshot, error) {
	updates := make(chan quote.Snapshot, 16)

	engine := quote.NewEngine(a.router, a.requestBuilder(),
		quote.WithDebounce(a.cfg.QuoteDebounce),
		quote.WithRefreshInterval(a.cfg.QuoteRefresh),
		quote.WithLogger(a.log),
		quote.WithNotifier(quoteAlerts{a.notifier}),
		quote.WithOnUpdate(func(snap quote.Snapshot) {
			select {
			case updates <- snap:
			default:
			}
		}),
	)
	defer engine.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
		defer s.Stop()
	}

	a.store.SetAmount(amount)
	engine.SetInput(a.store.InputTuple())

	deadline := time.After(45 * time.Second)
	for {
		select {
		case snap := <-updates:
			switch snap.State {
			case quote.StateSettled:
				return snap, nil
			case quote.StateFailed:
				return snap, fmt.Errorf("%s", snap.Err)
			}
		case <-deadline:
			return quote.Snapshot{}, fmt.Errorf("timed out waiting for a quote")
		}
	}
}

// runTransfer submits the priced swap through the transfer executor.
func runTransfer(ctx context.Context, a *app, wallets *wallet.Manager, snap quote.Snapshot, jsonOutput bool) {
	engine := staticQuoteSource{snap: snap}
	guard := transfer.NewGuard(a.store, wallets, a.log)
	executor := transfer.NewExecutor(a.store, wallets, engine, guard, a.router, a.notifier, a.requestBuilder(), a.log)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Submitting transfer..."
		s.Start()
	}

	execErr := executor.Execute(ctx,
		func(amount string, source, dest types.Token) {
			if !jsonOutput {
				s.Stop()
			}
			printSuccess(color.GreenString("Swapped %s %s for %s.", amount, source.Ticker, dest.Ticker))
		},
		func(err error) {
			if !jsonOutput {
				s.Stop()
			}
			color.Red("\n%s", transfer.Classify(err))
		},
	)
	if execErr != nil {
		os.Exit(1)
	}

	for _, n := range a.notifier.List() {
		if n.Status == notify.StatusSuccess && !jsonOutput {
			fmt.Println("You can monitor the swap status using:")
			color.Cyan("  altverse-swap status <deposit-address>\n")
			break
		}
	}
}

// staticQuoteSource pins the snapshot taken at confirmation time so the
// executor compares against exactly what the user approved.
type staticQuoteSource struct {
	snap quote.Snapshot
}

func (s staticQuoteSource) SettledQuote() (types.Quote, types.QuoteInput, bool) {
	if s.snap.State != quote.StateSettled || s.snap.Quote == nil {
		return types.Quote{}, types.QuoteInput{}, false
	}
	return *s.snap.Quote, s.snap.Input, true
}

func (s staticQuoteSource) SetProcessing(bool) {}

// connectWallet resolves the connector family for the source chain and
// records the session.
func connectWallet(ctx context.Context, a *app, wallets *wallet.Manager, sourceChain types.Chain) error {
	var (
		connector wallet.Connector
		err       error
	)

	switch sourceChain.Kind {
	case types.WalletSolana:
		connector, err = wallet.NewSolanaConnector(a.cfg.Solana)
	case types.WalletEVM:
		connector, err = wallet.NewEVMConnector(a.cfg.EVM, sourceChain.ID)
	default:
		return fmt.Errorf("no wallet support for chain '%s'", sourceChain.ID)
	}
	if err != nil {
		return err
	}

	sess, err := wallets.Connect(ctx, connector, "local keystore")
	if err != nil {
		connector.Close()
		return err
	}
	a.store.ConnectWallet(sess)
	return nil
}

func (a *app) requestBuilder() quote.RequestBuilder {
	return func(in types.QuoteInput) types.QuoteRequest {
		prefs := a.store.Preferences()

		recipient := prefs.Recipient
		refundTo := ""
		if sess, connected := a.store.ActiveWallet(); connected {
			if recipient == "" {
				recipient = sess.Address
			}
			refundTo = sess.Address
		}

		return types.QuoteRequest{
			Amount:          in.Amount,
			SourceToken:     *in.SourceToken,
			DestToken:       *in.DestToken,
			SourceChain:     *in.SourceChain,
			DestChain:       *in.DestChain,
			SlippageBps:     prefs.SlippageBps(defaultSlippageBps),
			GasDrop:         in.GasDrop,
			Recipient:       recipient,
			RefundTo:        refundTo,
			ReferrerAddress: a.cfg.ReferrerAddress,
			ReferrerFeeBps:  a.cfg.ReferrerFeeBps,
		}
	}
}

func displayQuote(snap quote.Snapshot, source, dest types.Token) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:              %s %s\n", snap.Input.Amount, color.YellowString(source.Ticker))
	fmt.Printf("  To:                ~%s %s\n", snap.Derived.ExpectedOutput, color.YellowString(dest.Ticker))
	if snap.Derived.ETASeconds != nil {
		fmt.Printf("  Estimated Time:    %d seconds\n", *snap.Derived.ETASeconds)
	}
	fmt.Printf("  Protocol Fee:      $%s\n", snap.Derived.ProtocolFeeUSD)
	if snap.Derived.RelayerFeeUSD != "" {
		fmt.Printf("  Relayer Fee:       $%s\n", snap.Derived.RelayerFeeUSD)
	}
	fmt.Printf("  Total Fee:         $%s\n", snap.Derived.TotalFeeUSD)

	if snap.Input.SourceChain != nil {
		fmt.Printf("  Source Chain:      %s\n", snap.Input.SourceChain.Name)
	}
	if snap.Input.DestChain != nil {
		fmt.Printf("  Destination Chain: %s\n", snap.Input.DestChain.Name)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displayDepositInstructions(deposit *types.Quote, amount, sourceTicker string) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Yellow("                 DEPOSIT INSTRUCTIONS")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\nTo complete the swap, send %s %s to:\n\n", amount, sourceTicker)
	color.Cyan("  %s\n", deposit.DepositAddress)

	if deposit.DepositMemo != "" {
		fmt.Printf("\nMemo (REQUIRED): %s\n", color.MagentaString(deposit.DepositMemo))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func confirmSwap() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with swap? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
