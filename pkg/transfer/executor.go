package transfer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"altverse-swap/pkg/notify"
	"altverse-swap/pkg/quote"
	"altverse-swap/pkg/session"
	"altverse-swap/pkg/types"
)

// Submitter replays an accepted quote into an execution call and reports
// the deposit transaction back to the routing service.
// *client.RoutingClient satisfies it.
type Submitter interface {
	CreateDeposit(ctx context.Context, req types.QuoteRequest) (*types.Quote, error)
	SubmitDepositTx(ctx context.Context, depositAddress, txHash string) error
}

// QuoteSource is the executor's view of the quote engine.
type QuoteSource interface {
	SettledQuote() (types.Quote, types.QuoteInput, bool)
	SetProcessing(bool)
}

// SuccessCallback receives the amount and token identities of a completed
// transfer.
type SuccessCallback func(amount string, source, dest types.Token)

// ErrorCallback receives the classified failure of an aborted transfer.
type ErrorCallback func(err error)

// Executor submits a transfer using the current settled quote and an
// authenticated signer, and classifies the outcome. It never retries; a
// retry is a fresh user-initiated invocation.
type Executor struct {
	session   *session.Store
	wallets   ConnectorSource
	engine    QuoteSource
	guard     *Guard
	submitter Submitter
	notifier  *notify.Center
	builder   quote.RequestBuilder
	log       *zap.Logger
}

// NewExecutor creates a transfer executor.
func NewExecutor(
	store *session.Store,
	wallets ConnectorSource,
	engine QuoteSource,
	guard *Guard,
	submitter Submitter,
	notifier *notify.Center,
	builder quote.RequestBuilder,
	log *zap.Logger,
) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		session:   store,
		wallets:   wallets,
		engine:    engine,
		guard:     guard,
		submitter: submitter,
		notifier:  notifier,
		builder:   builder,
		log:       log,
	}
}

// Execute runs the transfer sequence: validate input, guard the chain,
// acquire the signer, re-assert the latest settled quote, submit, classify.
// A pending notification is raised before the signer is touched and is
// resolved to success or error exactly once on every exit path.
func (x *Executor) Execute(ctx context.Context, onSuccess SuccessCallback, onError ErrorCallback) error {
	in := x.session.InputTuple()
	if !in.Valid() {
		return x.fail(onError, ErrInvalidInput)
	}

	sess, connected := x.session.ActiveWallet()
	if !connected {
		return x.fail(onError, ErrWalletNotConnected)
	}

	required := *in.SourceChain
	if !x.guard.CheckCurrentChain(ctx, required) {
		if err := x.guard.SwitchToSourceChain(ctx, required); err != nil {
			// Precondition failure: abort before touching any signer.
			x.notifier.Push(notify.StatusError, "Wrong network",
				fmt.Sprintf("Please switch your wallet to %s to continue.", required.Name))
			return x.fail(onError, err)
		}
	}

	x.engine.SetProcessing(true)
	defer x.engine.SetProcessing(false)

	pendingID := x.notifier.Pending("Transfer",
		fmt.Sprintf("Swapping %s %s for %s...", in.Amount, in.SourceToken.Ticker, in.DestToken.Ticker))

	var execErr error
	defer func() {
		// The pending notification must resolve exactly once on every
		// exit path, including panics.
		if r := recover(); r != nil {
			_ = x.notifier.Resolve(pendingID, notify.StatusError, genericFailure)
			panic(r)
		}
		if execErr != nil {
			_ = x.notifier.Resolve(pendingID, notify.StatusError, Classify(execErr))
		} else {
			_ = x.notifier.Resolve(pendingID, notify.StatusSuccess,
				fmt.Sprintf("Swapped %s %s for %s.", in.Amount, in.SourceToken.Ticker, in.DestToken.Ticker))
		}
	}()

	connector, exists := x.wallets.Connector(sess.Kind)
	if !exists {
		execErr = ErrWalletNotConnected
		return x.fail(onError, execErr)
	}

	signer, err := connector.Signer(ctx)
	if err != nil {
		execErr = fmt.Errorf("%w: %v", ErrSignerUnavailable, err)
		return x.fail(onError, execErr)
	}

	// Execution must never use a quote from a previous input tuple.
	settled, settledInput, ok := x.engine.SettledQuote()
	if !ok || !settledInput.Equal(in) {
		execErr = ErrQuoteExpired
		return x.fail(onError, execErr)
	}

	req := x.builder(in)
	deposit, err := x.submitter.CreateDeposit(ctx, req)
	if err != nil {
		execErr = err
		return x.fail(onError, execErr)
	}

	transferReq := &types.TransferRequest{
		ID:          uuid.New().String(),
		Quote:       *deposit,
		Amount:      in.Amount,
		SourceToken: *in.SourceToken,
		DestToken:   *in.DestToken,
		SourceChain: *in.SourceChain,
		DestChain:   *in.DestChain,
		FromAddress: sess.Address,
		ToAddress:   req.Recipient,
		Referrer:    req.ReferrerAddress,
	}

	txHash, err := signer.SendTransfer(ctx, transferReq)
	if err != nil {
		execErr = err
		return x.fail(onError, execErr)
	}

	// Best-effort: settlement starts sooner when the deposit hash is
	// reported, but the transfer is already on-chain either way.
	if err := x.submitter.SubmitDepositTx(ctx, deposit.DepositAddress, txHash); err != nil {
		x.log.Warn("failed to report deposit transaction", zap.String("tx", txHash), zap.Error(err))
	}

	x.log.Info("transfer submitted",
		zap.String("tx", txHash),
		zap.String("deposit_address", deposit.DepositAddress),
		zap.String("expected_out", settled.ExpectedOut.String()))

	if onSuccess != nil {
		onSuccess(in.Amount, *in.SourceToken, *in.DestToken)
	}
	return nil
}

func (x *Executor) fail(onError ErrorCallback, err error) error {
	if onError != nil {
		onError(err)
	}
	return err
}
