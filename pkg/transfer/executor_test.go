package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"altverse-swap/pkg/notify"
	"altverse-swap/pkg/session"
	"altverse-swap/pkg/types"
	"altverse-swap/pkg/wallet"
)

var (
	chainEthereum = types.Chain{ID: "ethereum", Name: "Ethereum", NetworkID: 1, Kind: types.WalletEVM}
	chainPolygon  = types.Chain{ID: "polygon", Name: "Polygon", NetworkID: 137, Kind: types.WalletEVM}
)

type fakeSigner struct {
	mu     sync.Mutex
	calls  []*types.TransferRequest
	txHash string
	err    error
	panics bool
}

func (s *fakeSigner) SendTransfer(ctx context.Context, req *types.TransferRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.panics {
		panic("signer blew up")
	}
	return s.txHash, s.err
}

func (s *fakeSigner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeConnector struct {
	kind        types.WalletKind
	address     string
	chainID     uint64
	chainErr    error
	switchErr   error
	switchCalls []uint64
	signer      *fakeSigner
	signerErr   error
}

func (c *fakeConnector) Kind() types.WalletKind { return c.kind }
func (c *fakeConnector) Address() string        { return c.address }

func (c *fakeConnector) ChainID(ctx context.Context) (uint64, error) {
	return c.chainID, c.chainErr
}

func (c *fakeConnector) SwitchChain(ctx context.Context, networkID uint64) error {
	c.switchCalls = append(c.switchCalls, networkID)
	if c.switchErr != nil {
		return c.switchErr
	}
	c.chainID = networkID
	return nil
}

func (c *fakeConnector) Signer(ctx context.Context) (wallet.Signer, error) {
	if c.signerErr != nil {
		return nil, c.signerErr
	}
	return c.signer, nil
}

func (c *fakeConnector) NativeBalance(ctx context.Context, address string) (string, error) {
	return "0", nil
}

func (c *fakeConnector) TokenBalance(ctx context.Context, address, tokenContract string, decimals uint8) (string, error) {
	return "0", nil
}

func (c *fakeConnector) Close() {}

type fakeConnectors map[types.WalletKind]wallet.Connector

func (f fakeConnectors) Connector(kind types.WalletKind) (wallet.Connector, bool) {
	c, exists := f[kind]
	return c, exists
}

type fakeSubmitter struct {
	mu          sync.Mutex
	deposits    []types.QuoteRequest
	depositErr  error
	submitted   [][2]string
	submitErr   error
	depositAddr string
}

func (f *fakeSubmitter) CreateDeposit(ctx context.Context, req types.QuoteRequest) (*types.Quote, error) {
	f.mu.Lock()
	f.deposits = append(f.deposits, req)
	f.mu.Unlock()
	if f.depositErr != nil {
		return nil, f.depositErr
	}
	return &types.Quote{
		AmountIn:       decimal.RequireFromString(req.Amount),
		ExpectedOut:    decimal.RequireFromString("99.4"),
		DepositAddress: f.depositAddr,
	}, nil
}

func (f *fakeSubmitter) SubmitDepositTx(ctx context.Context, depositAddress, txHash string) error {
	f.mu.Lock()
	f.submitted = append(f.submitted, [2]string{depositAddress, txHash})
	f.mu.Unlock()
	return f.submitErr
}

func (f *fakeSubmitter) depositCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deposits)
}

type fakeQuoteSource struct {
	mu         sync.Mutex
	quote      types.Quote
	input      types.QuoteInput
	ok         bool
	processing []bool
}

func (f *fakeQuoteSource) SettledQuote() (types.Quote, types.QuoteInput, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quote, f.input, f.ok
}

func (f *fakeQuoteSource) SetProcessing(p bool) {
	f.mu.Lock()
	f.processing = append(f.processing, p)
	f.mu.Unlock()
}

func newTestSession(t *testing.T) *session.Store {
	t.Helper()
	store, err := session.NewStore("", nil)
	require.NoError(t, err)

	eth := chainEthereum
	src := types.Token{ID: "ethereum:native", Ticker: "ETH", Decimals: 18, ChainID: "ethereum", Native: true}
	base := types.Chain{ID: "base", Name: "Base", NetworkID: 8453, Kind: types.WalletEVM}
	dst := types.Token{ID: "base:usdc", Ticker: "USDC", Decimals: 6, ChainID: "base"}

	store.SetSourceChain(&eth)
	store.SetDestChain(&base)
	store.SetSourceToken(&src)
	store.SetDestToken(&dst)
	store.SetAmount("100")
	return store
}

func testRequestBuilder(in types.QuoteInput) types.QuoteRequest {
	return types.QuoteRequest{Amount: in.Amount, Recipient: "0xrecipient"}
}

type executorFixture struct {
	store     *session.Store
	connector *fakeConnector
	submitter *fakeSubmitter
	source    *fakeQuoteSource
	notifier  *notify.Center
	executor  *Executor
}

func newExecutorFixture(t *testing.T, walletChainID uint64) *executorFixture {
	t.Helper()

	store := newTestSession(t)
	connector := &fakeConnector{
		kind:    types.WalletEVM,
		address: "0xsender",
		chainID: walletChainID,
		signer:  &fakeSigner{txHash: "0xtxhash"},
	}
	store.ConnectWallet(types.WalletSession{
		Kind: types.WalletEVM, Name: "test", Address: "0xsender", ChainID: walletChainID,
	})

	connectors := fakeConnectors{types.WalletEVM: connector}
	submitter := &fakeSubmitter{depositAddr: "0xdeposit"}
	source := &fakeQuoteSource{
		quote: types.Quote{ExpectedOut: decimal.RequireFromString("99.4")},
		input: store.InputTuple(),
		ok:    true,
	}
	notifier := notify.NewCenter(nil)
	guard := NewGuard(store, connectors, nil)

	return &executorFixture{
		store:     store,
		connector: connector,
		submitter: submitter,
		source:    source,
		notifier:  notifier,
		executor:  NewExecutor(store, connectors, source, guard, submitter, notifier, testRequestBuilder, nil),
	}
}

func lastNotification(t *testing.T, center *notify.Center) notify.Notification {
	t.Helper()
	items := center.List()
	require.NotEmpty(t, items)
	return items[len(items)-1]
}

func TestExecuteSubmitsOnMatchingChain(t *testing.T) {
	fx := newExecutorFixture(t, 1)

	var gotAmount string
	err := fx.executor.Execute(context.Background(),
		func(amount string, source, dest types.Token) { gotAmount = amount },
		nil,
	)
	require.NoError(t, err)

	assert.Equal(t, "100", gotAmount)
	assert.Empty(t, fx.connector.switchCalls, "no switch needed")
	require.Equal(t, 1, fx.connector.signer.callCount())

	sent := fx.connector.signer.calls[0]
	assert.Equal(t, "0xdeposit", sent.Quote.DepositAddress)
	assert.Equal(t, "0xsender", sent.FromAddress)
	assert.Equal(t, "ETH", sent.SourceToken.Ticker)

	require.Len(t, fx.submitter.submitted, 1)
	assert.Equal(t, [2]string{"0xdeposit", "0xtxhash"}, fx.submitter.submitted[0])

	n := lastNotification(t, fx.notifier)
	assert.Equal(t, notify.StatusSuccess, n.Status)
	assert.Zero(t, fx.notifier.PendingCount())

	assert.Equal(t, []bool{true, false}, fx.source.processing)
}

func TestExecuteSwitchesChainFirst(t *testing.T) {
	fx := newExecutorFixture(t, 137)

	err := fx.executor.Execute(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []uint64{1}, fx.connector.switchCalls)
	sess, connected := fx.store.ActiveWallet()
	require.True(t, connected)
	assert.Equal(t, uint64(1), sess.ChainID, "session cache follows the switch")
	assert.Equal(t, 1, fx.connector.signer.callCount())
}

func TestExecuteAbortsWhenSwitchFails(t *testing.T) {
	fx := newExecutorFixture(t, 137)
	fx.connector.switchErr = errors.New("user rejected the request")

	var cbErr error
	err := fx.executor.Execute(context.Background(), nil, func(e error) { cbErr = e })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongNetwork)
	assert.ErrorIs(t, cbErr, ErrWrongNetwork)
	assert.Contains(t, err.Error(), "Ethereum")

	// Precondition failure: nothing downstream runs and the session keeps
	// the wallet's actual chain.
	assert.Zero(t, fx.connector.signer.callCount())
	assert.Zero(t, fx.submitter.depositCount())
	sess, _ := fx.store.ActiveWallet()
	assert.Equal(t, uint64(137), sess.ChainID)

	n := lastNotification(t, fx.notifier)
	assert.Equal(t, notify.StatusError, n.Status)
	assert.Zero(t, fx.notifier.PendingCount(), "no pending raised before preconditions pass")
}

func TestExecuteInvalidInput(t *testing.T) {
	fx := newExecutorFixture(t, 1)
	fx.store.SetAmount("")

	err := fx.executor.Execute(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, fx.submitter.depositCount())
	assert.Empty(t, fx.notifier.List())
}

func TestExecuteWithoutWallet(t *testing.T) {
	fx := newExecutorFixture(t, 1)
	fx.store.DisconnectWallet(types.WalletEVM)

	err := fx.executor.Execute(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrWalletNotConnected)
	assert.Zero(t, fx.submitter.depositCount())
}

func TestExecuteRejectsStaleQuote(t *testing.T) {
	fx := newExecutorFixture(t, 1)

	// The settled quote was priced for a different amount than the
	// current input tuple.
	fx.source.mu.Lock()
	fx.source.input.Amount = "50"
	fx.source.mu.Unlock()

	err := fx.executor.Execute(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrQuoteExpired)
	assert.Zero(t, fx.submitter.depositCount())

	n := lastNotification(t, fx.notifier)
	assert.Equal(t, notify.StatusError, n.Status)
	assert.Zero(t, fx.notifier.PendingCount())
}

func TestExecuteSignerUnavailable(t *testing.T) {
	fx := newExecutorFixture(t, 1)
	fx.connector.signerErr = errors.New("keystore locked")

	err := fx.executor.Execute(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrSignerUnavailable)
	assert.Zero(t, fx.submitter.depositCount())
	assert.Zero(t, fx.notifier.PendingCount())
}

func TestExecuteSendFailureResolvesPending(t *testing.T) {
	fx := newExecutorFixture(t, 1)
	fx.connector.signer.err = errors.New("insufficient funds for transfer")

	var cbErr error
	err := fx.executor.Execute(context.Background(), nil, func(e error) { cbErr = e })
	require.Error(t, err)
	assert.Equal(t, err, cbErr)

	assert.Empty(t, fx.submitter.submitted, "no deposit report without a transaction")

	n := lastNotification(t, fx.notifier)
	assert.Equal(t, notify.StatusError, n.Status)
	assert.Equal(t, "Insufficient balance to complete this transfer.", n.Message)
	assert.Zero(t, fx.notifier.PendingCount())
}

func TestExecuteDepositReportFailureIsNotFatal(t *testing.T) {
	fx := newExecutorFixture(t, 1)
	fx.submitter.submitErr = errors.New("indexer unavailable")

	err := fx.executor.Execute(context.Background(), nil, nil)
	require.NoError(t, err, "the transfer is already on-chain")

	n := lastNotification(t, fx.notifier)
	assert.Equal(t, notify.StatusSuccess, n.Status)
}

func TestExecutePanicStillResolvesPending(t *testing.T) {
	fx := newExecutorFixture(t, 1)
	fx.connector.signer.panics = true

	require.Panics(t, func() {
		_ = fx.executor.Execute(context.Background(), nil, nil)
	})

	n := lastNotification(t, fx.notifier)
	assert.Equal(t, notify.StatusError, n.Status)
	assert.Zero(t, fx.notifier.PendingCount())
}
