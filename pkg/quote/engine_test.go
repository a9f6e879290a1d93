package quote

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"altverse-swap/pkg/types"
)

type fetchReply struct {
	quotes []types.Quote
	err    error
}

type fetchCall struct {
	req   types.QuoteRequest
	reply chan fetchReply
}

// fakeRouter hands every fetch to the test for explicit completion, so
// tests control the exact ordering of in-flight requests.
type fakeRouter struct {
	calls chan fetchCall
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{calls: make(chan fetchCall, 16)}
}

func (f *fakeRouter) FetchQuote(ctx context.Context, req types.QuoteRequest) ([]types.Quote, error) {
	call := fetchCall{req: req, reply: make(chan fetchReply, 1)}
	f.calls <- call
	r := <-call.reply
	return r.quotes, r.err
}

func (f *fakeRouter) expectCall(t *testing.T) fetchCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a quote fetch")
		return fetchCall{}
	}
}

func (f *fakeRouter) expectNoCall(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case <-f.calls:
		t.Fatal("unexpected quote fetch")
	case <-time.After(within):
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recordingNotifier) QuoteFailed(reason string) {
	r.mu.Lock()
	r.reasons = append(r.reasons, reason)
	r.mu.Unlock()
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

func testInput(amount string) types.QuoteInput {
	src := types.Token{ID: "ethereum:native", Ticker: "ETH", Decimals: 18, ChainID: "ethereum", Native: true}
	dst := types.Token{ID: "base:usdc", Ticker: "USDC", Decimals: 6, ChainID: "base"}
	eth := types.Chain{ID: "ethereum", Name: "Ethereum", NetworkID: 1, Kind: types.WalletEVM}
	base := types.Chain{ID: "base", Name: "Base", NetworkID: 8453, Kind: types.WalletEVM}
	return types.QuoteInput{
		Amount:      amount,
		SourceToken: &src,
		DestToken:   &dst,
		SourceChain: &eth,
		DestChain:   &base,
		Slippage:    types.SlippageAuto,
	}
}

func testBuilder(in types.QuoteInput) types.QuoteRequest {
	return types.QuoteRequest{Amount: in.Amount}
}

func quoteFor(amountIn, expectedOut string) types.Quote {
	bps := int64(50)
	return types.Quote{
		AmountIn:       decimal.RequireFromString(amountIn),
		ExpectedOut:    decimal.RequireFromString(expectedOut),
		ProtocolFeeBps: &bps,
	}
}

func waitState(t *testing.T, updates <-chan Snapshot, want State) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-updates:
			if snap.State == want {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func newTestEngine(router Router, opts ...Option) (*Engine, chan Snapshot) {
	updates := make(chan Snapshot, 64)
	base := []Option{
		WithDebounce(2 * time.Millisecond),
		WithOnUpdate(func(snap Snapshot) { updates <- snap }),
	}
	e := NewEngine(router, testBuilder, append(base, opts...)...)
	return e, updates
}

func TestEngineSettlesAfterDebounce(t *testing.T) {
	router := newFakeRouter()
	engine, updates := newTestEngine(router)
	defer engine.Close()

	engine.SetInput(testInput("100"))
	waitState(t, updates, StateDebouncing)

	call := router.expectCall(t)
	assert.Equal(t, "100", call.req.Amount)
	call.reply <- fetchReply{quotes: []types.Quote{quoteFor("100", "99.4")}}

	snap := waitState(t, updates, StateSettled)
	require.NotNil(t, snap.Quote)
	assert.Equal(t, "99.4", snap.Derived.ExpectedOutput)
	assert.Equal(t, "0.5", snap.Derived.ProtocolFeeUSD)
	assert.Equal(t, "0.6", snap.Derived.TotalFeeUSD)
	assert.False(t, snap.IsLoadingQuote)
	assert.Empty(t, snap.Err)
}

func TestStaleSuccessIsDiscarded(t *testing.T) {
	router := newFakeRouter()
	engine, updates := newTestEngine(router)
	defer engine.Close()

	engine.SetInput(testInput("1"))
	first := router.expectCall(t)

	// A new input while the first fetch is still in flight makes the
	// first completion stale.
	engine.SetInput(testInput("2"))
	second := router.expectCall(t)

	second.reply <- fetchReply{quotes: []types.Quote{quoteFor("2", "1.99")}}
	snap := waitState(t, updates, StateSettled)
	assert.Equal(t, "1.99", snap.Derived.ExpectedOutput)

	first.reply <- fetchReply{quotes: []types.Quote{quoteFor("1", "0.99")}}
	time.Sleep(50 * time.Millisecond)

	after := engine.Snapshot()
	assert.Equal(t, StateSettled, after.State)
	assert.Equal(t, "1.99", after.Derived.ExpectedOutput)
}

func TestStaleFailureDoesNotClearFreshQuote(t *testing.T) {
	router := newFakeRouter()
	notifier := &recordingNotifier{}
	engine, updates := newTestEngine(router, WithNotifier(notifier))
	defer engine.Close()

	engine.SetInput(testInput("1"))
	first := router.expectCall(t)

	engine.SetInput(testInput("2"))
	second := router.expectCall(t)

	second.reply <- fetchReply{quotes: []types.Quote{quoteFor("2", "1.99")}}
	waitState(t, updates, StateSettled)

	first.reply <- fetchReply{err: context.DeadlineExceeded}
	time.Sleep(50 * time.Millisecond)

	after := engine.Snapshot()
	assert.Equal(t, StateSettled, after.State)
	require.NotNil(t, after.Quote)
	assert.Empty(t, after.Err)
	assert.Zero(t, notifier.count(), "stale failure must never be surfaced")
}

func TestInvalidInputClearsSynchronously(t *testing.T) {
	router := newFakeRouter()
	engine, updates := newTestEngine(router)
	defer engine.Close()

	engine.SetInput(testInput("100"))
	call := router.expectCall(t)
	call.reply <- fetchReply{quotes: []types.Quote{quoteFor("100", "99.4")}}
	waitState(t, updates, StateSettled)

	// Clearing happens before SetInput returns, not on the next tick.
	engine.SetInput(testInput("0"))
	snap := engine.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Quote)
	assert.Equal(t, Derived{}, snap.Derived)
	assert.Empty(t, snap.Err)

	// Clearing an already-cleared engine is a no-op, not an error.
	engine.SetInput(types.QuoteInput{})
	snap = engine.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Quote)

	router.expectNoCall(t, 30*time.Millisecond)
}

func TestFetchFailureSurfacesAndNotifies(t *testing.T) {
	router := newFakeRouter()
	notifier := &recordingNotifier{}
	engine, updates := newTestEngine(router, WithNotifier(notifier))
	defer engine.Close()

	engine.SetInput(testInput("100"))
	call := router.expectCall(t)
	call.reply <- fetchReply{err: assert.AnError}

	snap := waitState(t, updates, StateFailed)
	assert.Nil(t, snap.Quote)
	assert.Equal(t, Derived{}, snap.Derived)
	assert.NotEmpty(t, snap.Err)
	assert.Equal(t, 1, notifier.count())
}

func TestEmptyQuoteListFails(t *testing.T) {
	router := newFakeRouter()
	engine, updates := newTestEngine(router)
	defer engine.Close()

	engine.SetInput(testInput("100"))
	call := router.expectCall(t)
	call.reply <- fetchReply{quotes: nil}

	snap := waitState(t, updates, StateFailed)
	assert.Contains(t, snap.Err, "no route")
}

func TestDebounceCoalescesRapidInput(t *testing.T) {
	router := newFakeRouter()
	engine, _ := newTestEngine(router, WithDebounce(30*time.Millisecond))
	defer engine.Close()

	for _, amount := range []string{"1", "12", "123", "1234", "12345"} {
		engine.SetInput(testInput(amount))
	}

	call := router.expectCall(t)
	assert.Equal(t, "12345", call.req.Amount, "only the final input should be fetched")
	call.reply <- fetchReply{quotes: []types.Quote{quoteFor("12345", "12300")}}

	router.expectNoCall(t, 60*time.Millisecond)
}

func TestRefreshRepricesSettledQuote(t *testing.T) {
	router := newFakeRouter()
	engine, updates := newTestEngine(router, WithRefreshInterval(20*time.Millisecond))
	defer engine.Close()
	engine.Start()

	engine.SetInput(testInput("100"))
	call := router.expectCall(t)
	call.reply <- fetchReply{quotes: []types.Quote{quoteFor("100", "99.4")}}
	waitState(t, updates, StateSettled)

	refresh := router.expectCall(t)
	assert.Equal(t, "100", refresh.req.Amount)
	refresh.reply <- fetchReply{quotes: []types.Quote{quoteFor("100", "99.2")}}

	snap := waitState(t, updates, StateSettled)
	assert.Equal(t, "99.2", snap.Derived.ExpectedOutput)
}

func TestRefreshSuppressedWhileProcessing(t *testing.T) {
	router := newFakeRouter()
	engine, updates := newTestEngine(router, WithRefreshInterval(20*time.Millisecond))
	defer engine.Close()
	engine.Start()

	engine.SetInput(testInput("100"))
	call := router.expectCall(t)
	call.reply <- fetchReply{quotes: []types.Quote{quoteFor("100", "99.4")}}
	waitState(t, updates, StateSettled)

	engine.SetProcessing(true)
	router.expectNoCall(t, 100*time.Millisecond)

	engine.SetProcessing(false)
	refresh := router.expectCall(t)
	refresh.reply <- fetchReply{quotes: []types.Quote{quoteFor("100", "99.3")}}
	waitState(t, updates, StateSettled)
}

func TestRefreshIgnoredWhenIdle(t *testing.T) {
	router := newFakeRouter()
	engine, _ := newTestEngine(router, WithRefreshInterval(20*time.Millisecond))
	defer engine.Close()
	engine.Start()

	router.expectNoCall(t, 80*time.Millisecond)
}

func TestSettledQuoteReturnsPricedInput(t *testing.T) {
	router := newFakeRouter()
	engine, updates := newTestEngine(router)
	defer engine.Close()

	_, _, ok := engine.SettledQuote()
	assert.False(t, ok)

	in := testInput("100")
	engine.SetInput(in)
	call := router.expectCall(t)
	call.reply <- fetchReply{quotes: []types.Quote{quoteFor("100", "99.4")}}
	waitState(t, updates, StateSettled)

	q, pricedFor, ok := engine.SettledQuote()
	require.True(t, ok)
	assert.True(t, pricedFor.Equal(in))
	assert.Equal(t, "99.4", q.ExpectedOut.String())
}

func TestCloseInvalidatesInFlightFetch(t *testing.T) {
	router := newFakeRouter()
	engine, _ := newTestEngine(router)

	engine.SetInput(testInput("100"))
	call := router.expectCall(t)

	engine.Close()
	call.reply <- fetchReply{quotes: []types.Quote{quoteFor("100", "99.4")}}
	time.Sleep(30 * time.Millisecond)

	snap := engine.Snapshot()
	assert.Nil(t, snap.Quote)
	assert.NotEqual(t, StateSettled, snap.State)
}
