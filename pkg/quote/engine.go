package quote

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"altverse-swap/pkg/types"
)

const (
	DefaultDebounce        = 300 * time.Millisecond
	DefaultRefreshInterval = 5 * time.Second
)

// State is the engine's position in the quote lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateDebouncing State = "debouncing"
	StateFetching   State = "fetching"
	StateSettled    State = "settled"
	StateFailed     State = "failed"
)

// Router is the external quote/routing service.
type Router interface {
	FetchQuote(ctx context.Context, req types.QuoteRequest) ([]types.Quote, error)
}

// Notifier surfaces quote failures to the user. Stale failures are never
// surfaced.
type Notifier interface {
	QuoteFailed(reason string)
}

// RequestBuilder turns the current input tuple into a routing request,
// attaching recipient/referral data from outside the engine's scope.
type RequestBuilder func(in types.QuoteInput) types.QuoteRequest

// Snapshot is a point-in-time copy of the engine's state.
type Snapshot struct {
	State          State
	Input          types.QuoteInput
	Seq            uint64
	IsLoadingQuote bool
	IsProcessing   bool
	Quote          *types.Quote
	Derived        Derived
	Err            string
}

// Engine maintains the single authoritative current quote for the user's
// current input. Rapid input changes are debounced into one fetch; a
// periodic timer refreshes a settled quote; completions are matched against
// a monotonic sequence number so an out-of-order network completion can
// never overwrite a fresher result.
type Engine struct {
	router   Router
	builder  RequestBuilder
	log      *zap.Logger
	notifier Notifier
	onUpdate func(Snapshot)

	debounce     time.Duration
	refreshEvery time.Duration

	mu            sync.Mutex
	state         State
	input         types.QuoteInput
	seq           uint64 // latest issued or invalidating sequence number
	fetching      bool   // a fetch for the current seq is in flight
	processing    bool   // a transfer is executing
	quote         *types.Quote
	derived       Derived
	errMsg        string
	debounceTimer *time.Timer
	closed        bool

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithDebounce overrides the input debounce interval.
func WithDebounce(d time.Duration) Option { return func(e *Engine) { e.debounce = d } }

// WithRefreshInterval overrides the periodic refresh interval.
func WithRefreshInterval(d time.Duration) Option { return func(e *Engine) { e.refreshEvery = d } }

// WithLogger sets the engine's logger.
func WithLogger(log *zap.Logger) Option { return func(e *Engine) { e.log = log } }

// WithNotifier sets the failure notifier.
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithOnUpdate registers a callback fired after every state change, outside
// the engine's lock.
func WithOnUpdate(fn func(Snapshot)) Option { return func(e *Engine) { e.onUpdate = fn } }

// NewEngine creates a quote engine. Call Start to enable the periodic
// refresh, and Close on teardown.
func NewEngine(router Router, builder RequestBuilder, opts ...Option) *Engine {
	e := &Engine{
		router:       router,
		builder:      builder,
		log:          zap.NewNop(),
		debounce:     DefaultDebounce,
		refreshEvery: DefaultRefreshInterval,
		state:        StateIdle,
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the periodic refresh loop.
func (e *Engine) Start() {
	go e.refreshLoop()
}

// Close stops the refresh loop and any pending debounce. In-flight fetches
// resolve into no-ops.
func (e *Engine) Close() {
	e.stopOnce.Do(func() { close(e.stop) })

	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.seq++ // outstanding completions become stale
	e.stopDebounceLocked()
}

// SetInput applies a change to the input tuple. An invalid tuple clears the
// quote and all derived fields synchronously and parks the engine in Idle;
// a valid tuple starts (or restarts) the debounce window. Either way the
// previous quote is invalidated immediately: any in-flight fetch becomes
// stale before a replacement arrives.
func (e *Engine) SetInput(in types.QuoteInput) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	e.seq++
	e.stopDebounceLocked()
	e.input = in
	e.fetching = false

	if !in.Valid() {
		e.state = StateIdle
		e.quote = nil
		e.derived = Derived{}
		e.errMsg = ""
		snap := e.snapshotLocked()
		e.mu.Unlock()
		e.fireUpdate(snap)
		return
	}

	e.state = StateDebouncing
	e.debounceTimer = time.AfterFunc(e.debounce, e.debounceExpired)
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.fireUpdate(snap)
}

// SetProcessing marks a transfer as executing. While set, the periodic
// refresh is suppressed.
func (e *Engine) SetProcessing(processing bool) {
	e.mu.Lock()
	e.processing = processing
	e.mu.Unlock()
}

// Snapshot returns a copy of the current engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// SettledQuote returns the current quote and the input tuple it was priced
// for, if the engine is settled. Execution must re-assert this immediately
// before submitting.
func (e *Engine) SettledQuote() (types.Quote, types.QuoteInput, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateSettled || e.quote == nil {
		return types.Quote{}, types.QuoteInput{}, false
	}
	return *e.quote, e.input, true
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:          e.state,
		Input:          e.input,
		Seq:            e.seq,
		IsLoadingQuote: e.fetching,
		IsProcessing:   e.processing,
		Derived:        e.derived,
		Err:            e.errMsg,
	}
	if e.quote != nil {
		q := *e.quote
		snap.Quote = &q
	}
	return snap
}

func (e *Engine) stopDebounceLocked() {
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
		e.debounceTimer = nil
	}
}

// debounceExpired fires when the input has been stable for the debounce
// window: issue the fetch with a fresh sequence number.
func (e *Engine) debounceExpired() {
	e.mu.Lock()
	if e.closed || !e.input.Valid() {
		e.mu.Unlock()
		return
	}

	e.seq++
	mySeq := e.seq
	e.state = StateFetching
	e.fetching = true
	in := e.input
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.fireUpdate(snap)

	go e.fetch(mySeq, in)
}

func (e *Engine) fetch(mySeq uint64, in types.QuoteInput) {
	req := e.builder(in)
	quotes, err := e.router.FetchQuote(context.Background(), req)
	e.complete(mySeq, quotes, err)
}

// complete applies a fetch result. The sequence comparison happens on every
// path, success and error alike: a completion whose sequence number is no
// longer the latest is discarded without any state mutation, so a stale
// failure can never clear a fresher success and a stale success can never
// overwrite a fresher result.
func (e *Engine) complete(mySeq uint64, quotes []types.Quote, err error) {
	e.mu.Lock()
	if e.closed || mySeq != e.seq {
		e.mu.Unlock()
		e.log.Debug("discarding stale quote completion", zap.Uint64("seq", mySeq))
		return
	}

	e.fetching = false

	if err != nil || len(quotes) == 0 {
		reason := "no route available for this pair"
		if err != nil {
			reason = err.Error()
		}
		e.state = StateFailed
		e.quote = nil
		e.derived = Derived{}
		e.errMsg = reason
		notifier := e.notifier
		snap := e.snapshotLocked()
		e.mu.Unlock()

		e.log.Warn("quote fetch failed", zap.Uint64("seq", mySeq), zap.String("reason", reason))
		if notifier != nil {
			notifier.QuoteFailed(reason)
		}
		e.fireUpdate(snap)
		return
	}

	q := quotes[0]
	e.state = StateSettled
	e.quote = &q
	e.derived = Derive(e.input, q)
	e.errMsg = ""
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.log.Debug("quote settled",
		zap.Uint64("seq", mySeq),
		zap.String("expected_out", snap.Derived.ExpectedOutput))
	e.fireUpdate(snap)
}

// refreshLoop periodically re-prices a settled (or failed) quote. A tick is
// ignored while a fetch is in flight, while a transfer is executing, or
// while a debounce is already pending; the refresh reuses the debounced
// fetch path rather than issuing directly.
func (e *Engine) refreshLoop() {
	ticker := time.NewTicker(e.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.requestRefresh()
		}
	}
}

func (e *Engine) requestRefresh() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.fetching || e.processing {
		return
	}
	if e.state != StateSettled && e.state != StateFailed {
		return
	}
	if !e.input.Valid() {
		return
	}

	e.stopDebounceLocked()
	e.debounceTimer = time.AfterFunc(e.debounce, e.debounceExpired)
}

func (e *Engine) fireUpdate(snap Snapshot) {
	if e.onUpdate != nil {
		e.onUpdate(snap)
	}
}
