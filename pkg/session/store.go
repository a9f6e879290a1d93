package session

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"altverse-swap/pkg/types"
)

// Store is the single piece of mutable shared state: connected wallets, the
// active wallet, selected chains/tokens, the swap amount and transaction
// preferences. All mutation goes through named setters; fields are never
// assigned from outside. Mutations touching persisted fields snapshot the
// store to disk.
type Store struct {
	mu   sync.RWMutex
	log  *zap.Logger
	path string

	wallets map[types.WalletKind]types.WalletSession
	active  types.WalletKind

	sourceChain *types.Chain
	destChain   *types.Chain
	sourceToken *types.Token
	destToken   *types.Token

	amount string // not persisted
	prefs  types.TransactionPreferences

	onChange []func()
}

// NewStore creates a session store backed by the given file path and
// rehydrates any persisted snapshot. An empty path keeps the store
// in-memory only.
func NewStore(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Store{
		log:     log,
		path:    path,
		wallets: make(map[types.WalletKind]types.WalletSession),
		prefs:   types.TransactionPreferences{Slippage: types.SlippageAuto},
	}

	if path != "" {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
	}

	return s, nil
}

// OnChange registers a callback invoked after every mutation, outside the
// store's lock. The quote engine subscribes here to observe input changes.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *Store) notifyLocked() []func() {
	subs := make([]func(), len(s.onChange))
	copy(subs, s.onChange)
	return subs
}

// mutate runs fn under the write lock, persists if asked, then fires change
// callbacks with the lock released.
func (s *Store) mutate(persist bool, fn func()) {
	s.mu.Lock()
	fn()
	if persist && s.path != "" {
		if err := s.saveLocked(); err != nil {
			s.log.Warn("failed to persist session", zap.Error(err))
		}
	}
	subs := s.notifyLocked()
	s.mu.Unlock()

	for _, cb := range subs {
		cb()
	}
}

// ConnectWallet registers a wallet session for its capability family and
// makes it active.
func (s *Store) ConnectWallet(sess types.WalletSession) {
	s.mutate(true, func() {
		s.wallets[sess.Kind] = sess
		s.active = sess.Kind
	})
}

// DisconnectWallet removes the session for a capability family. If it was
// active, any remaining session becomes active.
func (s *Store) DisconnectWallet(kind types.WalletKind) {
	s.mutate(true, func() {
		delete(s.wallets, kind)
		if s.active == kind {
			s.active = ""
			for k := range s.wallets {
				s.active = k
				break
			}
		}
	})
}

// SetActiveWallet switches the active wallet to an already-connected
// capability family.
func (s *Store) SetActiveWallet(kind types.WalletKind) error {
	var err error
	s.mutate(true, func() {
		if _, exists := s.wallets[kind]; !exists {
			err = fmt.Errorf("no connected wallet for kind '%s'", kind)
			return
		}
		s.active = kind
	})
	return err
}

// SetWalletChainID updates the cached chain id the wallet reports. Used by
// the chain-switch guard when the live value diverges from the cache.
func (s *Store) SetWalletChainID(kind types.WalletKind, chainID uint64) {
	s.mutate(true, func() {
		sess, exists := s.wallets[kind]
		if !exists {
			return
		}
		sess.ChainID = chainID
		s.wallets[kind] = sess
	})
}

// SetSourceChain selects the source chain and drops the source token if it
// belongs to another chain.
func (s *Store) SetSourceChain(c *types.Chain) {
	s.mutate(true, func() {
		s.sourceChain = c
		if s.sourceToken != nil && (c == nil || s.sourceToken.ChainID != c.ID) {
			s.sourceToken = nil
		}
	})
}

// SetDestChain selects the destination chain and drops the destination
// token if it belongs to another chain.
func (s *Store) SetDestChain(c *types.Chain) {
	s.mutate(true, func() {
		s.destChain = c
		if s.destToken != nil && (c == nil || s.destToken.ChainID != c.ID) {
			s.destToken = nil
		}
	})
}

// SetSourceToken selects the token being sold.
func (s *Store) SetSourceToken(t *types.Token) {
	s.mutate(true, func() { s.sourceToken = t })
}

// SetDestToken selects the token being bought.
func (s *Store) SetDestToken(t *types.Token) {
	s.mutate(true, func() { s.destToken = t })
}

// SetAmount updates the swap amount. The amount is per-session state and is
// not persisted.
func (s *Store) SetAmount(amount string) {
	s.mutate(false, func() { s.amount = amount })
}

// SetSlippage updates the slippage preference ("auto" or a percentage).
func (s *Store) SetSlippage(slippage string) {
	s.mutate(true, func() { s.prefs.Slippage = slippage })
}

// SetRecipient updates the fixed recipient address preference.
func (s *Store) SetRecipient(addr string) {
	s.mutate(true, func() { s.prefs.Recipient = addr })
}

// SetGasDrop updates the native-gas top-up preference.
func (s *Store) SetGasDrop(amount string) {
	s.mutate(true, func() { s.prefs.GasDrop = amount })
}

// ActiveWallet returns the active wallet session, if any.
func (s *Store) ActiveWallet() (types.WalletSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == "" {
		return types.WalletSession{}, false
	}
	sess, exists := s.wallets[s.active]
	return sess, exists
}

// Wallet returns the session for a capability family, if connected.
func (s *Store) Wallet(kind types.WalletKind) (types.WalletSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.wallets[kind]
	return sess, exists
}

// Wallets returns all connected wallet sessions.
func (s *Store) Wallets() []types.WalletSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.WalletSession, 0, len(s.wallets))
	for _, sess := range s.wallets {
		out = append(out, sess)
	}
	return out
}

// Preferences returns the current transaction preferences.
func (s *Store) Preferences() types.TransactionPreferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// SourceChain returns the selected source chain.
func (s *Store) SourceChain() *types.Chain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourceChain
}

// DestChain returns the selected destination chain.
func (s *Store) DestChain() *types.Chain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destChain
}

// Amount returns the current swap amount.
func (s *Store) Amount() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.amount
}

// InputTuple assembles the quote input tuple from the current selections.
func (s *Store) InputTuple() types.QuoteInput {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return types.QuoteInput{
		Amount:      s.amount,
		SourceToken: s.sourceToken,
		DestToken:   s.destToken,
		SourceChain: s.sourceChain,
		DestChain:   s.destChain,
		Slippage:    s.prefs.Slippage,
		GasDrop:     s.prefs.GasDrop,
	}
}
