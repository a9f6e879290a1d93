package registry

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"altverse-swap/pkg/types"
)

const (
	balanceCacheTTL     = 30 * time.Second
	balanceCacheCleanup = 5 * time.Minute

	maxConcurrentBalanceReads = 8
)

// BalanceReader reads on-chain balances for one capability family. The
// wallet connectors implement it.
type BalanceReader interface {
	Kind() types.WalletKind
	NativeBalance(ctx context.Context, address string) (string, error)
	TokenBalance(ctx context.Context, address, tokenContract string, decimals uint8) (string, error)
}

// Registry holds the static chain table and the token list, and merges
// cached on-chain balances into Token records.
type Registry struct {
	mu     sync.RWMutex
	log    *zap.Logger
	chains map[string]types.Chain
	tokens []types.Token
	cache  *gocache.Cache
}

// tokenListFile is the YAML shape of the token list.
type tokenListFile struct {
	Tokens []tokenEntry `yaml:"tokens"`
}

type tokenEntry struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Ticker   string `yaml:"ticker"`
	Icon     string `yaml:"icon"`
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
	Chain    string `yaml:"chain"`
	Native   bool   `yaml:"native"`
}

// New creates a registry from the static chain table and an optional YAML
// token list. An empty path loads chains only (native tokens are always
// derived from the chain table).
func New(tokenListPath string, log *zap.Logger) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}

	r := &Registry{
		log:    log,
		chains: make(map[string]types.Chain, len(defaultChains)),
		cache:  gocache.New(balanceCacheTTL, balanceCacheCleanup),
	}

	for _, c := range defaultChains {
		r.chains[c.ID] = c
		r.tokens = append(r.tokens, types.Token{
			ID:       c.ID + ":native",
			Name:     c.Name + " " + c.NativeSymbol,
			Ticker:   c.NativeSymbol,
			Decimals: c.NativeDecimals,
			ChainID:  c.ID,
			Native:   true,
		})
	}

	if tokenListPath != "" {
		if err := r.loadTokenList(tokenListPath); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Registry) loadTokenList(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read token list: %w", err)
	}

	var file tokenListFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse token list: %w", err)
	}

	for _, entry := range file.Tokens {
		if _, exists := r.chains[entry.Chain]; !exists {
			r.log.Warn("token list references unknown chain",
				zap.String("token", entry.Ticker), zap.String("chain", entry.Chain))
			continue
		}
		id := entry.ID
		if id == "" {
			id = entry.Chain + ":" + strings.ToLower(entry.Address)
		}
		r.tokens = append(r.tokens, types.Token{
			ID:       id,
			Name:     entry.Name,
			Ticker:   strings.ToUpper(entry.Ticker),
			Icon:     entry.Icon,
			Address:  entry.Address,
			Decimals: entry.Decimals,
			ChainID:  entry.Chain,
			Native:   entry.Native,
		})
	}

	r.log.Info("token list loaded", zap.String("path", path), zap.Int("tokens", len(r.tokens)))
	return nil
}

// Chains returns all chains sorted by name.
func (r *Registry) Chains() []types.Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Chain, 0, len(r.chains))
	for _, c := range r.chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Chain returns a chain by registry id.
func (r *Registry) Chain(id string) (types.Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.chains[strings.ToLower(id)]
	if !exists {
		return types.Chain{}, fmt.Errorf("chain '%s' not found", id)
	}
	return c, nil
}

// ChainByNetworkID returns a chain by its numeric network id.
func (r *Registry) ChainByNetworkID(networkID uint64) (types.Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.chains {
		if c.NetworkID == networkID {
			return c, nil
		}
	}
	return types.Chain{}, fmt.Errorf("no chain with network id %d", networkID)
}

// Tokens returns the tokens for a chain, or all tokens when chainID is
// empty.
func (r *Registry) Tokens(chainID string) []types.Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		if chainID == "" || t.ChainID == chainID {
			out = append(out, t)
		}
	}
	return out
}

// Token finds a token by ticker on a chain.
func (r *Registry) Token(chainID, ticker string) (types.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ticker = strings.ToUpper(ticker)
	for _, t := range r.tokens {
		if t.ChainID == chainID && t.Ticker == ticker {
			return t, nil
		}
	}
	return types.Token{}, fmt.Errorf("token '%s' not found on chain '%s'", ticker, chainID)
}

// RefreshBalances reads on-chain balances for every token on one chain and
// merges them into the token records. The reader must be connected to that
// chain. Results are cached for a short TTL so rapid refreshes do not
// hammer the RPC.
func (r *Registry) RefreshBalances(ctx context.Context, reader BalanceReader, address, chainID string) error {
	r.mu.RLock()
	targets := make([]types.Token, 0)
	for _, t := range r.tokens {
		chain, exists := r.chains[t.ChainID]
		if exists && t.ChainID == chainID && chain.Kind == reader.Kind() {
			targets = append(targets, t)
		}
	}
	r.mu.RUnlock()

	balances := make([]string, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBalanceReads)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			key := fmt.Sprintf("%s|%s|%s", address, t.ChainID, t.ID)
			if cached, found := r.cache.Get(key); found {
				balances[i] = cached.(string)
				return nil
			}

			var bal string
			var err error
			if t.Native {
				bal, err = reader.NativeBalance(gctx, address)
			} else {
				bal, err = reader.TokenBalance(gctx, address, t.Address, t.Decimals)
			}
			if err != nil {
				// A single failed read should not sink the whole refresh.
				r.log.Debug("balance read failed",
					zap.String("token", t.Ticker), zap.String("chain", t.ChainID), zap.Error(err))
				return nil
			}

			r.cache.Set(key, bal, gocache.DefaultExpiration)
			balances[i] = bal
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range targets {
		if balances[i] == "" {
			continue
		}
		for j := range r.tokens {
			if r.tokens[j].ID == t.ID {
				r.tokens[j].Balance = balances[i]
				r.tokens[j].IsWalletToken = balances[i] != "0"
				break
			}
		}
	}
	return nil
}
