package wallet

import (
	"context"
	"fmt"
	"sync"

	"altverse-swap/pkg/types"
)

// Signer submits a signed transfer on the connector's current chain.
// Signing is chain-context-sensitive: callers must run the chain-switch
// guard before acquiring a signer.
type Signer interface {
	SendTransfer(ctx context.Context, req *types.TransferRequest) (string, error)
}

// Connector is a connected wallet for one capability family. A connector is
// resolved once at connection time; callers never re-probe provider shapes
// per call.
type Connector interface {
	Kind() types.WalletKind
	Address() string

	// ChainID reports the chain the wallet is live-connected to.
	ChainID(ctx context.Context) (uint64, error)

	// SwitchChain asks the wallet to move to another network. A no-op when
	// already there; an error when the wallet rejects or the network is
	// not available.
	SwitchChain(ctx context.Context, networkID uint64) error

	// Signer acquires the signing capability. Fails when the wallet cannot
	// be accessed.
	Signer(ctx context.Context) (Signer, error)

	NativeBalance(ctx context.Context, address string) (string, error)
	TokenBalance(ctx context.Context, address, tokenContract string, decimals uint8) (string, error)

	Close()
}

// Manager holds one connector per capability family.
type Manager struct {
	mu         sync.RWMutex
	connectors map[types.WalletKind]Connector
}

// NewManager creates an empty connector registry.
func NewManager() *Manager {
	return &Manager{
		connectors: make(map[types.WalletKind]Connector),
	}
}

// Connect registers a resolved connector and returns the wallet session to
// record in the session store.
func (m *Manager) Connect(ctx context.Context, c Connector, name string) (types.WalletSession, error) {
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return types.WalletSession{}, fmt.Errorf("failed to read wallet chain: %w", err)
	}

	m.mu.Lock()
	if old, exists := m.connectors[c.Kind()]; exists {
		old.Close()
	}
	m.connectors[c.Kind()] = c
	m.mu.Unlock()

	return types.WalletSession{
		Kind:    c.Kind(),
		Name:    name,
		Address: c.Address(),
		ChainID: chainID,
	}, nil
}

// Connector returns the connector for a capability family.
func (m *Manager) Connector(kind types.WalletKind) (Connector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, exists := m.connectors[kind]
	return c, exists
}

// Disconnect removes and closes the connector for a capability family.
func (m *Manager) Disconnect(kind types.WalletKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, exists := m.connectors[kind]; exists {
		c.Close()
		delete(m.connectors, kind)
	}
}

// Close tears down all connectors.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for kind, c := range m.connectors {
		c.Close()
		delete(m.connectors, kind)
	}
}
