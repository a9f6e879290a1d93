package transfer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"altverse-swap/pkg/types"
)

func TestCheckCurrentChainPrefersLiveValue(t *testing.T) {
	store := newTestSession(t)
	connector := &fakeConnector{kind: types.WalletEVM, address: "0xsender", chainID: 1}
	store.ConnectWallet(types.WalletSession{
		Kind: types.WalletEVM, Address: "0xsender", ChainID: 137,
	})
	guard := NewGuard(store, fakeConnectors{types.WalletEVM: connector}, nil)

	// The cached session value says polygon, the wallet says ethereum.
	assert.True(t, guard.CheckCurrentChain(context.Background(), chainEthereum))

	sess, _ := store.ActiveWallet()
	assert.Equal(t, uint64(1), sess.ChainID, "divergence updates the session cache")
}

func TestCheckCurrentChainFallsBackToCache(t *testing.T) {
	store := newTestSession(t)
	connector := &fakeConnector{
		kind:     types.WalletEVM,
		address:  "0xsender",
		chainErr: errors.New("rpc unreachable"),
	}
	store.ConnectWallet(types.WalletSession{
		Kind: types.WalletEVM, Address: "0xsender", ChainID: 137,
	})
	guard := NewGuard(store, fakeConnectors{types.WalletEVM: connector}, nil)

	assert.True(t, guard.CheckCurrentChain(context.Background(), chainPolygon))
	assert.False(t, guard.CheckCurrentChain(context.Background(), chainEthereum))

	sess, _ := store.ActiveWallet()
	assert.Equal(t, uint64(137), sess.ChainID, "cache untouched when the live read fails")
}

func TestCheckCurrentChainDisconnected(t *testing.T) {
	store := newTestSession(t)
	guard := NewGuard(store, fakeConnectors{}, nil)

	assert.False(t, guard.CheckCurrentChain(context.Background(), chainEthereum))
	_, connected := store.ActiveWallet()
	assert.False(t, connected, "no session state appears out of thin air")
}

func TestSwitchToSourceChainNoOp(t *testing.T) {
	store := newTestSession(t)
	connector := &fakeConnector{kind: types.WalletEVM, address: "0xsender", chainID: 1}
	store.ConnectWallet(types.WalletSession{
		Kind: types.WalletEVM, Address: "0xsender", ChainID: 1,
	})
	guard := NewGuard(store, fakeConnectors{types.WalletEVM: connector}, nil)

	require.NoError(t, guard.SwitchToSourceChain(context.Background(), chainEthereum))
	assert.Empty(t, connector.switchCalls)
}

func TestSwitchToSourceChainSuccess(t *testing.T) {
	store := newTestSession(t)
	connector := &fakeConnector{kind: types.WalletEVM, address: "0xsender", chainID: 137}
	store.ConnectWallet(types.WalletSession{
		Kind: types.WalletEVM, Address: "0xsender", ChainID: 137,
	})
	guard := NewGuard(store, fakeConnectors{types.WalletEVM: connector}, nil)

	require.NoError(t, guard.SwitchToSourceChain(context.Background(), chainEthereum))
	assert.Equal(t, []uint64{1}, connector.switchCalls)

	sess, _ := store.ActiveWallet()
	assert.Equal(t, uint64(1), sess.ChainID)
}

func TestSwitchToSourceChainRejection(t *testing.T) {
	store := newTestSession(t)
	connector := &fakeConnector{
		kind:      types.WalletEVM,
		address:   "0xsender",
		chainID:   137,
		switchErr: errors.New("user rejected the request"),
	}
	store.ConnectWallet(types.WalletSession{
		Kind: types.WalletEVM, Address: "0xsender", ChainID: 137,
	})
	guard := NewGuard(store, fakeConnectors{types.WalletEVM: connector}, nil)

	err := guard.SwitchToSourceChain(context.Background(), chainEthereum)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongNetwork)
	assert.Contains(t, err.Error(), "Ethereum", "the error names the network to switch to")

	sess, _ := store.ActiveWallet()
	assert.Equal(t, uint64(137), sess.ChainID, "rejection leaves the session untouched")
}

func TestSwitchToSourceChainDisconnected(t *testing.T) {
	store := newTestSession(t)
	guard := NewGuard(store, fakeConnectors{}, nil)

	err := guard.SwitchToSourceChain(context.Background(), chainEthereum)
	assert.ErrorIs(t, err, ErrWalletNotConnected)
}
