package transfer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"altverse-swap/pkg/session"
	"altverse-swap/pkg/types"
	"altverse-swap/pkg/wallet"
)

// ConnectorSource resolves the connector for a capability family.
// *wallet.Manager satisfies it.
type ConnectorSource interface {
	Connector(kind types.WalletKind) (wallet.Connector, bool)
}

// Guard ensures the active wallet's connected network matches the required
// source chain before a transfer is submitted. Signing is
// chain-context-sensitive, so a mismatch here is a precondition failure,
// not an execution failure.
type Guard struct {
	session *session.Store
	wallets ConnectorSource
	log     *zap.Logger
}

// NewGuard creates a chain-switch guard.
func NewGuard(store *session.Store, wallets ConnectorSource, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{
		session: store,
		wallets: wallets,
		log:     log,
	}
}

// CheckCurrentChain reports whether the active wallet is live-connected to
// the required chain. The live wallet-reported value is preferred over the
// cached session value; when they diverge the session cache is updated as a
// side effect. No mutation occurs when no wallet is connected.
func (g *Guard) CheckCurrentChain(ctx context.Context, required types.Chain) bool {
	sess, connected := g.session.ActiveWallet()
	if !connected {
		return false
	}

	connector, exists := g.wallets.Connector(sess.Kind)
	if !exists {
		return false
	}

	current := sess.ChainID
	if live, err := connector.ChainID(ctx); err == nil {
		if live != sess.ChainID {
			g.session.SetWalletChainID(sess.Kind, live)
		}
		current = live
	} else {
		g.log.Debug("live chain read failed, using cached value",
			zap.Uint64("cached", sess.ChainID), zap.Error(err))
	}

	return current == required.NetworkID
}

// SwitchToSourceChain drives the wallet to the required chain. A no-op
// success when already there; on rejection or error the session state is
// left untouched and the failure carries the network the user must switch
// to.
func (g *Guard) SwitchToSourceChain(ctx context.Context, required types.Chain) error {
	if g.CheckCurrentChain(ctx, required) {
		return nil
	}

	sess, connected := g.session.ActiveWallet()
	if !connected {
		return ErrWalletNotConnected
	}

	connector, exists := g.wallets.Connector(sess.Kind)
	if !exists {
		return ErrWalletNotConnected
	}

	if err := connector.SwitchChain(ctx, required.NetworkID); err != nil {
		g.log.Warn("network switch rejected",
			zap.String("chain", required.Name), zap.Error(err))
		return fmt.Errorf("%w: please switch to %s: %v", ErrWrongNetwork, required.Name, err)
	}

	g.session.SetWalletChainID(sess.Kind, required.NetworkID)
	g.log.Info("switched wallet network",
		zap.String("chain", required.Name), zap.Uint64("network_id", required.NetworkID))
	return nil
}
