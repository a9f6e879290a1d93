package types

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WalletKind identifies a wallet capability family. One wallet session may
// exist per kind; exactly one kind is active at a time.
type WalletKind string

const (
	WalletEVM    WalletKind = "evm"
	WalletSolana WalletKind = "solana"
	WalletSui    WalletKind = "sui"
)

// Chain describes a supported blockchain. Chains are immutable and loaded
// from the static registry at startup.
type Chain struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	NetworkID      uint64     `json:"network_id"`
	Kind           WalletKind `json:"kind"`
	NativeSymbol   string     `json:"native_symbol"`
	NativeDecimals uint8      `json:"native_decimals"`
	RPCURL         string     `json:"rpc_url"`
	ExplorerURL    string     `json:"explorer_url"`
	IsLayer2       bool       `json:"is_layer2"`
	Color          string     `json:"color,omitempty"`
}

// Token describes a swappable asset. Static metadata comes from the token
// list; balance fields are merged in by the registry when a wallet is
// connected.
type Token struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Ticker   string `json:"ticker"`
	Icon     string `json:"icon,omitempty"`
	Address  string `json:"address"` // empty for the chain's native asset
	Decimals uint8  `json:"decimals"`
	ChainID  string `json:"chain_id"`

	Balance    string `json:"balance,omitempty"`
	BalanceUSD string `json:"balance_usd,omitempty"`

	IsWalletToken bool `json:"is_wallet_token"`
	Native        bool `json:"native"`
	CustomToken   bool `json:"custom_token,omitempty"`
}

// SlippageAuto is the sentinel for automatic slippage selection.
const SlippageAuto = "auto"

// TransactionPreferences holds user-tunable swap settings read by the quote
// engine and the executor.
type TransactionPreferences struct {
	Slippage  string `json:"slippage"` // "auto" or a percentage string, e.g. "0.5"
	Recipient string `json:"recipient,omitempty"`
	GasDrop   string `json:"gas_drop,omitempty"` // native-gas top-up on the destination chain
}

// SlippageBps converts the slippage preference to basis points. The auto
// sentinel and unparseable values map to defaultBps.
func (p TransactionPreferences) SlippageBps(defaultBps int32) int32 {
	s := strings.TrimSpace(strings.ToLower(p.Slippage))
	if s == "" || s == SlippageAuto {
		return defaultBps
	}
	pct, err := decimal.NewFromString(s)
	if err != nil {
		return defaultBps
	}
	bps := pct.Mul(decimal.NewFromInt(100))
	if !bps.IsPositive() {
		return defaultBps
	}
	return int32(bps.IntPart())
}

// QuoteInput is the tuple a quote is valid for. Any field changing
// invalidates the current quote immediately.
type QuoteInput struct {
	Amount      string
	SourceToken *Token
	DestToken   *Token
	SourceChain *Chain
	DestChain   *Chain
	Slippage    string
	GasDrop     string
}

// Valid reports whether the tuple can produce a quote: both tokens and
// chains selected and a positive numeric amount.
func (in QuoteInput) Valid() bool {
	if in.SourceToken == nil || in.DestToken == nil || in.SourceChain == nil || in.DestChain == nil {
		return false
	}
	amt, err := strconv.ParseFloat(strings.TrimSpace(in.Amount), 64)
	if err != nil {
		return false
	}
	return amt > 0
}

// AmountDecimal parses the input amount. Only meaningful when Valid.
func (in QuoteInput) AmountDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Equal compares two tuples field by field. Token and chain identity is
// compared by id, not pointer.
func (in QuoteInput) Equal(other QuoteInput) bool {
	return in.Amount == other.Amount &&
		tokenID(in.SourceToken) == tokenID(other.SourceToken) &&
		tokenID(in.DestToken) == tokenID(other.DestToken) &&
		chainID(in.SourceChain) == chainID(other.SourceChain) &&
		chainID(in.DestChain) == chainID(other.DestChain) &&
		in.Slippage == other.Slippage &&
		in.GasDrop == other.GasDrop
}

func tokenID(t *Token) string {
	if t == nil {
		return ""
	}
	return t.ID
}

func chainID(c *Chain) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// Quote is a point-in-time routing result. It is valid only for the exact
// input tuple that produced it.
type Quote struct {
	AmountIn       decimal.Decimal
	ExpectedOut    decimal.Decimal
	ETASeconds     *int64
	ProtocolFeeBps *int64

	// Relayer fee in USD. The success variant applies when the transfer
	// settles, the refund variant when it is refunded on the source chain.
	RelayerFeeUSD       *decimal.Decimal
	RefundRelayerFeeUSD *decimal.Decimal

	// Replay data for execution.
	DepositAddress string
	DepositMemo    string
	Deadline       time.Time
}

// QuoteRequest is the routing-service lookup input.
type QuoteRequest struct {
	Amount      string
	SourceToken Token
	DestToken   Token
	SourceChain Chain
	DestChain   Chain
	SlippageBps int32
	GasDrop     string
	Recipient   string
	RefundTo    string

	ReferrerAddress string
	ReferrerFeeBps  int64
}

// TransferRequest is the executable unit: an accepted quote plus addresses
// and referral metadata. Never persisted; discarded after a terminal
// success or failure.
type TransferRequest struct {
	ID          string
	Quote       Quote
	Amount      string
	SourceToken Token
	DestToken   Token
	SourceChain Chain
	DestChain   Chain
	FromAddress string
	ToAddress   string
	Referrer    string
}

// WalletSession is a connected wallet: its capability family, address and
// the chain the wallet currently reports.
type WalletSession struct {
	Kind    WalletKind `json:"kind"`
	Name    string     `json:"name"`
	Address string     `json:"address"`
	ChainID uint64     `json:"chain_id"`
}

// TransferStatus is a terminal-or-not view of a submitted transfer.
type TransferStatus struct {
	Status       string
	ActualOutput string
	DestTxHash   string
}

// Terminal reports whether the transfer reached a final state.
func (s TransferStatus) Terminal() bool {
	switch s.Status {
	case "SUCCESS", "COMPLETED", "FAILED", "REFUNDED":
		return true
	}
	return false
}
