package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleInput() QuoteInput {
	src := Token{ID: "ethereum:native", Ticker: "ETH", Decimals: 18, ChainID: "ethereum", Native: true}
	dst := Token{ID: "base:usdc", Ticker: "USDC", Decimals: 6, ChainID: "base"}
	eth := Chain{ID: "ethereum", Name: "Ethereum", NetworkID: 1, Kind: WalletEVM}
	base := Chain{ID: "base", Name: "Base", NetworkID: 8453, Kind: WalletEVM}
	return QuoteInput{
		Amount:      "100",
		SourceToken: &src,
		DestToken:   &dst,
		SourceChain: &eth,
		DestChain:   &base,
		Slippage:    SlippageAuto,
	}
}

func TestQuoteInputValid(t *testing.T) {
	in := sampleInput()
	assert.True(t, in.Valid())

	for _, amount := range []string{"", "0", "-1", "abc", "  "} {
		bad := sampleInput()
		bad.Amount = amount
		assert.False(t, bad.Valid(), "amount %q", amount)
	}

	noToken := sampleInput()
	noToken.SourceToken = nil
	assert.False(t, noToken.Valid())

	noChain := sampleInput()
	noChain.DestChain = nil
	assert.False(t, noChain.Valid())
}

func TestQuoteInputEqual(t *testing.T) {
	a := sampleInput()
	b := sampleInput()
	assert.True(t, a.Equal(b), "identity is by id, not pointer")

	b.Amount = "101"
	assert.False(t, a.Equal(b))

	b = sampleInput()
	other := *b.DestToken
	other.ID = "base:dai"
	b.DestToken = &other
	assert.False(t, a.Equal(b))

	b = sampleInput()
	b.Slippage = "0.5"
	assert.False(t, a.Equal(b))

	empty := QuoteInput{}
	assert.True(t, empty.Equal(QuoteInput{}))
	assert.False(t, a.Equal(empty))
}

func TestSlippageBps(t *testing.T) {
	tests := []struct {
		slippage string
		want     int32
	}{
		{"auto", 100},
		{"", 100},
		{"AUTO", 100},
		{"0.5", 50},
		{"1", 100},
		{"2.75", 275},
		{"not-a-number", 100},
		{"-1", 100},
		{"0", 100},
	}

	for _, tt := range tests {
		p := TransactionPreferences{Slippage: tt.slippage}
		assert.Equal(t, tt.want, p.SlippageBps(100), "slippage %q", tt.slippage)
	}
}

func TestTransferStatusTerminal(t *testing.T) {
	for _, status := range []string{"SUCCESS", "COMPLETED", "FAILED", "REFUNDED"} {
		assert.True(t, TransferStatus{Status: status}.Terminal(), status)
	}
	for _, status := range []string{"PENDING_DEPOSIT", "PROCESSING", "", "KNOWN_DEPOSIT_TX"} {
		assert.False(t, TransferStatus{Status: status}.Terminal(), status)
	}
}
