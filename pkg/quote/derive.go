package quote

import (
	"github.com/shopspring/decimal"

	"altverse-swap/pkg/types"
)

const feePrecision = 6

// Derived holds the display fields computed from a settled quote. All
// fields are cleared whenever the quote is invalidated or a fetch fails.
type Derived struct {
	// ExpectedOutput is the output amount formatted to the destination
	// token's precision, capped at 6 fractional digits.
	ExpectedOutput string
	ETASeconds     *int64
	ProtocolFeeUSD string
	// RelayerFeeUSD is empty when neither the success nor the refund
	// variant is present on the quote.
	RelayerFeeUSD string
	TotalFeeUSD   string
}

// Derive computes display fields for a quote settled against the given
// input tuple.
func Derive(in types.QuoteInput, q types.Quote) Derived {
	d := Derived{
		ETASeconds: q.ETASeconds,
	}

	outDigits := int32(feePrecision)
	if in.DestToken != nil && int32(in.DestToken.Decimals) < outDigits {
		outDigits = int32(in.DestToken.Decimals)
	}
	d.ExpectedOutput = q.ExpectedOut.Round(outDigits).String()

	protocolFee := decimal.Zero
	if q.ProtocolFeeBps != nil {
		protocolFee = q.AmountIn.
			Mul(decimal.NewFromInt(*q.ProtocolFeeBps)).
			Div(decimal.NewFromInt(10000)).
			Round(feePrecision)
	}
	d.ProtocolFeeUSD = protocolFee.String()

	switch {
	case q.RelayerFeeUSD != nil:
		d.RelayerFeeUSD = q.RelayerFeeUSD.Round(feePrecision).String()
	case q.RefundRelayerFeeUSD != nil:
		d.RelayerFeeUSD = q.RefundRelayerFeeUSD.Round(feePrecision).String()
	}

	// Input minus expected output. Negative when the route pays out more
	// than went in; deliberately not clamped so upstream data-quality
	// problems stay visible.
	d.TotalFeeUSD = q.AmountIn.Sub(q.ExpectedOut).Round(feePrecision).String()

	return d
}
