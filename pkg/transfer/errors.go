package transfer

import (
	"encoding/json"
	"errors"
	"strings"
)

// Precondition errors. These abort a transfer locally and are never sent to
// the network layer.
var (
	ErrInvalidInput       = errors.New("invalid swap input")
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrWrongNetwork       = errors.New("wallet is on the wrong network")
	ErrSignerUnavailable  = errors.New("could not access wallet")
	ErrQuoteExpired       = errors.New("quote is no longer current")
)

const genericFailure = "Transfer failed. Please try again."

// classifierRules maps known substrings of stringified errors to
// human-readable messages. Order matters: more specific patterns first.
var classifierRules = []struct {
	patterns []string
	message  string
}{
	{
		patterns: []string{"allowance", "approval", "approve", "erc20: transfer amount exceeds allowance"},
		message:  "Token approval required before this transfer can proceed.",
	},
	{
		patterns: []string{"insufficient gas", "intrinsic gas", "out of gas", "gas required exceeds"},
		message:  "Insufficient gas to complete the transaction.",
	},
	{
		patterns: []string{"insufficient balance", "insufficient funds", "insufficient token balance", "transfer amount exceeds balance"},
		message:  "Insufficient balance to complete this transfer.",
	},
	{
		patterns: []string{"slippage", "price moved", "price impact", "min amount out", "minimum amount out", "too little received"},
		message:  "Price moved beyond the slippage tolerance. Try again or increase slippage.",
	},
	{
		patterns: []string{"timeout", "timed out", "deadline exceeded", "context deadline"},
		message:  "The request timed out. Please try again.",
	},
}

// Classify maps an execution error to a best-effort human-readable message.
// Known failure substrings win; otherwise a reason or message field is
// extracted from an embedded JSON body; otherwise a generic fallback.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	text := err.Error()
	lower := strings.ToLower(text)

	for _, rule := range classifierRules {
		for _, pattern := range rule.patterns {
			if strings.Contains(lower, pattern) {
				return rule.message
			}
		}
	}

	if extracted := extractField(text); extracted != "" {
		return extracted
	}

	return genericFailure
}

// extractField pulls a reason or message field out of a JSON object
// embedded in the error text.
func extractField(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}

	var body map[string]interface{}
	if err := json.Unmarshal([]byte(text[start:end+1]), &body); err != nil {
		return ""
	}

	if reason, ok := body["reason"].(string); ok && reason != "" {
		return reason
	}
	if message, ok := body["message"].(string); ok && message != "" {
		return message
	}
	return ""
}
