package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"altverse-swap/pkg/types"
)

const (
	quoteDeadline = 24 * time.Hour

	// Token catalog refresh interval. The supported-token list changes
	// rarely; re-fetching it per quote would burn the rate budget.
	catalogTTL = 10 * time.Minute
)

// routeNames maps registry chain ids to the routing service's blockchain
// keys.
var routeNames = map[string]string{
	"ethereum":  "eth",
	"arbitrum":  "arb",
	"base":      "base",
	"optimism":  "op",
	"polygon":   "pol",
	"avalanche": "avax",
	"bsc":       "bsc",
	"solana":    "sol",
}

// RoutingClient wraps the 1Click SDK behind the quote engine's Router
// surface and the executor's submission/status surface. Requests are rate
// limited so the periodic quote refresh cannot exhaust the API quota.
type RoutingClient struct {
	client  *oneclick.APIClient
	authCtx context.Context
	limiter *rate.Limiter
	log     *zap.Logger

	referrerAddress string
	referrerFeeBps  int64

	catalogMu      sync.Mutex
	catalog        []oneclick.TokenResponse
	catalogFetched time.Time
}

// NewRoutingClient creates an authenticated routing client.
func NewRoutingClient(jwtToken, referrerAddress string, referrerFeeBps int64, log *zap.Logger) *RoutingClient {
	if log == nil {
		log = zap.NewNop()
	}

	cfg := oneclick.NewConfiguration()
	authCtx := context.WithValue(context.Background(), oneclick.ContextAccessToken, jwtToken)

	return &RoutingClient{
		client:          oneclick.NewAPIClient(cfg),
		authCtx:         authCtx,
		limiter:         rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
		log:             log,
		referrerAddress: referrerAddress,
		referrerFeeBps:  referrerFeeBps,
	}
}

// supportedTokens returns the routing service's token catalog, cached for
// catalogTTL.
func (c *RoutingClient) supportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	c.catalogMu.Lock()
	defer c.catalogMu.Unlock()

	if c.catalog != nil && time.Since(c.catalogFetched) < catalogTTL {
		return c.catalog, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.authCtx).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	c.catalog = resp
	c.catalogFetched = time.Now()
	return resp, nil
}

// resolveAsset finds the routing asset id for a token on a chain.
func (c *RoutingClient) resolveAsset(ctx context.Context, token types.Token, chain types.Chain) (*oneclick.TokenResponse, error) {
	catalog, err := c.supportedTokens(ctx)
	if err != nil {
		return nil, err
	}

	blockchain := routeNames[chain.ID]
	if blockchain == "" {
		blockchain = chain.ID
	}

	symbol := strings.ToUpper(token.Ticker)
	for _, entry := range catalog {
		if strings.ToUpper(entry.GetSymbol()) == symbol &&
			strings.ToLower(entry.GetBlockchain()) == blockchain {
			return &entry, nil
		}
	}

	return nil, fmt.Errorf("token '%s' not routable on chain '%s'", token.Ticker, chain.ID)
}

// FetchQuote looks up a routing quote without reserving a deposit address.
// This is the path the quote engine polls.
func (c *RoutingClient) FetchQuote(ctx context.Context, req types.QuoteRequest) ([]types.Quote, error) {
	return c.quote(ctx, req, true)
}

// CreateDeposit replays an accepted quote with a live deposit address for
// execution.
func (c *RoutingClient) CreateDeposit(ctx context.Context, req types.QuoteRequest) (*types.Quote, error) {
	quotes, err := c.quote(ctx, req, false)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("routing service returned no quote")
	}
	return &quotes[0], nil
}

func (c *RoutingClient) quote(ctx context.Context, req types.QuoteRequest, dry bool) ([]types.Quote, error) {
	sourceAsset, err := c.resolveAsset(ctx, req.SourceToken, req.SourceChain)
	if err != nil {
		return nil, fmt.Errorf("source token error: %w", err)
	}
	destAsset, err := c.resolveAsset(ctx, req.DestToken, req.DestChain)
	if err != nil {
		return nil, fmt.Errorf("destination token error: %w", err)
	}

	amountIn, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	// Convert to the asset's smallest unit.
	smallestUnit := amountIn.Shift(int32(sourceAsset.GetDecimals()))
	amountStr := smallestUnit.Truncate(0).String()

	recipient := req.Recipient
	if recipient == "" {
		return nil, fmt.Errorf("recipient address is required")
	}
	refundTo := req.RefundTo
	if refundTo == "" {
		refundTo = recipient
	}

	deadline := time.Now().Add(quoteDeadline)

	quoteReq := oneclick.NewQuoteRequest(
		dry,
		"EXACT_INPUT",
		float32(req.SlippageBps),
		sourceAsset.GetAssetId(),
		"ORIGIN_CHAIN",
		destAsset.GetAssetId(),
		amountStr,
		refundTo,
		"ORIGIN_CHAIN",
		recipient,
		"DESTINATION_CHAIN",
		deadline,
	)
	if req.ReferrerAddress != "" {
		quoteReq.SetReferral(req.ReferrerAddress)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, httpResp, err := c.client.OneClickAPI.GetQuote(c.authCtx).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		return nil, c.quoteError(httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	if resp == nil {
		return nil, fmt.Errorf("empty quote response")
	}

	details := resp.GetQuote()

	out := types.Quote{
		AmountIn: amountIn,
		Deadline: deadline,
	}
	if formatted := details.GetAmountOutFormatted(); formatted != "" {
		out.ExpectedOut, err = decimal.NewFromString(formatted)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount out: %w", err)
		}
	} else {
		// No route for this pair/amount: zero quotes.
		return nil, nil
	}
	if eta := details.GetTimeEstimate(); eta > 0 {
		sec := int64(eta)
		out.ETASeconds = &sec
	}
	if c.referrerFeeBps > 0 {
		bps := c.referrerFeeBps
		out.ProtocolFeeBps = &bps
	}
	out.DepositAddress = details.GetDepositAddress()
	if details.HasDepositMemo() {
		out.DepositMemo = details.GetDepositMemo()
	}

	return []types.Quote{out}, nil
}

// quoteError extracts the actual error message from a failed quote
// response body when possible.
func (c *RoutingClient) quoteError(httpResp *http.Response, err error) error {
	if httpResp == nil {
		return fmt.Errorf("failed to get quote from API: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, readErr := io.ReadAll(httpResp.Body)
	if readErr == nil && len(bodyBytes) > 0 {
		var errorResp map[string]interface{}
		if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
			if message, ok := errorResp["message"].(string); ok {
				return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, message)
			}
			if errors, ok := errorResp["errors"]; ok {
				return fmt.Errorf("API error (status %d): %v", httpResp.StatusCode, errors)
			}
		}
		return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(bodyBytes))
	}
	return fmt.Errorf("failed to get quote from API (status: %d): %w", httpResp.StatusCode, err)
}

// TransferStatus checks the execution status of a submitted transfer by its
// deposit address.
func (c *RoutingClient) TransferStatus(ctx context.Context, depositAddress string) (types.TransferStatus, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return types.TransferStatus{}, err
	}

	resp, httpResp, err := c.client.OneClickAPI.GetExecutionStatus(c.authCtx).DepositAddress(depositAddress).Execute()
	if err != nil {
		return types.TransferStatus{}, fmt.Errorf("failed to get status: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 {
		return types.TransferStatus{}, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	status := types.TransferStatus{Status: resp.GetStatus()}

	details := resp.GetSwapDetails()
	if details.HasAmountOutFormatted() {
		status.ActualOutput = details.GetAmountOutFormatted()
	}
	if destTxs := details.GetDestinationChainTxHashes(); len(destTxs) > 0 {
		status.DestTxHash = destTxs[0].GetHash()
	}

	return status, nil
}

// SubmitDepositTx reports the deposit transaction hash back to the routing
// service so settlement can begin before the deposit is indexed.
func (c *RoutingClient) SubmitDepositTx(ctx context.Context, depositAddress, txHash string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req := oneclick.NewSubmitDepositTxRequest(depositAddress, txHash)

	_, httpResp, err := c.client.OneClickAPI.SubmitDepositTx(c.authCtx).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return fmt.Errorf("failed to submit deposit: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 && httpResp.StatusCode != 201 {
		return fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return nil
}
